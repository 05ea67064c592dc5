package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"productlens/config"
	"productlens/gemini"
)

// ErrNotConfigured is returned for families without credentials.
var ErrNotConfigured = errors.New("provider not configured")

// Registry builds adapters on first use and reuses them afterwards.
// It is safe for concurrent use.
type Registry struct {
	cfg    *config.Config
	logger *slog.Logger

	mu       sync.Mutex
	adapters map[Family]Adapter
}

// NewRegistry creates a registry backed by cfg.
func NewRegistry(cfg *config.Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		cfg:      cfg,
		logger:   logger,
		adapters: make(map[Family]Adapter),
	}
}

// Register installs a prebuilt adapter for its family.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Family()] = a
}

// ForModel returns the adapter that serves model.
func (r *Registry) ForModel(ctx context.Context, model string) (Adapter, error) {
	return r.For(ctx, Dispatch(model))
}

// For returns the adapter for family, building it if needed.
func (r *Registry) For(ctx context.Context, family Family) (Adapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.adapters[family]; ok {
		return a, nil
	}

	a, err := r.build(ctx, family)
	if err != nil {
		return nil, err
	}
	r.adapters[family] = a
	r.logger.Debug("provider adapter ready", "family", string(family))
	return a, nil
}

func (r *Registry) build(ctx context.Context, family Family) (Adapter, error) {
	if r.cfg == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, family)
	}
	logger := r.logger.With("component", "provider")

	switch family {
	case FamilyGemini:
		key := r.cfg.Gemini.APIKey
		if key == "" {
			return nil, fmt.Errorf("%w: %s (set GEMINI_API_KEY or GOOGLE_API_KEY)", ErrNotConfigured, family)
		}
		if r.cfg.Gemini.Transport == config.TransportSDK {
			return NewGenAIAdapter(ctx, key, logger)
		}
		opts := []gemini.ClientOption{gemini.WithLogger(logger)}
		if r.cfg.Gemini.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(r.cfg.Gemini.BaseURL))
		}
		client, err := gemini.NewClient(key, opts...)
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		return NewGeminiAdapter(client, logger), nil

	case FamilyQwen:
		if r.cfg.DashScope.APIKey == "" {
			return nil, fmt.Errorf("%w: %s (set DASHSCOPE_API_KEY)", ErrNotConfigured, family)
		}
		return NewCompatAdapter(r.cfg.DashScope.APIKey, r.cfg.DashScope.BaseURL, logger), nil

	case FamilyOpenAI:
		if r.cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("%w: %s (set OPENAI_API_KEY)", ErrNotConfigured, family)
		}
		return NewOpenAIAdapter(r.cfg.OpenAI.APIKey, r.cfg.OpenAI.BaseURL, logger), nil

	default:
		return nil, fmt.Errorf("unknown provider family %q", family)
	}
}

// Close releases adapters that hold connections.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for family, a := range r.adapters {
		if c, ok := a.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", family, err))
			}
		}
		delete(r.adapters, family)
	}
	return errors.Join(errs...)
}
