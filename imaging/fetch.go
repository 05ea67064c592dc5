package imaging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultUserAgent mimics a desktop browser. The image CDN rejects
	// non-browser clients.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	// DefaultTimeout for a single image download
	DefaultTimeout = 10 * time.Second

	// MaxTimeout is the upper bound applied to any configured timeout
	MaxTimeout = 10 * time.Second

	// MaxImageBytes caps a single download (20MB)
	MaxImageBytes = 20 * 1024 * 1024
)

// FailureKind classifies why an image was skipped.
type FailureKind int

const (
	// NetworkError covers non-200 statuses, timeouts and connection errors.
	NetworkError FailureKind = iota
	// DecodeError covers corrupt or non-image content.
	DecodeError
)

func (k FailureKind) String() string {
	switch k {
	case NetworkError:
		return "network_error"
	case DecodeError:
		return "decode_error"
	default:
		return "unknown"
	}
}

// FetchFailure is returned when an image cannot be used. Callers treat it as
// "skip this image", never as fatal.
type FetchFailure struct {
	Kind       FailureKind
	URL        string
	StatusCode int
	Err        error
}

func (f *FetchFailure) Error() string {
	msg := f.Kind.String()
	if f.URL != "" {
		msg += " " + f.URL
	}
	if f.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", f.StatusCode)
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *FetchFailure) Unwrap() error {
	return f.Err
}

// Fetcher downloads raw image bytes with browser-like headers.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
}

// FetcherOption configures the Fetcher
type FetcherOption func(*Fetcher)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.httpClient = client
	}
}

// WithTimeout sets the per-download timeout. Values above MaxTimeout are clamped.
func WithTimeout(timeout time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.httpClient.Timeout = timeout
	}
}

// WithUserAgent overrides the User-Agent header
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFetcher creates an image fetcher.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		userAgent: DefaultUserAgent,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.httpClient.Timeout <= 0 || f.httpClient.Timeout > MaxTimeout {
		f.httpClient.Timeout = MaxTimeout
	}

	return f
}

// Fetch downloads the image at url. Any failure is a *FetchFailure of kind
// NetworkError. No retries are made.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchFailure{Kind: NetworkError, URL: url, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &FetchFailure{Kind: NetworkError, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchFailure{Kind: NetworkError, URL: url, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes+1))
	if err != nil {
		return nil, &FetchFailure{Kind: NetworkError, URL: url, Err: err}
	}
	if len(data) > MaxImageBytes {
		return nil, &FetchFailure{Kind: NetworkError, URL: url, Err: fmt.Errorf("image exceeds %d bytes", MaxImageBytes)}
	}

	f.logger.Debug("image fetched", "url", url, "bytes", len(data))
	return data, nil
}
