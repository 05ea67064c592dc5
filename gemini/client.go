package gemini

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

const (
	// BaseURL is the Google AI Studio API base URL
	BaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultTimeout for API requests
	DefaultTimeout = 2 * time.Minute

	// maxLoggedBody bounds response bodies written to debug logs
	maxLoggedBody = 2000
)

// Client is the Google Gemini API client
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL (for testing)
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		parsed, err := url.Parse(baseURL)
		if err != nil {
			return
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return
		}
		if parsed.Host == "" {
			return
		}
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithLogger sets the logger used for request tracing
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a new Google Gemini API client
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	c := &Client{
		apiKey:  apiKey,
		baseURL: BaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// GenerateContent makes a generateContent call for model.
func (c *Client) GenerateContent(ctx context.Context, model string, req *GenerateContentRequest) (*GenerateContentResponse, error) {
	if model == "" {
		model = ModelGemini25Flash
	}
	apiURL := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, url.PathEscape(model), url.QueryEscape(c.apiKey))

	body, err := sonic.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// Don't log the body as it carries base64 images
	c.logger.Debug("gemini request",
		"url", c.sanitize(apiURL),
		"parts", countParts(req),
		"bytes", len(body))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %s", c.sanitize(err.Error()))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	preview := respBody
	if len(preview) > maxLoggedBody {
		preview = preview[:maxLoggedBody]
	}
	c.logger.Debug("gemini response", "status", resp.StatusCode, "body", string(preview))

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
				Status  string `json:"status"`
			} `json:"error"`
		}
		if err := sonic.Unmarshal(respBody, &apiErr); err != nil || apiErr.Error.Message == "" {
			return nil, &APIError{
				StatusCode: resp.StatusCode,
				Message:    fmt.Sprintf("API error (status %d)", resp.StatusCode),
				Details:    strings.TrimSpace(string(preview)),
			}
		}
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    apiErr.Error.Message,
			Details:    apiErr.Error.Status,
		}
	}

	var result GenerateContentResponse
	if err := sonic.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &result, nil
}

// sanitize hides the API key in URLs and transport errors.
func (c *Client) sanitize(s string) string {
	s = strings.ReplaceAll(s, url.QueryEscape(c.apiKey), "***")
	return strings.ReplaceAll(s, c.apiKey, "***")
}

func countParts(req *GenerateContentRequest) int {
	n := 0
	for _, content := range req.Contents {
		n += len(content.Parts)
	}
	return n
}

// Float64 returns a pointer to v, for optional generation parameters.
func Float64(v float64) *float64 {
	return &v
}
