package catalog

import (
	"context"
	"errors"
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
	// DefaultBaseURL serves product records and halfclub search
	DefaultBaseURL = "https://hapix.halfclub.com"

	// BoriboriSearchURL serves search for site 2
	BoriboriSearchURL = "https://apix.boribori.co.kr"

	// DefaultCDNURL hosts product images
	DefaultCDNURL = "https://cdn2.halfclub.com"

	// DefaultImageDims is the CDN resize box
	DefaultImageDims = "1000x1000"

	// DefaultTimeout for catalog requests
	DefaultTimeout = 5 * time.Second

	// DefaultSiteCd is halfclub
	DefaultSiteCd = "1"

	// SearchLimit is the number of hits requested per search
	SearchLimit = 10
)

// ErrNotFound is returned when the catalog has no record for a product.
var ErrNotFound = errors.New("product not found")

// APIError represents a non-200 catalog response
type APIError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// Client is the catalog API client
type Client struct {
	baseURL    string
	searchURLs map[string]string
	siteCd     string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithBaseURL sets the product API base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if u, ok := validBaseURL(baseURL); ok {
			c.baseURL = u
		}
	}
}

// WithSearchBaseURL sets the search host for a site code
func WithSearchBaseURL(siteCd, baseURL string) ClientOption {
	return func(c *Client) {
		if u, ok := validBaseURL(baseURL); ok {
			c.searchURLs[siteCd] = u
		}
	}
}

// WithSiteCd sets the site used for product lookups
func WithSiteCd(siteCd string) ClientOption {
	return func(c *Client) {
		if siteCd != "" {
			c.siteCd = siteCd
		}
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
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func validBaseURL(raw string) (string, bool) {
	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", false
	}
	return strings.TrimSuffix(raw, "/"), true
}

// NewClient creates a catalog client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		searchURLs: map[string]string{
			"1": DefaultBaseURL,
			"2": BoriboriSearchURL,
		},
		siteCd:     DefaultSiteCd,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetProduct fetches and normalizes one product record.
func (c *Client) GetProduct(ctx context.Context, prdNo string) (*Product, error) {
	prdNo = strings.TrimSpace(prdNo)
	if prdNo == "" {
		return nil, fmt.Errorf("product number is required")
	}

	params := url.Values{
		"countryCd": {"001"},
		"langCd":    {"001"},
		"siteCd":    {c.siteCd},
		"deviceCd":  {"001"},
		"mandM":     {"halfclub"},
	}
	endpoint := fmt.Sprintf("%s/product/products/withoutPrice/%s?%s", c.baseURL, url.PathEscape(prdNo), params.Encode())

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var env productEnvelope
	if err := sonic.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to parse product %s: %w", prdNo, err)
	}
	if env.Data == nil {
		// some responses are not wrapped
		var raw rawProduct
		if err := sonic.Unmarshal(body, &raw); err != nil || (raw.PrdNm == "" && raw.PrdNo == "") {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, prdNo)
		}
		env.Data = &raw
	}

	p := env.Data.normalize(prdNo)
	c.logger.Debug("catalog product loaded",
		"prd_no", p.PrdNo,
		"images", len(p.Image.Keys()),
		"options", len(p.Options),
		"notices", len(p.Notices))
	return p, nil
}

// Search returns up to SearchLimit hits for keyword on siteCd.
func (c *Client) Search(ctx context.Context, siteCd, keyword string) ([]SearchHit, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, fmt.Errorf("keyword is required")
	}
	if siteCd == "" {
		siteCd = DefaultSiteCd
	}
	base, ok := c.searchURLs[siteCd]
	if !ok {
		base = c.baseURL
	}

	params := url.Values{
		"keyword": {keyword},
		"siteCd":  {siteCd},
		"device":  {"pc"},
		"limit":   {fmt.Sprintf("0,%d", SearchLimit)},
		"sortSeq": {"12"},
	}
	body, err := c.get(ctx, base+"/searches/prdList/?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var env searchEnvelope
	if err := sonic.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	hits := make([]SearchHit, 0, len(env.Data.Result.Hits.Hits))
	for _, h := range env.Data.Result.Hits.Hits {
		hits = append(hits, h.Source.hit())
	}
	c.logger.Debug("catalog search", "keyword", keyword, "site_cd", siteCd, "hits", len(hits))
	return hits, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		details := strings.TrimSpace(string(body))
		if len(details) > 200 {
			details = details[:200]
		}
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("catalog API error (status %d)", resp.StatusCode),
			Details:    details,
		}
	}
	return body, nil
}
