package provider

import (
	"context"
	"errors"
	"log/slog"

	"productlens/gemini"
	"productlens/schema"
)

// geminiTemperature keeps Gemini output close to deterministic.
const geminiTemperature = 0.1

// geminiGenerator is the part of the REST client the adapter uses.
type geminiGenerator interface {
	GenerateContent(ctx context.Context, model string, req *gemini.GenerateContentRequest) (*gemini.GenerateContentResponse, error)
}

// GeminiAdapter talks to Gemini over the generateContent REST API.
type GeminiAdapter struct {
	client geminiGenerator
	logger *slog.Logger
}

// NewGeminiAdapter wraps a Gemini REST client.
func NewGeminiAdapter(client *gemini.Client, logger *slog.Logger) *GeminiAdapter {
	return newGeminiAdapter(client, logger)
}

func newGeminiAdapter(client geminiGenerator, logger *slog.Logger) *GeminiAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiAdapter{client: client, logger: logger}
}

func (a *GeminiAdapter) Family() Family { return FamilyGemini }

func (a *GeminiAdapter) Generate(ctx context.Context, req Request) (*Outcome, error) {
	return generateWithFallback(ctx, a.logger, FamilyGemini, req, a.attempt)
}

func (a *GeminiAdapter) attempt(ctx context.Context, req Request) (*schema.ProductSchema, error) {
	resp, err := a.client.GenerateContent(ctx, req.Model, buildGeminiRequest(req))
	if err != nil {
		var apiErr *gemini.APIError
		if errors.As(err, &apiErr) {
			return nil, transportError(apiErr)
		}
		return nil, transportError(err)
	}

	if reason := resp.BlockReason(); reason != "" {
		return nil, &BlockedError{Reason: reason}
	}
	if len(resp.Candidates) == 0 {
		return nil, &BlockedError{}
	}
	return parseProduct(resp.Text())
}

// buildGeminiRequest puts the user text first, then one inline part per
// image, with structured JSON output and permissive safety settings.
func buildGeminiRequest(req Request) *gemini.GenerateContentRequest {
	parts := make([]*gemini.Part, 0, len(req.Images)+1)
	parts = append(parts, &gemini.Part{Text: req.UserText})
	for _, img := range req.Images {
		parts = append(parts, &gemini.Part{
			InlineData: &gemini.InlineData{MIMEType: img.MIMEType, Data: img.Base64()},
		})
	}

	out := &gemini.GenerateContentRequest{
		Contents: []*gemini.Content{{Role: "user", Parts: parts}},
		GenerationConfig: &gemini.GenerationConfig{
			Temperature:      gemini.Float64(geminiTemperature),
			ResponseMimeType: "application/json",
			ResponseSchema:   geminiSchema(),
		},
		SafetySettings: gemini.PermissiveSafetySettings(),
	}
	if req.System != "" {
		out.SystemInstruction = &gemini.Content{Parts: []*gemini.Part{{Text: req.System}}}
	}
	return out
}

// geminiSchema renders the product contract in Gemini's OpenAPI subset.
// Only truly required fields are listed; nullable keys may be omitted.
func geminiSchema() *gemini.Schema {
	s := &gemini.Schema{
		Type:       "OBJECT",
		Properties: make(map[string]*gemini.Schema, len(schema.Fields)),
	}
	for _, f := range schema.Fields {
		prop := &gemini.Schema{Type: "STRING", Description: f.Description, Nullable: f.Nullable, Enum: f.Enum}
		if f.Kind == schema.KindStringList {
			prop = &gemini.Schema{
				Type:        "ARRAY",
				Description: f.Description,
				Items:       &gemini.Schema{Type: "STRING", Enum: f.Enum},
			}
		}
		s.Properties[f.Name] = prop
		if f.Required {
			s.Required = append(s.Required, f.Name)
		}
	}
	return s
}
