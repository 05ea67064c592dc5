package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"productlens/schema"
)

// GenAIAdapter talks to Gemini through the official Go SDK.
type GenAIAdapter struct {
	client *genai.Client
	logger *slog.Logger
}

// NewGenAIAdapter creates an SDK client for apiKey.
func NewGenAIAdapter(ctx context.Context, apiKey string, logger *slog.Logger) (*GenAIAdapter, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GenAIAdapter{client: cl, logger: logger}, nil
}

func (a *GenAIAdapter) Family() Family { return FamilyGemini }

func (a *GenAIAdapter) Generate(ctx context.Context, req Request) (*Outcome, error) {
	return generateWithFallback(ctx, a.logger, FamilyGemini, req, a.attempt)
}

// Close releases the SDK connection.
func (a *GenAIAdapter) Close() error {
	return a.client.Close()
}

func (a *GenAIAdapter) attempt(ctx context.Context, req Request) (*schema.ProductSchema, error) {
	m := a.client.GenerativeModel(req.Model)
	configureModel(m, req.System)

	resp, err := m.GenerateContent(ctx, genaiParts(req)...)
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return nil, &BlockedError{Reason: genaiBlockReason(blocked)}
		}
		return nil, transportError(err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, &BlockedError{}
	}
	return parseProduct(genaiText(resp))
}

// configureModel applies structured output and permissive safety settings.
func configureModel(m *genai.GenerativeModel, system string) {
	m.SetTemperature(geminiTemperature)
	m.ResponseMIMEType = "application/json"
	m.ResponseSchema = genaiSchema()
	m.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
	}
	if system != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
}

func genaiParts(req Request) []genai.Part {
	parts := make([]genai.Part, 0, len(req.Images)+1)
	parts = append(parts, genai.Text(req.UserText))
	for _, img := range req.Images {
		parts = append(parts, &genai.Blob{MIMEType: img.MIMEType, Data: img.Data})
	}
	return parts
}

func genaiSchema() *genai.Schema {
	s := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(schema.Fields)),
	}
	for _, f := range schema.Fields {
		var prop *genai.Schema
		switch f.Kind {
		case schema.KindStringList:
			item := &genai.Schema{Type: genai.TypeString}
			if len(f.Enum) > 0 {
				item.Format = "enum"
				item.Enum = f.Enum
			}
			prop = &genai.Schema{Type: genai.TypeArray, Description: f.Description, Items: item}
		default:
			prop = &genai.Schema{Type: genai.TypeString, Description: f.Description, Nullable: f.Nullable}
			if len(f.Enum) > 0 {
				prop.Format = "enum"
				prop.Enum = f.Enum
			}
		}
		s.Properties[f.Name] = prop
		if f.Required {
			s.Required = append(s.Required, f.Name)
		}
	}
	return s
}

func genaiBlockReason(e *genai.BlockedError) string {
	if e.PromptFeedback != nil && e.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return e.PromptFeedback.BlockReason.String()
	}
	if e.Candidate != nil {
		return e.Candidate.FinishReason.String()
	}
	return ""
}

func genaiText(resp *genai.GenerateContentResponse) string {
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		if sb.Len() > 0 {
			return sb.String()
		}
	}
	return ""
}
