package provider

import (
	"context"
	"log/slog"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"productlens/schema"
)

// DefaultDashScopeURL is the OpenAI-compatible DashScope endpoint.
const DefaultDashScopeURL = "https://dashscope-intl.aliyuncs.com/compatible-mode/v1"

// CompatAdapter talks to OpenAI-compatible endpoints such as DashScope.
// These endpoints rarely honour json_schema, so it asks for json_object
// output and carries the schema in the system prompt.
type CompatAdapter struct {
	client *goopenai.Client
	logger *slog.Logger
}

// NewCompatAdapter creates an adapter for baseURL, defaulting to DashScope.
func NewCompatAdapter(apiKey, baseURL string, logger *slog.Logger) *CompatAdapter {
	cfg := goopenai.DefaultConfig(apiKey)
	cfg.BaseURL = DefaultDashScopeURL
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CompatAdapter{client: goopenai.NewClientWithConfig(cfg), logger: logger}
}

func (a *CompatAdapter) Family() Family { return FamilyQwen }

func (a *CompatAdapter) Generate(ctx context.Context, req Request) (*Outcome, error) {
	return generateWithFallback(ctx, a.logger, FamilyQwen, req, a.attempt)
}

func (a *CompatAdapter) attempt(ctx context.Context, req Request) (*schema.ProductSchema, error) {
	resp, err := a.client.CreateChatCompletion(ctx, buildCompatRequest(req))
	if err != nil {
		return nil, transportError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &BlockedError{}
	}

	choice := resp.Choices[0]
	if choice.FinishReason == goopenai.FinishReasonContentFilter {
		return nil, &BlockedError{Reason: string(choice.FinishReason)}
	}
	if choice.Message.Refusal != "" {
		return nil, &BlockedError{Reason: choice.Message.Refusal}
	}
	return parseProduct(choice.Message.Content)
}

func buildCompatRequest(req Request) goopenai.ChatCompletionRequest {
	parts := []goopenai.ChatMessagePart{{Type: goopenai.ChatMessagePartTypeText, Text: req.UserText}}
	if req.HasImages() {
		parts = append(parts, goopenai.ChatMessagePart{Type: goopenai.ChatMessagePartTypeText, Text: imagesHeader})
		for _, img := range req.Images {
			parts = append(parts, goopenai.ChatMessagePart{
				Type: goopenai.ChatMessagePartTypeImageURL,
				ImageURL: &goopenai.ChatMessageImageURL{
					URL:    img.DataURI(),
					Detail: goopenai.ImageURLDetailLow,
				},
			})
		}
	}

	return goopenai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: compatSystemPrompt(req.System)},
			{Role: goopenai.ChatMessageRoleUser, MultiContent: parts},
		},
		Temperature: openAITemperature,
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}
}

func compatSystemPrompt(system string) string {
	var sb strings.Builder
	sb.WriteString(system)
	if system != "" {
		sb.WriteString("\n\n")
	}
	sb.WriteString("반드시 아래 JSON Schema를 따르는 JSON 객체 하나만 출력하라.\n")
	sb.WriteString(schema.Describe())
	return sb.String()
}
