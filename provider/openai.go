package provider

import (
	"context"
	"log/slog"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"productlens/schema"
)

const (
	// openAITemperature is used by both OpenAI protocol variants.
	openAITemperature = 0.2

	// imagesHeader precedes the image parts in the user message.
	imagesHeader = "상품 이미지들:"

	finishContentFilter = "content_filter"
)

// OpenAIAdapter talks to the OpenAI chat completions API with strict
// json_schema structured output.
type OpenAIAdapter struct {
	client openai.Client
	logger *slog.Logger
}

// NewOpenAIAdapter creates an adapter. An empty baseURL uses the SDK
// default endpoint.
func NewOpenAIAdapter(apiKey, baseURL string, logger *slog.Logger) *OpenAIAdapter {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// the fallback is the only retry policy
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIAdapter{client: openai.NewClient(opts...), logger: logger}
}

func (a *OpenAIAdapter) Family() Family { return FamilyOpenAI }

func (a *OpenAIAdapter) Generate(ctx context.Context, req Request) (*Outcome, error) {
	return generateWithFallback(ctx, a.logger, FamilyOpenAI, req, a.attempt)
}

func (a *OpenAIAdapter) attempt(ctx context.Context, req Request) (*schema.ProductSchema, error) {
	resp, err := a.client.Chat.Completions.New(ctx, buildOpenAIParams(req))
	if err != nil {
		return nil, transportError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &BlockedError{}
	}

	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return nil, &BlockedError{Reason: choice.Message.Refusal}
	}
	if choice.FinishReason == finishContentFilter {
		return nil, &BlockedError{Reason: finishContentFilter}
	}
	return parseProduct(choice.Message.Content)
}

func buildOpenAIParams(req Request) openai.ChatCompletionNewParams {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(req.System),
		openai.UserMessage(openAIUserParts(req)),
	}

	return openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(req.Model),
		Messages:    messages,
		Temperature: openai.Float(openAITemperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   schema.Name,
					Schema: schema.JSONSchema(),
					Strict: openai.Bool(true),
				},
			},
		},
	}
}

func openAIUserParts(req Request) []openai.ChatCompletionContentPartUnionParam {
	parts := []openai.ChatCompletionContentPartUnionParam{openai.TextContentPart(req.UserText)}
	if !req.HasImages() {
		return parts
	}

	parts = append(parts, openai.TextContentPart(imagesHeader))
	for _, img := range req.Images {
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL:    img.DataURI(),
			Detail: "low",
		}))
	}
	return parts
}
