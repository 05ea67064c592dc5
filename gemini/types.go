// Package gemini provides a client for the Google Gemini generateContent
// REST API, used for structured multimodal product analysis.
package gemini

import (
	"strings"
)

// Model constants for Gemini models
const (
	// ModelGemini25Flash is the fast, efficient model for most tasks
	ModelGemini25Flash = "gemini-2.5-flash"
	// ModelGemini25Pro is Gemini 2.5 Pro for complex reasoning
	ModelGemini25Pro = "gemini-2.5-pro"
	// ModelGemini20Flash is the previous generation fast model
	ModelGemini20Flash = "gemini-2.0-flash"
)

// Harm categories accepted in safety settings
const (
	HarmCategoryHarassment       = "HARM_CATEGORY_HARASSMENT"
	HarmCategoryHateSpeech       = "HARM_CATEGORY_HATE_SPEECH"
	HarmCategorySexuallyExplicit = "HARM_CATEGORY_SEXUALLY_EXPLICIT"
	HarmCategoryDangerousContent = "HARM_CATEGORY_DANGEROUS_CONTENT"

	// BlockNone disables blocking for a category
	BlockNone = "BLOCK_NONE"
)

// PermissiveSafetySettings sets every adjustable category to BLOCK_NONE.
// Product photos of swimwear and underwear trip default thresholds.
func PermissiveSafetySettings() []*SafetySetting {
	categories := []string{
		HarmCategoryHarassment,
		HarmCategoryHateSpeech,
		HarmCategorySexuallyExplicit,
		HarmCategoryDangerousContent,
	}
	settings := make([]*SafetySetting, len(categories))
	for i, c := range categories {
		settings[i] = &SafetySetting{Category: c, Threshold: BlockNone}
	}
	return settings
}

// APIError represents an error from the Gemini API
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

// GenerateContentRequest is the request structure for the Gemini API
type GenerateContentRequest struct {
	Contents          []*Content        `json:"contents"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
	SafetySettings    []*SafetySetting  `json:"safetySettings,omitempty"`
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
}

// Content represents a content block in the API
type Content struct {
	Role  string  `json:"role,omitempty"`
	Parts []*Part `json:"parts"`
}

// Part represents a part of content (text or inline data)
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// InlineData represents binary data (images) inline
type InlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // Base64 encoded
}

// GenerationConfig contains generation parameters
type GenerationConfig struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"topP,omitempty"`
	MaxOutputTokens  *int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string   `json:"responseMimeType,omitempty"`
	ResponseSchema   *Schema  `json:"responseSchema,omitempty"`
}

// Schema is the OpenAPI subset Gemini accepts for structured output.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Nullable    bool               `json:"nullable,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// SafetySetting configures content safety filters
type SafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// GenerateContentResponse is the response from the Gemini API
type GenerateContentResponse struct {
	Candidates     []*Candidate    `json:"candidates"`
	PromptFeedback *PromptFeedback `json:"promptFeedback,omitempty"`
	UsageMetadata  *UsageMetadata  `json:"usageMetadata,omitempty"`
}

// PromptFeedback is set when the prompt itself was rejected
type PromptFeedback struct {
	BlockReason   string          `json:"blockReason,omitempty"`
	SafetyRatings []*SafetyRating `json:"safetyRatings,omitempty"`
}

// Candidate represents a generated response candidate
type Candidate struct {
	Content       *Content        `json:"content"`
	FinishReason  string          `json:"finishReason"`
	SafetyRatings []*SafetyRating `json:"safetyRatings,omitempty"`
}

// SafetyRating represents a content safety rating
type SafetyRating struct {
	Category    string `json:"category"`
	Probability string `json:"probability"`
	Blocked     bool   `json:"blocked,omitempty"`
}

// UsageMetadata contains token usage information
type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// finish reasons that mean the candidate was withheld by moderation
var blockedFinishReasons = map[string]bool{
	"SAFETY":             true,
	"PROHIBITED_CONTENT": true,
	"BLOCKLIST":          true,
	"SPII":               true,
	"IMAGE_SAFETY":       true,
}

// Text concatenates the text parts of the first candidate.
func (r *GenerateContentResponse) Text() string {
	if r == nil || len(r.Candidates) == 0 || r.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// BlockReason reports why the response was withheld, or "" if it was not.
func (r *GenerateContentResponse) BlockReason() string {
	if r == nil {
		return ""
	}
	if r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "" {
		return r.PromptFeedback.BlockReason
	}
	if len(r.Candidates) > 0 && blockedFinishReasons[r.Candidates[0].FinishReason] {
		return r.Candidates[0].FinishReason
	}
	return ""
}
