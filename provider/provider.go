// Package provider sends analysis requests to multimodal model backends
// and returns results that satisfy the product schema.
//
// Every backend shares one blocked-response fallback: when the first
// attempt is rejected or empty and it carried images, the request is sent
// once more without them.
package provider

import (
	"context"
	"strings"

	"productlens/imaging"
	"productlens/schema"
)

// Family identifies a backend variant.
type Family string

const (
	FamilyGemini Family = "gemini"
	FamilyQwen   Family = "qwen"
	FamilyOpenAI Family = "openai"
)

// Families lists every variant in display order.
var Families = []Family{FamilyOpenAI, FamilyGemini, FamilyQwen}

// Dispatch maps a model identifier to its family. Matching is a
// case-insensitive substring test; unknown models go to OpenAI.
func Dispatch(model string) Family {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, string(FamilyGemini)):
		return FamilyGemini
	case strings.Contains(m, string(FamilyQwen)):
		return FamilyQwen
	default:
		return FamilyOpenAI
	}
}

// ImageProfile returns how single images are encoded for the family.
// Gemini receives the original bytes when possible.
func (f Family) ImageProfile() imaging.Profile {
	if f == FamilyGemini {
		return imaging.HighFidelity
	}
	return imaging.Standard
}

// DisplayName returns the vendor name shown to operators.
func (f Family) DisplayName() string {
	switch f {
	case FamilyGemini:
		return "Google Gemini"
	case FamilyQwen:
		return "Qwen (DashScope)"
	case FamilyOpenAI:
		return "OpenAI"
	default:
		return string(f)
	}
}

// Request is one analysis call.
type Request struct {
	System   string
	UserText string
	Images   imaging.ImageBatch
	Model    string

	// OnRetry is called with the block reason before the text-only retry.
	OnRetry func(reason string)
}

// HasImages reports whether the request carries at least one image.
func (r Request) HasImages() bool {
	return len(r.Images) > 0
}

// TextOnly returns a copy of r with the images removed.
func (r Request) TextOnly() Request {
	r.Images = nil
	return r
}

// Outcome is a successful generation and how it was reached.
type Outcome struct {
	Product *schema.ProductSchema

	// Attempts is 1, or 2 when the text-only retry ran.
	Attempts int

	// TextOnlyRetry is set when the images were dropped after a block.
	TextOnlyRetry bool

	// BlockReason is the moderation reason that triggered the retry.
	BlockReason string
}

// Adapter is a model backend.
type Adapter interface {
	Family() Family
	Generate(ctx context.Context, req Request) (*Outcome, error)
}
