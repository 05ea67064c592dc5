package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"

	"productlens/config"
)

func TestRegistry_For(t *testing.T) {
	cfg := &config.Config{}
	cfg.OpenAI.APIKey = "sk-test"
	cfg.Gemini.APIKey = "gm-test"
	cfg.Gemini.Transport = config.TransportREST

	r := NewRegistry(cfg, nil)
	defer r.Close()

	a, err := r.ForModel(context.Background(), "gpt-4o-mini")
	if err != nil {
		t.Fatalf("ForModel(gpt-4o-mini) error = %v", err)
	}
	if _, ok := a.(*OpenAIAdapter); !ok {
		t.Errorf("ForModel(gpt-4o-mini) = %T, want *OpenAIAdapter", a)
	}

	again, _ := r.ForModel(context.Background(), "gpt-4o")
	if again != a {
		t.Error("registry should reuse adapters per family")
	}

	g, err := r.ForModel(context.Background(), "gemini-2.5-flash")
	if err != nil {
		t.Fatalf("ForModel(gemini) error = %v", err)
	}
	if _, ok := g.(*GeminiAdapter); !ok {
		t.Errorf("ForModel(gemini) = %T, want *GeminiAdapter", g)
	}

	_, err = r.ForModel(context.Background(), "qwen-vl-max")
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("ForModel(qwen) error = %v, want ErrNotConfigured", err)
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry(nil, nil)
	fake := newGeminiAdapter(&fakeGemini{}, nil)
	r.Register(fake)

	a, err := r.For(context.Background(), FamilyGemini)
	if err != nil || a != fake {
		t.Errorf("For(gemini) = (%v, %v), want registered adapter", a, err)
	}
	if _, err := r.For(context.Background(), FamilyOpenAI); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("For(openai) error = %v, want ErrNotConfigured", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestConfigureModel(t *testing.T) {
	m := &genai.GenerativeModel{}
	configureModel(m, "system prompt")

	if m.Temperature == nil || *m.Temperature != float32(geminiTemperature) {
		t.Errorf("Temperature = %v, want %v", m.Temperature, geminiTemperature)
	}
	if m.ResponseMIMEType != "application/json" {
		t.Errorf("ResponseMIMEType = %q", m.ResponseMIMEType)
	}
	if len(m.SafetySettings) != 4 {
		t.Fatalf("SafetySettings = %d, want 4", len(m.SafetySettings))
	}
	for _, s := range m.SafetySettings {
		if s.Threshold != genai.HarmBlockNone {
			t.Errorf("%v threshold = %v, want BLOCK_NONE", s.Category, s.Threshold)
		}
	}
	if m.ResponseSchema == nil || m.ResponseSchema.Type != genai.TypeObject {
		t.Fatal("ResponseSchema should be an object schema")
	}
	gender := m.ResponseSchema.Properties["ai_gender"]
	if gender == nil || len(gender.Enum) != 4 {
		t.Errorf("ai_gender schema = %+v", gender)
	}
	if m.SystemInstruction == nil {
		t.Error("SystemInstruction not set")
	}
}

func TestGenaiParts(t *testing.T) {
	parts := genaiParts(testRequest(2))
	if len(parts) != 3 {
		t.Fatalf("parts = %d, want 3", len(parts))
	}
	if _, ok := parts[0].(genai.Text); !ok {
		t.Errorf("parts[0] = %T, want genai.Text", parts[0])
	}
	if blob, ok := parts[1].(*genai.Blob); !ok || blob.MIMEType != "image/jpeg" {
		t.Errorf("parts[1] = %#v, want jpeg blob", parts[1])
	}
	if len(genaiParts(testRequest(0))) != 1 {
		t.Error("text-only request should have one part")
	}
}
