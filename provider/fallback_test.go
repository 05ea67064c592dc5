package provider

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"productlens/imaging"
	"productlens/schema"
)

// scripted replays results in order and records the requests it saw.
type scripted struct {
	results []error
	seen    []Request
}

func (s *scripted) attempt(ctx context.Context, req Request) (*schema.ProductSchema, error) {
	s.seen = append(s.seen, req)
	i := len(s.seen) - 1
	if i >= len(s.results) {
		return nil, errors.New("unexpected attempt")
	}
	if err := s.results[i]; err != nil {
		return nil, err
	}
	return &schema.ProductSchema{Gender: "여성"}, nil
}

func withImages(n int) Request {
	req := Request{System: "sys", UserText: "text", Model: "gpt-4o"}
	for i := 0; i < n; i++ {
		req.Images = append(req.Images, imaging.EncodedImage{MIMEType: "image/jpeg", Data: []byte{byte(i)}})
	}
	return req
}

func TestGenerateWithFallback(t *testing.T) {
	blocked := &BlockedError{Reason: "SAFETY"}
	transport := transportError(errors.New("connection reset"))
	invalid := &schema.ValidationError{Field: "ai_gender", Reason: "bad"}

	tests := []struct {
		name         string
		images       int
		results      []error
		wantAttempts int
		wantTextOnly bool
		wantErr      bool
		wantReason   string
	}{
		{"first attempt succeeds", 2, []error{nil}, 1, false, false, ""},
		{"blocked with images retries once", 2, []error{blocked, nil}, 2, true, false, "SAFETY"},
		{"transport error with images retries once", 1, []error{transport, nil}, 2, true, false, UnknownReason},
		{"empty response with images retries once", 1, []error{ErrEmptyResponse, nil}, 2, true, false, UnknownReason},
		{"blocked without images fails", 0, []error{blocked}, 1, false, true, "SAFETY"},
		{"transport error without images fails", 0, []error{transport}, 1, false, true, UnknownReason},
		{"retry also blocked fails", 3, []error{blocked, &BlockedError{Reason: "OTHER"}}, 2, true, true, "OTHER"},
		{"retry transport failure fails", 3, []error{blocked, transport}, 2, true, true, ""},
		{"validation failure is terminal", 2, []error{invalid}, 1, false, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &scripted{results: tt.results}
			req := withImages(tt.images)

			out, err := generateWithFallback(context.Background(), slog.Default(), FamilyOpenAI, req, s.attempt)

			if len(s.seen) != tt.wantAttempts {
				t.Fatalf("attempts = %d, want %d", len(s.seen), tt.wantAttempts)
			}
			if len(s.seen[0].Images) != tt.images {
				t.Errorf("first attempt sent %d images, want %d", len(s.seen[0].Images), tt.images)
			}
			if tt.wantAttempts == 2 {
				retry := s.seen[1]
				if len(retry.Images) != 0 {
					t.Errorf("retry sent %d images, want 0", len(retry.Images))
				}
				if retry.UserText != req.UserText || retry.System != req.System || retry.Model != req.Model {
					t.Errorf("retry changed the request: %+v", retry)
				}
			}

			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if out != nil {
					t.Errorf("outcome = %+v, want nil on failure", out)
				}
				var be *BlockedError
				if tt.wantReason != "" {
					if !errors.As(err, &be) || be.reason() != tt.wantReason {
						t.Errorf("error = %v, want BlockedError(%s)", err, tt.wantReason)
					}
				}
				return
			}

			if out.Product == nil {
				t.Fatal("Product is nil on success")
			}
			if out.Attempts != tt.wantAttempts || out.TextOnlyRetry != tt.wantTextOnly {
				t.Errorf("outcome = %+v", out)
			}
			if out.BlockReason != tt.wantReason {
				t.Errorf("BlockReason = %q, want %q", out.BlockReason, tt.wantReason)
			}
		})
	}
}

func TestGenerateWithFallback_NoImagesNoRetry(t *testing.T) {
	s := &scripted{results: []error{ErrEmptyResponse, nil}}

	out, err := generateWithFallback(context.Background(), slog.Default(), FamilyGemini, withImages(0), s.attempt)
	if out != nil || err == nil {
		t.Fatalf("got (%v, %v), want nil result and error", out, err)
	}
	if len(s.seen) != 1 {
		t.Errorf("attempts = %d, want 1", len(s.seen))
	}
	if err.Error() != "request blocked by provider (reason: Unknown)" {
		t.Errorf("error = %q", err)
	}
}

func TestGenerateWithFallback_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &scripted{results: []error{transportError(context.Canceled), nil}}
	_, err := generateWithFallback(ctx, slog.Default(), FamilyQwen, withImages(2), s.attempt)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(s.seen) != 1 {
		t.Errorf("canceled request retried: %d attempts", len(s.seen))
	}
}

func TestState_String(t *testing.T) {
	states := map[State]string{
		StateInitial:       "initial",
		StateBlocked:       "blocked",
		StateTextOnlyRetry: "text_only_retry",
		StateDone:          "done",
		StateFailed:        "failed",
		State(42):          "unknown",
	}
	for s, want := range states {
		if s.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", s, s.String(), want)
		}
	}
}

func TestTransportError(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := transportError(cause)
	if !errors.Is(err, ErrTransport) || !errors.Is(err, cause) {
		t.Errorf("transportError() = %v, should wrap both ErrTransport and cause", err)
	}
}
