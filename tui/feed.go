package tui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"productlens/analysis"
)

// FeedMessageType represents the kind of an activity line.
type FeedMessageType string

const (
	MsgTypeStatus   FeedMessageType = "status"
	MsgTypeRequest  FeedMessageType = "request"
	MsgTypeWarning  FeedMessageType = "warning"
	MsgTypeError    FeedMessageType = "error"
	MsgTypeComplete FeedMessageType = "complete"
)

// FeedMessage is one line of the activity feed.
type FeedMessage struct {
	Timestamp time.Time
	Type      FeedMessageType
	Title     string
	Detail    string
}

// Feed collects analysis progress for display. It is safe for concurrent
// use, so it can be fed from a progress callback while a spinner runs.
type Feed struct {
	mu       sync.Mutex
	messages []FeedMessage

	// MaxMessages limits the number of messages kept (0 = unlimited)
	MaxMessages int
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{MaxMessages: 50}
}

// Add appends a message.
func (f *Feed) Add(msg FeedMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	if f.MaxMessages > 0 && len(f.messages) > f.MaxMessages {
		f.messages = f.messages[len(f.messages)-f.MaxMessages:]
	}
}

// Progress records an analysis progress update. It satisfies
// analysis.ProgressCallback.
func (f *Feed) Progress(u analysis.ProgressUpdate) {
	f.Add(FeedMessage{Type: messageType(u.Stage), Title: u.Message})
}

func messageType(s analysis.Stage) FeedMessageType {
	switch s {
	case analysis.StageModel:
		return MsgTypeRequest
	case analysis.StageRetry:
		return MsgTypeWarning
	case analysis.StageFailed:
		return MsgTypeError
	case analysis.StageDone:
		return MsgTypeComplete
	default:
		return MsgTypeStatus
	}
}

// Messages returns a copy of the feed.
func (f *Feed) Messages() []FeedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FeedMessage, len(f.messages))
	copy(out, f.messages)
	return out
}

// Clear removes all messages.
func (f *Feed) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = nil
}

// Render renders all messages, one per line.
func (f *Feed) Render() string {
	msgs := f.Messages()
	if len(msgs) == 0 {
		return MutedStyle.Render("  Waiting for activity...")
	}

	lines := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		lines = append(lines, renderMessage(msg))
	}
	return strings.Join(lines, "\n")
}

func renderMessage(msg FeedMessage) string {
	icon, style := messageStyle(msg.Type)
	timestamp := MutedStyle.Render(msg.Timestamp.Format("15:04:05"))

	var suffix string
	if msg.Detail != "" {
		suffix = " " + MutedStyle.Render("("+truncateString(msg.Detail, 60)+")")
	}
	return fmt.Sprintf("%s %s %s%s", timestamp, style.Render(icon), style.Render(msg.Title), suffix)
}

func messageStyle(t FeedMessageType) (string, lipgloss.Style) {
	switch t {
	case MsgTypeRequest:
		return "[>]", InfoStyle
	case MsgTypeWarning:
		return "[~]", WarningStyle
	case MsgTypeError:
		return "[!]", ErrorStyle
	case MsgTypeComplete:
		return "[x]", SuccessStyle
	default:
		return "[-]", lipgloss.NewStyle().Foreground(ColorPrimary)
	}
}

// RenderFeedBox renders the feed in a titled box.
func RenderFeedBox(feed *Feed, title string, width int) string {
	box := BoxStyle.
		Width(width).
		Padding(0, 1).
		MarginTop(0)

	return TitleStyle.Render(title) + "\n" + box.Render(feed.Render())
}

func truncateString(s string, maxRunes int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")

	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	return string(r[:maxRunes-3]) + "..."
}

func formatDataSize(bytes int) string {
	const (
		KB = 1024
		MB = KB * 1024
	)

	switch {
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
