package tui

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"productlens/analysis"
)

// RenderReport renders everything known about an analysis as plain
// sections: the result JSON, the images sent, the metadata block and the
// extracted detail text.
func RenderReport(res *analysis.AnalysisResult) string {
	var sb strings.Builder

	section := func(title string) {
		sb.WriteString(SubtitleStyle.Render(title))
		sb.WriteString("\n")
	}

	section(fmt.Sprintf("Request %s", res.RequestID))
	sb.WriteString(fmt.Sprintf("model: %s (%s)\n", res.Model, res.Family))
	if res.Product != nil {
		sb.WriteString(fmt.Sprintf("product: %s %s\n", res.Product.PrdNo, res.Product.PrdNm))
	}
	sb.WriteString(imagesLine(res) + "\n\n")

	section("Result")
	if res.Result != nil {
		data, err := sonic.ConfigStd.MarshalIndent(res.Result, "", "  ")
		if err != nil {
			sb.WriteString(ErrorStyle.Render(err.Error()))
		} else {
			sb.Write(data)
		}
	} else {
		sb.WriteString(ErrorStyle.Render(res.Failure))
	}
	sb.WriteString("\n\n")

	section("Images")
	if len(res.UsedImageRefs) == 0 {
		sb.WriteString(MutedStyle.Render("(none)"))
		sb.WriteString("\n")
	}
	for i, ref := range res.UsedImageRefs {
		sb.WriteString(fmt.Sprintf("%2d. %s  %dx%d @%d\n", i+1, ref.URL, ref.Width, ref.Height, ref.Offset))
	}
	sb.WriteString("\n")

	section("Metadata")
	sb.WriteString(res.Metadata)
	sb.WriteString("\n")

	section("Detail text")
	if res.ExtractedText == "" {
		sb.WriteString(MutedStyle.Render("(상세설명 없음)"))
	} else {
		sb.WriteString(res.ExtractedText)
	}
	sb.WriteString("\n")

	return sb.String()
}

// ReportModel is a scrollable full-screen report viewer.
type ReportModel struct {
	viewport viewport.Model
	content  string
	title    string
	ready    bool
}

// NewReportModel creates a viewer for res.
func NewReportModel(res *analysis.AnalysisResult) ReportModel {
	return ReportModel{
		content: RenderReport(res),
		title:   fmt.Sprintf("ProductLens report · %s", res.Model),
	}
}

// Init initializes the model
func (m ReportModel) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m ReportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		chrome := lipgloss.Height(m.headerView()) + lipgloss.Height(m.footerView())
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-chrome)
			m.viewport.SetContent(m.content)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - chrome
		}
	}

	if !m.ready {
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the model
func (m ReportModel) View() string {
	if !m.ready {
		return "\n  Loading..."
	}
	return m.headerView() + "\n" + m.viewport.View() + "\n" + m.footerView()
}

func (m ReportModel) headerView() string {
	return TitleStyle.MarginBottom(0).Render(m.title)
}

func (m ReportModel) footerView() string {
	percent := 0.0
	if m.ready {
		percent = m.viewport.ScrollPercent() * 100
	}
	help := KeyHelp(map[string]string{"↑/↓": "scroll", "q": "close"})
	return help + MutedStyle.Render(fmt.Sprintf("  %3.0f%%", percent))
}

// RunReport shows res in the full-screen viewer until the user closes it.
func RunReport(res *analysis.AnalysisResult) error {
	p := tea.NewProgram(NewReportModel(res), tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}
