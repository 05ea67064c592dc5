package tui

import (
	"fmt"
	"strings"

	"productlens/analysis"
	"productlens/catalog"
	"productlens/schema"
)

const emptyField = "-"

// ProductCard summarises a fetched product before analysis.
func ProductCard(p *catalog.Product, imageCount, width int) string {
	rows := [][2]string{
		{"상품번호", p.PrdNo},
		{"상품명", p.PrdNm},
		{"브랜드", p.BrandNm},
		{"카테고리", p.Category.Path()},
		{"이미지", fmt.Sprintf("%d", imageCount)},
		{"URL", catalog.ProductURL(p.PrdNo)},
	}
	if opts := optionSummary(p.Options); opts != "" {
		rows = append(rows, [2]string{"옵션", opts})
	}
	return Card("상품 정보", renderRows(rows), width)
}

func optionSummary(opts []catalog.OptionItem) string {
	parts := make([]string, 0, len(opts))
	for _, o := range opts {
		vals := make([]string, 0, len(o.Values))
		for _, v := range o.Values {
			vals = append(vals, v.Name)
		}
		parts = append(parts, o.Name+"("+strings.Join(vals, "/")+")")
	}
	return strings.Join(parts, ", ")
}

// ResultCard renders a successful analysis.
func ResultCard(res *analysis.AnalysisResult, width int) string {
	r := res.Result
	if r == nil {
		return FailureBox(res.Failure, width)
	}

	rows := [][2]string{
		{"카테고리", joinNonEmpty(" > ", r.CategoryL, r.CategoryM, r.CategoryS)},
		{"성별", r.Gender},
		{"계절", strings.Join(r.Season, ", ")},
		{"스타일", strings.Join(r.Style, ", ")},
		{"핏", r.Fit},
		{"패턴", r.Pattern},
		{"사이즈", r.Size},
	}
	for _, l := range []struct {
		label string
		value *string
	}{
		{"상의 기장", r.TopLength},
		{"바지 기장", r.PantsLength},
		{"스커트 기장", r.SkirtLength},
	} {
		if v := schema.Value(l.value); v != "" {
			rows = append(rows, [2]string{l.label, v})
		}
	}

	var sb strings.Builder
	sb.WriteString(renderRows(rows))
	sb.WriteString("\n\n")
	sb.WriteString(BodyStyle.Render("> " + r.Description))
	sb.WriteString("\n\n")
	sb.WriteString(modeBadge(res))
	sb.WriteString(" ")
	sb.WriteString(MutedStyle.Render(imagesLine(res)))
	if res.TextOnlyRetry {
		sb.WriteString("\n")
		sb.WriteString(BadgeWarningStyle.Render("TEXT ONLY"))
		sb.WriteString(" ")
		sb.WriteString(WarningStyle.Render(fmt.Sprintf("images were blocked (%s); result is based on text only", res.BlockReason)))
	}

	title := fmt.Sprintf("AI 분석 리포트 (%s, %s)", res.Model, res.Family.DisplayName())
	return Card(title, sb.String(), width)
}

// modeBadge names what the model actually saw.
func modeBadge(res *analysis.AnalysisResult) string {
	switch {
	case res.TextOnlyRetry:
		return BadgeWarningStyle.Render("RETRIED")
	case len(res.Batch) > 0:
		return BadgeStyle.Render("IMAGES + TEXT")
	default:
		return BadgeStyle.Render("TEXT")
	}
}

func imagesLine(res *analysis.AnalysisResult) string {
	size := 0
	for _, img := range res.Batch {
		size += img.Size()
	}
	return fmt.Sprintf("images sent: %d (%s) · attempts: %d · %.1fs",
		len(res.Batch), formatDataSize(size), res.Attempts, res.Elapsed.Seconds())
}

// FailureBox renders an analysis failure.
func FailureBox(msg string, width int) string {
	if msg == "" {
		msg = "analysis returned no result"
	}
	return StatusCard("[!]", "분석된 결과가 없습니다", msg, StepError, width)
}

func renderRows(rows [][2]string) string {
	labelWidth := 0
	for _, r := range rows {
		labelWidth = max(labelWidth, len([]rune(r[0])))
	}

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		value := r[1]
		if strings.TrimSpace(value) == "" {
			value = emptyField
		}
		pad := strings.Repeat(" ", labelWidth-len([]rune(r[0])))
		lines = append(lines, LabelStyle.Render(r[0]+pad)+"  "+BodyStyle.Render(value))
	}
	return strings.Join(lines, "\n")
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
