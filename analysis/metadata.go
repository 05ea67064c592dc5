package analysis

import (
	"slices"
	"strings"

	"productlens/catalog"
)

const missingValue = "정보없음"

// FormatMetadata flattens the product fields the model should trust into
// a fixed text block: basic info, notices, then options. Notices keep
// source order. Option values are deduplicated and sorted.
func FormatMetadata(p *catalog.Product) string {
	if p == nil {
		return "데이터 없음"
	}

	var sb strings.Builder

	sb.WriteString("[기본 정보]\n")
	sb.WriteString("- 브랜드: " + orMissing(p.BrandNm) + "\n")
	sb.WriteString("- 상품명: " + orMissing(p.PrdNm) + "\n")
	sb.WriteString("\n")

	sb.WriteString("[정보고시]\n")
	written := 0
	for _, n := range p.Notices {
		if strings.TrimSpace(n.Title) == "" {
			continue
		}
		sb.WriteString("- " + n.Title + ": " + string(n.Value) + "\n")
		written++
	}
	if written == 0 {
		sb.WriteString("(고시정보 없음)\n")
	}
	sb.WriteString("\n")

	sb.WriteString("[구매 가능 옵션]\n")
	if len(p.Options) == 0 {
		sb.WriteString("(옵션 정보 없음)\n")
	}
	for _, opt := range p.Options {
		name := opt.Name
		if name == "" {
			name = "옵션"
		}
		sb.WriteString("- " + name + ": " + strings.Join(optionValues(opt), ", ") + "\n")
	}

	return sb.String()
}

func optionValues(opt catalog.OptionItem) []string {
	vals := make([]string, 0, len(opt.Values))
	for _, v := range opt.Values {
		if v.Name != "" {
			vals = append(vals, v.Name)
		}
	}
	slices.Sort(vals)
	return slices.Compact(vals)
}

func orMissing(s string) string {
	if strings.TrimSpace(s) == "" {
		return missingValue
	}
	return s
}
