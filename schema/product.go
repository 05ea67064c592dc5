// Package schema defines the structured product description every model
// backend must return, and validates raw model output against it.
package schema

import (
	"fmt"
	"slices"
	"strings"

	"github.com/bytedance/sonic"
)

// ProductSchema is the structured analysis result.
type ProductSchema struct {
	Description string   `json:"description"`
	PrdNo       *string  `json:"prdNo"`
	PrdNm       *string  `json:"prdNm"`
	BrandNm     *string  `json:"brandNm"`
	CategoryL   string   `json:"ai_category_L"`
	CategoryM   string   `json:"ai_category_M"`
	CategoryS   string   `json:"ai_category_S"`
	Gender      string   `json:"ai_gender"`
	Season      []string `json:"ai_season"`
	Style       []string `json:"ai_style"`
	Pattern     string   `json:"ai_pattern"`
	Fit         string   `json:"ai_fit"`
	Size        string   `json:"ai_size"`
	TopLength   *string  `json:"ai_top_length"`
	PantsLength *string  `json:"ai_pants_length"`
	SkirtLength *string  `json:"ai_skirt_length"`
}

// Kind is the JSON shape of a field.
type Kind int

const (
	KindString Kind = iota
	KindStringList
)

// Field describes one property of the contract.
type Field struct {
	Name        string
	Kind        Kind
	Description string

	// Required fields must be present in model output.
	Required bool

	// Nullable fields may be JSON null.
	Nullable bool

	// Enum restricts values (list items for KindStringList).
	Enum []string
}

var (
	Genders = []string{"남성", "여성", "남녀공용", "키즈"}
	Seasons = []string{"봄", "여름", "가을", "겨울", "사계절"}

	// Styles and Patterns are the classification vocabularies given to the
	// model. They guide output and are not enforced.
	Styles   = []string{"미니멀", "클래식", "캐주얼", "페미닌", "로맨틱", "스포티", "스트리트", "휴양지"}
	Patterns = []string{"무지", "스트라이프", "체크", "플로럴", "도트", "로고/그래픽", "레터링", "애니멀", "밀리터리", "보헤미안/에스닉", "기하학", "컬러블록/그라데이션", "타이다이"}
)

// Fields is the contract, in output order.
var Fields = []Field{
	{Name: "description", Kind: KindString, Required: true,
		Description: "HTML 텍스트의 정보와 이미지의 시각적 특징(색상, 재질, 분위기, 디자인 디테일)을 종합적으로 반영한 상세한 상품 설명, 고객을 위한 매력적인 상품 마케팅 문구 (500자 이내 요약)"},
	{Name: "prdNo", Kind: KindString, Required: true, Nullable: true, Description: "상품번호"},
	{Name: "prdNm", Kind: KindString, Required: true, Nullable: true, Description: "상품명"},
	{Name: "brandNm", Kind: KindString, Required: true, Nullable: true, Description: "브랜드명"},
	{Name: "ai_category_L", Kind: KindString, Required: true,
		Description: "상품의 대분류 카테고리 (예: 여성, 남성, 유니섹스, 언더웨어, 골프, 스포츠, 아웃도어 등)"},
	{Name: "ai_category_M", Kind: KindString, Required: true,
		Description: "상품의 중분류 카테고리 (예: 원피스, 가디건, 셔츠, 팬츠 등)"},
	{Name: "ai_category_S", Kind: KindString, Required: true,
		Description: "상품의 소분류 카테고리 (예: 트렌치, 무스탕, 바람막이, 여성골프화, 러닝화 등)"},
	{Name: "ai_gender", Kind: KindString, Required: true, Enum: Genders,
		Description: "추천 성별 (남성, 여성, 남녀공용, 키즈 중 택1)"},
	{Name: "ai_season", Kind: KindStringList, Required: true, Enum: Seasons,
		Description: "착용하기 좋은 계절 (봄, 여름, 가을, 겨울, 사계절 중 복수 선택 가능)"},
	{Name: "ai_style", Kind: KindStringList, Required: true,
		Description: "스타일 키워드 (미니멀, 클래식, 캐주얼, 스트리트 등 분석된 스타일 모두 나열)"},
	{Name: "ai_pattern", Kind: KindString, Required: true,
		Description: "패턴 정보 (무지, 스트라이프, 체크, 로고, 그래픽 등)"},
	{Name: "ai_fit", Kind: KindString, Required: true,
		Description: "핏 정보 (슬림핏, 레귤러핏, 오버핏, 루즈핏 등)"},
	{Name: "ai_size", Kind: KindString, Required: true, Description: "사이즈"},
	{Name: "ai_top_length", Kind: KindString, Nullable: true, Description: "상의기장"},
	{Name: "ai_pants_length", Kind: KindString, Nullable: true, Description: "바지기장"},
	{Name: "ai_skirt_length", Kind: KindString, Nullable: true, Description: "치마기장"},
}

// ValidationError reports model output that does not match the contract.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "schema validation failed: " + e.Reason
	}
	return fmt.Sprintf("schema validation failed: field %q: %s", e.Field, e.Reason)
}

// Parse validates raw model output and decodes it. Code fences around the
// JSON are tolerated. Any mismatch is a *ValidationError.
func Parse(data []byte) (*ProductSchema, error) {
	cleaned := StripCodeFences(string(data))
	if cleaned == "" {
		return nil, &ValidationError{Reason: "empty output"}
	}

	var raw map[string]any
	if err := sonic.UnmarshalString(cleaned, &raw); err != nil {
		return nil, &ValidationError{Reason: "output is not a JSON object: " + err.Error()}
	}
	if raw == nil {
		return nil, &ValidationError{Reason: "output is null"}
	}

	for _, f := range Fields {
		if err := checkField(f, raw); err != nil {
			return nil, err
		}
	}

	var p ProductSchema
	if err := sonic.UnmarshalString(cleaned, &p); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}
	return &p, nil
}

func checkField(f Field, raw map[string]any) error {
	v, ok := raw[f.Name]
	if !ok {
		if f.Required {
			return &ValidationError{Field: f.Name, Reason: "required field is missing"}
		}
		return nil
	}
	if v == nil {
		if f.Nullable {
			return nil
		}
		return &ValidationError{Field: f.Name, Reason: "must not be null"}
	}

	switch f.Kind {
	case KindString:
		s, ok := v.(string)
		if !ok {
			return &ValidationError{Field: f.Name, Reason: fmt.Sprintf("expected string, got %T", v)}
		}
		return checkEnum(f, s)
	case KindStringList:
		items, ok := v.([]any)
		if !ok {
			return &ValidationError{Field: f.Name, Reason: fmt.Sprintf("expected list of strings, got %T", v)}
		}
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return &ValidationError{Field: f.Name, Reason: fmt.Sprintf("expected list of strings, found %T", item)}
			}
			if err := checkEnum(f, s); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkEnum(f Field, value string) error {
	if len(f.Enum) == 0 || slices.Contains(f.Enum, value) {
		return nil
	}
	return &ValidationError{Field: f.Name, Reason: fmt.Sprintf("%q is not one of %s", value, strings.Join(f.Enum, ", "))}
}

// Validate checks an already decoded value against the contract's
// enumerations and list fields.
func (p *ProductSchema) Validate() error {
	if p == nil {
		return &ValidationError{Reason: "result is nil"}
	}
	if !slices.Contains(Genders, p.Gender) {
		return &ValidationError{Field: "ai_gender", Reason: fmt.Sprintf("%q is not one of %s", p.Gender, strings.Join(Genders, ", "))}
	}
	if p.Season == nil {
		return &ValidationError{Field: "ai_season", Reason: "required field is missing"}
	}
	for _, s := range p.Season {
		if !slices.Contains(Seasons, s) {
			return &ValidationError{Field: "ai_season", Reason: fmt.Sprintf("%q is not one of %s", s, strings.Join(Seasons, ", "))}
		}
	}
	if p.Style == nil {
		return &ValidationError{Field: "ai_style", Reason: "required field is missing"}
	}
	return nil
}

// Marshal encodes the result as JSON.
func (p *ProductSchema) Marshal() ([]byte, error) {
	return sonic.Marshal(p)
}

// StripCodeFences removes a surrounding markdown code block, if any.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Value returns the string behind p, or "" when p is nil.
func Value(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
