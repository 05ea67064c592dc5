package schema

import (
	"errors"
	"strings"
	"testing"
)

const validOutput = `{
  "description": "부드러운 코튼 소재의 베이직 티셔츠",
  "prdNo": "1234567",
  "prdNm": "베이직 라운드 티셔츠",
  "brandNm": null,
  "ai_category_L": "여성",
  "ai_category_M": "티셔츠",
  "ai_category_S": "반팔티",
  "ai_gender": "여성",
  "ai_season": ["봄", "여름"],
  "ai_style": ["캐주얼", "미니멀"],
  "ai_pattern": "무지",
  "ai_fit": "레귤러핏",
  "ai_size": "S, M, L",
  "ai_top_length": "크롭"
}`

func TestParse_Valid(t *testing.T) {
	p, err := Parse([]byte(validOutput))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if p.Gender != "여성" {
		t.Errorf("Gender = %q, want 여성", p.Gender)
	}
	if Value(p.PrdNo) != "1234567" {
		t.Errorf("PrdNo = %q, want 1234567", Value(p.PrdNo))
	}
	if p.BrandNm != nil {
		t.Errorf("BrandNm = %q, want nil", *p.BrandNm)
	}
	if Value(p.TopLength) != "크롭" {
		t.Errorf("TopLength = %q, want 크롭", Value(p.TopLength))
	}
	if p.PantsLength != nil || p.SkirtLength != nil {
		t.Error("absent length fields should decode as nil")
	}
	if len(p.Season) != 2 || p.Season[1] != "여름" {
		t.Errorf("Season = %v, want [봄 여름]", p.Season)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestParse_CodeFence(t *testing.T) {
	fenced := "```json\n" + validOutput + "\n```"
	if _, err := Parse([]byte(fenced)); err != nil {
		t.Fatalf("Parse() with code fence error = %v", err)
	}
}

func TestParse_Invalid(t *testing.T) {
	replace := func(old, new string) string {
		if !strings.Contains(validOutput, old) {
			t.Fatalf("fixture does not contain %q", old)
		}
		return strings.Replace(validOutput, old, new, 1)
	}

	tests := []struct {
		name  string
		input string
		field string
	}{
		{"empty", "", ""},
		{"not json", "I cannot help with that.", ""},
		{"array", `["여성"]`, ""},
		{"null", "null", ""},
		{"missing required", replace(`"ai_fit": "레귤러핏",`, ""), "ai_fit"},
		{"missing nullable required", replace(`"brandNm": null,`, ""), "brandNm"},
		{"gender out of enum", replace(`"ai_gender": "여성"`, `"ai_gender": "unisex"`), "ai_gender"},
		{"season out of enum", replace(`["봄", "여름"]`, `["봄", "장마"]`), "ai_season"},
		{"season not list", replace(`["봄", "여름"]`, `"봄"`), "ai_season"},
		{"style item not string", replace(`["캐주얼", "미니멀"]`, `["캐주얼", 3]`), "ai_style"},
		{"null description", replace(`"부드러운 코튼 소재의 베이직 티셔츠"`, "null"), "description"},
		{"number name", replace(`"베이직 라운드 티셔츠"`, "42"), "prdNm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse([]byte(tt.input))
			if err == nil {
				t.Fatalf("Parse() = %+v, expected error", p)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Parse() error = %T, want *ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("ValidationError.Field = %q, want %q", ve.Field, tt.field)
			}
		})
	}
}

func TestProductSchema_Validate(t *testing.T) {
	base := func() *ProductSchema {
		return &ProductSchema{Gender: "남녀공용", Season: []string{"사계절"}, Style: []string{}}
	}

	tests := []struct {
		name    string
		mutate  func(p *ProductSchema)
		wantErr bool
	}{
		{"valid", func(p *ProductSchema) {}, false},
		{"bad gender", func(p *ProductSchema) { p.Gender = "" }, true},
		{"bad season", func(p *ProductSchema) { p.Season = []string{"우기"} }, true},
		{"nil season", func(p *ProductSchema) { p.Season = nil }, true},
		{"nil style", func(p *ProductSchema) { p.Style = nil }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base()
			tt.mutate(p)
			if err := p.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	var nilSchema *ProductSchema
	if nilSchema.Validate() == nil {
		t.Error("Validate() on nil should fail")
	}
}

func TestJSONSchema(t *testing.T) {
	s := JSONSchema()

	if s["additionalProperties"] != false {
		t.Error("schema should forbid additional properties")
	}
	required, ok := s["required"].([]string)
	if !ok || len(required) != len(Fields) {
		t.Fatalf("required = %v, want all %d fields", s["required"], len(Fields))
	}

	props := s["properties"].(map[string]any)
	gender := props["ai_gender"].(map[string]any)
	if enum, _ := gender["enum"].([]string); len(enum) != len(Genders) {
		t.Errorf("ai_gender enum = %v, want %v", gender["enum"], Genders)
	}

	brand := props["brandNm"].(map[string]any)
	types, ok := brand["type"].([]string)
	if !ok || len(types) != 2 || types[1] != "null" {
		t.Errorf("brandNm type = %v, want [string null]", brand["type"])
	}

	season := props["ai_season"].(map[string]any)
	if season["type"] != "array" {
		t.Errorf("ai_season type = %v, want array", season["type"])
	}

	if !strings.Contains(Describe(), `"ai_skirt_length"`) {
		t.Error("Describe() should list every property")
	}
}

func TestLookup(t *testing.T) {
	f, ok := Lookup("AI_GENDER")
	if !ok || f.Name != "ai_gender" {
		t.Errorf("Lookup() = %+v, %v", f, ok)
	}
	if _, ok := Lookup("price"); ok {
		t.Error("Lookup(price) should fail")
	}
	if names := FieldNames(); names[0] != "description" || len(names) != len(Fields) {
		t.Errorf("FieldNames() = %v", names)
	}
}
