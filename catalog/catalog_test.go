package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
)

const productBody = `{
  "data": {
    "prdNo": 1234567,
    "prdNm": "린넨 오버핏 셔츠",
    "brandMainNmKr": "테스트브랜드",
    "productDesc": {"prdDescContClob": "<p>시원한 린넨</p><img src=\"//cdn.example.com/detail/01.jpg\">"},
    "productImage": "{\"basicExtNm\": \"prd/1234567_main.jpg\", \"addImgExtNm2\": \"prd/1234567_2.jpg\", \"addImgExtNm1\": \"prd/1234567_1.jpg\", \"addImgExtNm3\": \"\", \"someOtherKey\": \"x\"}",
    "optionItem": [
      {"optItemNm": "색상", "optValueList": [{"optValueNm": "WHITE"}, {"optValueNm": "BLACK"}, {"optValueNm": "WHITE"}]},
      {"optItemNm": "사이즈", "optValueList": [{"optValueNm": "M"}, {"optValueNm": "L"}]}
    ],
    "notiItemMap": [
      {"notiItemTitle": "소재", "notiItemValue": "린넨 100%"},
      {"notiItemTitle": "제조국", "notiItemValue": "대한민국"}
    ],
    "dispCtgr": {"dispCtgrNm1": "남성", "dispCtgrNm2": "셔츠", "dispCtgrNm3": "린넨셔츠"}
  }
}`

const searchBody = `{
  "data": {"result": {"hits": {"hits": [
    {"_source": {"prdNo": "111", "prdNm": "반팔 티셔츠", "brandNm": "브랜드A", "appPrdImgUrl": "https://cdn.example.com/111.jpg"}},
    {"_source": {"prdNo": 222, "appPrdNm": "앱 상품명"}}
  ]}}}
}`

func catalogServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var queries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.RawQuery)
		switch r.URL.Path {
		case "/product/products/withoutPrice/1234567":
			w.Write([]byte(productBody))
		case "/product/products/withoutPrice/0":
			w.Write([]byte(`{"data": null}`))
		case "/product/products/withoutPrice/500":
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("upstream down"))
		case "/searches/prdList/":
			w.Write([]byte(searchBody))
		default:
			http.NotFound(w, r)
		}
	}))
	return server, &queries
}

func TestClient_GetProduct(t *testing.T) {
	server, queries := catalogServer(t)
	defer server.Close()

	c := NewClient(WithBaseURL(server.URL))
	p, err := c.GetProduct(context.Background(), "1234567")
	if err != nil {
		t.Fatalf("GetProduct() error = %v", err)
	}

	if p.PrdNo != "1234567" || p.PrdNm != "린넨 오버핏 셔츠" || p.BrandNm != "테스트브랜드" {
		t.Errorf("basic fields = %q %q %q", p.PrdNo, p.PrdNm, p.BrandNm)
	}
	if p.Image.Primary != "prd/1234567_main.jpg" {
		t.Errorf("Primary = %q", p.Image.Primary)
	}
	wantSecondary := []string{"prd/1234567_1.jpg", "prd/1234567_2.jpg"}
	if !reflect.DeepEqual(p.Image.Secondary, wantSecondary) {
		t.Errorf("Secondary = %v, want %v", p.Image.Secondary, wantSecondary)
	}
	if len(p.Options) != 2 || len(p.Options[0].Values) != 3 {
		t.Errorf("Options = %+v", p.Options)
	}
	if len(p.Notices) != 2 || p.Notices[0].Title != "소재" || p.Notices[0].Value != "린넨 100%" {
		t.Errorf("Notices = %+v", p.Notices)
	}
	if p.Category.Path() != "남성 > 셔츠 > 린넨셔츠" {
		t.Errorf("Category.Path() = %q", p.Category.Path())
	}
	if p.DescriptionHTML == "" {
		t.Error("DescriptionHTML is empty")
	}

	q := (*queries)[0]
	for _, want := range []string{"countryCd=001", "langCd=001", "siteCd=1", "deviceCd=001", "mandM=halfclub"} {
		if !containsParam(q, want) {
			t.Errorf("query %q missing %s", q, want)
		}
	}
}

func TestClient_GetProductErrors(t *testing.T) {
	server, _ := catalogServer(t)
	defer server.Close()
	c := NewClient(WithBaseURL(server.URL))

	if _, err := c.GetProduct(context.Background(), "0"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetProduct(0) error = %v, want ErrNotFound", err)
	}
	if _, err := c.GetProduct(context.Background(), "999"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetProduct(999) error = %v, want ErrNotFound", err)
	}

	_, err := c.GetProduct(context.Background(), "500")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 500 {
		t.Errorf("GetProduct(500) error = %v, want APIError 500", err)
	}

	if _, err := c.GetProduct(context.Background(), "  "); err == nil {
		t.Error("GetProduct(blank) expected error")
	}
}

func TestClient_Search(t *testing.T) {
	server, queries := catalogServer(t)
	defer server.Close()

	c := NewClient(WithSearchBaseURL("2", server.URL))
	hits, err := c.Search(context.Background(), "2", "티셔츠")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	want := []SearchHit{
		{PrdNo: "111", Brand: "브랜드A", Name: "반팔 티셔츠", ImageURL: "https://cdn.example.com/111.jpg"},
		{PrdNo: "222", Brand: "브랜드 없음", Name: "앱 상품명"},
	}
	if !reflect.DeepEqual(hits, want) {
		t.Errorf("Search() = %+v, want %+v", hits, want)
	}

	q := (*queries)[0]
	for _, want := range []string{"siteCd=2", "device=pc", "limit=0%2C10", "sortSeq=12"} {
		if !containsParam(q, want) {
			t.Errorf("query %q missing %s", q, want)
		}
	}

	if _, err := c.Search(context.Background(), "2", ""); err == nil {
		t.Error("Search() with empty keyword expected error")
	}
}

func TestImageURL(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"prd/1.jpg", "https://cdn2.halfclub.com/rimg/1000x1000/contain/prd/1.jpg?format=webp"},
		{"/prd/1.jpg", "https://cdn2.halfclub.com/rimg/1000x1000/contain/prd/1.jpg?format=webp"},
		{"https://img.example.com/a.jpg", "https://img.example.com/a.jpg"},
		{"//img.example.com/a.jpg", "https://img.example.com/a.jpg"},
	}
	for _, tt := range tests {
		if got := ImageURL(DefaultCDNURL+"/", DefaultImageDims, tt.key); got != tt.want {
			t.Errorf("ImageURL(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestParseProductImage_Cap(t *testing.T) {
	m := map[string]any{"basicExtNm": "main.jpg"}
	for i := 1; i <= 12; i++ {
		m[fmt.Sprintf("addImgExtNm%d", i)] = fmt.Sprintf("extra_%d.jpg", i)
	}

	img := parseProductImage(m)
	if len(img.Secondary) != MaxSecondaryImages {
		t.Errorf("Secondary = %d keys, want %d", len(img.Secondary), MaxSecondaryImages)
	}
	if got := len(img.Keys()); got != 1+MaxSecondaryImages {
		t.Errorf("Keys() = %d, want %d", got, 1+MaxSecondaryImages)
	}
	if img.Secondary[1] != "extra_2.jpg" || img.Secondary[8] != "extra_9.jpg" {
		t.Errorf("Secondary should be ordered by index, got %v", img.Secondary)
	}
}

func TestLenient(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Category
	}{
		{"object", `{"dispCtgrNm1": "여성"}`, Category{Large: "여성"}},
		{"string encoded", `"{\"dispCtgrNm1\": \"여성\"}"`, Category{Large: "여성"}},
		{"empty string", `""`, Category{}},
		{"garbage string", `"not json"`, Category{}},
		{"null", `null`, Category{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l lenient[Category]
			if err := l.UnmarshalJSON([]byte(tt.data)); err != nil {
				t.Fatalf("UnmarshalJSON() error = %v", err)
			}
			if l.Value != tt.want {
				t.Errorf("Value = %+v, want %+v", l.Value, tt.want)
			}
		})
	}
}

func containsParam(rawQuery, param string) bool {
	for _, p := range strings.Split(rawQuery, "&") {
		if p == param {
			return true
		}
	}
	return false
}

func TestParseProductImage_KeyNames(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]any
		want []string
	}{
		{
			name: "addImgExtNm",
			in:   map[string]any{"basicExtNm": "main.jpg", "addImgExtNm2": "a2.jpg", "addImgExtNm1": "a1.jpg"},
			want: []string{"a1.jpg", "a2.jpg"},
		},
		{
			name: "older add{N}ExtNm",
			in:   map[string]any{"basicExtNm": "main.jpg", "add1ExtNm": "b1.jpg"},
			want: []string{"b1.jpg"},
		},
		{
			name: "unrelated keys ignored",
			in:   map[string]any{"basicExtNm": "main.jpg", "addImgExtNm": "x.jpg", "imgExtNm1": "y.jpg"},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := parseProductImage(tt.in)
			if img.Primary != "main.jpg" {
				t.Errorf("Primary = %q, want main.jpg", img.Primary)
			}
			if !reflect.DeepEqual(img.Secondary, tt.want) {
				t.Errorf("Secondary = %v, want %v", img.Secondary, tt.want)
			}
		})
	}
}
