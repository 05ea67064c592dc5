// Package catalog is a client for the shop product and search APIs.
package catalog

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

// MaxSecondaryImages is the number of additional image keys kept.
const MaxSecondaryImages = 9

// Product is a normalized product record.
type Product struct {
	PrdNo           string
	PrdNm           string
	BrandNm         string
	DescriptionHTML string
	Image           ProductImage
	Options         []OptionItem
	Notices         []NoticeItem
	Category        Category
}

// ProductImage holds the image keys of a product.
type ProductImage struct {
	Primary   string
	Secondary []string
}

// Keys returns the primary key followed by the secondary keys, skipping
// blanks.
func (p ProductImage) Keys() []string {
	keys := make([]string, 0, 1+len(p.Secondary))
	if p.Primary != "" {
		keys = append(keys, p.Primary)
	}
	for _, k := range p.Secondary {
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// OptionItem is a purchasable attribute and its values.
type OptionItem struct {
	Name   string        `json:"optItemNm"`
	Values []OptionValue `json:"optValueList"`
}

type OptionValue struct {
	Name string `json:"optValueNm"`
}

// NoticeItem is a mandatory product disclosure entry.
type NoticeItem struct {
	Title string     `json:"notiItemTitle"`
	Value flexString `json:"notiItemValue"`
}

// Category is the three-level display category.
type Category struct {
	Large  string `json:"dispCtgrNm1"`
	Middle string `json:"dispCtgrNm2"`
	Small  string `json:"dispCtgrNm3"`
}

// Path joins the non-empty levels with " > ".
func (c Category) Path() string {
	var parts []string
	for _, s := range []string{c.Large, c.Middle, c.Small} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " > ")
}

// SearchHit is one keyword search result.
type SearchHit struct {
	PrdNo    string `json:"prdNo"`
	Brand    string `json:"brand"`
	Name     string `json:"name"`
	ImageURL string `json:"img_url,omitempty"`
}

// Label is the text shown when choosing among hits.
func (h SearchHit) Label() string {
	return fmt.Sprintf("[%s] %s (%s)", h.Brand, h.Name, h.PrdNo)
}

// ImageURL resolves an image key through the CDN resize template. Keys
// that are already URLs are returned as absolute URLs unchanged.
func ImageURL(cdn, dims, key string) string {
	switch {
	case strings.HasPrefix(key, "http://"), strings.HasPrefix(key, "https://"):
		return key
	case strings.HasPrefix(key, "//"):
		return "https:" + key
	}
	return fmt.Sprintf("%s/rimg/%s/contain/%s?format=webp",
		strings.TrimSuffix(cdn, "/"), dims, strings.TrimPrefix(key, "/"))
}

// ImageURLs resolves every image key of p in order.
func (p *Product) ImageURLs(cdn, dims string) []string {
	keys := p.Image.Keys()
	urls := make([]string, len(keys))
	for i, k := range keys {
		urls[i] = ImageURL(cdn, dims, k)
	}
	return urls
}

// ProductURL is the storefront page of prdNo.
func ProductURL(prdNo string) string {
	return "https://www.halfclub.com/product/" + prdNo
}

// Wire formats. Nested objects are sometimes delivered as JSON-encoded
// strings, so they decode through lenient.

type productEnvelope struct {
	Data *rawProduct `json:"data"`
}

type rawProduct struct {
	PrdNo         flexString              `json:"prdNo"`
	PrdNm         string                  `json:"prdNm"`
	BrandMainNmKr string                  `json:"brandMainNmKr"`
	BrandNm       string                  `json:"brandNm"`
	ProductDesc   lenient[productDesc]    `json:"productDesc"`
	ProductImage  lenient[map[string]any] `json:"productImage"`
	OptionItem    lenient[[]OptionItem]   `json:"optionItem"`
	NotiItemMap   lenient[[]NoticeItem]   `json:"notiItemMap"`
	DispCtgr      lenient[Category]       `json:"dispCtgr"`
}

type productDesc struct {
	Content string `json:"prdDescContClob"`
}

func (r *rawProduct) normalize(requested string) *Product {
	p := &Product{
		PrdNo:           string(r.PrdNo),
		PrdNm:           r.PrdNm,
		BrandNm:         r.BrandMainNmKr,
		DescriptionHTML: r.ProductDesc.Value.Content,
		Image:           parseProductImage(r.ProductImage.Value),
		Options:         r.OptionItem.Value,
		Notices:         r.NotiItemMap.Value,
		Category:        r.DispCtgr.Value,
	}
	if p.BrandNm == "" {
		p.BrandNm = r.BrandNm
	}
	if p.PrdNo == "" {
		p.PrdNo = requested
	}
	return p
}

// secondaryKey matches addImgExtNm{N} and the older add{N}ExtNm spelling
// some listings still return.
var secondaryKey = regexp.MustCompile(`^(?:addImgExtNm(\d+)|add(\d+)ExtNm)$`)

// parseProductImage takes basicExtNm as the primary key and every
// addImgExtNm{N} (or add{N}ExtNm) as a secondary key, ordered by N.
func parseProductImage(m map[string]any) ProductImage {
	var img ProductImage
	if s, ok := m["basicExtNm"].(string); ok {
		img.Primary = strings.TrimSpace(s)
	}

	type numbered struct {
		n   int
		key string
	}
	var extra []numbered
	for k, v := range m {
		match := secondaryKey.FindStringSubmatch(k)
		if match == nil {
			continue
		}
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		n, _ := strconv.Atoi(match[1] + match[2])
		extra = append(extra, numbered{n: n, key: strings.TrimSpace(s)})
	}
	sort.SliceStable(extra, func(i, j int) bool {
		if extra[i].n != extra[j].n {
			return extra[i].n < extra[j].n
		}
		return extra[i].key < extra[j].key
	})

	for _, e := range extra {
		if len(img.Secondary) == MaxSecondaryImages {
			break
		}
		img.Secondary = append(img.Secondary, e.key)
	}
	return img
}

type searchEnvelope struct {
	Data struct {
		Result struct {
			Hits struct {
				Hits []struct {
					Source searchSource `json:"_source"`
				} `json:"hits"`
			} `json:"hits"`
		} `json:"result"`
	} `json:"data"`
}

type searchSource struct {
	PrdNo        flexString `json:"prdNo"`
	PrdNm        string     `json:"prdNm"`
	AppPrdNm     string     `json:"appPrdNm"`
	BrandNm      string     `json:"brandNm"`
	AppPrdImgURL string     `json:"appPrdImgUrl"`
}

func (s searchSource) hit() SearchHit {
	h := SearchHit{
		PrdNo:    string(s.PrdNo),
		Brand:    s.BrandNm,
		Name:     s.PrdNm,
		ImageURL: s.AppPrdImgURL,
	}
	if h.Brand == "" {
		h.Brand = "브랜드 없음"
	}
	if h.Name == "" {
		h.Name = s.AppPrdNm
	}
	if h.Name == "" {
		h.Name = "상품명 없음"
	}
	return h
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := sonic.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(data)
	return nil
}

// lenient decodes T from either its JSON form or a string holding it.
// Anything undecodable leaves the zero value.
type lenient[T any] struct {
	Value T
}

func (l *lenient[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := sonic.Unmarshal(data, &inner); err != nil {
			return nil
		}
		data = []byte(strings.TrimSpace(inner))
	}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	var v T
	if err := sonic.Unmarshal(data, &v); err != nil {
		return nil
	}
	l.Value = v
	return nil
}
