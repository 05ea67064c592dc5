package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func imageServer(t *testing.T) *httptest.Server {
	t.Helper()
	return countingImageServer(t, nil)
}

// countingImageServer is imageServer that increments hits on every request.
func countingImageServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()

	images := map[string][2]int{
		"/tall.png":  {300, 900},
		"/photo.png": {200, 200},
		"/tiny.png":  {20, 20},
		"/logo.png":  {400, 400},
	}
	encoded := make(map[string][]byte, len(images))
	for path, size := range images {
		var buf bytes.Buffer
		if err := png.Encode(&buf, gradientRGBA(size[0], size[1])); err != nil {
			t.Fatalf("png.Encode() error = %v", err)
		}
		encoded[path] = buf.Bytes()
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		switch r.URL.Path {
		case "/broken.png":
			w.Write([]byte("definitely not a png"))
			return
		}
		data, ok := encoded[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
}

func TestCollector_Collect(t *testing.T) {
	server := imageServer(t)
	defer server.Close()

	urls := []string{
		server.URL + "/tall.png",
		server.URL + "/tiny.png",
		server.URL + "/missing.png",
		server.URL + "/logo.png",
		server.URL + "/broken.png",
		server.URL + "/photo.png",
	}

	c := NewCollector(NewFetcher(), 3, nil)
	batch, refs := c.Collect(context.Background(), urls, Standard, 6)

	if len(batch) != 5 {
		t.Fatalf("Collect() returned %d images, want 5", len(batch))
	}
	if len(refs) != len(batch) {
		t.Fatalf("Collect() returned %d refs for %d images", len(refs), len(batch))
	}

	wantURLs := []string{urls[0], urls[0], urls[0], urls[0], urls[5]}
	wantOffsets := []int{0, 297, 594, 600, 0}
	for i, ref := range refs {
		if ref.URL != wantURLs[i] {
			t.Errorf("refs[%d].URL = %q, want %q", i, ref.URL, wantURLs[i])
		}
		if ref.Offset != wantOffsets[i] {
			t.Errorf("refs[%d].Offset = %d, want %d", i, ref.Offset, wantOffsets[i])
		}
	}
	for i, img := range batch {
		if img.MIMEType != "image/jpeg" {
			t.Errorf("batch[%d].MIMEType = %q, want image/jpeg", i, img.MIMEType)
		}
	}
}

func TestCollector_CollectCap(t *testing.T) {
	server := imageServer(t)
	defer server.Close()

	urls := []string{server.URL + "/tall.png", server.URL + "/photo.png"}
	c := NewCollector(nil, 0, nil)

	batch, refs := c.Collect(context.Background(), urls, Standard, 2)
	if len(batch) != 2 {
		t.Fatalf("Collect() returned %d images, want 2", len(batch))
	}
	for i, ref := range refs {
		if ref.URL != urls[0] || ref.Tile != i {
			t.Errorf("refs[%d] = %+v, want tile %d of %s", i, ref, i, urls[0])
		}
	}

	batch, refs = c.Collect(context.Background(), urls, Standard, 0)
	if len(batch) != 0 || len(refs) != 0 {
		t.Errorf("Collect() with cap 0 returned %d images", len(batch))
	}
}

func TestCollector_CollectStopsFetchingAtCap(t *testing.T) {
	var hits atomic.Int32
	server := countingImageServer(t, &hits)
	defer server.Close()

	urls := []string{server.URL + "/tall.png"}
	for i := 0; i < 8; i++ {
		urls = append(urls, fmt.Sprintf("%s/photo.png?n=%d", server.URL, i))
	}

	// tall.png alone yields 4 tiles, so a cap of 3 is filled by the first
	// window of 3 downloads.
	batch, refs := NewCollector(nil, 4, nil).Collect(context.Background(), urls, Standard, 3)
	if len(batch) != 3 || len(refs) != 3 {
		t.Fatalf("Collect() returned %d images, %d refs, want 3", len(batch), len(refs))
	}
	for i, ref := range refs {
		if ref.URL != urls[0] || ref.Tile != i {
			t.Errorf("refs[%d] = %+v, want tile %d of %s", i, ref, i, urls[0])
		}
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("server saw %d downloads, want 3", got)
	}
}

func TestCollector_CollectRefillsAfterSkips(t *testing.T) {
	var hits atomic.Int32
	server := countingImageServer(t, &hits)
	defer server.Close()

	urls := []string{
		server.URL + "/missing.png",
		server.URL + "/broken.png",
		server.URL + "/photo.png?n=1",
		server.URL + "/photo.png?n=2",
		server.URL + "/photo.png?n=3",
	}
	batch, refs := NewCollector(nil, 4, nil).Collect(context.Background(), urls, Standard, 2)
	if len(batch) != 2 {
		t.Fatalf("Collect() returned %d images, want 2", len(batch))
	}
	if refs[0].URL != urls[2] || refs[1].URL != urls[3] {
		t.Errorf("refs = %+v, want photos 1 and 2 in order", refs)
	}
	if got := hits.Load(); got != 4 {
		t.Errorf("server saw %d downloads, want 4", got)
	}
}

func TestCollector_CollectNothingUsable(t *testing.T) {
	server := imageServer(t)
	defer server.Close()

	urls := []string{server.URL + "/missing.png", server.URL + "/tiny.png", server.URL + "/icon.png"}
	batch, refs := NewCollector(nil, 2, nil).Collect(context.Background(), urls, HighFidelity, 6)

	if batch == nil || refs == nil {
		t.Fatal("Collect() should return empty, non-nil slices")
	}
	if len(batch) != 0 {
		t.Errorf("Collect() returned %d images, want 0", len(batch))
	}
}
