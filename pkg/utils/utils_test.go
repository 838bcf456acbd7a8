package utils

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func TestCacheFileName(t *testing.T) {
	tests := []struct {
		url, prefix, want string
	}{
		{"https://tile.openstreetmap.org/4/3/6.png", "", "tile.openstreetmap.org_4_3_6.png"},
		{"https://tile.openstreetmap.org/4/3/6.png", "[tiles]", "tiles_tile.openstreetmap.org_4_3_6.png"},
		{"http://localhost:5000/api/qnis/leads?x=1", "dev box", "dev_box_localhost_5000_api_qnis_leads"},
	}
	for _, tt := range tests {
		if got := CacheFileName(tt.url, tt.prefix); got != tt.want {
			t.Errorf("CacheFileName(%q, %q) = %q; want %q", tt.url, tt.prefix, got, tt.want)
		}
	}
}

func TestGetCachedReader(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("User-Agent") != UserAgent {
			t.Errorf("missing user agent, got %q", r.Header.Get("User-Agent"))
		}
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, "payload")
	}))
	defer srv.Close()

	dir := t.TempDir()
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		r, err := GetCachedReader(ctx, srv.Client(), srv.URL+"/file.txt", dir, "", nil)
		if err != nil {
			t.Fatalf("GetCachedReader failed: %v", err)
		}
		body, _ := io.ReadAll(r)
		_ = r.Close()
		if string(body) != "payload" {
			t.Errorf("Got %q, want payload", body)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("Expected a single download with cache enabled, got %d", hits.Load())
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("Expected 1 cached file, got %d", len(entries))
	}

	_, err := GetCachedReader(ctx, srv.Client(), srv.URL+"/missing", "", "", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, CacheFileName(srv.URL+"/missing", ""))); !os.IsNotExist(err) {
		t.Errorf("Uncached request must not write to the cache dir")
	}
}
