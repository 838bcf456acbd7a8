package maphost

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestURL(t *testing.T) {
	got := URL("https://{s}.tile.example.org/{z}/{x}/{y}.png", TileKey{Z: 4, X: 3, Y: 6})
	assert.Equal(t, "https://a.tile.example.org/4/3/6.png", got)
	assert.Equal(t, "https://b.tile.example.org/1/1/0.png", URL("https://{s}.tile.example.org/{z}/{x}/{y}.png", TileKey{Z: 1, X: 1, Y: 0}))
}

func TestHTTPTileSource(t *testing.T) {
	body := pngBytes(t, solidTile(tileColor))
	var primary, secondary atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/primary/", func(w http.ResponseWriter, r *http.Request) {
		primary.Add(1)
		if r.Header.Get("User-Agent") == "" {
			t.Errorf("Tile request without User-Agent")
		}
		if r.URL.Path == "/primary/4/3/6.png" {
			_, _ = w.Write(body)
			return
		}
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/secondary/", func(w http.ResponseWriter, r *http.Request) {
		secondary.Add(1)
		_, _ = w.Write(body)
	})
	mux.HandleFunc("/broken/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not a png"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	src := NewHTTPTileSource([]string{
		srv.URL + "/primary/{z}/{x}/{y}.png",
		srv.URL + "/secondary/{z}/{x}/{y}.png",
	}, WithTileClient(srv.Client()))
	ctx := context.Background()

	img, err := src.Tile(ctx, TileKey{Z: 4, X: 3, Y: 6})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, TileSize, TileSize), img.Bounds())
	assert.Equal(t, int32(0), secondary.Load())

	_, err = src.Tile(ctx, TileKey{Z: 4, X: 4, Y: 6})
	require.NoError(t, err, "secondary template must stand in")
	assert.Equal(t, int32(1), secondary.Load())

	_, err = src.Tile(ctx, TileKey{Z: 4, X: 3, Y: 6})
	require.NoError(t, err)
	assert.Equal(t, int32(2), primary.Load(), "cached tiles are not fetched again")
	assert.Equal(t, 2, src.CacheLen())

	broken := NewHTTPTileSource([]string{srv.URL + "/broken/{z}/{x}/{y}.png"}, WithTileClient(srv.Client()))
	_, err = broken.Tile(ctx, TileKey{Z: 1, X: 0, Y: 0})
	assert.Error(t, err)

	_, err = NewHTTPTileSource(nil).Tile(ctx, TileKey{})
	assert.Error(t, err)
}

func TestHTTPTileSourceDiskCache(t *testing.T) {
	body := pngBytes(t, solidTile(tileColor))
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	dir := t.TempDir()
	template := []string{srv.URL + "/{z}/{x}/{y}.png"}
	for i := 0; i < 2; i++ {
		// A fresh source has an empty memory cache, so the second read comes from disk.
		src := NewHTTPTileSource(template, WithTileClient(srv.Client()), WithTileCacheDir(dir))
		_, err := src.Tile(context.Background(), TileKey{Z: 2, X: 1, Y: 1})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), hits.Load())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestTileCacheEviction(t *testing.T) {
	src := NewHTTPTileSource(nil, WithTileCacheSize(10))
	tile := solidTile(tileColor)
	for i := 0; i < 25; i++ {
		src.store(TileKey{Z: 5, X: i}, tile)
	}
	assert.LessOrEqual(t, src.CacheLen(), 10)
	assert.Positive(t, src.CacheLen())
}
