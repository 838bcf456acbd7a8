package maphost

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/dwc-systems/lead-map/pkg/utils"
)

type TileKey struct {
	Z, X, Y int
}

func (k TileKey) String() string {
	return fmt.Sprintf("%d/%d/%d", k.Z, k.X, k.Y)
}

// TileSource provides raster map tiles. Implementations must be safe for
// concurrent use.
type TileSource interface {
	Tile(ctx context.Context, key TileKey) (image.Image, error)
}

// TileSourceFunc adapts a function to TileSource.
type TileSourceFunc func(ctx context.Context, key TileKey) (image.Image, error)

func (f TileSourceFunc) Tile(ctx context.Context, key TileKey) (image.Image, error) {
	return f(ctx, key)
}

const defaultTileCacheSize = 512

// HTTPTileSource fetches slippy-map tiles from URL templates using the
// {s}, {z}, {x} and {y} placeholders. When a tile fails on the first
// template the next one is tried, so a second provider can stand in for a
// flaky primary.
type HTTPTileSource struct {
	templates []string
	client    *http.Client
	cacheDir  string
	maxCache  int
	log       *zap.Logger

	mu    sync.Mutex
	cache map[TileKey]image.Image
}

type TileOption func(*HTTPTileSource)

func WithTileClient(c *http.Client) TileOption {
	return func(s *HTTPTileSource) { s.client = c }
}

// WithTileCacheDir keeps downloaded tiles on disk across runs.
func WithTileCacheDir(dir string) TileOption {
	return func(s *HTTPTileSource) { s.cacheDir = dir }
}

func WithTileCacheSize(n int) TileOption {
	return func(s *HTTPTileSource) { s.maxCache = n }
}

func WithTileLogger(log *zap.Logger) TileOption {
	return func(s *HTTPTileSource) { s.log = log.Named("tiles") }
}

func NewHTTPTileSource(templates []string, opts ...TileOption) *HTTPTileSource {
	s := &HTTPTileSource{
		templates: templates,
		client:    &http.Client{},
		maxCache:  defaultTileCacheSize,
		log:       zap.NewNop(),
		cache:     make(map[TileKey]image.Image),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// URL expands template for key. The {s} subdomain rotates over a, b and c.
func URL(template string, key TileKey) string {
	sub := string(rune('a' + (key.X+key.Y)%3))
	return strings.NewReplacer(
		"{s}", sub,
		"{z}", strconv.Itoa(key.Z),
		"{x}", strconv.Itoa(key.X),
		"{y}", strconv.Itoa(key.Y),
	).Replace(template)
}

func (s *HTTPTileSource) Tile(ctx context.Context, key TileKey) (image.Image, error) {
	s.mu.Lock()
	if img, ok := s.cache[key]; ok {
		s.mu.Unlock()
		return img, nil
	}
	s.mu.Unlock()

	if len(s.templates) == 0 {
		return nil, errors.New("no tile url configured")
	}
	var errs []error
	for _, tmpl := range s.templates {
		img, err := s.fetch(ctx, URL(tmpl, key))
		if err == nil {
			s.store(key, img)
			return img, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("tile %s: %w", key, errors.Join(errs...))
}

func (s *HTTPTileSource) fetch(ctx context.Context, url string) (image.Image, error) {
	rc, err := utils.GetCachedReader(ctx, s.client, url, s.cacheDir, "tile", s.log)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rc.Close()
	}()
	img, _, err := image.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	return img, nil
}

// store caches img, dropping about a fifth of the entries once full.
func (s *HTTPTileSource) store(key TileKey, img image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maxCache <= 0 {
		return
	}
	if len(s.cache) >= s.maxCache {
		drop := max(s.maxCache/5, 1)
		for k := range s.cache {
			delete(s.cache, k)
			drop--
			if drop == 0 {
				break
			}
		}
	}
	s.cache[key] = img
}

// CacheLen is the number of tiles held in memory.
func (s *HTTPTileSource) CacheLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache)
}
