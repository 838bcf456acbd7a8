// Package config holds the flags and environment shared by the lead map
// binaries. Values come from, in increasing priority: struct defaults, a .env
// file, the process environment and the command line.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/dwc-systems/lead-map/pkg/maphost"
	"github.com/dwc-systems/lead-map/pkg/sources"
)

type Logging struct {
	Debug   bool `help:"Enable debug logging." env:"LEADMAP_DEBUG"`
	DevLogs bool `help:"Human readable console logs instead of JSON." env:"LEADMAP_DEV_LOGS"`
}

// Logger builds the process logger. Callers should Sync it on exit.
func (l Logging) Logger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if l.DevLogs {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	if l.Debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	log, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return log, nil
}

type Source struct {
	Endpoint     string        `help:"Lead list endpoint." default:"${leads_endpoint}" env:"LEADMAP_ENDPOINT"`
	Interval     time.Duration `help:"Polling interval." default:"15s" env:"LEADMAP_INTERVAL"`
	FetchTimeout time.Duration `help:"Timeout for a single lead request." default:"10s" env:"LEADMAP_FETCH_TIMEOUT"`
}

func (s Source) Validate() error {
	var errs []error
	if s.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be positive, got %s", s.Interval))
	}
	if s.FetchTimeout < 0 {
		errs = append(errs, fmt.Errorf("fetch timeout must not be negative, got %s", s.FetchTimeout))
	}
	if err := checkURL(s.Endpoint); err != nil {
		errs = append(errs, fmt.Errorf("endpoint: %w", err))
	}
	return errors.Join(errs...)
}

type Map struct {
	Source `embed:""`

	Title        string        `help:"Overlay panel title." default:"Live Leads" env:"LEADMAP_TITLE"`
	HighValue    float64       `help:"Value above which a lead counts as high value for focusing." default:"100000" env:"LEADMAP_HIGH_VALUE"`
	Tiles        []string      `help:"Base layers (${tile_names}) or tile URL templates, tried in order." default:"dark,light" env:"LEADMAP_TILES"`
	TileCacheDir string        `help:"Directory for downloaded tiles; empty keeps them in memory only." env:"LEADMAP_TILE_CACHE"`
	LoadTimeout  time.Duration `help:"How long to wait for the base map before falling back to the offline canvas." default:"5s" env:"LEADMAP_LOAD_TIMEOUT"`
	Lat          float64       `help:"Initial map center latitude." default:"39.8283" env:"LEADMAP_LAT"`
	Lng          float64       `help:"Initial map center longitude." default:"-98.5795" env:"LEADMAP_LNG"`
	Zoom         int           `help:"Initial zoom level." default:"4" env:"LEADMAP_ZOOM"`
	Offline      bool          `help:"Skip the base map and draw the offline canvas." env:"LEADMAP_OFFLINE"`
	Snapshot     string        `help:"Directory of the last-known-good lead store; empty disables it." env:"LEADMAP_SNAPSHOT"`
}

func (m Map) Validate() error {
	errs := []error{m.Source.Validate()}
	if m.Zoom < maphost.MinZoom || m.Zoom > maphost.MaxZoom {
		errs = append(errs, fmt.Errorf("zoom must be between %d and %d, got %d", maphost.MinZoom, maphost.MaxZoom, m.Zoom))
	}
	if m.Lat < -90 || m.Lat > 90 || m.Lng < -180 || m.Lng > 180 {
		errs = append(errs, fmt.Errorf("center (%g, %g) is not a coordinate", m.Lat, m.Lng))
	}
	if m.LoadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("load timeout must be positive, got %s", m.LoadTimeout))
	}
	if _, err := m.TileTemplates(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// TileTemplates resolves layer names to URL templates. Unknown names must be
// templates themselves.
func (m Map) TileTemplates() ([]string, error) {
	var out []string
	var errs []error
	for _, t := range m.Tiles {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if known, ok := sources.TileURLs[strings.ToLower(t)]; ok {
			out = append(out, known)
			continue
		}
		if err := checkTemplate(t); err != nil {
			errs = append(errs, fmt.Errorf("tiles %q: %w", t, err))
			continue
		}
		out = append(out, t)
	}
	if len(out) == 0 && len(errs) == 0 && !m.Offline {
		errs = append(errs, errors.New("at least one tile layer is required unless --offline is set"))
	}
	return out, errors.Join(errs...)
}

// Server configures the headless binary.
type Server struct {
	Logging `embed:""`
	Map     `embed:""`

	Listen     string `help:"Address of the HTTP and websocket feed." default:":8080" env:"LEADMAP_LISTEN"`
	Width      int    `help:"Render width in pixels." default:"1280" env:"LEADMAP_WIDTH"`
	Height     int    `help:"Render height in pixels." default:"720" env:"LEADMAP_HEIGHT"`
	CaptureDir string `help:"Also write every rendered frame as a PNG into this directory." env:"LEADMAP_CAPTURE_DIR"`
	AnyOrigin  bool   `help:"Accept websocket viewers from any origin." env:"LEADMAP_ANY_ORIGIN"`
}

func (s Server) Validate() error {
	errs := []error{s.Map.Validate()}
	if s.Listen == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	errs = append(errs, checkSize(s.Width, s.Height))
	return errors.Join(errs...)
}

// Viewer configures the windowed binary.
type Viewer struct {
	Logging `embed:""`
	Map     `embed:""`

	Width      int  `help:"Initial window width." default:"1280" env:"LEADMAP_WIDTH"`
	Height     int  `help:"Initial window height." default:"720" env:"LEADMAP_HEIGHT"`
	TPS        int  `help:"Ticks per second." default:"30"`
	Fullscreen bool `help:"Start in fullscreen." env:"LEADMAP_FULLSCREEN"`
}

func (v Viewer) Validate() error {
	errs := []error{v.Map.Validate(), checkSize(v.Width, v.Height)}
	if v.TPS <= 0 {
		errs = append(errs, fmt.Errorf("tps must be positive, got %d", v.TPS))
	}
	return errors.Join(errs...)
}

// Debug configures the terminal monitor.
type Debug struct {
	Logging `embed:""`
	Source  `embed:""`

	Timeout time.Duration `help:"How long to run before exiting (0 for infinite)." default:"0s"`
	JSON    bool          `help:"Dump each fetched payload instead of showing stats."`
}

func checkSize(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("size must be positive, got %dx%d", w, h)
	}
	return nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q is not an http(s) URL", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%q has no host", raw)
	}
	return nil
}

func checkTemplate(t string) error {
	for _, p := range []string{"{z}", "{x}", "{y}"} {
		if !strings.Contains(t, p) {
			return fmt.Errorf("missing %s placeholder", p)
		}
	}
	return checkURL(maphost.URL(t, maphost.TileKey{Z: 1}))
}

// Vars are the interpolation variables used in the struct tags above.
func Vars() kong.Vars {
	names := make([]string, 0, len(sources.TileURLs))
	for name := range sources.TileURLs {
		names = append(names, name)
	}
	slices.Sort(names)
	return kong.Vars{
		"leads_endpoint": sources.LeadsEndpoint,
		"tile_names":     strings.Join(names, ", "),
	}
}

// LoadDotEnv loads the given .env files (or ./.env) into the environment
// without overriding variables that are already set.
func LoadDotEnv(log *zap.Logger, files ...string) error {
	if err := godotenv.Load(files...); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Info("no .env file found, using process environment")
			return nil
		}
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

// Parse fills cli from args and the environment, running every Validate hook.
func Parse(cli any, args []string, opts ...kong.Option) (*kong.Context, error) {
	opts = append([]kong.Option{kong.Vars(Vars()), kong.ShortUsageOnError()}, opts...)
	parser, err := kong.New(cli, opts...)
	if err != nil {
		return nil, err
	}
	return parser.Parse(args)
}
