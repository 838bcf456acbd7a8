package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dwc-systems/lead-map/pkg/sources"
)

func TestServerDefaults(t *testing.T) {
	var cli Server
	_, err := Parse(&cli, nil)
	require.NoError(t, err)

	assert.Equal(t, sources.LeadsEndpoint, cli.Endpoint)
	assert.Equal(t, 15*time.Second, cli.Interval)
	assert.Equal(t, 5*time.Second, cli.LoadTimeout)
	assert.Equal(t, "Live Leads", cli.Title)
	assert.Equal(t, 4, cli.Zoom)
	assert.InDelta(t, -98.5795, cli.Lng, 1e-9)
	assert.Equal(t, ":8080", cli.Listen)
	assert.Equal(t, []string{"dark", "light"}, cli.Tiles)

	templates, err := cli.TileTemplates()
	require.NoError(t, err)
	assert.Equal(t, []string{sources.DarkTileURL, sources.CartoTileURL}, templates)
}

func TestFlagsAndEnv(t *testing.T) {
	t.Setenv("LEADMAP_INTERVAL", "30s")
	t.Setenv("LEADMAP_TILES", "satellite,https://{s}.tiles.example.com/{z}/{x}/{y}.png")

	var cli Server
	_, err := Parse(&cli, []string{"--zoom=6", "--lat=41.5", "--lng=-87.6", "--width=640", "--height=480", "--debug"})
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cli.Interval)
	assert.Equal(t, 6, cli.Zoom)
	assert.Equal(t, 640, cli.Width)
	assert.True(t, cli.Debug)

	templates, err := cli.TileTemplates()
	require.NoError(t, err)
	assert.Equal(t, []string{sources.EsriTileURL, "https://{s}.tiles.example.com/{z}/{x}/{y}.png"}, templates)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"zero interval", []string{"--interval=0s"}},
		{"zoom too high", []string{"--zoom=19"}},
		{"zoom too low", []string{"--zoom=0"}},
		{"bad endpoint", []string{"--endpoint=localhost:5000/leads"}},
		{"bad latitude", []string{"--lat=95"}},
		{"template without placeholders", []string{"--tiles=https://tiles.example.com/tile.png"}},
		{"no tiles", []string{"--tiles="}},
		{"empty size", []string{"--width=0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cli Server
			_, err := Parse(&cli, tt.args)
			assert.Error(t, err)
		})
	}
}

func TestOfflineNeedsNoTiles(t *testing.T) {
	m := Map{
		Source:      Source{Endpoint: "http://localhost:5000/api/qnis/leads", Interval: time.Second},
		LoadTimeout: time.Second,
		Zoom:        4,
		Offline:     true,
	}
	assert.NoError(t, m.Validate())

	m.Offline = false
	assert.Error(t, m.Validate())
}

func TestValidateJoinsErrors(t *testing.T) {
	err := Map{Zoom: 40}.Validate()
	require.Error(t, err)
	for _, want := range []string{"interval", "endpoint", "zoom", "load timeout"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestDebugConfig(t *testing.T) {
	var cli Debug
	_, err := Parse(&cli, []string{"--timeout=1m", "--json"})
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cli.Timeout)
	assert.True(t, cli.JSON)
	assert.Equal(t, 10*time.Second, cli.FetchTimeout)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("LEADMAP_DOTENV_TEST=from-file\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("LEADMAP_DOTENV_TEST") })

	require.NoError(t, LoadDotEnv(zap.NewNop(), path))
	assert.Equal(t, "from-file", os.Getenv("LEADMAP_DOTENV_TEST"))

	assert.NoError(t, LoadDotEnv(zap.NewNop(), filepath.Join(dir, "missing.env")), "a missing file is not an error")
}

func TestLogger(t *testing.T) {
	for _, l := range []Logging{{}, {Debug: true}, {DevLogs: true}} {
		log, err := l.Logger()
		require.NoError(t, err)
		assert.Equal(t, l.Debug, log.Core().Enabled(zap.DebugLevel))
	}
}
