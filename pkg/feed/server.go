package feed

import (
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"time"

	geojson "github.com/paulmach/go.geojson"
	"go.uber.org/zap"
)

// FrameSource yields the last rendered frame, or nil before the first one.
type FrameSource interface {
	Frame() *image.RGBA
}

type server struct {
	hub     *Hub
	frames  FrameSource
	log     *zap.Logger
	started time.Time
}

// NewHandler serves the feed endpoints:
//
//	GET /frame.png        last rendered frame
//	GET /markers.geojson  current markers
//	GET /summary          overlay panel figures
//	GET /ws               websocket snapshot stream
//	GET /healthz          liveness and last update time
func NewHandler(hub *Hub, frames FrameSource, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	s := &server{hub: hub, frames: frames, log: log.Named("http"), started: time.Now()}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /frame.png", s.handleFrame)
	mux.HandleFunc("GET /markers.geojson", s.handleMarkers)
	mux.HandleFunc("GET /summary", s.handleSummary)
	mux.Handle("GET /ws", hub)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

func (s *server) handleFrame(w http.ResponseWriter, r *http.Request) {
	var frame *image.RGBA
	if s.frames != nil {
		frame = s.frames.Frame()
	}
	if frame == nil {
		http.Error(w, "no frame rendered yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, frame); err != nil {
		s.log.Debug("writing frame", zap.Error(err))
	}
}

func (s *server) handleMarkers(w http.ResponseWriter, r *http.Request) {
	fc := geojson.NewFeatureCollection()
	if msg, ok := s.hub.Last(); ok && msg.Markers != nil {
		fc = msg.Markers
	}
	raw, err := fc.MarshalJSON()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(raw)
}

func (s *server) handleSummary(w http.ResponseWriter, r *http.Request) {
	msg, ok := s.hub.Last()
	if !ok {
		http.Error(w, "no summary yet", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, http.StatusOK, msg.Summary)
}

type health struct {
	Status     string    `json:"status"`
	Mode       string    `json:"mode,omitempty"`
	Clients    int       `json:"clients"`
	LastUpdate time.Time `json:"last_update,omitzero"`
	Uptime     string    `json:"uptime"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := health{
		Status:  "ok",
		Clients: s.hub.Clients(),
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	}
	if msg, ok := s.hub.Last(); ok {
		h.Mode = msg.Mode
		h.LastUpdate = msg.At
	} else {
		h.Status = "starting"
	}
	s.writeJSON(w, http.StatusOK, h)
}

func (s *server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("writing response", zap.Error(err))
	}
}
