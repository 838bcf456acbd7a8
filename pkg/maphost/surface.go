package maphost

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Surface is where frames end up. Present must not retain frame after it
// returns; the host reuses the buffer.
type Surface interface {
	Size() (width, height int)
	Present(frame *image.RGBA) error
}

// MemorySurface keeps the last presented frame.
type MemorySurface struct {
	mu     sync.Mutex
	w, h   int
	last   *image.RGBA
	frames int
	at     time.Time
}

func NewMemorySurface(w, h int) *MemorySurface {
	return &MemorySurface{w: w, h: h}
}

func (s *MemorySurface) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w, s.h
}

// SetSize changes the reported size. The host only notices after InvalidateSize.
func (s *MemorySurface) SetSize(w, h int) {
	s.mu.Lock()
	s.w, s.h = w, h
	s.mu.Unlock()
}

func (s *MemorySurface) Present(frame *image.RGBA) error {
	cp := cloneRGBA(frame)
	s.mu.Lock()
	s.last = cp
	s.frames++
	s.at = time.Now()
	s.mu.Unlock()
	return nil
}

// Frame returns a copy of the last frame, or nil before the first Present.
func (s *MemorySurface) Frame() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	return cloneRGBA(s.last)
}

func (s *MemorySurface) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// PresentedAt is the time of the last Present.
func (s *MemorySurface) PresentedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.at
}

// CaptureSurface writes every frame as a PNG into a directory.
type CaptureSurface struct {
	Dir  string
	w, h int
	log  *zap.Logger
	now  func() time.Time

	mu  sync.Mutex
	seq int
}

func NewCaptureSurface(dir string, w, h int, log *zap.Logger) *CaptureSurface {
	if log == nil {
		log = zap.NewNop()
	}
	return &CaptureSurface{Dir: dir, w: w, h: h, log: log.Named("capture"), now: time.Now}
}

func (s *CaptureSurface) Size() (int, int) { return s.w, s.h }

func (s *CaptureSurface) Present(frame *image.RGBA) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create capture directory: %w", err)
	}

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	filename := fmt.Sprintf("leadmap-%s-%04d.png", s.now().Format("20060102-150405"), seq)
	path := filepath.Join(s.Dir, filename)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create capture file: %w", err)
	}
	if err := png.Encode(f, frame); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode capture: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close capture file: %w", err)
	}
	s.log.Debug("captured frame", zap.String("path", path))
	return nil
}

// Tee presents every frame to each surface in order. The first surface
// decides the size.
type Tee []Surface

func (t Tee) Size() (int, int) {
	if len(t) == 0 {
		return 1, 1
	}
	return t[0].Size()
}

func (t Tee) Present(frame *image.RGBA) error {
	var errs []error
	for _, s := range t {
		errs = append(errs, s.Present(frame))
	}
	return errors.Join(errs...)
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}
