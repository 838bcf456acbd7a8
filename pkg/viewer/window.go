// Package viewer shows rendered lead map frames in a desktop window.
package viewer

import (
	"context"
	"image"
	"sync"
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"go.uber.org/zap"

	"github.com/dwc-systems/lead-map/pkg/markers"
)

// Controls is the part of the map controller driven from the keyboard.
type Controls interface {
	Refresh(ctx context.Context) error
	SetLayerVisible(name markers.LayerName, visible bool) error
	FocusHighValue() (bool, error)
}

var layerKeys = map[ebiten.Key]markers.LayerName{
	ebiten.Key1: markers.LayerHigh,
	ebiten.Key2: markers.LayerMedium,
	ebiten.Key3: markers.LayerLow,
}

// Window is an ebiten game that displays the last presented frame. It
// implements maphost.Surface; Present may be called from any goroutine.
type Window struct {
	ctx      context.Context
	log      *zap.Logger
	controls Controls

	mu      sync.Mutex
	w, h    int
	pending *image.RGBA
	screen  *ebiten.Image

	visible    map[markers.LayerName]bool
	refreshing atomic.Bool
}

type Option func(*Window)

func WithLogger(log *zap.Logger) Option {
	return func(w *Window) { w.log = log.Named("viewer") }
}

// WithControls enables keyboard shortcuts and refresh on resize.
func WithControls(c Controls) Option {
	return func(w *Window) { w.controls = c }
}

func New(ctx context.Context, width, height int, opts ...Option) *Window {
	w := &Window{
		ctx: ctx,
		log: zap.NewNop(),
		w:   max(width, 1),
		h:   max(height, 1),
		visible: map[markers.LayerName]bool{
			markers.LayerHigh:   true,
			markers.LayerMedium: true,
			markers.LayerLow:    true,
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Window) Size() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w, w.h
}

// Present queues a copy of frame for the next Draw.
func (w *Window) Present(frame *image.RGBA) error {
	b := frame.Bounds()
	cp := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		copy(cp.Pix[y*cp.Stride:y*cp.Stride+b.Dx()*4], frame.Pix[frame.PixOffset(b.Min.X, b.Min.Y+y):])
	}
	w.mu.Lock()
	w.pending = cp
	w.mu.Unlock()
	return nil
}

// SetControls attaches the controller when it is built after the window.
// Call it before the game loop starts.
func (w *Window) SetControls(c Controls) {
	w.controls = c
}

// Update ends the game once the window's context is done.
func (w *Window) Update() error {
	if w.ctx.Err() != nil {
		return ebiten.Termination
	}
	if w.controls == nil {
		return nil
	}
	for key, layer := range layerKeys {
		if inpututil.IsKeyJustPressed(key) {
			w.visible[layer] = !w.visible[layer]
			if err := w.controls.SetLayerVisible(layer, w.visible[layer]); err != nil {
				w.log.Warn("toggling layer", zap.String("layer", string(layer)), zap.Error(err))
			}
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF) {
		if _, err := w.controls.FocusHighValue(); err != nil {
			w.log.Warn("focusing high value leads", zap.Error(err))
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		w.refresh()
	}
	return nil
}

// refresh runs off the game loop since it waits for a fetch.
func (w *Window) refresh() {
	if w.controls == nil || !w.refreshing.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer w.refreshing.Store(false)
		if err := w.controls.Refresh(w.ctx); err != nil {
			w.log.Debug("refresh", zap.Error(err))
		}
	}()
}

func (w *Window) Draw(screen *ebiten.Image) {
	w.mu.Lock()
	frame := w.pending
	w.pending = nil
	w.mu.Unlock()

	if frame != nil {
		b := frame.Bounds()
		if w.screen == nil || w.screen.Bounds().Dx() != b.Dx() || w.screen.Bounds().Dy() != b.Dy() {
			if w.screen != nil {
				w.screen.Deallocate()
			}
			w.screen = ebiten.NewImage(b.Dx(), b.Dy())
		}
		w.screen.WritePixels(frame.Pix)
	}
	if w.screen != nil {
		screen.DrawImage(w.screen, nil)
	}
}

// Layout tracks the window size so the next frame is rendered to fit it.
func (w *Window) Layout(outsideWidth, outsideHeight int) (int, int) {
	outsideWidth, outsideHeight = max(outsideWidth, 1), max(outsideHeight, 1)
	w.mu.Lock()
	resized := outsideWidth != w.w || outsideHeight != w.h
	w.w, w.h = outsideWidth, outsideHeight
	w.mu.Unlock()
	if resized {
		w.log.Debug("window resized", zap.Int("width", outsideWidth), zap.Int("height", outsideHeight))
		w.refresh()
	}
	return outsideWidth, outsideHeight
}
