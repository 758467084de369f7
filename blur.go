package tabletop

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// BlurFilter applies a Kawase iterative blur using downscale/upscale passes.
// No shader needed — bilinear filtering during DrawImage does the work.
//
// A filter's base strength is fixed at registration time; the effective
// radius is base strength multiplied by the current camera zoom, recomputed
// by the registry on every pan so soft-shadow quality tracks scale
// consistently across every filter instance.
type BlurFilter struct {
	base      float64
	effective int
	temps     []*ebiten.Image
	imgOp     ebiten.DrawImageOptions
}

// newBlurFilter creates a blur filter with the given base strength in
// pixels at zoom 1.0. Use BlurRegistry.Register instead of constructing
// filters directly, so zoom changes reach the filter.
func newBlurFilter(base float64) *BlurFilter {
	if base < 0 {
		base = 0
	}
	f := &BlurFilter{base: base}
	f.setZoom(1.0)
	return f
}

// BaseStrength returns the strength configured at registration.
func (f *BlurFilter) BaseStrength() float64 { return f.base }

// EffectiveRadius returns the zoom-adjusted radius in pixels.
func (f *BlurFilter) EffectiveRadius() int { return f.effective }

// setZoom recomputes the effective radius for a camera zoom level.
// Strength scales linearly with zoom.
func (f *BlurFilter) setZoom(scale float64) {
	f.effective = int(math.Round(f.base * scale))
	if f.effective < 0 {
		f.effective = 0
	}
}

// Apply renders a Kawase blur from src into dst using iterative
// downscale/upscale at the current effective radius.
func (f *BlurFilter) Apply(src, dst *ebiten.Image) {
	if f.effective <= 0 {
		f.imgOp.GeoM.Reset()
		f.imgOp.ColorScale.Reset()
		f.imgOp.Filter = ebiten.FilterNearest
		dst.DrawImage(src, &f.imgOp)
		return
	}

	// Number of iterations: log2(radius), minimum 1.
	passes := int(math.Ceil(math.Log2(float64(f.effective))))
	if passes < 1 {
		passes = 1
	}

	srcBounds := src.Bounds()
	w, h := srcBounds.Dx(), srcBounds.Dy()

	// Grow/shrink the temp chain to match the pass count. The downscale
	// chain is reused for upscale.
	for len(f.temps) < passes {
		f.temps = append(f.temps, nil)
	}
	for i := passes; i < len(f.temps); i++ {
		if f.temps[i] != nil {
			f.temps[i].Deallocate()
			f.temps[i] = nil
		}
	}
	f.temps = f.temps[:passes]

	op := &f.imgOp

	// Downscale passes: each half-size.
	current := src
	for i := 0; i < passes; i++ {
		w = max(w/2, 1)
		h = max(h/2, 1)
		if f.temps[i] == nil || f.temps[i].Bounds().Dx() != w || f.temps[i].Bounds().Dy() != h {
			if f.temps[i] != nil {
				f.temps[i].Deallocate()
			}
			f.temps[i] = ebiten.NewImage(w, h)
		} else {
			f.temps[i].Clear()
		}
		op.GeoM.Reset()
		op.ColorScale.Reset()
		sw := float64(current.Bounds().Dx())
		sh := float64(current.Bounds().Dy())
		op.GeoM.Scale(float64(w)/sw, float64(h)/sh)
		op.Filter = ebiten.FilterLinear
		f.temps[i].DrawImage(current, op)
		current = f.temps[i]
	}

	// Upscale passes: draw each back up.
	for i := passes - 2; i >= 0; i-- {
		f.temps[i].Clear()
		op.GeoM.Reset()
		op.ColorScale.Reset()
		sw := float64(current.Bounds().Dx())
		sh := float64(current.Bounds().Dy())
		tw := float64(f.temps[i].Bounds().Dx())
		th := float64(f.temps[i].Bounds().Dy())
		op.GeoM.Scale(tw/sw, th/sh)
		op.Filter = ebiten.FilterLinear
		f.temps[i].DrawImage(current, op)
		current = f.temps[i]
	}

	// Final upscale to dst.
	op.GeoM.Reset()
	op.ColorScale.Reset()
	sw := float64(current.Bounds().Dx())
	sh := float64(current.Bounds().Dy())
	tw := float64(dst.Bounds().Dx())
	th := float64(dst.Bounds().Dy())
	op.GeoM.Scale(tw/sw, th/sh)
	op.Filter = ebiten.FilterLinear
	dst.DrawImage(current, op)
}

// dispose releases the temp chain.
func (f *BlurFilter) dispose() {
	for _, img := range f.temps {
		if img != nil {
			img.Deallocate()
		}
	}
	f.temps = nil
}

// BlurRegistry is a shared pool of blur filters whose effective strength is
// recomputed whenever the camera zoom changes. Individual filters may be
// owned by arbitrary drawables; the set itself lives for one displayed
// scene and is cleared on teardown.
type BlurRegistry struct {
	filters []*BlurFilter
	zoom    float64
}

// NewBlurRegistry creates an empty registry at zoom 1.0.
func NewBlurRegistry() *BlurRegistry {
	return &BlurRegistry{zoom: 1.0}
}

// Register creates a filter with the given base strength, applies the
// current zoom, and adds it to the pool.
func (r *BlurRegistry) Register(base float64) *BlurFilter {
	f := newBlurFilter(base)
	f.setZoom(r.zoom)
	r.filters = append(r.filters, f)
	return f
}

// SetZoom recomputes every registered filter's effective radius for the
// given camera zoom.
func (r *BlurRegistry) SetZoom(scale float64) {
	r.zoom = scale
	for _, f := range r.filters {
		f.setZoom(scale)
	}
}

// Zoom returns the zoom level filters are currently adjusted for.
func (r *BlurRegistry) Zoom() float64 { return r.zoom }

// Len returns the number of registered filters.
func (r *BlurRegistry) Len() int { return len(r.filters) }

// Clear disposes every filter's GPU resources and empties the pool.
// Called at scene teardown.
func (r *BlurRegistry) Clear() {
	for _, f := range r.filters {
		f.dispose()
	}
	r.filters = r.filters[:0]
}
