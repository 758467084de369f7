package tabletop

import (
	"errors"
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"
)

// ErrNoRenderBackend is returned by Probe when the minimum rendering
// capability (shader compilation) is unavailable. This is fatal for engine
// initialization: no scene can ever be displayed.
var ErrNoRenderBackend = errors.New("tabletop: required render backend unavailable")

// Capabilities describes what the probed rendering backend supports beyond
// the minimum bar. Optional capabilities degrade the performance tier rather
// than aborting startup.
type Capabilities struct {
	// Shaders reports whether custom shaders compile. Always true for a
	// successful probe; a backend without shader support fails Probe.
	Shaders bool
	// OffscreenSurfaces reports whether off-screen render targets can be
	// created. Required for composite textures and blur filters.
	OffscreenSurfaces bool
	// PixelReadback reports whether rendered pixels can be read back from
	// the GPU. Needed for precise hit masks and screenshots.
	PixelReadback bool
}

// probeShaderSrc is a minimal Kage shader used only to verify that the
// backend can compile shaders at all.
const probeShaderSrc = `//kage:unit pixels
package main

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	return imageSrc0At(src)
}
`

// Probe detects rendering backend capability. It returns ErrNoRenderBackend
// (wrapped with the compile failure) when the minimum bar is not met, and a
// populated Capabilities value otherwise.
func Probe() (Capabilities, error) {
	shader, err := ebiten.NewShader([]byte(probeShaderSrc))
	if err != nil {
		return Capabilities{}, fmt.Errorf("%w: %v", ErrNoRenderBackend, err)
	}
	shader.Deallocate()

	caps := Capabilities{Shaders: true}

	caps.OffscreenSurfaces = probeOffscreen()
	if caps.OffscreenSurfaces {
		caps.PixelReadback = probeReadback()
	}
	return caps, nil
}

// probeOffscreen verifies that an off-screen surface can be created.
// Creation failures surface as panics in ebiten, so the probe recovers.
func probeOffscreen() (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	img := ebiten.NewImage(4, 4)
	img.Deallocate()
	return true
}

// probeReadback verifies that pixels written to an off-screen surface can be
// read back.
func probeReadback() (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	img := ebiten.NewImage(2, 2)
	defer img.Deallocate()
	buf := make([]byte, 2*2*4)
	img.ReadPixels(buf)
	return true
}

// RestoreContext handles a lost-and-recreated GPU context without a full
// scene teardown: the blend-mode mapping is re-derived and cached mask
// textures are invalidated so they regenerate on next use.
func (e *Engine) RestoreContext() {
	rebuildBlendTable()
	e.invalidateMaskTextures()
	e.log.Info("render context restored")
}

// invalidateMaskTextures deallocates every cached mask texture. Masks are
// regenerated lazily the next time a drawable requests one.
func (e *Engine) invalidateMaskTextures() {
	for key, img := range e.maskCache {
		if img != nil {
			img.Deallocate()
		}
		delete(e.maskCache, key)
	}
}

// MaskTexture returns the cached mask texture for key, generating it with
// gen on a miss. Cached masks survive scene switches but not context loss.
func (e *Engine) MaskTexture(key string, gen func() *ebiten.Image) *ebiten.Image {
	if img, ok := e.maskCache[key]; ok {
		return img
	}
	img := gen()
	e.maskCache[key] = img
	return img
}
