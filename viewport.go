package tabletop

import (
	"math"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// Default camera configuration. MaxZoom and the pan padding fraction can be
// overridden through EngineConfig.
const (
	defaultMaxZoom     = 3.0
	defaultPanPadding  = 0.4
	defaultPanDuration = 0.25 // seconds
	maxPanDuration     = 3.0  // seconds
)

// ViewState is the resolved camera pivot and zoom.
type ViewState struct {
	X, Y, Scale float64
}

// PanTarget selects which components of the view to change. Nil fields hold
// their current value, so callers may update any subset of the triple
// independently. Use Float to build values.
type PanTarget struct {
	X     *float64
	Y     *float64
	Scale *float64
}

// PanAnimOptions controls an animated pan. Zero values pick defaults:
// duration derived from Speed when given, otherwise a fixed short duration,
// with an ease-in-out curve.
type PanAnimOptions struct {
	// Duration is the animation length in seconds.
	Duration float64
	// Speed, when Duration is zero, derives the duration from the pan
	// distance in pixels per second.
	Speed float64
	// Easing selects the interpolation curve.
	Easing ease.TweenFunc
}

// Viewport owns the camera pan position and zoom scale, exposing immediate
// and animated transitions and clamping both to scene-derived bounds. Only
// the Viewport mutates the view position; all camera movement funnels
// through Pan.
type Viewport struct {
	stage *Node
	blur  *BlurRegistry
	hooks *HookBus

	screenW, screenH float64
	dims             SceneDimensions
	maxZoom          float64
	padFraction      float64
	animate          bool

	scene SceneDocument
	pos   ViewState
	anim  *PanAnimation
}

// newViewport wires the camera to its collaborators. Scene bounds are set
// later, per scene switch, via setScene.
func newViewport(stage *Node, blur *BlurRegistry, hooks *HookBus, screenW, screenH, maxZoom, padFraction float64) *Viewport {
	if maxZoom <= 0 {
		maxZoom = defaultMaxZoom
	}
	if padFraction <= 0 {
		padFraction = defaultPanPadding
	}
	return &Viewport{
		stage:       stage,
		blur:        blur,
		hooks:       hooks,
		screenW:     screenW,
		screenH:     screenH,
		maxZoom:     maxZoom,
		padFraction: padFraction,
		animate:     true,
		pos:         ViewState{Scale: 1},
	}
}

// setScene configures camera bounds from the scene dimensions and restores
// the persisted view position, falling back to a centered default scaled to
// fit the viewport for components that were never stored.
func (v *Viewport) setScene(doc SceneDocument, dims SceneDimensions) {
	v.scene = doc
	v.dims = dims
	v.anim = nil

	fit := v.fitScale()
	x := dims.Rect.X + dims.Rect.Width/2
	y := dims.Rect.Y + dims.Rect.Height/2
	scale := fit

	if doc != nil {
		initial := doc.InitialView()
		if initial.X != nil {
			x = *initial.X
		}
		if initial.Y != nil {
			y = *initial.Y
		}
		if initial.Scale != nil {
			scale = *initial.Scale
		}
	}
	v.Pan(PanTarget{X: Float(x), Y: Float(y), Scale: Float(scale)})
}

// clearScene detaches the camera from the torn-down scene. The position is
// kept so a blank canvas doesn't jump, but nothing is persisted.
func (v *Viewport) clearScene() {
	v.scene = nil
	v.anim = nil
}

// setAnimationsEnabled toggles animated pans. When disabled (reduced
// motion), AnimatePan snaps to its target immediately.
func (v *Viewport) setAnimationsEnabled(enabled bool) {
	v.animate = enabled
}

// Position returns the current camera pivot and zoom.
func (v *Viewport) Position() ViewState {
	return v.pos
}

// minScale returns the smallest permitted zoom: the scale at which the
// scene's larger dimension exactly fills the viewport.
func (v *Viewport) minScale() float64 {
	if v.dims.Rect.Width <= 0 || v.dims.Rect.Height <= 0 {
		return 0.05
	}
	var s float64
	if v.dims.Rect.Width >= v.dims.Rect.Height {
		s = v.screenW / v.dims.Rect.Width
	} else {
		s = v.screenH / v.dims.Rect.Height
	}
	return math.Min(s, v.maxZoom)
}

// fitScale returns the zoom at which the whole scene rectangle fits inside
// the viewport. Used for the centered default view.
func (v *Viewport) fitScale() float64 {
	if v.dims.Rect.Width <= 0 || v.dims.Rect.Height <= 0 {
		return 1
	}
	s := math.Min(v.screenW/v.dims.Rect.Width, v.screenH/v.dims.Rect.Height)
	return clampFloat(s, v.minScale(), v.maxZoom)
}

// clampView clamps a candidate view state to the scene-derived bounds:
// scale to [minScale, maxZoom], and the pivot so it cannot leave the scene
// rectangle by more than the padding fraction of the current viewport size.
// The padding shrinks as scale grows, since panning off-center is less
// useful when zoomed in far.
func (v *Viewport) clampView(s ViewState) ViewState {
	s.Scale = clampFloat(s.Scale, v.minScale(), v.maxZoom)

	padX := v.padFraction * (v.screenW / s.Scale)
	padY := v.padFraction * (v.screenH / s.Scale)

	s.X = clampFloat(s.X, v.dims.Rect.X-padX, v.dims.Rect.X+v.dims.Rect.Width+padX)
	s.Y = clampFloat(s.Y, v.dims.Rect.Y-padY, v.dims.Rect.Y+v.dims.Rect.Height+padY)
	return s
}

// Pan moves the camera. Omitted components hold their current value; the
// result is clamped, applied to the scene-graph root, propagated to the
// blur registry, persisted onto the active scene, and announced via the
// scene-panned hook. Pan is idempotent under re-application of its own
// output.
func (v *Viewport) Pan(t PanTarget) ViewState {
	next := v.pos
	if t.X != nil {
		next.X = *t.X
	}
	if t.Y != nil {
		next.Y = *t.Y
	}
	if t.Scale != nil {
		next.Scale = *t.Scale
	}

	next = v.clampView(next)
	v.pos = next
	v.applyToStage()

	if v.blur != nil {
		v.blur.SetZoom(next.Scale)
	}
	if v.scene != nil {
		v.scene.SetViewPosition(ViewPosition{
			X:     Float(next.X),
			Y:     Float(next.Y),
			Scale: Float(next.Scale),
		})
	}
	if v.hooks != nil {
		v.hooks.Call(HookScenePanned, next)
	}
	return next
}

// applyToStage writes the camera pivot and zoom onto the scene-graph root:
// the pivot point lands on the viewport center at the current scale.
func (v *Viewport) applyToStage() {
	if v.stage == nil {
		return
	}
	v.stage.PivotX = v.pos.X
	v.stage.PivotY = v.pos.Y
	v.stage.ScaleX = v.pos.Scale
	v.stage.ScaleY = v.pos.Scale
	v.stage.X = v.screenW / 2
	v.stage.Y = v.screenH / 2
	v.stage.MarkDirty()
}

// ScreenToWorld converts viewport coordinates to scene coordinates.
func (v *Viewport) ScreenToWorld(sx, sy float64) (wx, wy float64) {
	wx = v.pos.X + (sx-v.screenW/2)/v.pos.Scale
	wy = v.pos.Y + (sy-v.screenH/2)/v.pos.Scale
	return
}

// WorldToScreen converts scene coordinates to viewport coordinates.
func (v *Viewport) WorldToScreen(wx, wy float64) (sx, sy float64) {
	sx = (wx-v.pos.X)*v.pos.Scale + v.screenW/2
	sy = (wy-v.pos.Y)*v.pos.Scale + v.screenH/2
	return
}

// --- Animated pans ---

// PanAnimation interpolates the view toward a clamped target, routing every
// intermediate step through Pan so no out-of-bounds intermediate state can
// occur. Advance it from the engine tick; Done is set when the target is
// reached.
type PanAnimation struct {
	v          *Viewport
	tx, ty, ts *gween.Tween
	target     ViewState
	Done       bool
	// OnComplete, if set, fires once when the animation reaches its target.
	OnComplete func()
}

// AnimatePan starts an animated transition to the clamped target. A pending
// animation is replaced. When animations are disabled, the pan applies
// immediately and the returned animation is already Done.
func (v *Viewport) AnimatePan(t PanTarget, opts PanAnimOptions) *PanAnimation {
	target := v.pos
	if t.X != nil {
		target.X = *t.X
	}
	if t.Y != nil {
		target.Y = *t.Y
	}
	if t.Scale != nil {
		target.Scale = *t.Scale
	}
	target = v.clampView(target)

	if !v.animate {
		v.Pan(PanTarget{X: Float(target.X), Y: Float(target.Y), Scale: Float(target.Scale)})
		anim := &PanAnimation{v: v, target: target, Done: true}
		v.anim = nil
		return anim
	}

	duration := opts.Duration
	if duration <= 0 && opts.Speed > 0 {
		duration = math.Hypot(target.X-v.pos.X, target.Y-v.pos.Y) / opts.Speed
	}
	if duration <= 0 {
		duration = defaultPanDuration
	}
	if duration > maxPanDuration {
		duration = maxPanDuration
	}
	easing := opts.Easing
	if easing == nil {
		easing = ease.InOutQuad
	}

	d := float32(duration)
	anim := &PanAnimation{
		v:      v,
		target: target,
		tx:     gween.New(float32(v.pos.X), float32(target.X), d, easing),
		ty:     gween.New(float32(v.pos.Y), float32(target.Y), d, easing),
		ts:     gween.New(float32(v.pos.Scale), float32(target.Scale), d, easing),
	}
	v.anim = anim
	return anim
}

// update advances the animation by dt seconds.
func (a *PanAnimation) update(dt float32) {
	if a.Done {
		return
	}
	x, doneX := a.tx.Update(dt)
	y, doneY := a.ty.Update(dt)
	s, doneS := a.ts.Update(dt)

	if doneX && doneY && doneS {
		// Land exactly on the clamped target even if a transition step
		// was missed.
		a.v.Pan(PanTarget{X: Float(a.target.X), Y: Float(a.target.Y), Scale: Float(a.target.Scale)})
		a.Done = true
		if a.OnComplete != nil {
			a.OnComplete()
		}
		return
	}
	a.v.Pan(PanTarget{X: Float(float64(x)), Y: Float(float64(y)), Scale: Float(float64(s))})
}

// update advances any pending pan animation. Called once per engine tick.
func (v *Viewport) update(dt float32) {
	if v.anim == nil {
		return
	}
	v.anim.update(dt)
	if v.anim.Done {
		v.anim = nil
	}
}

// Animating reports whether an animated pan is in progress.
func (v *Viewport) Animating() bool {
	return v.anim != nil
}

func clampFloat(v, lo, hi float64) float64 {
	if lo > hi {
		return (lo + hi) / 2
	}
	return math.Max(lo, math.Min(v, hi))
}
