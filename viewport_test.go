package tabletop

import "testing"

// newTestViewport builds a 1000x800 viewport over a 4000x3000 scene.
func newTestViewport() (*Viewport, *fakeScene) {
	doc := newFakeScene("v1", 4000, 3000)
	dims := ComputeSceneDimensions(doc)
	v := newViewport(NewContainer("stage"), NewBlurRegistry(), NewHookBus(quietLogger()), 1000, 800, 0, 0)
	v.setScene(doc, dims)
	return v, doc
}

func TestViewportDefaultViewCenteredFit(t *testing.T) {
	v, _ := newTestViewport()

	pos := v.Position()
	if !approxEqual(pos.X, 2000) || !approxEqual(pos.Y, 1500) {
		t.Errorf("default pivot = (%v, %v), want (2000, 1500)", pos.X, pos.Y)
	}
	// Fit scale of a 4000x3000 scene in 1000x800 is 0.25.
	if !approxEqual(pos.Scale, 0.25) {
		t.Errorf("default scale = %v, want 0.25", pos.Scale)
	}
}

func TestViewportRestoresStoredView(t *testing.T) {
	doc := newFakeScene("v2", 4000, 3000)
	doc.view = ViewPosition{X: Float(1200), Y: Float(900), Scale: Float(1.5)}
	v := newViewport(NewContainer("stage"), NewBlurRegistry(), NewHookBus(quietLogger()), 1000, 800, 0, 0)
	v.setScene(doc, ComputeSceneDimensions(doc))

	pos := v.Position()
	if !approxEqual(pos.X, 1200) || !approxEqual(pos.Y, 900) || !approxEqual(pos.Scale, 1.5) {
		t.Errorf("restored view = %+v", pos)
	}
}

func TestViewportScaleClamp(t *testing.T) {
	v, _ := newTestViewport()

	pos := v.Pan(PanTarget{Scale: Float(10)})
	if !approxEqual(pos.Scale, 3.0) {
		t.Errorf("zoom in clamped to %v, want 3.0", pos.Scale)
	}

	pos = v.Pan(PanTarget{Scale: Float(0.01)})
	// Minimum scale fills the viewport with the larger scene dimension:
	// 1000 / 4000.
	if !approxEqual(pos.Scale, 0.25) {
		t.Errorf("zoom out clamped to %v, want 0.25", pos.Scale)
	}
}

func TestViewportPanPadding(t *testing.T) {
	v, _ := newTestViewport()
	v.Pan(PanTarget{Scale: Float(0.5)})

	// At scale 0.5 the pivot may overshoot the scene rectangle by
	// 0.4 * (1000 / 0.5) = 800 horizontally and 0.4 * (800 / 0.5) = 640
	// vertically.
	pos := v.Pan(PanTarget{X: Float(99999), Y: Float(99999)})
	if !approxEqual(pos.X, 4800) || !approxEqual(pos.Y, 3640) {
		t.Errorf("overshoot clamped to (%v, %v), want (4800, 3640)", pos.X, pos.Y)
	}

	pos = v.Pan(PanTarget{X: Float(-99999), Y: Float(-99999)})
	if !approxEqual(pos.X, -800) || !approxEqual(pos.Y, -640) {
		t.Errorf("undershoot clamped to (%v, %v), want (-800, -640)", pos.X, pos.Y)
	}
}

func TestViewportPaddingShrinksWithZoom(t *testing.T) {
	v, _ := newTestViewport()
	v.Pan(PanTarget{Scale: Float(2)})

	// 0.4 * (1000 / 2) = 200.
	pos := v.Pan(PanTarget{X: Float(99999)})
	if !approxEqual(pos.X, 4200) {
		t.Errorf("overshoot at 2x clamped to %v, want 4200", pos.X)
	}
}

func TestViewportPanIdempotent(t *testing.T) {
	v, _ := newTestViewport()

	first := v.Pan(PanTarget{X: Float(5000), Y: Float(-200), Scale: Float(0.5)})
	second := v.Pan(PanTarget{X: Float(first.X), Y: Float(first.Y), Scale: Float(first.Scale)})
	if first != second {
		t.Errorf("re-applying pan output moved the view: %+v -> %+v", first, second)
	}
}

func TestViewportPartialPanTarget(t *testing.T) {
	v, _ := newTestViewport()
	v.Pan(PanTarget{X: Float(1000), Y: Float(1000), Scale: Float(1)})

	pos := v.Pan(PanTarget{X: Float(1500)})
	if !approxEqual(pos.X, 1500) || !approxEqual(pos.Y, 1000) || !approxEqual(pos.Scale, 1) {
		t.Errorf("partial pan = %+v, want only X changed", pos)
	}
}

func TestViewportPanPersistsToScene(t *testing.T) {
	v, doc := newTestViewport()
	v.Pan(PanTarget{X: Float(1111), Y: Float(999), Scale: Float(1)})

	if doc.view.X == nil || !approxEqual(*doc.view.X, 1111) {
		t.Errorf("persisted X = %v", doc.view.X)
	}
	if doc.view.Scale == nil || !approxEqual(*doc.view.Scale, 1) {
		t.Errorf("persisted Scale = %v", doc.view.Scale)
	}
}

func TestViewportPanEmitsHook(t *testing.T) {
	doc := newFakeScene("v3", 4000, 3000)
	bus := NewHookBus(quietLogger())
	var got []ViewState
	bus.On(HookScenePanned, func(payload any) {
		got = append(got, payload.(ViewState))
	})
	v := newViewport(NewContainer("stage"), NewBlurRegistry(), bus, 1000, 800, 0, 0)
	v.setScene(doc, ComputeSceneDimensions(doc))

	v.Pan(PanTarget{X: Float(500)})
	if len(got) == 0 {
		t.Fatal("no scene-panned hook fired")
	}
	last := got[len(got)-1]
	if !approxEqual(last.X, 500) {
		t.Errorf("hook payload X = %v, want 500", last.X)
	}
}

func TestViewportPanUpdatesBlurZoom(t *testing.T) {
	doc := newFakeScene("v4", 4000, 3000)
	blur := NewBlurRegistry()
	f := blur.Register(4)
	v := newViewport(NewContainer("stage"), blur, NewHookBus(quietLogger()), 1000, 800, 0, 0)
	v.setScene(doc, ComputeSceneDimensions(doc))

	v.Pan(PanTarget{Scale: Float(2)})
	if f.EffectiveRadius() != 8 {
		t.Errorf("effective radius = %d, want 8", f.EffectiveRadius())
	}
}

func TestViewportStageFollowsCamera(t *testing.T) {
	v, _ := newTestViewport()
	v.Pan(PanTarget{X: Float(1000), Y: Float(800), Scale: Float(2)})

	s := v.stage
	if !approxEqual(s.PivotX, 1000) || !approxEqual(s.PivotY, 800) {
		t.Errorf("stage pivot = (%v, %v)", s.PivotX, s.PivotY)
	}
	if !approxEqual(s.ScaleX, 2) || !approxEqual(s.X, 500) || !approxEqual(s.Y, 400) {
		t.Errorf("stage transform = scale %v at (%v, %v)", s.ScaleX, s.X, s.Y)
	}
}

func TestScreenWorldRoundTrip(t *testing.T) {
	v, _ := newTestViewport()
	v.Pan(PanTarget{X: Float(2000), Y: Float(1500), Scale: Float(2)})

	wx, wy := v.ScreenToWorld(500, 400)
	if !approxEqual(wx, 2000) || !approxEqual(wy, 1500) {
		t.Errorf("screen center = world (%v, %v), want pivot", wx, wy)
	}

	sx, sy := v.WorldToScreen(2100, 1500)
	if !approxEqual(sx, 700) || !approxEqual(sy, 400) {
		t.Errorf("world (2100,1500) = screen (%v, %v), want (700, 400)", sx, sy)
	}
}

func TestAnimatePanReachesTarget(t *testing.T) {
	v, _ := newTestViewport()
	start := v.Position()

	anim := v.AnimatePan(PanTarget{X: Float(3000), Scale: Float(1)}, PanAnimOptions{Duration: 0.5})
	if anim.Done {
		t.Fatal("animation done before any update")
	}

	completed := false
	anim.OnComplete = func() { completed = true }

	for i := 0; i < 120 && v.Animating(); i++ {
		v.update(1.0 / 60.0)
	}

	pos := v.Position()
	if !anim.Done || !completed {
		t.Fatal("animation never completed")
	}
	if !approxEqual(pos.X, 3000) || !approxEqual(pos.Scale, 1) {
		t.Errorf("final position = %+v", pos)
	}
	if approxEqual(pos.X, start.X) {
		t.Error("camera did not move")
	}
}

func TestAnimatePanIntermediateStatesClamped(t *testing.T) {
	v, _ := newTestViewport()
	v.Pan(PanTarget{Scale: Float(1)})

	v.AnimatePan(PanTarget{X: Float(99999)}, PanAnimOptions{Duration: 0.5})
	maxX := v.dims.Rect.Width + v.padFraction*(v.screenW/1.0)
	for i := 0; i < 120 && v.Animating(); i++ {
		v.update(1.0 / 60.0)
		if v.Position().X > maxX+1e-6 {
			t.Fatalf("intermediate X %v exceeds bound %v", v.Position().X, maxX)
		}
	}
}

func TestAnimatePanSnapsWhenAnimationsDisabled(t *testing.T) {
	v, _ := newTestViewport()
	v.setAnimationsEnabled(false)

	anim := v.AnimatePan(PanTarget{X: Float(3000)}, PanAnimOptions{Duration: 1})
	if !anim.Done {
		t.Error("animation not immediately done with animations disabled")
	}
	if !approxEqual(v.Position().X, 3000) {
		t.Errorf("position X = %v, want 3000", v.Position().X)
	}
	if v.Animating() {
		t.Error("viewport still animating")
	}
}

func TestAnimatePanSpeedDerivesDuration(t *testing.T) {
	v, _ := newTestViewport()
	v.Pan(PanTarget{X: Float(1000), Y: Float(1500), Scale: Float(1)})

	// 2000 world units at 1000 units/sec is 2 seconds.
	v.AnimatePan(PanTarget{X: Float(3000)}, PanAnimOptions{Speed: 1000})
	ticks := 0
	for ; ticks < 1000 && v.Animating(); ticks++ {
		v.update(1.0 / 60.0)
	}
	if ticks < 100 || ticks > 140 {
		t.Errorf("animation took %d ticks, want about 120", ticks)
	}
}

func TestAnimatePanReplacesPending(t *testing.T) {
	v, _ := newTestViewport()
	v.Pan(PanTarget{Scale: Float(1)})

	v.AnimatePan(PanTarget{X: Float(3000)}, PanAnimOptions{Duration: 1})
	v.AnimatePan(PanTarget{X: Float(1000)}, PanAnimOptions{Duration: 0.1})
	for i := 0; i < 60 && v.Animating(); i++ {
		v.update(1.0 / 60.0)
	}
	if !approxEqual(v.Position().X, 1000) {
		t.Errorf("final X = %v, want the replacement target 1000", v.Position().X)
	}
}
