package tabletop

import "testing"

// newInputEngine builds a ready engine showing a 4000x3000 scene in a
// 1000x800 viewport (camera centered at (2000, 1500), scale 0.25), with a
// single interactive token layer.
func newInputEngine(t *testing.T, events *[]string) (*Engine, *recLayer, *fakePrefs) {
	t.Helper()
	var layer *recLayer
	prefs := &fakePrefs{}
	groups := []GroupConfig{
		{Name: "environment", Parent: "", New: func(e *Engine) Group { return NewBaseGroup("environment") }},
	}
	layers := []LayerConfig{
		{Name: "tokens", EmbeddedType: "Token", CollectionName: "tokens", Group: "environment",
			New: func(e *Engine) Layer {
				layer = newRecLayer("tokens", "Token", "tokens", events)
				return layer
			}},
	}
	e := New(EngineConfig{
		ScreenWidth:  1000,
		ScreenHeight: 800,
		Groups:       groups,
		Layers:       layers,
		Textures:     &fakeLoader{},
		Prefs:        prefs,
		Log:          quietLogger(),
		Probe: func() (Capabilities, error) {
			return Capabilities{Shaders: true, OffscreenSurfaces: true, PixelReadback: true}, nil
		},
	})
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := e.Draw(newFakeScene("in1", 4000, 3000)); err != nil {
		t.Fatal(err)
	}
	if err := e.Dispatcher().ActivateLayer("tokens"); err != nil {
		t.Fatal(err)
	}
	return e, layer, prefs
}

func TestRightDragPansCamera(t *testing.T) {
	var events []string
	e, _, _ := newInputEngine(t, &events)
	d := e.Dispatcher()

	d.InjectDrag(500, 400, 600, 450, MouseButtonRight, 0)
	d.flushInjected()

	// Two moves of (50, 25) screen px at scale 0.25 with the default 0.8
	// drag speed modifier: each shifts the pivot by (-160, -80).
	pos := e.Viewport().Position()
	if !approxEqual(pos.X, 1680) || !approxEqual(pos.Y, 1340) {
		t.Errorf("pivot = (%v, %v), want (1680, 1340)", pos.X, pos.Y)
	}
	if d.Session() != nil {
		t.Error("session not cleared after release")
	}
}

func TestToolActivationPersists(t *testing.T) {
	var events []string
	e, _, prefs := newInputEngine(t, &events)
	d := e.Dispatcher()
	d.RegisterTool(ToolDef{Name: "measure", Kind: GestureMeasure})

	if err := d.ActivateTool("measure"); err != nil {
		t.Fatal(err)
	}
	if d.ActiveTool() != "measure" || prefs.lastTool != "measure" {
		t.Errorf("active %q, persisted %q", d.ActiveTool(), prefs.lastTool)
	}

	if err := d.ActivateTool("missing"); err == nil {
		t.Error("unknown tool accepted")
	}
}

func TestLastToolRestoredOnSceneReady(t *testing.T) {
	var events []string
	prefs := &fakePrefs{lastTool: "measure"}
	groups := []GroupConfig{
		{Name: "environment", Parent: "", New: func(e *Engine) Group { return NewBaseGroup("environment") }},
	}
	layers := []LayerConfig{
		{Name: "tokens", EmbeddedType: "Token", CollectionName: "tokens", Group: "environment",
			New: func(e *Engine) Layer { return newRecLayer("tokens", "Token", "tokens", &events) }},
	}
	e := New(EngineConfig{
		ScreenWidth: 1000, ScreenHeight: 800,
		Groups: groups, Layers: layers,
		Textures: &fakeLoader{}, Prefs: prefs, Log: quietLogger(),
		Probe: func() (Capabilities, error) {
			return Capabilities{Shaders: true, OffscreenSurfaces: true, PixelReadback: true}, nil
		},
	})
	e.Dispatcher().RegisterTool(ToolDef{Name: "measure", Kind: GestureMeasure})
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := e.Draw(newFakeScene("in2", 4000, 3000)); err != nil {
		t.Fatal(err)
	}

	if e.Dispatcher().ActiveTool() != "measure" {
		t.Errorf("active tool = %q, want the persisted measure tool", e.Dispatcher().ActiveTool())
	}
}

func TestMeasureGesture(t *testing.T) {
	var events []string
	e, _, _ := newInputEngine(t, &events)
	d := e.Dispatcher()
	d.RegisterTool(ToolDef{Name: "measure", Kind: GestureMeasure})
	if err := d.ActivateTool("measure"); err != nil {
		t.Fatal(err)
	}

	var got []Measurement
	d.OnMeasure = func(m Measurement) { got = append(got, m) }

	// 400 screen px at scale 0.25 is 1600 world units; the grid is 100.
	d.InjectDrag(500, 400, 900, 400, MouseButtonLeft, 0)
	d.flushInjected()

	if len(got) != 1 {
		t.Fatalf("measurements = %d, want 1", len(got))
	}
	m := got[0]
	if !approxEqual(m.WorldDistance, 1600) || !approxEqual(m.GridDistance, 16) {
		t.Errorf("distance = %v world / %v grid, want 1600 / 16", m.WorldDistance, m.GridDistance)
	}
	if len(m.Waypoints) != 2 {
		t.Errorf("waypoints = %d, want 2", len(m.Waypoints))
	}
	if !approxEqual(m.Waypoints[0].X, 2000) || !approxEqual(m.Waypoints[1].X, 3600) {
		t.Errorf("waypoints = %+v", m.Waypoints)
	}
}

func TestMeasureWaypoints(t *testing.T) {
	var events []string
	e, _, _ := newInputEngine(t, &events)
	d := e.Dispatcher()
	d.RegisterTool(ToolDef{Name: "measure", Kind: GestureMeasure})
	if err := d.ActivateTool("measure"); err != nil {
		t.Fatal(err)
	}

	var got []Measurement
	d.OnMeasure = func(m Measurement) { got = append(got, m) }

	d.InjectPress(500, 400, MouseButtonLeft, 0)
	d.InjectMove(700, 400, 0)
	d.flushInjected()
	d.CommitWaypoint()
	d.InjectMove(700, 300, 0)
	d.InjectRelease(700, 300, MouseButtonLeft, 0)
	d.flushInjected()

	if len(got) != 1 {
		t.Fatalf("measurements = %d, want 1", len(got))
	}
	m := got[0]
	// Two legs: 800 right, then 400 up, in world units.
	if len(m.Waypoints) != 3 {
		t.Fatalf("waypoints = %d, want 3", len(m.Waypoints))
	}
	if !approxEqual(m.WorldDistance, 1200) || !approxEqual(m.GridDistance, 12) {
		t.Errorf("distance = %v world / %v grid, want 1200 / 12", m.WorldDistance, m.GridDistance)
	}
}

func TestBoxSelectControls(t *testing.T) {
	var events []string
	e, layer, _ := newInputEngine(t, &events)
	layer.selection = []string{"t1", "t2"}
	d := e.Dispatcher()
	d.RegisterTool(ToolDef{Name: "select", Kind: GestureBoxSelect})
	if err := d.ActivateTool("select"); err != nil {
		t.Fatal(err)
	}

	d.InjectDrag(400, 300, 600, 500, MouseButtonLeft, 0)
	d.flushInjected()

	if got := e.Controlled(); len(got) != 2 || got[0] != "t1" {
		t.Errorf("controlled = %v, want [t1 t2]", got)
	}
	if len(e.Targeted()) != 0 {
		t.Errorf("targeted = %v, want empty", e.Targeted())
	}
}

func TestBoxSelectWithShiftTargets(t *testing.T) {
	var events []string
	e, layer, _ := newInputEngine(t, &events)
	layer.selection = []string{"t3"}
	d := e.Dispatcher()
	d.RegisterTool(ToolDef{Name: "select", Kind: GestureBoxSelect})
	if err := d.ActivateTool("select"); err != nil {
		t.Fatal(err)
	}

	d.InjectDrag(400, 300, 600, 500, MouseButtonLeft, ModShift)
	d.flushInjected()

	if got := e.Targeted(); len(got) != 1 || got[0] != "t3" {
		t.Errorf("targeted = %v, want [t3]", got)
	}
	if len(e.Controlled()) != 0 {
		t.Errorf("controlled = %v, want empty", e.Controlled())
	}
}

func TestLayerDragDelegation(t *testing.T) {
	var events []string
	e, _, _ := newInputEngine(t, &events)
	d := e.Dispatcher()

	d.InjectDrag(500, 400, 600, 450, MouseButtonLeft, 0)
	d.flushInjected()

	want := []string{"dragstart", "dragmove", "dragmove", "dragend"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events = %v, want %v", events, want)
		}
	}
}

func TestLayerDragRequiresActiveLayer(t *testing.T) {
	var events []string
	e, layer, _ := newInputEngine(t, &events)
	layer.Deactivate()
	d := e.Dispatcher()

	d.InjectDrag(500, 400, 600, 450, MouseButtonLeft, 0)
	d.flushInjected()

	for _, ev := range events {
		if ev == "dragstart" {
			t.Error("drag delegated to an inactive layer")
		}
	}
}

func TestToolGatesDragStart(t *testing.T) {
	var events []string
	e, _, _ := newInputEngine(t, &events)
	d := e.Dispatcher()
	d.RegisterTool(ToolDef{
		Name:           "locked",
		Kind:           GestureLayerDrag,
		AllowDragStart: func(e *Engine) bool { return false },
	})
	if err := d.ActivateTool("locked"); err != nil {
		t.Fatal(err)
	}

	d.InjectDrag(500, 400, 600, 450, MouseButtonLeft, 0)
	d.flushInjected()

	for _, ev := range events {
		if ev == "dragstart" {
			t.Error("gated tool allowed a drag")
		}
	}
}

func TestCancelGesture(t *testing.T) {
	var events []string
	e, _, _ := newInputEngine(t, &events)
	d := e.Dispatcher()

	d.InjectPress(500, 400, MouseButtonLeft, 0)
	d.InjectMove(600, 450, 0)
	d.flushInjected()

	d.CancelGesture()
	if d.Session() != nil {
		t.Error("session survived cancel")
	}
	last := events[len(events)-1]
	if last != "dragcancel" {
		t.Errorf("last event = %q, want dragcancel", last)
	}

	// The stale release is a no-op.
	d.InjectRelease(600, 450, MouseButtonLeft, 0)
	d.flushInjected()
	if events[len(events)-1] != "dragcancel" {
		t.Errorf("release after cancel dispatched: %v", events)
	}
}

func TestClickDelegation(t *testing.T) {
	var events []string
	e, _, _ := newInputEngine(t, &events)
	d := e.Dispatcher()

	// Screen center maps to the camera pivot.
	d.InjectClick(500, 400, MouseButtonLeft, 0)
	d.flushInjected()

	if len(events) != 1 || events[0] != "click:2000,1500" {
		t.Errorf("events = %v, want [click:2000,1500]", events)
	}
}

func TestEdgePanDuringDrag(t *testing.T) {
	var events []string
	e, _, _ := newInputEngine(t, &events)
	d := e.Dispatcher()

	d.InjectPress(500, 400, MouseButtonLeft, 0)
	d.InjectMove(5, 400, 0)
	d.flushInjected()

	if !e.Viewport().Animating() {
		t.Fatal("edge did not start a pan animation")
	}

	// Further edge contact within the cooldown window is ignored.
	wasCooldown := d.edgeCooldown
	d.InjectMove(4, 400, 0)
	d.flushInjected()
	if d.edgeCooldown != wasCooldown {
		t.Error("edge pan not throttled")
	}
}

func TestDispatcherDisabledIgnoresInput(t *testing.T) {
	var events []string
	e, _, _ := newInputEngine(t, &events)
	d := e.Dispatcher()
	if err := e.TearDown(); err != nil {
		t.Fatal(err)
	}

	d.InjectPress(500, 400, MouseButtonLeft, 0)
	d.flushInjected()
	if d.Session() != nil {
		t.Error("disabled dispatcher opened a session")
	}
}
