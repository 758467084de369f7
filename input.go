package tabletop

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

const (
	defaultDragSpeedModifier = 0.8
	defaultEdgePanMargin     = 20.0

	// Cursor movement below this many screen pixels stays a click.
	dragThresholdPx = 4.0

	// Minimum ticks between edge-pan steps while dragging.
	edgePanCooldownTicks = 30
)

// GestureKind classifies an interaction session.
type GestureKind uint8

const (
	GestureNone GestureKind = iota
	// GestureDragPan moves the camera with the pointer (right-drag).
	GestureDragPan
	// GestureBoxSelect selects or targets objects under a dragged rectangle.
	GestureBoxSelect
	// GestureMeasure measures scene distance along dragged waypoints.
	GestureMeasure
	// GestureLayerDrag is delegated to the active layer's DragDelegate.
	GestureLayerDrag
)

func (k GestureKind) String() string {
	switch k {
	case GestureDragPan:
		return "drag-pan"
	case GestureBoxSelect:
		return "box-select"
	case GestureMeasure:
		return "measure"
	case GestureLayerDrag:
		return "layer-drag"
	default:
		return "none"
	}
}

// InteractionSession is the state of one in-flight gesture. Coordinates are
// in scene (world) space. At most one session exists at a time.
type InteractionSession struct {
	ID        uuid.UUID
	Kind      GestureKind
	Button    MouseButton
	Modifiers KeyModifiers

	OriginX, OriginY float64
	DestX, DestY     float64

	// Target is the interactive layer the gesture is delegated to, when any.
	Target Layer

	// Waypoints are the committed measurement vertices, origin first. The
	// current destination is not included until committed or finalized.
	Waypoints []Vec2
}

// Bounds returns the normalized world-space rectangle spanned by the
// session's origin and destination.
func (s *InteractionSession) Bounds() Rect {
	return Rect{
		X:      s.OriginX,
		Y:      s.OriginY,
		Width:  s.DestX - s.OriginX,
		Height: s.DestY - s.OriginY,
	}.Normalized()
}

// ToolDef declares an interaction tool. The active tool decides what a
// left-drag means.
type ToolDef struct {
	Name string
	Kind GestureKind
	// AllowDragStart, when set, gates left-drag gestures for this tool.
	AllowDragStart func(e *Engine) bool
}

// Measurement is the result of a finalized measure gesture.
type Measurement struct {
	// Waypoints are the measured vertices in world space, origin first,
	// final destination last.
	Waypoints []Vec2
	// WorldDistance is the summed segment length in scene units.
	WorldDistance float64
	// GridDistance is WorldDistance expressed in grid squares.
	GridDistance float64
}

// BoxSelector is implemented by layers that resolve box-select gestures to
// object IDs.
type BoxSelector interface {
	// ObjectsInRect returns the IDs of the layer's objects inside the
	// world-space rectangle.
	ObjectsInRect(r Rect) []string
}

// ClickDelegate is implemented by layers that handle plain clicks.
type ClickDelegate interface {
	Click(wx, wy float64, button MouseButton, mods KeyModifiers)
}

// Dispatcher routes pointer input to gestures: camera drag-pan on
// right-drag, and tool-dependent left-drag gestures (box selection,
// measurement, or layer-delegated drags). It owns the single active
// InteractionSession and the active tool/layer.
//
// Input normally comes from the host window each tick; tests and macros
// drive the same state machine through the Inject methods.
type Dispatcher struct {
	e          *Engine
	dragSpeed  float64
	edgeMargin float64
	enabled    bool

	tools      map[string]ToolDef
	activeTool string

	activeLayer Layer

	session  *InteractionSession
	dragging bool
	button   MouseButton
	downX    float64
	downY    float64
	lastX    float64
	lastY    float64

	edgeCooldown int

	injected []pointerEvent

	// OnMeasure, if set, receives each finalized measurement.
	OnMeasure func(m Measurement)
}

func newDispatcher(e *Engine, dragSpeed, edgeMargin float64) *Dispatcher {
	if dragSpeed <= 0 {
		dragSpeed = defaultDragSpeedModifier
	}
	if edgeMargin <= 0 {
		edgeMargin = defaultEdgePanMargin
	}
	return &Dispatcher{
		e:          e,
		dragSpeed:  dragSpeed,
		edgeMargin: edgeMargin,
		tools:      make(map[string]ToolDef),
	}
}

// setEnabled toggles gesture dispatch. Enabled when a scene becomes ready,
// disabled during teardown. Enabling restores the persisted last tool.
func (d *Dispatcher) setEnabled(on bool) {
	d.enabled = on
	if !on {
		return
	}
	if d.activeTool == "" {
		if last := d.e.prefs.LastTool(); last != "" {
			if _, ok := d.tools[last]; ok {
				d.activeTool = last
			}
		}
	}
}

// reset clears scene-scoped interaction state at teardown. Registered tools
// survive scene switches; the active layer does not.
func (d *Dispatcher) reset() {
	d.cancelGesture()
	d.activeLayer = nil
	d.injected = d.injected[:0]
	d.edgeCooldown = 0
}

// --- Tools and layers ---

// RegisterTool adds a tool definition. Re-registering a name replaces it.
func (d *Dispatcher) RegisterTool(t ToolDef) {
	if t.Name == "" {
		panic("tabletop: tool with empty name")
	}
	d.tools[t.Name] = t
}

// ActivateTool makes the named tool current and persists the choice so the
// next session starts on the same tool.
func (d *Dispatcher) ActivateTool(name string) error {
	if _, ok := d.tools[name]; !ok {
		return fmt.Errorf("tabletop: unknown tool %q", name)
	}
	d.activeTool = name
	d.e.prefs.SetLastTool(name)
	return nil
}

// ActiveTool returns the current tool name, or "".
func (d *Dispatcher) ActiveTool() string { return d.activeTool }

// ActivateLayer makes the layer with the given collection name the gesture
// target, deactivating the previous one.
func (d *Dispatcher) ActivateLayer(collectionName string) error {
	l := d.e.LayerByCollectionName(collectionName)
	if l == nil {
		return fmt.Errorf("tabletop: unknown layer collection %q", collectionName)
	}
	if d.activeLayer != nil && d.activeLayer != l {
		d.activeLayer.Deactivate()
	}
	d.activeLayer = l
	l.Activate()
	return nil
}

// ActiveLayer returns the gesture target layer, or nil.
func (d *Dispatcher) ActiveLayer() Layer { return d.activeLayer }

// Session returns the in-flight interaction session, or nil.
func (d *Dispatcher) Session() *InteractionSession { return d.session }

// --- Per-tick pump ---

// update consumes one injected event if any are queued, otherwise polls the
// host window. Called once per engine tick.
func (d *Dispatcher) update() {
	if d.edgeCooldown > 0 {
		d.edgeCooldown--
	}
	if len(d.injected) > 0 {
		ev := d.injected[0]
		d.injected = d.injected[1:]
		d.apply(ev)
		return
	}
	d.pollWindow()
}

func (d *Dispatcher) pollWindow() {
	cx, cy := ebiten.CursorPosition()
	x, y := float64(cx), float64(cy)
	mods := windowModifiers()

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		d.pointerDown(x, y, MouseButtonLeft, mods)
	}
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonRight) {
		d.pointerDown(x, y, MouseButtonRight, mods)
	}
	if x != d.lastX || y != d.lastY {
		d.pointerMove(x, y, mods)
	}
	if inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft) {
		d.pointerUp(x, y, MouseButtonLeft, mods)
	}
	if inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonRight) {
		d.pointerUp(x, y, MouseButtonRight, mods)
	}
}

func windowModifiers() KeyModifiers {
	var m KeyModifiers
	if ebiten.IsKeyPressed(ebiten.KeyShift) {
		m |= ModShift
	}
	if ebiten.IsKeyPressed(ebiten.KeyControl) {
		m |= ModCtrl
	}
	if ebiten.IsKeyPressed(ebiten.KeyAlt) {
		m |= ModAlt
	}
	if ebiten.IsKeyPressed(ebiten.KeyMeta) {
		m |= ModMeta
	}
	return m
}

// --- Pointer state machine ---

func (d *Dispatcher) pointerDown(x, y float64, button MouseButton, mods KeyModifiers) {
	if !d.enabled || d.session != nil || d.dragging {
		return
	}
	if button == MouseButtonMiddle {
		return
	}
	d.button = button
	d.downX, d.downY = x, y
	d.lastX, d.lastY = x, y
	d.dragging = false

	// A session is created lazily once the cursor exceeds the drag
	// threshold; until then this press may still resolve to a click.
	d.session = d.newSession(button, mods, x, y)
}

func (d *Dispatcher) newSession(button MouseButton, mods KeyModifiers, x, y float64) *InteractionSession {
	wx, wy := d.e.viewport.ScreenToWorld(x, y)
	return &InteractionSession{
		ID:        uuid.New(),
		Kind:      GestureNone,
		Button:    button,
		Modifiers: mods,
		OriginX:   wx,
		OriginY:   wy,
		DestX:     wx,
		DestY:     wy,
	}
}

func (d *Dispatcher) pointerMove(x, y float64, mods KeyModifiers) {
	dx, dy := x-d.lastX, y-d.lastY
	d.lastX, d.lastY = x, y
	if !d.enabled || d.session == nil {
		return
	}
	d.session.Modifiers = mods

	if !d.dragging {
		if math.Hypot(x-d.downX, y-d.downY) < dragThresholdPx {
			return
		}
		if !d.beginDrag() {
			return
		}
	}

	s := d.session
	switch s.Kind {
	case GestureDragPan:
		// The world point under the cursor stays under the cursor,
		// softened by the drag speed modifier.
		pos := d.e.viewport.Position()
		d.e.viewport.Pan(PanTarget{
			X: Float(pos.X - dx/pos.Scale*d.dragSpeed),
			Y: Float(pos.Y - dy/pos.Scale*d.dragSpeed),
		})
	default:
		s.DestX, s.DestY = d.e.viewport.ScreenToWorld(x, y)
		if s.Kind == GestureLayerDrag {
			if del, ok := s.Target.(DragDelegate); ok {
				del.DragMove(s)
			}
		}
		d.edgePan(x, y)
	}
}

// beginDrag resolves the press into a gesture kind. Returns false when the
// gesture is not permitted, in which case the press stays a pending click.
func (d *Dispatcher) beginDrag() bool {
	s := d.session

	if d.button == MouseButtonRight {
		s.Kind = GestureDragPan
		d.dragging = true
		return true
	}

	tool, haveTool := d.tools[d.activeTool]
	kind := GestureLayerDrag
	if haveTool {
		if tool.AllowDragStart != nil && !tool.AllowDragStart(d.e) {
			return false
		}
		kind = tool.Kind
	}

	switch kind {
	case GestureMeasure:
		s.Kind = GestureMeasure
		s.Waypoints = append(s.Waypoints, Vec2{X: s.OriginX, Y: s.OriginY})
	case GestureBoxSelect:
		s.Kind = GestureBoxSelect
		s.Target = d.activeLayer
	default:
		if d.activeLayer == nil || !d.activeLayer.Active() {
			return false
		}
		s.Kind = GestureLayerDrag
		s.Target = d.activeLayer
		if del, ok := d.activeLayer.(DragDelegate); ok {
			del.DragStart(s)
		}
	}
	d.dragging = true
	return true
}

func (d *Dispatcher) pointerUp(x, y float64, button MouseButton, mods KeyModifiers) {
	if d.session == nil || button != d.button {
		return
	}
	s := d.session
	s.Modifiers = mods

	if !d.dragging {
		d.session = nil
		d.click(x, y, button, mods)
		return
	}

	s.DestX, s.DestY = d.e.viewport.ScreenToWorld(x, y)
	d.concludeDrag(s)
	d.session = nil
	d.dragging = false
}

func (d *Dispatcher) click(x, y float64, button MouseButton, mods KeyModifiers) {
	if d.activeLayer == nil || !d.activeLayer.Active() {
		return
	}
	if del, ok := d.activeLayer.(ClickDelegate); ok {
		wx, wy := d.e.viewport.ScreenToWorld(x, y)
		del.Click(wx, wy, button, mods)
	}
}

// concludeDrag dispatches the finished gesture.
func (d *Dispatcher) concludeDrag(s *InteractionSession) {
	switch s.Kind {
	case GestureDragPan:
		// Camera already moved during the drag.
	case GestureMeasure:
		d.finalizeMeasure(s)
	case GestureBoxSelect:
		d.finalizeBoxSelect(s)
	case GestureLayerDrag:
		if del, ok := s.Target.(DragDelegate); ok {
			del.DragEnd(s)
		}
	}
}

// CancelGesture abandons the in-flight gesture without dispatching its
// conclusion. Layer drags are told to roll back.
func (d *Dispatcher) CancelGesture() {
	d.cancelGesture()
}

func (d *Dispatcher) cancelGesture() {
	s := d.session
	d.session = nil
	d.dragging = false
	if s == nil || s.Kind != GestureLayerDrag {
		return
	}
	if del, ok := s.Target.(DragDelegate); ok {
		del.DragCancel(s)
	}
}

// CommitWaypoint appends the current destination to an in-flight
// measurement, starting a new segment from it.
func (d *Dispatcher) CommitWaypoint() {
	s := d.session
	if s == nil || s.Kind != GestureMeasure {
		return
	}
	s.Waypoints = append(s.Waypoints, Vec2{X: s.DestX, Y: s.DestY})
}

func (d *Dispatcher) finalizeMeasure(s *InteractionSession) {
	points := append(s.Waypoints, Vec2{X: s.DestX, Y: s.DestY})

	var world float64
	for i := 1; i < len(points); i++ {
		world += math.Hypot(points[i].X-points[i-1].X, points[i].Y-points[i-1].Y)
	}
	grid := 0.0
	if gs := d.e.dims.GridSize; gs > 0 {
		grid = world / gs
	}
	if d.OnMeasure != nil {
		d.OnMeasure(Measurement{Waypoints: points, WorldDistance: world, GridDistance: grid})
	}
}

// finalizeBoxSelect resolves the dragged rectangle against the target layer
// and records the result on the engine: plain drags control, shift-drags
// target.
func (d *Dispatcher) finalizeBoxSelect(s *InteractionSession) {
	sel, ok := s.Target.(BoxSelector)
	if !ok {
		return
	}
	ids := sel.ObjectsInRect(s.Bounds())
	if s.Modifiers&ModShift != 0 {
		d.e.SetTargeted(ids)
	} else {
		d.e.SetControlled(ids)
	}
}

// edgePan nudges the camera one grid step toward a screen edge the cursor
// is pressed against during a drag. Steps are throttled so holding the
// cursor at the edge pans smoothly rather than accelerating.
func (d *Dispatcher) edgePan(x, y float64) {
	if d.edgeCooldown > 0 {
		return
	}
	v := d.e.viewport
	step := d.e.dims.GridSize
	if step <= 0 {
		step = defaultGridSize
	}

	var dx, dy float64
	if x < d.edgeMargin {
		dx = -step
	} else if x > v.screenW-d.edgeMargin {
		dx = step
	}
	if y < d.edgeMargin {
		dy = -step
	} else if y > v.screenH-d.edgeMargin {
		dy = step
	}
	if dx == 0 && dy == 0 {
		return
	}

	pos := v.Position()
	v.AnimatePan(PanTarget{X: Float(pos.X + dx), Y: Float(pos.Y + dy)}, PanAnimOptions{
		Duration: float64(edgePanCooldownTicks) / 60.0,
	})
	d.edgeCooldown = edgePanCooldownTicks
}
