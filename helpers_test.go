package tabletop

import (
	"fmt"
	"io"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/sirupsen/logrus"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// fakeScene is an in-memory SceneDocument.
type fakeScene struct {
	id, name string
	w, h     float64
	padding  float64
	grid     float64
	view     ViewPosition
	saved    []ViewPosition
	texPaths []string
}

func newFakeScene(id string, w, h float64) *fakeScene {
	return &fakeScene{id: id, name: "scene-" + id, w: w, h: h, grid: 100}
}

func (s *fakeScene) ID() string                { return s.id }
func (s *fakeScene) Name() string              { return s.name }
func (s *fakeScene) Width() float64            { return s.w }
func (s *fakeScene) Height() float64           { return s.h }
func (s *fakeScene) Padding() float64          { return s.padding }
func (s *fakeScene) GridSize() float64         { return s.grid }
func (s *fakeScene) InitialView() ViewPosition { return s.view }
func (s *fakeScene) TexturePaths() []string    { return s.texPaths }
func (s *fakeScene) SetViewPosition(pos ViewPosition) {
	s.view = pos
	s.saved = append(s.saved, pos)
}

// fakePrefs is a mutable PreferenceStore.
type fakePrefs struct {
	tier          string
	frameCap      int
	reducedMotion bool
	lastTool      string
}

func (p *fakePrefs) PerformanceTier() string { return p.tier }
func (p *fakePrefs) FrameCap() int           { return p.frameCap }
func (p *fakePrefs) ReducedMotion() bool     { return p.reducedMotion }
func (p *fakePrefs) LastTool() string        { return p.lastTool }
func (p *fakePrefs) SetLastTool(name string) { p.lastTool = name }

// fakeLoader resolves every path to a nil image unless the path is listed
// as failing.
type fakeLoader struct {
	failing map[string]bool
	loads   []string
}

func (l *fakeLoader) Load(path string) (*ebiten.Image, error) {
	l.loads = append(l.loads, path)
	if l.failing[path] {
		return nil, fmt.Errorf("no such texture %q", path)
	}
	return nil, nil
}

// recGroup records lifecycle calls into a shared event log.
type recGroup struct {
	BaseGroup
	events  *[]string
	drawErr error
	tearErr error
}

func newRecGroup(name string, events *[]string) *recGroup {
	return &recGroup{BaseGroup: *NewBaseGroup(name), events: events}
}

func (g *recGroup) Draw(e *Engine) error {
	*g.events = append(*g.events, "draw:"+g.Name())
	if g.drawErr != nil {
		return g.drawErr
	}
	return g.BaseGroup.Draw(e)
}

func (g *recGroup) TearDown(e *Engine) error {
	*g.events = append(*g.events, "teardown:"+g.Name())
	if g.tearErr != nil {
		return g.tearErr
	}
	return g.BaseGroup.TearDown(e)
}

// recLayer is a BaseLayer recording drag delegation and resolving
// box selections to a fixed ID list.
type recLayer struct {
	BaseLayer
	events    *[]string
	selection []string
}

func newRecLayer(name, embeddedType, collection string, events *[]string) *recLayer {
	return &recLayer{
		BaseLayer: *NewBaseLayer(name, embeddedType, collection),
		events:    events,
	}
}

func (l *recLayer) DragStart(s *InteractionSession)  { *l.events = append(*l.events, "dragstart") }
func (l *recLayer) DragMove(s *InteractionSession)   { *l.events = append(*l.events, "dragmove") }
func (l *recLayer) DragEnd(s *InteractionSession)    { *l.events = append(*l.events, "dragend") }
func (l *recLayer) DragCancel(s *InteractionSession) { *l.events = append(*l.events, "dragcancel") }

func (l *recLayer) ObjectsInRect(r Rect) []string { return l.selection }

func (l *recLayer) Click(wx, wy float64, button MouseButton, mods KeyModifiers) {
	*l.events = append(*l.events, fmt.Sprintf("click:%.0f,%.0f", wx, wy))
}

// newTestEngine builds an initialized engine with fake collaborators and no
// GPU-touching groups.
func newTestEngine(events *[]string, groups []GroupConfig) (*Engine, *fakePrefs, *fakeLoader) {
	prefs := &fakePrefs{}
	loader := &fakeLoader{}
	if groups == nil {
		groups = []GroupConfig{
			{Name: "environment", Parent: "", New: func(e *Engine) Group { return newRecGroup("environment", events) }},
			{Name: "interface", Parent: "", New: func(e *Engine) Group { return newRecGroup("interface", events) }},
		}
	}
	e := New(EngineConfig{
		ScreenWidth:  1000,
		ScreenHeight: 800,
		Groups:       groups,
		Textures:     loader,
		Prefs:        prefs,
		Log:          quietLogger(),
		Probe: func() (Capabilities, error) {
			return Capabilities{Shaders: true, OffscreenSurfaces: true, PixelReadback: true}, nil
		},
	})
	return e, prefs, loader
}
