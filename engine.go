package tabletop

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotInitialized is returned by Draw before a successful Initialize.
	ErrNotInitialized = errors.New("tabletop: engine not initialized")
	// ErrDrawVetoed is returned when a scene-init observer vetoes the draw.
	ErrDrawVetoed = errors.New("tabletop: scene draw vetoed")
)

// EngineConfig wires the engine to its collaborators. Zero values pick
// sensible defaults; only the screen size is required.
type EngineConfig struct {
	// ScreenWidth and ScreenHeight are the drawing surface dimensions in
	// pixels.
	ScreenWidth  float64
	ScreenHeight float64

	// Groups and Layers declare the scene-graph shape. Nil uses
	// DefaultGroups with no layers.
	Groups []GroupConfig
	Layers []LayerConfig

	// Textures resolves texture paths. Nil uses FileTextureLoader.
	Textures TextureLoader
	// Hooks is the lifecycle signal bus. Nil creates a private bus.
	Hooks *HookBus
	// Prefs supplies user preferences. Nil uses NullPreferences.
	Prefs PreferenceStore
	// Log receives structured engine logs. Nil uses the package default.
	Log logrus.FieldLogger
	// Probe overrides GPU capability detection, mainly for tests.
	// Nil uses Probe.
	Probe func() (Capabilities, error)

	// MaxZoom is the zoom ceiling (default 3.0).
	MaxZoom float64
	// PanPadding is the fraction of the viewport the camera pivot may
	// leave the scene rectangle by (default 0.4).
	PanPadding float64
	// DragSpeedModifier scales right-drag camera panning (default 0.8).
	DragSpeedModifier float64
	// EdgePanMargin is the screen-edge distance in pixels that triggers
	// an animated pan during drags (default 20).
	EdgePanMargin float64
}

// Engine is the top-level service object owning the single active scene
// display: the scene-graph stage, the viewport camera, the blur registry,
// the per-frame scheduler, and the pointer dispatcher. All mutation funnels
// through the draw/teardown lifecycle and the Viewport's pan operations.
type Engine struct {
	log   logrus.FieldLogger
	hooks *HookBus
	prefs PreferenceStore
	probe func() (Capabilities, error)

	groupConfigs []GroupConfig
	layerConfigs []LayerConfig

	caps        Capabilities
	perf        PerformanceSettings
	initialized bool

	stage      *Node
	viewport   *Viewport
	blur       *BlurRegistry
	scheduler  *Scheduler
	dispatcher *Dispatcher
	loader     *cachingTextureLoader

	groups             map[string]Group
	groupOrder         []Group
	layersByType       map[string]Layer
	layersByCollection map[string]Layer

	scene    SceneDocument
	dims     SceneDimensions
	textures map[string]*ebiten.Image
	ready    bool
	loading  bool

	maskCache map[string]*ebiten.Image

	controlled     []string
	targeted       []string
	savedSelection map[string]selectionState

	// Draw/teardown requests chain through completion channels so they
	// never interleave even when invoked concurrently.
	chainMu   sync.Mutex
	chainTail chan struct{}
}

type selectionState struct {
	controlled []string
	targeted   []string
}

// New creates an engine from the given configuration. Call Initialize
// before the first Draw.
func New(cfg EngineConfig) *Engine {
	log := cfg.Log
	if log == nil {
		log = defaultLogger()
	}
	hooks := cfg.Hooks
	if hooks == nil {
		hooks = NewHookBus(log)
	}
	prefs := cfg.Prefs
	if prefs == nil {
		prefs = NullPreferences{}
	}
	probe := cfg.Probe
	if probe == nil {
		probe = Probe
	}
	base := cfg.Textures
	if base == nil {
		base = FileTextureLoader{}
	}
	groups := cfg.Groups
	if groups == nil {
		groups = DefaultGroups()
	}

	stage := NewContainer("stage")
	blur := NewBlurRegistry()

	e := &Engine{
		log:                log,
		hooks:              hooks,
		prefs:              prefs,
		probe:              probe,
		groupConfigs:       groups,
		layerConfigs:       cfg.Layers,
		stage:              stage,
		blur:               blur,
		scheduler:          NewScheduler(),
		loader:             newCachingTextureLoader(base),
		groups:             make(map[string]Group),
		layersByType:       make(map[string]Layer),
		layersByCollection: make(map[string]Layer),
		maskCache:          make(map[string]*ebiten.Image),
		savedSelection:     make(map[string]selectionState),
	}
	e.viewport = newViewport(stage, blur, hooks, cfg.ScreenWidth, cfg.ScreenHeight, cfg.MaxZoom, cfg.PanPadding)
	e.dispatcher = newDispatcher(e, cfg.DragSpeedModifier, cfg.EdgePanMargin)
	return e
}

// Initialize probes GPU capability and derives the session's performance
// settings. A missing minimum backend is fatal: the error is reported and
// the engine refuses all draws.
func (e *Engine) Initialize() error {
	caps, err := e.probe()
	if err != nil {
		e.log.WithError(err).Error("render capability probe failed")
		e.hooks.Call(HookError, err)
		return err
	}
	e.caps = caps
	e.perf = DerivePerformance(caps, e.prefs)
	e.perf.Apply()
	e.viewport.setAnimationsEnabled(e.perf.Animations)
	e.initialized = true
	e.log.WithFields(logrus.Fields{
		"tier":     e.perf.Tier.String(),
		"frameCap": e.perf.FrameCapHz,
	}).Info("engine initialized")
	return nil
}

// --- Draw/teardown lifecycle ---

// Draw requests that the given scene be displayed, or a blank canvas for a
// nil scene. Requests are serialized through a pending-operation chain: a
// new request runs after whichever draw is currently in flight, so draws
// never interleave even when invoked concurrently. The previous scene is
// fully torn down before the next scene's groups are constructed.
//
// Texture-load and group-draw failures abort the draw and leave the canvas
// blank; the error is logged, emitted on the hook bus, and returned.
func (e *Engine) Draw(doc SceneDocument) error {
	release := e.acquireChain()
	defer release()
	return e.draw(doc)
}

// TearDown tears down the displayed scene explicitly, leaving a blank
// canvas. Normally internal to Draw, but callable directly.
func (e *Engine) TearDown() error {
	release := e.acquireChain()
	defer release()
	return e.tearDown()
}

// acquireChain appends the caller to the pending-operation chain and blocks
// until every earlier operation has settled.
func (e *Engine) acquireChain() (release func()) {
	e.chainMu.Lock()
	prev := e.chainTail
	done := make(chan struct{})
	e.chainTail = done
	e.chainMu.Unlock()

	if prev != nil {
		<-prev
	}
	return func() { close(done) }
}

// drawPhase is one step of the draw sequence. The orchestrator inspects
// each phase's result instead of letting errors bubble through the stack.
type drawPhase struct {
	name string
	run  func() error
}

func (e *Engine) draw(doc SceneDocument) error {
	if !e.initialized {
		return ErrNotInitialized
	}

	if e.scene != nil || len(e.groupOrder) > 0 {
		if err := e.tearDown(); err != nil {
			// Teardown errors never block the new draw.
			e.log.WithError(err).Error("scene teardown failed; continuing")
			e.hooks.Call(HookError, err)
		}
	}

	if doc == nil {
		e.log.Info("displaying blank canvas")
		return nil
	}

	log := e.log.WithField("scene", doc.Name())
	e.loading = true
	defer func() { e.loading = false }()

	phases := []drawPhase{
		{"dimensions", func() error {
			e.scene = doc
			e.dims = ComputeSceneDimensions(doc)
			e.hooks.Call(HookSceneConfig, e.dims)
			return nil
		}},
		{"init", func() error {
			if e.hooks.CallVeto(HookSceneInit, doc) {
				return ErrDrawVetoed
			}
			return nil
		}},
		{"textures", func() error {
			loaded, err := e.loader.loadSceneTextures(doc.TexturePaths())
			if err != nil {
				return err
			}
			e.textures = loaded
			return nil
		}},
		{"camera", func() error {
			e.viewport.setScene(doc, e.dims)
			return nil
		}},
		{"groups", e.drawGroups},
		{"scheduler", func() error {
			comp, _ := e.groups["primary"].(Compositor)
			e.scheduler.Start(comp)
			return nil
		}},
	}

	for _, p := range phases {
		if err := p.run(); err != nil {
			log.WithError(err).WithField("phase", p.name).Error("scene draw failed")
			e.hooks.Call(HookError, err)
			// Discard the partial scene: no partially-drawn scene is
			// ever shown as ready.
			if terr := e.tearDown(); terr != nil {
				log.WithError(terr).Error("cleanup after failed draw")
			}
			return fmt.Errorf("draw scene %q: phase %s: %w", doc.Name(), p.name, err)
		}
	}

	e.ready = true
	e.restoreSelection(doc.ID())
	e.dispatcher.setEnabled(true)
	e.hooks.Call(HookSceneReady, doc)
	log.Info("scene ready")
	return nil
}

// drawGroups constructs the scene-graph groups from the configuration
// tables (reusing them if already built) and calls each group's draw in
// declaration order. The first failing group aborts the rest.
func (e *Engine) drawGroups() error {
	if len(e.groupOrder) == 0 {
		if err := e.buildGroups(e.groupConfigs); err != nil {
			return err
		}
		if err := e.buildLayers(e.layerConfigs); err != nil {
			return err
		}
	}
	for _, g := range e.groupOrder {
		if err := e.drawGroup(g); err != nil {
			return fmt.Errorf("group %s: %w", g.Name(), err)
		}
	}
	e.hooks.Call(HookSceneDrawn, e.scene)
	return nil
}

// drawGroup runs one group's draw, converting a panic into an error so a
// broken group cannot take down the orchestrator.
func (e *Engine) drawGroup(g Group) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("draw panicked: %v", r)
		}
	}()
	return g.Draw(e)
}

// tearDown releases the displayed scene in reverse order of construction:
// interactive layers deactivate, the scheduler stops, each group tears
// down (reverse declaration order), the blur registry and scene-scoped
// texture cache are cleared. Errors are collected but never abort the
// teardown, and never block a subsequent draw.
func (e *Engine) tearDown() error {
	displayed := e.ready
	sceneID := ""
	if e.scene != nil {
		sceneID = e.scene.ID()
	}
	if displayed && sceneID != "" {
		e.saveSelection(sceneID)
	} else {
		// Cleanup after a draw that never reached ready. The current
		// selection was never restored for this scene, so saving it here
		// would clobber the scene's previously persisted selection.
		e.controlled = nil
		e.targeted = nil
	}

	e.dispatcher.setEnabled(false)
	e.dispatcher.reset()
	for _, l := range e.layersByCollection {
		l.Deactivate()
	}
	for _, l := range e.layersByType {
		l.Deactivate()
	}

	if e.scheduler.Running() {
		e.scheduler.Stop()
	}

	var firstErr error
	for i := len(e.groupOrder) - 1; i >= 0; i-- {
		g := e.groupOrder[i]
		if err := e.tearDownGroup(g); err != nil {
			e.log.WithError(err).WithField("group", g.Name()).Error("group teardown failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("group %s: %w", g.Name(), err)
			}
		}
	}
	e.groupOrder = e.groupOrder[:0]
	clear(e.groups)
	clear(e.layersByType)
	clear(e.layersByCollection)
	e.stage.RemoveChildren()

	e.blur.Clear()
	e.loader.clearSceneCache()
	e.textures = nil
	e.viewport.clearScene()

	e.ready = false
	e.scene = nil
	e.dims = SceneDimensions{}

	// Only scenes that actually reached ready announce their teardown;
	// cleanup after a vetoed or failed draw stays silent.
	if displayed && sceneID != "" {
		e.hooks.Call(HookSceneTornDown, sceneID)
	}
	return firstErr
}

func (e *Engine) tearDownGroup(g Group) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("teardown panicked: %v", r)
		}
	}()
	return g.TearDown(e)
}

// --- Selection persistence ---

// SetControlled records the currently controlled object IDs. Restored when
// the same scene is drawn again.
func (e *Engine) SetControlled(ids []string) {
	e.controlled = append(e.controlled[:0], ids...)
}

// SetTargeted records the currently targeted object IDs.
func (e *Engine) SetTargeted(ids []string) {
	e.targeted = append(e.targeted[:0], ids...)
}

// Controlled returns the controlled object IDs for the displayed scene.
func (e *Engine) Controlled() []string { return e.controlled }

// Targeted returns the targeted object IDs for the displayed scene.
func (e *Engine) Targeted() []string { return e.targeted }

func (e *Engine) saveSelection(sceneID string) {
	e.savedSelection[sceneID] = selectionState{
		controlled: append([]string(nil), e.controlled...),
		targeted:   append([]string(nil), e.targeted...),
	}
	e.controlled = nil
	e.targeted = nil
}

func (e *Engine) restoreSelection(sceneID string) {
	saved := e.savedSelection[sceneID]
	e.controlled = append([]string(nil), saved.controlled...)
	e.targeted = append([]string(nil), saved.targeted...)
}

// --- Per-tick update and rendering ---

// Update advances the engine by one host tick: pointer dispatch, pending
// pan animations, the scheduler's three passes, node update callbacks, and
// the world transform refresh.
func (e *Engine) Update() {
	tps := ebiten.TPS()
	if tps <= 0 {
		tps = 60
	}
	dt := 1.0 / float64(tps)

	e.dispatcher.update()
	e.viewport.update(float32(dt))
	e.scheduler.Tick()
	fireOnUpdate(e.stage, dt)
	updateWorldTransform(e.stage, identityTransform, 1.0, false)
}

// fireOnUpdate invokes OnUpdate callbacks depth-first.
func fireOnUpdate(n *Node, dt float64) {
	if n.OnUpdate != nil {
		n.OnUpdate(dt)
	}
	for _, child := range n.children {
		fireOnUpdate(child, dt)
	}
}

// Render draws the stage onto the given screen image.
func (e *Engine) Render(screen *ebiten.Image) {
	updateWorldTransform(e.stage, identityTransform, 1.0, false)
	renderNode(screen, e.stage)
}

func renderNode(dst *ebiten.Image, n *Node) {
	if !n.Visible || n.worldAlpha <= 0 {
		return
	}
	if n.canvas != nil {
		var op ebiten.DrawImageOptions
		m := n.worldTransform
		op.GeoM.SetElement(0, 0, m[0])
		op.GeoM.SetElement(1, 0, m[1])
		op.GeoM.SetElement(0, 1, m[2])
		op.GeoM.SetElement(1, 1, m[3])
		op.GeoM.SetElement(0, 2, m[4])
		op.GeoM.SetElement(1, 2, m[5])
		op.ColorScale.ScaleAlpha(float32(n.worldAlpha))
		dst.DrawImage(n.canvas, &op)
	}
	for _, child := range n.children {
		renderNode(dst, child)
	}
}

// --- Accessors ---

// Ready reports whether a scene is fully drawn and interactive.
func (e *Engine) Ready() bool { return e.ready }

// Loading reports whether a draw is mid-flight.
func (e *Engine) Loading() bool { return e.loading }

// Scene returns the displayed scene document, or nil for a blank canvas.
func (e *Engine) Scene() SceneDocument { return e.scene }

// Dimensions returns the displayed scene's derived dimensions.
func (e *Engine) Dimensions() SceneDimensions { return e.dims }

// Stage returns the scene-graph root node.
func (e *Engine) Stage() *Node { return e.stage }

// Viewport returns the camera engine.
func (e *Engine) Viewport() *Viewport { return e.viewport }

// Scheduler returns the per-frame scheduler.
func (e *Engine) Scheduler() *Scheduler { return e.scheduler }

// Blur returns the shared blur filter registry.
func (e *Engine) Blur() *BlurRegistry { return e.blur }

// Hooks returns the lifecycle signal bus.
func (e *Engine) Hooks() *HookBus { return e.hooks }

// Dispatcher returns the pointer/interaction dispatcher.
func (e *Engine) Dispatcher() *Dispatcher { return e.dispatcher }

// Performance returns the session's derived performance settings.
func (e *Engine) Performance() PerformanceSettings { return e.perf }

// Capabilities returns the probed backend capabilities.
func (e *Engine) Capabilities() Capabilities { return e.caps }

// Texture returns a loaded scene texture by path, or nil.
func (e *Engine) Texture(path string) *ebiten.Image { return e.textures[path] }

// Group returns the rendering group with the given configured name, or nil.
func (e *Engine) Group(name string) Group { return e.groups[name] }

// LayerByEmbeddedType returns the layer rendering the given document type,
// or nil.
func (e *Engine) LayerByEmbeddedType(name string) Layer { return e.layersByType[name] }

// LayerByCollectionName returns the layer rendering the given document
// collection, or nil.
func (e *Engine) LayerByCollectionName(name string) Layer { return e.layersByCollection[name] }

// Pan moves the camera immediately. See Viewport.Pan.
func (e *Engine) Pan(t PanTarget) ViewState { return e.viewport.Pan(t) }

// AnimatePan animates the camera toward a clamped target.
// See Viewport.AnimatePan.
func (e *Engine) AnimatePan(t PanTarget, opts PanAnimOptions) *PanAnimation {
	return e.viewport.AnimatePan(t, opts)
}
