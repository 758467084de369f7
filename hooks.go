package tabletop

import "github.com/sirupsen/logrus"

// Lifecycle hook names emitted by the engine. External code may observe
// these but cannot block the engine; only HookSceneInit allows veto.
const (
	HookSceneConfig   = "scene-config"    // payload: SceneDimensions
	HookSceneInit     = "scene-init"      // payload: SceneDocument; vetoable
	HookSceneDrawn    = "scene-drawn"     // payload: SceneDocument
	HookSceneReady    = "scene-ready"     // payload: SceneDocument
	HookScenePanned   = "scene-panned"    // payload: ViewState
	HookSceneTornDown = "scene-torn-down" // payload: scene ID string
	HookError         = "error"           // payload: error
)

type hookObserver struct {
	id uint32
	fn func(payload any)
}

type vetoObserver struct {
	id uint32
	fn func(payload any) bool
}

// HookBus is a named-signal registry. The engine emits lifecycle signals
// through it; observers are invoked synchronously but their panics are
// caught and logged so a broken observer can never abort the engine.
type HookBus struct {
	log       logrus.FieldLogger
	observers map[string][]hookObserver
	vetoers   map[string][]vetoObserver
	nextID    uint32
}

// NewHookBus creates an empty hook bus. A nil logger falls back to the
// package default.
func NewHookBus(log logrus.FieldLogger) *HookBus {
	if log == nil {
		log = defaultLogger()
	}
	return &HookBus{
		log:       log,
		observers: make(map[string][]hookObserver),
		vetoers:   make(map[string][]vetoObserver),
	}
}

// HookHandle allows removing a registered observer.
type HookHandle struct {
	bus  *HookBus
	name string
	id   uint32
	veto bool
}

// On registers an observer for the named signal.
func (b *HookBus) On(name string, fn func(payload any)) HookHandle {
	b.nextID++
	b.observers[name] = append(b.observers[name], hookObserver{id: b.nextID, fn: fn})
	return HookHandle{bus: b, name: name, id: b.nextID}
}

// OnVeto registers a vetoing observer for the named signal. Returning true
// from fn vetoes the operation that emitted the signal. Only signals
// documented as vetoable consult these observers.
func (b *HookBus) OnVeto(name string, fn func(payload any) bool) HookHandle {
	b.nextID++
	b.vetoers[name] = append(b.vetoers[name], vetoObserver{id: b.nextID, fn: fn})
	return HookHandle{bus: b, name: name, id: b.nextID, veto: true}
}

// Remove unregisters the observer so it no longer fires.
func (h HookHandle) Remove() {
	if h.bus == nil {
		return
	}
	if h.veto {
		s := h.bus.vetoers[h.name]
		for i := range s {
			if s[i].id == h.id {
				h.bus.vetoers[h.name] = append(s[:i], s[i+1:]...)
				return
			}
		}
		return
	}
	s := h.bus.observers[h.name]
	for i := range s {
		if s[i].id == h.id {
			h.bus.observers[h.name] = append(s[:i], s[i+1:]...)
			return
		}
	}
}

// Call emits the named signal to every observer. Observer panics are caught
// and logged individually; one broken observer does not stop its siblings.
// The observer list is snapshotted first, so an observer removing itself or
// a sibling mid-emission takes effect from the next emission.
func (b *HookBus) Call(name string, payload any) {
	snapshot := append([]hookObserver(nil), b.observers[name]...)
	for _, obs := range snapshot {
		b.callOne(name, obs.fn, payload)
	}
}

func (b *HookBus) callOne(name string, fn func(any), payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.log.WithField("hook", name).Errorf("hook observer panicked: %v", r)
		}
	}()
	fn(payload)
}

// CallVeto emits the named signal to every vetoing observer and reports
// whether any observer vetoed. Panicking observers count as not vetoing.
func (b *HookBus) CallVeto(name string, payload any) (vetoed bool) {
	snapshot := append([]vetoObserver(nil), b.vetoers[name]...)
	for _, obs := range snapshot {
		if b.callVetoOne(name, obs.fn, payload) {
			vetoed = true
		}
	}
	return vetoed
}

func (b *HookBus) callVetoOne(name string, fn func(any) bool, payload any) (veto bool) {
	defer func() {
		if r := recover(); r != nil {
			b.log.WithField("hook", name).Errorf("hook observer panicked: %v", r)
			veto = false
		}
	}()
	return fn(payload)
}
