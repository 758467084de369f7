// Package tabletop is a 2D tabletop rendering engine for [Ebitengine].
//
// Tabletop renders an interactive scene (a virtual game table) onto a
// GPU-backed surface and keeps that rendering synchronized with an editable
// scene document, the viewport camera, pointer interaction, and a tiered
// performance configuration.
//
// # Lifecycle
//
// An [Engine] is created once, probed for GPU capability via
// [Engine.Initialize], and then asked to display scene documents:
//
//	eng := tabletop.New(tabletop.EngineConfig{
//		ScreenWidth: 1280, ScreenHeight: 720,
//	})
//	if err := eng.Initialize(); err != nil {
//		// missing minimum render backend — fatal
//	}
//	if err := eng.Draw(scene); err != nil {
//		// scene-load failure — canvas left blank
//	}
//
// Draw requests are serialized: a new request always runs after whichever
// draw is currently in flight, and the previous scene is fully torn down
// before the next scene's rendering groups are constructed.
//
// # Scene graph
//
// The displayed scene is composed of named rendering groups declared in a
// configuration table ([GroupConfig]). Each entry names its parent, so the
// tree shape is entirely data-driven: adding a new group requires only a
// table entry. Groups contain named layers ([LayerConfig]) which hold the
// drawable content for one category of scene content.
//
// # Camera
//
// The [Viewport] owns pan position and zoom scale. [Viewport.Pan] clamps
// both to scene-derived bounds; [Viewport.AnimatePan] interpolates through
// the same clamped pan every tick (via [gween]), so an animated pan can
// never produce an out-of-bounds intermediate state.
//
// # Per-frame scheduling
//
// The [Scheduler] drains three ordered priority buckets once per frame:
// pending render flags on ordinary drawables, the primary group composite,
// and perception/visibility flags. Enqueues are idempotent, and flags
// enqueued during a drain are deferred to the next frame.
//
// [Ebitengine]: https://ebitengine.org
// [gween]: https://github.com/tanema/gween
package tabletop
