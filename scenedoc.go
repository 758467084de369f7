package tabletop

import "math"

// defaultGridSize is the fallback grid square edge length for documents
// that declare no grid.
const defaultGridSize = 100.0

// ViewPosition is the camera pivot and zoom persisted per scene. Nil fields
// mean "not stored"; re-opening a scene restores whichever components were
// saved and computes defaults for the rest.
type ViewPosition struct {
	X     *float64
	Y     *float64
	Scale *float64
}

// SceneDocument is the external, persisted description of tabletop content
// the engine renders. The engine only reads dimension source data and the
// camera hint, and writes back the view position after pans.
type SceneDocument interface {
	// ID uniquely identifies the scene across the session.
	ID() string
	// Name is the scene's display name, used in logs.
	Name() string
	// Width and Height are the content rectangle dimensions in pixels.
	Width() float64
	Height() float64
	// Padding is the fractional outer padding around the content rectangle
	// (e.g. 0.25 adds a quarter of each dimension, grid-aligned).
	Padding() float64
	// GridSize is the edge length of one grid square in pixels.
	GridSize() float64
	// InitialView returns the persisted camera position for this scene.
	InitialView() ViewPosition
	// SetViewPosition persists the camera position onto the scene.
	SetViewPosition(pos ViewPosition)
	// TexturePaths lists the texture sources that must load before the
	// scene can be drawn.
	TexturePaths() []string
}

// SceneDimensions is derived, read-only, from the active scene document:
// the overall rectangle, the inner content rectangle, and the grid size.
// Recomputed once per scene switch and immutable for the lifetime of that
// scene's display.
type SceneDimensions struct {
	// Rect is the overall scene rectangle including padding, with its
	// origin at (0, 0).
	Rect Rect
	// ContentRect is the inner content rectangle.
	ContentRect Rect
	// GridSize is the edge length of one grid square in pixels.
	GridSize float64
}

// ComputeSceneDimensions derives the scene rectangles from the document.
// Padding is expanded to a whole number of grid squares per side so the
// padded region lines up with the grid.
func ComputeSceneDimensions(doc SceneDocument) SceneDimensions {
	w := doc.Width()
	h := doc.Height()
	grid := doc.GridSize()
	if grid <= 0 {
		grid = defaultGridSize
	}

	padX := gridAlignedPadding(w, doc.Padding(), grid)
	padY := gridAlignedPadding(h, doc.Padding(), grid)

	return SceneDimensions{
		Rect:        Rect{X: 0, Y: 0, Width: w + 2*padX, Height: h + 2*padY},
		ContentRect: Rect{X: padX, Y: padY, Width: w, Height: h},
		GridSize:    grid,
	}
}

// gridAlignedPadding rounds the fractional padding of a dimension up to a
// whole number of grid squares.
func gridAlignedPadding(dim, padding, grid float64) float64 {
	if padding <= 0 {
		return 0
	}
	return math.Ceil(dim*padding/grid) * grid
}
