package tabletop

import "github.com/hajimehoshi/ebiten/v2"

// RenderTexture is a persistent offscreen canvas. The primary group owns
// one as its per-frame composite target; callers may create their own for
// layer content. A RenderTexture is owned by its creator and is never
// recycled behind the caller's back.
type RenderTexture struct {
	image *ebiten.Image
	w, h  int
	imgOp ebiten.DrawImageOptions
}

// NewRenderTexture creates a persistent offscreen canvas of the given size.
func NewRenderTexture(w, h int) *RenderTexture {
	return &RenderTexture{
		image: ebiten.NewImage(w, h),
		w:     w,
		h:     h,
	}
}

// Image returns the underlying *ebiten.Image for direct manipulation.
func (rt *RenderTexture) Image() *ebiten.Image {
	return rt.image
}

// Width returns the texture width in pixels.
func (rt *RenderTexture) Width() int {
	return rt.w
}

// Height returns the texture height in pixels.
func (rt *RenderTexture) Height() int {
	return rt.h
}

// Clear fills the texture with transparent black.
func (rt *RenderTexture) Clear() {
	rt.image.Clear()
}

// DrawImageAt draws src at the given position with the specified blend mode.
func (rt *RenderTexture) DrawImageAt(src *ebiten.Image, x, y float64, blend BlendMode) {
	op := &rt.imgOp
	op.GeoM.Reset()
	op.ColorScale.Reset()
	op.GeoM.Translate(x, y)
	op.Blend = blend.EbitenBlend()
	rt.image.DrawImage(src, op)
}

// Resize deallocates the old image and creates a new one at the given
// dimensions. Contents are discarded.
func (rt *RenderTexture) Resize(width, height int) {
	if rt.image != nil {
		rt.image.Deallocate()
	}
	rt.image = ebiten.NewImage(width, height)
	rt.w = width
	rt.h = height
}

// NewNode creates a Node that displays this texture's contents.
func (rt *RenderTexture) NewNode(name string) *Node {
	return NewCanvasNode(name, rt.image)
}

// compositeNode recursively draws a node subtree's canvases into the
// texture using each node's local-space transform chain relative to the
// subtree root. Invisible subtrees are skipped.
func (rt *RenderTexture) compositeNode(n *Node) {
	rt.compositeNodeWith(n, identityTransform, 1.0)
}

func (rt *RenderTexture) compositeNodeWith(n *Node, parent [6]float64, parentAlpha float64) {
	if !n.Visible || n.Alpha <= 0 {
		return
	}
	world := multiplyAffine(parent, computeLocalTransform(n))
	alpha := parentAlpha * n.Alpha

	if n.canvas != nil {
		op := &rt.imgOp
		op.GeoM.Reset()
		op.ColorScale.Reset()
		op.GeoM.SetElement(0, 0, world[0])
		op.GeoM.SetElement(1, 0, world[1])
		op.GeoM.SetElement(0, 1, world[2])
		op.GeoM.SetElement(1, 1, world[3])
		op.GeoM.SetElement(0, 2, world[4])
		op.GeoM.SetElement(1, 2, world[5])
		op.ColorScale.ScaleAlpha(float32(alpha))
		op.Blend = BlendNormal.EbitenBlend()
		rt.image.DrawImage(n.canvas, op)
	}

	for _, child := range n.children {
		rt.compositeNodeWith(child, world, alpha)
	}
}

// Dispose deallocates the underlying image. The RenderTexture must not be
// used after calling Dispose.
func (rt *RenderTexture) Dispose() {
	if rt.image != nil {
		rt.image.Deallocate()
		rt.image = nil
	}
}
