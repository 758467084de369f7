package tabletop

import (
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

// NewFPSOverlay creates a screen-space node showing the actual frame and
// tick rates next to the session's frame cap. Attach it to the interface
// group while diagnosing performance.
func NewFPSOverlay(e *Engine) *Node {
	img := ebiten.NewImage(160, 32)
	n := NewCanvasNode("fps-overlay", img)
	n.ZIndex = 1 << 16

	capText := "uncapped"
	if hz := e.Performance().FrameCapHz; hz > 0 {
		capText = fmt.Sprintf("%d Hz", hz)
	}
	n.OnUpdate = func(dt float64) {
		img.Clear()
		ebitenutil.DebugPrint(img, fmt.Sprintf("FPS %0.1f  TPS %0.1f\ncap %s",
			ebiten.ActualFPS(), ebiten.ActualTPS(), capText))
	}
	return n
}
