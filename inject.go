package tabletop

// Synthetic pointer input. Injected events queue up and are consumed one
// per engine tick, ahead of the host window, so scripted interactions and
// tests exercise the same gesture state machine as real input.

type pointerEventKind uint8

const (
	evPress pointerEventKind = iota
	evMove
	evRelease
)

type pointerEvent struct {
	kind   pointerEventKind
	x, y   float64
	button MouseButton
	mods   KeyModifiers
}

func (d *Dispatcher) apply(ev pointerEvent) {
	switch ev.kind {
	case evPress:
		d.pointerDown(ev.x, ev.y, ev.button, ev.mods)
	case evMove:
		d.pointerMove(ev.x, ev.y, ev.mods)
	case evRelease:
		d.pointerUp(ev.x, ev.y, ev.button, ev.mods)
	}
}

// InjectPress queues a synthetic button press at screen coordinates.
func (d *Dispatcher) InjectPress(x, y float64, button MouseButton, mods KeyModifiers) {
	d.injected = append(d.injected, pointerEvent{evPress, x, y, button, mods})
}

// InjectMove queues a synthetic cursor move.
func (d *Dispatcher) InjectMove(x, y float64, mods KeyModifiers) {
	d.injected = append(d.injected, pointerEvent{evMove, x, y, 0, mods})
}

// InjectRelease queues a synthetic button release.
func (d *Dispatcher) InjectRelease(x, y float64, button MouseButton, mods KeyModifiers) {
	d.injected = append(d.injected, pointerEvent{evRelease, x, y, button, mods})
}

// InjectClick queues a press and release at the same position.
func (d *Dispatcher) InjectClick(x, y float64, button MouseButton, mods KeyModifiers) {
	d.InjectPress(x, y, button, mods)
	d.InjectRelease(x, y, button, mods)
}

// InjectDrag queues a full drag gesture from one screen position to
// another, with intermediate moves so the drag threshold is crossed.
func (d *Dispatcher) InjectDrag(fromX, fromY, toX, toY float64, button MouseButton, mods KeyModifiers) {
	d.InjectPress(fromX, fromY, button, mods)
	midX := fromX + (toX-fromX)/2
	midY := fromY + (toY-fromY)/2
	d.InjectMove(midX, midY, mods)
	d.InjectMove(toX, toY, mods)
	d.InjectRelease(toX, toY, button, mods)
}

// PendingInjected returns the number of queued synthetic events.
func (d *Dispatcher) PendingInjected() int { return len(d.injected) }

// flushInjected applies every queued synthetic event immediately instead of
// one per tick. For tests.
func (d *Dispatcher) flushInjected() {
	for len(d.injected) > 0 {
		ev := d.injected[0]
		d.injected = d.injected[1:]
		d.apply(ev)
	}
}
