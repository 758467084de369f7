package tabletop

// Drawable is any object participating in per-frame render-flag
// application. Enqueuing marks the object for one ApplyRenderFlags call on
// the next tick of its bucket.
type Drawable interface {
	ApplyRenderFlags()
}

// Compositor is the scheduler's middle pass: the primary rendering group
// compositing its layers to the backing texture.
type Compositor interface {
	Composite()
}

// Bucket identifies one of the scheduler's ordered priority passes.
type Bucket uint8

const (
	// BucketObjects applies queued render-flags on ordinary drawables.
	BucketObjects Bucket = iota
	// BucketPrimary composites the primary group to its backing texture.
	// It has no queue; enqueue into the flag buckets instead.
	BucketPrimary
	// BucketPerception applies queued perception/visibility render-flags.
	BucketPerception

	bucketCount
)

// renderFlagQueue holds drawables awaiting flag application this frame.
// Enqueues are idempotent, and the queue is captured and cleared atomically
// once per tick so flags enqueued during processing defer to the next
// frame.
type renderFlagQueue struct {
	items  []Drawable
	queued map[Drawable]struct{}
	drain  []Drawable // reused capture buffer
}

func (q *renderFlagQueue) enqueue(d Drawable) {
	if q.queued == nil {
		q.queued = make(map[Drawable]struct{})
	}
	if _, ok := q.queued[d]; ok {
		return
	}
	q.queued[d] = struct{}{}
	q.items = append(q.items, d)
}

// drainAll captures the queue, clears it, then iterates the capture, so
// same-frame re-enqueues cannot re-trigger within this tick.
func (q *renderFlagQueue) drainAll() {
	if len(q.items) == 0 {
		return
	}
	q.drain = append(q.drain[:0], q.items...)
	q.items = q.items[:0]
	clear(q.queued)

	for _, d := range q.drain {
		d.ApplyRenderFlags()
	}
}

func (q *renderFlagQueue) reset() {
	q.items = nil
	q.queued = nil
	q.drain = nil
}

// Scheduler is the per-frame ticker with three monotonically-ordered
// priority buckets: object render-flags, the primary-group composite, and
// perception/visibility flags. Dependent passes therefore never race within
// one frame: bucket N never observes state mutated by bucket N+1 of the
// same frame.
//
// Start and Stop happen exactly once per displayed scene; no per-object
// ticker registration exists.
type Scheduler struct {
	objects    renderFlagQueue
	perception renderFlagQueue
	compositor Compositor
	running    bool
}

// NewScheduler creates a stopped scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Start registers the three per-frame passes for the scene being displayed.
// Panics if already running: the lifecycle guarantees one start per scene.
func (s *Scheduler) Start(primary Compositor) {
	if s.running {
		panic("tabletop: scheduler already running")
	}
	s.compositor = primary
	s.running = true
}

// Stop unregisters the passes and discards all pending flags. Called
// exactly once per scene, at teardown.
func (s *Scheduler) Stop() {
	s.running = false
	s.compositor = nil
	s.objects.reset()
	s.perception.reset()
}

// Running reports whether the scheduler is ticking.
func (s *Scheduler) Running() bool {
	return s.running
}

// Enqueue marks a drawable for flag application in the given bucket on the
// next tick. Re-adding an already-queued drawable is a no-op.
// BucketPrimary has no queue; such enqueues are ignored.
func (s *Scheduler) Enqueue(b Bucket, d Drawable) {
	if !s.running || d == nil {
		return
	}
	switch b {
	case BucketObjects:
		s.objects.enqueue(d)
	case BucketPerception:
		s.perception.enqueue(d)
	}
}

// Tick runs one display frame: object flags, primary composite, perception
// flags, in that fixed order.
func (s *Scheduler) Tick() {
	if !s.running {
		return
	}
	s.objects.drainAll()
	if s.compositor != nil {
		s.compositor.Composite()
	}
	s.perception.drainAll()
}

// Pending returns the number of drawables queued in a bucket, for
// introspection and tests.
func (s *Scheduler) Pending(b Bucket) int {
	switch b {
	case BucketObjects:
		return len(s.objects.items)
	case BucketPerception:
		return len(s.perception.items)
	default:
		return 0
	}
}
