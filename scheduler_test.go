package tabletop

import "testing"

// recDrawable appends its tag to a shared log on each flag application.
type recDrawable struct {
	tag    string
	log    *[]string
	onTick func()
}

func (d *recDrawable) ApplyRenderFlags() {
	*d.log = append(*d.log, d.tag)
	if d.onTick != nil {
		d.onTick()
	}
}

type recCompositor struct {
	log *[]string
}

func (c *recCompositor) Composite() {
	*c.log = append(*c.log, "composite")
}

func TestSchedulerBucketOrder(t *testing.T) {
	var log []string
	s := NewScheduler()
	s.Start(&recCompositor{log: &log})

	s.Enqueue(BucketPerception, &recDrawable{tag: "perception", log: &log})
	s.Enqueue(BucketObjects, &recDrawable{tag: "object", log: &log})
	s.Tick()

	want := []string{"object", "composite", "perception"}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("log = %v, want %v", log, want)
		}
	}
}

func TestSchedulerEnqueueIdempotent(t *testing.T) {
	var log []string
	s := NewScheduler()
	s.Start(nil)

	d := &recDrawable{tag: "d", log: &log}
	s.Enqueue(BucketObjects, d)
	s.Enqueue(BucketObjects, d)
	s.Enqueue(BucketObjects, d)
	if s.Pending(BucketObjects) != 1 {
		t.Errorf("Pending = %d, want 1", s.Pending(BucketObjects))
	}

	s.Tick()
	if len(log) != 1 {
		t.Errorf("drawable applied %d times, want 1", len(log))
	}
}

func TestSchedulerQueueClearsEachTick(t *testing.T) {
	var log []string
	s := NewScheduler()
	s.Start(nil)

	s.Enqueue(BucketObjects, &recDrawable{tag: "once", log: &log})
	s.Tick()
	s.Tick()
	if len(log) != 1 {
		t.Errorf("drawable applied %d times over two ticks, want 1", len(log))
	}
}

func TestSchedulerReenqueueDuringTickDefers(t *testing.T) {
	var log []string
	s := NewScheduler()
	s.Start(nil)

	d := &recDrawable{tag: "d", log: &log}
	d.onTick = func() {
		// A flag raised while processing waits for the next frame.
		s.Enqueue(BucketObjects, d)
		d.onTick = nil
	}
	s.Enqueue(BucketObjects, d)

	s.Tick()
	if len(log) != 1 {
		t.Fatalf("drawable applied %d times in one tick, want 1", len(log))
	}
	s.Tick()
	if len(log) != 2 {
		t.Errorf("deferred flag never applied: %d applications", len(log))
	}
}

func TestSchedulerEnqueueWhileStoppedIgnored(t *testing.T) {
	var log []string
	s := NewScheduler()

	s.Enqueue(BucketObjects, &recDrawable{tag: "d", log: &log})
	if s.Pending(BucketObjects) != 0 {
		t.Error("stopped scheduler accepted an enqueue")
	}
	s.Tick()
	if len(log) != 0 {
		t.Error("stopped scheduler ticked")
	}
}

func TestSchedulerStopDiscardsPending(t *testing.T) {
	var log []string
	s := NewScheduler()
	s.Start(nil)
	s.Enqueue(BucketObjects, &recDrawable{tag: "d", log: &log})

	s.Stop()
	if s.Running() {
		t.Error("Running after Stop")
	}
	if s.Pending(BucketObjects) != 0 {
		t.Error("pending flags survived Stop")
	}

	s.Start(nil)
	s.Tick()
	if len(log) != 0 {
		t.Error("discarded flag applied after restart")
	}
}

func TestSchedulerDoubleStartPanics(t *testing.T) {
	s := NewScheduler()
	s.Start(nil)
	defer func() {
		if recover() == nil {
			t.Error("expected panic on double Start")
		}
	}()
	s.Start(nil)
}
