package typing

import (
	"sync"
	"testing"
	"time"
)

// signalRecorder collects emitted typing transitions.
type signalRecorder struct {
	mu      sync.Mutex
	signals []struct {
		receiver string
		typing   bool
	}
}

func (r *signalRecorder) emit(receiver string, isTyping bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, struct {
		receiver string
		typing   bool
	}{receiver, isTyping})
}

func (r *signalRecorder) snapshot() []struct {
	receiver string
	typing   bool
} {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]struct {
		receiver string
		typing   bool
	}, len(r.signals))
	copy(out, r.signals)
	return out
}

func TestKeystrokeWithoutContactIsNoop(t *testing.T) {
	rec := &signalRecorder{}
	c := NewCoordinator(rec.emit, 20*time.Millisecond)

	c.Keystroke()
	c.Keystroke()
	time.Sleep(60 * time.Millisecond)

	if got := rec.snapshot(); len(got) != 0 {
		t.Fatalf("expected no signals, got %v", got)
	}
}

func TestBurstEmitsOneStartAndOneStop(t *testing.T) {
	rec := &signalRecorder{}
	c := NewCoordinator(rec.emit, 50*time.Millisecond)
	c.SetActiveContact("2222222222")

	// Rapid burst: every keystroke inside the quiet interval.
	for i := 0; i < 5; i++ {
		c.Keystroke()
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(120 * time.Millisecond)

	got := rec.snapshot()
	if len(got) != 2 {
		t.Fatalf("expected exactly start+stop, got %v", got)
	}
	if !got[0].typing || got[0].receiver != "2222222222" {
		t.Errorf("expected leading start signal, got %v", got[0])
	}
	if got[1].typing {
		t.Errorf("expected trailing stop signal, got %v", got[1])
	}
}

func TestSeparateBurstsEmitSeparateSignals(t *testing.T) {
	rec := &signalRecorder{}
	c := NewCoordinator(rec.emit, 20*time.Millisecond)
	c.SetActiveContact("2222222222")

	c.Keystroke()
	time.Sleep(60 * time.Millisecond)
	c.Keystroke()
	time.Sleep(60 * time.Millisecond)

	got := rec.snapshot()
	if len(got) != 4 {
		t.Fatalf("expected two start/stop pairs, got %v", got)
	}
}

func TestContactSwitchClosesOutOldContact(t *testing.T) {
	rec := &signalRecorder{}
	c := NewCoordinator(rec.emit, time.Hour)
	c.SetActiveContact("2222222222")

	c.Keystroke()
	c.SetActiveContact("3333333333")

	got := rec.snapshot()
	if len(got) != 2 {
		t.Fatalf("expected start then stop, got %v", got)
	}
	if got[1].typing || got[1].receiver != "2222222222" {
		t.Errorf("expected stop for old contact, got %v", got[1])
	}

	// The old contact's timer must not fire for the new contact.
	c.Keystroke()
	got = rec.snapshot()
	if len(got) != 3 || !got[2].typing || got[2].receiver != "3333333333" {
		t.Errorf("expected fresh start for new contact, got %v", got)
	}
}

func TestFlushEndsBurstImmediately(t *testing.T) {
	rec := &signalRecorder{}
	c := NewCoordinator(rec.emit, time.Hour)
	c.SetActiveContact("2222222222")

	c.Keystroke()
	c.Flush()
	c.Flush() // idempotent

	got := rec.snapshot()
	if len(got) != 2 || got[1].typing {
		t.Fatalf("expected start then immediate stop, got %v", got)
	}
}

func TestIndicatorAbsorbsRedundantSignals(t *testing.T) {
	var shows, hides int
	ind := NewIndicator(func() { shows++ }, func() { hides++ })

	ind.Set(true)
	ind.Set(true)
	ind.Set(true)
	if shows != 1 {
		t.Errorf("expected 1 show, got %d", shows)
	}

	ind.Set(false)
	ind.Set(false)
	if hides != 1 {
		t.Errorf("expected 1 hide, got %d", hides)
	}
}

func TestIndicatorClearOnHiddenIsNoop(t *testing.T) {
	var hides int
	ind := NewIndicator(func() {}, func() { hides++ })

	ind.Clear()
	if hides != 0 {
		t.Errorf("expected no hide while hidden, got %d", hides)
	}

	ind.Set(true)
	ind.Clear()
	if hides != 1 || ind.Visible() {
		t.Errorf("expected hidden after clear, hides=%d visible=%v", hides, ind.Visible())
	}
}
