package session

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestCountdownMonotonicUntilZero(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cd := NewCountdown(clock)
	cd.SyncServerTime(clock.Now())
	cd.Arm(clock.Now().Add(500 * time.Millisecond))

	var values []time.Duration
	var fires int
	for i := 0; i < 10; i++ {
		remaining, expired := cd.Remaining()
		values = append(values, remaining)
		if expired {
			fires++
		}
		clock.Advance(100 * time.Millisecond)
	}

	for i := 1; i < len(values); i++ {
		if values[i] > values[i-1] {
			t.Fatalf("remaining increased from %v to %v at tick %d", values[i-1], values[i], i)
		}
	}
	if values[len(values)-1] != 0 {
		t.Fatalf("expected countdown to reach 0, got %v", values[len(values)-1])
	}
	if fires != 1 {
		t.Fatalf("expected time-up to fire exactly once, fired %d times", fires)
	}
}

func TestCountdownDriftCorrectionNeverBumpsUp(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cd := NewCountdown(clock)
	cd.SyncServerTime(clock.Now())
	cd.Arm(clock.Now().Add(5 * time.Second))

	first, _ := cd.Remaining()

	// A late drift observation claiming the server clock runs behind would
	// naively grow the remaining time.
	cd.SyncServerTime(clock.Now().Add(-2 * time.Second))
	second, _ := cd.Remaining()

	if second > first {
		t.Fatalf("drift correction bumped remaining up: %v -> %v", first, second)
	}
}

func TestCountdownRearmResetsLatch(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cd := NewCountdown(clock)
	cd.SyncServerTime(clock.Now())

	cd.Arm(clock.Now().Add(100 * time.Millisecond))
	clock.Advance(200 * time.Millisecond)
	if _, expired := cd.Remaining(); !expired {
		t.Fatal("expected first deadline to expire")
	}
	if _, expired := cd.Remaining(); expired {
		t.Fatal("expiry fired twice for one deadline")
	}

	cd.Arm(clock.Now().Add(100 * time.Millisecond))
	if remaining, expired := cd.Remaining(); expired || remaining == 0 {
		t.Fatalf("re-armed countdown should be live, got remaining=%v expired=%v", remaining, expired)
	}
	clock.Advance(200 * time.Millisecond)
	if _, expired := cd.Remaining(); !expired {
		t.Fatal("expected second deadline to expire")
	}
}

func TestCountdownDisarmed(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cd := NewCountdown(clock)

	if remaining, expired := cd.Remaining(); remaining != 0 || expired {
		t.Fatalf("unarmed countdown should report 0 without firing, got %v %v", remaining, expired)
	}

	cd.ArmRemaining(2 * time.Second)
	cd.Disarm()
	clock.Advance(5 * time.Second)
	if _, expired := cd.Remaining(); expired {
		t.Fatal("disarmed countdown must not fire")
	}
}
