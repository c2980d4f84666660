package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/openuav/missionkit/pkg/geo"
)

func TestStateStartsUnknown(t *testing.T) {
	s := NewState()
	snap := s.Snapshot()

	if snap.HasPosition || snap.HasBattery || snap.HasGPS || snap.HasArmed {
		t.Errorf("fresh state must report nothing available: %+v", snap)
	}
	if _, err := s.Position(); err != ErrUnavailableTelemetry {
		t.Errorf("expected ErrUnavailableTelemetry, got %v", err)
	}
	if _, err := snap.DistanceToHome(); err != ErrUnavailableTelemetry {
		t.Errorf("expected ErrUnavailableTelemetry for home distance, got %v", err)
	}
}

func TestGenerationIncrements(t *testing.T) {
	s := NewState()
	for i := 0; i < 5; i++ {
		s.Apply(func(snap *Snapshot) {
			snap.Heading = float64(i)
			snap.HasHeading = true
		})
	}
	if gen := s.Snapshot().Generation; gen != 5 {
		t.Errorf("expected generation 5, got %d", gen)
	}
}

func TestSnapshotNotTorn(t *testing.T) {
	s := NewState()
	pos := geo.NewCoordinate(35.7, -78.7, 0)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			alt := float64(i % 100)
			s.Apply(func(snap *Snapshot) {
				snap.Position = pos
				snap.Position.Alt = alt
				snap.Heading = alt // keep the pair in lockstep
				snap.HasPosition = true
				snap.HasHeading = true
			})
		}
	}()

	deadline := time.Now().Add(100 * time.Millisecond)
	for time.Now().Before(deadline) {
		snap := s.Snapshot()
		if snap.HasPosition && snap.Position.Alt != snap.Heading {
			t.Fatalf("torn snapshot: alt %.0f, heading %.0f", snap.Position.Alt, snap.Heading)
		}
	}

	close(stop)
	wg.Wait()
}

func TestWaitUntil(t *testing.T) {
	s := NewState()

	go func() {
		for alt := 0.0; alt <= 10; alt++ {
			time.Sleep(time.Millisecond)
			a := alt
			s.Apply(func(snap *Snapshot) {
				snap.Position.Alt = a
				snap.HasPosition = true
			})
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	snap, err := s.WaitUntil(ctx, func(snap Snapshot) bool {
		return snap.HasPosition && snap.Position.Alt >= 5
	})
	if err != nil {
		t.Fatalf("WaitUntil failed: %v", err)
	}
	if snap.Position.Alt < 5 {
		t.Errorf("predicate not satisfied by returned snapshot: %+v", snap.Position)
	}
}

func TestWaitUntilTimeout(t *testing.T) {
	s := NewState()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.WaitUntil(ctx, func(Snapshot) bool { return false })
	if err != context.DeadlineExceeded {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestWaitUntilImmediate(t *testing.T) {
	s := NewState()
	s.Apply(func(snap *Snapshot) {
		snap.Armed = true
		snap.HasArmed = true
	})

	// Already-satisfied predicate must not block even with a done context.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snap, err := s.WaitUntil(ctx, func(snap Snapshot) bool { return snap.Armed })
	if err != nil {
		t.Fatalf("WaitUntil failed: %v", err)
	}
	if !snap.Armed {
		t.Error("expected armed snapshot")
	}
}
