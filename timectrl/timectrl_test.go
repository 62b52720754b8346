package timectrl

import (
	"context"
	"testing"
	"time"
)

func TestTimeControllerSetTime(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Second, RealTime)

	newNow := start.Add(42 * time.Second)
	tc.SetTime(newNow)

	if got := tc.Now(); !got.Equal(newNow) {
		t.Fatalf("Now() = %v, want %v", got, newNow)
	}
}

func TestTimeControllerSetTimeWrapsWhenLooping(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Second, RealTime)
	tc.Loop = true
	tc.Window = time.Hour

	tc.SetTime(start.Add(90 * time.Minute))
	if got, want := tc.Now(), start.Add(30*time.Minute); !got.Equal(want) {
		t.Fatalf("Now() = %v, want %v", got, want)
	}
	tc.SetTime(start.Add(-15 * time.Minute))
	if got, want := tc.Now(), start.Add(45*time.Minute); !got.Equal(want) {
		t.Fatalf("Now() = %v, want %v", got, want)
	}
}

func TestTimeControllerStartUpdatesNow(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, 5*time.Millisecond, Accelerated)

	done := tc.Start(context.Background(), 15*time.Millisecond)
	<-done

	expected := start.Add(15 * time.Millisecond)
	if got := tc.Now(); !got.Equal(expected) {
		t.Fatalf("Now() = %v, want %v", got, expected)
	}
}

func TestTimeControllerLoopWraps(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, 20*time.Minute, Accelerated)
	tc.Loop = true
	tc.Window = time.Hour

	var loops []time.Time
	tc.AddLoopListener(func(now time.Time) { loops = append(loops, now) })

	<-tc.Start(context.Background(), 100*time.Minute)

	if got, want := tc.Now(), start.Add(40*time.Minute); !got.Equal(want) {
		t.Fatalf("Now() = %v, want %v", got, want)
	}
	if len(loops) != 1 || !loops[0].Equal(start) {
		t.Fatalf("loop notifications = %v, want one at %v", loops, start)
	}
}

func TestTimeControllerStopsAtWindowWithoutLoop(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, 25*time.Minute, Accelerated)
	tc.Window = time.Hour

	ticks := 0
	tc.AddListener(func(time.Time) { ticks++ })
	<-tc.Start(context.Background(), 0)

	if got, want := tc.Now(), start.Add(time.Hour); !got.Equal(want) {
		t.Fatalf("Now() = %v, want %v", got, want)
	}
	if ticks != 3 {
		t.Fatalf("ticks = %d, want 3", ticks)
	}
}

func TestTimeControllerAfter(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Minute, Accelerated)

	ch := tc.After(150 * time.Second)
	tc.Step()
	tc.Step()
	select {
	case <-ch:
		t.Fatalf("timer fired early")
	default:
	}
	tc.Step()
	select {
	case got := <-ch:
		if want := start.Add(3 * time.Minute); !got.Equal(want) {
			t.Fatalf("timer fired at %v, want %v", got, want)
		}
	default:
		t.Fatalf("timer did not fire")
	}

	select {
	case <-tc.After(0):
	default:
		t.Fatalf("After(0) should fire immediately")
	}
}

func TestTimeControllerStopsOnCancel(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Second, RealTime)
	tc.Multiplier = 1

	ctx, cancel := context.WithCancel(context.Background())
	done := tc.Start(ctx, 0)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("controller did not stop after cancel")
	}
}
