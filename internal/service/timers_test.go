package service

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduleFiresOnce(t *testing.T) {
	registry := newTimerRegistry()
	defer registry.StopAll()

	var fired atomic.Int32
	registry.Schedule("p1", 5*time.Millisecond, func() { fired.Add(1) })

	waitFor(t, time.Second, func() bool { return fired.Load() == 1 })
	time.Sleep(20 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Errorf("fired %d times, want 1", got)
	}
	if got := registry.Pending(); got != 0 {
		t.Errorf("pending = %d, want 0 after firing", got)
	}
}

func TestScheduleReplacesPendingTimer(t *testing.T) {
	registry := newTimerRegistry()
	defer registry.StopAll()

	var first, second atomic.Int32
	registry.Schedule("p1", time.Hour, func() { first.Add(1) })
	registry.Schedule("p1", 5*time.Millisecond, func() { second.Add(1) })

	waitFor(t, time.Second, func() bool { return second.Load() == 1 })
	if got := first.Load(); got != 0 {
		t.Errorf("replaced timer fired %d times, want 0", got)
	}
}

func TestCancelStopsPendingTimer(t *testing.T) {
	registry := newTimerRegistry()
	defer registry.StopAll()

	var fired atomic.Int32
	registry.Schedule("p1", 50*time.Millisecond, func() { fired.Add(1) })

	if !registry.Cancel("p1") {
		t.Fatal("Cancel = false, want true for a pending timer")
	}
	if registry.Cancel("p1") {
		t.Error("Cancel = true on second call, want false")
	}
	time.Sleep(80 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Errorf("cancelled timer fired %d times, want 0", got)
	}
}

func TestStopAllClearsEverything(t *testing.T) {
	registry := newTimerRegistry()

	var fired atomic.Int32
	registry.Schedule("p1", 50*time.Millisecond, func() { fired.Add(1) })
	registry.Schedule("p2", 50*time.Millisecond, func() { fired.Add(1) })
	if got := registry.Pending(); got != 2 {
		t.Fatalf("pending = %d, want 2", got)
	}

	registry.StopAll()
	if got := registry.Pending(); got != 0 {
		t.Errorf("pending = %d, want 0", got)
	}
	time.Sleep(80 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Errorf("stopped timers fired %d times, want 0", got)
	}
}

func TestScheduleClampsNegativeDelay(t *testing.T) {
	registry := newTimerRegistry()
	defer registry.StopAll()

	var fired atomic.Int32
	registry.Schedule("p1", -time.Minute, func() { fired.Add(1) })
	waitFor(t, time.Second, func() bool { return fired.Load() == 1 })
}
