package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.App.Name != "waitlist-service" {
		t.Errorf("app name = %q, want waitlist-service", cfg.App.Name)
	}
	if got := cfg.App.Addr(); got != "0.0.0.0:4000" {
		t.Errorf("addr = %q, want 0.0.0.0:4000", got)
	}
	if cfg.Waitlist.Capacity != 10 {
		t.Errorf("capacity = %d, want 10", cfg.Waitlist.Capacity)
	}
	if cfg.Redis.EventsChannel != "waitlist:events" {
		t.Errorf("events channel = %q, want waitlist:events", cfg.Redis.EventsChannel)
	}
}

func TestLoadRejectsNonPositiveWaitlistValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"zero capacity", "WAITLIST_CAPACITY", "0"},
		{"negative service time", "WAITLIST_SERVICE_SECONDS_PER_GUEST", "-1"},
		{"zero check-in window", "WAITLIST_CHECKIN_TIMEOUT_SECONDS", "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Fatal("Load succeeded, want error")
			}
		})
	}
}

func TestWaitlistDurations(t *testing.T) {
	w := WaitlistConfig{Capacity: 10, ServiceSecondsPerGuest: 3, CheckinTimeoutSeconds: 60}
	if got := w.ServiceTimePerGuest(); got != 3*time.Second {
		t.Errorf("ServiceTimePerGuest = %v, want 3s", got)
	}
	if got := w.CheckinTimeout(); got != time.Minute {
		t.Errorf("CheckinTimeout = %v, want 1m", got)
	}
}

func TestRequestTimeoutZeroWhenDisabled(t *testing.T) {
	a := AppConfig{RequestTimeoutSeconds: 0}
	if got := a.RequestTimeout(); got != 0 {
		t.Errorf("RequestTimeout = %v, want 0", got)
	}
}
