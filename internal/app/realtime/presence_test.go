package realtime_test

import (
	"testing"
	"time"

	"github.com/dalemusser/crewhub/internal/app/realtime"
)

func TestPresenceTracker_JoinCreatesOnlineEntry(t *testing.T) {
	p := realtime.NewPresenceTracker(5 * time.Minute)

	if !p.Join("user-a", "c1") {
		t.Fatal("first join should report a status change")
	}
	if got := p.StatusOf("user-a"); got != realtime.StatusOnline {
		t.Errorf("status: got %q, want %q", got, realtime.StatusOnline)
	}

	// A second connection for the same online user is not a change.
	if p.Join("user-a", "c2") {
		t.Error("second join while online should not report a change")
	}
}

func TestPresenceTracker_HeartbeatWhileOnlineIsQuiet(t *testing.T) {
	p := realtime.NewPresenceTracker(5 * time.Minute)

	p.Join("user-a", "c1")
	if p.Heartbeat("user-a") {
		t.Error("heartbeat while online should not report a change")
	}
}

func TestPresenceTracker_HeartbeatForUnknownUser(t *testing.T) {
	p := realtime.NewPresenceTracker(5 * time.Minute)

	if p.Heartbeat("ghost") {
		t.Error("heartbeat for untracked user should not report a change")
	}
	if got := p.StatusOf("ghost"); got != realtime.StatusOffline {
		t.Errorf("status: got %q, want %q", got, realtime.StatusOffline)
	}
}

func TestPresenceTracker_SweepMarksAwayOnce(t *testing.T) {
	p := realtime.NewPresenceTracker(20 * time.Millisecond)

	p.Join("user-a", "c1")
	time.Sleep(40 * time.Millisecond)

	changed := p.Sweep()
	if len(changed) != 1 || changed[0] != "user-a" {
		t.Fatalf("first sweep: got %v, want [user-a]", changed)
	}
	if got := p.StatusOf("user-a"); got != realtime.StatusAway {
		t.Errorf("status after sweep: got %q, want %q", got, realtime.StatusAway)
	}

	// The transition is reported once, not on every subsequent tick.
	if changed := p.Sweep(); len(changed) != 0 {
		t.Errorf("second sweep: got %v, want no changes", changed)
	}
}

func TestPresenceTracker_HeartbeatRevivesAwayUser(t *testing.T) {
	p := realtime.NewPresenceTracker(20 * time.Millisecond)

	p.Join("user-a", "c1")
	time.Sleep(40 * time.Millisecond)
	p.Sweep()

	if !p.Heartbeat("user-a") {
		t.Fatal("heartbeat while away should report a change")
	}
	if got := p.StatusOf("user-a"); got != realtime.StatusOnline {
		t.Errorf("status: got %q, want %q", got, realtime.StatusOnline)
	}
}

func TestPresenceTracker_EntryExistsIffConnections(t *testing.T) {
	p := realtime.NewPresenceTracker(5 * time.Minute)

	p.Join("user-a", "c1")
	p.Join("user-a", "c2")

	if p.ConnClosed("user-a", "c1") {
		t.Error("closing one of two connections should not remove the entry")
	}
	if _, ok := p.Snapshot()["user-a"]; !ok {
		t.Fatal("entry should survive while a connection remains")
	}

	if !p.ConnClosed("user-a", "c2") {
		t.Error("closing the last connection should remove the entry")
	}
	if _, ok := p.Snapshot()["user-a"]; ok {
		t.Fatal("entry should be gone after the last connection closes")
	}

	// Closing a connection for an already-removed user is a no-op.
	if p.ConnClosed("user-a", "c2") {
		t.Error("duplicate close should not report a removal")
	}
}
