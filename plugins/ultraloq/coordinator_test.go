package ultraloq

import (
	"context"
	"testing"
	"time"
)

func newTestCoordinator(t *testing.T, cloud *fakeCloud) *Coordinator {
	t.Helper()
	client, _ := newTestClient(t, cloud)
	cfg := client.cfg
	cfg.PollInterval = time.Hour
	return NewCoordinator(client, cfg)
}

func TestCoordinatorPoll(t *testing.T) {
	cloud := newFakeCloud(t)
	coordinator := newTestCoordinator(t, cloud)
	ctx := context.Background()

	coordinator.poll(ctx)

	if err := coordinator.LastError(); err != nil {
		t.Fatalf("poll: %v", err)
	}
	states := coordinator.Snapshot()
	if len(states) != 1 {
		t.Fatalf("expected one lock, got %d", len(states))
	}
	state := states[0]
	if state.UUID != "lock-1" || state.Name != "Front Door" {
		t.Fatalf("unexpected state: %+v", state)
	}
	if !state.Known || state.Locked {
		t.Fatalf("expected known unlocked lock, got %+v", state)
	}
	if state.Battery != 3 || state.Firmware != "01.29.0019" {
		t.Fatalf("unexpected status fields: %+v", state)
	}
}

func TestCoordinatorKeepsSnapshotOnFailure(t *testing.T) {
	cloud := newFakeCloud(t)
	coordinator := newTestCoordinator(t, cloud)
	ctx := context.Background()

	coordinator.poll(ctx)
	if len(coordinator.Snapshot()) != 1 {
		t.Fatalf("expected populated snapshot")
	}

	cloud.mu.Lock()
	cloud.rejectAPICall = true
	cloud.mu.Unlock()
	coordinator.poll(ctx)

	if coordinator.LastError() == nil {
		t.Fatalf("expected poll error to be recorded")
	}
	if len(coordinator.Snapshot()) != 1 {
		t.Fatalf("failed poll must keep the previous snapshot")
	}

	coordinator.poll(ctx)
	if err := coordinator.LastError(); err != nil {
		t.Fatalf("recovery poll: %v", err)
	}
}

func TestCoordinatorCommandRefreshesState(t *testing.T) {
	cloud := newFakeCloud(t)
	coordinator := newTestCoordinator(t, cloud)
	ctx := context.Background()

	coordinator.poll(ctx)

	if err := coordinator.Lock(ctx, "lock-1"); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	state, ok := coordinator.LockState("lock-1")
	if !ok || !state.Locked {
		t.Fatalf("expected locked state after command, got %+v", state)
	}

	if err := coordinator.Unlock(ctx, "lock-1"); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	state, _ = coordinator.LockState("lock-1")
	if state.Locked {
		t.Fatalf("expected unlocked state after command, got %+v", state)
	}
}

func TestCoordinatorCommandUnknownLock(t *testing.T) {
	cloud := newFakeCloud(t)
	coordinator := newTestCoordinator(t, cloud)
	ctx := context.Background()

	coordinator.poll(ctx)

	if err := coordinator.Lock(ctx, "no-such-lock"); err != ErrDeviceNotFound {
		t.Fatalf("expected ErrDeviceNotFound, got %v", err)
	}
}

func TestCoordinatorSubscribe(t *testing.T) {
	cloud := newFakeCloud(t)
	coordinator := newTestCoordinator(t, cloud)
	ctx := context.Background()

	updates := coordinator.Subscribe()
	coordinator.poll(ctx)

	select {
	case states := <-updates:
		if len(states) != 1 {
			t.Fatalf("expected one lock in update, got %d", len(states))
		}
	default:
		t.Fatalf("expected a snapshot after poll")
	}

	// A second poll must not block on the unread channel.
	coordinator.poll(ctx)
	coordinator.poll(ctx)
}
