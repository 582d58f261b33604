package ultraloq

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/ulock-home/ulockd/internal/hass"
)

var _ hass.Commander = (*Coordinator)(nil)

// Coordinator polls the cloud for lock state and serves the latest
// snapshot to the HTTP handlers and the MQTT bridge. A poll failure
// keeps the previous snapshot; per-lock status failures keep that
// lock's last known state with Known cleared.
type Coordinator struct {
	client *Client
	cfg    Config

	refreshCh chan struct{}

	mu        sync.RWMutex
	addressID int64
	locks     map[string]hass.LockState
	order     []string
	lastPoll  time.Time
	lastErr   error

	subMu       sync.Mutex
	subscribers []chan []hass.LockState
}

func NewCoordinator(client *Client, cfg Config) *Coordinator {
	return &Coordinator{
		client:    client,
		cfg:       cfg,
		refreshCh: make(chan struct{}, 1),
		locks:     make(map[string]hass.LockState),
	}
}

// Run polls until the context is cancelled. The first poll happens
// immediately so the daemon comes up with state.
func (c *Coordinator) Run(ctx context.Context) {
	c.poll(ctx)

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.poll(ctx)
		case <-c.refreshCh:
			c.poll(ctx)
		}
	}
}

// RequestRefresh schedules an immediate poll without blocking.
func (c *Coordinator) RequestRefresh() {
	select {
	case c.refreshCh <- struct{}{}:
	default:
	}
}

// Snapshot returns the last known state of every lock, in discovery order.
func (c *Coordinator) Snapshot() []hass.LockState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	states := make([]hass.LockState, 0, len(c.order))
	for _, uuid := range c.order {
		states = append(states, c.locks[uuid])
	}
	return states
}

// LockState returns the last known state of one lock.
func (c *Coordinator) LockState(uuid string) (hass.LockState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	state, ok := c.locks[uuid]
	return state, ok
}

// LastError reports the most recent poll failure, nil after a clean poll.
func (c *Coordinator) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// LastPoll reports when the last successful poll finished.
func (c *Coordinator) LastPoll() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastPoll
}

// Subscribe returns a channel that receives the full snapshot after
// each successful poll. Slow consumers drop intermediate snapshots.
func (c *Coordinator) Subscribe() <-chan []hass.LockState {
	ch := make(chan []hass.LockState, 1)
	c.subMu.Lock()
	c.subscribers = append(c.subscribers, ch)
	c.subMu.Unlock()
	return ch
}

// Lock bolts a lock and refreshes its state.
func (c *Coordinator) Lock(ctx context.Context, uuid string) error {
	return c.command(ctx, uuid, c.client.Lock)
}

// Unlock retracts a lock's bolt and refreshes its state.
func (c *Coordinator) Unlock(ctx context.Context, uuid string) error {
	return c.command(ctx, uuid, c.client.Unlock)
}

func (c *Coordinator) command(ctx context.Context, uuid string, op func(context.Context, string, int64) error) error {
	if _, ok := c.LockState(uuid); !ok {
		return ErrDeviceNotFound
	}
	addressID, err := c.resolveAddress(ctx)
	if err != nil {
		return err
	}
	if err := op(ctx, uuid, addressID); err != nil {
		return err
	}
	c.refreshLock(ctx, uuid)
	c.notify()
	return nil
}

func (c *Coordinator) resolveAddress(ctx context.Context) (int64, error) {
	c.mu.RLock()
	cached := c.addressID
	c.mu.RUnlock()
	if cached != 0 {
		return cached, nil
	}

	address, err := c.client.ResolveAddress(ctx, 0)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.addressID = address.ID
	c.mu.Unlock()
	return address.ID, nil
}

func (c *Coordinator) poll(ctx context.Context) {
	addressID, err := c.resolveAddress(ctx)
	if err != nil {
		c.failPoll(err)
		return
	}

	locks, err := c.client.Locks(ctx, addressID)
	if err != nil {
		c.failPoll(err)
		return
	}

	// Status reads are independent per lock; fan them out.
	type result struct {
		lock   Lock
		status LockStatus
		err    error
	}
	results := make([]result, len(locks))
	var wg sync.WaitGroup
	for i, lock := range locks {
		wg.Add(1)
		go func(i int, lock Lock) {
			defer wg.Done()
			status, err := c.client.LockStatus(ctx, lock.UUID)
			results[i] = result{lock: lock, status: status, err: err}
		}(i, lock)
	}
	wg.Wait()

	c.mu.Lock()
	c.order = c.order[:0]
	for _, res := range results {
		c.order = append(c.order, res.lock.UUID)
		if res.err != nil {
			log.Printf("ultraloq: status for %s (%s): %v", res.lock.Name, res.lock.UUID, res.err)
			if prev, ok := c.locks[res.lock.UUID]; ok {
				prev.Known = false
				c.locks[res.lock.UUID] = prev
			} else {
				c.locks[res.lock.UUID] = hass.LockState{
					UUID:  res.lock.UUID,
					Name:  res.lock.Name,
					Model: res.lock.Model,
				}
			}
			continue
		}
		c.locks[res.lock.UUID] = stateFromStatus(res.lock, res.status)
	}
	c.lastPoll = time.Now()
	c.lastErr = nil
	c.mu.Unlock()

	c.notify()
}

func (c *Coordinator) failPoll(err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	log.Printf("ultraloq: poll failed: %v", err)
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

func (c *Coordinator) refreshLock(ctx context.Context, uuid string) {
	status, err := c.client.LockStatus(ctx, uuid)
	if err != nil {
		log.Printf("ultraloq: refresh %s: %v", uuid, err)
		return
	}
	c.mu.Lock()
	prev := c.locks[uuid]
	c.locks[uuid] = stateFromStatus(Lock{UUID: uuid, Name: prev.Name, Model: prev.Model}, status)
	c.mu.Unlock()
}

func (c *Coordinator) notify() {
	snapshot := c.Snapshot()
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subscribers {
		select {
		case ch <- snapshot:
		default:
			// Replace the stale snapshot rather than queueing.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}

func stateFromStatus(lock Lock, status LockStatus) hass.LockState {
	return hass.LockState{
		UUID:         lock.UUID,
		Name:         lock.Name,
		Model:        lock.Model,
		Firmware:     status.Version,
		Known:        true,
		Locked:       status.Locked,
		Jammed:       status.Jammed,
		Online:       status.Online,
		Battery:      status.Battery,
		WifiStrength: status.WifiStrength,
		BLEStrength:  status.BLEStrength,
	}
}
