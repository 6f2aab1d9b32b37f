// Package crash bounds recovery from unhandled failures. Each client has a
// failure counter that escalates the recovery action and is cleared only
// after the client has stayed up for a grace interval.
package crash

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"bazaar/models"
	"bazaar/store"
)

// Action is what the caller must do after a failure.
type Action string

const (
	ActionReload Action = "RELOAD"
	ActionNone   Action = "NONE"
)

// Tier is the escalation level reached by a failure.
type Tier string

const (
	TierSoft      Tier = "soft"
	TierDeep      Tier = "deep"
	TierExhausted Tier = "exhausted"
)

// DefaultGrace is how long a client must survive before its count clears.
const DefaultGrace = 30 * time.Second

// TierFor maps a post-increment failure count to its tier.
func TierFor(count int) Tier {
	switch {
	case count >= 5:
		return TierExhausted
	case count >= 3:
		return TierDeep
	default:
		return TierSoft
	}
}

// Decision is the outcome of one Trigger.
type Decision struct {
	Count  int      `json:"count"`
	Tier   Tier     `json:"tier"`
	Action Action   `json:"action"`
	Log    []string `json:"log,omitempty"` // integrity log of a deep recovery
}

// Recovery is the held state the governor resets. *store.Store satisfies it.
type Recovery interface {
	ResetNavigation(userID string)
	ClearCartAndLocation(userID string)
	Repair() ([]string, error)
	ResetSession(userID string)
}

// AfterFunc schedules f after d and returns a func that cancels it.
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

func realAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Options configures a Governor. Zero values select defaults.
type Options struct {
	Grace     time.Duration
	AfterFunc AfterFunc
	Codec     *store.Codec
}

// Governor is the crash-loop state machine of one client.
type Governor struct {
	mu     sync.Mutex
	client string
	kv     store.KV
	codec  *store.Codec
	rec    Recovery
	grace  time.Duration
	after  AfterFunc

	count  int
	loaded bool
	stop   func() bool
	gen    int
}

func NewGovernor(client string, kv store.KV, rec Recovery, opts Options) *Governor {
	if kv == nil {
		kv = store.NewMemoryKV()
	}
	if opts.Grace <= 0 {
		opts.Grace = DefaultGrace
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = realAfterFunc
	}
	if opts.Codec == nil {
		opts.Codec = store.NewCodec("")
	}
	return &Governor{
		client: client,
		kv:     kv,
		codec:  opts.Codec,
		rec:    rec,
		grace:  opts.Grace,
		after:  opts.AfterFunc,
	}
}

func key(client string) string {
	return "crash:" + client
}

// loadLocked reads the persisted count once. Unreadable state counts as zero.
func (g *Governor) loadLocked(ctx context.Context) error {
	if g.loaded {
		return nil
	}
	stored, ok, err := g.kv.Get(ctx, key(g.client))
	if err != nil {
		return fmt.Errorf("crash state %s: %w", g.client, err)
	}
	g.loaded = true
	if !ok {
		return nil
	}
	plain, err := g.codec.Decode(stored)
	if err != nil {
		log.Printf("[crash] %s: unreadable crash state, starting at 0: %v", g.client, err)
		return nil
	}
	var st models.CrashState
	if err := json.Unmarshal([]byte(plain), &st); err != nil {
		log.Printf("[crash] %s: unreadable crash state, starting at 0: %v", g.client, err)
		return nil
	}
	if st.Count < 0 {
		st.Count = 0
	}
	g.count = st.Count
	return nil
}

func (g *Governor) persistLocked(ctx context.Context) error {
	if g.count == 0 {
		return g.kv.Remove(ctx, key(g.client))
	}
	raw, err := json.Marshal(models.CrashState{Count: g.count})
	if err != nil {
		return err
	}
	enc, err := g.codec.Encode(string(raw))
	if err != nil {
		return err
	}
	return g.kv.Set(ctx, key(g.client), enc)
}

// Trigger records one unhandled failure and performs the recovery its tier
// calls for. An armed stability timer is cancelled: the client did not
// survive the grace interval.
func (g *Governor) Trigger(ctx context.Context, cause error) (Decision, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.loadLocked(ctx); err != nil {
		return Decision{}, err
	}
	g.disarmLocked()
	g.count++
	if err := g.persistLocked(ctx); err != nil {
		return Decision{}, fmt.Errorf("crash state %s: %w", g.client, err)
	}

	d := Decision{Count: g.count, Tier: TierFor(g.count), Action: ActionReload}
	switch d.Tier {
	case TierSoft:
		g.rec.ResetNavigation(g.client)
	case TierDeep:
		g.rec.ResetNavigation(g.client)
		g.rec.ClearCartAndLocation(g.client)
		repairLog, err := g.rec.Repair()
		if err != nil {
			log.Printf("[crash] %s: repair during deep recovery failed: %v", g.client, err)
		}
		d.Log = repairLog
	case TierExhausted:
		d.Action = ActionNone
	}
	log.Printf("[crash] %s: failure #%d (%v), tier %s, action %s", g.client, d.Count, cause, d.Tier, d.Action)
	return d, nil
}

// Started reports a successful start or reload and arms the stability timer.
func (g *Governor) Started() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.disarmLocked()

	gen := g.gen
	g.stop = g.after(g.grace, func() { g.stable(gen) })
}

func (g *Governor) stable(gen int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	// Superseded by a trigger or a newer start.
	if gen != g.gen || g.stop == nil {
		return
	}
	g.stop = nil
	// The persisted count may predate this process, so it is cleared even
	// when nothing was loaded yet.
	if g.count > 0 {
		log.Printf("[crash] %s: stable for %s, clearing %d failure(s)", g.client, g.grace, g.count)
	}
	g.count = 0
	g.loaded = true
	if err := g.persistLocked(context.Background()); err != nil {
		log.Printf("[crash] %s: could not clear crash state: %v", g.client, err)
	}
}

func (g *Governor) disarmLocked() {
	g.gen++
	if g.stop != nil {
		g.stop()
		g.stop = nil
	}
}

// Armed reports whether the stability timer is running.
func (g *Governor) Armed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stop != nil
}

// Count returns the current failure count.
func (g *Governor) Count(ctx context.Context) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.loadLocked(ctx); err != nil {
		return 0, err
	}
	return g.count, nil
}

// Reset is the manual factory reset offered once recovery is exhausted: the
// client's held state is wiped and the counter cleared.
func (g *Governor) Reset(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.disarmLocked()
	g.rec.ResetSession(g.client)
	g.count = 0
	g.loaded = true
	if err := g.persistLocked(ctx); err != nil {
		return fmt.Errorf("crash state %s: %w", g.client, err)
	}
	log.Printf("[crash] %s: factory reset", g.client)
	return nil
}
