// Package conversation tracks per-session dialogue state: a bounded rolling
// message history, a reinforcement ledger that nudges future fallback
// confidence, and an archive of superseded plans kept for learning.
package conversation

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"dirigent/internal/logging"
	"dirigent/internal/types"
)

// LedgerEntry tallies how often an intent kind was confirmed correct versus
// corrected by the user.
type LedgerEntry struct {
	Correct   int `json:"correct"`
	Corrected int `json:"corrected"`
}

// ArchivedPlan is a plan that left the active lifecycle, kept for learning.
type ArchivedPlan struct {
	Plan       types.ProposedPlan `json:"plan"`
	Outcome    types.PlanStatus   `json:"outcome"`
	ArchivedAt time.Time          `json:"archived_at"`
}

// Context is the per-session conversation state. All methods are safe for
// concurrent use, though a session is logically single-threaded.
type Context struct {
	mu         sync.RWMutex
	retention  int
	maxArchive int
	messages   []types.ConversationMessage
	ledger     map[types.Intent]*LedgerEntry
	archive    []ArchivedPlan
}

// NewContext creates a conversation context retaining the most recent
// `retention` messages and at most `maxArchive` archived plans.
func NewContext(retention, maxArchive int) *Context {
	if retention <= 0 {
		retention = 20
	}
	if maxArchive <= 0 {
		maxArchive = 10
	}
	return &Context{
		retention:  retention,
		maxArchive: maxArchive,
		messages:   make([]types.ConversationMessage, 0, retention),
		ledger:     make(map[types.Intent]*LedgerEntry),
		archive:    make([]ArchivedPlan, 0),
	}
}

// AddMessage appends a message, evicting the oldest beyond the retention
// window (FIFO).
func (c *Context) AddMessage(msg types.ConversationMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = append(c.messages, msg)
	if len(c.messages) > c.retention {
		c.messages = c.messages[len(c.messages)-c.retention:]
	}
}

// RecentContext returns a copy of the last k messages. The snapshot does not
// track later appends.
func (c *Context) RecentContext(k int) []types.ConversationMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if k <= 0 || len(c.messages) == 0 {
		return nil
	}
	if k > len(c.messages) {
		k = len(c.messages)
	}
	out := make([]types.ConversationMessage, k)
	copy(out, c.messages[len(c.messages)-k:])
	return out
}

// Len returns the number of retained messages.
func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// LearnFromInteraction records whether a past classification of the given
// kind turned out correct. The tally biases future fallback confidence.
func (c *Context) LearnFromInteraction(kind types.Intent, wasCorrect bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.ledger[kind]
	if entry == nil {
		entry = &LedgerEntry{}
		c.ledger[kind] = entry
	}
	if wasCorrect {
		entry.Correct++
	} else {
		entry.Corrected++
	}
	logging.SessionDebug("ledger: %s correct=%d corrected=%d", kind, entry.Correct, entry.Corrected)
}

// Bias returns a small confidence nudge for the given intent kind derived
// from the ledger, clamped to [-0.05, +0.05]. Unknown kinds get zero.
func (c *Context) Bias(kind types.Intent) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry := c.ledger[kind]
	if entry == nil {
		return 0
	}
	total := entry.Correct + entry.Corrected
	if total == 0 {
		return 0
	}
	bias := 0.05 * float64(entry.Correct-entry.Corrected) / float64(total)
	if bias > 0.05 {
		bias = 0.05
	}
	if bias < -0.05 {
		bias = -0.05
	}
	return bias
}

// Ledger returns a copy of the reinforcement tally.
func (c *Context) Ledger() map[types.Intent]LedgerEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[types.Intent]LedgerEntry, len(c.ledger))
	for k, v := range c.ledger {
		out[k] = *v
	}
	return out
}

// ArchivePlan records a plan that was rejected, modified, or completed.
// The archive is bounded; oldest entries are dropped first.
func (c *Context) ArchivePlan(plan types.ProposedPlan, outcome types.PlanStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.archive = append(c.archive, ArchivedPlan{
		Plan:       plan,
		Outcome:    outcome,
		ArchivedAt: time.Now(),
	})
	if len(c.archive) > c.maxArchive {
		c.archive = c.archive[len(c.archive)-c.maxArchive:]
	}
	logging.Session("archived plan %s (%s), archive size %d", plan.ID, outcome, len(c.archive))
}

// Archive returns a copy of the archived plans, oldest first.
func (c *Context) Archive() []ArchivedPlan {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]ArchivedPlan, len(c.archive))
	copy(out, c.archive)
	return out
}

// learningBlob is the serialized form of the durable learning state. The
// rolling message window is deliberately excluded; only the tally and the
// archive round-trip.
type learningBlob struct {
	Ledger  map[types.Intent]*LedgerEntry `json:"ledger"`
	Archive []ArchivedPlan                `json:"archive"`
}

// ExportLearningData serializes the tally and plan archive to an opaque blob.
func (c *Context) ExportLearningData() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	blob := learningBlob{
		Ledger:  c.ledger,
		Archive: c.archive,
	}
	data, err := json.Marshal(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to export learning data: %w", err)
	}
	return data, nil
}

// ImportLearningData replaces the tally and archive from a previously
// exported blob. Import(Export(x)) == x.
func (c *Context) ImportLearningData(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	var blob learningBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return fmt.Errorf("failed to import learning data: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.ledger = blob.Ledger
	if c.ledger == nil {
		c.ledger = make(map[types.Intent]*LedgerEntry)
	}
	c.archive = blob.Archive
	if c.archive == nil {
		c.archive = make([]ArchivedPlan, 0)
	}
	if len(c.archive) > c.maxArchive {
		c.archive = c.archive[len(c.archive)-c.maxArchive:]
	}
	return nil
}

// Clear resets all in-memory state. It does not persist; callers must save
// first if they want the learning state to survive.
func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = c.messages[:0]
	c.ledger = make(map[types.Intent]*LedgerEntry)
	c.archive = c.archive[:0]
	logging.Session("conversation context cleared")
}
