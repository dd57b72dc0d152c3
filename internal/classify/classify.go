// Package classify turns a free-text utterance plus plan/conversation
// context into a categorized, confidence-scored intent decision.
//
// Two interchangeable strategies implement types.Classifier: the model-backed
// ModelClassifier and the deterministic KeywordClassifier. IntentClassifier
// wraps the primary strategy with a short-lived result cache and
// single-flight deduplication; the fallback strategy is the dispatch engine's
// reliability floor and never fails.
package classify

import (
	"context"
	"errors"
	"time"

	"dirigent/internal/config"
	"dirigent/internal/logging"
	"dirigent/internal/types"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// cacheEntry holds a cached classification along with its store time.
type cacheEntry struct {
	result   types.IntentClassification
	storedAt time.Time
}

// IntentClassifier wraps the primary (model-backed) strategy with a TTL'd
// LRU result cache keyed by (utterance, plan id) and single-flight
// deduplication of concurrent identical calls.
type IntentClassifier struct {
	primary types.Classifier
	cache   *lru.Cache[string, cacheEntry]
	ttl     time.Duration
	timeout time.Duration
	group   singleflight.Group
}

// New creates an IntentClassifier around the given primary strategy.
func New(primary types.Classifier, cfg config.ClassifyConfig) (*IntentClassifier, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = 128
	}
	cache, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, err
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	logging.Intent("classifier created (ttl=%v timeout=%v cache=%d)", ttl, timeout, size)
	return &IntentClassifier{
		primary: primary,
		cache:   cache,
		ttl:     ttl,
		timeout: timeout,
	}, nil
}

func cacheKey(utterance string, activePlan *types.ProposedPlan) string {
	if activePlan == nil {
		return utterance + "\x00"
	}
	return utterance + "\x00" + activePlan.ID
}

// ClassifyIntent returns the intent decision for the utterance. A cached
// result for the same (utterance, plan id) within the TTL is returned without
// a new model call. Timeout expiry fails with ClassificationTimeout; any
// other underlying failure fails with ClassificationError. No partial result
// is ever returned with an error — callers must fall back.
func (c *IntentClassifier) ClassifyIntent(ctx context.Context, utterance string,
	activePlan *types.ProposedPlan, history []types.ConversationMessage,
	opts types.ClassifyOptions) (types.IntentClassification, error) {

	timer := logging.StartTimer(logging.CategoryIntent, "ClassifyIntent")
	defer timer.Stop()

	key := cacheKey(utterance, activePlan)
	if entry, ok := c.cache.Get(key); ok {
		if time.Since(entry.storedAt) < c.ttl {
			logging.IntentDebug("cache hit for %q", truncate(utterance, 40))
			return entry.result, nil
		}
		c.cache.Remove(key)
	}

	timeout := c.timeout
	if opts.Timeout > 0 {
		timeout = time.Duration(opts.Timeout) * time.Second
	}

	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		result, err := c.primary.Classify(callCtx, utterance, activePlan, history, opts)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
				return nil, &types.ClassificationTimeout{Timeout: timeout}
			}
			if errors.Is(err, context.Canceled) {
				// Caller cancellation is not a classifier failure.
				return nil, err
			}
			return nil, &types.ClassificationError{Err: err}
		}
		return result, nil
	})
	if err != nil {
		logging.Get(logging.CategoryIntent).Warn("classification failed: %v", err)
		return types.IntentClassification{}, err
	}
	if shared {
		logging.IntentDebug("single-flight shared result for %q", truncate(utterance, 40))
	}

	result := v.(types.IntentClassification)
	c.cache.Add(key, cacheEntry{result: result, storedAt: time.Now()})

	logging.Intent("classified %q -> %s (%.2f)", truncate(utterance, 40), result.Intent, result.Confidence)
	return result, nil
}

// ClearCache drops all cached classifications. Safe to call at any time,
// including while classifications are in flight.
func (c *IntentClassifier) ClearCache() {
	c.cache.Purge()
	logging.IntentDebug("classification cache cleared")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
