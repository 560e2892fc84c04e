package reconcile

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the reconciler heuristics. The defaults were tuned by hand
// and only their relative ordering matters: a short pause ends a candidate
// turn, a longer one ends an agent turn, and the stale horizon outlives both.
type Config struct {
	// MinPartialLength is the minimum rune count for a partial to be tracked.
	MinPartialLength int `yaml:"min_partial_length"`

	// UserPromotionDelay is the silence after which a candidate partial is promoted.
	UserPromotionDelay time.Duration `yaml:"user_promotion_delay"`

	// AgentPromotionDelay is the silence after which an agent partial is promoted.
	AgentPromotionDelay time.Duration `yaml:"agent_promotion_delay"`

	// DedupWindow bounds how far back duplicate finals are looked for.
	DedupWindow time.Duration `yaml:"dedup_window"`

	// DedupSimilarity is the Jaro-Winkler score at or above which two
	// normalized texts count as the same utterance. Zero disables fuzzy matching.
	DedupSimilarity float64 `yaml:"dedup_similarity"`

	// StaleAfter is the inactivity horizon after which the sweep evicts a pending utterance.
	StaleAfter time.Duration `yaml:"stale_after"`
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		MinPartialLength:    3,
		UserPromotionDelay:  1500 * time.Millisecond,
		AgentPromotionDelay: 3 * time.Second,
		DedupWindow:         3 * time.Second,
		DedupSimilarity:     0.95,
		StaleAfter:          8 * time.Second,
	}
}

// Validate checks the ordering constraints between the timeouts.
func (c Config) Validate() error {
	var errs []error
	if c.MinPartialLength < 0 {
		errs = append(errs, fmt.Errorf("min partial length must not be negative, got %d", c.MinPartialLength))
	}
	if c.UserPromotionDelay <= 0 {
		errs = append(errs, fmt.Errorf("user promotion delay must be positive, got %v", c.UserPromotionDelay))
	}
	if c.AgentPromotionDelay < c.UserPromotionDelay {
		errs = append(errs, fmt.Errorf("agent promotion delay %v must not be shorter than user promotion delay %v",
			c.AgentPromotionDelay, c.UserPromotionDelay))
	}
	if c.DedupWindow < 0 {
		errs = append(errs, fmt.Errorf("dedup window must not be negative, got %v", c.DedupWindow))
	}
	if c.DedupSimilarity < 0 || c.DedupSimilarity > 1 {
		errs = append(errs, fmt.Errorf("dedup similarity must be within [0,1], got %v", c.DedupSimilarity))
	}
	if c.StaleAfter <= c.AgentPromotionDelay {
		errs = append(errs, fmt.Errorf("stale horizon %v must exceed agent promotion delay %v",
			c.StaleAfter, c.AgentPromotionDelay))
	}
	return errors.Join(errs...)
}
