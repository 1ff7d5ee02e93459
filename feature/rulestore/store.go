package rulestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"recon-engine/core/rules"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// Rule is the persisted form of one matching rule set entry.
type Rule struct {
	ID        uint      `gorm:"primaryKey"`
	JobID     string    `gorm:"column:job_id;index"`
	Rules     string    `gorm:"column:rules"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName overrides the default gorm table name.
func (Rule) TableName() string {
	return "matching_rules"
}

// cached is one per-job cache entry.
type cached struct {
	rules []rules.MatchingRule
	built time.Time
}

func (c *cached) expired(ttl time.Duration) bool {
	if ttl == 0 {
		return true
	}
	return time.Since(c.built) > ttl
}

// Store loads rule sets from the database with a per-job TTL cache.
type Store struct {
	db  *gorm.DB
	ttl time.Duration

	mu    sync.RWMutex
	cache map[string]*cached
	sf    singleflight.Group
}

// NewStore creates a database backed rule source. A zero ttl disables caching.
func NewStore(db *gorm.DB, ttl time.Duration) *Store {
	return &Store{
		db:    db,
		ttl:   ttl,
		cache: make(map[string]*cached),
	}
}

// RulesFor returns the active rule set for a job. Concurrent callers for the
// same job share one database read.
func (s *Store) RulesFor(ctx context.Context, jobID string) ([]rules.MatchingRule, error) {
	// Fast path: fresh cache entry
	s.mu.RLock()
	entry, exists := s.cache[jobID]
	s.mu.RUnlock()

	if exists && !entry.expired(s.ttl) {
		return entry.rules, nil
	}

	result, err, _ := s.sf.Do(jobID, func() (interface{}, error) {
		// Double-check after acquiring singleflight lock
		s.mu.RLock()
		entry, exists := s.cache[jobID]
		s.mu.RUnlock()

		if exists && !entry.expired(s.ttl) {
			return entry.rules, nil
		}

		loaded, err := s.load(ctx, jobID)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.cache[jobID] = &cached{rules: loaded, built: time.Now()}
		s.mu.Unlock()

		return loaded, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]rules.MatchingRule), nil
}

// Invalidate drops the cached rule set for a job, forcing a reload on the
// next RulesFor call.
func (s *Store) Invalidate(jobID string) {
	s.mu.Lock()
	delete(s.cache, jobID)
	s.mu.Unlock()
}

func (s *Store) load(ctx context.Context, jobID string) ([]rules.MatchingRule, error) {
	var row Rule
	err := s.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("updated_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// No rules configured for this job
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load rules for job %s: %w", jobID, err)
	}

	var ruleSet []rules.MatchingRule
	if err := json.Unmarshal([]byte(row.Rules), &ruleSet); err != nil {
		return nil, fmt.Errorf("failed to decode rules for job %s: %w", jobID, err)
	}
	return ruleSet, nil
}

// Static is a fixed in-memory rule source.
type Static struct {
	mu      sync.RWMutex
	ruleSet map[string][]rules.MatchingRule
}

// NewStatic creates a rule source from a job to rule set map.
func NewStatic(ruleSet map[string][]rules.MatchingRule) *Static {
	if ruleSet == nil {
		ruleSet = make(map[string][]rules.MatchingRule)
	}
	return &Static{ruleSet: ruleSet}
}

// RulesFor returns the configured rules for a job, nil when absent.
func (s *Static) RulesFor(_ context.Context, jobID string) ([]rules.MatchingRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ruleSet[jobID], nil
}

// Set replaces the rule set for a job.
func (s *Static) Set(jobID string, ruleSet []rules.MatchingRule) {
	s.mu.Lock()
	s.ruleSet[jobID] = ruleSet
	s.mu.Unlock()
}
