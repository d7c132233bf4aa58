// Package registry holds the actions.json routing rules. It is the only
// state shared between requests.
package registry

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/barkprotocol/blinks/types"
)

// ErrRuleNotFound is returned by Update and Delete for an unknown id
var ErrRuleNotFound = errors.New("Rule not found")

// ErrInvalidRule is returned when a rule lacks its pathPattern or apiPath
var ErrInvalidRule = errors.New("pathPattern and apiPath are required")

// Registry is an ordered, mutex-guarded list of rules. Every method is safe
// for concurrent use; a failed call leaves the list unchanged.
type Registry struct {
	mu    sync.RWMutex
	rules []types.Rule
}

// New seeds a registry with rules. Rules without an id, or whose id is
// already taken by an earlier rule, get a fresh one.
func New(rules []types.Rule) *Registry {
	r := &Registry{rules: make([]types.Rule, 0, len(rules))}
	seen := make(map[string]struct{}, len(rules))
	for _, rule := range rules {
		if _, dup := seen[rule.ID]; rule.ID == "" || dup {
			rule.ID = uuid.New().String()
		}
		seen[rule.ID] = struct{}{}
		r.rules = append(r.rules, rule)
	}
	return r
}

// List returns a copy of the rules in insertion order
func (r *Registry) List() []types.Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Add appends rule under a newly generated id and returns the stored rule
func (r *Registry) Add(rule types.Rule) (types.Rule, error) {
	if err := check(rule); err != nil {
		return types.Rule{}, err
	}
	rule.ID = uuid.New().String()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, rule)
	return rule, nil
}

// Update replaces the rule with rule.ID in place
func (r *Registry) Update(rule types.Rule) (types.Rule, error) {
	if rule.ID == "" {
		return types.Rule{}, ErrRuleNotFound
	}
	if err := check(rule); err != nil {
		return types.Rule{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(rule.ID)
	if i < 0 {
		return types.Rule{}, ErrRuleNotFound
	}
	r.rules[i] = rule
	return rule, nil
}

// Delete removes the rule with id, keeping the order of the others
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(id)
	if i < 0 {
		return ErrRuleNotFound
	}
	r.rules = append(r.rules[:i], r.rules[i+1:]...)
	return nil
}

// index must be called with mu held
func (r *Registry) index(id string) int {
	for i, rule := range r.rules {
		if rule.ID == id {
			return i
		}
	}
	return -1
}

func check(rule types.Rule) error {
	if strings.TrimSpace(rule.PathPattern) == "" || strings.TrimSpace(rule.APIPath) == "" {
		return ErrInvalidRule
	}
	return nil
}
