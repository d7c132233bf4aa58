package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barkprotocol/blinks/types"
)

func TestNewAssignsMissingIDs(t *testing.T) {
	r := New([]types.Rule{
		{ID: "fixed", PathPattern: "/donate", APIPath: "/actions/donate-sol"},
		{PathPattern: "/memo", APIPath: "/actions/memo"},
	})

	rules := r.List()
	require.Len(t, rules, 2)
	assert.Equal(t, "fixed", rules[0].ID)
	_, err := uuid.Parse(rules[1].ID)
	assert.NoError(t, err)
}

func TestNewReassignsDuplicateIDs(t *testing.T) {
	r := New([]types.Rule{
		{ID: "home", PathPattern: "/a", APIPath: "/actions/donate-sol"},
		{ID: "home", PathPattern: "/b", APIPath: "/actions/memo"},
	})

	rules := r.List()
	require.Len(t, rules, 2)
	assert.Equal(t, "home", rules[0].ID)
	assert.NotEqual(t, "home", rules[1].ID)

	require.NoError(t, r.Delete("home"))
	rules = r.List()
	require.Len(t, rules, 1)
	assert.Equal(t, "/b", rules[0].PathPattern)
	assert.ErrorIs(t, r.Delete("home"), ErrRuleNotFound)
}

func TestAddUpdateDelete(t *testing.T) {
	r := New(nil)

	added, err := r.Add(types.Rule{ID: "ignored", PathPattern: "/donate/**", APIPath: "/actions/donate-sol"})
	require.NoError(t, err)
	assert.NotEqual(t, "ignored", added.ID)

	added.APIPath = "/actions/donate-usdc"
	updated, err := r.Update(added)
	require.NoError(t, err)
	assert.Equal(t, "/actions/donate-usdc", updated.APIPath)
	assert.Equal(t, []types.Rule{updated}, r.List())

	require.NoError(t, r.Delete(added.ID))
	assert.Empty(t, r.List())
}

func TestUpdateUnknownID(t *testing.T) {
	r := New([]types.Rule{{PathPattern: "/a", APIPath: "/actions/a"}})
	before := r.List()

	_, err := r.Update(types.Rule{ID: "missing", PathPattern: "/b", APIPath: "/actions/b"})
	assert.ErrorIs(t, err, ErrRuleNotFound)
	assert.Equal(t, "Rule not found", err.Error())
	assert.Equal(t, before, r.List())
}

func TestDeleteUnknownID(t *testing.T) {
	r := New(nil)
	assert.ErrorIs(t, r.Delete("missing"), ErrRuleNotFound)
}

func TestDeleteKeepsOrder(t *testing.T) {
	r := New([]types.Rule{
		{ID: "1", PathPattern: "/1", APIPath: "/actions/1"},
		{ID: "2", PathPattern: "/2", APIPath: "/actions/2"},
		{ID: "3", PathPattern: "/3", APIPath: "/actions/3"},
	})

	require.NoError(t, r.Delete("2"))
	rules := r.List()
	require.Len(t, rules, 2)
	assert.Equal(t, "1", rules[0].ID)
	assert.Equal(t, "3", rules[1].ID)
}

func TestAddRejectsIncompleteRule(t *testing.T) {
	r := New(nil)
	_, err := r.Add(types.Rule{PathPattern: "/only-path"})
	assert.ErrorIs(t, err, ErrInvalidRule)
	assert.Empty(t, r.List())
}

func TestListReturnsCopy(t *testing.T) {
	r := New([]types.Rule{{ID: "1", PathPattern: "/1", APIPath: "/actions/1"}})
	rules := r.List()
	rules[0].APIPath = "/mutated"
	assert.Equal(t, "/actions/1", r.List()[0].APIPath)
}

func TestConcurrentWriters(t *testing.T) {
	r := New(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rule, err := r.Add(types.Rule{
				PathPattern: fmt.Sprintf("/p/%d", i),
				APIPath:     "/actions/donate-sol",
			})
			if err != nil {
				return
			}
			if i%2 == 0 {
				_ = r.Delete(rule.ID)
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, r.List(), 25)
}
