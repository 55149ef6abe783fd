package strategy

import (
	"github.com/arloliu/leadflow/types"
)

// RoundRobin spreads contacts evenly across active agents.
type RoundRobin struct{}

var _ types.DistributionStrategy = (*RoundRobin)(nil)

// NewRoundRobin creates a new round-robin strategy.
//
// The strategy ignores distribution rules and picks the agent at index
// count(contacts in list) mod len(active agents). Agent order is the order of the
// slice passed in, so callers must keep it stable between calls.
//
// Returns:
//   - *RoundRobin: Initialized round-robin strategy
//
// Example:
//
//	svc, err := leadflow.NewService(&cfg, js, strategy.NewRoundRobin())
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

// PickAgent returns the next agent in rotation for the list.
//
// Parameters:
//   - contact: Contact being placed (unused)
//   - activeAgents: Candidate agents; inactive entries are skipped
//   - existing: Existing contacts, only those in list are counted
//   - list: Target list
//
// Returns:
//   - string: Selected agent ID
//   - bool: false when there is no active agent
func (rr *RoundRobin) PickAgent(_ types.Contact, activeAgents []types.Agent, existing []types.Contact, list types.List) (string, bool) {
	active := types.ActiveAgents(activeAgents)
	if len(active) == 0 {
		return "", false
	}

	return pickRoundRobin(active, countInList(existing, list.ID)), true
}

func pickRoundRobin(active []types.Agent, inList int) string {
	return active[inList%len(active)].ID
}

func countInList(contacts []types.Contact, listID string) int {
	n := 0
	for i := range contacts {
		if contacts[i].ListID == listID {
			n++
		}
	}

	return n
}
