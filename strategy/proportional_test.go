package strategy

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/leadflow/types"
)

func agents(ids ...string) []types.Agent {
	out := make([]types.Agent, len(ids))
	for i, id := range ids {
		out[i] = types.Agent{ID: id, Name: "Agent " + id, IsActive: true}
	}

	return out
}

func listWithRules(id string, rules ...types.DistributionRule) types.List {
	return types.List{ID: id, Name: "List " + id, DistributionRules: rules}
}

// place runs n sequential placements, feeding each result back as an existing contact.
func place(t *testing.T, s types.DistributionStrategy, active []types.Agent, list types.List, existing []types.Contact, n int) ([]string, []types.Contact) {
	t.Helper()

	picks := make([]string, 0, n)
	for i := range n {
		contact := types.Contact{ID: fmt.Sprintf("c-%d", i), ListID: list.ID}
		id, ok := s.PickAgent(contact, active, existing, list)
		require.True(t, ok)

		contact.AssignedAgentID = id
		existing = append(existing, contact)
		picks = append(picks, id)
	}

	return picks, existing
}

func tally(picks []string) map[string]int {
	counts := make(map[string]int)
	for _, p := range picks {
		counts[p]++
	}

	return counts
}

func TestProportional_RulesProportionality(t *testing.T) {
	t.Run("70/30 over 100 placements", func(t *testing.T) {
		s := NewProportional()
		list := listWithRules("L", types.DistributionRule{AgentID: "A", Percentage: 70}, types.DistributionRule{AgentID: "B", Percentage: 30})

		picks, _ := place(t, s, agents("A", "B"), list, nil, 100)

		counts := tally(picks)
		require.Equal(t, 70, counts["A"])
		require.Equal(t, 30, counts["B"])
		require.Equal(t, []string{"A", "B", "A", "A", "A", "A", "B", "A", "A", "B", "A", "A"}, picks[:12])
	})

	t.Run("50/30/20 over 100 placements", func(t *testing.T) {
		s := NewProportional()
		list := listWithRules("L",
			types.DistributionRule{AgentID: "A", Percentage: 50},
			types.DistributionRule{AgentID: "B", Percentage: 30},
			types.DistributionRule{AgentID: "C", Percentage: 20},
		)

		picks, _ := place(t, s, agents("A", "B", "C"), list, nil, 100)

		counts := tally(picks)
		require.Equal(t, 50, counts["A"])
		require.Equal(t, 30, counts["B"])
		require.Equal(t, 20, counts["C"])
		require.Equal(t, []string{"A", "B", "C", "A", "A", "A", "B", "A", "B", "C"}, picks[:10])
	})

	t.Run("percentages not summing to 100 are normalized", func(t *testing.T) {
		s := NewProportional()
		list := listWithRules("L", types.DistributionRule{AgentID: "A", Percentage: 60}, types.DistributionRule{AgentID: "B", Percentage: 60})

		picks, _ := place(t, s, agents("A", "B"), list, nil, 100)

		counts := tally(picks)
		require.Equal(t, 50, counts["A"])
		require.Equal(t, 50, counts["B"])
	})

	t.Run("equal rules alternate starting with the first rule", func(t *testing.T) {
		s := NewProportional()
		list := listWithRules("L", types.DistributionRule{AgentID: "A", Percentage: 1}, types.DistributionRule{AgentID: "B", Percentage: 1})

		picks, _ := place(t, s, agents("A", "B"), list, nil, 6)

		require.Equal(t, []string{"A", "B", "A", "B", "A", "B"}, picks)
	})
}

// Floor rounding keeps the expected share of a 0% agent at 0, which is clamped to 1,
// so a 0% rule listed first takes the very first contact and nothing afterwards.
func TestProportional_FloorRoundingProperty(t *testing.T) {
	s := NewProportional()
	list := listWithRules("L", types.DistributionRule{AgentID: "A", Percentage: 0}, types.DistributionRule{AgentID: "B", Percentage: 50})

	picks, _ := place(t, s, agents("A", "B"), list, nil, 100)

	require.Equal(t, "A", picks[0])
	counts := tally(picks)
	require.Equal(t, 1, counts["A"])
	require.Equal(t, 99, counts["B"])
}

func TestProportional_CountsOnlyTargetList(t *testing.T) {
	s := NewProportional()
	list := listWithRules("L", types.DistributionRule{AgentID: "A", Percentage: 50}, types.DistributionRule{AgentID: "B", Percentage: 50})

	// Plenty of A contacts in another list must not push A down in L.
	other := make([]types.Contact, 0, 10)
	for i := range 10 {
		other = append(other, types.Contact{ID: fmt.Sprintf("o-%d", i), ListID: "other", AssignedAgentID: "A"})
	}

	id, ok := s.PickAgent(types.Contact{ListID: "L"}, agents("A", "B"), other, list)

	require.True(t, ok)
	require.Equal(t, "A", id)
}

func TestProportional_ResumesFromExistingContacts(t *testing.T) {
	s := NewProportional()
	list := listWithRules("L", types.DistributionRule{AgentID: "A", Percentage: 50}, types.DistributionRule{AgentID: "B", Percentage: 50})
	existing := []types.Contact{
		{ID: "1", ListID: "L", AssignedAgentID: "A"},
		{ID: "2", ListID: "L", AssignedAgentID: "A"},
		{ID: "3", ListID: "L", AssignedAgentID: "A"},
	}

	id, ok := s.PickAgent(types.Contact{ListID: "L"}, agents("A", "B"), existing, list)

	require.True(t, ok)
	require.Equal(t, "B", id)
}

func TestProportional_DegenerateCases(t *testing.T) {
	s := NewProportional()

	t.Run("no active agents", func(t *testing.T) {
		list := listWithRules("L", types.DistributionRule{AgentID: "A", Percentage: 100})

		id, ok := s.PickAgent(types.Contact{}, nil, nil, list)
		require.False(t, ok)
		require.Empty(t, id)

		id, ok = s.PickAgent(types.Contact{}, []types.Agent{}, nil, list)
		require.False(t, ok)
		require.Empty(t, id)
	})

	t.Run("inactive entries are ignored", func(t *testing.T) {
		list := listWithRules("L", types.DistributionRule{AgentID: "A", Percentage: 100})
		candidates := []types.Agent{{ID: "A", IsActive: false}}

		_, ok := s.PickAgent(types.Contact{}, candidates, nil, list)
		require.False(t, ok)
	})

	t.Run("rules summing to zero return first active agent", func(t *testing.T) {
		list := listWithRules("L", types.DistributionRule{AgentID: "B", Percentage: 0}, types.DistributionRule{AgentID: "C", Percentage: 0})
		existing := []types.Contact{{ID: "1", ListID: "L", AssignedAgentID: "A"}}

		for range 3 {
			id, ok := s.PickAgent(types.Contact{}, agents("A", "B", "C"), existing, list)
			require.True(t, ok)
			require.Equal(t, "A", id)
		}
	})
}

func TestProportional_RoundRobinFallback(t *testing.T) {
	s := NewProportional()

	t.Run("no rules spreads evenly in agent order", func(t *testing.T) {
		list := listWithRules("L")

		picks, _ := place(t, s, agents("A", "B", "C"), list, nil, 7)

		require.Equal(t, []string{"A", "B", "C", "A", "B", "C", "A"}, picks)
	})

	t.Run("rule for inactive agent falls back to the only active agent", func(t *testing.T) {
		list := listWithRules("L", types.DistributionRule{AgentID: "A", Percentage: 100})
		candidates := []types.Agent{{ID: "B", IsActive: true}}

		picks, _ := place(t, s, candidates, list, nil, 5)

		require.Equal(t, []string{"B", "B", "B", "B", "B"}, picks)
	})

	t.Run("rule for deleted agent is ignored", func(t *testing.T) {
		list := listWithRules("L", types.DistributionRule{AgentID: "gone", Percentage: 80}, types.DistributionRule{AgentID: "B", Percentage: 20})

		picks, _ := place(t, s, agents("B", "C"), list, nil, 4)

		require.Equal(t, []string{"B", "B", "B", "B"}, picks)
	})
}

func TestProportional_ConcurrentUse(t *testing.T) {
	s := NewProportional()
	list := listWithRules("L", types.DistributionRule{AgentID: "A", Percentage: 70}, types.DistributionRule{AgentID: "B", Percentage: 30})
	existing := []types.Contact{{ID: "1", ListID: "L", AssignedAgentID: "A"}}
	active := agents("A", "B")

	var wg sync.WaitGroup
	results := make([]string, 16)
	for i := range results {
		wg.Go(func() {
			id, _ := s.PickAgent(types.Contact{}, active, existing, list)
			results[i] = id
		})
	}
	wg.Wait()

	// Identical inputs give identical answers, stale counts included.
	for _, id := range results {
		require.Equal(t, "B", id)
	}
}

type pathRecorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *pathRecorder) RecordAgentPick(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func TestProportional_RecordsPaths(t *testing.T) {
	rec := &pathRecorder{}
	s := NewProportional(WithProportionalMetrics(rec), WithProportionalLogger(nil))

	_, _ = s.PickAgent(types.Contact{}, nil, nil, listWithRules("L"))
	_, _ = s.PickAgent(types.Contact{}, agents("A"), nil, listWithRules("L"))
	_, _ = s.PickAgent(types.Contact{}, agents("A"), nil, listWithRules("L", types.DistributionRule{AgentID: "A"}))
	_, _ = s.PickAgent(types.Contact{}, agents("A"), nil, listWithRules("L", types.DistributionRule{AgentID: "A", Percentage: 10}))

	require.Equal(t, []string{pathNone, pathRoundRobin, pathZeroTotal, pathRules}, rec.paths)
}
