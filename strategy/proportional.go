package strategy

import (
	"github.com/arloliu/leadflow/internal/logging"
	"github.com/arloliu/leadflow/internal/metrics"
	"github.com/arloliu/leadflow/types"
)

// Distribution paths reported to metrics and debug logs.
const (
	pathNone       = "none"
	pathRoundRobin = "round_robin"
	pathZeroTotal  = "zero_total"
	pathRules      = "rules"
)

// Proportional assigns contacts according to a list's percentage rules.
type Proportional struct {
	logger  types.Logger
	metrics types.DistributionMetrics
}

var _ types.DistributionStrategy = (*Proportional)(nil)

// ProportionalOption configures a Proportional strategy.
type ProportionalOption func(*Proportional)

// NewProportional creates a new proportional strategy.
//
// Parameters:
//   - opts: Optional configuration (WithProportionalLogger, WithProportionalMetrics)
//
// Returns:
//   - *Proportional: Initialized proportional strategy
//
// Example:
//
//	strategy := strategy.NewProportional(
//	    strategy.WithProportionalLogger(logger),
//	)
//	svc, err := leadflow.NewService(&cfg, js, strategy)
func NewProportional(opts ...ProportionalOption) *Proportional {
	p := &Proportional{
		logger:  logging.NewNop(),
		metrics: metrics.NewNop(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// WithProportionalLogger sets the logger used for debug diagnostics.
func WithProportionalLogger(logger types.Logger) ProportionalOption {
	return func(p *Proportional) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithProportionalMetrics sets the collector that counts distribution paths.
func WithProportionalMetrics(m types.DistributionMetrics) ProportionalOption {
	return func(p *Proportional) {
		if m != nil {
			p.metrics = m
		}
	}
}

// PickAgent selects the agent that should own a new contact in list.
//
// The algorithm:
//  1. No active agent: no assignment
//  2. Keep rules whose agent is active, in their original order
//  3. No applicable rule: round robin over active agents
//  4. Applicable rules summing to 0%: first active agent
//  5. Otherwise the agent furthest under its expected share, first rule on ties
//
// Parameters:
//   - contact: Contact being placed (unused, the decision depends on the list only)
//   - activeAgents: Candidate agents; inactive entries are skipped
//   - existing: Existing contacts, only those in list are counted
//   - list: Target list with its distribution rules
//
// Returns:
//   - string: Selected agent ID
//   - bool: false when no agent can be assigned
func (p *Proportional) PickAgent(_ types.Contact, activeAgents []types.Agent, existing []types.Contact, list types.List) (string, bool) {
	active := types.ActiveAgents(activeAgents)
	if len(active) == 0 {
		p.record(list.ID, pathNone, "")
		return "", false
	}

	activeIDs := make(map[string]struct{}, len(active))
	for _, a := range active {
		activeIDs[a.ID] = struct{}{}
	}

	rules := make([]types.DistributionRule, 0, len(list.DistributionRules))
	total := 0
	for _, r := range list.DistributionRules {
		if _, ok := activeIDs[r.AgentID]; !ok {
			continue
		}
		rules = append(rules, r)
		total += r.Percentage
	}

	inList := 0
	perAgent := make(map[string]int, len(rules))
	for i := range existing {
		if existing[i].ListID != list.ID {
			continue
		}
		inList++
		if existing[i].AssignedAgentID != "" {
			perAgent[existing[i].AssignedAgentID]++
		}
	}

	if len(rules) == 0 {
		id := pickRoundRobin(active, inList)
		p.record(list.ID, pathRoundRobin, id)

		return id, true
	}

	if total <= 0 {
		p.record(list.ID, pathZeroTotal, active[0].ID)
		return active[0].ID, true
	}

	// Ratios actual/expected are compared by cross-multiplication to stay in integers.
	best := -1
	var bestActual, bestExpected int
	for i, r := range rules {
		actual := perAgent[r.AgentID]
		expected := max((inList+1)*r.Percentage/total, 1)

		if best < 0 || actual*bestExpected < bestActual*expected {
			best = i
			bestActual = actual
			bestExpected = expected
		}
	}

	id := rules[best].AgentID
	p.record(list.ID, pathRules, id)

	return id, true
}

func (p *Proportional) record(listID, path, agentID string) {
	p.metrics.RecordAgentPick(path)
	p.logger.Debug("agent picked", "list_id", listID, "path", path, "agent_id", agentID)
}
