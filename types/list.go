package types

import "time"

// DistributionRule assigns a share of a list's new contacts to an agent.
//
// Percentages are relative weights: rules of a list need not sum to 100, the
// distribution strategy normalizes against whatever total is present.
type DistributionRule struct {
	AgentID    string `json:"agentId"`
	Percentage int    `json:"percentage"`
}

// List is a named bucket of contacts with its own distribution configuration.
type List struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Description       string             `json:"description,omitempty"`
	Color             string             `json:"color,omitempty"`
	DistributionRules []DistributionRule `json:"distributionRules"`
	CreatedAt         time.Time          `json:"createdAt"`
}
