package types

import "time"

// Agent is a team member that owns contacts.
//
// Only active agents take part in distribution.
type Agent struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Role     string `json:"role,omitempty"`
	IsActive bool   `json:"isActive"`
	// CreatedAt fixes the agent order used by round-robin distribution.
	CreatedAt time.Time `json:"createdAt"`
}

// ActiveAgents returns the active agents, preserving input order.
func ActiveAgents(agents []Agent) []Agent {
	active := make([]Agent, 0, len(agents))
	for _, a := range agents {
		if a.IsActive {
			active = append(active, a)
		}
	}

	return active
}
