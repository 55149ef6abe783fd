package types

// DistributionStrategy picks the agent that should own a new contact.
//
// The service calls PickAgent when a contact is created without an explicit
// owner: from forms, CSV imports and the webhook.
//
// Strategy implementations should:
//   - Be deterministic (same input → same output)
//   - Be stateless and rederive everything from the inputs
//   - Never fail: degenerate inputs map to a defined result
//   - Be safe for concurrent use
type DistributionStrategy interface {
	// PickAgent selects an agent for the contact.
	//
	// Parameters:
	//   - contact: Candidate contact, not yet assigned
	//   - activeAgents: Agents eligible for assignment, in stable order
	//   - existing: Current contact population (only contacts of list are counted)
	//   - list: Target list with its distribution rules
	//
	// Returns:
	//   - string: Selected agent ID
	//   - bool: false when no agent is available; the contact stays unassigned
	PickAgent(contact Contact, activeAgents []Agent, existing []Contact, list List) (string, bool)
}
