// Package strategy provides built-in agent distribution strategies.
//
// A distribution strategy decides which agent receives a newly created contact.
// The package includes two built-in strategies:
//
//   - Proportional: Percentage-based distribution driven by a list's rules, with a
//     round-robin fallback when no rule applies (recommended)
//   - RoundRobin: Even spread across active agents, ignoring rules
//
// # Proportional Distribution
//
// Every call recomputes the split from the contacts already in the list, so the
// strategy keeps no state and survives restarts. For each applicable rule it compares
// the agent's current count with its expected share
//
//	expected = floor((inList + 1) * percentage / totalPercentage)
//
// and picks the agent with the lowest actual/max(expected, 1) ratio. Ties go to the
// earliest rule.
//
// Floor rounding means low-percentage agents lag early and catch up over many
// placements. A 0% rule still wins the very first placement of a list when it is
// listed first. Both behaviors are kept as-is.
//
// Two concurrent calls against the same list may see the same stale contact count and
// pick the same agent. The next call corrects the skew.
//
// Custom strategies can be implemented by satisfying the types.DistributionStrategy interface.
package strategy
