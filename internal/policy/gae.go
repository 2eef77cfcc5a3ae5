package policy

import "fmt"

// ReturnsAdvantages computes per-step discounted returns and generalized
// advantage estimates from an episode's rewards and value estimates,
// walking backward from the final step. The bootstrap value stands in for
// the state past the horizon; within the episode the next step's own value
// estimate is used, and a done flag cuts the recursion across episode
// boundaries.
//
// Pure function: no internal state, identical inputs give identical outputs.
func ReturnsAdvantages(rewards, values []float64, bootstrap float64, dones []bool, gamma, lambda float64) (returns, advantages []float64, err error) {
	n := len(rewards)
	if len(values) != n || len(dones) != n {
		return nil, nil, fmt.Errorf("length mismatch: %d rewards, %d values, %d dones", n, len(values), len(dones))
	}

	returns = make([]float64, n)
	advantages = make([]float64, n)

	gae := 0.0
	for t := n - 1; t >= 0; t-- {
		nextValue := bootstrap
		if t < n-1 {
			nextValue = values[t+1]
		}
		nextNonTerminal := 1.0
		if dones[t] {
			nextNonTerminal = 0.0
		}

		delta := rewards[t] + gamma*nextValue*nextNonTerminal - values[t]
		gae = delta + gamma*lambda*nextNonTerminal*gae

		advantages[t] = gae
		returns[t] = gae + values[t]
	}

	return returns, advantages, nil
}
