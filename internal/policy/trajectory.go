package policy

// Step is one transition recorded during a rollout.
type Step struct {
	Obs     []float64 `json:"obs"`
	Action  int       `json:"action"`
	LogProb float64   `json:"log_prob"`
	Value   float64   `json:"value"`
	Reward  float64   `json:"reward"`
	Done    bool      `json:"done"`
}

// Trajectory is one episode's ordered sequence of transitions. It is built
// incrementally by a collector, consumed once by the update, then discarded.
type Trajectory struct {
	Steps []Step `json:"steps"`
}

// Append adds one transition.
func (t *Trajectory) Append(step Step) {
	t.Steps = append(t.Steps, step)
}

// Len returns the number of recorded transitions.
func (t Trajectory) Len() int { return len(t.Steps) }

// Rewards returns the reward sequence.
func (t Trajectory) Rewards() []float64 {
	out := make([]float64, len(t.Steps))
	for i, s := range t.Steps {
		out[i] = s.Reward
	}
	return out
}

// Values returns the value-estimate sequence recorded at collection time.
func (t Trajectory) Values() []float64 {
	out := make([]float64, len(t.Steps))
	for i, s := range t.Steps {
		out[i] = s.Value
	}
	return out
}

// Dones returns the termination flags.
func (t Trajectory) Dones() []bool {
	out := make([]bool, len(t.Steps))
	for i, s := range t.Steps {
		out[i] = s.Done
	}
	return out
}

// TotalReward sums the rewards across the episode.
func (t Trajectory) TotalReward() float64 {
	var total float64
	for _, s := range t.Steps {
		total += s.Reward
	}
	return total
}
