// Package policy implements the parametric decision core: a shared-feature
// policy/value network over gonum matrices, generalized advantage
// estimation, and the clipped-objective gradient update that fits the
// policy to collected trajectories.
//
// The numeric loops are synchronous and allocation-light; callers own all
// concurrency control (see the agent package).
package policy
