// Package behavior implements the episodic character environment: action
// sets, outcome resolution, mutable per-episode state, and the state
// encoder that turns a profile plus episode state into the feature vector
// the policy consumes.
//
// Environments are single-owner state machines (fresh → active →
// terminated). All randomness flows through one seeded source so an
// identical seed and action sequence reproduces an identical episode.
package behavior
