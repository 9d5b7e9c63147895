// Package heuristics computes suspicious indicators, tracking parameters and
// a risk score for a traced redirect chain.
//
// Rules are data: each Rule pairs a predicate over the chain with a fixed
// indicator message and weight. The score is the sum of the weights of the
// raised indicators, so identical indicator sets always produce identical
// scores and risk levels no matter which URLs produced them.
package heuristics
