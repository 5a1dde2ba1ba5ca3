// Package align attributes every transcript unit to one diarization speaker.
//
// The rule is maximum temporal overlap. Ties go to the turn with the
// earliest start. A unit that intersects no turn falls back to the turn
// nearest its midpoint. Without any turns every unit is segment.Unknown.
//
// Assign implements the rule with a sweep over start-sorted inputs.
// AssignNaive is the quadratic reference scan; the two must agree on every
// input, which the package tests check exhaustively and on random data.
package align
