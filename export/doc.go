// Package export renders a speaker-turn sequence as plain text, CSV, JSON,
// SRT or WebVTT.
//
// Every format is produced from the same slice and emits one record per
// turn in slice order, so artifacts of one run always agree with each
// other. Subtitle formats additionally need non-overlapping cues; how
// overlapping turns are handled is chosen by SubtitlePolicy.
package export
