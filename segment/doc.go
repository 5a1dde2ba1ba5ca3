// Package segment defines the value types that flow through the alignment
// pipeline: diarization turns and transcript units on the way in, attributed
// units and speaker turns on the way out.
//
// All values are plain structs owned by the run that produced them. Slices
// returned by pipeline stages are never shared with their inputs.
package segment
