// Package engine runs the alignment pipeline end to end.
//
// A run decodes backend payloads with the normalize adapters, then passes
// the records through Normalizer → align.Assign → aggregate.Aggregate →
// speakers.Apply. Rendering is a separate step (Export) so a stored Result
// can be re-mapped and re-exported without re-running alignment.
//
//	eng, err := engine.New(cfg.Engine, engine.WithLogger(log))
//	res, err := eng.Run(ctx, engine.Input{
//	    Diarization: &engine.Payload{Format: "pyannote", Data: diar},
//	    Transcript:  &engine.Payload{Format: "whisperx", Data: asr},
//	})
//	artifacts, err := eng.Export(ctx, res, nil)
//
// An Engine is immutable after New and safe for concurrent runs; every run
// owns its slices.
package engine
