// Package normalize turns backend-specific diarization and ASR payloads into
// the canonical, start-ordered sequences consumed by the aligner.
//
// Decoding is done by an Adapter per backend schema (pyannote, RTTM,
// Whisper, WhisperX, verbose_json, AssemblyAI, canonical). Adapters are
// thin: they copy fields into Raw records without judging them. The
// Normalizer then validates timestamps, drops degenerate diarization turns
// and sorts, so alignment never depends on which backend produced the data.
package normalize
