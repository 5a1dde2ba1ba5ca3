// Package batch runs many independent alignment jobs from a YAML manifest.
//
//	jobs:
//	  - name: standup
//	    diarization: {path: standup.rttm, format: rttm}
//	    transcript: {path: standup.json, format: whisper}
//	    mapping: {spk_0: Alice}
//	    formats: [txt, srt]
//	    output: out/standup
//
// Jobs run concurrently up to Config.Concurrency and share no state. Each
// job's artifacts are written to its own output directory.
package batch
