// Package transcription calls ASR backends. Like diarization, providers
// hand back the native payload and the normalize adapter that reads it.
package transcription
