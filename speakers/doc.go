// Package speakers maps raw diarization ids to display names.
//
// A Mapping is presentation data only. Apply writes the display name into
// SpeakerTurn.Speaker and never touches SpeakerTurn.SpeakerID, so a mapping
// can be resubmitted or replaced any number of times with the same result.
package speakers
