// Package diarization calls speaker diarization backends.
//
// Providers return the backend's native JSON untouched together with the
// name of the normalize adapter that reads it, so every schema decision
// stays in the normalize package.
//
//	reg := diarization.NewRegistry(pyannote.New(cfg))
//	p, err := reg.Get("pyannote")
//	resp, err := p.Diarize(ctx, diarization.Request{AudioPath: "meeting.wav"})
//	payload := engine.Payload{Format: resp.Format, Data: resp.Payload}
package diarization
