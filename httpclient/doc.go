// Package httpclient is the HTTP transport shared by the diarization and
// transcription sidecar clients.
//
// Requests are retried with exponential backoff (cenkalti/backoff) while
// the failure is retryable: transport errors, timeouts, 429 and 5xx. Other
// 4xx responses fail immediately. Failures surface as *errors.AppError so
// the HTTP API and CLI report them uniformly.
//
// Each Client carries a circuit breaker. After BreakerFailures consecutive
// calls end in a retryable failure, calls fail fast with
// SERVICE_UNAVAILABLE until BreakerCooldown has passed; then one probe is
// let through. Health bypasses the breaker.
//
//	c, err := httpclient.New(httpclient.Config{BaseURL: "http://localhost:8388"})
//	body, err := c.PostMultipart(ctx, "/diarize", &httpclient.MultipartBody{
//	    Files: []httpclient.FileField{{FieldName: "audio", FileName: "a.wav", Data: wav}},
//	})
package httpclient
