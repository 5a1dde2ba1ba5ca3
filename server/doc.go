// Package server is the diarkit HTTP service: a Gin engine served over
// HTTP/1.1 and h2c, with the /v1 alignment API mounted by [API].
//
// # Middleware
//
// Built-in middleware (server/middleware), in installation order:
//
//   - Recovery: panic recovery with structured logging
//   - RequestID: X-Request-Id generation and propagation into the context
//   - RequestLogger: request logging and request metrics
//   - CORS: cross-origin resource sharing
//   - BodySizeLimit: request body size limits
//
// # Endpoints
//
//   - POST /v1/align: align backend outputs, export and persist the run
//   - POST /v1/speakers: list the raw speaker ids of a diarization
//   - GET /v1/transcripts, GET /v1/transcripts/:id: stored runs
//   - GET /v1/transcripts/:id/speakers: speakers and the current mapping
//   - PUT /v1/transcripts/:id/mapping: replace the speaker mapping
//   - GET /v1/transcripts/:id/export/:format: render a stored run
//   - GET /health, GET /version
package server
