// Package storage persists rendered transcript artifacts.
//
// Backends register a factory under a provider name and are selected by
// Config.Provider:
//
//   - storage/local: a directory on disk
//   - storage/s3: Amazon S3 or any S3-compatible service
//
// Import the backend package for its side effect before calling New:
//
//	import _ "github.com/kbukum/diarkit/storage/local"
//
//	store, err := storage.New(ctx, cfg, log)
//	keys, err := storage.SaveArtifacts(ctx, store, cfg.Prefix, runID, artifacts)
//
// Artifacts of one run share a directory: <prefix>/<run id>/transcript.<ext>.
package storage
