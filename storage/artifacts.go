package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/kbukum/diarkit/export"
)

// ArtifactKey returns the object key of a run's artifact.
func ArtifactKey(prefix, runID string, f export.Format) string {
	return path.Join(strings.Trim(prefix, "/"), runID, fmt.Sprintf("transcript.%s", f))
}

// SaveArtifacts uploads every artifact of one run and returns the keys in
// artifact order. It stops at the first failed upload.
func SaveArtifacts(ctx context.Context, store Storage, prefix, runID string, artifacts []export.Artifact) ([]string, error) {
	if runID == "" {
		return nil, fmt.Errorf("storage: run id is required")
	}
	keys := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		key := ArtifactKey(prefix, runID, a.Format)
		if err := store.Upload(ctx, key, bytes.NewReader(a.Data)); err != nil {
			return keys, fmt.Errorf("storage: save %s: %w", key, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// RunArtifacts lists the artifacts stored for runID.
func RunArtifacts(ctx context.Context, store Storage, prefix, runID string) ([]FileInfo, error) {
	return store.List(ctx, path.Join(strings.Trim(prefix, "/"), runID)+"/")
}
