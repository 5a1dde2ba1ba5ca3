package s3

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kbukum/diarkit/logger"
	"github.com/kbukum/diarkit/storage"
)

type recorded struct {
	method string
	path   string
}

func newFakeS3(t *testing.T) (*httptest.Server, func() []recorded) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []recorded
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		reqs = append(reqs, recorded{r.Method, r.URL.Path})
		mu.Unlock()
		switch {
		case r.Method == http.MethodHead && strings.HasSuffix(r.URL.Path, "/missing.txt"):
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodHead:
			w.Header().Set("Content-Length", "0")
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPut:
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotImplemented)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), reqs...)
	}
}

func newTestStorage(t *testing.T, endpoint string) *Storage {
	t.Helper()
	s, err := NewStorage(context.Background(), storage.Config{
		Bucket:    "artifacts",
		Region:    "us-east-1",
		Endpoint:  endpoint,
		AccessKey: "test",
		SecretKey: "test",
	}, logger.Nop())
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	return s
}

func TestUploadUsesPathStyleKey(t *testing.T) {
	srv, requests := newFakeS3(t)
	s := newTestStorage(t, srv.URL)

	if err := s.Upload(context.Background(), "runs/r1/transcript.txt", strings.NewReader("A: hi")); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	got := requests()
	if len(got) != 1 {
		t.Fatalf("expected 1 request, got %d", len(got))
	}
	if got[0].method != http.MethodPut || got[0].path != "/artifacts/runs/r1/transcript.txt" {
		t.Errorf("request = %+v", got[0])
	}
}

func TestExists(t *testing.T) {
	srv, _ := newFakeS3(t)
	s := newTestStorage(t, srv.URL)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "runs/r1/transcript.txt")
	if err != nil || !ok {
		t.Errorf("Exists(present) = %v, %v", ok, err)
	}
	ok, err = s.Exists(ctx, "runs/r1/missing.txt")
	if err != nil || ok {
		t.Errorf("Exists(missing) = %v, %v", ok, err)
	}
}

func TestFactoryRegistered(t *testing.T) {
	found := false
	for _, p := range storage.Providers() {
		if p == storage.ProviderS3 {
			found = true
		}
	}
	if !found {
		t.Fatal("s3 provider not registered")
	}
}
