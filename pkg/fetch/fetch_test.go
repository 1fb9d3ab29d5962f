package fetch

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/florakb/florakb/pkg/errors"
)

// makeArchive builds an in-memory zip with the given file contents.
func makeArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func checklistArchive(t *testing.T) []byte {
	return makeArchive(t, map[string]string{
		NamesFile:         "plant_name_id|taxon_name\n1|Poaceae\n",
		DistributionsFile: "plant_locality_id|plant_name_id\n10|1\n",
	})
}

func TestEnsureData(t *testing.T) {
	archive := checklistArchive(t)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(archive)
	}))
	defer srv.Close()

	f := New(t.TempDir(), WithURL(srv.URL))
	dir, err := f.EnsureData(context.Background(), false)
	if err != nil {
		t.Fatalf("EnsureData error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, NamesFile)); err != nil {
		t.Errorf("names file missing after extract: %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("server hit %d times, want 1", hits.Load())
	}

	// Second call reuses the cached archive.
	if _, err := f.EnsureData(context.Background(), false); err != nil {
		t.Fatalf("second EnsureData error: %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("cached archive should not be re-downloaded, hits = %d", hits.Load())
	}

	// Force re-downloads.
	if _, err := f.EnsureData(context.Background(), true); err != nil {
		t.Fatalf("forced EnsureData error: %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("forced download should hit the server, hits = %d", hits.Load())
	}
}

func TestDownloadRetriesOn5xx(t *testing.T) {
	archive := checklistArchive(t)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write(archive)
	}))
	defer srv.Close()

	f := New(t.TempDir(), WithURL(srv.URL))
	if _, err := f.Download(context.Background(), false); err != nil {
		t.Fatalf("Download should succeed after retry: %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("hits = %d, want 2 (one failure, one success)", hits.Load())
	}
}

func TestDownloadDoesNotRetryOn404(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(t.TempDir(), WithURL(srv.URL))
	_, err := f.Download(context.Background(), false)
	if !errors.Is(err, errors.ErrCodeNetwork) {
		t.Fatalf("err = %v, want NETWORK_ERROR", err)
	}
	if hits.Load() != 1 {
		t.Errorf("4xx must not be retried, hits = %d", hits.Load())
	}
}

func TestEnsureDataMissingFile(t *testing.T) {
	archive := makeArchive(t, map[string]string{NamesFile: "plant_name_id|taxon_name\n"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer srv.Close()

	f := New(t.TempDir(), WithURL(srv.URL))
	_, err := f.EnsureData(context.Background(), false)
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Fatalf("err = %v, want FILE_NOT_FOUND", err)
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return errors.New(errors.ErrCodeInvalidInput, "bad")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("non-retryable error should stop immediately, calls = %d", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return Retryable(errors.New(errors.ErrCodeNetwork, "flaky"))
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestCleanup(t *testing.T) {
	archive := checklistArchive(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer srv.Close()

	f := New(t.TempDir(), WithURL(srv.URL))
	if _, err := f.EnsureData(context.Background(), false); err != nil {
		t.Fatalf("EnsureData error: %v", err)
	}

	if err := f.Cleanup(true); err != nil {
		t.Fatalf("Cleanup error: %v", err)
	}
	if _, err := os.Stat(f.ExtractDir()); !os.IsNotExist(err) {
		t.Error("extract dir should be removed")
	}
	if _, err := os.Stat(f.ArchivePath()); err != nil {
		t.Error("archive should be kept with keepArchive set")
	}

	if err := f.Cleanup(false); err != nil {
		t.Fatalf("Cleanup error: %v", err)
	}
	if _, err := os.Stat(f.ArchivePath()); !os.IsNotExist(err) {
		t.Error("archive should be removed without keepArchive")
	}
}
