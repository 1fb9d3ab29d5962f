// Package fetch downloads and unpacks the published WCVP checklist archive.
//
// The checklist is distributed as a single zip (hundreds of MB) containing
// the pipe-delimited names and distribution files. Downloads are written to a
// local data directory and skipped when the archive is already present, so
// repeated imports do not hammer the source server. Transient HTTP failures
// are retried with exponential backoff.
package fetch

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/florakb/florakb/pkg/errors"
	"github.com/florakb/florakb/pkg/observability"
)

// DefaultURL is the Kew SFTP mirror of the WCVP archive.
const DefaultURL = "https://sftp.kew.org/pub/data-repositories/WCVP/wcvp.zip"

// File names inside the archive consumed by the importer.
const (
	NamesFile         = "wcvp_names.csv"
	DistributionsFile = "wcvp_distribution.csv"
)

// Fetcher downloads and extracts the checklist archive.
type Fetcher struct {
	url     string
	dataDir string
	client  *http.Client
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithURL overrides the archive URL.
func WithURL(url string) Option {
	return func(f *Fetcher) { f.url = url }
}

// WithClient overrides the HTTP client (used by tests).
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// New creates a Fetcher writing into dataDir.
func New(dataDir string, opts ...Option) *Fetcher {
	f := &Fetcher{
		url:     DefaultURL,
		dataDir: dataDir,
		client:  &http.Client{Timeout: 30 * time.Minute},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ArchivePath returns where the downloaded zip is stored.
func (f *Fetcher) ArchivePath() string {
	return filepath.Join(f.dataDir, "wcvp.zip")
}

// ExtractDir returns where archive contents are unpacked.
func (f *Fetcher) ExtractDir() string {
	return filepath.Join(f.dataDir, "unzipped")
}

// Download fetches the archive unless it is already present. With force set
// the archive is re-downloaded unconditionally. Returns the archive path.
//
// The response body is streamed to a temporary file and renamed into place,
// so a partial download never masquerades as a complete archive.
func (f *Fetcher) Download(ctx context.Context, force bool) (string, error) {
	dest := f.ArchivePath()
	if !force {
		if _, err := os.Stat(dest); err == nil {
			return dest, nil
		}
	}
	if err := os.MkdirAll(f.dataDir, 0755); err != nil {
		return "", errors.Wrap(errors.ErrCodeStorage, err, "create data dir %s", f.dataDir)
	}

	observability.Import().OnDownloadStart(ctx, f.url)
	start := time.Now()
	err := Retry(ctx, 3, time.Second, func() error {
		return f.download(ctx, dest)
	})
	var size int64
	if fi, statErr := os.Stat(dest); statErr == nil {
		size = fi.Size()
	}
	observability.Import().OnDownloadComplete(ctx, f.url, size, time.Since(start), err)
	if err != nil {
		return "", err
	}
	return dest, nil
}

func (f *Fetcher) download(ctx context.Context, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeNetwork, err, "build request for %s", f.url)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Retryable(errors.Wrap(errors.ErrCodeNetwork, err, "fetch %s", f.url))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return Retryable(errors.New(errors.ErrCodeNetwork, "fetch %s: status %d", f.url, resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return errors.New(errors.ErrCodeNetwork, "fetch %s: status %d", f.url, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(f.dataDir, "wcvp-*.zip.partial")
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return Retryable(errors.Wrap(errors.ErrCodeNetwork, err, "download %s", f.url))
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "close temp file")
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "move archive into place")
	}
	return nil
}

// Unzip extracts the archive into ExtractDir and returns that directory.
// Entries escaping the destination directory are rejected.
func (f *Fetcher) Unzip(archivePath string) (string, error) {
	dest := f.ExtractDir()
	if err := os.MkdirAll(dest, 0755); err != nil {
		return "", errors.Wrap(errors.ErrCodeStorage, err, "create extract dir %s", dest)
	}

	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidFormat, err, "open archive %s", archivePath)
	}
	defer zr.Close()

	for _, entry := range zr.File {
		if err := extractEntry(entry, dest); err != nil {
			return "", err
		}
	}
	return dest, nil
}

func extractEntry(entry *zip.File, dest string) error {
	path := filepath.Join(dest, entry.Name)
	if !strings.HasPrefix(path, filepath.Clean(dest)+string(os.PathSeparator)) {
		return errors.New(errors.ErrCodeInvalidFormat, "archive entry %q escapes destination", entry.Name)
	}
	if entry.FileInfo().IsDir() {
		return os.MkdirAll(path, 0755)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "create dir for %s", entry.Name)
	}

	src, err := entry.Open()
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidFormat, err, "open archive entry %s", entry.Name)
	}
	defer src.Close()

	out, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "create %s", path)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "extract %s", entry.Name)
	}
	return nil
}

// EnsureData downloads (if needed) and extracts the archive, verifying that
// the expected checklist files are present. Returns the extraction directory.
func (f *Fetcher) EnsureData(ctx context.Context, force bool) (string, error) {
	archive, err := f.Download(ctx, force)
	if err != nil {
		return "", err
	}
	dir, err := f.Unzip(archive)
	if err != nil {
		return "", err
	}
	for _, name := range []string{NamesFile, DistributionsFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return "", errors.New(errors.ErrCodeFileNotFound,
				"archive is missing %s", name)
		}
	}
	return dir, nil
}

// Cleanup removes extracted files, and with keepArchive unset also the
// downloaded zip. Mirrors the importer's post-import tidy-up.
func (f *Fetcher) Cleanup(keepArchive bool) error {
	if err := os.RemoveAll(f.ExtractDir()); err != nil {
		return fmt.Errorf("remove extract dir: %w", err)
	}
	if !keepArchive {
		if err := os.Remove(f.ArchivePath()); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove archive: %w", err)
		}
	}
	return nil
}
