// Package updater downloads a filter list, verifies its header and
// optional "! Checksum:" fingerprint (MD5 over non-empty, non-checksum
// lines joined by "\n", base64 encoded, trailing "=" stripped), and
// atomically replaces the profile's backing file.
package updater

import (
	"bufio"
	"context"
	"crypto/md5" //nolint:gosec // parity check against an untrusted but non-adversarial list mirror, not a security boundary.
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
)

// Error classifications, mirroring profile.Error's vocabulary for the
// subset updater itself can raise.
const (
	// ErrDownload wraps a fetch failure.
	ErrDownload errors.Error = "updater: download failed"

	// ErrParse is returned when the first line doesn't contain
	// "[Adblock". Unlike the load-time header scan, the check here is
	// case-sensitive.
	ErrParse errors.Error = "updater: missing [Adblock header"

	// ErrChecksum is returned when a declared checksum does not match.
	ErrChecksum errors.Error = "updater: checksum mismatch"
)

// Fetcher abstracts the download job the updater depends on without
// owning; the host supplies the real transport.
type Fetcher interface {
	// Fetch retrieves url and returns its body. The caller closes it.
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// HTTPFetcher is the concrete Fetcher used outside of tests, a thin
// wrapper over net/http.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher returns a HTTPFetcher with a bounded default timeout.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{Timeout: 60 * time.Second}}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()

		return nil, errors.Error("updater: unexpected status " + resp.Status)
	}

	return resp.Body, nil
}

// Result is returned by Update on success.
type Result struct {
	// LastUpdate is the time the replace committed.
	LastUpdate time.Time
}

// Update downloads url via fetcher, verifies it, and atomically replaces
// path. The returned LastUpdate is only produced after the replace
// succeeds, so a commit failure never advances the profile's timestamp.
func Update(ctx context.Context, fetcher Fetcher, url, path string) (Result, error) {
	body, err := fetcher.Fetch(ctx, url)
	if err != nil {
		return Result{}, errors.Join(ErrDownload, err)
	}
	defer body.Close()

	data, checksum, err := readAndVerify(body)
	if err != nil {
		return Result{}, err
	}

	if err := atomicReplace(path, data); err != nil {
		slog.Error("updater: failed to replace file", "path", path, slogutil.KeyError, err)
		return Result{}, err
	}

	if checksum != "" {
		slog.Debug("updater: verified checksum", "path", path)
	}

	return Result{LastUpdate: time.Now().UTC()}, nil
}

// readAndVerify reads the downloaded stream, requires the "[Adblock"
// header, captures an optional "! Checksum:" line, and verifies the
// declared checksum against the canonical blob.
func readAndVerify(r io.Reader) (data []byte, checksum string, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 4096), 1<<20)

	if !scanner.Scan() {
		return nil, "", ErrParse
	}

	header := scanner.Text()
	if !strings.Contains(header, "[Adblock") {
		return nil, "", ErrParse
	}

	var blob strings.Builder
	blob.WriteString(header)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		if checksum == "" && strings.HasPrefix(line, "! Checksum:") {
			checksum = strings.TrimSpace(strings.TrimPrefix(line, "! Checksum:"))
			continue
		}

		blob.WriteByte('\n')
		blob.WriteString(line)
	}

	if err := scanner.Err(); err != nil {
		return nil, "", err
	}

	data = []byte(blob.String())

	if checksum != "" && !VerifyChecksum(data, checksum) {
		return nil, "", ErrChecksum
	}

	return data, checksum, nil
}

// VerifyChecksum reports whether declared (an "! Checksum:" value)
// equals the MD5/base64 fingerprint of data with its trailing "="
// padding stripped.
func VerifyChecksum(data []byte, declared string) bool {
	return ComputeChecksum(data) == strings.TrimRight(declared, "=")
}

// ComputeChecksum computes the MD5/base64 fingerprint used for
// "! Checksum:" lines, with trailing "=" padding stripped.
func ComputeChecksum(data []byte) string {
	sum := md5.Sum(data) //nolint:gosec // see crypto/md5 import comment.
	return strings.TrimRight(base64.StdEncoding.EncodeToString(sum[:]), "=")
}

// atomicReplace writes data to a temporary file alongside path and
// renames it into place.
func atomicReplace(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, path)
}
