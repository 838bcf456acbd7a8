// Package utils provides download, cache and storage helpers shared by the lead map packages.
package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

var ErrNotFound = errors.New("file not found on server")

// UserAgent is sent with every outbound request. Public tile servers reject anonymous clients.
const UserAgent = "dwc-lead-map/1.0 (+https://github.com/dwc-systems/lead-map)"

type progressWriter struct {
	io.Writer
	total uint64
	last  uint64
	label string
	log   *zap.Logger
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.total += uint64(n)
	if pw.total-pw.last > 5*1024*1024 { // Log every 5MB
		pw.log.Info("download progress", zap.String("file", pw.label), zap.Uint64("mb", pw.total/1024/1024))
		pw.last = pw.total
	}
	return n, err
}

// Get issues a GET with the package user agent. Callers own the response body.
func Get(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)
	return client.Do(req)
}

// DownloadFile downloads a file from a URL to a local path safely.
func DownloadFile(ctx context.Context, client *http.Client, url, path string, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	resp, err := Get(ctx, client, url)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Warn("closing response body", zap.Error(err))
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	// Create a temp file in the same directory to ensure atomic move
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmpFile.Name()
	defer func() {
		if err := os.Remove(tmpName); err != nil && !os.IsNotExist(err) {
			log.Warn("removing temp file", zap.String("path", tmpName), zap.Error(err))
		}
	}()

	pw := &progressWriter{Writer: tmpFile, label: filepath.Base(path), log: log}
	if _, err := io.Copy(pw, resp.Body); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// CacheFileName maps a URL to a flat file name inside a cache directory.
// Path segments are joined so that tile URLs like /4/3/6.png stay distinct.
func CacheFileName(url, prefix string) string {
	trimmed := url
	if i := strings.Index(trimmed, "://"); i != -1 {
		trimmed = trimmed[i+3:]
	}
	if i := strings.IndexAny(trimmed, "?#"); i != -1 {
		trimmed = trimmed[:i]
	}
	name := strings.NewReplacer("/", "_", ":", "_", " ", "_").Replace(trimmed)

	sanitizedPrefix := strings.Trim(prefix, "[]")
	sanitizedPrefix = strings.ReplaceAll(sanitizedPrefix, " ", "_")
	if sanitizedPrefix != "" {
		name = sanitizedPrefix + "_" + name
	}
	return name
}

// GetCachedReader returns a reader for the given URL. When cacheDir is set the
// body is downloaded once and served from disk afterwards.
func GetCachedReader(ctx context.Context, client *http.Client, url, cacheDir, prefix string, log *zap.Logger) (io.ReadCloser, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cacheDir != "" {
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache dir: %w", err)
		}
		localPath := filepath.Join(cacheDir, CacheFileName(url, prefix))

		if _, err := os.Stat(localPath); os.IsNotExist(err) {
			log.Debug("downloading", zap.String("url", url))
			if err := DownloadFile(ctx, client, url, localPath, log); err != nil {
				return nil, err
			}
		}
		f, err := os.Open(localPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open cache: %w", err)
		}
		return f, nil
	}

	resp, err := Get(ctx, client, url)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		if err := resp.Body.Close(); err != nil {
			log.Warn("closing response body", zap.Error(err))
		}
		if resp.StatusCode == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}
	return resp.Body, nil
}
