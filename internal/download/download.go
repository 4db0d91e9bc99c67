package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kelsos/genjobs/internal/logger"
)

// Downloader streams generated artifacts from provider result URLs.
type Downloader struct {
	httpClient *http.Client
}

// NewDownloader returns a downloader using hc, or http.DefaultClient when nil.
func NewDownloader(hc *http.Client) *Downloader {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Downloader{httpClient: hc}
}

// validateURL accepts only absolute http(s) URLs.
func validateURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsedURL.Scheme != "https" && parsedURL.Scheme != "http" {
		return fmt.Errorf("unsupported URL scheme: %q", parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("URL has no host: %s", rawURL)
	}

	return nil
}

// Fetch copies the body at rawURL into w and returns the number of bytes written.
func (d *Downloader) Fetch(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	if err := validateURL(rawURL); err != nil {
		return 0, err
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	// #nosec G107 - URL comes from the provider's result payload and is scheme-checked above
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to download file from %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("bad status: %s", resp.Status)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to read body from %s: %w", rawURL, err)
	}

	logger.Debug("Downloaded %d KB from %s in %v", n/1024, rawURL, time.Since(start))
	return n, nil
}
