// Package gdrive downloads the listings dataset from a Google Drive share
// link. Large files are served behind an HTML "download anyway" page whose
// form is resolved with a headless browser.
package gdrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"

	"car-price-estimator/config"
	"car-price-estimator/utils"
)

var (
	// ErrNoConfirmForm is returned when an HTML response has no download
	// form or link to follow.
	ErrNoConfirmForm = errors.New("gdrive: no download confirmation found")

	errInterstitial = errors.New("gdrive: got an HTML page instead of the file")
)

// confirmJS builds the confirmed download URL from the interstitial's form,
// falling back to the direct download link.
const confirmJS = `(() => {
	const form = document.querySelector('#download-form') || document.querySelector('form[action*="download"]');
	if (form) {
		const target = new URL(form.getAttribute('action') || location.href, location.href);
		new FormData(form).forEach((v, k) => target.searchParams.set(k, v));
		return target.toString();
	}
	const link = document.querySelector('#uc-download-link');
	return link ? link.href : '';
})()`

// ConfirmResolver turns an interstitial page URL into the file URL.
type ConfirmResolver func(ctx context.Context, pageURL string) (string, error)

// Fetcher downloads a file over HTTP with retries.
type Fetcher struct {
	client  *http.Client
	logger  *utils.Logger
	retry   *utils.RetryConfig
	timeout time.Duration
	resolve ConfirmResolver
}

// New creates a Fetcher from the application configuration.
func New(cfg *config.Config, logger *utils.Logger) *Fetcher {
	f := &Fetcher{
		client:  &http.Client{},
		logger:  logger,
		timeout: time.Duration(cfg.FetchTimeoutSec) * time.Second,
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
	}
	chromeBin := cfg.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	f.resolve = browserResolver(chromeBin, logger)
	return f
}

// Fetch downloads url to dest and returns the number of bytes written. dest
// is replaced atomically; on failure it is left untouched.
func (f *Fetcher) Fetch(ctx context.Context, url, dest string) (int64, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	f.logger.Info("[gdrive] Downloading %s", url)
	var written int64
	err := f.retry.Do(ctx, "download dataset", func() error {
		n, err := f.download(ctx, url, dest)
		if errors.Is(err, errInterstitial) {
			f.logger.Info("[gdrive] Download needs confirmation, resolving with headless browser")
			confirmed, rerr := f.resolve(ctx, url)
			if rerr != nil {
				return rerr
			}
			n, err = f.download(ctx, confirmed, dest)
		}
		written = n
		return err
	})
	if err != nil {
		return 0, err
	}

	f.logger.Info("[gdrive] Saved %d bytes → %s", written, dest)
	return written, nil
}

func (f *Fetcher) download(ctx context.Context, url, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("gdrive: build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("gdrive: get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("gdrive: unexpected status %s", resp.Status)
	}
	if isHTML(resp.Header.Get("Content-Type")) {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
		return 0, errInterstitial
	}

	return writeAtomic(dest, resp.Body)
}

func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "text/html"
}

// writeAtomic streams r into a temporary file next to dest and renames it.
func writeAtomic(dest string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return 0, fmt.Errorf("gdrive: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".part-*")
	if err != nil {
		return 0, fmt.Errorf("gdrive: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	n, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("gdrive: write body: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("gdrive: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return 0, fmt.Errorf("gdrive: rename: %w", err)
	}
	return n, nil
}

// browserResolver loads the interstitial page in headless Chrome and reads
// the confirmed download URL from its form.
func browserResolver(chromeBin string, logger *utils.Logger) ConfirmResolver {
	return func(ctx context.Context, pageURL string) (string, error) {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
		if chromeBin != "" {
			logger.Debug("[gdrive] Using browser binary: %s", chromeBin)
			opts = append(opts, chromedp.ExecPath(chromeBin))
		}

		allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
		defer cancelAlloc()
		browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...any) {}))
		defer cancelBrowser()

		var confirmURL string
		err := chromedp.Run(browserCtx,
			chromedp.Navigate(pageURL),
			chromedp.WaitReady("body", chromedp.ByQuery),
			chromedp.Evaluate(confirmJS, &confirmURL),
		)
		if err != nil {
			return "", fmt.Errorf("gdrive: browser: %w", err)
		}
		if confirmURL == "" {
			return "", ErrNoConfirmForm
		}
		return confirmURL, nil
	}
}

func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}
