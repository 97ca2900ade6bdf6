package sheet

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrSourceUnavailable is returned when a table source could not be read.
var ErrSourceUnavailable = errors.New("source unavailable")

// Fetcher retrieves table sources and parses them into rows.
type Fetcher struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

// NewFetcher creates a Fetcher. baseURL is the spreadsheet export URL that
// bare tab ids are resolved against; it may be empty when only full URLs
// or file paths are used.
func NewFetcher(baseURL string, httpClient *http.Client, logger *zap.Logger) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
	}
}

// Fetch reads the source named by locator and returns its rows. An empty
// locator yields no rows. Failures wrap ErrSourceUnavailable.
func (f *Fetcher) Fetch(ctx context.Context, locator string) ([][]string, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return nil, nil
	}

	if isURL(locator) || isTabID(locator) {
		return f.fetchHTTP(ctx, locator)
	}
	return f.fetchFile(locator)
}

func (f *Fetcher) fetchHTTP(ctx context.Context, locator string) ([][]string, error) {
	target, err := f.resolve(locator)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, locator, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrSourceUnavailable, err)
	}
	req.Header.Set("Cache-Control", "no-store")

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, locator, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s: status %d", ErrSourceUnavailable, locator, resp.StatusCode)
	}

	format := formatFromContentType(resp.Header.Get("Content-Type"))
	if format == FormatDelimited {
		format = formatFromPath(req.URL.Path)
	}

	rows, err := ParseAs(format, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, locator, err)
	}

	f.logger.Debug("Fetched table source",
		zap.String("locator", locator),
		zap.Stringer("format", format),
		zap.Int("rows", len(rows)),
		zap.Duration("latency", time.Since(start)))

	return rows, nil
}

func (f *Fetcher) fetchFile(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer file.Close()

	format := formatFromPath(path)
	rows, err := ParseAs(format, file)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, path, err)
	}

	f.logger.Debug("Read table file",
		zap.String("path", path),
		zap.Stringer("format", format),
		zap.Int("rows", len(rows)))

	return rows, nil
}

// resolve turns a locator into a request URL with a cache-busting parameter.
func (f *Fetcher) resolve(locator string) (string, error) {
	raw := locator
	if isTabID(locator) {
		if f.baseURL == "" {
			return "", fmt.Errorf("tab id given but no spreadsheet base URL configured")
		}
		raw = f.baseURL
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}

	q := u.Query()
	if isTabID(locator) {
		q.Set("gid", locator)
	}
	q.Set("t", strconv.FormatInt(f.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func isTabID(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func formatFromContentType(ct string) Format {
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return FormatDelimited
	}
	switch {
	case strings.Contains(mediaType, "spreadsheetml"):
		return FormatXLSX
	case mediaType == "text/html":
		return FormatHTML
	default:
		return FormatDelimited
	}
}

func formatFromPath(p string) Format {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".xlsx":
		return FormatXLSX
	case ".html", ".htm":
		return FormatHTML
	default:
		return FormatDelimited
	}
}
