package capabilities

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/toolbox/internal/logging"
	"github.com/aretw0/toolbox/pkg/domain"
)

const (
	DefaultMaxChars = 10000
	HardMaxChars    = 50000

	maxFetchBytes   = 5 * 1024 * 1024
	connectTimeout  = 10 * time.Second
	requestTimeout  = 30 * time.Second
	fetchUserAgent  = "toolbox-web-fetch/1.0"
	truncatedMarker = "\n\n[Content truncated: showing %d of %d characters]"
	clippedMarker   = "\n\n[Body exceeded %d bytes: only the first %d bytes were read]"
)

// NewHTTPClient returns the client used by web_fetch: a fixed connection timeout
// and an overall request deadline.
func NewHTTPClient() *http.Client {
	dialer := &net.Dialer{Timeout: connectTimeout}
	return &http.Client{
		Timeout: requestTimeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   connectTimeout,
			ResponseHeaderTimeout: requestTimeout,
		},
	}
}

type fetchParams struct {
	URL      string `json:"url" jsonschema_description:"http or https URL to fetch"`
	MaxChars int    `json:"max_chars,omitempty" jsonschema_description:"Maximum characters to return (default 10000 and at most 50000)"`
}

// WebFetch retrieves a URL and returns it as Markdown-like text.
type WebFetch struct {
	meta
	client *http.Client
	logger *slog.Logger
}

// NewWebFetch creates the web_fetch capability. A nil client uses NewHTTPClient.
func NewWebFetch(client *http.Client, logger *slog.Logger) *WebFetch {
	if client == nil {
		client = NewHTTPClient()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &WebFetch{
		meta: meta{
			name: "web_fetch",
			description: "Fetch a web page or JSON document over http(s). HTML is converted to Markdown; " +
				"long content is truncated.",
			schema: schemaOf(&fetchParams{}),
		},
		client: client,
		logger: logger.With("component", "web_fetch"),
	}
}

func (c *WebFetch) Execute(ctx context.Context, params map[string]any, tc domain.ToolContext) (domain.Result, error) {
	var p fetchParams
	if err := decode(params, &p); err != nil {
		return domain.Result{}, err
	}
	if err := required("url", p.URL); err != nil {
		return domain.Result{}, err
	}
	u, err := url.Parse(strings.TrimSpace(p.URL))
	if err != nil || u.Host == "" {
		return domain.Result{}, domain.InvalidParams("invalid url %q", p.URL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return domain.Result{}, domain.InvalidParams("unsupported url scheme %q: only http and https are allowed", u.Scheme)
	}
	maxChars := clampChars(p.MaxChars)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return domain.Result{}, domain.InvalidParams("building request: %v", err)
	}
	req.Header.Set("User-Agent", fetchUserAgent)
	req.Header.Set("Accept", "text/html, application/json;q=0.9, text/plain;q=0.8, */*;q=0.5")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Result{}, domain.ExecutionFailed("fetching %s: %w", u.Redacted(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
	if err != nil {
		return domain.Result{}, domain.ExecutionFailed("reading %s: %w", u.Redacted(), err)
	}
	clipped := len(body) > maxFetchBytes
	if clipped {
		body = body[:maxFetchBytes]
	}
	c.logger.Debug("Fetched URL", "url", u.Redacted(), "status", resp.StatusCode, "bytes", len(body), "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Failure("HTTP %s fetching %s", resp.Status, u.Redacted()), nil
	}

	text := truncateChars(convertBody(resp.Header.Get("Content-Type"), body), maxChars)
	if clipped {
		text += fmt.Sprintf(clippedMarker, maxFetchBytes, maxFetchBytes)
	}
	return domain.Success(text), nil
}

func clampChars(n int) int {
	if n <= 0 {
		return DefaultMaxChars
	}
	return min(n, HardMaxChars)
}

func convertBody(contentType string, body []byte) string {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	text := string(body)
	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		return "```json\n" + strings.TrimSpace(text) + "\n```"
	case mediaType == "text/html" || mediaType == "application/xhtml+xml" || looksLikeHTML(text):
		return HTMLToMarkdown(text)
	default:
		return text
	}
}

func looksLikeHTML(s string) bool {
	head := strings.ToLower(strings.TrimSpace(s[:min(len(s), 512)]))
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}

// truncateChars cuts s to at most limit characters and notes the true length.
func truncateChars(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + fmt.Sprintf(truncatedMarker, limit, len(r))
}
