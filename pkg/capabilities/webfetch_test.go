package capabilities_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aretw0/toolbox/pkg/capabilities"
	"github.com/aretw0/toolbox/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFetchServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<!doctype html><html><head><title>x</title><script>alert(1)</script></head>
<body><h1>Title</h1><p>Hello <a href="https://example.com">world</a> &amp; <b>friends</b>.</p>
<ul><li>one</li><li>two</li></ul></body></html>`))
	})
	mux.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("/long", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(strings.Repeat("a", 200)))
	})
	mux.HandleFunc("/huge", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(strings.Repeat("b", 5*1024*1024+10)))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestWebFetch_HTMLBecomesMarkdown(t *testing.T) {
	srv := newFetchServer(t)
	fetch := capabilities.NewWebFetch(srv.Client(), nil)

	res, err := fetch.Execute(context.Background(), map[string]any{"url": srv.URL + "/page"}, domain.ToolContext{})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, res.Output, "# Title")
	assert.Contains(t, res.Output, "Hello [world](https://example.com) & **friends**.")
	assert.Contains(t, res.Output, "- one")
	assert.NotContains(t, res.Output, "alert")
}

func TestWebFetch_JSONIsFenced(t *testing.T) {
	srv := newFetchServer(t)
	fetch := capabilities.NewWebFetch(srv.Client(), nil)

	res, err := fetch.Execute(context.Background(), map[string]any{"url": srv.URL + "/data"}, domain.ToolContext{})
	require.NoError(t, err)
	assert.Equal(t, "```json\n{\"ok\":true}\n```", res.Output)
}

func TestWebFetch_Truncates(t *testing.T) {
	srv := newFetchServer(t)
	fetch := capabilities.NewWebFetch(srv.Client(), nil)

	res, err := fetch.Execute(context.Background(), map[string]any{"url": srv.URL + "/long", "max_chars": 50}, domain.ToolContext{})
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 50)+"\n\n[Content truncated: showing 50 of 200 characters]", res.Output)
}

func TestWebFetch_ReportsBodyOverByteCap(t *testing.T) {
	srv := newFetchServer(t)
	fetch := capabilities.NewWebFetch(srv.Client(), nil)

	res, err := fetch.Execute(context.Background(), map[string]any{"url": srv.URL + "/huge", "max_chars": 10}, domain.ToolContext{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Output, strings.Repeat("b", 10)+"\n\n[Content truncated: showing 10 of 5242880 characters]"))
	assert.True(t, strings.HasSuffix(res.Output, "[Body exceeded 5242880 bytes: only the first 5242880 bytes were read]"))
}

func TestWebFetch_HTTPErrorIsDomainFailure(t *testing.T) {
	srv := newFetchServer(t)
	fetch := capabilities.NewWebFetch(srv.Client(), nil)

	res, err := fetch.Execute(context.Background(), map[string]any{"url": srv.URL + "/missing"}, domain.ToolContext{})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Output, "404")
}

func TestWebFetch_RejectsSchemes(t *testing.T) {
	fetch := capabilities.NewWebFetch(nil, nil)

	for _, u := range []string{"file:///etc/passwd", "ftp://example.com/x", "not a url", ""} {
		_, err := fetch.Execute(context.Background(), map[string]any{"url": u}, domain.ToolContext{})
		assert.ErrorIs(t, err, domain.ErrInvalidParams, u)
	}
}

func TestWebFetch_UnreachableHostIsExecutionFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	fetch := capabilities.NewWebFetch(nil, nil)
	_, err := fetch.Execute(context.Background(), map[string]any{"url": url}, domain.ToolContext{})
	assert.ErrorIs(t, err, domain.ErrExecutionFailed)
}

func TestHTMLToMarkdown(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"entities", "<p>a &lt; b &amp;&amp; c</p>", "a < b && c"},
		{"heading levels", "<h2>Sub</h2><p>text</p>", "## Sub\n\ntext"},
		{"inline code", "<p>run <code>go test</code></p>", "run `go test`"},
		{"pre block", "<pre>x := 1\n  y</pre>", "```\nx := 1\n  y\n```"},
		{"style dropped", "<style>p{}</style><p>visible</p>", "visible"},
		{"link without href", "<a>plain</a>", "plain"},
		{"whitespace collapsed", "<p>a\n\n   b</p>", "a b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, capabilities.HTMLToMarkdown(tt.in))
		})
	}
}
