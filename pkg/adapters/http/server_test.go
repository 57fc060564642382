package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	httpadapter "github.com/aretw0/toolbox/pkg/adapters/http"
	"github.com/aretw0/toolbox/pkg/domain"
	"github.com/aretw0/toolbox/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoCapability struct{}

func (echoCapability) Name() string        { return "echo" }
func (echoCapability) Description() string { return "Echo text back" }
func (echoCapability) Schema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{"text": map[string]any{"type": "string"}}}
}

func (echoCapability) Execute(ctx context.Context, params map[string]any, tc domain.ToolContext) (domain.Result, error) {
	text, ok := params["text"].(string)
	if !ok {
		return domain.Result{}, domain.InvalidParams("text must be a string")
	}
	if text == "" {
		return domain.Failure("nothing to echo"), nil
	}
	return domain.Success(text + " from " + tc.UserID + " in " + tc.OutputRoot), nil
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	reg := registry.New()
	reg.Register(echoCapability{})
	return httpadapter.NewHandler(reg,
		httpadapter.WithOutputRoot("/srv/out"),
		httpadapter.WithServers(func() []httpadapter.ServerStatus {
			return []httpadapter.ServerStatus{{Name: "github", Enabled: true, Connected: false, Tools: 4}}
		}),
		httpadapter.WithMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("toolbox_dispatch_total 1\n"))
		})),
	)
}

func post(t *testing.T, h http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/dispatch", bytes.NewReader(data)))
	return rec
}

func TestHandler_Tools(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tools", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var defs []domain.Definition
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &defs))
	require.Len(t, defs, 1)
	assert.Equal(t, "echo", defs[0].Name)
	assert.Equal(t, "object", defs[0].Parameters["type"])
}

func TestHandler_DispatchSuccess(t *testing.T) {
	rec := post(t, newTestHandler(t), map[string]any{
		"name":    "echo",
		"params":  map[string]any{"text": "hi"},
		"context": map[string]any{"user_id": "u1", "output_root": "/etc"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var res domain.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "hi from u1 in /srv/out", res.Output, "the caller cannot move the output root")
	assert.False(t, res.IsError)
}

func TestHandler_DispatchDomainFailure(t *testing.T) {
	rec := post(t, newTestHandler(t), map[string]any{"name": "echo", "params": map[string]any{"text": ""}})

	require.Equal(t, http.StatusOK, rec.Code)
	var res domain.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.IsError)
}

func TestHandler_DispatchProtocolErrors(t *testing.T) {
	h := newTestHandler(t)
	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantKind   string
	}{
		{"unknown tool", map[string]any{"name": "nope"}, http.StatusNotFound, "not_found"},
		{"bad params", map[string]any{"name": "echo", "params": map[string]any{"text": 1}}, http.StatusBadRequest, "invalid_params"},
		{"missing name", map[string]any{"params": map[string]any{}}, http.StatusBadRequest, "invalid_params"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, h, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)

			var body httpadapter.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantKind, body.Error.Kind)
		})
	}
}

func TestHandler_MalformedBody(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestHandler(t).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/dispatch", bytes.NewBufferString("{not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_ServersHealthAndMetrics(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/servers", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var servers []httpadapter.ServerStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &servers))
	assert.Equal(t, []httpadapter.ServerStatus{{Name: "github", Enabled: true, Tools: 4}}, servers)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "toolbox_dispatch_total")
}

func TestHandler_OptionalRoutesAbsent(t *testing.T) {
	h := httpadapter.NewHandler(registry.New())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/servers", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
