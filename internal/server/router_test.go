package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3nomad/Rabby/internal/handler"
	"github.com/web3nomad/Rabby/internal/service/approval"
	"github.com/web3nomad/Rabby/internal/service/gas"
	"github.com/web3nomad/Rabby/internal/service/pending"
)

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := approval.NewService(approval.Deps{}, approval.Options{Policy: gas.DefaultPolicy()})
	return NewHTTPRouter(
		handler.NewReviewHandler(svc, approval.NewRegistry(0)),
		handler.NewPendingHandler(pending.NewMemoryStore()),
	)
}

func do(t *testing.T, r *gin.Engine, method, path string, body interface{}) envelope {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestRouter_Errors(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		code   int
	}{
		{"ping", http.MethodGet, "/api/v1/ping", nil, 0},
		{"unknown review", http.MethodGet, "/api/v1/reviews/nope", nil, 20104},
		{"unknown sign", http.MethodGet, "/api/v1/signs/nope", nil, 20104},
		{"close unknown review", http.MethodDelete, "/api/v1/reviews/nope", nil, 20104},
		{"open without account", http.MethodPost, "/api/v1/reviews", map[string]interface{}{"tx": map[string]interface{}{"chainId": 1}}, 10002},
		{"open with bad address", http.MethodPost, "/api/v1/reviews", map[string]interface{}{
			"tx":      map[string]interface{}{"chainId": 1},
			"account": map[string]string{"address": "0x1234", "type": "HD Key Tree"},
		}, 10002},
		{"pending with bad address", http.MethodPost, "/api/v1/pending", map[string]interface{}{
			"chainId": 1, "hash": "0xabc", "from": "nope",
		}, 10002},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := do(t, r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.code, env.Code, env.Msg)
		})
	}
}

func TestRouter_PendingQueue(t *testing.T) {
	r := newTestRouter(t)
	from := "0x00000000000000000000000000000000000000aa"

	env := do(t, r, http.MethodPost, "/api/v1/pending", map[string]interface{}{
		"chainId": 1, "hash": "0xabc", "nonce": 7, "from": from, "value": "0x0", "gasPrice": "0x3b9aca00",
	})
	require.Equal(t, 0, env.Code, env.Msg)

	env = do(t, r, http.MethodGet, "/api/v1/pending?chainId=1&address="+from, nil)
	require.Equal(t, 0, env.Code, env.Msg)

	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "0xabc", list[0]["hash"])
	assert.EqualValues(t, 7, list[0]["nonce"])
}
