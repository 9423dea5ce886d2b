package collector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/config"
	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/internal/cache"
	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/internal/metrics"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	recvLog := NewLog(filepath.Join(t.TempDir(), "inventario_render.json"))
	c, err := cache.NewRedisCache(config.RedisConfig{Enabled: false})
	require.NoError(t, err)
	return NewServer("127.0.0.1:0", recvLog, c)
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestLivenessProbe(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "Servidor funcionando :)", resp["mensaje"])
}

func TestReceiveSingleObject(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/inventario", map[string]interface{}{
		"codigo": "A001", "descripcion": "Filtro", "stock": 10, "agencia": "OJO DE AGUA",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "ok", resp["status"])
	require.Equal(t, "recibido", resp["mensaje"])
}

func TestReceiveArrayNormalizedToEntries(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/inventario", []map[string]interface{}{
		{"codigo": "A001", "agencia": "CENTRO"},
		{"codigo": "A002", "agencia": "CENTRO"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodGet, "/inventario", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var entries []Entry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
}

func TestAppendOnlyOrderAndReceiptStamp(t *testing.T) {
	s := newTestServer(t)

	const n = 5
	for i := 0; i < n; i++ {
		w := doJSON(t, s, http.MethodPost, "/inventario", map[string]interface{}{
			"codigo": fmt.Sprintf("A%03d", i),
		})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := doJSON(t, s, http.MethodGet, "/inventario", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var entries []Entry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, n)
	for i, e := range entries {
		require.Equal(t, fmt.Sprintf("A%03d", i), e["codigo"])
		stamp, ok := e["fecha_recepcion"].(string)
		require.True(t, ok)
		require.Regexp(t, `^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`, stamp)
	}
}

func TestEmptyLogServesEmptyArray(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/inventario", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, "[]", w.Body.String())
}

func TestReceiveRejectsNonObjectPayload(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/inventario", 42)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, s, http.MethodPost, "/inventario", []interface{}{"no-objeto"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsCountReceipts(t *testing.T) {
	s := newTestServer(t)

	doJSON(t, s, http.MethodPost, "/inventario", map[string]interface{}{"codigo": "A001"})
	doJSON(t, s, http.MethodPost, "/inventario", []map[string]interface{}{
		{"codigo": "A002"}, {"codigo": "A003"},
	})
	doJSON(t, s, http.MethodPost, "/inventario", 42)

	w := doJSON(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var snap struct {
		Counters map[string]int64 `json:"counters"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	require.Equal(t, int64(2), snap.Counters[metrics.ReceiptsAccepted])
	require.Equal(t, int64(3), snap.Counters[metrics.RecordsReceived])
	require.Equal(t, int64(1), snap.Counters[metrics.ReceiptsRejected])
}

func TestLogAppendPreservesExistingEntries(t *testing.T) {
	recvLog := NewLog(filepath.Join(t.TempDir(), "inventario_render.json"))

	require.NoError(t, recvLog.Append([]Entry{{"codigo": "A001"}}))
	require.NoError(t, recvLog.Append([]Entry{{"codigo": "A002"}}))

	entries, err := recvLog.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "A001", entries[0]["codigo"])
	require.Equal(t, "A002", entries[1]["codigo"])
}
