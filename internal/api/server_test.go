package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/internal/ledger"
	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/internal/quote"
	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/internal/sales"
	"github.com/elnetongas03/JQ-MOTORS-INVENTARIOS/internal/workshop"
)

func newTestServer(t *testing.T) (*Server, *ledger.Ledger) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	led := ledger.New(filepath.Join(dir, "inventario.xlsx"))
	rec := sales.New(led, filepath.Join(dir, "ventas.xlsx"))
	wb := workshop.New(filepath.Join(dir, "motos_insumos.xlsx"), led)
	return NewServer("127.0.0.1:0", led, rec, wb, nil, dir), led
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

func TestSnapshotEmptyLedgerIsEmptyArray(t *testing.T) {
	s, _ := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/inventario", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, "[]", w.Body.String())
}

func TestUpsertAndSnapshot(t *testing.T) {
	s, _ := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/inventario", UpsertRequest{
		Code: "A001", Description: "Filtro de aceite", Location: "B2", Stock: 10, Price: 150,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, s, http.MethodGet, "/inventario", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var items []ledger.Item
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 1)
	require.Equal(t, "A001", items[0].Code)
	require.Equal(t, 10, items[0].Available)
}

func TestFindByCodeEndpoint(t *testing.T) {
	s, led := newTestServer(t)

	_, err := led.Upsert(ledger.Item{Code: "MÓTOR", Description: "Motor", Stock: 1, Price: 5000})
	require.NoError(t, err)

	w := doJSON(t, s, http.MethodGet, "/inventario/motor", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodGet, "/inventario/NOEXISTE", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSearchEndpoint(t *testing.T) {
	s, led := newTestServer(t)

	_, err := led.Upsert(ledger.Item{Code: "A001", Description: "Filtro de Aceité", Stock: 1})
	require.NoError(t, err)

	w := doJSON(t, s, http.MethodGet, "/inventario?descripcion=aceite", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var items []ledger.Item
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 1)

	w = doJSON(t, s, http.MethodGet, "/inventario?descripcion=bujia", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, "[]", w.Body.String())
}

func TestAdjustEndpointClampsAtZero(t *testing.T) {
	s, led := newTestServer(t)

	_, err := led.Upsert(ledger.Item{Code: "A001", Stock: 2, Price: 10})
	require.NoError(t, err)

	w := doJSON(t, s, http.MethodPost, "/inventario/ajuste", AdjustRequest{
		Code: "A001", Quantity: 5, Operation: "descontar",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var item ledger.Item
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &item))
	require.Equal(t, 0, item.Stock)
}

func TestAdjustEndpointErrors(t *testing.T) {
	s, _ := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/inventario/ajuste", AdjustRequest{
		Code: "A001", Quantity: 5, Operation: "multiplicar",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, s, http.MethodPost, "/inventario/ajuste", AdjustRequest{
		Code: "NOEXISTE", Quantity: 5, Operation: "agregar",
	})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteEndpoint(t *testing.T) {
	s, led := newTestServer(t)

	_, err := led.Upsert(ledger.Item{Code: "A001", Stock: 1})
	require.NoError(t, err)
	_, err = led.Upsert(ledger.Item{Code: "A002", Stock: 1})
	require.NoError(t, err)

	w := doJSON(t, s, http.MethodDelete, "/inventario", DeleteRequest{Codes: []string{"a001", "FANTASMA"}})
	require.Equal(t, http.StatusOK, w.Code)

	items, err := led.Items()
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "A002", items[0].Code)
}

func TestSaleEndpointAppliesBatch(t *testing.T) {
	s, led := newTestServer(t)

	_, err := led.Upsert(ledger.Item{Code: "A001", Stock: 10, Price: 100})
	require.NoError(t, err)

	w := doJSON(t, s, http.MethodPost, "/ventas", SaleRequest{Lines: []SaleLine{
		{PaymentMethod: "Efectivo", Code: "A001", Quantity: 3, Price: 100},
		{PaymentMethod: "Tarjeta", Code: "FANTASMA", Quantity: 1, Price: 50},
	}})
	require.Equal(t, http.StatusOK, w.Code)

	item, err := led.FindByCode("A001")
	require.NoError(t, err)
	require.Equal(t, 7, item.Stock)
}

func TestWorkshopEndpoints(t *testing.T) {
	s, led := newTestServer(t)

	_, err := led.Upsert(ledger.Item{Code: "A001", Stock: 10, Price: 100})
	require.NoError(t, err)

	w := doJSON(t, s, http.MethodPost, "/taller/CB500/insumos", PartsRequest{Parts: []workshop.Part{
		{Code: "A001", Description: "Filtro", Quantity: 2, Price: 100},
	}})
	require.Equal(t, http.StatusOK, w.Code)

	item, err := led.FindByCode("A001")
	require.NoError(t, err)
	require.Equal(t, 8, item.Stock)

	w = doJSON(t, s, http.MethodGet, "/taller/CB500", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Vehicle string          `json:"moto"`
		Parts   []workshop.Part `json:"insumos"`
		Total   float64         `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "CB500", resp.Vehicle)
	require.Len(t, resp.Parts, 1)
	require.Equal(t, 200.0, resp.Total)

	w = doJSON(t, s, http.MethodGet, "/taller", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var vehicles []string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &vehicles))
	require.Equal(t, []string{"CB500"}, vehicles)
}

func TestQuoteEndpointPricesWithoutMutatingStock(t *testing.T) {
	s, led := newTestServer(t)

	_, err := led.Upsert(ledger.Item{Code: "A001", Description: "Filtro", Stock: 5, Price: 100})
	require.NoError(t, err)

	w := doJSON(t, s, http.MethodPost, "/cotizaciones", QuoteRequest{
		File: "cotizacion_prueba.xlsx",
		Lines: []QuoteLineRequest{
			{Code: "A001", Quantity: 2},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		File  string       `json:"archivo"`
		Lines []quote.Line `json:"articulos"`
		Total float64      `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Lines, 1)
	require.Equal(t, quote.Available, resp.Lines[0].Availability)
	require.Equal(t, 200.0, resp.Total)
	require.FileExists(t, resp.File)

	// Quoting must not consume inventory
	item, err := led.FindByCode("A001")
	require.NoError(t, err)
	require.Equal(t, 5, item.Stock)

	w = doJSON(t, s, http.MethodPost, "/cotizaciones", QuoteRequest{
		Lines: []QuoteLineRequest{{Code: "A001", Quantity: 50}},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, quote.NotAvailable, resp.Lines[0].Availability)

	w = doJSON(t, s, http.MethodPost, "/cotizaciones", QuoteRequest{
		Lines: []QuoteLineRequest{{Code: "ZZZ", Quantity: 1}},
	})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportEndpointWritesWorkbookCopy(t *testing.T) {
	s, led := newTestServer(t)

	_, err := led.Upsert(ledger.Item{Code: "A001", Description: "Filtro", Stock: 5, Price: 100})
	require.NoError(t, err)

	w := doJSON(t, s, http.MethodPost, "/inventario/exportar", ExportRequest{File: "respaldo.xlsx"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		File string `json:"archivo"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.FileExists(t, resp.File)

	copied := ledger.New(resp.File)
	item, err := copied.FindByCode("A001")
	require.NoError(t, err)
	require.Equal(t, 5, item.Stock)
}
