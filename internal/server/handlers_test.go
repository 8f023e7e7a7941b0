package server

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/gralix-technologies/loanlens/internal/config"
	"github.com/gralix-technologies/loanlens/internal/di"
	"github.com/gralix-technologies/loanlens/internal/domain"
	"github.com/gralix-technologies/loanlens/internal/modules/charts"
	"github.com/gralix-technologies/loanlens/internal/modules/currency"
	"github.com/gralix-technologies/loanlens/internal/modules/customers"
	"github.com/gralix-technologies/loanlens/internal/modules/formula"
	"github.com/gralix-technologies/loanlens/internal/modules/metrics"
	"github.com/gralix-technologies/loanlens/internal/modules/portfolio"
	"github.com/gralix-technologies/loanlens/internal/modules/products"
	"github.com/gralix-technologies/loanlens/internal/modules/records"
	"github.com/gralix-technologies/loanlens/internal/modules/snapshots"
)

func setupServer(t *testing.T) (*Server, *sql.DB) {
	portfolioDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = portfolioDB.Close() })

	_, err = portfolioDB.Exec(`
		CREATE TABLE records (
			id TEXT PRIMARY KEY,
			product_id INTEGER NOT NULL,
			customer_id TEXT,
			amount REAL NOT NULL DEFAULT 0,
			data TEXT NOT NULL DEFAULT '{}',
			status TEXT,
			effective_date TEXT,
			created_at INTEGER
		);
		CREATE TABLE customers (id TEXT PRIMARY KEY, name TEXT NOT NULL, created_at INTEGER);
		CREATE TABLE products (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL, description TEXT, created_at INTEGER);
		CREATE TABLE formulas (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			expression TEXT NOT NULL,
			return_type TEXT NOT NULL DEFAULT 'numeric',
			product_id INTEGER,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at INTEGER,
			updated_at INTEGER
		);
	`)
	require.NoError(t, err)

	cacheDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = cacheDB.Close() })

	_, err = cacheDB.Exec(`
		CREATE TABLE snapshot_widgets (
			spec_hash TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			widget_type TEXT NOT NULL,
			spec TEXT NOT NULL,
			payload BLOB NOT NULL,
			computed_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	require.NoError(t, err)

	log := zerolog.Nop()
	recordRepo := records.NewRepository(portfolioDB, log)
	formulaRepo := formula.NewRepository(portfolioDB, log)
	evaluator := formula.NewEvaluator(log)
	resolver := metrics.NewResolver(formulaRepo, evaluator, log)
	chartSvc := charts.NewService(recordRepo, customers.NewRepository(portfolioDB, log), resolver, log)
	portfolioSvc := portfolio.NewService(recordRepo, products.NewRepository(portfolioDB, log), chartSvc, currency.NewFormatter("$"), log)
	snapshotSvc := snapshots.NewService(cacheDB, chartSvc, portfolioSvc, log)

	container := &di.Container{
		RecordRepo:       recordRepo,
		FormulaRepo:      formulaRepo,
		CustomerRepo:     customers.NewRepository(portfolioDB, log),
		ProductRepo:      products.NewRepository(portfolioDB, log),
		Evaluator:        evaluator,
		Resolver:         resolver,
		ChartService:     chartSvc,
		PortfolioService: portfolioSvc,
		SnapshotService:  snapshotSvc,
		Formatter:        currency.NewFormatter("$"),
	}

	srv := New(Config{
		Log:       log,
		Config:    &config.Config{Port: 8002},
		Port:      8002,
		DevMode:   true,
		Container: container,
	})

	return srv, portfolioDB
}

func postJSON(t *testing.T, srv *Server, path string, body interface{}) *httptest.ResponseRecorder {
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	return rec
}

func seedServerRecord(t *testing.T, db *sql.DB, productID int64, data map[string]interface{}) {
	decoded, err := domain.DecodeData(data)
	require.NoError(t, err)
	require.NoError(t, records.NewRepository(db, zerolog.Nop()).Insert(&domain.Record{
		ProductID: productID,
		Data:      decoded,
	}))
}

func TestHandleHealth(t *testing.T) {
	srv, _ := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "loanlens", body["service"])
}

func TestHandleWidgetKPI(t *testing.T) {
	srv, db := setupServer(t)

	seedServerRecord(t, db, 1, map[string]interface{}{"outstanding_balance": 100.0})
	seedServerRecord(t, db, 1, map[string]interface{}{"outstanding_balance": 50.0})

	rec := postJSON(t, srv, "/api/widgets/kpi", widgetRequest{
		ProductID: 1,
		Config:    domain.WidgetConfig{Metric: "outstanding_balance", Aggregation: domain.AggSum},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	var result domain.KPIResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 150.0, result.Value)
	assert.Empty(t, result.Error)
}

func TestHandleWidgetChart_ErrorStaysHTTP200(t *testing.T) {
	srv, _ := setupServer(t)

	rec := postJSON(t, srv, "/api/widgets/chart", widgetRequest{
		WidgetType: "gauge",
		ProductID:  1,
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	var result domain.ChartResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "Unknown widget type: gauge", result.Error)
}

func TestHandlePortfolioKPI(t *testing.T) {
	srv, db := setupServer(t)

	seedServerRecord(t, db, 1, map[string]interface{}{"outstanding_balance": 100.0})
	seedServerRecord(t, db, 2, map[string]interface{}{"outstanding_balance": 200.0})

	rec := postJSON(t, srv, "/api/portfolio/kpi", portfolioRequest{
		ProductIDs: []int64{1, 2},
		Config: domain.WidgetConfig{
			Metric:      "outstanding_balance",
			Aggregation: domain.AggSum,
			Format:      domain.FormatCurrency,
		},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	var result domain.KPIResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 300.0, result.Value)
	assert.Equal(t, "$300.00", result.Display)
}

func TestHandleEvaluateFormula(t *testing.T) {
	srv, db := setupServer(t)

	seedServerRecord(t, db, 1, map[string]interface{}{"outstanding_balance": 100.0})
	seedServerRecord(t, db, 1, map[string]interface{}{"outstanding_balance": 200.0})

	rec := postJSON(t, srv, "/api/formulas/evaluate", evaluateRequest{
		Expression: "SUM(outstanding_balance)",
		ProductID:  1,
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 300.0, body["value"])
	assert.Equal(t, 2.0, body["record_count"])
}

func TestHandleEvaluateFormula_BadExpression(t *testing.T) {
	srv, _ := setupServer(t)

	rec := postJSON(t, srv, "/api/formulas/evaluate", evaluateRequest{
		Expression: "SUM(",
		ProductID:  1,
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 0.0, body["value"])
	assert.NotEmpty(t, body["error"])
}

func TestHandleEvaluateFormula_MissingExpression(t *testing.T) {
	srv, _ := setupServer(t)

	rec := postJSON(t, srv, "/api/formulas/evaluate", evaluateRequest{ProductID: 1})

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "expression is required", body["error"])
}

func TestHandleSaveFormula(t *testing.T) {
	srv, db := setupServer(t)

	rec := postJSON(t, srv, "/api/formulas/", domain.Formula{
		Name:       "Total Balance",
		Expression: "SUM(outstanding_balance)",
		IsActive:   true,
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	var saved domain.Formula
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	assert.NotEmpty(t, saved.ID)

	found, err := formula.NewRepository(db, zerolog.Nop()).FindByName("Total Balance", 1)
	require.NoError(t, err)
	require.NotNil(t, found)
}

func TestHandleSaveFormula_Validation(t *testing.T) {
	srv, _ := setupServer(t)

	rec := postJSON(t, srv, "/api/formulas/", domain.Formula{Name: "No Expression"})

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "name and expression are required", body["error"])
}

func TestSnapshotEndpoints(t *testing.T) {
	srv, db := setupServer(t)

	seedServerRecord(t, db, 1, map[string]interface{}{"outstanding_balance": 100.0})

	rec := postJSON(t, srv, "/api/snapshots/register", snapshots.WidgetSpec{
		Name:       "total_balance",
		WidgetType: "kpi",
		ProductID:  1,
		Config:     domain.WidgetConfig{Metric: "outstanding_balance", Aggregation: domain.AggSum},
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	var registered map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &registered))
	assert.Equal(t, true, registered["registered"])

	req := httptest.NewRequest(http.MethodGet, "/api/snapshots/total_balance", nil)
	get := httptest.NewRecorder()
	srv.router.ServeHTTP(get, req)

	assert.Equal(t, http.StatusOK, get.Code)
	var snap struct {
		KPI *domain.KPIResult `json:"KPI"`
	}
	require.NoError(t, json.Unmarshal(get.Body.Bytes(), &snap))
	require.NotNil(t, snap.KPI)
	assert.Equal(t, 100.0, snap.KPI.Value)
}

func TestGetSnapshot_NotFound(t *testing.T) {
	srv, _ := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/snapshots/missing", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "snapshot not found", body["error"])
}
