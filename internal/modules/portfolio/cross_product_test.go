package portfolio

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/gralix-technologies/loanlens/internal/domain"
	"github.com/gralix-technologies/loanlens/internal/modules/charts"
	"github.com/gralix-technologies/loanlens/internal/modules/currency"
	"github.com/gralix-technologies/loanlens/internal/modules/customers"
	"github.com/gralix-technologies/loanlens/internal/modules/formula"
	"github.com/gralix-technologies/loanlens/internal/modules/metrics"
	"github.com/gralix-technologies/loanlens/internal/modules/products"
	"github.com/gralix-technologies/loanlens/internal/modules/records"
)

func setupPortfolioDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
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
		CREATE TABLE customers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at INTEGER
		);
		CREATE TABLE products (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			description TEXT,
			created_at INTEGER
		);
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

	return db
}

func newPortfolioService(t *testing.T, db *sql.DB) *Service {
	log := zerolog.Nop()
	recordRepo := records.NewRepository(db, log)
	formulaRepo := formula.NewRepository(db, log)
	resolver := metrics.NewResolver(formulaRepo, formula.NewEvaluator(log), log)
	chartService := charts.NewService(recordRepo, customers.NewRepository(db, log), resolver, log)
	return NewService(recordRepo, products.NewRepository(db, log), chartService, currency.NewFormatter("$"), log)
}

func seedPortfolioRecord(t *testing.T, db *sql.DB, productID int64, amount float64, status string, data map[string]interface{}) {
	decoded, err := domain.DecodeData(data)
	require.NoError(t, err)
	require.NoError(t, records.NewRepository(db, zerolog.Nop()).Insert(&domain.Record{
		ProductID: productID,
		Amount:    amount,
		Status:    status,
		Data:      decoded,
	}))
}

func seedProduct(t *testing.T, db *sql.DB, name string) int64 {
	p := &domain.Product{Name: name}
	require.NoError(t, products.NewRepository(db, zerolog.Nop()).Create(p))
	return p.ID
}

func TestComputeKPI_CurrencyDisplay(t *testing.T) {
	db := setupPortfolioDB(t)
	svc := newPortfolioService(t, db)

	seedPortfolioRecord(t, db, 1, 0, "", map[string]interface{}{"outstanding_balance": 1234567.891})
	seedPortfolioRecord(t, db, 2, 0, "", map[string]interface{}{"outstanding_balance": 0.0})

	result := svc.ComputeKPI(domain.WidgetConfig{
		Metric:      "outstanding_balance",
		Aggregation: domain.AggSum,
		Format:      domain.FormatCurrency,
	}, []int64{1, 2})

	assert.Empty(t, result.Error)
	assert.Equal(t, 1234567.89, result.Value)
	assert.Equal(t, "$1,234,567.89", result.Display)
	assert.Equal(t, domain.FormatCurrency, result.Format)
}

func TestComputeKPI_PercentageDisplay(t *testing.T) {
	db := setupPortfolioDB(t)
	svc := newPortfolioService(t, db)

	seedPortfolioRecord(t, db, 1, 0, "", map[string]interface{}{"npl_rate": 0.25})

	result := svc.ComputeKPI(domain.WidgetConfig{
		Metric:      "npl_rate",
		Aggregation: domain.AggAvg,
		Format:      domain.FormatPercentage,
	}, []int64{1})

	assert.Equal(t, 0.25, result.Value)
	assert.Equal(t, "25.00%", result.Display)
}

func TestComputeKPI_DecimalDisplay(t *testing.T) {
	db := setupPortfolioDB(t)
	svc := newPortfolioService(t, db)

	seedPortfolioRecord(t, db, 1, 0, "", map[string]interface{}{"interest_rate": 0.125})

	result := svc.ComputeKPI(domain.WidgetConfig{
		Metric:      "interest_rate",
		Aggregation: domain.AggAvg,
		Format:      domain.FormatDecimal,
		Precision:   3,
	}, []int64{1})

	assert.Equal(t, 0.125, result.Value)
	assert.Equal(t, "0.125", result.Display)
}

func TestComputeKPI_NumberHasNoDisplay(t *testing.T) {
	db := setupPortfolioDB(t)
	svc := newPortfolioService(t, db)

	seedPortfolioRecord(t, db, 1, 0, "", map[string]interface{}{"outstanding_balance": 100.0})

	result := svc.ComputeKPI(domain.WidgetConfig{
		Metric:      "outstanding_balance",
		Aggregation: domain.AggSum,
	}, []int64{1})

	assert.Equal(t, 100.0, result.Value)
	assert.Empty(t, result.Display)
}

func TestComputeChart_ProductGrouping(t *testing.T) {
	db := setupPortfolioDB(t)
	svc := newPortfolioService(t, db)

	microID := seedProduct(t, db, "Micro Loans")
	smeID := seedProduct(t, db, "SME Loans")

	seedPortfolioRecord(t, db, microID, 0, "", map[string]interface{}{"outstanding_balance": 100.0})
	seedPortfolioRecord(t, db, microID, 0, "", map[string]interface{}{"outstanding_balance": 50.0})
	seedPortfolioRecord(t, db, smeID, 0, "", map[string]interface{}{"outstanding_balance": 400.0})

	result := svc.ComputeChart("pie_chart", domain.WidgetConfig{
		GroupBy:     "product",
		Metric:      "outstanding_balance",
		Aggregation: domain.AggSum,
	}, []int64{microID, smeID})

	require.Empty(t, result.Error)
	require.Len(t, result.Points, 2)
	assert.Equal(t, domain.LabeledPoint{Label: "SME Loans", Value: 400}, result.Points[0])
	assert.Equal(t, domain.LabeledPoint{Label: "Micro Loans", Value: 150}, result.Points[1])
}

func TestComputeChart_ProductNameGroupingLine(t *testing.T) {
	db := setupPortfolioDB(t)
	svc := newPortfolioService(t, db)

	alphaID := seedProduct(t, db, "Alpha")
	betaID := seedProduct(t, db, "Beta")

	seedPortfolioRecord(t, db, betaID, 0, "", map[string]interface{}{"outstanding_balance": 200.0})
	seedPortfolioRecord(t, db, alphaID, 0, "", map[string]interface{}{"outstanding_balance": 100.0})

	result := svc.ComputeChart("line_chart", domain.WidgetConfig{
		GroupBy:     "product_name",
		Metric:      "outstanding_balance",
		Aggregation: domain.AggSum,
	}, []int64{alphaID, betaID})

	require.Empty(t, result.Error)
	require.Len(t, result.Series, 2)
	assert.Equal(t, "Alpha", result.Series[0].X)
	assert.Equal(t, "Beta", result.Series[1].X)
}

func TestComputeChart_SectorTable(t *testing.T) {
	db := setupPortfolioDB(t)
	svc := newPortfolioService(t, db)

	seedPortfolioRecord(t, db, 1, 0, "", map[string]interface{}{"sector": "Agriculture", "outstanding_balance": 100.0, "status": "NPL"})
	seedPortfolioRecord(t, db, 1, 0, "", map[string]interface{}{"sector": "Agriculture", "outstanding_balance": 200.0, "status": "active"})
	seedPortfolioRecord(t, db, 2, 0, "NPL", map[string]interface{}{"sector": "Trade", "outstanding_balance": 50.0})
	seedPortfolioRecord(t, db, 2, 0, "", map[string]interface{}{"outstanding_balance": 999.0})

	result := svc.ComputeChart("table", domain.WidgetConfig{}, []int64{1, 2})

	require.Empty(t, result.Error)
	assert.Equal(t, []string{"sector", "loan_count", "total_balance", "average_balance", "npl_count", "npl_ratio"}, result.Columns)
	require.Len(t, result.Rows, 2)

	agri := result.Rows[0]
	assert.Equal(t, "Agriculture", agri["sector"])
	assert.Equal(t, 2.0, agri["loan_count"])
	assert.Equal(t, 300.0, agri["total_balance"])
	assert.Equal(t, 150.0, agri["average_balance"])
	assert.Equal(t, 1.0, agri["npl_count"])
	assert.Equal(t, 50.0, agri["npl_ratio"])

	trade := result.Rows[1]
	assert.Equal(t, "Trade", trade["sector"])
	assert.Equal(t, 1.0, trade["npl_count"])
	assert.Equal(t, 100.0, trade["npl_ratio"])
}

func TestComputeChart_DataStatusPrecedesColumn(t *testing.T) {
	db := setupPortfolioDB(t)
	svc := newPortfolioService(t, db)

	// data field says active even though the column says NPL
	seedPortfolioRecord(t, db, 1, 0, "NPL", map[string]interface{}{"sector": "Trade", "outstanding_balance": 50.0, "status": "active"})

	result := svc.ComputeChart("table", domain.WidgetConfig{}, []int64{1})

	require.Len(t, result.Rows, 1)
	assert.Equal(t, 0.0, result.Rows[0]["npl_count"])
}

func TestComputeChart_NonProductGroupingDelegates(t *testing.T) {
	db := setupPortfolioDB(t)
	svc := newPortfolioService(t, db)

	seedPortfolioRecord(t, db, 1, 0, "", map[string]interface{}{"sector": "Agriculture", "outstanding_balance": 100.0})
	seedPortfolioRecord(t, db, 2, 0, "", map[string]interface{}{"sector": "Agriculture", "outstanding_balance": 60.0})

	result := svc.ComputeChart("pie_chart", domain.WidgetConfig{
		GroupBy:     "sector",
		Metric:      "outstanding_balance",
		Aggregation: domain.AggSum,
	}, []int64{1, 2})

	require.Empty(t, result.Error)
	require.Len(t, result.Points, 1)
	assert.Equal(t, domain.LabeledPoint{Label: "Agriculture", Value: 160}, result.Points[0])
}

func TestComputeChart_RejectsKPI(t *testing.T) {
	db := setupPortfolioDB(t)
	svc := newPortfolioService(t, db)

	result := svc.ComputeChart("kpi", domain.WidgetConfig{}, []int64{1})
	assert.Equal(t, "Unknown widget type: kpi", result.Error)
}
