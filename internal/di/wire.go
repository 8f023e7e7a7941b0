// Package di wires application dependencies.
// Databases are initialized first, then repositories, then services.
// All dependencies are injected via constructors.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gralix-technologies/loanlens/internal/config"
	"github.com/gralix-technologies/loanlens/internal/database"
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

// Container holds all wired dependencies
type Container struct {
	// Databases
	PortfolioDB *database.DB
	CacheDB     *database.DB

	// Repositories
	RecordRepo   *records.Repository
	FormulaRepo  *formula.Repository
	CustomerRepo *customers.Repository
	ProductRepo  *products.Repository

	// Services
	Evaluator        *formula.Evaluator
	Resolver         *metrics.Resolver
	ChartService     *charts.Service
	PortfolioService *portfolio.Service
	SnapshotService  *snapshots.Service
	Formatter        *currency.Formatter
}

// Wire initializes databases, repositories, and services
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	portfolioDB, err := database.New(database.Config{
		Path:    cfg.PortfolioDBPath(),
		Profile: database.ProfileStandard,
		Name:    "portfolio",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open portfolio database: %w", err)
	}
	if err := portfolioDB.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate portfolio database: %w", err)
	}

	cacheDB, err := database.New(database.Config{
		Path:    cfg.CacheDBPath(),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if err := cacheDB.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate cache database: %w", err)
	}

	recordRepo := records.NewRepository(portfolioDB.Conn(), log)
	formulaRepo := formula.NewRepository(portfolioDB.Conn(), log)
	customerRepo := customers.NewRepository(portfolioDB.Conn(), log)
	productRepo := products.NewRepository(portfolioDB.Conn(), log)

	evaluator := formula.NewEvaluator(log)
	if cfg.StrictFormulas {
		evaluator = formula.NewStrictEvaluator(log)
	}

	resolver := metrics.NewResolver(formulaRepo, evaluator, log)
	chartService := charts.NewService(recordRepo, customerRepo, resolver, log)
	formatter := currency.NewFormatter(cfg.CurrencySymbol)
	portfolioService := portfolio.NewService(recordRepo, productRepo, chartService, formatter, log)
	snapshotService := snapshots.NewService(cacheDB.Conn(), chartService, portfolioService, log)

	if err := snapshotService.LoadRegistered(); err != nil {
		log.Warn().Err(err).Msg("Failed to restore snapshot registrations")
	}

	return &Container{
		PortfolioDB:      portfolioDB,
		CacheDB:          cacheDB,
		RecordRepo:       recordRepo,
		FormulaRepo:      formulaRepo,
		CustomerRepo:     customerRepo,
		ProductRepo:      productRepo,
		Evaluator:        evaluator,
		Resolver:         resolver,
		ChartService:     chartService,
		PortfolioService: portfolioService,
		SnapshotService:  snapshotService,
		Formatter:        formatter,
	}, nil
}

// Close releases all database connections
func (c *Container) Close() {
	if c.PortfolioDB != nil {
		_ = c.PortfolioDB.Close()
	}
	if c.CacheDB != nil {
		_ = c.CacheDB.Close()
	}
}
