// Package snapshots precomputes widget results on a schedule and serves
// them from the cache database, so dashboards load without recomputing
// every formula on every request.
package snapshots

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/gralix-technologies/loanlens/internal/database"
	"github.com/gralix-technologies/loanlens/internal/domain"
	"github.com/gralix-technologies/loanlens/internal/modules/charts"
	"github.com/gralix-technologies/loanlens/internal/modules/portfolio"
)

// WidgetSpec describes a widget whose result should be kept warm in the cache.
// ProductIDs set means a cross-product widget; otherwise ProductID is used.
type WidgetSpec struct {
	Name       string              `json:"name"`
	WidgetType string              `json:"widget_type"`
	ProductID  int64               `json:"product_id,omitempty"`
	ProductIDs []int64             `json:"product_ids,omitempty"`
	Config     domain.WidgetConfig `json:"config"`
}

// Hash returns a stable identifier for the spec, derived from its JSON form.
func (w WidgetSpec) Hash() string {
	raw, _ := json.Marshal(w)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// payload is the msgpack envelope stored in the cache. Exactly one of
// KPI or Chart is populated, depending on the widget type.
type payload struct {
	KPI   *domain.KPIResult   `msgpack:"kpi,omitempty"`
	Chart *domain.ChartResult `msgpack:"chart,omitempty"`
}

// Snapshot is a cached widget result together with its freshness timestamp.
type Snapshot struct {
	Spec       WidgetSpec
	KPI        *domain.KPIResult
	Chart      *domain.ChartResult
	ComputedAt time.Time
}

// Service computes and caches widget snapshots.
type Service struct {
	cacheDB   *sql.DB
	charts    *charts.Service
	portfolio *portfolio.Service
	log       zerolog.Logger

	mu    sync.RWMutex
	specs map[string]WidgetSpec // keyed by spec hash
}

// NewService creates a snapshot service backed by the cache database.
func NewService(
	cacheDB *sql.DB,
	chartSvc *charts.Service,
	portfolioSvc *portfolio.Service,
	log zerolog.Logger,
) *Service {
	return &Service{
		cacheDB:   cacheDB,
		charts:    chartSvc,
		portfolio: portfolioSvc,
		log:       log.With().Str("service", "snapshots").Logger(),
		specs:     make(map[string]WidgetSpec),
	}
}

// Register adds a widget spec to the refresh set and computes it immediately.
func (s *Service) Register(spec WidgetSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("widget spec requires a name")
	}
	if _, err := domain.ParseWidgetType(spec.WidgetType); err != nil {
		return err
	}

	hash := spec.Hash()

	s.mu.Lock()
	s.specs[hash] = spec
	s.mu.Unlock()

	return s.refreshOne(hash, spec)
}

// LoadRegistered restores the refresh set from the cache database, so a
// restart keeps previously registered widgets warm.
func (s *Service) LoadRegistered() error {
	rows, err := s.cacheDB.Query(`SELECT spec_hash, spec FROM snapshot_widgets`)
	if err != nil {
		return fmt.Errorf("failed to load registered snapshots: %w", err)
	}
	defer rows.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	for rows.Next() {
		var hash, specJSON string
		if err := rows.Scan(&hash, &specJSON); err != nil {
			return fmt.Errorf("failed to scan snapshot spec: %w", err)
		}
		var spec WidgetSpec
		if err := json.Unmarshal([]byte(specJSON), &spec); err != nil {
			s.log.Warn().Err(err).Str("hash", hash).Msg("Skipping unreadable snapshot spec")
			continue
		}
		s.specs[hash] = spec
	}
	return rows.Err()
}

// RefreshAll recomputes every registered widget. Failures are logged and
// skipped so one broken formula doesn't starve the rest of the cache.
func (s *Service) RefreshAll() error {
	s.mu.RLock()
	specs := make(map[string]WidgetSpec, len(s.specs))
	for h, spec := range s.specs {
		specs[h] = spec
	}
	s.mu.RUnlock()

	var failed int
	for hash, spec := range specs {
		if err := s.refreshOne(hash, spec); err != nil {
			failed++
			s.log.Error().Err(err).Str("widget", spec.Name).Msg("Snapshot refresh failed")
		}
	}

	s.log.Info().Int("total", len(specs)).Int("failed", failed).Msg("Snapshot refresh completed")
	if failed > 0 {
		return fmt.Errorf("%d of %d snapshot refreshes failed", failed, len(specs))
	}
	return nil
}

func (s *Service) refreshOne(hash string, spec WidgetSpec) error {
	var env payload

	if spec.WidgetType == string(domain.WidgetKPI) {
		var res domain.KPIResult
		if len(spec.ProductIDs) > 0 {
			res = s.portfolio.ComputeKPI(spec.Config, spec.ProductIDs)
		} else {
			res = s.charts.ComputeKPI(spec.Config, spec.ProductID, nil)
		}
		env.KPI = &res
	} else {
		var res domain.ChartResult
		if len(spec.ProductIDs) > 0 {
			res = s.portfolio.ComputeChart(spec.WidgetType, spec.Config, spec.ProductIDs)
		} else {
			res = s.charts.ComputeChart(spec.WidgetType, spec.Config, spec.ProductID, nil)
		}
		env.Chart = &res
	}

	blob, err := msgpack.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot for %s: %w", spec.Name, err)
	}

	specJSON, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("failed to encode spec for %s: %w", spec.Name, err)
	}

	return database.WithTransaction(s.cacheDB, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT OR REPLACE INTO snapshot_widgets
				(spec_hash, name, widget_type, spec, payload, computed_at)
			VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`,
			hash, spec.Name, spec.WidgetType, string(specJSON), blob)
		return err
	})
}

// Get returns the cached snapshot for a widget name, or nil when no
// snapshot exists yet.
func (s *Service) Get(name string) (*Snapshot, error) {
	row := s.cacheDB.QueryRow(`
		SELECT spec, payload, computed_at
		FROM snapshot_widgets
		WHERE name = ?
		ORDER BY computed_at DESC
		LIMIT 1`, name)

	var specJSON, computedRaw string
	var blob []byte
	if err := row.Scan(&specJSON, &blob, &computedRaw); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load snapshot %s: %w", name, err)
	}

	var spec WidgetSpec
	if err := json.Unmarshal([]byte(specJSON), &spec); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot spec %s: %w", name, err)
	}

	var env payload
	if err := msgpack.Unmarshal(blob, &env); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot payload %s: %w", name, err)
	}

	return &Snapshot{
		Spec:       spec,
		KPI:        env.KPI,
		Chart:      env.Chart,
		ComputedAt: parseTimestamp(computedRaw),
	}, nil
}

// parseTimestamp handles the formats SQLite emits for DATETIME columns.
func parseTimestamp(raw string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05Z07:00"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
