// Package store loads generation sites from PostgreSQL. Each site row joins
// to per-technology generation rows; the store pivots those into the aligned
// value/color/label sequences the renderer consumes, ordered by the
// configured palette.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"web/powermap/site"
)

// Store wraps the database handle.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Open connects to PostgreSQL and verifies the connection. Logger may be nil.
func Open(dsn string, maxOpen, maxIdle int, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db, log: logger}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// generationRow is one site/technology pair as read from the join query.
type generationRow struct {
	siteID     uint32
	name       string
	lon, lat   sql.NullFloat64
	technology sql.NullString
	value      sql.NullFloat64
}

// LoadSites reads every site with its per-technology generation and
// assembles renderer-ready features. Rows arrive ordered by site so the
// pivot is a single pass.
func (s *Store) LoadSites(ctx context.Context, techs []site.Technology) ([]site.Feature, error) {
	const query = `
		SELECT s.id, s.name, s.lon, s.lat, g.technology, g.value_mw
		FROM sites s
		LEFT JOIN generation g ON g.site_id = s.id
		ORDER BY s.id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sites: %w", err)
	}
	defer rows.Close()

	byName := make(map[string]site.Technology, len(techs))
	for _, t := range techs {
		byName[t.Name] = t
	}

	var (
		features []site.Feature
		current  []generationRow
		lastID   uint32
		have     bool
	)
	flush := func() {
		if f, ok := s.assembleFeature(current, techs, byName); ok {
			features = append(features, f)
		}
		current = current[:0]
	}

	for rows.Next() {
		var r generationRow
		if err := rows.Scan(&r.siteID, &r.name, &r.lon, &r.lat, &r.technology, &r.value); err != nil {
			return nil, fmt.Errorf("failed to scan site row: %w", err)
		}
		if have && r.siteID != lastID {
			flush()
		}
		lastID, have = r.siteID, true
		current = append(current, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading site rows: %w", err)
	}
	if have {
		flush()
	}

	s.log.Info("sites loaded from database", zap.Int("sites", len(features)))
	return features, nil
}

// assembleFeature pivots one site's rows into a feature. Technologies come
// out in palette order, values rounded to one decimal; non-positive
// generation is dropped. A site without usable generation gets the
// no-generation placeholder, and sites without coordinates are skipped.
func (s *Store) assembleFeature(rows []generationRow, techs []site.Technology, byName map[string]site.Technology) (site.Feature, bool) {
	if len(rows) == 0 {
		return site.Feature{}, false
	}

	head := rows[0]
	if !head.lon.Valid || !head.lat.Valid {
		s.log.Warn("skipping site without coordinates",
			zap.Uint32("site_id", head.siteID), zap.String("name", head.name))
		return site.Feature{}, false
	}

	f := site.Feature{
		ID:   head.siteID,
		Name: head.name,
		Lon:  head.lon.Float64,
		Lat:  head.lat.Float64,
	}

	values := make(map[string]float64)
	var extras []string // technologies outside the palette, in arrival order
	for _, r := range rows {
		if !r.technology.Valid || !r.value.Valid {
			continue
		}
		v := math.Round(r.value.Float64*10) / 10
		if v <= 0 {
			continue
		}
		name := r.technology.String
		if _, known := values[name]; !known {
			if _, inPalette := byName[name]; !inPalette {
				s.log.Warn("technology not in configured palette",
					zap.Uint32("site_id", head.siteID), zap.String("technology", name))
				extras = append(extras, name)
			}
		}
		values[name] += v
	}

	for _, t := range techs {
		if v, ok := values[t.Name]; ok {
			f.Values = append(f.Values, v)
			f.Colors = append(f.Colors, t.Color)
			f.Labels = append(f.Labels, t.Name)
		}
	}
	for _, name := range extras {
		f.Values = append(f.Values, values[name])
		f.Colors = append(f.Colors, site.UnknownColor)
		f.Labels = append(f.Labels, name)
	}

	if len(f.Values) == 0 {
		f.Values = []float64{0}
		f.Colors = []string{site.NoGenerationColor}
		f.Labels = []string{site.NoGenerationLabel}
	}
	return f, true
}
