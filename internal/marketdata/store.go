// Package marketdata provides the market-dataset and user-profile
// collaborators consumed by the intelligence aggregator. The canonical
// store is PostgreSQL; a Redis read-through layer applies the per-dataset
// TTL policy.
package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Record is one market observation for a location.
type Record struct {
	Location    string    `json:"location"`
	DatasetType string    `json:"dataset_type"`
	Bedrooms    int       `json:"bedrooms"`
	MedianRent  float64   `json:"median_rent"`
	SampleSize  int       `json:"sample_size"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// UserProfile is the personalization context for a known user.
type UserProfile struct {
	UserID             string    `json:"user_id"`
	BudgetUSD          float64   `json:"budget_usd"`
	Bedrooms           int       `json:"bedrooms"`
	PreferredLocations []string  `json:"preferred_locations"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Store is the data-collaborator surface the aggregator fans out to.
type Store interface {
	QueryMarketData(ctx context.Context, location, datasetType string) ([]Record, error)
	GetUserContext(ctx context.Context, userID string) (*UserProfile, error)
}

// PGStore implements Store against PostgreSQL.
type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) QueryMarketData(ctx context.Context, location, datasetType string) ([]Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT location, dataset_type, bedrooms, median_rent, sample_size, recorded_at
		FROM market_records
		WHERE location = $1
		  AND dataset_type = $2
		ORDER BY recorded_at DESC
		LIMIT 50
	`, location, datasetType)
	if err != nil {
		return nil, fmt.Errorf("query market_records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Location, &r.DatasetType, &r.Bedrooms, &r.MedianRent, &r.SampleSize, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan market_records: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *PGStore) GetUserContext(ctx context.Context, userID string) (*UserProfile, error) {
	var p UserProfile
	err := s.db.QueryRow(ctx, `
		SELECT user_id, budget_usd, bedrooms, preferred_locations, updated_at
		FROM user_profiles
		WHERE user_id = $1
	`, userID).Scan(&p.UserID, &p.BudgetUSD, &p.Bedrooms, &p.PreferredLocations, &p.UpdatedAt)
	if err != nil {
		if err.Error() == "no rows in result set" {
			return nil, nil
		}
		return nil, fmt.Errorf("query user_profiles: %w", err)
	}
	return &p, nil
}
