package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/rentalscope/internal/core/domain"
)

// ListingRepo implements ports.ListingRepository with pgx.
type ListingRepo struct {
	db *DB
}

// NewListingRepo creates a new ListingRepo.
func NewListingRepo(db *DB) *ListingRepo {
	return &ListingRepo{db: db}
}

const upsertListingSQL = `
	INSERT INTO listings (
		listing_id, url, platform, guests, bedrooms, beds, baths,
		bedroom_count, bath_count, description, lat, lng, distance_meters,
		last_search_id, first_seen_at, last_seen_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
	ON CONFLICT (listing_id) DO UPDATE
	SET url = EXCLUDED.url, platform = EXCLUDED.platform,
	    guests = EXCLUDED.guests, bedrooms = EXCLUDED.bedrooms,
	    beds = EXCLUDED.beds, baths = EXCLUDED.baths,
	    bedroom_count = EXCLUDED.bedroom_count, bath_count = EXCLUDED.bath_count,
	    description = EXCLUDED.description,
	    lat = EXCLUDED.lat, lng = EXCLUDED.lng,
	    distance_meters = EXCLUDED.distance_meters,
	    last_search_id = EXCLUDED.last_search_id,
	    last_seen_at = EXCLUDED.last_seen_at
`

// SaveReport stores the search run and upserts its listings in one
// transaction.
func (r *ListingRepo) SaveReport(ctx context.Context, report *domain.ListingsReport) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var searchID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO search_runs (
			address, center_lat, center_lng, bbox, strategy,
			width_meters, height_meters, safety_meters, listing_count, fetched_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, report.Address, report.Center.Lat, report.Center.Lng, report.BBox[:],
		string(report.ViewportMeta.Strategy), report.ViewportMeta.WidthMeters,
		report.ViewportMeta.HeightMeters, report.ViewportMeta.SafetyMeters,
		len(report.Listings), report.FetchedAt,
	).Scan(&searchID)
	if err != nil {
		return fmt.Errorf("insert search run: %w", err)
	}

	if len(report.Listings) > 0 {
		batch := &pgx.Batch{}
		for _, l := range report.Listings {
			batch.Queue(upsertListingSQL,
				l.ListingID, l.URL, l.Platform, l.Guests, l.Bedrooms, l.Beds, l.Baths,
				l.BedroomCount, l.BathCount, l.Description, l.Lat, l.Lng, l.DistanceMeters,
				searchID, report.FetchedAt,
			)
		}
		br := tx.SendBatch(ctx, batch)
		for range report.Listings {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("batch exec: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("batch close: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const selectListingSQL = `
	SELECT listing_id, url, platform,
	       COALESCE(guests, ''), COALESCE(bedrooms, ''), COALESCE(beds, ''), COALESCE(baths, ''),
	       bedroom_count, bath_count, COALESCE(description, ''),
	       lat, lng, distance_meters
	FROM listings
`

// List returns listings ordered by most recently seen, plus the total count.
func (r *ListingRepo) List(ctx context.Context, offset, limit int) ([]domain.ListingSummary, int, error) {
	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM listings`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count listings: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, selectListingSQL+`
		ORDER BY last_seen_at DESC, listing_id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	listings := []domain.ListingSummary{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, 0, err
		}
		listings = append(listings, *l)
	}
	return listings, total, rows.Err()
}

// GetByID returns a listing by its provider id.
func (r *ListingRepo) GetByID(ctx context.Context, listingID string) (*domain.ListingSummary, error) {
	l, err := scanListing(r.db.Pool.QueryRow(ctx, selectListingSQL+` WHERE listing_id = $1`, listingID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

func scanListing(row pgx.Row) (*domain.ListingSummary, error) {
	var l domain.ListingSummary
	err := row.Scan(
		&l.ListingID, &l.URL, &l.Platform,
		&l.Guests, &l.Bedrooms, &l.Beds, &l.Baths,
		&l.BedroomCount, &l.BathCount, &l.Description,
		&l.Lat, &l.Lng, &l.DistanceMeters,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
