// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-chirper-backend/internal/domain"
)

// ChirpsStats returns aggregate metadata for chirps created at or after the
// cutoff: the total number of rows and the maximum UpdatedAt timestamp among
// those rows.
//
// It executes two lightweight queries against the chirps table. When no
// chirps fall inside the window, the returned count is 0 and maxUpdatedAt is
// nil. The HTTP layer folds both values into a weak ETag for the recent feed.
//
// Return values:
//   - count:        total chirps inside the window
//   - maxUpdatedAt: pointer to the greatest UpdatedAt, or nil if no rows
//   - err:          database error, if any
func ChirpsStats(ctx context.Context, db *gorm.DB, cutoff time.Time) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Chirp{}).Where("created_at >= ?", cutoff)

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
