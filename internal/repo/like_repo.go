// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Like model.
//
// The repository follows a "thin" approach: it performs persistence and simple
// query composition, leaving business rules to the services package.
//
// Error semantics:
//   - A duplicate like (same user_id, chirp_id) relies on the database unique
//     constraint and is returned as a raw DB error. The service layer
//     translates that into a domain error (services.ErrAlreadyLiked).
//   - On other DB errors (connectivity, constraints, etc.), the raw gorm
//     error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-chirper-backend/internal/domain"
)

// CreateLike inserts a like row for the given chirp and user.
//
// The combination (user_id, chirp_id) must be unique, enforced by the
// database schema (unique index). If a duplicate exists, the database will
// return an error which should be translated by the service layer into a
// domain-level duplicate error.
//
// On success, it returns nil. On failure, it returns a DB error.
func CreateLike(ctx context.Context, db *gorm.DB, userID, chirpID string) error {
	l := &domain.Like{
		ID:        uuid.NewString(),
		UserID:    userID,
		ChirpID:   chirpID,
		CreatedAt: time.Now().UTC(),
	}
	return db.WithContext(ctx).Create(l).Error
}

// HasLiked reports whether userID has already liked chirpID. It is the
// fast-path check for the like rule; the unique index remains the
// authoritative guard under concurrency.
func HasLiked(ctx context.Context, db *gorm.DB, userID, chirpID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Like{}).
		Where("user_id = ? AND chirp_id = ?", userID, chirpID).
		Count(&n).Error
	return n > 0, err
}

// CountLikes returns the number of likes recorded for chirpID.
func CountLikes(ctx context.Context, db *gorm.DB, chirpID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Like{}).
		Where("chirp_id = ?", chirpID).
		Count(&total).Error
	return total, err
}

// LikeCounts returns the number of likes for each of the given chirp IDs in
// a single grouped query. Chirps with no likes are absent from the map.
func LikeCounts(ctx context.Context, db *gorm.DB, chirpIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(chirpIDs))
	if len(chirpIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		ChirpID string
		N       int64
	}
	err := db.WithContext(ctx).
		Model(&domain.Like{}).
		Select("chirp_id, COUNT(*) as n").
		Where("chirp_id IN ?", chirpIDs).
		Group("chirp_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ChirpID] = r.N
	}
	return out, nil
}
