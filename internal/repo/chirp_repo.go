// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Chirp model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a chirp is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// The quota check (count-then-insert) and the ownership check both live in
// services.ChirpService; this package only exposes the primitives
// (CountChirpsByUser, GetChirp, UpdateChirpMessage, DeleteChirp) the service
// composes inside a transaction.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-chirper-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateChirp inserts a new Chirp row authored by userID with the given
// message. The chirp ID is a randomly generated UUID (string), and CreatedAt
// is set to UTC.
//
// On success, it returns the persisted Chirp. On failure, it returns a DB error.
func CreateChirp(ctx context.Context, db *gorm.DB, userID, message string) (*domain.Chirp, error) {
	c := &domain.Chirp{
		ID:        uuid.NewString(),
		UserID:    userID,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// ListChirps returns all chirps, ordered by creation time descending (most
// recent first). It backs the unfiltered home feed. On DB error, it returns
// the error.
func ListChirps(ctx context.Context, db *gorm.DB) ([]domain.Chirp, error) {
	var out []domain.Chirp
	err := db.WithContext(ctx).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// ListChirpsSince returns chirps created at or after the cutoff, ordered by
// creation time descending. It backs the recency-windowed feed; the caller
// computes the cutoff from the configured window length.
func ListChirpsSince(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]domain.Chirp, error) {
	var out []domain.Chirp
	err := db.WithContext(ctx).
		Where("created_at >= ?", cutoff).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// CountChirpsSince returns the number of chirps created at or after the
// cutoff. Use together with ListChirpsSincePage for pagination metadata.
func CountChirpsSince(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Chirp{}).
		Where("created_at >= ?", cutoff).
		Count(&total).Error
	return total, err
}

// ListChirpsSincePage returns a paginated slice of chirps created at or after
// the cutoff, ordered by creation time descending.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListChirpsSincePage(ctx context.Context, db *gorm.DB, cutoff time.Time, offset, limit int) ([]domain.Chirp, error) {
	var out []domain.Chirp
	err := db.WithContext(ctx).
		Where("created_at >= ?", cutoff).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountChirpsByUser returns the total number of chirps authored by userID.
// The quota rule in services.ChirpService evaluates this inside the insert
// transaction. On DB error, it returns the error.
func CountChirpsByUser(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Chirp{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// GetChirp fetches a single chirp by its ID. If the record does not exist
// (or was soft-deleted), it returns ErrNotFound. On other DB errors, the raw
// error is returned.
func GetChirp(ctx context.Context, db *gorm.DB, id string) (*domain.Chirp, error) {
	var c domain.Chirp
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateChirpMessage updates the message of the chirp identified by id and
// owned by userID. If no rows are affected (chirp missing or not owned by
// userID), it returns ErrNotFound. On DB error, the raw error is returned.
//
// The WHERE clause repeats the ownership predicate so a stale authorization
// check can never update somebody else's row.
func UpdateChirpMessage(ctx context.Context, db *gorm.DB, id, userID, message string) error {
	res := db.WithContext(ctx).
		Model(&domain.Chirp{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("message", message)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteChirp soft-deletes the chirp identified by id and owned by userID.
// If no rows are affected, it returns ErrNotFound.
func DeleteChirp(ctx context.Context, db *gorm.DB, id, userID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&domain.Chirp{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
