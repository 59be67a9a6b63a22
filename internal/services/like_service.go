// Package services – LikeService
//
// This file implements the LikeService, which governs how users like chirps.
// It enforces business rules (chirp existence, at most one like per user per
// chirp) and persists likes atomically in the database. Service-level errors
// (ErrChirpNotFound, ErrAlreadyLiked) are returned for predictable cases so
// handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-chirper-backend/internal/repo"
)

// LikeService implements the use-cases around chirp likes. It validates the
// operation (chirp existence, uniqueness) and persists the like using the
// provided GORM handle. The service is context-aware and opens its own
// transaction per call.
type LikeService struct {
	// DB is the database handle used for all like operations.
	// The handle may be a plain *gorm.DB or a transaction-bound handle.
	DB *gorm.DB
}

// Like records a like on chirpID on behalf of userID.
//
// Semantics and validation:
//   - chirpID must exist; otherwise ErrChirpNotFound.
//   - A user may like a given chirp at most once; attempting to do so again
//     yields ErrAlreadyLiked. Users may like their own chirps.
//
// Concurrency & atomicity:
//   - The operation runs inside a transaction so the existence check and the
//     insert are atomic. The application-level HasLiked check is only an
//     early exit; the unique index on (user_id, chirp_id) is the
//     authoritative guard, so two concurrent likes by the same user can
//     never both commit.
//
// Errors:
//   - Returns the service-level sentinel errors (ErrChirpNotFound,
//     ErrAlreadyLiked) for the validation cases above.
//   - Returns the underlying DB error for unexpected failures.
func (s *LikeService) Like(ctx context.Context, userID, chirpID string) error {
	tr := otel.Tracer("services/LikeService")
	ctx, span := tr.Start(ctx, "Like",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("chirp.id", chirpID),
		),
	)
	defer span.End()

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1) Verify the chirp exists.
		if _, err := repo.GetChirp(ctx, tx, chirpID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrChirpNotFound
			}
			return err
		}

		// 2) Fast path: reject an obvious duplicate before inserting.
		liked, err := repo.HasLiked(ctx, tx, userID, chirpID)
		if err != nil {
			return err
		}
		if liked {
			return ErrAlreadyLiked
		}

		// 3) Insert with (user_id, chirp_id) uniqueness semantics.
		if err := repo.CreateLike(ctx, tx, userID, chirpID); err != nil {
			// Map duplicate key to a stable service error.
			if errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicate(err) {
				return ErrAlreadyLiked
			}
			return err
		}
		return nil
	})
}

// Count returns the number of likes recorded for chirpID.
func (s *LikeService) Count(ctx context.Context, chirpID string) (int64, error) {
	return repo.CountLikes(ctx, s.DB, chirpID)
}

// isDuplicate attempts to detect unique-constraint violations across drivers
// that may not map to gorm.ErrDuplicatedKey.
func isDuplicate(err error) bool {
	// SQLite typically: "UNIQUE constraint failed"
	// Postgres typically: "duplicate key value violates unique constraint"
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
