// Package services – ChirpService
//
// This file implements the ChirpService, which manages the lifecycle of
// chirps. It normalizes and validates messages, enforces the per-user chirp
// quota inside the insert transaction, enforces ownership on update and
// delete, and coordinates repository operations for the home and windowed
// feed listings.
//
// Service-level errors (e.g., ErrChirpNotFound, ErrChirpQuotaExceeded) are
// returned for predictable cases so handlers can map them to HTTP results
// consistently.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/tbourn/go-chirper-backend/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/unicode/norm"
)

// ChirpRepo defines the repository contract required by ChirpService.
// Implementations are responsible for persistence of chirp aggregates.
type ChirpRepo interface {
	// CreateChirp inserts a new chirp row authored by the given user.
	CreateChirp(ctx context.Context, db *gorm.DB, userID, message string) (*domain.Chirp, error)

	// GetChirp fetches a chirp by ID.
	GetChirp(ctx context.Context, db *gorm.DB, id string) (*domain.Chirp, error)

	// ListChirps returns all chirps, newest first (home feed).
	ListChirps(ctx context.Context, db *gorm.DB) ([]domain.Chirp, error)

	// CountChirpsSince returns the number of chirps inside the recency window.
	CountChirpsSince(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error)

	// ListChirpsSincePage returns a page of chirps inside the recency window.
	ListChirpsSincePage(ctx context.Context, db *gorm.DB, cutoff time.Time, offset, limit int) ([]domain.Chirp, error)

	// CountChirpsByUser returns the number of chirps the user has authored.
	CountChirpsByUser(ctx context.Context, db *gorm.DB, userID string) (int64, error)

	// UpdateChirpMessage updates a chirp's message (only if the user owns it).
	UpdateChirpMessage(ctx context.Context, db *gorm.DB, id, userID, message string) error

	// DeleteChirp soft-deletes a chirp (only if the user owns it).
	DeleteChirp(ctx context.Context, db *gorm.DB, id, userID string) error
}

// ChirpService provides chirp-level operations such as creating, editing,
// deleting, and listing chirps. It enforces the message length rules, the
// per-user quota, and ownership constraints.
type ChirpService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the chirp repository used by this service.
	Repo ChirpRepo

	// MaxMessageRunes caps stored messages by rune length.
	MaxMessageRunes int
	// Quota is the maximum number of chirps a single user may own.
	Quota int
	// FeedWindow bounds the recency-windowed feed (e.g., 7 days).
	FeedWindow time.Duration
}

// NewChirpService constructs a ChirpService with the conventional limits:
// 255-rune messages, ten chirps per user, and a seven-day feed window.
func NewChirpService(db *gorm.DB, r ChirpRepo) *ChirpService {
	return &ChirpService{
		DB:              db,
		Repo:            r,
		MaxMessageRunes: 255,
		Quota:           10,
		FeedWindow:      7 * 24 * time.Hour,
	}
}

// Create inserts a new chirp authored by userID with the provided message.
//
// Semantics and validation:
//   - The message is NFC-normalized and whitespace-trimmed before checks.
//   - An empty message yields ErrEmptyMessage; one longer than
//     MaxMessageRunes yields ErrMessageTooLong.
//   - A user already owning Quota chirps is rejected with
//     ErrChirpQuotaExceeded. The count-then-insert runs inside a transaction
//     so two concurrent creations cannot both squeeze past the limit.
func (s *ChirpService) Create(ctx context.Context, userID, message string) (*domain.Chirp, error) {
	tr := otel.Tracer("services/ChirpService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	message, err := s.normalize(message)
	if err != nil {
		return nil, err
	}

	var created *domain.Chirp
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := s.Repo.CountChirpsByUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if s.Quota > 0 && n >= int64(s.Quota) {
			return ErrChirpQuotaExceeded
		}
		c, err := s.Repo.CreateChirp(ctx, tx, userID, message)
		if err != nil {
			return err
		}
		created = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Update edits the message of a chirp, ensuring the chirp exists and belongs
// to the given user. A non-owner is rejected with ErrNotChirpOwner and the
// row is left unchanged.
func (s *ChirpService) Update(ctx context.Context, userID, chirpID, message string) error {
	tr := otel.Tracer("services/ChirpService")
	ctx, span := tr.Start(ctx, "Update",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("chirp.id", chirpID),
		),
	)
	defer span.End()

	c, err := s.Repo.GetChirp(ctx, s.DB, chirpID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrChirpNotFound
		}
		return err
	}
	// Ownership before validation: a non-owner learns nothing about the
	// payload rules.
	if c.UserID != userID {
		return ErrNotChirpOwner
	}

	message, err = s.normalize(message)
	if err != nil {
		return err
	}
	return s.Repo.UpdateChirpMessage(ctx, s.DB, chirpID, userID, message)
}

// Delete removes a chirp, ensuring it exists and belongs to the given user.
// A non-owner is rejected with ErrNotChirpOwner.
func (s *ChirpService) Delete(ctx context.Context, userID, chirpID string) error {
	tr := otel.Tracer("services/ChirpService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("chirp.id", chirpID),
		),
	)
	defer span.End()

	c, err := s.Repo.GetChirp(ctx, s.DB, chirpID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrChirpNotFound
		}
		return err
	}
	if c.UserID != userID {
		return ErrNotChirpOwner
	}
	return s.Repo.DeleteChirp(ctx, s.DB, chirpID, userID)
}

// Get fetches a single chirp by ID, mapping missing rows to ErrChirpNotFound.
func (s *ChirpService) Get(ctx context.Context, chirpID string) (*domain.Chirp, error) {
	c, err := s.Repo.GetChirp(ctx, s.DB, chirpID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChirpNotFound
		}
		return nil, err
	}
	return c, nil
}

// ListHome returns every chirp, newest first (the unfiltered home feed).
func (s *ChirpService) ListHome(ctx context.Context) ([]domain.Chirp, error) {
	return s.Repo.ListChirps(ctx, s.DB)
}

// ListRecentPage returns a page of chirps created inside the recency window,
// newest first, along with the total count inside the window. It applies
// defaults for invalid page/pageSize.
func (s *ChirpService) ListRecentPage(ctx context.Context, now time.Time, page, pageSize int) ([]domain.Chirp, int64, error) {
	tr := otel.Tracer("services/ChirpService")
	ctx, span := tr.Start(ctx, "ListRecentPage",
		trace.WithAttributes(
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize
	cutoff := s.WindowCutoff(now)

	total, err := s.Repo.CountChirpsSince(ctx, s.DB, cutoff)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Chirp{}, 0, nil
	}

	items, err := s.Repo.ListChirpsSincePage(ctx, s.DB, cutoff, offset, pageSize)
	return items, total, err
}

// WindowCutoff returns the oldest creation time still considered "recent"
// relative to now. Chirps created at or after the cutoff are inside the feed
// window; older ones are excluded.
func (s *ChirpService) WindowCutoff(now time.Time) time.Time {
	w := s.FeedWindow
	if w <= 0 {
		w = 7 * 24 * time.Hour
	}
	return now.Add(-w)
}

// normalize applies NFC normalization, trims surrounding whitespace, and
// enforces the length rules shared by the create and update paths.
func (s *ChirpService) normalize(message string) (string, error) {
	message = strings.TrimSpace(norm.NFC.String(message))
	if message == "" {
		return "", ErrEmptyMessage
	}
	if s.MaxMessageRunes > 0 && utf8.RuneCountInString(message) > s.MaxMessageRunes {
		return "", ErrMessageTooLong
	}
	return message, nil
}
