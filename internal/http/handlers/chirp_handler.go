// Chirp HTTP handlers.
//
// This file exposes the endpoints for chirp resources:
//   - GET    /            (home feed, all chirps)
//   - GET    /chirps      (recent feed, windowed + paginated, ETag support)
//   - POST   /chirps      (create)
//   - PUT    /chirps/{id} (edit own chirp)
//   - DELETE /chirps/{id} (delete own chirp)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses
// and the redirect-style successes the mutation endpoints answer with).
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-chirper-backend/internal/domain"
	"github.com/tbourn/go-chirper-backend/internal/http/middleware"
	"github.com/tbourn/go-chirper-backend/internal/repo"
	"github.com/tbourn/go-chirper-backend/internal/services"
	"github.com/tbourn/go-chirper-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// ChirpService defines chirp lifecycle operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ChirpService interface {
	// Create posts a new chirp for userID, subject to validation and quota.
	Create(ctx context.Context, userID, message string) (*domain.Chirp, error)
	// Update edits a chirp that belongs to userID.
	Update(ctx context.Context, userID, chirpID, message string) error
	// Delete removes a chirp that belongs to userID.
	Delete(ctx context.Context, userID, chirpID string) error
	// Get fetches a single chirp by ID.
	Get(ctx context.Context, chirpID string) (*domain.Chirp, error)
	// ListHome returns every chirp, newest first.
	ListHome(ctx context.Context) ([]domain.Chirp, error)
	// ListRecentPage returns a page of chirps inside the recency window and
	// the total count inside the window.
	ListRecentPage(ctx context.Context, now time.Time, page, pageSize int) ([]domain.Chirp, int64, error)
	// WindowCutoff exposes the feed window boundary for conditional requests.
	WindowCutoff(now time.Time) time.Time
}

// LikeService defines operations to record likes on chirps.
type LikeService interface {
	// Like records a single like for chirpID by userID.
	Like(ctx context.Context, userID, chirpID string) error
}

// AuthService defines account registration and login operations.
type AuthService interface {
	// Register creates a new account.
	Register(ctx context.Context, username, email, password string) (*domain.User, error)
	// Login verifies credentials and returns a signed bearer token.
	Login(ctx context.Context, username, password string) (string, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for chirps, likes, and accounts.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	chirpSvc ChirpService
	likeSvc  LikeService
	authSvc  AuthService

	// idemTTL bounds how long an Idempotency-Key replay stays valid.
	idemTTL time.Duration
}

// New constructs and returns a Handlers instance bound to the given services.
func New(chirpSvc ChirpService, likeSvc LikeService, authSvc AuthService, idemTTL time.Duration) *Handlers {
	if idemTTL <= 0 {
		idemTTL = 24 * time.Hour
	}
	return &Handlers{chirpSvc: chirpSvc, likeSvc: likeSvc, authSvc: authSvc, idemTTL: idemTTL}
}

// userID extracts the authenticated user id from Gin context (set by the JWT
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

// db digs the GORM handle out of the concrete chirp service; used only for
// the ETag pre-check and idempotency bookkeeping, which are transport
// concerns the service interface deliberately omits.
func (h *Handlers) db() *gorm.DB {
	if svc, ok := h.chirpSvc.(*services.ChirpService); ok {
		return svc.DB
	}
	return nil
}

//
// DTOs
//

// CreateChirpRequest is the JSON payload for posting a chirp.
type CreateChirpRequest struct {
	// Message is the chirp body (1–255 chars after trimming).
	Message string `json:"message" example:"My first chirp!"`
}

// UpdateChirpRequest is the JSON payload for editing a chirp.
type UpdateChirpRequest struct {
	// Message is the replacement body (1–255 chars after trimming).
	Message string `json:"message" example:"Edited chirp"`
}

// ChirpView decorates a chirp with its like count for feed responses.
type ChirpView struct {
	domain.Chirp
	Likes int64 `json:"likes"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// FeedResponse wraps a page of chirps and pagination information.
type FeedResponse struct {
	Chirps     []ChirpView `json:"chirps"`
	Pagination Pagination  `json:"pagination"`
}

// HomeFeedResponse wraps the unfiltered home listing.
type HomeFeedResponse struct {
	Chirps []ChirpView `json:"chirps"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.Clamp(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return
}

// decorate attaches like counts to chirps in one grouped query. On error the
// counts default to zero; the feed itself still renders.
func (h *Handlers) decorate(ctx context.Context, chirps []domain.Chirp) []ChirpView {
	views := make([]ChirpView, len(chirps))
	ids := make([]string, len(chirps))
	for i, ch := range chirps {
		views[i] = ChirpView{Chirp: ch}
		ids[i] = ch.ID
	}
	if db := h.db(); db != nil {
		if counts, err := repo.LikeCounts(ctx, db, ids); err == nil {
			for i := range views {
				views[i].Likes = counts[views[i].ID]
			}
		}
	}
	return views
}

//
// Handlers
//

// HomeFeed godoc
// @ID          homeFeed
// @Summary     Home feed
// @Description Returns every chirp, newest first, with like counts.
// @Tags        Chirps
// @Produce     json
//
// @Success     200  {object}  handlers.HomeFeedResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      / [get]
func (h *Handlers) HomeFeed(c *gin.Context) {
	ctx := c.Request.Context()
	chirps, err := h.chirpSvc.ListHome(ctx)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, HomeFeedResponse{Chirps: h.decorate(ctx, chirps)})
}

// ListRecent godoc
// @ID          listRecentChirps
// @Summary     Recent chirps (windowed, paginated)
// @Description Returns a page of chirps created inside the recency window. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Chirps
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.FeedResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chirps [get]
func (h *Handlers) ListRecent(c *gin.Context) {
	ctx := c.Request.Context()
	now := time.Now().UTC()
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if db := h.db(); db != nil {
		count, maxTS, err := repo.ChirpsStats(ctx, db, h.chirpSvc.WindowCutoff(now))
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"chirps:%d:%d"`, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.chirpSvc.ListRecentPage(ctx, now, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	resp := FeedResponse{
		Chirps: h.decorate(ctx, items),
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	}
	ok(c, http.StatusOK, resp)
}

// CreateChirp godoc
// @ID          createChirp
// @Summary     Post a new chirp
// @Description Creates a chirp for the current user. Supports safe retries via the Idempotency-Key header.
// @Tags        Chirps
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)" example(user123)
// @Param       Idempotency-Key  header  string  false "Safe-retry key"
// @Param       body             body    handlers.CreateChirpRequest  true  "Create chirp payload"
//
// @Success     201  {object}  domain.Chirp
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     422  {object}  handlers.ErrorResponse  "Validation failed / chirp limit reached"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /chirps [post]
func (h *Handlers) CreateChirp(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)

	// Replay: return the originally created chirp without re-executing.
	if middleware.IsReplay(c) {
		if key, has := middleware.GetIdempotencyKey(c); has {
			if db := h.db(); db != nil {
				if rec, err := repo.GetIdempotency(ctx, db, uid, key, time.Now().UTC()); err == nil && rec != nil {
					if ch, err := h.chirpSvc.Get(ctx, rec.ChirpID); err == nil {
						ok(c, rec.Status, ch)
						return
					}
				}
			}
		}
	}

	var req CreateChirpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	ch, err := h.chirpSvc.Create(ctx, uid, req.Message)
	if err != nil {
		switch err {
		case services.ErrEmptyMessage:
			fail(c, http.StatusUnprocessableEntity, ErrCodeValidationFailed, "message must not be empty")
		case services.ErrMessageTooLong:
			fail(c, http.StatusUnprocessableEntity, ErrCodeValidationFailed, "message must be at most 255 characters")
		case services.ErrChirpQuotaExceeded:
			fail(c, http.StatusUnprocessableEntity, ErrCodeQuotaExceeded, services.ErrChirpQuotaExceeded.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}

	// Record the result for future replays (best effort).
	if key, has := middleware.GetIdempotencyKey(c); has {
		if db := h.db(); db != nil {
			_, _ = repo.CreateIdempotency(ctx, db, uid, key, ch.ID, http.StatusCreated, h.idemTTL)
		}
	}

	ok(c, http.StatusCreated, ch)
}

// UpdateChirp godoc
// @ID          updateChirp
// @Summary     Edit a chirp
// @Description Replaces the message of a chirp owned by the current user and redirects home.
// @Tags        Chirps
// @Accept      json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Chirp ID (UUID)"        format(uuid)
// @Param       body       body    handlers.UpdateChirpRequest  true  "New message"
//
// @Success     302  {string} string "Found"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     403  {object} handlers.ErrorResponse "Not the owner"
// @Failure     404  {object} handlers.ErrorResponse "Chirp not found"
// @Failure     422  {object} handlers.ErrorResponse "Validation failed"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chirps/{id} [put]
func (h *Handlers) UpdateChirp(c *gin.Context) {
	chirpID := c.Param("id")
	if _, err := uuid.Parse(chirpID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chirp id must be a UUID")
		return
	}

	var req UpdateChirpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	if err := h.chirpSvc.Update(c.Request.Context(), userID(c), chirpID, req.Message); err != nil {
		switch err {
		case services.ErrChirpNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chirp not found")
		case services.ErrNotChirpOwner:
			fail(c, http.StatusForbidden, ErrCodeForbidden, "only the author may edit this chirp")
		case services.ErrEmptyMessage:
			fail(c, http.StatusUnprocessableEntity, ErrCodeValidationFailed, "message must not be empty")
		case services.ErrMessageTooLong:
			fail(c, http.StatusUnprocessableEntity, ErrCodeValidationFailed, "message must be at most 255 characters")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	redirectHome(c)
}

// DeleteChirp godoc
// @ID          deleteChirp
// @Summary     Delete a chirp
// @Description Removes a chirp owned by the current user and redirects home.
// @Tags        Chirps
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Chirp ID (UUID)"        format(uuid)
//
// @Success     302  {string} string "Found"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     403  {object} handlers.ErrorResponse "Not the owner"
// @Failure     404  {object} handlers.ErrorResponse "Chirp not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chirps/{id} [delete]
func (h *Handlers) DeleteChirp(c *gin.Context) {
	chirpID := c.Param("id")
	if _, err := uuid.Parse(chirpID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chirp id must be a UUID")
		return
	}

	if err := h.chirpSvc.Delete(c.Request.Context(), userID(c), chirpID); err != nil {
		switch err {
		case services.ErrChirpNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chirp not found")
		case services.ErrNotChirpOwner:
			fail(c, http.StatusForbidden, ErrCodeForbidden, "only the author may delete this chirp")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	redirectHome(c)
}
