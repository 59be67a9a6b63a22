package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-chirper-backend/internal/domain"
	"github.com/tbourn/go-chirper-backend/internal/http/middleware"
	"github.com/tbourn/go-chirper-backend/internal/repo"
	"github.com/tbourn/go-chirper-backend/internal/services"
)

// ---------- test DB + repo shim ----------

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Unique DSN per call to avoid cross-test contamination
	dsn := fmt.Sprintf("file:chirp_handlers_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	db.Exec("PRAGMA foreign_keys=ON;")
	if err := db.AutoMigrate(&domain.User{}, &domain.Chirp{}, &domain.Like{}, &domain.Idempotency{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Minimal shim implementing services.ChirpRepo using the repo package
// (mirrors the wiring in router.go).
type testChirpRepo struct{}

func (testChirpRepo) CreateChirp(ctx context.Context, db *gorm.DB, userID, message string) (*domain.Chirp, error) {
	return repo.CreateChirp(ctx, db, userID, message)
}
func (testChirpRepo) GetChirp(ctx context.Context, db *gorm.DB, id string) (*domain.Chirp, error) {
	return repo.GetChirp(ctx, db, id)
}
func (testChirpRepo) ListChirps(ctx context.Context, db *gorm.DB) ([]domain.Chirp, error) {
	return repo.ListChirps(ctx, db)
}
func (testChirpRepo) CountChirpsSince(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	return repo.CountChirpsSince(ctx, db, cutoff)
}
func (testChirpRepo) ListChirpsSincePage(ctx context.Context, db *gorm.DB, cutoff time.Time, offset, limit int) ([]domain.Chirp, error) {
	return repo.ListChirpsSincePage(ctx, db, cutoff, offset, limit)
}
func (testChirpRepo) CountChirpsByUser(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return repo.CountChirpsByUser(ctx, db, userID)
}
func (testChirpRepo) UpdateChirpMessage(ctx context.Context, db *gorm.DB, id, userID, message string) error {
	return repo.UpdateChirpMessage(ctx, db, id, userID, message)
}
func (testChirpRepo) DeleteChirp(ctx context.Context, db *gorm.DB, id, userID string) error {
	return repo.DeleteChirp(ctx, db, id, userID)
}

// newHandlerRig wires real services over an in-memory DB and returns the
// engine plus the DB for seeding and assertions.
func newHandlerRig(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newHandlerDB(t)
	chirpSvc := services.NewChirpService(db, testChirpRepo{})
	likeSvc := &services.LikeService{DB: db}
	authSvc := &services.AuthService{DB: db, JWTSecret: []byte("test"), TokenTTL: time.Hour}
	h := New(chirpSvc, likeSvc, authSvc, time.Hour)

	r := gin.New()
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{},
		func(ctx context.Context, userID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	r.GET("/", h.HomeFeed)
	r.GET("/chirps", h.ListRecent)
	r.POST("/chirps", h.CreateChirp)
	r.PUT("/chirps/:id", h.UpdateChirp)
	r.DELETE("/chirps/:id", h.DeleteChirp)
	r.POST("/chirps/:id/like", h.LikeChirp)
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	return r, db
}

func doJSON(t *testing.T, r *gin.Engine, method, path, user string, body any, extra ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	for _, f := range extra {
		f(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ---------- create ----------

func TestCreateChirp_Created(t *testing.T) {
	r, db := newHandlerRig(t)

	w := doJSON(t, r, http.MethodPost, "/chirps", "alice", CreateChirpRequest{Message: "hello feed"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var got domain.Chirp
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID == "" || got.UserID != "alice" || got.Message != "hello feed" {
		t.Fatalf("unexpected chirp: %+v", got)
	}

	var n int64
	if err := db.Model(&domain.Chirp{}).Count(&n).Error; err != nil || n != 1 {
		t.Fatalf("persisted rows = %d, %v; want 1", n, err)
	}
}

func TestCreateChirp_ValidationFailures(t *testing.T) {
	r, _ := newHandlerRig(t)

	cases := []struct {
		name     string
		message  string
		wantCode string
	}{
		{"empty", "", ErrCodeValidationFailed},
		{"whitespace only", "   ", ErrCodeValidationFailed},
		{"too long", strings.Repeat("a", 256), ErrCodeValidationFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/chirps", "alice", CreateChirpRequest{Message: tc.message})
			if w.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Code != tc.wantCode {
				t.Fatalf("code = %q; want %q", resp.Code, tc.wantCode)
			}
		})
	}
}

func TestCreateChirp_BadJSON(t *testing.T) {
	r, _ := newHandlerRig(t)

	req := httptest.NewRequest(http.MethodPost, "/chirps", strings.NewReader("{nope"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", w.Code)
	}
}

func TestCreateChirp_QuotaExceeded(t *testing.T) {
	r, _ := newHandlerRig(t)

	for i := 0; i < 10; i++ {
		w := doJSON(t, r, http.MethodPost, "/chirps", "alice", CreateChirpRequest{Message: fmt.Sprintf("n%d", i)})
		if w.Code != http.StatusCreated {
			t.Fatalf("chirp %d status = %d", i, w.Code)
		}
	}

	w := doJSON(t, r, http.MethodPost, "/chirps", "alice", CreateChirpRequest{Message: "over"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d; want 422", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != ErrCodeQuotaExceeded || resp.Message != "chirp limit reached" {
		t.Fatalf("unexpected error envelope: %+v", resp)
	}
}

func TestCreateChirp_IdempotentReplay(t *testing.T) {
	r, db := newHandlerRig(t)

	withKey := func(req *http.Request) { req.Header.Set(middleware.HeaderIdempotencyKey, "retry-1") }

	w1 := doJSON(t, r, http.MethodPost, "/chirps", "alice", CreateChirpRequest{Message: "send once"}, withKey)
	if w1.Code != http.StatusCreated {
		t.Fatalf("first status = %d, body = %s", w1.Code, w1.Body.String())
	}
	var first domain.Chirp
	if err := json.Unmarshal(w1.Body.Bytes(), &first); err != nil {
		t.Fatalf("decode first: %v", err)
	}

	// Same user + key: the stored result is replayed, nothing new is written.
	w2 := doJSON(t, r, http.MethodPost, "/chirps", "alice", CreateChirpRequest{Message: "send once"}, withKey)
	if w2.Code != http.StatusCreated {
		t.Fatalf("replay status = %d, body = %s", w2.Code, w2.Body.String())
	}
	var second domain.Chirp
	if err := json.Unmarshal(w2.Body.Bytes(), &second); err != nil {
		t.Fatalf("decode replay: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("replay returned a different chirp: %s vs %s", second.ID, first.ID)
	}

	var n int64
	if err := db.Model(&domain.Chirp{}).Count(&n).Error; err != nil || n != 1 {
		t.Fatalf("chirp rows = %d, %v; want exactly 1 after retry", n, err)
	}
}

// ---------- feeds ----------

func TestHomeFeed_NewestFirstWithLikeCounts(t *testing.T) {
	r, db := newHandlerRig(t)

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, m := range []string{"first", "second"} {
		c := &domain.Chirp{ID: fmt.Sprintf("c%d", i), UserID: "alice", Message: m, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := db.Create(c).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	if err := repo.CreateLike(context.Background(), db, "bob", "c1"); err != nil {
		t.Fatalf("seed like: %v", err)
	}

	w := doJSON(t, r, http.MethodGet, "/", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp HomeFeedResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Chirps) != 2 || resp.Chirps[0].Message != "second" {
		t.Fatalf("feed order wrong: %+v", resp.Chirps)
	}
	if resp.Chirps[0].Likes != 1 || resp.Chirps[1].Likes != 0 {
		t.Fatalf("like counts wrong: %+v", resp.Chirps)
	}
}

func TestListRecent_WindowPaginationAndETag(t *testing.T) {
	r, db := newHandlerRig(t)

	now := time.Now().UTC()
	seed := func(id string, age time.Duration) {
		c := &domain.Chirp{ID: id, UserID: "alice", Message: id, CreatedAt: now.Add(-age), UpdatedAt: now.Add(-age)}
		if err := db.Create(c).Error; err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
	seed("fresh", time.Hour)
	seed("aging", 3*24*time.Hour)
	seed("stale", 10*24*time.Hour)

	w := doJSON(t, r, http.MethodGet, "/chirps?page=1&page_size=10", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	etag := w.Header().Get("ETag")
	if etag == "" || !strings.HasPrefix(etag, `W/"chirps:`) {
		t.Fatalf("missing weak ETag: %q", etag)
	}

	var resp FeedResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Pagination.Total != 2 || len(resp.Chirps) != 2 {
		t.Fatalf("window filtering wrong: %+v", resp)
	}
	for _, c := range resp.Chirps {
		if c.ID == "stale" {
			t.Fatalf("chirp outside window leaked")
		}
	}
	if resp.Pagination.Page != 1 || resp.Pagination.PageSize != 10 || resp.Pagination.HasNext {
		t.Fatalf("pagination meta wrong: %+v", resp.Pagination)
	}

	// Conditional request with the same ETag answers 304 with no body.
	w2 := doJSON(t, r, http.MethodGet, "/chirps?page=1&page_size=10", "", nil, func(req *http.Request) {
		req.Header.Set("If-None-Match", etag)
	})
	if w2.Code != http.StatusNotModified {
		t.Fatalf("conditional status = %d; want 304", w2.Code)
	}
	if w2.Body.Len() != 0 {
		t.Fatalf("304 must have empty body, got %q", w2.Body.String())
	}
}

func TestListRecent_PageSizeClamped(t *testing.T) {
	r, _ := newHandlerRig(t)

	w := doJSON(t, r, http.MethodGet, "/chirps?page=-3&page_size=9999", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp FeedResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Pagination.Page != 1 || resp.Pagination.PageSize != 100 {
		t.Fatalf("clamping wrong: %+v", resp.Pagination)
	}
}

// ---------- update / delete ----------

func TestUpdateChirp_RedirectsHomeOnSuccess(t *testing.T) {
	r, db := newHandlerRig(t)

	c, err := repo.CreateChirp(context.Background(), db, "alice", "before")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := doJSON(t, r, http.MethodPut, "/chirps/"+c.ID, "alice", UpdateChirpRequest{Message: "after"})
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d; want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/" {
		t.Fatalf("Location = %q; want /", loc)
	}

	got, err := repo.GetChirp(context.Background(), db, c.ID)
	if err != nil || got.Message != "after" {
		t.Fatalf("edit not persisted: %+v, %v", got, err)
	}
}

func TestUpdateChirp_ErrorMapping(t *testing.T) {
	r, db := newHandlerRig(t)

	c, err := repo.CreateChirp(context.Background(), db, "alice", "mine")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	// invalid id
	w := doJSON(t, r, http.MethodPut, "/chirps/not-a-uuid", "alice", UpdateChirpRequest{Message: "x"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d; want 400", w.Code)
	}
	// missing chirp
	w = doJSON(t, r, http.MethodPut, "/chirps/"+uuid.NewString(), "alice", UpdateChirpRequest{Message: "x"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing status = %d; want 404", w.Code)
	}
	// not the owner
	w = doJSON(t, r, http.MethodPut, "/chirps/"+c.ID, "mallory", UpdateChirpRequest{Message: "x"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("non-owner status = %d; want 403", w.Code)
	}
	// invalid payload
	w = doJSON(t, r, http.MethodPut, "/chirps/"+c.ID, "alice", UpdateChirpRequest{Message: strings.Repeat("a", 256)})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("long message status = %d; want 422", w.Code)
	}

	got, err := repo.GetChirp(context.Background(), db, c.ID)
	if err != nil || got.Message != "mine" {
		t.Fatalf("chirp must be unchanged after failures: %+v, %v", got, err)
	}
}

func TestDeleteChirp_OwnerOnlyAndRedirect(t *testing.T) {
	r, db := newHandlerRig(t)

	c, err := repo.CreateChirp(context.Background(), db, "alice", "bye")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := doJSON(t, r, http.MethodDelete, "/chirps/"+c.ID, "mallory", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("non-owner status = %d; want 403", w.Code)
	}

	w = doJSON(t, r, http.MethodDelete, "/chirps/"+c.ID, "alice", nil)
	if w.Code != http.StatusFound {
		t.Fatalf("owner status = %d; want 302", w.Code)
	}

	if _, err := repo.GetChirp(context.Background(), db, c.ID); err == nil {
		t.Fatalf("chirp still readable after delete")
	}

	// a second delete finds nothing
	w = doJSON(t, r, http.MethodDelete, "/chirps/"+c.ID, "alice", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("double delete status = %d; want 404", w.Code)
	}
}
