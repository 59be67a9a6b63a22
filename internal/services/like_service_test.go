package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-chirper-backend/internal/domain"
	"github.com/tbourn/go-chirper-backend/internal/repo"
)

func TestLikeService_Like_HappyPath(t *testing.T) {
	db := newSvcDB(t)
	svc := &LikeService{DB: db}
	ctx := context.Background()

	c, err := repo.CreateChirp(ctx, db, "alice", "like me")
	if err != nil {
		t.Fatalf("seed chirp: %v", err)
	}

	if err := svc.Like(ctx, "bob", c.ID); err != nil {
		t.Fatalf("Like error: %v", err)
	}
	n, err := svc.Count(ctx, c.ID)
	if err != nil || n != 1 {
		t.Fatalf("Count = %d, %v; want 1, nil", n, err)
	}
}

func TestLikeService_Like_MissingChirp(t *testing.T) {
	db := newSvcDB(t)
	svc := &LikeService{DB: db}

	if err := svc.Like(context.Background(), "bob", "no-such-chirp"); !errors.Is(err, ErrChirpNotFound) {
		t.Fatalf("missing chirp err = %v; want ErrChirpNotFound", err)
	}
}

func TestLikeService_Like_SecondLikeRejected(t *testing.T) {
	db := newSvcDB(t)
	svc := &LikeService{DB: db}
	ctx := context.Background()

	c, err := repo.CreateChirp(ctx, db, "alice", "only once")
	if err != nil {
		t.Fatalf("seed chirp: %v", err)
	}

	if err := svc.Like(ctx, "bob", c.ID); err != nil {
		t.Fatalf("first like: %v", err)
	}
	if err := svc.Like(ctx, "bob", c.ID); !errors.Is(err, ErrAlreadyLiked) {
		t.Fatalf("second like err = %v; want ErrAlreadyLiked", err)
	}

	// exactly one row survives
	var n int64
	if err := db.Model(&domain.Like{}).Where("user_id = ? AND chirp_id = ?", "bob", c.ID).Count(&n).Error; err != nil || n != 1 {
		t.Fatalf("like rows = %d, %v; want exactly 1", n, err)
	}
}

func TestLikeService_Like_OwnChirpAllowed(t *testing.T) {
	db := newSvcDB(t)
	svc := &LikeService{DB: db}
	ctx := context.Background()

	c, err := repo.CreateChirp(ctx, db, "alice", "self love")
	if err != nil {
		t.Fatalf("seed chirp: %v", err)
	}
	if err := svc.Like(ctx, "alice", c.ID); err != nil {
		t.Fatalf("liking your own chirp must be allowed: %v", err)
	}
}

func TestLikeService_Like_DistinctUsersAccumulate(t *testing.T) {
	db := newSvcDB(t)
	svc := &LikeService{DB: db}
	ctx := context.Background()

	c, err := repo.CreateChirp(ctx, db, "alice", "popular")
	if err != nil {
		t.Fatalf("seed chirp: %v", err)
	}
	for _, u := range []string{"bob", "carol", "dave"} {
		if err := svc.Like(ctx, u, c.ID); err != nil {
			t.Fatalf("like by %s: %v", u, err)
		}
	}
	n, err := svc.Count(ctx, c.ID)
	if err != nil || n != 3 {
		t.Fatalf("Count = %d, %v; want 3, nil", n, err)
	}
}
