// Package domain defines the persistence models for users, chirps, and
// likes. These types are mapped with GORM and form the core data layer
// of the chirper application.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// User represents a registered account. Users own zero or more chirps and
// may like other users' chirps. Credentials are stored as a bcrypt hash;
// the plaintext password never touches the database.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Username: unique handle used for login and display.
//   - Email: unique contact address.
//   - PasswordHash: bcrypt digest of the password (never serialized).
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type User struct {
	ID           string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Username     string    `json:"username"   gorm:"type:varchar(64);not null;uniqueIndex:ux_users_username"`
	Email        string    `json:"email"      gorm:"type:varchar(255);not null;uniqueIndex:ux_users_email"`
	PasswordHash string    `json:"-"          gorm:"type:varchar(255);not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Chirp represents a short text post authored by a user. The message is
// limited to 255 characters; ownership is fixed at creation time and only
// the owner may edit or delete the row.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - UserID: identifier of the author; indexed for per-user listings.
//   - Message: post body, 1–255 characters (enforced at the service layer,
//     mirrored by the varchar(255) column).
//   - CreatedAt: indexed so the recency-windowed feed stays cheap.
//   - UpdatedAt: timestamp managed by GORM.
//   - DeletedAt: soft deletion marker; deleted chirps disappear from every
//     default-scoped query.
type Chirp struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string         `json:"user_id"    gorm:"type:char(36);not null;index:idx_user_chirps"`
	Message   string         `json:"message"    gorm:"type:varchar(255);not null"`
	CreatedAt time.Time      `json:"created_at" gorm:"index:idx_chirps_created"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Chirp.
func (Chirp) TableName() string { return "chirps" }

// Like records a single endorsement of a chirp by a user. The unique index
// on (user_id, chirp_id) is the authoritative guard against duplicate likes;
// the service-level existence check is only a fast path.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - UserID: identifier of the liking user.
//   - ChirpID: foreign key to the liked chirp (cascade-deleted with it).
//   - CreatedAt: timestamp managed by GORM.
type Like struct {
	ID        string    `json:"id"       gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"  gorm:"type:char(36);not null;uniqueIndex:ux_likes_user_chirp,priority:1"`
	ChirpID   string    `json:"chirp_id" gorm:"type:char(36);not null;index;uniqueIndex:ux_likes_user_chirp,priority:2"`
	CreatedAt time.Time `json:"created_at"`

	// Chirp is the liked post. Likes are cascade-deleted if the chirp is
	// removed.
	Chirp Chirp `json:"-" gorm:"foreignKey:ChirpID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Like.
func (Like) TableName() string { return "likes" }
