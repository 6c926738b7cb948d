package models

import "time"

type User struct {
	ID                     int        `gorm:"primary_key;autoIncrement" json:"id"`
	Email                  string     `gorm:"unique;not null" json:"email"`
	PasswordHash           string     `gorm:"not null" json:"-"` // json:"-" prevents password from being exposed in API
	Name                   string     `gorm:"not null" json:"name"`
	Nickname               string     `json:"nickname"`
	Bio                    string     `gorm:"type:text" json:"bio"`
	About                  string     `gorm:"type:text" json:"about"`
	IsAdmin                bool       `gorm:"default:false" json:"is_admin"`
	EmailVerified          bool       `gorm:"default:false" json:"email_verified"`
	EmailVerificationToken string     `json:"-"`
	VerificationExpiry     *time.Time `json:"-"`
	ResetToken             string     `json:"-"`
	ResetExpiry            *time.Time `json:"-"`
	CreatedAt              time.Time  `json:"created_at"`
}

type Post struct {
	ID        uint      `gorm:"primary_key" json:"id"`
	UserID    int       `gorm:"not null;index" json:"user_id"` // auto-filled from session
	Title     string    `gorm:"not null" json:"title"`
	Content   string    `gorm:"type:text" json:"content"` // may start with a [font:name] presentation marker
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Computed at query time, never persisted.
	LikeCount int      `gorm:"-" json:"like_count"`
	UserLiked bool     `gorm:"-" json:"user_liked"`
	Hashtags  []string `gorm:"-" json:"hashtags"`
}

type Hashtag struct {
	ID   uint   `gorm:"primary_key" json:"id"`
	Name string `gorm:"unique;not null" json:"name"` // case-sensitive, never deleted once created
}

type PostHashtag struct {
	ID        uint `gorm:"primary_key"`
	PostID    int  `gorm:"not null;uniqueIndex:idx_post_hashtag" json:"post_id"`
	HashtagID int  `gorm:"not null;uniqueIndex:idx_post_hashtag" json:"hashtag_id"`
}

// Like rows are hard-deleted; a soft-delete column would defeat the
// uniqueness guarantee on (user_id, post_id).
type Like struct {
	ID        uint      `gorm:"primary_key" json:"id"`
	UserID    int       `gorm:"not null;uniqueIndex:idx_user_post" json:"user_id"`
	PostID    int       `gorm:"not null;uniqueIndex:idx_user_post" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}
