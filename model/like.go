package model

import "time"

// Like is one (user, song) membership row in the liked set.
// The composite primary key guarantees at most one row per pair.
type Like struct {
	UserID    string    `json:"userId" gorm:"column:user_id;primaryKey;size:64"`
	SongID    int64     `json:"songId" gorm:"column:song_id;primaryKey"`
	CreatedAt time.Time `json:"createdAt" gorm:"column:created_at;autoCreateTime"`
}

// TableName maps Like onto the liked_songs table.
func (Like) TableName() string {
	return "liked_songs"
}
