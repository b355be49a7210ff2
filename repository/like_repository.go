package repository

import (
	"context"
	"errors"
	"fmt"

	"reverbfm/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LikeRepository defines the interface for liked-set membership operations.
type LikeRepository interface {
	InsertLike(ctx context.Context, userID string, songID int64) error
	DeleteLike(ctx context.Context, userID string, songID int64) error
	IsLiked(ctx context.Context, userID string, songID int64) (bool, error)
}

// gormLikeRepository implements LikeRepository on GORM.
type gormLikeRepository struct {
	DB *gorm.DB
}

// NewGormLikeRepository creates a new instance of gormLikeRepository.
func NewGormLikeRepository(db *gorm.DB) LikeRepository {
	return &gormLikeRepository{DB: db}
}

// InsertLike adds a (user, song) membership row. Inserting a pair that is
// already present is a no-op; the composite primary key prevents duplicates.
func (r *gormLikeRepository) InsertLike(ctx context.Context, userID string, songID int64) error {
	like := model.Like{UserID: userID, SongID: songID}
	err := r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&like).Error
	if err != nil {
		return fmt.Errorf("failed to insert like (%s, %d): %w", userID, songID, err)
	}
	return nil
}

// DeleteLike removes a (user, song) membership row. Deleting an absent pair
// is a no-op.
func (r *gormLikeRepository) DeleteLike(ctx context.Context, userID string, songID int64) error {
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND song_id = ?", userID, songID).
		Delete(&model.Like{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete like (%s, %d): %w", userID, songID, err)
	}
	return nil
}

// IsLiked reports whether the (user, song) pair is in the liked set.
func (r *gormLikeRepository) IsLiked(ctx context.Context, userID string, songID int64) (bool, error) {
	var like model.Like
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND song_id = ?", userID, songID).
		First(&like).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check like (%s, %d): %w", userID, songID, err)
	}
	return true, nil
}
