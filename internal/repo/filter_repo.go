// Package repo implements the data persistence layer for moderation state,
// backed by GORM. This file provides repository functions for the Filter
// model. Filters mirror notes: (chat_id, keyword) is a unique key with
// last-writer-wins upsert semantics. Keyword case normalization is the
// responsibility of the caller (services.ModerationStore); the repository
// persists keywords verbatim.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Gtajisan/p2a-modbot/internal/domain"
)

// UpsertFilter inserts a filter or, when the (chat_id, keyword) pair already
// exists, overwrites response, author, and timestamp in place.
func UpsertFilter(ctx context.Context, db *gorm.DB, chatID, keyword, response string, createdBy int64) error {
	f := &domain.Filter{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Keyword:   keyword,
		Response:  response,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}, {Name: "keyword"}},
		DoUpdates: clause.AssignmentColumns([]string{"response", "created_by", "created_at"}),
	}).Create(f).Error
}

// GetFilter fetches a single filter by chat and keyword, or ErrNotFound.
func GetFilter(ctx context.Context, db *gorm.DB, chatID, keyword string) (*domain.Filter, error) {
	var f domain.Filter
	err := db.WithContext(ctx).
		Where("chat_id = ? AND keyword = ?", chatID, keyword).
		First(&f).Error
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// ListFilters returns all filters for a chat ordered by keyword. An empty
// slice is not an error.
func ListFilters(ctx context.Context, db *gorm.DB, chatID string) ([]domain.Filter, error) {
	var out []domain.Filter
	err := db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("keyword").
		Find(&out).Error
	return out, err
}

// DeleteFilter removes a filter by chat and keyword. It reports whether a row
// existed and was removed.
func DeleteFilter(ctx context.Context, db *gorm.DB, chatID, keyword string) (bool, error) {
	res := db.WithContext(ctx).
		Where("chat_id = ? AND keyword = ?", chatID, keyword).
		Delete(&domain.Filter{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
