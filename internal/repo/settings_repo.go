// Package repo implements the data persistence layer for moderation state,
// backed by GORM. This file provides repository functions for the per-chat
// ChatSettings row. Settings always resolve to a value from the caller's
// perspective: an absent row yields the documented defaults, never an error.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Gtajisan/p2a-modbot/internal/domain"
)

// UpsertSettings inserts the settings row for a chat or overwrites all
// configurable fields if one already exists.
func UpsertSettings(ctx context.Context, db *gorm.DB, s *domain.ChatSettings) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "chat_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"welcome_message", "goodbye_message", "rules",
			"antiflood_enabled", "antiflood_limit",
		}),
	}).Create(s).Error
}

// GetSettings returns the settings row for a chat. A missing row is resolved
// to domain.DefaultSettings — only genuine DB failures surface as errors.
func GetSettings(ctx context.Context, db *gorm.DB, chatID string) (*domain.ChatSettings, error) {
	var s domain.ChatSettings
	err := db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.DefaultSettings(chatID), nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
