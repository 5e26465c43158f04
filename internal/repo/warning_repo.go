// Package repo implements the data persistence layer for moderation state,
// backed by GORM. This file provides repository functions for the Warning
// model. Warnings are append-only: rows are immutable once written and are
// only ever removed in bulk for a (chat_id, user_id) pair.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Gtajisan/p2a-modbot/internal/domain"
)

// AddWarning appends a warning row and returns the warning count for the
// (chatID, userID) pair including the row just written. The insert and the
// re-count run in one transaction so the returned count always reflects the
// new warning.
func AddWarning(ctx context.Context, db *gorm.DB, chatID string, userID int64, reason string, warnedBy int64) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w := &domain.Warning{
			ID:       uuid.NewString(),
			ChatID:   chatID,
			UserID:   userID,
			Reason:   reason,
			WarnedBy: warnedBy,
			WarnedAt: time.Now().UTC(),
		}
		if err := tx.Create(w).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Warning{}).
			Where("chat_id = ? AND user_id = ?", chatID, userID).
			Count(&count).Error
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ListWarnings returns all warnings for a user in a chat, most recent first.
// An empty slice is not an error.
func ListWarnings(ctx context.Context, db *gorm.DB, chatID string, userID int64) ([]domain.Warning, error) {
	var out []domain.Warning
	err := db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Order("warned_at desc").
		Find(&out).Error
	return out, err
}

// ClearWarnings removes every warning row for the (chatID, userID) pair in a
// single statement and returns the number of rows removed.
func ClearWarnings(ctx context.Context, db *gorm.DB, chatID string, userID int64) (int64, error) {
	res := db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Delete(&domain.Warning{})
	return res.RowsAffected, res.Error
}
