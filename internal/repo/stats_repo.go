// Package repo implements the data persistence layer for moderation state,
// backed by GORM. This file provides the atomic statistics upsert for the
// per-chat ChatStats row.
//
// Webhook deliveries for the same chat are not serialized, so the update must
// not read-modify-write: counters are incremented and the user-count
// high-water mark is resolved inside a single conflict-update statement.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Gtajisan/p2a-modbot/internal/domain"
)

// StatsDelta describes one incremental statistics update. Messages and
// Commands are added to the stored counters; Users is a candidate for the
// high-water mark and only replaces the stored value when larger.
type StatsDelta struct {
	Messages int64
	Commands int64
	Users    int64
	When     time.Time
}

// UpdateStats applies delta to the chat's statistics row as a single atomic
// upsert. The row is created on first touch. Concurrent deliveries for the
// same chat cannot lose counter increments because the arithmetic happens in
// the conflict-update clause, not in application code.
func UpdateStats(ctx context.Context, db *gorm.DB, chatID string, delta StatsDelta) error {
	when := delta.When
	if when.IsZero() {
		when = time.Now().UTC()
	}
	row := &domain.ChatStats{
		ChatID:           chatID,
		MessageCount:     delta.Messages,
		UserCount:        delta.Users,
		CommandsExecuted: delta.Commands,
		LastActivity:     when,
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "chat_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"message_count":     gorm.Expr("message_count + ?", delta.Messages),
			"user_count":        gorm.Expr("MAX(user_count, ?)", delta.Users),
			"commands_executed": gorm.Expr("commands_executed + ?", delta.Commands),
			"last_activity":     when,
		}),
	}).Create(row).Error
}

// GetStats returns the statistics row for a chat, or ErrNotFound when the
// chat has never been counted.
func GetStats(ctx context.Context, db *gorm.DB, chatID string) (*domain.ChatStats, error) {
	var s domain.ChatStats
	err := db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}
