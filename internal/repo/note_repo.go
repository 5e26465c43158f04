// Package repo implements the data persistence layer for moderation state,
// backed by GORM. This file provides repository functions for the Note model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a note is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// This repository is wrapped by services.ModerationStore, which enforces key
// validation and maps storage failures into the engine's error taxonomy.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Gtajisan/p2a-modbot/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for consistency across the service layer.
var ErrNotFound = gorm.ErrRecordNotFound

// UpsertNote inserts a note or, when the (chat_id, name) pair already exists,
// overwrites content, author, and timestamp in place. Repeated saves of the
// same name therefore leave exactly one row.
func UpsertNote(ctx context.Context, db *gorm.DB, chatID, name, content string, createdBy int64) error {
	n := &domain.Note{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Name:      name,
		Content:   content,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "created_by", "created_at"}),
	}).Create(n).Error
}

// GetNote fetches a single note by chat and name. If the record does not
// exist, it returns ErrNotFound.
func GetNote(ctx context.Context, db *gorm.DB, chatID, name string) (*domain.Note, error) {
	var n domain.Note
	err := db.WithContext(ctx).
		Where("chat_id = ? AND name = ?", chatID, name).
		First(&n).Error
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// ListNotes returns all notes for a chat ordered by name. An empty slice is
// not an error.
func ListNotes(ctx context.Context, db *gorm.DB, chatID string) ([]domain.Note, error) {
	var out []domain.Note
	err := db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("name").
		Find(&out).Error
	return out, err
}

// DeleteNote removes a note by chat and name. It reports whether a row
// existed and was removed.
func DeleteNote(ctx context.Context, db *gorm.DB, chatID, name string) (bool, error) {
	res := db.WithContext(ctx).
		Where("chat_id = ? AND name = ?", chatID, name).
		Delete(&domain.Note{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
