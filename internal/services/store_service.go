// Package services – ModerationStore
//
// This file implements the ModerationStore, the single gateway to persistent
// moderation state. It exposes six independent sub-APIs (notes, filters,
// warnings, settings, stats, and the processed-update ledger used by
// ingress), validates keys, normalizes filter keywords, and maps persistence
// failures into the engine's error taxonomy so callers can distinguish
// "absent" from "store unreachable".
//
// No other component touches storage directly; the action executor and tool
// catalog go through this service.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/Gtajisan/p2a-modbot/internal/domain"
	"github.com/Gtajisan/p2a-modbot/internal/repo"
)

// keywordCaser lowercases filter keywords Unicode-correctly, so "Ü" and "ü"
// collide the way users expect.
var keywordCaser = cases.Lower(language.Und)

// ModerationStore provides the persistent moderation state sub-APIs. It is
// safe for concurrent use; all mutation funnels into single-statement upserts
// or short transactions at the repo layer.
type ModerationStore struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

// NewModerationStore constructs a ModerationStore over db.
func NewModerationStore(db *gorm.DB) *ModerationStore {
	return &ModerationStore{DB: db}
}

// NormalizeKeyword trims and lowercases a filter keyword. Callers of the
// filter sub-API need not pre-normalize; the store applies this at its
// boundary.
func NormalizeKeyword(keyword string) string {
	return keywordCaser.String(strings.TrimSpace(keyword))
}

// storeErr maps repo-layer errors into the service taxonomy. Record-not-found
// becomes ErrNotFound; anything else is a store availability failure.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

//
// Notes
//

// SaveNote upserts a note. Saving an existing (chatID, name) overwrites
// content, author, and timestamp — list counts are unaffected by repeated
// saves of the same name.
func (s *ModerationStore) SaveNote(ctx context.Context, chatID, name, content string, createdBy int64) error {
	chatID, name = strings.TrimSpace(chatID), strings.TrimSpace(name)
	if chatID == "" || name == "" {
		return ErrInvalidKey
	}
	return storeErr(repo.UpsertNote(ctx, s.DB, chatID, name, content, createdBy))
}

// GetNote returns a note or ErrNotFound.
func (s *ModerationStore) GetNote(ctx context.Context, chatID, name string) (*domain.Note, error) {
	if strings.TrimSpace(chatID) == "" || strings.TrimSpace(name) == "" {
		return nil, ErrInvalidKey
	}
	n, err := repo.GetNote(ctx, s.DB, chatID, strings.TrimSpace(name))
	if err != nil {
		return nil, storeErr(err)
	}
	return n, nil
}

// ListNotes returns all notes for a chat, ordered by name. Empty is not an
// error.
func (s *ModerationStore) ListNotes(ctx context.Context, chatID string) ([]domain.Note, error) {
	if strings.TrimSpace(chatID) == "" {
		return nil, ErrInvalidKey
	}
	out, err := repo.ListNotes(ctx, s.DB, chatID)
	if err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

// DeleteNote removes a note, reporting whether a row existed.
func (s *ModerationStore) DeleteNote(ctx context.Context, chatID, name string) (bool, error) {
	if strings.TrimSpace(chatID) == "" || strings.TrimSpace(name) == "" {
		return false, ErrInvalidKey
	}
	deleted, err := repo.DeleteNote(ctx, s.DB, chatID, strings.TrimSpace(name))
	return deleted, storeErr(err)
}

//
// Filters
//

// SaveFilter upserts a keyword filter. The keyword is normalized to lowercase
// here, so "Hello" and "hello" address the same row.
func (s *ModerationStore) SaveFilter(ctx context.Context, chatID, keyword, response string, createdBy int64) error {
	chatID = strings.TrimSpace(chatID)
	keyword = NormalizeKeyword(keyword)
	if chatID == "" || keyword == "" {
		return ErrInvalidKey
	}
	return storeErr(repo.UpsertFilter(ctx, s.DB, chatID, keyword, response, createdBy))
}

// GetFilter returns the filter for a (normalized) keyword or ErrNotFound.
func (s *ModerationStore) GetFilter(ctx context.Context, chatID, keyword string) (*domain.Filter, error) {
	keyword = NormalizeKeyword(keyword)
	if strings.TrimSpace(chatID) == "" || keyword == "" {
		return nil, ErrInvalidKey
	}
	f, err := repo.GetFilter(ctx, s.DB, chatID, keyword)
	if err != nil {
		return nil, storeErr(err)
	}
	return f, nil
}

// ListFilters returns all filters for a chat, ordered by keyword.
func (s *ModerationStore) ListFilters(ctx context.Context, chatID string) ([]domain.Filter, error) {
	if strings.TrimSpace(chatID) == "" {
		return nil, ErrInvalidKey
	}
	out, err := repo.ListFilters(ctx, s.DB, chatID)
	if err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

// DeleteFilter removes a filter by (normalized) keyword, reporting whether a
// row existed.
func (s *ModerationStore) DeleteFilter(ctx context.Context, chatID, keyword string) (bool, error) {
	keyword = NormalizeKeyword(keyword)
	if strings.TrimSpace(chatID) == "" || keyword == "" {
		return false, ErrInvalidKey
	}
	deleted, err := repo.DeleteFilter(ctx, s.DB, chatID, keyword)
	return deleted, storeErr(err)
}

//
// Warnings
//

// AddWarning appends a warning and returns the user's warning count including
// the one just written.
func (s *ModerationStore) AddWarning(ctx context.Context, chatID string, userID int64, reason string, warnedBy int64) (int64, error) {
	if strings.TrimSpace(chatID) == "" || userID == 0 {
		return 0, ErrInvalidKey
	}
	count, err := repo.AddWarning(ctx, s.DB, chatID, userID, reason, warnedBy)
	return count, storeErr(err)
}

// GetWarnings lists a user's warnings, most recent first.
func (s *ModerationStore) GetWarnings(ctx context.Context, chatID string, userID int64) ([]domain.Warning, error) {
	if strings.TrimSpace(chatID) == "" || userID == 0 {
		return nil, ErrInvalidKey
	}
	out, err := repo.ListWarnings(ctx, s.DB, chatID, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

// ClearWarnings removes all warnings for the (chatID, userID) pair
// atomically and returns the number removed.
func (s *ModerationStore) ClearWarnings(ctx context.Context, chatID string, userID int64) (int64, error) {
	if strings.TrimSpace(chatID) == "" || userID == 0 {
		return 0, ErrInvalidKey
	}
	n, err := repo.ClearWarnings(ctx, s.DB, chatID, userID)
	return n, storeErr(err)
}

//
// Settings
//

// SaveSettings upserts the per-chat settings row.
func (s *ModerationStore) SaveSettings(ctx context.Context, settings *domain.ChatSettings) error {
	if settings == nil || strings.TrimSpace(settings.ChatID) == "" {
		return ErrInvalidKey
	}
	return storeErr(repo.UpsertSettings(ctx, s.DB, settings))
}

// GetSettings returns the chat's settings. A chat that never saved settings
// gets the documented defaults — never ErrNotFound.
func (s *ModerationStore) GetSettings(ctx context.Context, chatID string) (*domain.ChatSettings, error) {
	if strings.TrimSpace(chatID) == "" {
		return nil, ErrInvalidKey
	}
	settings, err := repo.GetSettings(ctx, s.DB, chatID)
	if err != nil {
		return nil, storeErr(err)
	}
	return settings, nil
}

//
// Stats
//

// UpdateStats applies an incremental statistics delta atomically; counter
// fields are added, the user count is a high-water-mark candidate.
func (s *ModerationStore) UpdateStats(ctx context.Context, chatID string, delta repo.StatsDelta) error {
	if strings.TrimSpace(chatID) == "" {
		return ErrInvalidKey
	}
	return storeErr(repo.UpdateStats(ctx, s.DB, chatID, delta))
}

// GetStats returns the chat's statistics row or ErrNotFound when the chat
// has never been counted.
func (s *ModerationStore) GetStats(ctx context.Context, chatID string) (*domain.ChatStats, error) {
	if strings.TrimSpace(chatID) == "" {
		return nil, ErrInvalidKey
	}
	st, err := repo.GetStats(ctx, s.DB, chatID)
	if err != nil {
		return nil, storeErr(err)
	}
	return st, nil
}
