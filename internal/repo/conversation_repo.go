// Package repo implements the data persistence layer for moderation state,
// backed by GORM. This file provides the bounded conversation log that backs
// interpreter memory. Each thread (one per chat) keeps only its most recent
// window of exchanged messages; older rows are pruned on append.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Gtajisan/p2a-modbot/internal/domain"
)

// AppendConversation writes one exchanged message to the thread's log.
// role is "user" or "assistant".
func AppendConversation(ctx context.Context, db *gorm.DB, threadID, role, content string) error {
	m := &domain.ConversationMessage{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	return db.WithContext(ctx).Create(m).Error
}

// RecentConversation returns up to limit messages for the thread in
// chronological order (oldest first), suitable for replay as chat history.
func RecentConversation(ctx context.Context, db *gorm.DB, threadID string, limit int) ([]domain.ConversationMessage, error) {
	if limit <= 0 {
		return []domain.ConversationMessage{}, nil
	}
	var out []domain.ConversationMessage
	err := db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at desc").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	// Reverse into chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// PruneConversation deletes everything but the thread's keep most recent
// messages. keep <= 0 clears the thread entirely.
func PruneConversation(ctx context.Context, db *gorm.DB, threadID string, keep int) error {
	if keep <= 0 {
		return db.WithContext(ctx).
			Where("thread_id = ?", threadID).
			Delete(&domain.ConversationMessage{}).Error
	}
	return db.WithContext(ctx).Exec(
		`DELETE FROM conversation_log
		 WHERE thread_id = ?
		   AND id NOT IN (
		       SELECT id FROM conversation_log
		       WHERE thread_id = ?
		       ORDER BY created_at DESC
		       LIMIT ?)`,
		threadID, threadID, keep,
	).Error
}
