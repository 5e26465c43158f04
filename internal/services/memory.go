// Package services – ConversationMemory
//
// Thin service over the conversation-log repo: keeps a bounded, per-chat
// window of recent exchanges for the interpreter to replay as chat history.
package services

import (
	"context"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/Gtajisan/p2a-modbot/internal/domain"
	"github.com/Gtajisan/p2a-modbot/internal/repo"
)

// ConversationMemory stores and recalls the recent exchanges of a thread.
// Window is the maximum number of messages kept and recalled per thread.
type ConversationMemory struct {
	DB     *gorm.DB
	Window int
}

// NewConversationMemory constructs a memory bounded to window messages.
func NewConversationMemory(db *gorm.DB, window int) *ConversationMemory {
	return &ConversationMemory{DB: db, Window: window}
}

// ThreadID derives the stable memory thread for a chat.
func ThreadID(chatID string) string { return "p2a-chat-" + chatID }

// Recent returns the thread's window in chronological order. A read failure
// degrades to empty history; interpretation proceeds without memory.
func (m *ConversationMemory) Recent(ctx context.Context, threadID string) []domain.ConversationMessage {
	out, err := repo.RecentConversation(ctx, m.DB, threadID, m.Window)
	if err != nil {
		log.Warn().Str("thread_id", threadID).Err(err).Msg("conversation recall failed")
		return nil
	}
	return out
}

// Append records one exchange pair and prunes the thread back to the window.
// A non-positive window disables pruning, so the log keeps everything even
// though Recent returns nothing. Failures are logged and swallowed; memory is
// best-effort.
func (m *ConversationMemory) Append(ctx context.Context, threadID, userText, assistantText string) {
	if err := repo.AppendConversation(ctx, m.DB, threadID, "user", userText); err != nil {
		log.Warn().Str("thread_id", threadID).Err(err).Msg("conversation append failed")
		return
	}
	if err := repo.AppendConversation(ctx, m.DB, threadID, "assistant", assistantText); err != nil {
		log.Warn().Str("thread_id", threadID).Err(err).Msg("conversation append failed")
	}
	if m.Window <= 0 {
		return
	}
	if err := repo.PruneConversation(ctx, m.DB, threadID, m.Window); err != nil {
		log.Warn().Str("thread_id", threadID).Err(err).Msg("conversation prune failed")
	}
}
