// Package domain defines the persistence models for the group-moderation
// engine: notes, filters, warnings, per-chat settings and statistics, the
// chat-scoped conversation log, and the processed-update ledger. These types
// are mapped with GORM and form the core data layer of the bot.
//
// All moderation state is scoped by a chat identity, stored as an opaque
// string so the engine does not depend on the numeric ID format of any one
// chat platform.
package domain

import "time"

// Note is a named, reusable block of text saved within a chat. Saving an
// existing (chat_id, name) pair overwrites content, author, and timestamp —
// it never duplicates.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - ChatID / Name: composite unique key scoping the note to one chat.
//   - Content: the note body returned on retrieval.
//   - CreatedBy: platform user ID of the author (last writer wins).
//   - CreatedAt: refreshed on every save.
type Note struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	ChatID    string    `json:"chat_id"    gorm:"type:varchar(64);not null;uniqueIndex:ux_notes_chat_name,priority:1"`
	Name      string    `json:"name"       gorm:"type:varchar(255);not null;uniqueIndex:ux_notes_chat_name,priority:2"`
	Content   string    `json:"content"    gorm:"type:text;not null"`
	CreatedBy int64     `json:"created_by" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Note.
func (Note) TableName() string { return "bot_notes" }

// Filter is a keyword-triggered automatic response within a chat. Keywords
// are normalized to lowercase at the store boundary, so the (chat_id, keyword)
// unique key is case-insensitive from the caller's perspective. Upsert and
// delete semantics mirror Note.
type Filter struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	ChatID    string    `json:"chat_id"    gorm:"type:varchar(64);not null;uniqueIndex:ux_filters_chat_keyword,priority:1"`
	Keyword   string    `json:"keyword"    gorm:"type:varchar(255);not null;uniqueIndex:ux_filters_chat_keyword,priority:2"`
	Response  string    `json:"response"   gorm:"type:text;not null"`
	CreatedBy int64     `json:"created_by" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Filter.
func (Filter) TableName() string { return "bot_filters" }

// Warning is an immutable record of a moderation infraction against a user.
// Warnings carry no unique constraint: repeated warnings for the same
// (chat_id, user_id) pair accumulate as separate rows. They are only ever
// removed in bulk per user.
type Warning struct {
	ID       string    `json:"id"        gorm:"type:char(36);primaryKey"`
	ChatID   string    `json:"chat_id"   gorm:"type:varchar(64);not null;index:idx_warnings_chat_user,priority:1"`
	UserID   int64     `json:"user_id"   gorm:"not null;index:idx_warnings_chat_user,priority:2"`
	Reason   string    `json:"reason"    gorm:"type:text;not null"`
	WarnedBy int64     `json:"warned_by" gorm:"not null"`
	WarnedAt time.Time `json:"warned_at"`
}

// TableName returns the database table name for Warning.
func (Warning) TableName() string { return "bot_warnings" }

// ChatSettings holds the per-chat configuration row. An absent row is not an
// error: the store resolves it to a default-valued settings object
// (antiflood disabled, limit 5).
type ChatSettings struct {
	ChatID           string  `json:"chat_id"           gorm:"type:varchar(64);primaryKey"`
	WelcomeMessage   *string `json:"welcome_message"   gorm:"type:text"`
	GoodbyeMessage   *string `json:"goodbye_message"   gorm:"type:text"`
	Rules            *string `json:"rules"             gorm:"type:text"`
	AntifloodEnabled bool    `json:"antiflood_enabled" gorm:"not null;default:false"`
	AntifloodLimit   int     `json:"antiflood_limit"   gorm:"not null;default:5"`
}

// TableName returns the database table name for ChatSettings.
func (ChatSettings) TableName() string { return "bot_settings" }

// DefaultSettings returns the caller-visible settings for a chat that has
// never saved a settings row.
func DefaultSettings(chatID string) *ChatSettings {
	return &ChatSettings{
		ChatID:           chatID,
		AntifloodEnabled: false,
		AntifloodLimit:   5,
	}
}

// ChatStats is the per-chat statistics row. MessageCount and CommandsExecuted
// accumulate monotonically; UserCount is a high-water mark, replaced only when
// a larger candidate is observed. Rows are created implicitly on the first
// increment and never deleted by the engine.
type ChatStats struct {
	ChatID           string    `json:"chat_id"           gorm:"type:varchar(64);primaryKey"`
	MessageCount     int64     `json:"message_count"     gorm:"not null;default:0"`
	UserCount        int64     `json:"user_count"        gorm:"not null;default:0"`
	CommandsExecuted int64     `json:"commands_executed" gorm:"not null;default:0"`
	LastActivity     time.Time `json:"last_activity"`
}

// TableName returns the database table name for ChatStats.
func (ChatStats) TableName() string { return "bot_stats" }

// ConversationMessage is one entry in the bounded, chat-scoped conversation
// log that backs interpreter memory. ThreadID is a stable function of the
// chat identity, so memory is scoped per chat rather than per message. The
// log is pruned to the most recent window after every append.
type ConversationMessage struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	ThreadID  string    `json:"thread_id"  gorm:"type:varchar(80);not null;index:idx_conversation_thread,priority:1"`
	Role      string    `json:"role"       gorm:"type:varchar(16);not null;check:role IN ('user','assistant')"`
	Content   string    `json:"content"    gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_conversation_thread,priority:2"`
}

// TableName returns the database table name for ConversationMessage.
func (ConversationMessage) TableName() string { return "conversation_log" }

// ProcessedUpdate records a webhook update ID that has already been handled.
// The platform re-delivers updates it considers unacknowledged, so ingress
// consults this ledger to acknowledge duplicates without reprocessing them.
type ProcessedUpdate struct {
	UpdateID int64     `json:"update_id" gorm:"primaryKey;autoIncrement:false"`
	SeenAt   time.Time `json:"seen_at"   gorm:"index"`
}

// TableName returns the database table name for ProcessedUpdate.
func (ProcessedUpdate) TableName() string { return "processed_updates" }
