// Package services – ActionService
//
// This file implements the action executor: one operation per moderation
// verb, each wrapping exactly one remote chat-platform invocation (kick wraps
// two, see Kick). Every method returns an ActionResult — a structured
// {success, message} outcome — and never lets a remote error escape as a Go
// error. The pipeline and the tool catalog depend on this contract to keep
// processing subsequent steps after a failed action.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Gtajisan/p2a-modbot/internal/telegram"
)

// ActionResult is the uniform outcome of a moderation action. Message is
// safe to show to chat users on both success and failure.
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// UserInfo is the executor's view of a platform user.
type UserInfo struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	UserName  string `json:"username,omitempty"`
}

// ChatInfo is the executor's view of a chat. MemberCount is nil when the
// best-effort member lookup failed; that never fails the overall call.
type ChatInfo struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title,omitempty"`
	UserName    string `json:"username,omitempty"`
	MemberCount *int   `json:"member_count,omitempty"`
}

// ActionService executes moderation verbs against the chat platform through
// an injected client instance. It holds no other state and is safe for
// concurrent use.
type ActionService struct {
	// Bot is the chat-platform client all verbs go through.
	Bot *telegram.Client
}

// NewActionService constructs an ActionService bound to bot.
func NewActionService(bot *telegram.Client) *ActionService {
	return &ActionService{Bot: bot}
}

// failure records the metric and wraps a remote error into an ActionResult.
func failure(action string, err error, format string) ActionResult {
	moderationActions.WithLabelValues(action, "error").Inc()
	return ActionResult{Success: false, Message: fmt.Sprintf(format, err)}
}

// success records the metric and returns a successful ActionResult.
func success(action, message string) ActionResult {
	moderationActions.WithLabelValues(action, "ok").Inc()
	return ActionResult{Success: true, Message: message}
}

// Ban permanently bans a user from a chat. A non-empty reason is echoed in
// the result message.
func (s *ActionService) Ban(ctx context.Context, chatID, userID int64, reason string) ActionResult {
	log.Info().Int64("chat_id", chatID).Int64("user_id", userID).Msg("banning user")
	if err := s.Bot.BanChatMember(ctx, chatID, userID); err != nil {
		return failure("ban", err, "Failed to ban user: %v")
	}
	if reason != "" {
		return success("ban", fmt.Sprintf("User banned successfully. Reason: %s", reason))
	}
	return success("ban", "User banned successfully")
}

// Kick removes a user while permitting rejoin: a ban immediately followed by
// an unban. A failure of either sub-call is an overall failure. When the
// unban fails after a successful ban, the user remains banned; the result
// says so explicitly and leaves the retry to a human — no automatic
// compensation.
func (s *ActionService) Kick(ctx context.Context, chatID, userID int64) ActionResult {
	log.Info().Int64("chat_id", chatID).Int64("user_id", userID).Msg("kicking user")
	if err := s.Bot.BanChatMember(ctx, chatID, userID); err != nil {
		return failure("kick", err, "Failed to kick user: %v")
	}
	if err := s.Bot.UnbanChatMember(ctx, chatID, userID); err != nil {
		moderationActions.WithLabelValues("kick", "error").Inc()
		return ActionResult{
			Success: false,
			Message: fmt.Sprintf("Failed to kick user: unban failed after ban, user remains banned: %v", err),
		}
	}
	return success("kick", "User kicked successfully")
}

// mutedPermissions clears the three send permissions a mute governs.
var mutedPermissions = telegram.ChatPermissions{
	CanSendMessages:      false,
	CanSendPolls:         false,
	CanSendOtherMessages: false,
}

// unmutedPermissions restores the same three permissions.
var unmutedPermissions = telegram.ChatPermissions{
	CanSendMessages:      true,
	CanSendPolls:         true,
	CanSendOtherMessages: true,
}

// Mute restricts a user from sending messages, polls, and other media.
// duration is in seconds from now; zero (or negative) means permanent.
func (s *ActionService) Mute(ctx context.Context, chatID, userID, duration int64) ActionResult {
	log.Info().Int64("chat_id", chatID).Int64("user_id", userID).Int64("duration", duration).Msg("muting user")
	var until int64
	if duration > 0 {
		until = time.Now().Unix() + duration
	}
	if err := s.Bot.RestrictChatMember(ctx, chatID, userID, mutedPermissions, until); err != nil {
		return failure("mute", err, "Failed to mute user: %v")
	}
	if duration > 0 {
		return success("mute", fmt.Sprintf("User muted for %d seconds", duration))
	}
	return success("mute", "User muted permanently")
}

// Unmute lifts the restrictions applied by Mute.
func (s *ActionService) Unmute(ctx context.Context, chatID, userID int64) ActionResult {
	log.Info().Int64("chat_id", chatID).Int64("user_id", userID).Msg("unmuting user")
	if err := s.Bot.RestrictChatMember(ctx, chatID, userID, unmutedPermissions, 0); err != nil {
		return failure("unmute", err, "Failed to unmute user: %v")
	}
	return success("unmute", "User unmuted successfully")
}

// Pin pins a message, optionally without notifying members.
func (s *ActionService) Pin(ctx context.Context, chatID, messageID int64, silent bool) ActionResult {
	if err := s.Bot.PinChatMessage(ctx, chatID, messageID, silent); err != nil {
		return failure("pin", err, "Failed to pin message: %v")
	}
	return success("pin", "Message pinned successfully")
}

// Unpin unpins a message.
func (s *ActionService) Unpin(ctx context.Context, chatID, messageID int64) ActionResult {
	if err := s.Bot.UnpinChatMessage(ctx, chatID, messageID); err != nil {
		return failure("unpin", err, "Failed to unpin message: %v")
	}
	return success("unpin", "Message unpinned successfully")
}

// Delete removes a message from the chat.
func (s *ActionService) Delete(ctx context.Context, chatID, messageID int64) ActionResult {
	if err := s.Bot.DeleteMessage(ctx, chatID, messageID); err != nil {
		return failure("delete", err, "Failed to delete message: %v")
	}
	return success("delete", "Message deleted successfully")
}

// Send delivers text to a chat, optionally as a reply to replyTo. The remote
// error description is preserved in the failure message so the pipeline can
// recognize reply-linkage failures and retry without the reply.
func (s *ActionService) Send(ctx context.Context, chatID int64, text string, replyTo int64) ActionResult {
	if _, err := s.Bot.SendMessage(ctx, chatID, text, replyTo); err != nil {
		return failure("send", err, "Failed to send message: %v")
	}
	return success("send", "Message sent successfully")
}

// GetUserInfo looks up a platform user. The Bot API exposes users through
// getChat on their private chat ID.
func (s *ActionService) GetUserInfo(ctx context.Context, userID int64) (ActionResult, *UserInfo) {
	chat, err := s.Bot.GetChat(ctx, userID)
	if err != nil {
		return failure("get_user_info", err, "Failed to get user info: %v"), nil
	}
	info := &UserInfo{
		ID:        chat.ID,
		FirstName: chat.FirstName,
		LastName:  chat.LastName,
		UserName:  chat.UserName,
	}
	if info.FirstName == "" {
		info.FirstName = "Unknown"
	}
	return success("get_user_info", "User info retrieved"), info
}

// GetChatInfo looks up a chat. The member count is best-effort: when the
// count call fails the chat info is still returned, with MemberCount nil.
func (s *ActionService) GetChatInfo(ctx context.Context, chatID int64) (ActionResult, *ChatInfo) {
	chat, err := s.Bot.GetChat(ctx, chatID)
	if err != nil {
		return failure("get_chat_info", err, "Failed to get chat info: %v"), nil
	}
	info := &ChatInfo{
		ID:       chat.ID,
		Type:     chat.Type,
		Title:    chat.Title,
		UserName: chat.UserName,
	}
	if count, err := s.Bot.GetChatMemberCount(ctx, chatID); err == nil {
		info.MemberCount = &count
	} else {
		log.Debug().Int64("chat_id", chatID).Err(err).Msg("member count unavailable")
	}
	return success("get_chat_info", "Chat info retrieved"), info
}
