// Package handlers implements the HTTP endpoints of the bot.
//
// This file is the webhook ingress: it receives chat-platform update
// payloads, classifies them, and feeds processable text messages into the
// pipeline. The classification contract is strict about acknowledgement:
// every well-formed update is answered 200 "OK" whether or not it was
// processed, because a non-2xx makes the platform re-deliver the same update
// indefinitely.
package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Gtajisan/p2a-modbot/internal/http/middleware"
	"github.com/Gtajisan/p2a-modbot/internal/services"
	"github.com/Gtajisan/p2a-modbot/internal/sysutil"
)

// secretTokenHeader is the header the platform echoes when the webhook was
// registered with a secret token.
const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// Update is the inbound webhook payload. Only the fields the ingress
// classifies on are mapped; everything else is ignored.
type Update struct {
	UpdateID int64      `json:"update_id"`
	Message  *TgMessage `json:"message"`
}

// TgMessage is the message object within an update.
type TgMessage struct {
	MessageID      int64      `json:"message_id"`
	From           *TgUser    `json:"from"`
	Chat           *TgChat    `json:"chat"`
	Text           string     `json:"text"`
	ReplyToMessage *TgMessage `json:"reply_to_message"`
	Photo          []any      `json:"photo"`
	Sticker        *struct{}  `json:"sticker"`
}

// TgUser is the sender of a message.
type TgUser struct {
	ID        int64  `json:"id"`
	UserName  string `json:"username"`
	FirstName string `json:"first_name"`
}

// TgChat is the chat a message was sent in.
type TgChat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// MessageProcessor runs one classified message through the pipeline.
// *services.PipelineService satisfies it.
type MessageProcessor interface {
	Process(ctx context.Context, chatID int64, msg services.IncomingMessage) services.PipelineResult
}

// UpdateDeduper acknowledges platform re-deliveries. FirstSeen reports
// whether this update ID has not been processed before.
type UpdateDeduper interface {
	FirstSeen(ctx context.Context, updateID int64) (bool, error)
}

// WebhookHandler is the ingress endpoint for chat-platform updates.
type WebhookHandler struct {
	Pipeline MessageProcessor
	Deduper  UpdateDeduper
	// Secret, when non-empty, must match the platform's secret token header.
	Secret string
}

// NewWebhookHandler constructs the ingress handler.
func NewWebhookHandler(pipeline MessageProcessor, deduper UpdateDeduper, secret string) *WebhookHandler {
	return &WebhookHandler{Pipeline: pipeline, Deduper: deduper, Secret: secret}
}

// HandleUpdate is POST /webhooks/telegram/action.
//
// Classification:
//   - wrong secret token: 401, the caller is not the platform
//   - malformed JSON: 400
//   - no message, non-text message, missing sender/chat: acknowledged 200
//     without processing
//   - already-seen update ID: acknowledged 200 without reprocessing
//   - text message: processed synchronously, then acknowledged 200
//
// Processing failures never change the acknowledgement; the pipeline reports
// them through its own result and metrics.
func (h *WebhookHandler) HandleUpdate(c *gin.Context) {
	lg := middleware.LoggerFrom(c)

	if h.Secret != "" {
		got := c.GetHeader(secretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.Secret)) != 1 {
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid webhook secret")
			return
		}
	}

	var update Update
	if err := c.ShouldBindJSON(&update); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed update payload")
		return
	}

	lg.Info().
		Int64("update_id", update.UpdateID).
		Bool("has_message", update.Message != nil).
		Msg("webhook update received")

	if update.Message == nil {
		c.String(http.StatusOK, "OK")
		return
	}

	msg := update.Message
	if msg.Chat == nil || msg.From == nil {
		lg.Info().Int64("update_id", update.UpdateID).Msg("skipping message without chat or sender")
		c.String(http.StatusOK, "OK")
		return
	}
	if msg.Text == "" {
		lg.Info().
			Int64("chat_id", msg.Chat.ID).
			Str("message_type", messageType(msg)).
			Msg("skipping non-text message")
		c.String(http.StatusOK, "OK")
		return
	}

	// Dedup is best-effort: a ledger failure must not drop the update.
	if h.Deduper != nil && update.UpdateID != 0 {
		first, err := h.Deduper.FirstSeen(c.Request.Context(), update.UpdateID)
		if err != nil {
			lg.Warn().Int64("update_id", update.UpdateID).Err(err).Msg("update ledger unavailable")
		} else if !first {
			lg.Info().Int64("update_id", update.UpdateID).Msg("duplicate update acknowledged")
			c.String(http.StatusOK, "OK")
			return
		}
	}

	userName := sysutil.FirstNonEmpty(msg.From.UserName, msg.From.FirstName, "Unknown")

	incoming := services.IncomingMessage{
		ChatID:    strconv.FormatInt(msg.Chat.ID, 10),
		ChatType:  msg.Chat.Type,
		UserID:    msg.From.ID,
		UserName:  userName,
		Text:      msg.Text,
		MessageID: msg.MessageID,
	}
	if reply := msg.ReplyToMessage; reply != nil {
		incoming.ReplyToMessageID = reply.MessageID
		if reply.From != nil {
			incoming.ReplyToUserID = reply.From.ID
		}
	}

	result := h.Pipeline.Process(c.Request.Context(), msg.Chat.ID, incoming)
	lg.Info().
		Int64("chat_id", msg.Chat.ID).
		Bool("success", result.Success).
		Str("summary", result.Summary).
		Msg("update processed")

	c.String(http.StatusOK, "OK")
}

// messageType names the non-text payload kind for logs.
func messageType(m *TgMessage) string {
	switch {
	case len(m.Photo) > 0:
		return "photo"
	case m.Sticker != nil:
		return "sticker"
	default:
		return "other"
	}
}
