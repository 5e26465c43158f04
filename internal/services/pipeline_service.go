// Package services – PipelineService
//
// The pipeline is the end-to-end path for one inbound text message: record
// activity, answer keyword filters without consulting the model, otherwise
// interpret, then deliver the single response back to the chat as a reply to
// the triggering message. Delivery failures attributable to the reply linkage
// get exactly one retry without the linkage.
package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Gtajisan/p2a-modbot/internal/repo"
)

// Interpreter turns an inbound message into a response. InterpreterService
// satisfies it; tests substitute scripted implementations.
type Interpreter interface {
	Interpret(ctx context.Context, msg IncomingMessage) InterpretResult
}

// Sender delivers a response message to a chat. ActionService satisfies it.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string, replyTo int64) ActionResult
}

// PipelineResult summarizes one pipeline run.
type PipelineResult struct {
	Summary string `json:"summary"`
	Success bool   `json:"success"`
}

// PipelineService orchestrates ingress-to-delivery processing of messages.
type PipelineService struct {
	Interpreter Interpreter
	Sender      Sender
	Store       *ModerationStore
}

// NewPipelineService wires the orchestrator.
func NewPipelineService(interp Interpreter, sender Sender, store *ModerationStore) *PipelineService {
	return &PipelineService{Interpreter: interp, Sender: sender, Store: store}
}

// replyFailureMarkers are substrings of delivery failure messages that
// indicate the reply linkage itself was rejected (the replied-to message was
// deleted or never existed).
var replyFailureMarkers = []string{
	"repl",
	"message to be replied",
	"message not found",
	"message thread not found",
}

// isReplyFailure reports whether a delivery failure message blames the reply
// linkage.
func isReplyFailure(message string) bool {
	lower := strings.ToLower(message)
	for _, marker := range replyFailureMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Process runs one message through the pipeline. chatID is the numeric chat
// the response is delivered to; msg.ChatID carries the same identity as the
// opaque store key.
func (p *PipelineService) Process(ctx context.Context, chatID int64, msg IncomingMessage) PipelineResult {
	start := time.Now()
	logger := log.With().Str("chat_id", msg.ChatID).Int64("user_id", msg.UserID).Logger()

	p.touchStats(ctx, msg.ChatID)

	// Keyword filters answer without consulting the interpreter.
	if response, ok := p.matchFilter(ctx, msg.ChatID, msg.Text); ok {
		res := p.deliver(ctx, chatID, response, msg.MessageID)
		logger.Info().Bool("delivered", res.Success).Dur("elapsed", time.Since(start)).Msg("filter response")
		if !res.Success {
			pipelineMessages.WithLabelValues("deliver_failed").Inc()
			return PipelineResult{Summary: "Failed to send response: " + res.Message, Success: false}
		}
		pipelineMessages.WithLabelValues("delivered").Inc()
		return PipelineResult{Summary: "P2A-Bot processed and responded. Action: Filter matched", Success: true}
	}

	interp := p.Interpreter.Interpret(ctx, msg)
	if strings.TrimSpace(interp.Response) == "" {
		// The interpreter contract guarantees a response; an empty one is a
		// bug upstream, and silence is the only safe delivery.
		logger.Error().Msg("interpreter produced empty response")
		pipelineMessages.WithLabelValues("no_response").Inc()
		return PipelineResult{Summary: "No response produced", Success: false}
	}

	res := p.deliver(ctx, chatID, interp.Response, msg.MessageID)
	elapsed := time.Since(start)
	action := interp.ActionTaken
	if action == "" {
		action = "Message handled"
	}
	if !res.Success {
		logger.Error().Str("reason", res.Message).Dur("elapsed", elapsed).Msg("delivery failed")
		pipelineMessages.WithLabelValues("deliver_failed").Inc()
		return PipelineResult{Summary: "Failed to send response: " + res.Message, Success: false}
	}
	logger.Info().
		Bool("interpreted", interp.Success).
		Int("tool_calls", interp.ToolCalls).
		Dur("elapsed", elapsed).
		Msg("message processed")
	if interp.Success {
		pipelineMessages.WithLabelValues("delivered").Inc()
	} else {
		pipelineMessages.WithLabelValues("delivered_fallback").Inc()
	}
	return PipelineResult{
		Summary: "P2A-Bot processed and responded. Action: " + action,
		Success: interp.Success,
	}
}

// deliver sends the response as a reply, retrying exactly once without the
// reply linkage when the failure blames it.
func (p *PipelineService) deliver(ctx context.Context, chatID int64, text string, replyTo int64) ActionResult {
	res := p.Sender.Send(ctx, chatID, text, replyTo)
	if res.Success || replyTo == 0 || !isReplyFailure(res.Message) {
		return res
	}
	log.Info().Int64("chat_id", chatID).Msg("retrying delivery without reply")
	return p.Sender.Send(ctx, chatID, text, 0)
}

// touchStats records one observed message. Failures are logged and swallowed;
// statistics never block processing.
func (p *PipelineService) touchStats(ctx context.Context, chatID string) {
	if p.Store == nil {
		return
	}
	if err := p.Store.UpdateStats(ctx, chatID, repo.StatsDelta{Messages: 1}); err != nil {
		log.Warn().Str("chat_id", chatID).Err(err).Msg("stats update failed")
	}
}

// matchFilter scans the chat's filters for a keyword contained in the message
// text (case-insensitive) and returns its response. Store failures disable
// the fast path for this message.
func (p *PipelineService) matchFilter(ctx context.Context, chatID, text string) (string, bool) {
	if p.Store == nil || strings.TrimSpace(text) == "" {
		return "", false
	}
	filters, err := p.Store.ListFilters(ctx, chatID)
	if err != nil {
		log.Warn().Str("chat_id", chatID).Err(err).Msg("filter lookup failed")
		return "", false
	}
	lower := strings.ToLower(text)
	for _, f := range filters {
		if strings.Contains(lower, f.Keyword) {
			return f.Response, true
		}
	}
	return "", false
}
