// Package services – InterpreterService
//
// This file adapts an OpenAI-compatible chat-completion endpoint into the
// command interpreter: free-form group-chat text goes in, a reply plus a
// bounded sequence of tool invocations comes out. The adapter replays the
// chat's recent conversation window, runs the tool-calling loop up to a
// configurable round cap, and degrades every failure mode (API error,
// timeout, exhausted rounds, empty output) into the deterministic fallback
// response instead of an error.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

// FallbackResponse is the deterministic reply delivered whenever
// interpretation fails for any reason.
const FallbackResponse = "Sorry, I encountered an error processing your message. Please try again."

// DefaultMaxToolRounds bounds the tool-invocation loop per message.
const DefaultMaxToolRounds = 10

// defaultSystemPrompt describes the bot's role, capabilities, and moderation
// guidelines to the model.
const defaultSystemPrompt = `You are P2A-Bot, a powerful group management assistant inspired by Rose-Bot.

YOUR PERSONALITY:
- Helpful, professional, and efficient
- Clear and concise in communication
- Proactive in maintaining group order
- Friendly but firm when enforcing rules

YOUR CORE CAPABILITIES:

**ADMIN COMMANDS:**
- /ban [user] [reason] - Permanently ban a user from the group
- /kick [user] - Remove a user (they can rejoin via invite)
- /mute [user] [duration] - Restrict a user from sending messages
- /unmute [user] - Remove message restrictions
- /warn [user] [reason] - Issue a warning to a user
- /pin [message] - Pin an important message
- /unpin - Unpin the current message
- /del - Delete a message (reply to it)

**INFO COMMANDS:**
- /info [user] - Get information about a user
- /chatinfo - Get information about the current chat
- /stats - Show group statistics

**GROUP MANAGEMENT:**
- /rules - Display group rules
- /setrules [rules] - Set group rules (admin only)
- /welcome [message] - Set welcome message for new members
- /goodbye [message] - Set goodbye message for leaving members

**NOTES & FILTERS:**
- /save [name] [content] - Save a note
- /get [name] - Retrieve a saved note
- /notes - List all saved notes
- /clear [name] - Delete a note
- /filter [keyword] [response] - Create auto-response filter
- /filters - List all filters
- /stop [keyword] - Remove a filter

IMPORTANT BEHAVIORAL RULES:
1. Always verify permissions before executing admin actions
2. Use appropriate tools for each command
3. Provide clear feedback on action results
4. Handle errors gracefully and inform users
5. Remember context from conversation history
6. Support both command formats: /command and !command

MODERATION GUIDELINES:
- Ban: For serious violations, spam, or harmful behavior
- Kick: For minor violations or warnings
- Mute: For excessive messaging or temporary restrictions
- Warn: For first-time or minor rule violations
- Always provide reasons for moderation actions

When responding, acknowledge the command, execute the appropriate tool,
report the result clearly, and be concise but informative.`

// IncomingMessage is the interpreter's view of one inbound chat message.
type IncomingMessage struct {
	ChatID    string
	ChatType  string
	UserID    int64
	UserName  string
	Text      string
	MessageID int64
	// ReplyToMessageID and ReplyToUserID are zero when the message is not a
	// reply.
	ReplyToMessageID int64
	ReplyToUserID    int64
}

// InterpretResult is the outcome of one interpretation. Response is always
// non-empty; Success is false when the fallback was used. ToolCalls counts
// the tool invocations dispatched while producing the response.
type InterpretResult struct {
	Response    string
	Success     bool
	ActionTaken string
	ToolCalls   int
}

// ChatCompleter is the slice of the OpenAI client the interpreter needs.
// *openai.Client satisfies it.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// InterpreterService runs the tool-calling loop against an OpenAI-compatible
// model and dispatches requested tools through the catalog.
type InterpreterService struct {
	Client        ChatCompleter
	Model         string
	Tools         *Toolset
	Memory        *ConversationMemory
	MaxToolRounds int
	Timeout       time.Duration
	SystemPrompt  string
}

// NewInterpreterService constructs an interpreter with the default round cap
// and system prompt. maxRounds <= 0 selects the default; timeout <= 0 means
// the caller's context governs alone.
func NewInterpreterService(client ChatCompleter, model string, tools *Toolset, memory *ConversationMemory, maxRounds int, timeout time.Duration) *InterpreterService {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxToolRounds
	}
	return &InterpreterService{
		Client:        client,
		Model:         model,
		Tools:         tools,
		Memory:        memory,
		MaxToolRounds: maxRounds,
		Timeout:       timeout,
		SystemPrompt:  defaultSystemPrompt,
	}
}

// userPrompt renders the inbound message with its full routing context so the
// model can address tools at the right chat, user, and message.
func userPrompt(msg IncomingMessage) string {
	return fmt.Sprintf(`New message in chat %s from @%s (ID: %d):
%q

Chat ID: %s
Message ID: %d
User ID: %d

Please process this message according to your instructions. If it's a command, execute it using the appropriate tools. If it's a regular message, respond helpfully.`,
		msg.ChatID, msg.UserName, msg.UserID, msg.Text, msg.ChatID, msg.MessageID, msg.UserID)
}

// Interpret runs one message through the model and its tools. It never
// returns an error: every failure mode resolves to the fallback response
// with Success=false.
func (s *InterpreterService) Interpret(ctx context.Context, msg IncomingMessage) InterpretResult {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	threadID := ThreadID(msg.ChatID)
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: s.SystemPrompt},
	}
	if s.Memory != nil {
		for _, m := range s.Memory.Recent(ctx, threadID) {
			role := openai.ChatMessageRoleUser
			if m.Role == "assistant" {
				role = openai.ChatMessageRoleAssistant
			}
			messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
		}
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userPrompt(msg),
	})

	toolCalls := 0
	rounds := 0
	for rounds < s.MaxToolRounds {
		rounds++
		resp, err := s.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    s.Model,
			Messages: messages,
			Tools:    s.Tools.Definitions(),
		})
		if err != nil {
			log.Error().Str("chat_id", msg.ChatID).Err(err).Msg("chat completion failed")
			return s.fallback(ctx, msg, threadID, toolCalls, "Error: "+err.Error())
		}
		if len(resp.Choices) == 0 {
			log.Error().Str("chat_id", msg.ChatID).Msg("chat completion returned no choices")
			return s.fallback(ctx, msg, threadID, toolCalls, "Error: empty completion")
		}
		choice := resp.Choices[0].Message

		if len(choice.ToolCalls) == 0 {
			text := strings.TrimSpace(choice.Content)
			if text == "" {
				return s.fallback(ctx, msg, threadID, toolCalls, "Error: empty response")
			}
			interpreterRounds.Observe(float64(toolCalls))
			if s.Memory != nil {
				s.Memory.Append(ctx, threadID, msg.Text, text)
			}
			return InterpretResult{
				Response:    text,
				Success:     true,
				ActionTaken: "Message processed",
				ToolCalls:   toolCalls,
			}
		}

		// Tool round: run every requested call and feed results back.
		messages = append(messages, choice)
		for _, call := range choice.ToolCalls {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(ctx.Err(), context.Canceled) {
				return s.fallback(ctx, msg, threadID, toolCalls, "Error: "+ctx.Err().Error())
			}
			toolCalls++
			result := s.Tools.Dispatch(ctx, call.Function.Name, call.Function.Arguments)
			log.Debug().
				Str("chat_id", msg.ChatID).
				Str("tool", call.Function.Name).
				Msg("tool dispatched")
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: call.ID,
				Content:    result,
			})
		}
	}

	log.Warn().Str("chat_id", msg.ChatID).Int("rounds", rounds).Msg("tool round cap reached")
	return s.fallback(ctx, msg, threadID, toolCalls, "Error: tool round limit reached")
}

// fallback records the failed exchange in memory and returns the
// deterministic fallback result.
func (s *InterpreterService) fallback(ctx context.Context, msg IncomingMessage, threadID string, toolCalls int, action string) InterpretResult {
	interpreterRounds.Observe(float64(toolCalls))
	if s.Memory != nil && ctx.Err() == nil {
		s.Memory.Append(ctx, threadID, msg.Text, FallbackResponse)
	}
	return InterpretResult{
		Response:    FallbackResponse,
		Success:     false,
		ActionTaken: action,
		ToolCalls:   toolCalls,
	}
}
