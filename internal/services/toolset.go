// Package services – tool catalog
//
// This file declares the fixed, enumerable set of typed operations the
// command interpreter may invoke, and dispatches invocations onto the action
// executor and the moderation store. The catalog is the only surface the
// reasoning service sees: every tool takes JSON arguments, returns a JSON
// result string, and converts internal failures into {"success":false}
// results rather than errors, so one failed step never aborts the round.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Gtajisan/p2a-modbot/internal/domain"
	"github.com/Gtajisan/p2a-modbot/internal/repo"
)

// chatRef is a chat identity argument that tolerates either a JSON string or
// a JSON number — models are inconsistent about which they emit.
type chatRef string

// UnmarshalJSON implements json.Unmarshaler.
func (c *chatRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return errors.New("empty chat id")
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = chatRef(s)
		return nil
	}
	*c = chatRef(string(b))
	return nil
}

// String returns the chat identity as the opaque store key.
func (c chatRef) String() string { return string(c) }

// Int64 returns the chat identity as a platform chat ID.
func (c chatRef) Int64() (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(string(c)), 10, 64)
}

// flexInt64 is an integer argument that tolerates a quoted JSON number.
type flexInt64 int64

// UnmarshalJSON implements json.Unmarshaler.
func (f *flexInt64) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*f = flexInt64(v)
	return nil
}

// toolResult serializes a tool outcome. extra fields are merged next to the
// success flag and message.
func toolResult(success bool, message string, extra map[string]any) string {
	out := map[string]any{"success": success, "message": message}
	for k, v := range extra {
		out[k] = v
	}
	b, err := json.Marshal(out)
	if err != nil {
		return `{"success":false,"message":"internal encoding error"}`
	}
	return string(b)
}

// toolFailure is shorthand for a failed result with no extra fields.
func toolFailure(message string) string { return toolResult(false, message, nil) }

// storeFailure renders a store error as a user-facing, non-fatal result.
func storeFailure(verb string, err error) string {
	return toolFailure("Failed to " + verb + ": " + err.Error())
}

// tool couples an OpenAI function declaration with its executor.
type tool struct {
	definition openai.Tool
	run        func(ctx context.Context, raw json.RawMessage) string
}

// Toolset is the catalog handed to the interpreter. It owns the dispatch
// from tool names to the executor and store.
type Toolset struct {
	actions *ActionService
	store   *ModerationStore

	tools  []tool
	byName map[string]int
}

// NewToolset builds the full catalog over the given executor and store.
func NewToolset(actions *ActionService, store *ModerationStore) *Toolset {
	t := &Toolset{actions: actions, store: store, byName: map[string]int{}}
	t.register()
	return t
}

// Definitions returns the catalog in OpenAI tool-declaration form.
func (t *Toolset) Definitions() []openai.Tool {
	defs := make([]openai.Tool, len(t.tools))
	for i, tl := range t.tools {
		defs[i] = tl.definition
	}
	return defs
}

// Dispatch runs the named tool with raw JSON arguments and returns its JSON
// result. Unknown tools and argument decode failures are results, not errors.
func (t *Toolset) Dispatch(ctx context.Context, name, args string) string {
	idx, ok := t.byName[name]
	if !ok {
		return toolFailure("unknown tool: " + name)
	}
	return t.tools[idx].run(ctx, json.RawMessage(args))
}

// add registers one tool. parameters is a JSON Schema object literal.
func (t *Toolset) add(name, description, parameters string, run func(ctx context.Context, raw json.RawMessage) string) {
	t.byName[name] = len(t.tools)
	t.tools = append(t.tools, tool{
		definition: openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        name,
				Description: description,
				Parameters:  json.RawMessage(parameters),
			},
		},
		run: run,
	})
}

// decode unmarshals tool arguments, reporting a uniform failure result.
func decode(raw json.RawMessage, into any) (ok bool, failResult string) {
	if err := json.Unmarshal(raw, into); err != nil {
		return false, toolFailure("invalid tool arguments: " + err.Error())
	}
	return true, ""
}

func (t *Toolset) register() {
	t.registerPlatformTools()
	t.registerStoreTools()
}

//
// Platform action tools
//

func (t *Toolset) registerPlatformTools() {
	t.add("send_message", "Send a message to the chat",
		`{"type":"object","properties":{"chat_id":{"type":"string","description":"Chat ID"},"message":{"type":"string","description":"Message text to send"},"reply_to_message_id":{"type":"integer","description":"Message ID to reply to"}},"required":["chat_id","message"]}`,
		func(ctx context.Context, raw json.RawMessage) string {
			var a struct {
				ChatID  chatRef   `json:"chat_id"`
				Message string    `json:"message"`
				ReplyTo flexInt64 `json:"reply_to_message_id"`
			}
			if ok, fail := decode(raw, &a); !ok {
				return fail
			}
			chatID, err := a.ChatID.Int64()
			if err != nil {
				return toolFailure("invalid chat id: " + err.Error())
			}
			res := t.actions.Send(ctx, chatID, a.Message, int64(a.ReplyTo))
			return toolResult(res.Success, res.Message, nil)
		})

	t.add("ban_user", "Permanently ban a user from the group chat",
		`{"type":"object","properties":{"chat_id":{"type":"string","description":"Chat ID"},"user_id":{"type":"integer","description":"User ID to ban"},"reason":{"type":"string","description":"Reason for the ban"}},"required":["chat_id","user_id"]}`,
		func(ctx context.Context, raw json.RawMessage) string {
			var a struct {
				ChatID chatRef   `json:"chat_id"`
				UserID flexInt64 `json:"user_id"`
				Reason string    `json:"reason"`
			}
			if ok, fail := decode(raw, &a); !ok {
				return fail
			}
			chatID, err := a.ChatID.Int64()
			if err != nil {
				return toolFailure("invalid chat id: " + err.Error())
			}
			res := t.actions.Ban(ctx, chatID, int64(a.UserID), a.Reason)
			return toolResult(res.Success, res.Message, nil)
		})

	t.add("kick_user", "Kick a user from the group chat (they can rejoin)",
		`{"type":"object","properties":{"chat_id":{"type":"string","description":"Chat ID"},"user_id":{"type":"integer","description":"User ID to kick"}},"required":["chat_id","user_id"]}`,
		func(ctx context.Context, raw json.RawMessage) string {
			var a struct {
				ChatID chatRef   `json:"chat_id"`
				UserID flexInt64 `json:"user_id"`
			}
			if ok, fail := decode(raw, &a); !ok {
				return fail
			}
			chatID, err := a.ChatID.Int64()
			if err != nil {
				return toolFailure("invalid chat id: " + err.Error())
			}
			res := t.actions.Kick(ctx, chatID, int64(a.UserID))
			return toolResult(res.Success, res.Message, nil)
		})

	t.add("mute_user", "Mute a user in the group chat",
		`{"type":"object","properties":{"chat_id":{"type":"string","description":"Chat ID"},"user_id":{"type":"integer","description":"User ID to mute"},"duration":{"type":"integer","description":"Mute duration in seconds (0 or omitted for permanent)"}},"required":["chat_id","user_id"]}`,
		func(ctx context.Context, raw json.RawMessage) string {
			var a struct {
				ChatID   chatRef   `json:"chat_id"`
				UserID   flexInt64 `json:"user_id"`
				Duration flexInt64 `json:"duration"`
			}
			if ok, fail := decode(raw, &a); !ok {
				return fail
			}
			chatID, err := a.ChatID.Int64()
			if err != nil {
				return toolFailure("invalid chat id: " + err.Error())
			}
			res := t.actions.Mute(ctx, chatID, int64(a.UserID), int64(a.Duration))
			return toolResult(res.Success, res.Message, nil)
		})

	t.add("unmute_user", "Unmute a user in the group chat",
		`{"type":"object","properties":{"chat_id":{"type":"string","description":"Chat ID"},"user_id":{"type":"integer","description":"User ID to unmute"}},"required":["chat_id","user_id"]}`,
		func(ctx context.Context, raw json.RawMessage) string {
			var a struct {
				ChatID chatRef   `json:"chat_id"`
				UserID flexInt64 `json:"user_id"`
			}
			if ok, fail := decode(raw, &a); !ok {
				return fail
			}
			chatID, err := a.ChatID.Int64()
			if err != nil {
				return toolFailure("invalid chat id: " + err.Error())
			}
			res := t.actions.Unmute(ctx, chatID, int64(a.UserID))
			return toolResult(res.Success, res.Message, nil)
		})

	t.add("pin_message", "Pin a message in the chat",
		`{"type":"object","properties":{"chat_id":{"type":"string","description":"Chat ID"},"message_id":{"type":"integer","description":"Message ID to pin"},"disable_notification":{"type":"boolean","description":"Pin silently"}},"required":["chat_id","message_id"]}`,
		func(ctx context.Context, raw json.RawMessage) string {
			var a struct {
				ChatID              chatRef   `json:"chat_id"`
				MessageID           flexInt64 `json:"message_id"`
				DisableNotification bool      `json:"disable_notification"`
			}
			if ok, fail := decode(raw, &a); !ok {
				return fail
			}
			chatID, err := a.ChatID.Int64()
			if err != nil {
				return toolFailure("invalid chat id: " + err.Error())
			}
			res := t.actions.Pin(ctx, chatID, int64(a.MessageID), a.DisableNotification)
			return toolResult(res.Success, res.Message, nil)
		})

	t.add("unpin_message", "Unpin a message in the chat",
		`{"type":"object","properties":{"chat_id":{"type":"string","description":"Chat ID"},"message_id":{"type":"integer","description":"Message ID to unpin"}},"required":["chat_id","message_id"]}`,
		func(ctx context.Context, raw json.RawMessage) string {
			var a struct {
				ChatID    chatRef   `json:"chat_id"`
				MessageID flexInt64 `json:"message_id"`
			}
			if ok, fail := decode(raw, &a); !ok {
				return fail
			}
			chatID, err := a.ChatID.Int64()
			if err != nil {
				return toolFailure("invalid chat id: " + err.Error())
			}
			res := t.actions.Unpin(ctx, chatID, int64(a.MessageID))
			return toolResult(res.Success, res.Message, nil)
		})

	t.add("delete_message", "Delete a message from the chat",
		`{"type":"object","properties":{"chat_id":{"type":"string","description":"Chat ID"},"message_id":{"type":"integer","description":"Message ID to delete"}},"required":["chat_id","message_id"]}`,
		func(ctx context.Context, raw json.RawMessage) string {
			var a struct {
				ChatID    chatRef   `json:"chat_id"`
				MessageID flexInt64 `json:"message_id"`
			}
			if ok, fail := decode(raw, &a); !ok {
				return fail
			}
			chatID, err := a.ChatID.Int64()
			if err != nil {
				return toolFailure("invalid chat id: " + err.Error())
			}
			res := t.actions.Delete(ctx, chatID, int64(a.MessageID))
			return toolResult(res.Success, res.Message, nil)
		})

	t.add("get_user_info", "Get information about a user",
		`{"type":"object","properties":{"user_id":{"type":"integer","description":"User ID to look up"}},"required":["user_id"]}`,
		func(ctx context.Context, raw json.RawMessage) string {
			var a struct {
				UserID flexInt64 `json:"user_id"`
			}
			if ok, fail := decode(raw, &a); !ok {
				return fail
			}
			res, info := t.actions.GetUserInfo(ctx, int64(a.UserID))
			if !res.Success {
				return toolResult(false, res.Message, nil)
			}
			return toolResult(true, res.Message, map[string]any{"user_info": info})
		})

	t.add("get_chat_info", "Get information about the chat",
		`{"type":"object","properties":{"chat_id":{"type":"string","description":"Chat ID"}},"required":["chat_id"]}`,
		func(ctx context.Context, raw json.RawMessage) string {
			var a struct {
				ChatID chatRef `json:"chat_id"`
			}
			if ok, fail := decode(raw, &a); !ok {
				return fail
			}
			chatID, err := a.ChatID.Int64()
			if err != nil {
				return toolFailure("invalid chat id: " + err.Error())
			}
			res, info := t.actions.GetChatInfo(ctx, chatID)
			if !res.Success {
				return toolResult(false, res.Message, nil)
			}
			return toolResult(true, res.Message, map[string]any{"chat_info": info})
		})
}

//
// Moderation store tools
//

func (t *Toolset) registerStoreTools() {
	t.add("save_note", "Save a note for the chat",
		`{"type":"object","properties":{"chat_id":{"type":"string","description":"Chat ID"},"name":{"type":"string","description":"Note name"},"content":{"type":"string","description":"Note content"},"created_by":{"type":"integer","description":"User ID who created the note"}},"required":["chat_id","name","content","created_by"]}`,
		func(ctx context.Context, raw json.RawMessage) string {
			var a struct {
				ChatID    chatRef   `json:"chat_id"`
				Name      string    `json:"name"`
				Content   string    `json:"content"`
				CreatedBy flexInt64 `json:"created_by"`
			}
			if ok, fail := decode(raw, &a); !ok {
				return fail
			}
			if err := t.store.SaveNote(ctx, a.ChatID.String(), a.Name, a.Content, int64(a.CreatedBy)); err != nil {
				return storeFailure("save note", err)
			}
			return toolResult(true, `Note "`+a.Name+`" saved successfully!`, nil)
		})

	t.add("get_note", "Retrieve a saved note",
		`{"type":"object","properties":{"chat_id":{"type":"string","description":"Chat ID"},"name":{"type":"string","description":"Note name"}},"required":["chat_id","name"]}`,
		func(ctx context.Context, raw json.RawMessage) string {
			var a struct {
				ChatID chatRef `json:"chat_id"`
				Name   string  `json:"name"`
			}
			if ok, fail := decode(raw, &a); !ok {
				return fail
			}
			note, err := t.store.GetNote(ctx, a.ChatID.String(), a.Name)
			if errors.Is(err, ErrNotFound) {
				return toolFailure(`Note "` + a.Name + `" not found.`)
			}
			if err != nil {
				return storeFailure("retrieve note", err)
			}
			return toolResult(true, note.Content, map[string]any{"content": note.Content})
		})

	t.add("list_notes", "List all saved notes for the chat",
		`{"type":"object","properties":{"chat_id":{"type":"string","description":"Chat ID"}},"required":["chat_id"]}`,
		func(ctx context.Context, raw json.RawMessage) string {
			var a struct {
				ChatID chatRef `json:"chat_id"`
			}
			if ok, fail := decode(raw, &a); !ok {
				return fail
			}
			notes, err := t.store.ListNotes(ctx, a.ChatID.String())
			if err != nil {
				return storeFailure("list notes", err)
			}
			if len(notes) == 0 {
				return toolResult(true, "No notes saved for this chat.", map[string]any{"notes": []string{}})
			}
			names := make([]string, len(notes))
			for i, n := range notes {
				names[i] = n.Name
			}
			return toolResult(true, "Saved notes: "+strings.Join(names, ", "), map[string]any{"notes": names})
		})

	t.add("delete_note", "Delete a saved note",
		`{"type":"object","properties":{"chat_id":{"type":"string","description":"Chat ID"},"name":{"type":"string","description":"Note name"}},"required":["chat_id","name"]}`,
		func(ctx context.Context, raw json.RawMessage) string {
			var a struct {
				ChatID chatRef `json:"chat_id"`
				Name   string  `json:"name"`
			}
			if ok, fail := decode(raw, &a); !ok {
				return fail
			}
			deleted, err := t.store.DeleteNote(ctx, a.ChatID.String(), a.Name)
			if err != nil {
				return storeFailure("delete note", err)
			}
			if !deleted {
				return toolFailure(`Note "` + a.Name + `" not found.`)
			}
			return toolResult(true, `Note "`+a.Name+`" deleted successfully!`, nil)
		})

	t.add("save_filter", "Save an auto-response filter for the chat",
		`{"type":"object","properties":{"chat_id":{"type":"string","description":"Chat ID"},"keyword":{"type":"string","description":"Keyword that triggers the filter"},"response":{"type":"string","description":"Auto-response text"},"created_by":{"type":"integer","description":"User ID who created the filter"}},"required":["chat_id","keyword","response","created_by"]}`,
		func(ctx context.Context, raw json.RawMessage) string {
			var a struct {
				ChatID    chatRef   `json:"chat_id"`
				Keyword   string    `json:"keyword"`
				Response  string    `json:"response"`
				CreatedBy flexInt64 `json:"created_by"`
			}
			if ok, fail := decode(raw, &a); !ok {
				return fail
			}
			if err := t.store.SaveFilter(ctx, a.ChatID.String(), a.Keyword, a.Response, int64(a.CreatedBy)); err != nil {
				return storeFailure("save filter", err)
			}
			return toolResult(true, `Filter "`+NormalizeKeyword(a.Keyword)+`" saved successfully!`, nil)
		})

	t.add("list_filters", "List all auto-response filters for the chat",
		`{"type":"object","properties":{"chat_id":{"type":"string","description":"Chat ID"}},"required":["chat_id"]}`,
		func(ctx context.Context, raw json.RawMessage) string {
			var a struct {
				ChatID chatRef `json:"chat_id"`
			}
			if ok, fail := decode(raw, &a); !ok {
				return fail
			}
			filters, err := t.store.ListFilters(ctx, a.ChatID.String())
			if err != nil {
				return storeFailure("list filters", err)
			}
			if len(filters) == 0 {
				return toolResult(true, "No filters set for this chat.", map[string]any{"filters": []string{}})
			}
			keywords := make([]string, len(filters))
			for i, f := range filters {
				keywords[i] = f.Keyword
			}
			return toolResult(true, "Active filters: "+strings.Join(keywords, ", "), map[string]any{"filters": keywords})
		})

	t.add("delete_filter", "Remove an auto-response filter",
		`{"type":"object","properties":{"chat_id":{"type":"string","description":"Chat ID"},"keyword":{"type":"string","description":"Keyword of the filter to remove"}},"required":["chat_id","keyword"]}`,
		func(ctx context.Context, raw json.RawMessage) string {
			var a struct {
				ChatID  chatRef `json:"chat_id"`
				Keyword string  `json:"keyword"`
			}
			if ok, fail := decode(raw, &a); !ok {
				return fail
			}
			deleted, err := t.store.DeleteFilter(ctx, a.ChatID.String(), a.Keyword)
			if err != nil {
				return storeFailure("delete filter", err)
			}
			if !deleted {
				return toolFailure(`Filter "` + NormalizeKeyword(a.Keyword) + `" not found.`)
			}
			return toolResult(true, `Filter "`+NormalizeKeyword(a.Keyword)+`" deleted successfully!`, nil)
		})

	t.add("add_warning", "Issue a warning to a user",
		`{"type":"object","properties":{"chat_id":{"type":"string","description":"Chat ID"},"user_id":{"type":"integer","description":"User ID to warn"},"reason":{"type":"string","description":"Reason for the warning"},"warned_by":{"type":"integer","description":"Admin user ID issuing the warning"}},"required":["chat_id","user_id","reason","warned_by"]}`,
		func(ctx context.Context, raw json.RawMessage) string {
			var a struct {
				ChatID   chatRef   `json:"chat_id"`
				UserID   flexInt64 `json:"user_id"`
				Reason   string    `json:"reason"`
				WarnedBy flexInt64 `json:"warned_by"`
			}
			if ok, fail := decode(raw, &a); !ok {
				return fail
			}
			count, err := t.store.AddWarning(ctx, a.ChatID.String(), int64(a.UserID), a.Reason, int64(a.WarnedBy))
			if err != nil {
				return storeFailure("add warning", err)
			}
			msg := "Warning issued. User now has " + strconv.FormatInt(count, 10) + " warning(s). Reason: " + a.Reason
			return toolResult(true, msg, map[string]any{"warning_count": count})
		})

	t.add("get_warnings", "Get the warnings on record for a user",
		`{"type":"object","properties":{"chat_id":{"type":"string","description":"Chat ID"},"user_id":{"type":"integer","description":"User ID"}},"required":["chat_id","user_id"]}`,
		func(ctx context.Context, raw json.RawMessage) string {
			var a struct {
				ChatID chatRef   `json:"chat_id"`
				UserID flexInt64 `json:"user_id"`
			}
			if ok, fail := decode(raw, &a); !ok {
				return fail
			}
			warnings, err := t.store.GetWarnings(ctx, a.ChatID.String(), int64(a.UserID))
			if err != nil {
				return storeFailure("get warnings", err)
			}
			type entry struct {
				Reason string `json:"reason"`
				Date   string `json:"date"`
			}
			entries := make([]entry, len(warnings))
			for i, w := range warnings {
				entries[i] = entry{Reason: w.Reason, Date: w.WarnedAt.Format("2006-01-02T15:04:05Z07:00")}
			}
			msg := "User has no warnings"
			if len(warnings) > 0 {
				msg = "User has " + strconv.Itoa(len(warnings)) + " warning(s)"
			}
			return toolResult(true, msg, map[string]any{
				"warning_count": len(warnings),
				"warnings":      entries,
			})
		})

	t.add("clear_warnings", "Clear all warnings for a user",
		`{"type":"object","properties":{"chat_id":{"type":"string","description":"Chat ID"},"user_id":{"type":"integer","description":"User ID"}},"required":["chat_id","user_id"]}`,
		func(ctx context.Context, raw json.RawMessage) string {
			var a struct {
				ChatID chatRef   `json:"chat_id"`
				UserID flexInt64 `json:"user_id"`
			}
			if ok, fail := decode(raw, &a); !ok {
				return fail
			}
			if _, err := t.store.ClearWarnings(ctx, a.ChatID.String(), int64(a.UserID)); err != nil {
				return storeFailure("clear warnings", err)
			}
			return toolResult(true, "All warnings cleared for user", nil)
		})

	t.add("get_settings", "Get the bot settings for the chat",
		`{"type":"object","properties":{"chat_id":{"type":"string","description":"Chat ID"}},"required":["chat_id"]}`,
		func(ctx context.Context, raw json.RawMessage) string {
			var a struct {
				ChatID chatRef `json:"chat_id"`
			}
			if ok, fail := decode(raw, &a); !ok {
				return fail
			}
			settings, err := t.store.GetSettings(ctx, a.ChatID.String())
			if err != nil {
				return storeFailure("get settings", err)
			}
			return toolResult(true, "Settings retrieved", map[string]any{"settings": settings})
		})

	t.add("save_settings", "Update the bot settings for the chat",
		`{"type":"object","properties":{"chat_id":{"type":"string","description":"Chat ID"},"welcome_message":{"type":"string","description":"Welcome message for new members"},"goodbye_message":{"type":"string","description":"Goodbye message for leaving members"},"rules":{"type":"string","description":"Group rules text"},"antiflood_enabled":{"type":"boolean","description":"Enable antiflood protection"},"antiflood_limit":{"type":"integer","description":"Messages allowed before antiflood triggers"}},"required":["chat_id"]}`,
		func(ctx context.Context, raw json.RawMessage) string {
			var a struct {
				ChatID           chatRef    `json:"chat_id"`
				WelcomeMessage   *string    `json:"welcome_message"`
				GoodbyeMessage   *string    `json:"goodbye_message"`
				Rules            *string    `json:"rules"`
				AntifloodEnabled *bool      `json:"antiflood_enabled"`
				AntifloodLimit   *flexInt64 `json:"antiflood_limit"`
			}
			if ok, fail := decode(raw, &a); !ok {
				return fail
			}
			// Merge over the current (possibly defaulted) settings so a
			// partial update does not blank the other fields.
			current, err := t.store.GetSettings(ctx, a.ChatID.String())
			if err != nil {
				return storeFailure("save settings", err)
			}
			if a.WelcomeMessage != nil {
				current.WelcomeMessage = a.WelcomeMessage
			}
			if a.GoodbyeMessage != nil {
				current.GoodbyeMessage = a.GoodbyeMessage
			}
			if a.Rules != nil {
				current.Rules = a.Rules
			}
			if a.AntifloodEnabled != nil {
				current.AntifloodEnabled = *a.AntifloodEnabled
			}
			if a.AntifloodLimit != nil {
				current.AntifloodLimit = int(*a.AntifloodLimit)
			}
			if err := t.store.SaveSettings(ctx, current); err != nil {
				return storeFailure("save settings", err)
			}
			return toolResult(true, "Settings updated successfully!", nil)
		})

	t.add("get_stats", "Get activity statistics for the chat",
		`{"type":"object","properties":{"chat_id":{"type":"string","description":"Chat ID"}},"required":["chat_id"]}`,
		func(ctx context.Context, raw json.RawMessage) string {
			var a struct {
				ChatID chatRef `json:"chat_id"`
			}
			if ok, fail := decode(raw, &a); !ok {
				return fail
			}
			stats, err := t.store.GetStats(ctx, a.ChatID.String())
			if errors.Is(err, ErrNotFound) {
				stats = &domain.ChatStats{ChatID: a.ChatID.String()}
			} else if err != nil {
				return storeFailure("get stats", err)
			}
			return toolResult(true, "Stats retrieved", map[string]any{"stats": stats})
		})

	t.add("update_stats", "Record activity statistics for the chat",
		`{"type":"object","properties":{"chat_id":{"type":"string","description":"Chat ID"},"message_count":{"type":"integer","description":"Messages to add to the counter"},"user_count":{"type":"integer","description":"Candidate member count (high-water mark)"},"commands_executed":{"type":"integer","description":"Commands to add to the counter"}},"required":["chat_id"]}`,
		func(ctx context.Context, raw json.RawMessage) string {
			var a struct {
				ChatID           chatRef   `json:"chat_id"`
				MessageCount     flexInt64 `json:"message_count"`
				UserCount        flexInt64 `json:"user_count"`
				CommandsExecuted flexInt64 `json:"commands_executed"`
			}
			if ok, fail := decode(raw, &a); !ok {
				return fail
			}
			delta := repo.StatsDelta{
				Messages: int64(a.MessageCount),
				Users:    int64(a.UserCount),
				Commands: int64(a.CommandsExecuted),
			}
			if err := t.store.UpdateStats(ctx, a.ChatID.String(), delta); err != nil {
				return storeFailure("update stats", err)
			}
			return toolResult(true, "Stats updated", nil)
		})
}
