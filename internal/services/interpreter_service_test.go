package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// completionRequest is the slice of the chat-completion request the tests
// inspect.
type completionRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role       string `json:"role"`
		Content    string `json:"content"`
		ToolCallID string `json:"tool_call_id"`
	} `json:"messages"`
	Tools []struct {
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	} `json:"tools"`
}

// fakeModel is an OpenAI-compatible stub that replays a queue of completion
// bodies and records every request it sees.
type fakeModel struct {
	mu       sync.Mutex
	queue    []string
	requests []completionRequest
	status   int
}

func newFakeModel(t *testing.T, bodies ...string) (*openai.Client, *fakeModel) {
	t.Helper()
	fm := &fakeModel{queue: bodies, status: http.StatusOK}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req completionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		fm.mu.Lock()
		fm.requests = append(fm.requests, req)
		status := fm.status
		var body string
		if len(fm.queue) > 0 {
			body = fm.queue[0]
			fm.queue = fm.queue[1:]
		} else {
			body = toolLoopBody // keep looping when the queue runs dry
		}
		fm.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"backend exploded"}}`))
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return openai.NewClientWithConfig(cfg), fm
}

// finalBody renders a completion that answers with plain text.
func finalBody(text string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "cmpl-1",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   "gpt-4o",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": text},
		}},
	})
	return string(b)
}

// toolCallBody renders a completion that requests one tool invocation.
func toolCallBody(callID, name, args string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "cmpl-2",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   "gpt-4o",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "tool_calls",
			"message": map[string]any{
				"role": "assistant",
				"tool_calls": []map[string]any{{
					"id":   callID,
					"type": "function",
					"function": map[string]any{
						"name":      name,
						"arguments": args,
					},
				}},
			},
		}},
	})
	return string(b)
}

var toolLoopBody = toolCallBody("call-loop", "get_stats", `{"chat_id":"c1"}`)

// newInterpreterUnderTest wires an interpreter over fake model, fake bot, and
// a live store.
func newInterpreterUnderTest(t *testing.T, client *openai.Client, window int) (*InterpreterService, *ModerationStore) {
	t.Helper()
	actions, _ := newFakeBot(t, nil)
	store := NewModerationStore(newStoreDB(t))
	tools := NewToolset(actions, store)
	memory := NewConversationMemory(store.DB, window)
	return NewInterpreterService(client, "gpt-4o", tools, memory, 3, 30*time.Second), store
}

func TestInterpret_DirectResponse(t *testing.T) {
	client, fm := newFakeModel(t, finalBody("Hello Ada!"))
	svc, _ := newInterpreterUnderTest(t, client, 20)

	msg := IncomingMessage{ChatID: "-100500", UserID: 42, UserName: "ada", Text: "hi bot", MessageID: 17}
	res := svc.Interpret(context.Background(), msg)
	if !res.Success || res.Response != "Hello Ada!" || res.ToolCalls != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	fm.mu.Lock()
	req := fm.requests[0]
	fm.mu.Unlock()
	if req.Messages[0].Role != "system" {
		t.Fatalf("first message must be the system prompt, got %q", req.Messages[0].Role)
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != "user" {
		t.Fatalf("last message must be the user prompt, got %q", last.Role)
	}
	for _, frag := range []string{"chat -100500", "@ada", "ID: 42", "Message ID: 17"} {
		if !strings.Contains(last.Content, frag) {
			t.Errorf("user prompt missing %q:\n%s", frag, last.Content)
		}
	}
	if len(req.Tools) == 0 {
		t.Fatalf("tool catalog not offered to the model")
	}
}

func TestInterpret_ToolRoundThenFinal(t *testing.T) {
	client, fm := newFakeModel(t,
		toolCallBody("call-1", "save_note", `{"chat_id":"c1","name":"rules","content":"be nice","created_by":42}`),
		finalBody("Saved the note!"),
	)
	svc, store := newInterpreterUnderTest(t, client, 20)

	res := svc.Interpret(context.Background(), IncomingMessage{ChatID: "c1", UserID: 42, UserName: "ada", Text: "/save rules be nice"})
	if !res.Success || res.Response != "Saved the note!" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.ToolCalls != 1 {
		t.Fatalf("ToolCalls = %d, want 1", res.ToolCalls)
	}

	// The tool really ran against the store.
	note, err := store.GetNote(context.Background(), "c1", "rules")
	if err != nil || note.Content != "be nice" {
		t.Fatalf("note not persisted: %+v, %v", note, err)
	}

	// The second request carried the tool result back to the model.
	fm.mu.Lock()
	second := fm.requests[1]
	fm.mu.Unlock()
	var sawToolResult bool
	for _, m := range second.Messages {
		if m.Role == "tool" && m.ToolCallID == "call-1" && strings.Contains(m.Content, "saved successfully") {
			sawToolResult = true
		}
	}
	if !sawToolResult {
		t.Fatalf("tool result not replayed to the model: %+v", second.Messages)
	}
}

func TestInterpret_RoundCapFallsBack(t *testing.T) {
	// Queue empty: the fake answers every request with another tool call.
	client, fm := newFakeModel(t)
	svc, _ := newInterpreterUnderTest(t, client, 20)

	res := svc.Interpret(context.Background(), IncomingMessage{ChatID: "c1", UserID: 1, UserName: "u", Text: "loop"})
	if res.Success {
		t.Fatalf("round cap must fail interpretation: %+v", res)
	}
	if res.Response != FallbackResponse {
		t.Fatalf("Response = %q, want the fallback", res.Response)
	}

	fm.mu.Lock()
	n := len(fm.requests)
	fm.mu.Unlock()
	if n != 3 {
		t.Fatalf("made %d completion calls, want the configured cap of 3", n)
	}
}

func TestInterpret_APIErrorFallsBack(t *testing.T) {
	client, fm := newFakeModel(t)
	fm.status = http.StatusInternalServerError
	svc, _ := newInterpreterUnderTest(t, client, 20)

	res := svc.Interpret(context.Background(), IncomingMessage{ChatID: "c1", UserID: 1, UserName: "u", Text: "hi"})
	if res.Success || res.Response != FallbackResponse {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.ActionTaken == "" {
		t.Fatalf("ActionTaken should describe the failure")
	}
}

func TestInterpret_EmptyCompletionFallsBack(t *testing.T) {
	client, _ := newFakeModel(t, finalBody("   "))
	svc, _ := newInterpreterUnderTest(t, client, 20)

	res := svc.Interpret(context.Background(), IncomingMessage{ChatID: "c1", UserID: 1, UserName: "u", Text: "hi"})
	if res.Success || res.Response != FallbackResponse {
		t.Fatalf("blank completion must fall back: %+v", res)
	}
}

func TestInterpret_MemoryReplayAndAppend(t *testing.T) {
	client, fm := newFakeModel(t, finalBody("first answer"), finalBody("second answer"))
	svc, _ := newInterpreterUnderTest(t, client, 20)
	ctx := context.Background()

	msg := IncomingMessage{ChatID: "c9", UserID: 1, UserName: "u", Text: "remember me"}
	if res := svc.Interpret(ctx, msg); !res.Success {
		t.Fatalf("first interpret failed: %+v", res)
	}

	msg.Text = "what did I say?"
	if res := svc.Interpret(ctx, msg); !res.Success {
		t.Fatalf("second interpret failed: %+v", res)
	}

	fm.mu.Lock()
	second := fm.requests[1]
	fm.mu.Unlock()

	var sawHistoryUser, sawHistoryAssistant bool
	for _, m := range second.Messages {
		if m.Role == "user" && m.Content == "remember me" {
			sawHistoryUser = true
		}
		if m.Role == "assistant" && m.Content == "first answer" {
			sawHistoryAssistant = true
		}
	}
	if !sawHistoryUser || !sawHistoryAssistant {
		t.Fatalf("conversation window not replayed: user=%v assistant=%v", sawHistoryUser, sawHistoryAssistant)
	}
}

func TestThreadID_StablePerChat(t *testing.T) {
	if ThreadID("c1") != ThreadID("c1") {
		t.Fatalf("thread id not stable")
	}
	if ThreadID("c1") == ThreadID("c2") {
		t.Fatalf("distinct chats share a thread")
	}
}
