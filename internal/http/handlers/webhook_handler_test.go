package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/Gtajisan/p2a-modbot/internal/services"
)

// ---- stubs ----

type stubPipeline struct {
	calls []services.IncomingMessage
	chats []int64
	res   services.PipelineResult
}

func (s *stubPipeline) Process(_ context.Context, chatID int64, msg services.IncomingMessage) services.PipelineResult {
	s.chats = append(s.chats, chatID)
	s.calls = append(s.calls, msg)
	return s.res
}

type stubDeduper struct {
	seen map[int64]bool
	err  error
}

func (s *stubDeduper) FirstSeen(_ context.Context, updateID int64) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if s.seen == nil {
		s.seen = map[int64]bool{}
	}
	if s.seen[updateID] {
		return false, nil
	}
	s.seen[updateID] = true
	return true, nil
}

func newWebhookRouter(h *WebhookHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhooks/telegram/action", h.HandleUpdate)
	return r
}

func post(r *gin.Engine, body string, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/telegram/action", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

const textUpdate = `{
	"update_id": 9001,
	"message": {
		"message_id": 17,
		"from": {"id": 42, "username": "ada", "first_name": "Ada"},
		"chat": {"id": -100500, "type": "supergroup"},
		"text": "/stats"
	}
}`

// ---- tests ----

func TestHandleUpdate_TextMessageProcessed(t *testing.T) {
	p := &stubPipeline{res: services.PipelineResult{Summary: "done", Success: true}}
	r := newWebhookRouter(NewWebhookHandler(p, &stubDeduper{}, ""))

	w := post(r, textUpdate, nil)
	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Fatalf("got %d %q, want 200 OK", w.Code, w.Body.String())
	}
	if len(p.calls) != 1 {
		t.Fatalf("pipeline invoked %d times, want 1", len(p.calls))
	}
	got := p.calls[0]
	if got.ChatID != "-100500" || got.UserID != 42 || got.UserName != "ada" ||
		got.Text != "/stats" || got.MessageID != 17 || got.ChatType != "supergroup" {
		t.Fatalf("unexpected message: %+v", got)
	}
	if p.chats[0] != -100500 {
		t.Fatalf("numeric chat id = %d", p.chats[0])
	}
}

func TestHandleUpdate_ReplyContextExtracted(t *testing.T) {
	p := &stubPipeline{res: services.PipelineResult{Success: true}}
	r := newWebhookRouter(NewWebhookHandler(p, nil, ""))

	body := `{"update_id":2,"message":{"message_id":20,
		"from":{"id":7,"username":"mod"},
		"chat":{"id":-5,"type":"supergroup"},
		"text":"/warn spam",
		"reply_to_message":{"message_id":12,"from":{"id":99}}}}`
	if w := post(r, body, nil); w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if len(p.calls) != 1 {
		t.Fatalf("pipeline invoked %d times, want 1", len(p.calls))
	}
	got := p.calls[0]
	if got.ReplyToMessageID != 12 || got.ReplyToUserID != 99 {
		t.Fatalf("reply context lost: %+v", got)
	}
}

func TestHandleUpdate_UserNameFallbacks(t *testing.T) {
	cases := []struct {
		name string
		from string
		want string
	}{
		{"username preferred", `{"id":1,"username":"ada","first_name":"Ada"}`, "ada"},
		{"first name fallback", `{"id":1,"first_name":"Ada"}`, "Ada"},
		{"unknown fallback", `{"id":1}`, "Unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &stubPipeline{res: services.PipelineResult{Success: true}}
			r := newWebhookRouter(NewWebhookHandler(p, nil, ""))

			body := `{"update_id":1,"message":{"message_id":2,"from":` + tc.from +
				`,"chat":{"id":-5,"type":"group"},"text":"hi"}}`
			if w := post(r, body, nil); w.Code != http.StatusOK {
				t.Fatalf("status %d", w.Code)
			}
			if len(p.calls) != 1 || p.calls[0].UserName != tc.want {
				t.Fatalf("UserName = %q, want %q", p.calls[0].UserName, tc.want)
			}
		})
	}
}

func TestHandleUpdate_NonMessageUpdateAcknowledged(t *testing.T) {
	p := &stubPipeline{}
	r := newWebhookRouter(NewWebhookHandler(p, &stubDeduper{}, ""))

	w := post(r, `{"update_id":5,"edited_message":{"message_id":1}}`, nil)
	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Fatalf("got %d %q, want 200 OK", w.Code, w.Body.String())
	}
	if len(p.calls) != 0 {
		t.Fatalf("pipeline should not run for non-message updates")
	}
}

func TestHandleUpdate_NonTextMessageAcknowledged(t *testing.T) {
	p := &stubPipeline{}
	r := newWebhookRouter(NewWebhookHandler(p, &stubDeduper{}, ""))

	body := `{"update_id":6,"message":{"message_id":3,"from":{"id":1},"chat":{"id":-5,"type":"group"},"photo":[{"file_id":"x"}]}}`
	w := post(r, body, nil)
	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Fatalf("got %d %q, want 200 OK", w.Code, w.Body.String())
	}
	if len(p.calls) != 0 {
		t.Fatalf("pipeline should not run for non-text messages")
	}
}

func TestHandleUpdate_MalformedJSON(t *testing.T) {
	p := &stubPipeline{}
	r := newWebhookRouter(NewWebhookHandler(p, nil, ""))

	w := post(r, `{"update_id":`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", w.Code)
	}
	if len(p.calls) != 0 {
		t.Fatalf("pipeline ran on malformed payload")
	}
}

func TestHandleUpdate_DuplicateUpdateNotReprocessed(t *testing.T) {
	p := &stubPipeline{res: services.PipelineResult{Success: true}}
	r := newWebhookRouter(NewWebhookHandler(p, &stubDeduper{}, ""))

	for i := 0; i < 2; i++ {
		if w := post(r, textUpdate, nil); w.Code != http.StatusOK || w.Body.String() != "OK" {
			t.Fatalf("delivery %d: got %d %q", i, w.Code, w.Body.String())
		}
	}
	if len(p.calls) != 1 {
		t.Fatalf("pipeline invoked %d times, want 1 (duplicate acknowledged)", len(p.calls))
	}
}

func TestHandleUpdate_LedgerFailureDoesNotDropUpdate(t *testing.T) {
	p := &stubPipeline{res: services.PipelineResult{Success: true}}
	r := newWebhookRouter(NewWebhookHandler(p, &stubDeduper{err: errors.New("db down")}, ""))

	w := post(r, textUpdate, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", w.Code)
	}
	if len(p.calls) != 1 {
		t.Fatalf("update dropped when ledger failed")
	}
}

func TestHandleUpdate_PipelineFailureStillAcknowledged(t *testing.T) {
	p := &stubPipeline{res: services.PipelineResult{Summary: "Failed to send response: boom", Success: false}}
	r := newWebhookRouter(NewWebhookHandler(p, nil, ""))

	w := post(r, textUpdate, nil)
	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Fatalf("processing failure must not change the ack: %d %q", w.Code, w.Body.String())
	}
}

func TestHandleUpdate_SecretToken(t *testing.T) {
	p := &stubPipeline{res: services.PipelineResult{Success: true}}
	r := newWebhookRouter(NewWebhookHandler(p, nil, "s3cret"))

	if w := post(r, textUpdate, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing secret: got %d, want 401", w.Code)
	}
	if w := post(r, textUpdate, map[string]string{"X-Telegram-Bot-Api-Secret-Token": "wrong"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong secret: got %d, want 401", w.Code)
	}
	w := post(r, textUpdate, map[string]string{"X-Telegram-Bot-Api-Secret-Token": "s3cret"})
	if w.Code != http.StatusOK || len(p.calls) != 1 {
		t.Fatalf("correct secret: got %d calls=%d", w.Code, len(p.calls))
	}
}
