package services

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// scriptedInterpreter returns a fixed result and records invocations.
type scriptedInterpreter struct {
	result InterpretResult
	calls  int
}

func (s *scriptedInterpreter) Interpret(_ context.Context, _ IncomingMessage) InterpretResult {
	s.calls++
	return s.result
}

// sendAttempt records one delivery attempt.
type sendAttempt struct {
	ChatID  int64
	Text    string
	ReplyTo int64
}

// scriptedSender replays a queue of results, one per Send call.
type scriptedSender struct {
	results  []ActionResult
	attempts []sendAttempt
}

func (s *scriptedSender) Send(_ context.Context, chatID int64, text string, replyTo int64) ActionResult {
	s.attempts = append(s.attempts, sendAttempt{ChatID: chatID, Text: text, ReplyTo: replyTo})
	if len(s.results) == 0 {
		return ActionResult{Success: true, Message: "Message sent successfully"}
	}
	res := s.results[0]
	s.results = s.results[1:]
	return res
}

func testMessage() IncomingMessage {
	return IncomingMessage{
		ChatID:    "-100500",
		ChatType:  "supergroup",
		UserID:    42,
		UserName:  "ada",
		Text:      "/stats",
		MessageID: 17,
	}
}

func TestPipeline_DeliversInterpreterResponseAsReply(t *testing.T) {
	interp := &scriptedInterpreter{result: InterpretResult{Response: "Here are the stats", Success: true}}
	sender := &scriptedSender{}
	p := NewPipelineService(interp, sender, nil)

	res := p.Process(context.Background(), -100500, testMessage())
	if !res.Success {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(sender.attempts) != 1 {
		t.Fatalf("expected one delivery, got %d", len(sender.attempts))
	}
	got := sender.attempts[0]
	if got.ChatID != -100500 || got.Text != "Here are the stats" || got.ReplyTo != 17 {
		t.Fatalf("unexpected delivery: %+v", got)
	}
}

func TestPipeline_ReplyFailureRetriesOnceWithoutReply(t *testing.T) {
	interp := &scriptedInterpreter{result: InterpretResult{Response: "answer", Success: true}}
	sender := &scriptedSender{results: []ActionResult{
		{Success: false, Message: "Failed to send message: telegram api error 400: Bad Request: message to be replied not found"},
		{Success: true, Message: "Message sent successfully"},
	}}
	p := NewPipelineService(interp, sender, nil)

	res := p.Process(context.Background(), -1, testMessage())
	if !res.Success {
		t.Fatalf("retry should recover delivery: %+v", res)
	}
	if len(sender.attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(sender.attempts))
	}
	if sender.attempts[0].ReplyTo != 17 || sender.attempts[1].ReplyTo != 0 {
		t.Fatalf("retry must drop the reply linkage: %+v", sender.attempts)
	}
}

func TestPipeline_NonReplyFailureDoesNotRetry(t *testing.T) {
	interp := &scriptedInterpreter{result: InterpretResult{Response: "answer", Success: true}}
	sender := &scriptedSender{results: []ActionResult{
		{Success: false, Message: "Failed to send message: telegram api error 403: bot was blocked by the user"},
	}}
	p := NewPipelineService(interp, sender, nil)

	res := p.Process(context.Background(), -1, testMessage())
	if res.Success {
		t.Fatalf("delivery failure must fail the run: %+v", res)
	}
	if len(sender.attempts) != 1 {
		t.Fatalf("expected exactly 1 attempt, got %d", len(sender.attempts))
	}
	if !strings.Contains(res.Summary, "Failed to send response") {
		t.Fatalf("unexpected summary: %q", res.Summary)
	}
}

func TestPipeline_RetryFailureIsTerminal(t *testing.T) {
	interp := &scriptedInterpreter{result: InterpretResult{Response: "answer", Success: true}}
	sender := &scriptedSender{results: []ActionResult{
		{Success: false, Message: "Failed to send message: message to be replied not found"},
		{Success: false, Message: "Failed to send message: chat not found"},
	}}
	p := NewPipelineService(interp, sender, nil)

	res := p.Process(context.Background(), -1, testMessage())
	if res.Success {
		t.Fatalf("expected terminal failure: %+v", res)
	}
	if len(sender.attempts) != 2 {
		t.Fatalf("expected exactly 2 attempts (no second retry), got %d", len(sender.attempts))
	}
}

func TestPipeline_FallbackResponseStillDelivered(t *testing.T) {
	interp := &scriptedInterpreter{result: InterpretResult{
		Response:    FallbackResponse,
		Success:     false,
		ActionTaken: "Error: model unavailable",
	}}
	sender := &scriptedSender{}
	p := NewPipelineService(interp, sender, nil)

	res := p.Process(context.Background(), -1, testMessage())
	if res.Success {
		t.Fatalf("interpretation failure must not report success: %+v", res)
	}
	if len(sender.attempts) != 1 || sender.attempts[0].Text != FallbackResponse {
		t.Fatalf("fallback must still be delivered: %+v", sender.attempts)
	}
	if !strings.Contains(res.Summary, "Error: model unavailable") {
		t.Fatalf("summary should carry the action: %q", res.Summary)
	}
}

func TestPipeline_FilterFastPathSkipsInterpreter(t *testing.T) {
	store := NewModerationStore(newStoreDB(t))
	if err := store.SaveFilter(context.Background(), "-100500", "Hello", "Hi there!", 7); err != nil {
		t.Fatalf("seed filter: %v", err)
	}

	interp := &scriptedInterpreter{result: InterpretResult{Response: "should not run", Success: true}}
	sender := &scriptedSender{}
	p := NewPipelineService(interp, sender, store)

	msg := testMessage()
	msg.Text = "well HELLO everyone"
	res := p.Process(context.Background(), -100500, msg)
	if !res.Success {
		t.Fatalf("unexpected result: %+v", res)
	}
	if interp.calls != 0 {
		t.Fatalf("interpreter ran despite filter match")
	}
	if len(sender.attempts) != 1 || sender.attempts[0].Text != "Hi there!" {
		t.Fatalf("filter response not delivered: %+v", sender.attempts)
	}
}

func TestPipeline_NoFilterMatchFallsThrough(t *testing.T) {
	store := NewModerationStore(newStoreDB(t))
	if err := store.SaveFilter(context.Background(), "-100500", "bye", "Goodbye!", 7); err != nil {
		t.Fatalf("seed filter: %v", err)
	}

	interp := &scriptedInterpreter{result: InterpretResult{Response: "interpreted", Success: true}}
	sender := &scriptedSender{}
	p := NewPipelineService(interp, sender, store)

	res := p.Process(context.Background(), -100500, testMessage())
	if !res.Success || interp.calls != 1 {
		t.Fatalf("message should reach the interpreter: %+v calls=%d", res, interp.calls)
	}
}

func TestPipeline_StatsTouchRecordsMessage(t *testing.T) {
	store := NewModerationStore(newStoreDB(t))
	interp := &scriptedInterpreter{result: InterpretResult{Response: "ok", Success: true}}
	p := NewPipelineService(interp, &scriptedSender{}, store)

	msg := testMessage()
	p.Process(context.Background(), -100500, msg)
	p.Process(context.Background(), -100500, msg)

	stats, err := store.GetStats(context.Background(), "-100500")
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.MessageCount != 2 {
		t.Fatalf("MessageCount = %d, want 2", stats.MessageCount)
	}
}

func TestPipeline_OutcomeCounterVocabulary(t *testing.T) {
	deliveredBase := testutil.ToFloat64(pipelineMessages.WithLabelValues("delivered"))
	fallbackBase := testutil.ToFloat64(pipelineMessages.WithLabelValues("delivered_fallback"))

	interp := &scriptedInterpreter{result: InterpretResult{Response: "answer", Success: true}}
	p := NewPipelineService(interp, &scriptedSender{}, nil)
	p.Process(context.Background(), -1, testMessage())

	fallback := &scriptedInterpreter{result: InterpretResult{Response: FallbackResponse, Success: false}}
	p = NewPipelineService(fallback, &scriptedSender{}, nil)
	p.Process(context.Background(), -1, testMessage())

	if got := testutil.ToFloat64(pipelineMessages.WithLabelValues("delivered")) - deliveredBase; got != 1 {
		t.Fatalf("delivered delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(pipelineMessages.WithLabelValues("delivered_fallback")) - fallbackBase; got != 1 {
		t.Fatalf("delivered_fallback delta = %v, want 1", got)
	}
}

func TestIsReplyFailure(t *testing.T) {
	cases := []struct {
		message string
		want    bool
	}{
		{"Failed to send message: message to be replied not found", true},
		{"Failed to send message: REPLY message invalid", true},
		{"Failed to send message: message thread not found", true},
		{"Failed to send message: chat not found", false},
		{"Failed to send message: bot was blocked by the user", false},
	}
	for _, tc := range cases {
		if got := isReplyFailure(tc.message); got != tc.want {
			t.Errorf("isReplyFailure(%q) = %v, want %v", tc.message, got, tc.want)
		}
	}
}
