package processor_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/delivery-queue/internal/adapter"
	"github.com/notifyhub/delivery-queue/internal/domain"
	"github.com/notifyhub/delivery-queue/internal/processor"
	"github.com/notifyhub/delivery-queue/internal/ratelimiter"
	"github.com/notifyhub/delivery-queue/internal/store"
)

// fakeSender records calls and returns the configured error (or panics).
type fakeSender struct {
	calls     int
	lastDest  string
	lastText  string
	lastHint  string
	err       error
	willPanic bool
}

func (f *fakeSender) Send(_ context.Context, destination, text, formatHint string) error {
	f.calls++
	f.lastDest, f.lastText, f.lastHint = destination, text, formatHint
	if f.willPanic {
		panic("sender exploded")
	}
	return f.err
}

func newProcessor(senders map[domain.Channel]*fakeSender) (*processor.Processor, *store.MemoryStore) {
	st := store.NewMemoryStore()
	reg := adapter.NewRegistry()
	for ch, s := range senders {
		reg.Register(ch, s)
	}
	proc := processor.New(st, reg, ratelimiter.New(1000), zap.NewNop(), processor.MetricHooks{})
	return proc, st
}

func telegramRequest(maxRetries int) domain.EnqueueRequest {
	return domain.EnqueueRequest{
		UserID:           "user-1",
		NotificationType: "telegram_message",
		Channel:          domain.ChannelTelegram,
		Payload: map[string]string{
			"chat_id":    "555",
			"message":    "hello there",
			"parse_mode": "MarkdownV2",
		},
		MaxRetries: &maxRetries,
	}
}

func TestProcessQueueWithBatches_HappyPath(t *testing.T) {
	sender := &fakeSender{}
	proc, st := newProcessor(map[domain.Channel]*fakeSender{domain.ChannelTelegram: sender})
	ctx := context.Background()

	id, _ := st.Enqueue(ctx, telegramRequest(3))

	results, err := proc.ProcessQueueWithBatches(ctx, 10, []domain.Channel{domain.ChannelTelegram})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res := results[domain.ChannelTelegram]
	if res == nil {
		t.Fatal("expected a result for the telegram channel")
	}
	if res.Success != 1 || res.Failed != 0 {
		t.Fatalf("expected success=1 failed=0, got %+v", res)
	}
	if res.BatchID == "" {
		t.Fatal("expected a processing batch id")
	}
	if sender.calls != 1 || sender.lastDest != "555" || sender.lastText != "hello there" || sender.lastHint != "MarkdownV2" {
		t.Fatalf("unexpected sender call: %+v", sender)
	}

	item, _ := st.GetByID(ctx, id)
	if item.Status != domain.StatusCompleted {
		t.Fatalf("expected status=completed, got %s", item.Status)
	}
	if item.ProcessingTime == nil || *item.ProcessingTime < 0 {
		t.Fatal("expected a recorded processing time >= 0")
	}
}

func TestProcessQueueWithBatches_ChannelIsolation(t *testing.T) {
	tg := &fakeSender{}
	email := &fakeSender{err: errors.New("smtp unavailable")}
	proc, st := newProcessor(map[domain.Channel]*fakeSender{
		domain.ChannelTelegram: tg,
		domain.ChannelEmail:    email,
	})
	ctx := context.Background()

	st.Enqueue(ctx, telegramRequest(3)) //nolint:errcheck
	emailReq := telegramRequest(3)
	emailReq.Channel = domain.ChannelEmail
	emailID, _ := st.Enqueue(ctx, emailReq)

	results, err := proc.ProcessQueueWithBatches(ctx, 10, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected results for 2 channels, got %d", len(results))
	}
	if results[domain.ChannelTelegram].Success != 1 {
		t.Fatal("telegram delivery must succeed despite the email failure")
	}
	if results[domain.ChannelEmail].Failed != 1 {
		t.Fatal("expected the email item to fail")
	}

	item, _ := st.GetByID(ctx, emailID)
	if item.Status != domain.StatusRetry {
		t.Fatalf("expected failed email item to be scheduled for retry, got %s", item.Status)
	}
	if item.LastError == nil || *item.LastError != "smtp unavailable" {
		t.Fatal("expected the sender error to be recorded")
	}
}

func TestProcessQueue_MalformedPayloadSkipsAdapter(t *testing.T) {
	sender := &fakeSender{}
	proc, st := newProcessor(map[domain.Channel]*fakeSender{domain.ChannelTelegram: sender})
	ctx := context.Background()

	req := telegramRequest(3)
	req.Payload = map[string]string{} // no destination, no text
	id, _ := st.Enqueue(ctx, req)

	result, err := proc.ProcessQueue(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success != 0 || result.Failed != 1 {
		t.Fatalf("expected success=0 failed=1, got %+v", result)
	}
	if sender.calls != 0 {
		t.Fatal("the adapter must not be called for a malformed payload")
	}

	item, _ := st.GetByID(ctx, id)
	if item.LastError == nil || *item.LastError != domain.ErrMissingDestination.Error() {
		t.Fatalf("expected a missing destination error, got %v", item.LastError)
	}
	// The malformed failure still consumes a retry attempt.
	if item.RetryCount != 1 {
		t.Fatalf("expected retry_count=1, got %d", item.RetryCount)
	}
}

func TestProcessQueue_MissingTextIsFailure(t *testing.T) {
	sender := &fakeSender{}
	proc, st := newProcessor(map[domain.Channel]*fakeSender{domain.ChannelTelegram: sender})
	ctx := context.Background()

	req := telegramRequest(3)
	req.Payload = map[string]string{"chat_id": "555"}
	id, _ := st.Enqueue(ctx, req)

	proc.ProcessQueue(ctx, 10) //nolint:errcheck

	if sender.calls != 0 {
		t.Fatal("the adapter must not be called without message text")
	}
	item, _ := st.GetByID(ctx, id)
	if item.LastError == nil || *item.LastError != domain.ErrMissingText.Error() {
		t.Fatalf("expected a missing text error, got %v", item.LastError)
	}
}

func TestProcessQueueWithBatches_UnsupportedChannel(t *testing.T) {
	proc, st := newProcessor(nil) // no senders registered
	ctx := context.Background()

	req := telegramRequest(0)
	req.Channel = domain.ChannelWhatsApp
	id, _ := st.Enqueue(ctx, req)

	results, err := proc.ProcessQueueWithBatches(ctx, 10, []domain.Channel{domain.ChannelWhatsApp})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res := results[domain.ChannelWhatsApp]
	if res == nil || res.Failed != 1 {
		t.Fatal("expected the whatsapp item to be reported failed")
	}

	item, _ := st.GetByID(ctx, id)
	if item.Status != domain.StatusFailed {
		t.Fatalf("expected terminal failed with max_retries=0, got %s", item.Status)
	}
	if item.LastError == nil || !strings.Contains(*item.LastError, domain.ErrChannelNotImplemented.Error()) {
		t.Fatalf("expected a not implemented error, got %v", item.LastError)
	}
}

func TestProcessQueue_SenderPanicIsIsolated(t *testing.T) {
	boom := &fakeSender{willPanic: true}
	ok := &fakeSender{}
	proc, st := newProcessor(map[domain.Channel]*fakeSender{
		domain.ChannelTelegram: boom,
		domain.ChannelEmail:    ok,
	})
	ctx := context.Background()

	tgID, _ := st.Enqueue(ctx, telegramRequest(3))
	emailReq := telegramRequest(3)
	emailReq.Channel = domain.ChannelEmail
	emailID, _ := st.Enqueue(ctx, emailReq)

	result, err := proc.ProcessQueue(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success != 1 || result.Failed != 1 {
		t.Fatalf("expected success=1 failed=1, got %+v", result)
	}

	tgItem, _ := st.GetByID(ctx, tgID)
	if tgItem.Status != domain.StatusRetry {
		t.Fatalf("expected the panicking delivery to be marked for retry, got %s", tgItem.Status)
	}
	emailItem, _ := st.GetByID(ctx, emailID)
	if emailItem.Status != domain.StatusCompleted {
		t.Fatal("a panic in one item must not affect the others")
	}
}

func TestProcessQueueWithBatches_BulkStatsInResult(t *testing.T) {
	sender := &fakeSender{}
	proc, st := newProcessor(map[domain.Channel]*fakeSender{domain.ChannelTelegram: sender})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		st.Enqueue(ctx, telegramRequest(3)) //nolint:errcheck
	}

	results, _ := proc.ProcessQueueWithBatches(ctx, 10, []domain.Channel{domain.ChannelTelegram})
	res := results[domain.ChannelTelegram]
	if res == nil || len(res.Items) != 4 {
		t.Fatalf("expected 4 item results, got %+v", res)
	}
	if res.Success != 4 {
		t.Fatalf("expected 4 successes, got %d", res.Success)
	}
	var total time.Duration
	for _, item := range res.Items {
		if !item.Success || item.ID == "" {
			t.Fatalf("unexpected item result: %+v", item)
		}
		total += item.Duration
	}
	if res.TotalProcessingTime != total {
		t.Fatal("total processing time must equal the sum of item durations")
	}
	if res.AvgProcessingTime != total/4 {
		t.Fatal("average processing time must be total divided by item count")
	}
}

func TestProcessQueueWithBatches_EmptyQueueYieldsNoResults(t *testing.T) {
	proc, _ := newProcessor(nil)
	results, err := proc.ProcessQueueWithBatches(context.Background(), 10, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no channel results, got %d", len(results))
	}
}

func TestProcessQueue_DequeueErrorSurfaces(t *testing.T) {
	proc, st := newProcessor(nil)
	st.DequeueErr = errors.New("connection refused")

	if _, err := proc.ProcessQueue(context.Background(), 10); err == nil {
		t.Fatal("expected the storage error to surface")
	}
}
