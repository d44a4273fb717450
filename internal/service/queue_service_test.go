package service_test

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/notifyhub/delivery-queue/internal/domain"
	"github.com/notifyhub/delivery-queue/internal/service"
	"github.com/notifyhub/delivery-queue/internal/store"
)

func newService() (*service.QueueService, *store.MemoryStore) {
	st := store.NewMemoryStore()
	return service.NewQueueService(st, zap.NewNop()), st
}

var validReq = domain.EnqueueRequest{
	UserID:           "user-7",
	NotificationType: "telegram_message",
	Channel:          domain.ChannelTelegram,
	Payload:          map[string]string{"chat_id": "42", "message": "ping"},
}

func TestQueueService_Enqueue(t *testing.T) {
	svc, st := newService()

	id, err := svc.Enqueue(context.Background(), validReq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == "" {
		t.Fatal("expected a non-empty id")
	}

	item, err := st.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.Status != domain.StatusPending {
		t.Fatalf("expected status=pending, got %s", item.Status)
	}
}

func TestQueueService_Enqueue_InvalidRequest(t *testing.T) {
	svc, _ := newService()

	bad := validReq
	bad.Channel = "pager"
	if _, err := svc.Enqueue(context.Background(), bad); err != domain.ErrInvalidChannel {
		t.Fatalf("expected ErrInvalidChannel, got %v", err)
	}
}

func TestQueueService_Enqueue_StorageErrorIsNonFatal(t *testing.T) {
	svc, st := newService()
	st.EnqueueErr = errors.New("connection reset")

	id, err := svc.Enqueue(context.Background(), validReq)
	if err == nil {
		t.Fatal("expected the storage error to surface")
	}
	if id != "" {
		t.Fatal("expected no id on storage failure")
	}
}

func TestQueueService_EnqueueBatch(t *testing.T) {
	svc, _ := newService()

	reqs := []domain.EnqueueRequest{validReq, validReq, validReq}
	receipt, err := svc.EnqueueBatch(context.Background(), reqs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.Count != 3 || receipt.BatchID == "" {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
}

func TestQueueService_EnqueueBatch_ValidatesEveryItem(t *testing.T) {
	svc, _ := newService()

	bad := validReq
	bad.UserID = ""
	_, err := svc.EnqueueBatch(context.Background(), []domain.EnqueueRequest{validReq, bad})
	if !errors.Is(err, domain.ErrInvalidUserID) {
		t.Fatalf("expected ErrInvalidUserID, got %v", err)
	}
}

func TestQueueService_EnqueueBatch_Empty(t *testing.T) {
	svc, _ := newService()

	receipt, err := svc.EnqueueBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("expected no error for an empty batch, got %v", err)
	}
	if receipt.Count != 0 {
		t.Fatalf("expected a zero-count receipt, got %d", receipt.Count)
	}
}

func TestQueueService_BatchStats_NotFound(t *testing.T) {
	svc, _ := newService()
	if _, err := svc.BatchStats(context.Background(), "nope"); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
