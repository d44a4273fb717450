package domain_test

import (
	"testing"

	"github.com/notifyhub/delivery-queue/internal/domain"
)

func TestEnqueueRequest_Validate(t *testing.T) {
	valid := domain.EnqueueRequest{
		UserID:           "user-42",
		NotificationType: "telegram_message",
		Channel:          domain.ChannelTelegram,
		Payload:          map[string]string{"chat_id": "12345", "message": "hi"},
	}

	t.Run("valid request passes", func(t *testing.T) {
		if err := valid.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("invalid channel", func(t *testing.T) {
		r := valid
		r.Channel = "fax"
		if err := r.Validate(); err != domain.ErrInvalidChannel {
			t.Fatalf("expected ErrInvalidChannel, got %v", err)
		}
	})

	t.Run("empty user id", func(t *testing.T) {
		r := valid
		r.UserID = ""
		if err := r.Validate(); err != domain.ErrInvalidUserID {
			t.Fatalf("expected ErrInvalidUserID, got %v", err)
		}
	})

	t.Run("empty notification type", func(t *testing.T) {
		r := valid
		r.NotificationType = ""
		if err := r.Validate(); err != domain.ErrInvalidType {
			t.Fatalf("expected ErrInvalidType, got %v", err)
		}
	})

	t.Run("negative max retries", func(t *testing.T) {
		r := valid
		neg := -1
		r.MaxRetries = &neg
		if err := r.Validate(); err != domain.ErrInvalidMaxRetries {
			t.Fatalf("expected ErrInvalidMaxRetries, got %v", err)
		}
	})

	t.Run("zero max retries is allowed", func(t *testing.T) {
		r := valid
		zero := 0
		r.MaxRetries = &zero
		if err := r.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("all valid channels accepted", func(t *testing.T) {
		for _, ch := range domain.Channels() {
			r := valid
			r.Channel = ch
			if err := r.Validate(); err != nil {
				t.Fatalf("channel %q: expected no error, got %v", ch, err)
			}
		}
	})
}

func TestStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   domain.Status
		terminal bool
	}{
		{domain.StatusPending, false},
		{domain.StatusProcessing, false},
		{domain.StatusRetry, false},
		{domain.StatusCompleted, true},
		{domain.StatusFailed, true},
	}
	for _, tc := range tests {
		if got := tc.status.IsTerminal(); got != tc.terminal {
			t.Errorf("status %q: IsTerminal() = %v, want %v", tc.status, got, tc.terminal)
		}
	}
}
