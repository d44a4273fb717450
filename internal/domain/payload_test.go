package domain_test

import (
	"testing"

	"github.com/notifyhub/delivery-queue/internal/domain"
)

func TestPayloadExtraction(t *testing.T) {
	t.Run("destination fallback order", func(t *testing.T) {
		tests := []struct {
			name    string
			payload map[string]string
			want    string
			ok      bool
		}{
			{"chat_id wins over recipient", map[string]string{"chat_id": "1", "recipient": "2"}, "1", true},
			{"recipient wins over to", map[string]string{"recipient": "2", "to": "3"}, "2", true},
			{"to wins over destination", map[string]string{"to": "3", "destination": "4"}, "3", true},
			{"destination alone", map[string]string{"destination": "4"}, "4", true},
			{"empty value skipped", map[string]string{"chat_id": "", "to": "3"}, "3", true},
			{"missing", map[string]string{"message": "hi"}, "", false},
			{"empty payload", map[string]string{}, "", false},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				item := domain.QueueItem{Payload: tc.payload}
				got, ok := item.Destination()
				if got != tc.want || ok != tc.ok {
					t.Fatalf("Destination() = (%q, %v), want (%q, %v)", got, ok, tc.want, tc.ok)
				}
			})
		}
	})

	t.Run("text fallback order", func(t *testing.T) {
		item := domain.QueueItem{Payload: map[string]string{"body": "b", "text": "t"}}
		if got, _ := item.Text(); got != "t" {
			t.Fatalf("expected text key to win over body, got %q", got)
		}
		item = domain.QueueItem{Payload: map[string]string{"content": "c"}}
		if got, _ := item.Text(); got != "c" {
			t.Fatalf("expected content fallback, got %q", got)
		}
		item = domain.QueueItem{Payload: map[string]string{"chat_id": "1"}}
		if _, ok := item.Text(); ok {
			t.Fatal("expected no text in payload")
		}
	})

	t.Run("format hint optional", func(t *testing.T) {
		item := domain.QueueItem{Payload: map[string]string{"parse_mode": "MarkdownV2"}}
		if got := item.FormatHint(); got != "MarkdownV2" {
			t.Fatalf("expected MarkdownV2, got %q", got)
		}
		item = domain.QueueItem{Payload: map[string]string{}}
		if got := item.FormatHint(); got != "" {
			t.Fatalf("expected empty hint, got %q", got)
		}
	})
}
