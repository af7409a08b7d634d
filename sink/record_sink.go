package sink

import (
	"chat-guard/contract"
	"chat-guard/domain/event"
	"chat-guard/repositories"
	"context"
	"log/slog"

	"github.com/abadojack/whatlanggo"
)

var _ contract.RecordSink = (*RecordSink)(nil)

// RecordStore is the part of the audit repository the sink writes to.
type RecordStore interface {
	Store(record repositories.StoredRecord) (string, error)
}

// RecordSink keeps every record in the audit store, tagging chat text with
// its detected language.
type RecordSink struct {
	store RecordStore
	log   *slog.Logger
}

func NewRecordSink(store RecordStore, log *slog.Logger) *RecordSink {
	return &RecordSink{store: store, log: log}
}

func (s *RecordSink) Consume(ctx context.Context, record event.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored := repositories.StoredRecord{Record: record}
	if record.IsMessage() {
		stored.Lang = DetectLang(record.Text)
	}
	key, err := s.store.Store(stored)
	if err != nil {
		return err
	}
	s.log.Debug("Record stored", "key", key, "lang", stored.Lang)
	return nil
}

// DetectLang returns the ISO 639-1 code of text, or "" when the guess is unreliable.
func DetectLang(text string) string {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6391()
}
