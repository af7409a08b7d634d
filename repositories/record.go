package repositories

import (
	"chat-guard/domain/event"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/mama165/sdk-go/database"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	recordPrefix   = "rec:"
	DefaultLimit   = 50
	fieldText      = "text"
	fieldTag       = "tag"
	fieldLang      = "lang"
	storedIDField  = "_id"
	maxCursorValue = "9999999999999999999"
)

// StoredRecord is a chat-log record as kept in the audit store.
type StoredRecord struct {
	Key string
	event.Record
	// Lang is the ISO 639-1 code guessed from the text, empty when unknown.
	Lang string
}

// RecordRepository keeps records in Badger and indexes their text in Bluge.
// Badger is the source of truth; the index only yields keys.
type RecordRepository struct {
	db    *badger.DB
	index *bluge.Writer
	log   *slog.Logger
	limit int
}

func NewRecordRepository(db *badger.DB, index *bluge.Writer, log *slog.Logger, limit int) *RecordRepository {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &RecordRepository{db: db, index: index, log: log, limit: limit}
}

// RecordKey is formatted as "rec:{timestamp_padded}:{uuid}" so that keys
// sort chronologically and two records of the same nanosecond never collide.
func RecordKey(r event.Record) string {
	return fmt.Sprintf("%s%019d:%s", recordPrefix, r.At.UnixNano(), r.ID)
}

// Store persists the record then indexes its text.
func (r *RecordRepository) Store(record StoredRecord) (string, error) {
	key := RecordKey(record.Record)
	value, err := encodeRecord(record)
	if err != nil {
		return "", err
	}
	if err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	}); err != nil {
		return "", err
	}

	doc := bluge.NewDocument(key).
		AddField(bluge.NewTextField(fieldText, record.Text).StoreValue()).
		AddField(bluge.NewKeywordField(fieldTag, string(record.Tag)).StoreValue())
	if record.Lang != "" {
		doc.AddField(bluge.NewKeywordField(fieldLang, record.Lang).StoreValue())
	}
	if err := r.index.Update(doc.ID(), doc); err != nil {
		return key, fmt.Errorf("index record %s: %w", key, err)
	}
	return key, nil
}

// List returns up to the configured limit of records, newest first, starting
// after cursor when it is set. The returned cursor resumes the scan.
func (r *RecordRepository) List(cursor *string) ([]StoredRecord, *string, error) {
	var records []StoredRecord
	var lastKey string
	prefix := []byte(recordPrefix)

	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		seekKey := append([]byte(recordPrefix), maxCursorValue...)
		if cursor != nil {
			seekKey = append([]byte(recordPrefix), *cursor...)
		}
		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) && string(it.Item().Key()[len(prefix):]) == *cursor {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if len(records) == r.limit {
				r.log.Debug(fmt.Sprintf("Maximum of %d records reached", r.limit))
				break
			}
			item := it.Item()
			key := string(item.Key())
			lastKey = key[len(prefix):]
			err := item.Value(func(value []byte) error {
				record, err := decodeRecord(key, value)
				if err != nil {
					return err
				}
				records = append(records, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return records, &lastKey, nil
}

func (r *RecordRepository) Get(key string) (StoredRecord, error) {
	var record StoredRecord
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			record, err = decodeRecord(key, value)
			return err
		})
	})
	return record, err
}

// Search runs a full-text match over record texts and returns the hits in
// relevance order together with the total number of matches.
func (r *RecordRepository) Search(ctx context.Context, text string) ([]StoredRecord, uint64, error) {
	reader, err := r.index.Reader()
	if err != nil {
		return nil, 0, err
	}
	defer reader.Close()

	query := bluge.NewMatchQuery(text).SetField(fieldText)
	request := bluge.NewTopNSearch(r.limit, query).WithStandardAggregations()
	matches, err := reader.Search(ctx, request)
	if err != nil {
		return nil, 0, err
	}

	var keys []string
	match, err := matches.Next()
	for err == nil && match != nil {
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == storedIDField {
				keys = append(keys, string(value))
			}
			return true
		})
		if err != nil {
			break
		}
		match, err = matches.Next()
	}
	if err != nil {
		return nil, 0, err
	}

	records := make([]StoredRecord, 0, len(keys))
	for _, key := range keys {
		record, err := r.Get(key)
		if err != nil {
			r.log.Warn("Indexed record missing from store", "key", key, "error", err)
			continue
		}
		records = append(records, record)
	}
	return records, matches.Aggregations().Count(), nil
}

func encodeRecord(record StoredRecord) ([]byte, error) {
	value, err := structpb.NewStruct(map[string]any{
		"id":         record.ID.String(),
		"at":         record.At.UTC().Format(time.RFC3339Nano),
		"tag":        string(record.Tag),
		"confidence": record.Confidence,
		"text":       record.Text,
		"lang":       record.Lang,
	})
	if err != nil {
		return nil, err
	}
	return proto.Marshal(value)
}

func decodeRecord(key string, value []byte) (StoredRecord, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(value, &s); err != nil {
		return StoredRecord{}, err
	}
	fields := s.GetFields()
	id, err := uuid.Parse(fields["id"].GetStringValue())
	if err != nil {
		return StoredRecord{}, err
	}
	at, err := time.Parse(time.RFC3339Nano, fields["at"].GetStringValue())
	if err != nil {
		return StoredRecord{}, err
	}
	return StoredRecord{
		Key: key,
		Record: event.Record{
			ID:         id,
			At:         at,
			Tag:        event.Tag(fields["tag"].GetStringValue()),
			Confidence: fields["confidence"].GetNumberValue(),
			Text:       fields["text"].GetStringValue(),
		},
		Lang: fields["lang"].GetStringValue(),
	}, nil
}

// RecordMapper renders a stored record for the Badger debug inspector.
func RecordMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)
	record, err := decodeRecord(key, val)
	if err != nil {
		row.Detail = "Error: decode failed"
		return row
	}
	row.Type = string(record.Tag)
	row.Detail = record.Text
	if record.Confidence >= 0 {
		row.Scores = fmt.Sprintf("conf:%.2f lang:%s", record.Confidence, record.Lang)
	}
	return row
}
