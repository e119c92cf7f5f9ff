//go:generate go run go.uber.org/mock/mockgen -source=transcript.go -destination=../mocks/mock_transcript_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
)

type ITranscriptRepository interface {
	Store(message DiskMessage) error
	GetMessages(chatID string) ([]DiskMessage, error)
	Search(ctx context.Context, chatID, terms string, limit int) ([]DiskMessage, error)
}

// TranscriptRepository persists delivered messages in BadgerDB and keeps a
// Bluge full-text index over their content, so the transcript survives
// restarts and stays searchable offline.
type TranscriptRepository struct {
	db    *badger.DB
	index *bluge.Writer
	log   *slog.Logger
	limit *int
}

// NewTranscriptRepository wires the archive. A nil index disables search
// but keeps the durable archive working.
func NewTranscriptRepository(db *badger.DB, index *bluge.Writer, log *slog.Logger, limit *int) *TranscriptRepository {
	return &TranscriptRepository{db: db, index: index, log: log, limit: limit}
}

// DiskMessage is the archived form of a delivered message.
type DiskMessage struct {
	ID            string    `json:"id"`
	ChatID        string    `json:"chat_id"`
	Kind          string    `json:"kind"`
	Content       string    `json:"content"`
	ContentType   string    `json:"content_type"`
	ParticipantID string    `json:"participant_id"`
	Role          string    `json:"role"`
	DisplayName   string    `json:"display_name"`
	Language      string    `json:"language,omitempty"`
	At            time.Time `json:"at"`
}

// Store persists a message.
// The key is formatted as "msg:{chat_id}:{timestamp_padded}:{id}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Disambiguate two messages landing on the same nanosecond via the
//     backend-assigned ID.
func (r *TranscriptRepository) Store(message DiskMessage) error {
	key := fmt.Sprintf("msg:%s:%019d:%s",
		message.ChatID,
		message.At.UnixNano(),
		message.ID,
	)
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), payload)
	})
	if err != nil {
		return err
	}
	return r.indexMessage(key, message)
}

// GetMessages retrieves the archived messages of one chat via a prefix
// scan. Thanks to the padded timestamp in the key they come back in
// chronological order. Collection stops at the configured limit.
func (r *TranscriptRepository) GetMessages(chatID string) ([]DiskMessage, error) {
	var messages []DiskMessage
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("msg:%s:", chatID))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if r.limit != nil && len(messages) == *r.limit {
				r.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *r.limit))
				break
			}
			err := it.Item().Value(func(value []byte) error {
				var message DiskMessage
				if err := json.Unmarshal(value, &message); err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// Search runs a full-text match over the archived content of one chat.
func (r *TranscriptRepository) Search(ctx context.Context, chatID, terms string, limit int) ([]DiskMessage, error) {
	if r.index == nil {
		return nil, fmt.Errorf("search index not configured")
	}

	reader, err := r.index.Reader()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField("content")).
		AddMust(bluge.NewTermQuery(chatID).SetField("chat"))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, err
	}

	var hits []DiskMessage
	match, err := iterator.Next()
	for err == nil && match != nil {
		var hit DiskMessage
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "chat":
				hit.ChatID = string(value)
			case "message_id":
				hit.ID = string(value)
			case "content":
				hit.Content = string(value)
			case "role":
				hit.Role = string(value)
			case "at":
				if at, timeErr := bluge.DecodeDateTime(value); timeErr == nil {
					hit.At = at
				}
				return true
			}
			return true
		})
		if visitErr != nil {
			return nil, visitErr
		}
		hits = append(hits, hit)
		match, err = iterator.Next()
	}
	if err != nil {
		return nil, err
	}
	return hits, nil
}

func (r *TranscriptRepository) indexMessage(key string, message DiskMessage) error {
	if r.index == nil {
		return nil
	}
	doc := bluge.NewDocument(key).
		AddField(bluge.NewKeywordField("chat", message.ChatID).StoreValue()).
		AddField(bluge.NewKeywordField("message_id", message.ID).StoreValue()).
		AddField(bluge.NewKeywordField("role", message.Role).StoreValue()).
		AddField(bluge.NewTextField("content", message.Content).StoreValue()).
		AddField(bluge.NewDateTimeField("at", message.At).StoreValue())
	return r.index.Update(doc.ID(), doc)
}
