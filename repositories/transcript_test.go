package repositories

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func diskMessage(id, chatID, content string, at time.Time) DiskMessage {
	return DiskMessage{
		ID:          id,
		ChatID:      chatID,
		Kind:        "message",
		Content:     content,
		ContentType: "text/plain",
		Role:        "customer",
		DisplayName: "Alice",
		At:          at,
	}
}

func Test_Store_And_Fetch_Chronological(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	repository := NewTranscriptRepository(db, nil, slog.Default(), nil)
	at := time.Now().UTC().Truncate(time.Millisecond)

	// Stored out of order on purpose
	req.NoError(repository.Store(diskMessage("m2", "chat-1", "second", at.Add(time.Minute))))
	req.NoError(repository.Store(diskMessage("m1", "chat-1", "first", at)))
	req.NoError(repository.Store(diskMessage("other", "chat-2", "elsewhere", at)))

	fetched, err := repository.GetMessages("chat-1")
	req.NoError(err)
	req.Len(fetched, 2)
	req.Equal("m1", fetched[0].ID)
	req.Equal("m2", fetched[1].ID)
}

func Test_Fetch_Respects_Limit(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	limit := 2
	repository := NewTranscriptRepository(db, nil, slog.Default(), &limit)
	at := time.Now().UTC()

	for _, id := range []string{"m1", "m2", "m3"} {
		req.NoError(repository.Store(diskMessage(id, "chat-1", "content", at)))
		at = at.Add(time.Second)
	}

	fetched, err := repository.GetMessages("chat-1")
	req.NoError(err)
	req.Len(fetched, limit)
}

func Test_Search_Finds_Indexed_Content(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	index, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	req.NoError(err)
	defer index.Close()

	repository := NewTranscriptRepository(db, index, slog.Default(), nil)
	at := time.Now().UTC()

	req.NoError(repository.Store(diskMessage("m1", "chat-1", "the invoice is attached", at)))
	req.NoError(repository.Store(diskMessage("m2", "chat-1", "see you tomorrow", at.Add(time.Second))))
	req.NoError(repository.Store(diskMessage("m3", "chat-2", "another invoice here", at.Add(2*time.Second))))

	hits, err := repository.Search(context.Background(), "chat-1", "invoice", 10)
	req.NoError(err)
	req.Len(hits, 1)
	req.Equal("m1", hits[0].ID)
	req.Equal("chat-1", hits[0].ChatID)
	req.Equal("the invoice is attached", hits[0].Content)
}

func Test_Search_Without_Index_Fails(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	repository := NewTranscriptRepository(db, nil, slog.Default(), nil)

	_, err = repository.Search(context.Background(), "chat-1", "anything", 10)
	req.Error(err)
}
