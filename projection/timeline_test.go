package projection

import (
	"chat-bridge/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func msg(id string, at time.Time) domain.Message {
	return domain.Message{
		ID:      id,
		Kind:    domain.KindMessage,
		Content: "content of " + id,
		Role:    domain.RoleCustomer,
		At:      at,
	}
}

func TestTimeline_Insert_Deduplicates(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()
	now := time.Now()

	// Given a delivered message
	req.True(timeline.Insert(msg("m1", now)))

	// When the same ID is delivered again, even with a different timestamp
	req.False(timeline.Insert(msg("m1", now)))
	req.False(timeline.Insert(msg("m1", now.Add(time.Minute))))

	// Then the sequence still holds exactly one copy
	req.Equal(1, timeline.Len())
}

func TestTimeline_Insert_OrdersByTimestamp(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()
	now := time.Now()

	// Given messages arriving out of chronological order
	req.True(timeline.Insert(msg("m3", now.Add(2*time.Second))))
	req.True(timeline.Insert(msg("m1", now)))
	req.True(timeline.Insert(msg("m2", now.Add(time.Second))))

	// Then the snapshot is sorted by timestamp
	snapshot := timeline.Snapshot()
	req.Len(snapshot, 3)
	req.Equal("m1", snapshot[0].ID)
	req.Equal("m2", snapshot[1].ID)
	req.Equal("m3", snapshot[2].ID)
}

func TestTimeline_Insert_EqualTimestampsKeepArrivalOrder(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()
	at := time.Now()

	req.True(timeline.Insert(msg("first", at)))
	req.True(timeline.Insert(msg("second", at)))
	req.True(timeline.Insert(msg("third", at)))

	snapshot := timeline.Snapshot()
	req.Equal("first", snapshot[0].ID)
	req.Equal("second", snapshot[1].ID)
	req.Equal("third", snapshot[2].ID)
}

func TestTimeline_Merge_ReturnsOnlyNewMessages(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()
	now := time.Now()

	// Given an already delivered message
	req.True(timeline.Insert(msg("m1", now)))

	// When a transcript batch overlaps it
	added := timeline.Merge([]domain.Message{
		msg("m1", now),
		msg("m0", now.Add(-time.Second)),
		msg("m2", now.Add(time.Second)),
	})

	// Then only the unseen ones are reported, sorted
	req.Len(added, 2)
	req.Equal("m0", added[0].ID)
	req.Equal("m2", added[1].ID)
	req.Equal(3, timeline.Len())
}

func TestTimeline_Snapshot_IsACopy(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()
	req.True(timeline.Insert(msg("m1", time.Now())))

	snapshot := timeline.Snapshot()
	snapshot[0].Content = "mutated"

	req.Equal("content of m1", timeline.Snapshot()[0].Content)
}

func TestTimeline_Reset(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()
	now := time.Now()
	req.True(timeline.Insert(msg("m1", now)))

	timeline.Reset()

	req.Equal(0, timeline.Len())
	// A previously seen ID is deliverable again after reset
	req.True(timeline.Insert(msg("m1", now)))
}
