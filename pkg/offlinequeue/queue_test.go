package offlinequeue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xping-dev/sdk-go/pkg/config"
	"github.com/xping-dev/sdk-go/pkg/datamodel"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Endpoint:                 "https://ingest.example.com",
		APIKey:                   "key",
		ProjectID:                "proj",
		EnableOfflineQueue:       true,
		OfflineQueueDir:          t.TempDir(),
		OfflineQueueMaxEntries:   100,
		OfflineMaxReplayAttempts: 3,
		OfflineMaxAge:            24 * time.Hour,
	}
}

func batchOf(n int) datamodel.Batch {
	now := time.Now()
	batch := make(datamodel.Batch, 0, n)
	for i := 0; i < n; i++ {
		exec := datamodel.NewTestExecution(datamodel.TestIdentity{
			Fingerprint:        "0123456789abcdef0123456789abcdef",
			FullyQualifiedName: "N.C.M",
		}, datamodel.OutcomeFailed, now, now)
		batch = append(batch, *exec)
	}
	return batch
}

func TestEnqueueAndReplay(t *testing.T) {
	q, err := Open(testConfig(t), nil)
	require.NoError(t, err)
	defer q.Close()

	require.NoError(t, q.Enqueue(batchOf(3)))
	require.NoError(t, q.Enqueue(batchOf(2)))
	assert.Equal(t, uint64(2), q.Length())

	var delivered []datamodel.Batch
	replayed, err := q.ReplayPending(context.Background(), func(_ context.Context, b datamodel.Batch) error {
		delivered = append(delivered, b)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, replayed)
	assert.Equal(t, uint64(0), q.Length())

	// Oldest first.
	require.Len(t, delivered, 2)
	assert.Len(t, delivered[0], 3)
	assert.Len(t, delivered[1], 2)
}

func TestEntriesSurviveReopen(t *testing.T) {
	cfg := testConfig(t)

	q, err := Open(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(batchOf(1)))
	require.NoError(t, q.Close())

	reopened, err := Open(cfg, nil)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, uint64(1), reopened.Length())
}

func TestFailedReplayRequeuesAndStopsRound(t *testing.T) {
	q, err := Open(testConfig(t), nil)
	require.NoError(t, err)
	defer q.Close()

	require.NoError(t, q.Enqueue(batchOf(1)))
	require.NoError(t, q.Enqueue(batchOf(1)))

	calls := 0
	replayed, err := q.ReplayPending(context.Background(), func(_ context.Context, _ datamodel.Batch) error {
		calls++
		return errors.New("still down")
	})
	require.NoError(t, err)
	assert.Equal(t, 0, replayed)
	// One delivery attempt, then the round stops with both entries retained.
	assert.Equal(t, 1, calls)
	assert.Equal(t, uint64(2), q.Length())
}

func TestEntryEvictedAfterMaxReplayAttempts(t *testing.T) {
	cfg := testConfig(t)
	cfg.OfflineMaxReplayAttempts = 2
	q, err := Open(cfg, nil)
	require.NoError(t, err)
	defer q.Close()

	require.NoError(t, q.Enqueue(batchOf(1)))

	fail := func(_ context.Context, _ datamodel.Batch) error { return errors.New("down") }
	for i := 0; i < 2; i++ {
		_, err = q.ReplayPending(context.Background(), fail)
		require.NoError(t, err)
	}
	assert.Equal(t, uint64(1), q.Length())

	// Third round sees attempts == max and evicts without delivering.
	calls := 0
	_, err = q.ReplayPending(context.Background(), func(_ context.Context, _ datamodel.Batch) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, calls)
	assert.Equal(t, uint64(0), q.Length())
}

func TestCapacityEvictsOldestFirst(t *testing.T) {
	cfg := testConfig(t)
	cfg.OfflineQueueMaxEntries = 2
	q, err := Open(cfg, nil)
	require.NoError(t, err)
	defer q.Close()

	require.NoError(t, q.Enqueue(batchOf(1)))
	require.NoError(t, q.Enqueue(batchOf(2)))
	require.NoError(t, q.Enqueue(batchOf(3)))
	assert.Equal(t, uint64(2), q.Length())

	var sizes []int
	_, err = q.ReplayPending(context.Background(), func(_ context.Context, b datamodel.Batch) error {
		sizes = append(sizes, len(b))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, sizes)
}

func TestReplayHonorsContextCancellation(t *testing.T) {
	q, err := Open(testConfig(t), nil)
	require.NoError(t, err)
	defer q.Close()

	require.NoError(t, q.Enqueue(batchOf(1)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	replayed, err := q.ReplayPending(ctx, func(_ context.Context, _ datamodel.Batch) error {
		t.Fatal("must not deliver on a cancelled context")
		return nil
	})
	assert.Error(t, err)
	assert.Equal(t, 0, replayed)
	assert.Equal(t, uint64(1), q.Length())
}
