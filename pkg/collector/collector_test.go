package collector

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xping-dev/sdk-go/pkg/config"
	"github.com/xping-dev/sdk-go/pkg/datamodel"
)

func testConfig() *config.Config {
	return &config.Config{
		Endpoint:      "https://ingest.example.com",
		APIKey:        "key",
		ProjectID:     "proj",
		Enabled:       true,
		BatchSize:     10,
		FlushInterval: time.Hour, // keep the ticker out of the way
		MaxRetries:    0,
		SamplingRate:  1.0,
		UploadTimeout: time.Second,
	}
}

type batchSink struct {
	mu      sync.Mutex
	batches []datamodel.Batch
}

func (s *batchSink) upload(_ context.Context, batch datamodel.Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, batch)
}

func (s *batchSink) executionIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, b := range s.batches {
		for _, e := range b {
			ids = append(ids, e.ExecutionID)
		}
	}
	return ids
}

func newExecution() *datamodel.TestExecution {
	now := time.Now()
	return datamodel.NewTestExecution(datamodel.TestIdentity{
		Fingerprint:        "0123456789abcdef0123456789abcdef",
		FullyQualifiedName: "N.C.M",
	}, datamodel.OutcomePassed, now, now)
}

func TestDrainTwiceReturnsBatchThenEmpty(t *testing.T) {
	sink := &batchSink{}
	c := New(testConfig(), sink.upload, nil)
	defer c.Shutdown(context.Background())

	c.Record(newExecution())
	c.Record(newExecution())

	first := c.Drain()
	assert.Len(t, first, 2)

	second := c.Drain()
	assert.Empty(t, second)
}

func TestConcurrentRecordNoLossNoDuplication(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 1000
	sink := &batchSink{}
	c := New(cfg, sink.upload, nil)

	const goroutines = 16
	const perGoroutine = 200

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				c.Record(newExecution())
			}
		}()
	}
	wg.Wait()
	c.Shutdown(context.Background())

	ids := sink.executionIDs()
	require.Len(t, ids, goroutines*perGoroutine)

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		assert.False(t, seen[id], "execution %s drained twice", id)
		seen[id] = true
	}
}

func TestBatchSizeTriggersAsyncUpload(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 5
	sink := &batchSink{}
	c := New(cfg, sink.upload, nil)
	defer c.Shutdown(context.Background())

	for i := 0; i < 5; i++ {
		c.Record(newExecution())
	}

	assert.Eventually(t, func() bool {
		return len(sink.executionIDs()) == 5
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBatchNeverExceedsConfiguredSize(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 7
	sink := &batchSink{}
	c := New(cfg, sink.upload, nil)

	for i := 0; i < 40; i++ {
		c.Record(newExecution())
	}
	c.Shutdown(context.Background())

	total := 0
	sink.mu.Lock()
	for _, b := range sink.batches {
		assert.LessOrEqual(t, len(b), 7)
		total += len(b)
	}
	sink.mu.Unlock()
	assert.Equal(t, 40, total)
}

func TestTimedFlushDeliversPartialBatch(t *testing.T) {
	cfg := testConfig()
	cfg.FlushInterval = 50 * time.Millisecond
	sink := &batchSink{}
	c := New(cfg, sink.upload, nil)
	defer c.Shutdown(context.Background())

	c.Record(newExecution())

	assert.Eventually(t, func() bool {
		return len(sink.executionIDs()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDisabledCollectorRecordsNothing(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	sink := &batchSink{}
	c := New(cfg, sink.upload, nil)

	c.Record(newExecution())
	c.Shutdown(context.Background())

	assert.Empty(t, sink.executionIDs())
}

func TestSamplingRateZeroDropsEverything(t *testing.T) {
	cfg := testConfig()
	cfg.SamplingRate = 0.0
	sink := &batchSink{}
	c := New(cfg, sink.upload, nil)

	for i := 0; i < 20; i++ {
		c.Record(newExecution())
	}
	c.Shutdown(context.Background())

	assert.Empty(t, sink.executionIDs())
}

func TestSamplingUsesUniformDraw(t *testing.T) {
	cfg := testConfig()
	cfg.SamplingRate = 0.5
	sink := &batchSink{}
	c := New(cfg, sink.upload, nil)

	draws := []float64{0.49, 0.51, 0.0, 0.99}
	i := 0
	c.sample = func() float64 {
		v := draws[i%len(draws)]
		i++
		return v
	}

	for range draws {
		c.Record(newExecution())
	}
	c.Shutdown(context.Background())

	// Draws below the rate are kept, the rest sampled out.
	assert.Len(t, sink.executionIDs(), 2)
}

func TestBatchesDeliverInRecordOrder(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 5
	sink := &batchSink{}
	// A slow sink lets later threshold triggers pile up behind an in-flight
	// delivery, which is exactly when reordering would show.
	slow := func(ctx context.Context, batch datamodel.Batch) {
		time.Sleep(5 * time.Millisecond)
		sink.upload(ctx, batch)
	}
	c := New(cfg, slow, nil)

	var recorded []string
	for i := 0; i < 50; i++ {
		exec := newExecution()
		recorded = append(recorded, exec.ExecutionID)
		c.Record(exec)
	}
	c.Shutdown(context.Background())

	assert.Equal(t, recorded, sink.executionIDs())
}

func TestInvalidRecordDroppedNotPropagated(t *testing.T) {
	sink := &batchSink{}
	c := New(testConfig(), sink.upload, nil)

	bad := newExecution()
	bad.Outcome = datamodel.Outcome("bogus")

	assert.NotPanics(t, func() {
		c.Record(bad)
		c.Record(nil)
	})
	c.Shutdown(context.Background())
	assert.Empty(t, sink.executionIDs())
}

func TestShutdownIsIdempotent(t *testing.T) {
	sink := &batchSink{}
	c := New(testConfig(), sink.upload, nil)

	c.Record(newExecution())
	c.Shutdown(context.Background())
	c.Shutdown(context.Background())
	c.Shutdown(context.Background())

	assert.Len(t, sink.executionIDs(), 1)
}

func TestShutdownWithoutAnyRecords(t *testing.T) {
	sink := &batchSink{}
	c := New(testConfig(), sink.upload, nil)
	assert.NotPanics(t, func() { c.Shutdown(context.Background()) })
	assert.Empty(t, sink.batches)
}
