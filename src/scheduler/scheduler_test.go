package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeIngestor struct {
	runID int64
	err   error
	types []string
}

func (f *fakeIngestor) Run(ctx context.Context, runType string) (int64, error) {
	f.types = append(f.types, runType)
	return f.runID, f.err
}

type fakeDeliverer struct {
	delivered []int64
	retries   int
	limit     int
	skipped   []int64
}

func (f *fakeDeliverer) Deliver(ctx context.Context, runID int64, channel string) error {
	f.delivered = append(f.delivered, runID)
	return errors.New("slack down")
}

func (f *fakeDeliverer) RetryFailed(ctx context.Context, channel string, limit int, skip ...int64) (int, error) {
	f.retries++
	f.limit = limit
	f.skipped = skip
	return 0, nil
}

func TestDailyJob(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("failed run still gets a digest", func(t *testing.T) {
		ing := &fakeIngestor{runID: 12, err: errors.New("provider timeout")}
		del := &fakeDeliverer{}
		DailyJob(ing, del, "slack", 25, logger)(context.Background())

		assert.Equal(t, []string{"daily_sync"}, ing.types)
		assert.Equal(t, []int64{12}, del.delivered)
		assert.Equal(t, 1, del.retries)
		assert.Equal(t, 25, del.limit)
		assert.Equal(t, []int64{12}, del.skipped, "the run just delivered is not retried in the same tick")
	})

	t.Run("no run opened", func(t *testing.T) {
		ing := &fakeIngestor{err: errors.New("db down")}
		del := &fakeDeliverer{}
		DailyJob(ing, del, "slack", 25, logger)(context.Background())

		assert.Empty(t, del.delivered)
		assert.Zero(t, del.retries)
	})
}

func TestRunner(t *testing.T) {
	r := New(zaptest.NewLogger(t), context.Background(), time.UTC)

	_, err := r.Add("not a spec", func(context.Context) {})
	assert.Error(t, err)

	fired := make(chan struct{}, 1)
	_, err = r.Add("* * * * * *", func(ctx context.Context) {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)

	r.Start()
	defer r.Stop()

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not fire")
	}
}
