package collector

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dbsmedya/accesstally/internal/logger"
	"github.com/dbsmedya/accesstally/internal/provider"
	"github.com/dbsmedya/accesstally/internal/tally"
)

func key(sc string, day int) tally.Key {
	return tally.Key{Spacecraft: sc, Day: day}
}

func staticProvider() *provider.Static {
	return &provider.Static{Sets: tally.Availability[tally.Key, string]{
		key("WV01", 0): tally.NewSet("a", "b"),
		key("WV01", 1): tally.NewSet("a"),
		key("WV02", 0): tally.NewSet("c"),
		key("WV02", 1): tally.NewSet[string](),
	}}
}

type failingProvider struct {
	calls atomic.Int32
}

func (f *failingProvider) Availability(ctx context.Context, k tally.Key) (tally.Set[string], bool, error) {
	f.calls.Add(1)
	if k.Day == 1 {
		return nil, false, errors.New("boom")
	}
	return tally.NewSet("x"), true, nil
}

func (f *failingProvider) Name() string { return "failing" }

func TestKeys(t *testing.T) {
	keys := Keys([]string{"WV01", "WV02"}, 2)
	assert.Equal(t, []tally.Key{key("WV01", 0), key("WV01", 1), key("WV02", 0), key("WV02", 1)}, keys)

	assert.Empty(t, Keys([]string{"WV01"}, 0))
	assert.Empty(t, Keys(nil, 5))
}

func TestCollect(t *testing.T) {
	for _, workers := range []int{0, 1, 4} {
		c := New(staticProvider(), workers, nil)
		res, err := c.Collect(context.Background(), []string{"WV01", "WV02", "WV03"}, 3)
		require.NoError(t, err)

		assert.Len(t, res.Availability, 4)
		assert.Equal(t, []tally.Key{key("WV01", 2), key("WV02", 2), key("WV03", 0), key("WV03", 1), key("WV03", 2)}, res.Skipped)
		assert.Equal(t, map[string]int{"a": 2, "b": 1, "c": 1}, tally.Count(res.Availability))
	}
}

func TestCollect_LogsSkippedKeys(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c := New(staticProvider(), 2, logger.FromCore(core))

	_, err := c.Collect(context.Background(), []string{"WV01"}, 3)
	require.NoError(t, err)

	warnings := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warnings, 1)
	fields := warnings[0].ContextMap()
	assert.Equal(t, "WV01", fields["spacecraft"])
	assert.EqualValues(t, 2, fields["day"])
}

func TestCollect_ProviderError(t *testing.T) {
	p := &failingProvider{}
	c := New(p, 1, nil)

	_, err := c.Collect(context.Background(), []string{"WV01"}, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WV01/day1")
	assert.LessOrEqual(t, p.calls.Load(), int32(5))
}

func TestCollect_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(staticProvider(), 2, nil)
	_, err := c.Collect(ctx, []string{"WV01"}, 2)
	assert.ErrorIs(t, err, context.Canceled)
}
