package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type report struct {
	Score float64 `json:"score"`
	Note  string  `json:"note"`
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "analysis:t-1", AnalysisKey("t-1"))
	assert.Equal(t, "inventory:t-1:ec2", InventoryKey("t-1", "ec2"))
	assert.Equal(t, "dashboard:t-1:", DashboardPrefix("t-1"))
	assert.Equal(t, "dashboard:t-1:recommendations:20", DashboardKey("t-1", "recommendations", "20"))
}

func TestMemorySetGet(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	require.NoError(t, c.Set(ctx, "k", report{Score: 82.5, Note: "ok"}, time.Minute))

	var got report
	found, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, report{Score: 82.5, Note: "ok"}, got)

	found, err = c.Get(ctx, "missing", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemory()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "short", 1, time.Minute))
	require.NoError(t, c.Set(ctx, "forever", 2, 0))

	now = now.Add(2 * time.Minute)

	var v int
	found, err := c.Get(ctx, "short", &v)
	require.NoError(t, err)
	assert.False(t, found)

	found, err = c.Get(ctx, "forever", &v)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 2, v)
}

func TestMemoryPurgeExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemory()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "a", 1, time.Second))
	require.NoError(t, c.Set(ctx, "b", 1, time.Hour))
	now = now.Add(time.Minute)

	assert.Equal(t, 1, c.PurgeExpired())
	assert.Equal(t, 1, c.Len())
}

func TestMemoryInvalidatePrefix(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	require.NoError(t, c.Set(ctx, DashboardKey("t-1", "recommendations", "10"), 1, time.Minute))
	require.NoError(t, c.Set(ctx, DashboardKey("t-1", "summary"), 1, time.Minute))
	require.NoError(t, c.Set(ctx, DashboardKey("t-2", "summary"), 1, time.Minute))
	require.NoError(t, c.Set(ctx, AnalysisKey("t-1"), 1, time.Minute))

	require.NoError(t, c.InvalidatePrefix(ctx, DashboardPrefix("t-1")))

	assert.Equal(t, 2, c.Len())
	var v int
	found, _ := c.Get(ctx, AnalysisKey("t-1"), &v)
	assert.True(t, found)
	found, _ = c.Get(ctx, DashboardKey("t-2", "summary"), &v)
	assert.True(t, found)
}

func TestMemoryDecodeError(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	require.NoError(t, c.Set(ctx, "k", "text", time.Minute))

	var v int
	_, err := c.Get(ctx, "k", &v)
	assert.Error(t, err)
}

func TestMemoryImplementsCache(t *testing.T) {
	var _ Cache = NewMemory()
	var _ Cache = (*Redis)(nil)
}
