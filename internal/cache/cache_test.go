package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmagician/pharma-engine/pkg/types"
)

func page(total int) types.ResultPage {
	return types.ResultPage{Total: total, Limit: 20}
}

func TestGetPutRoundtrip(t *testing.T) {
	c := New(time.Minute, 10)
	key := Key("vitamin d", types.Filters{}, 20, 0, types.ModeAuto)

	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Put(key, page(3))
	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, 3, got.Total)
}

func TestLazyExpiry(t *testing.T) {
	clock := time.Now()
	c := New(time.Minute, 10, WithClock(func() time.Time { return clock }))

	key := Key("vitamin d", types.Filters{}, 20, 0, types.ModeAuto)
	c.Put(key, page(1))

	clock = clock.Add(59 * time.Second)
	_, ok := c.Get(key)
	assert.True(t, ok, "entry alive inside the TTL")

	clock = clock.Add(2 * time.Second)
	_, ok = c.Get(key)
	assert.False(t, ok, "entry dies past the TTL")
	assert.Equal(t, 0, c.Len(), "expired entry is removed on read")
}

func TestEvictsOldestHalfAtCapacity(t *testing.T) {
	clock := time.Now()
	c := New(time.Hour, 4, WithClock(func() time.Time { return clock }))

	for i := 0; i < 4; i++ {
		clock = clock.Add(time.Second)
		c.Put(fmt.Sprintf("key-%d", i), page(i))
	}
	require.Equal(t, 4, c.Len())

	clock = clock.Add(time.Second)
	c.Put("key-4", page(4))

	assert.Equal(t, 3, c.Len())
	_, ok := c.Get("key-0")
	assert.False(t, ok, "oldest entries are evicted first")
	_, ok = c.Get("key-4")
	assert.True(t, ok)
}

func TestKeyDistinguishesRequestShape(t *testing.T) {
	min := 100.0
	base := Key("vitamin d", types.Filters{}, 20, 0, types.ModeAuto)

	assert.NotEqual(t, base, Key("vitamin c", types.Filters{}, 20, 0, types.ModeAuto))
	assert.NotEqual(t, base, Key("vitamin d", types.Filters{MinPrice: &min}, 20, 0, types.ModeAuto))
	assert.NotEqual(t, base, Key("vitamin d", types.Filters{}, 10, 0, types.ModeAuto))
	assert.NotEqual(t, base, Key("vitamin d", types.Filters{}, 20, 10, types.ModeAuto))
	assert.NotEqual(t, base, Key("vitamin d", types.Filters{}, 20, 0, types.ModeExact))

	assert.Equal(t, base, Key("vitamin d", types.Filters{}, 20, 0, types.ModeAuto))
}

func TestKeyIgnoresFilterSliceOrder(t *testing.T) {
	a := Key("q", types.Filters{VendorIDs: []string{"v2", "v1"}}, 20, 0, types.ModeAuto)
	b := Key("q", types.Filters{VendorIDs: []string{"v1", "v2"}}, 20, 0, types.ModeAuto)
	assert.Equal(t, a, b)
}

func TestKeyLeavesFilterSlicesAlone(t *testing.T) {
	vendors := []string{"v2", "v1"}
	brands := []string{"b3", "b1", "b2"}
	Key("q", types.Filters{VendorIDs: vendors, BrandIDs: brands}, 20, 0, types.ModeAuto)

	assert.Equal(t, []string{"v2", "v1"}, vendors)
	assert.Equal(t, []string{"b3", "b1", "b2"}, brands)
}

func TestPurge(t *testing.T) {
	c := New(time.Minute, 10)
	c.Put("k", page(1))
	c.Purge()
	assert.Equal(t, 0, c.Len())
}
