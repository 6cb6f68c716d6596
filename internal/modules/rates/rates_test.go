package rates

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	country map[string]Rate
	global  *Rate
	calls   int
}

func (f *fakeSource) CountryRate(_ context.Context, id string) (Rate, bool, error) {
	f.calls++
	r, ok := f.country[id]
	return r, ok, nil
}

func (f *fakeSource) LatestGlobalRate(context.Context) (Rate, bool, error) {
	if f.global == nil {
		return Rate{}, false, nil
	}
	return *f.global, true, nil
}

func newCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, time.Minute), mr
}

func TestLookup_CountryThenGlobal(t *testing.T) {
	src := &fakeSource{
		country: map[string]Rate{"GR": {Tax: 0.24, Fees: 0.05}},
		global:  &Rate{Tax: 0.2, Fees: 0.1},
	}
	svc := NewService(src, nil)

	r, err := svc.Lookup(context.Background(), "GR")
	require.NoError(t, err)
	require.Equal(t, Rate{Tax: 0.24, Fees: 0.05}, r)

	r, err = svc.Lookup(context.Background(), "HR")
	require.NoError(t, err)
	require.Equal(t, Rate{Tax: 0.2, Fees: 0.1}, r)
}

func TestLookup_NotConfigured(t *testing.T) {
	svc := NewService(&fakeSource{}, nil)
	_, err := svc.Lookup(context.Background(), "GR")
	require.True(t, errors.Is(err, ErrNotConfigured))
}

func TestLookup_ConfiguredDefault(t *testing.T) {
	cache, _ := newCache(t)
	svc := NewService(&fakeSource{country: map[string]Rate{"GR": {Tax: 0.24, Fees: 0.05}}}, cache).
		WithDefault(Rate{Tax: 0.13, Fees: 0.02})
	ctx := context.Background()

	r, err := svc.Lookup(ctx, "HR")
	require.NoError(t, err)
	require.Equal(t, Rate{Tax: 0.13, Fees: 0.02}, r)
	_, ok, err := cache.Get(ctx, "HR")
	require.NoError(t, err)
	require.False(t, ok, "the configured default is not cached as a stored rate")

	r, err = svc.Lookup(ctx, "GR")
	require.NoError(t, err)
	require.Equal(t, Rate{Tax: 0.24, Fees: 0.05}, r, "a stored rate still wins")
}

func TestLookup_UsesCache(t *testing.T) {
	cache, mr := newCache(t)
	src := &fakeSource{country: map[string]Rate{"GR": {Tax: 0.24, Fees: 0.05}}}
	svc := NewService(src, cache)
	ctx := context.Background()

	_, err := svc.Lookup(ctx, "GR")
	require.NoError(t, err)
	_, err = svc.Lookup(ctx, "GR")
	require.NoError(t, err)
	require.Equal(t, 1, src.calls)
	require.True(t, mr.Exists("rates:country:GR"))

	mr.FastForward(2 * time.Minute)
	_, err = svc.Lookup(ctx, "GR")
	require.NoError(t, err)
	require.Equal(t, 2, src.calls)
}

func TestLookup_CacheFailureIsNotFatal(t *testing.T) {
	cache, mr := newCache(t)
	mr.Close()
	src := &fakeSource{global: &Rate{Tax: 0.1}}
	r, err := NewService(src, cache).Lookup(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, 0.1, r.Tax)
}

func TestBasisPoints(t *testing.T) {
	r := Rate{Tax: 0.24, Fees: 0.035}
	require.Equal(t, int64(2400), r.TaxBasisPoints())
	require.Equal(t, int64(350), r.FeesBasisPoints())
}
