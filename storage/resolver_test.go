package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_NoOpener(t *testing.T) {
	r := NewResolver(nil)

	res := r.Resolve(StoreWordCache)
	require.NotNil(t, res.Backend)
	assert.False(t, res.Durable)
	assert.ErrorIs(t, res.Err, ErrNoDurableBackend)
}

func TestResolver_OpenerError(t *testing.T) {
	r := NewResolver(func(string) (Backend, error) {
		return nil, errors.New("storage disabled by policy")
	})

	res := r.Resolve(StoreHistory)
	require.NotNil(t, res.Backend)
	assert.False(t, res.Durable)

	var storageErr *Error
	require.ErrorAs(t, res.Err, &storageErr)
	assert.Equal(t, "open", storageErr.Op)
}

func TestResolver_OpenerPanic(t *testing.T) {
	r := NewResolver(func(string) (Backend, error) {
		panic("SecurityError")
	})

	res := r.Resolve(StoreSession)
	require.NotNil(t, res.Backend)
	assert.False(t, res.Durable)
	assert.ErrorContains(t, res.Err, "SecurityError")
}

func TestResolver_Durable(t *testing.T) {
	durable := NewMemoryBackend()
	r := NewResolver(func(string) (Backend, error) { return durable, nil })

	res := r.Resolve(StoreVoice)
	require.NoError(t, res.Err)
	assert.True(t, res.Durable)

	require.NoError(t, res.Backend.Set(context.Background(), StoreVoice, "x"))
	val, err := durable.Get(context.Background(), StoreVoice)
	require.NoError(t, err)
	assert.Equal(t, "x", val)
}

func TestResolver_MemoryIsProcessScoped(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(nil)

	require.NoError(t, r.Resolve(StoreFavorites).Backend.Set(ctx, StoreFavorites, "saved"))

	val, err := r.Resolve(StoreFavorites).Backend.Get(ctx, StoreFavorites)
	require.NoError(t, err)
	assert.Equal(t, "saved", val)

	_, err = r.Resolve(StoreHistory).Backend.Get(ctx, StoreFavorites)
	assert.ErrorIs(t, err, ErrNotFound, "store names resolve independently")
}

func TestResolver_ResolveDoesNoIO(t *testing.T) {
	opened := 0
	r := NewResolver(func(string) (Backend, error) {
		opened++
		return &brokenBackend{}, nil
	})

	res := r.Resolve(StoreWordCache)
	assert.True(t, res.Durable, "a backend that fails on use still resolves")
	assert.Equal(t, 1, opened)
}

func TestSQLiteOpener_SharesDatabase(t *testing.T) {
	open := SQLiteOpener(":memory:")

	a, err := open(StoreHistory)
	require.NoError(t, err)
	b, err := open(StoreWordCache)
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestResolver_CloseSharedBackendOnce(t *testing.T) {
	backend, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	r := NewResolver(func(string) (Backend, error) { return backend, nil })

	r.Resolve(StoreHistory)
	r.Resolve(StoreWordCache)
	require.NoError(t, r.Close())

	_, err = backend.Get(context.Background(), "k")
	assert.Error(t, err, "the database is closed")
	assert.NoError(t, r.Close(), "a second Close is a no-op")
}
