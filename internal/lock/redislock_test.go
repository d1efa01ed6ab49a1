package lock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-jewellery/internal/lock"
)

func newLocker(t *testing.T) (lock.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond}, mr
}

func TestWithLockSerialisesInvoiceNumbers(t *testing.T) {
	locker, _ := newLocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var (
		mu   sync.Mutex
		seq  int
		seen []int
		wg   sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithLock(ctx, lock.InvoiceKey("owner-1"), time.Second, func(context.Context) error {
				mu.Lock()
				next := seq + 1
				mu.Unlock()
				time.Sleep(2 * time.Millisecond)
				mu.Lock()
				seq = next
				seen = append(seen, next)
				mu.Unlock()
				return nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	require.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, seen)
}

func TestWithLockReleasesOnError(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := locker.WithLock(ctx, "k", time.Second, func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	require.False(t, mr.Exists("k"))
}

func TestWithLockBusyAfterMaxWait(t *testing.T) {
	locker, mr := newLocker(t)
	locker.MaxWait = 30 * time.Millisecond
	require.NoError(t, mr.Set(lock.InvoiceKey("owner-1"), "someone-else"))

	called := false
	err := locker.WithLock(context.Background(), lock.InvoiceKey("owner-1"), time.Second, func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, lock.ErrBusy)
	require.False(t, called)

	// a lease held by another token is never released by us
	got, err := mr.Get(lock.InvoiceKey("owner-1"))
	require.NoError(t, err)
	require.Equal(t, "someone-else", got)
}

func TestWithLockHonoursContext(t *testing.T) {
	locker, mr := newLocker(t)
	require.NoError(t, mr.Set("k", "held"))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := locker.WithLock(ctx, "k", time.Second, func(context.Context) error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWithLockRequiresClient(t *testing.T) {
	err := lock.Locker{}.WithLock(context.Background(), "k", time.Second, func(context.Context) error { return nil })
	require.Error(t, err)
}
