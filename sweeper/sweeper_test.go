package sweeper_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jrsteele09/go-shh/internal/metrics"
	"github.com/jrsteele09/go-shh/secrets"
	"github.com/jrsteele09/go-shh/secrets/repofakes"
	"github.com/jrsteele09/go-shh/sweeper"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestSweep(t *testing.T) {
	past := time.Now().Add(-2 * time.Hour)
	store := repofakes.NewFakeSecretStore(secrets.WithClock(func() time.Time { return past }))

	for range 3 {
		_, err := store.Create(t.Context(), secrets.NewSecret{Payload: []byte("x"), TTL: secrets.TTL5Minutes})
		require.NoError(t, err)
	}
	live := repofakes.NewFakeSecretStore()
	_, err := live.Create(t.Context(), secrets.NewSecret{Payload: []byte("x"), TTL: secrets.TTL1Hour})
	require.NoError(t, err)

	before := testutil.ToFloat64(metrics.SecretsPurgedTotal)
	require.EqualValues(t, 3, sweeper.New(store, time.Minute).Sweep(t.Context()))
	require.Zero(t, store.Len())
	require.Equal(t, before+3, testutil.ToFloat64(metrics.SecretsPurgedTotal))

	require.Zero(t, sweeper.New(live, time.Minute).Sweep(t.Context()))
	require.Equal(t, 1, live.Len())
}

func TestRunSurvivesStorageErrors(t *testing.T) {
	store := repofakes.NewFakeSecretStore(secrets.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) }))
	_, err := store.Create(t.Context(), secrets.NewSecret{Payload: []byte("x"), TTL: secrets.TTL5Minutes})
	require.NoError(t, err)
	store.FailWith(errors.New("database unavailable"))

	errorsBefore := testutil.ToFloat64(metrics.SweeperErrorsTotal)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		sweeper.New(store, 10*time.Millisecond).Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.SweeperErrorsTotal) >= errorsBefore+2
	}, 5*time.Second, 5*time.Millisecond)

	store.FailWith(nil)
	require.Eventually(t, func() bool { return store.Len() == 0 }, 5*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not stop after cancellation")
	}
}
