package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pass(context.Context) error { return nil }

func fail(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func serve(handler http.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func runN(s *state, n int) {
	for range n {
		s.run(context.Background())
	}
}

func TestLiveEndpoint_OK(t *testing.T) {
	h := New()
	h.AddLiveness(Check{Name: "a", Func: pass})
	h.AddLiveness(Check{Name: "b", Func: pass})

	w := serve(h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestLiveEndpoint_Thresholds(t *testing.T) {
	h := New()
	h.AddLiveness(Check{Name: "db", Func: fail("connection refused")})
	s := h.live[0]

	runN(s, 2)
	assert.Equal(t, http.StatusOK, serve(h.LiveEndpoint).Code, "below failure threshold")

	runN(s, 1)
	w := serve(h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"db":"connection refused"}}`, w.Body.String())
}

func TestCheck_Recovers(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	h := New()
	h.AddLiveness(Check{
		Name:             "flappy",
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Func: func(context.Context) error {
			if failing.Load() {
				return errors.New("down")
			}
			return nil
		},
	})
	s := h.live[0]

	runN(s, 1)
	require.NotEmpty(t, s.failure())

	failing.Store(false)
	runN(s, 1)
	assert.NotEmpty(t, s.failure(), "needs two successes")
	runN(s, 1)
	assert.Empty(t, s.failure())
}

func TestCheck_Timeout(t *testing.T) {
	h := New()
	h.AddReadiness(Check{
		Name:             "slow",
		Timeout:          10 * time.Millisecond,
		FailureThreshold: 1,
		Func: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})
	runN(h.readyz[0], 1)
	assert.Contains(t, h.readyz[0].failure(), "deadline exceeded")
}

func TestReadyEndpoint(t *testing.T) {
	h := New()
	h.AddReadiness(Check{Name: "postgres", Func: pass})

	w := serve(h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"_readiness":"service is not ready"}}`, w.Body.String())
	assert.False(t, h.IsReady())

	h.SetReady(true)
	assert.Equal(t, http.StatusOK, serve(h.ReadyEndpoint).Code)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	assert.Equal(t, http.StatusServiceUnavailable, serve(h.ReadyEndpoint).Code)
}

func TestReadyEndpoint_FailingCheck(t *testing.T) {
	h := New()
	h.SetReady(true)
	h.AddReadiness(Check{Name: "redis", FailureThreshold: 1, Func: fail("i/o timeout")})
	runN(h.readyz[0], 1)

	assert.False(t, h.IsReady())
	w := serve(h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"redis":"i/o timeout"}}`, w.Body.String())
}

func TestStartStop(t *testing.T) {
	var calls atomic.Int32
	h := New()
	h.AddReadiness(Check{Name: "count", Func: func(context.Context) error {
		calls.Add(1)
		return nil
	}})

	h.Start(context.Background(), 5*time.Millisecond)
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	h.Stop()
	h.Stop()

	time.Sleep(20 * time.Millisecond)
	n := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, calls.Load())
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestCheckers(t *testing.T) {
	require.NoError(t, PingCheck(pinger{})(context.Background()))
	require.ErrorContains(t, PingCheck(pinger{err: errors.New("refused")})(context.Background()), "refused")

	require.NoError(t, GoroutineCountCheck(runtime.NumGoroutine()+100)(context.Background()))
	require.Error(t, GoroutineCountCheck(0)(context.Background()))
}
