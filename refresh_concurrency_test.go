package portalAuth

import (
	"context"
	"sync"
	"testing"
)

func TestRefreshTokenConcurrencySingleWinner(t *testing.T) {
	srv := newTestServer(t, 0)
	e, _ := newTestEngine(t, srv)
	mustLogin(t, e)

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)

	results := make(chan bool, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			<-start
			results <- e.RefreshToken(context.Background())
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	winners := 0
	for ok := range results {
		if ok {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one successful refresh, got %d", winners)
	}
	if got := srv.Counters().Refresh; got != 1 {
		t.Fatalf("expected one refresh call, got %d", got)
	}
	if got := e.Metrics().Value(MetricRefreshThrottled); got != n-1 {
		t.Fatalf("expected %d throttled, got %d", n-1, got)
	}
	if !e.IsAuthenticated() {
		t.Fatalf("losers must not log the session out")
	}
}
