package events

import (
	"reflect"
	"testing"
)

func TestEmitDeliversInSubscriptionOrder(t *testing.T) {
	ch := NewChannel[int]("test")
	var got []string

	ch.Subscribe(func(v int) { got = append(got, "a") })
	ch.Subscribe(func(v int) { got = append(got, "b") })
	ch.Subscribe(func(v int) { got = append(got, "c") })

	ch.Emit(1)

	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("delivery order = %v, want %v", got, want)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	ch := NewChannel[string]("test")
	calls := 0
	tok := ch.Subscribe(func(string) { calls++ })

	ch.Emit("x")
	if !ch.Unsubscribe(tok) {
		t.Fatal("expected unsubscribe to succeed")
	}
	if ch.Unsubscribe(tok) {
		t.Fatal("expected second unsubscribe to be a no-op")
	}
	ch.Emit("y")

	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestHandlerMayUnsubscribeDuringEmit(t *testing.T) {
	ch := NewChannel[int]("test")
	var tok Token
	calls := 0
	tok = ch.Subscribe(func(int) {
		calls++
		ch.Unsubscribe(tok)
	})
	other := 0
	ch.Subscribe(func(int) { other++ })

	ch.Emit(1)
	ch.Emit(2)

	if calls != 1 || other != 2 {
		t.Fatalf("calls=%d other=%d", calls, other)
	}
}

func TestLastTracksLatestValue(t *testing.T) {
	ch := NewChannel[bool]("test")
	if _, ok := ch.Last(); ok {
		t.Fatal("expected no value before first emit")
	}
	ch.Emit(true)
	ch.Emit(false)

	v, ok := ch.Last()
	if !ok || v {
		t.Fatalf("Last() = %v, %v; want false, true", v, ok)
	}
}

func TestBusUnsubscribeRoutesByChannel(t *testing.T) {
	bus := NewBus()
	loadingCalls := 0
	refreshCalls := 0

	lt := bus.Loading.Subscribe(func(bool) { loadingCalls++ })
	rt := bus.GlobalRefresh.Subscribe(func(GlobalRefreshRequest) { refreshCalls++ })

	if !bus.Unsubscribe(lt) {
		t.Fatal("expected loading unsubscribe")
	}
	bus.Loading.Emit(true)
	bus.GlobalRefresh.Emit(GlobalRefreshRequest{Scope: ScopeAllData})

	if loadingCalls != 0 || refreshCalls != 1 {
		t.Fatalf("loading=%d refresh=%d", loadingCalls, refreshCalls)
	}
	if !bus.Unsubscribe(rt) {
		t.Fatal("expected refresh unsubscribe")
	}
	if bus.Unsubscribe(Token{}) {
		t.Fatal("zero token must not unsubscribe anything")
	}
}

func TestGlobalRefreshCovers(t *testing.T) {
	req := GlobalRefreshRequest{Scope: ScopeAllData}
	if !req.Covers(ScopeCurrentScreen) {
		t.Fatal("all-data must cover every scope")
	}
	req = GlobalRefreshRequest{Scope: ScopeUserProfile}
	if req.Covers(ScopeCurrentScreen) {
		t.Fatal("user-profile must not cover current-screen")
	}
}
