package feed

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/ndrandal/stocksim/internal/engine"
)

func newTestClient(bufSize int) *Client {
	return NewClient(nil, bufSize)
}

func TestSubscribe(t *testing.T) {
	c := newTestClient(10)
	c.Subscribe([]string{"KE01", "SK01"})
	if !c.IsSubscribed("KE01") || !c.IsSubscribed("SK01") {
		t.Fatal("subscribed tickers not registered")
	}
	if c.IsSubscribed("NO01") {
		t.Fatal("should not be subscribed to NO01")
	}
}

func TestSubscribeAllWildcard(t *testing.T) {
	c := newTestClient(10)
	c.Subscribe([]string{"*"})
	if !c.IsSubscribed("KE01") || !c.IsSubscribed("ANY") {
		t.Fatal("wildcard subscription should cover every ticker")
	}
	c.Unsubscribe([]string{"*"})
	if c.IsSubscribed("KE01") {
		t.Fatal("wildcard unsubscribe should clear the all flag")
	}
}

func TestUnsubscribe(t *testing.T) {
	c := newTestClient(10)
	c.Subscribe([]string{"KE01", "SK01"})
	c.Unsubscribe([]string{"SK01"})
	if c.IsSubscribed("SK01") {
		t.Fatal("should not be subscribed to SK01 after unsubscribe")
	}
	if !c.IsSubscribed("KE01") {
		t.Fatal("should still be subscribed to KE01")
	}
}

func TestSendBufferFull(t *testing.T) {
	c := newTestClient(2)
	ok1 := c.Send([]byte("msg1"))
	ok2 := c.Send([]byte("msg2"))
	ok3 := c.Send([]byte("msg3")) // should be dropped
	if !ok1 || !ok2 {
		t.Fatal("first two sends should succeed")
	}
	if ok3 {
		t.Fatal("third send should fail (buffer full)")
	}
	if dropped := atomic.LoadUint64(&c.Dropped); dropped != 1 {
		t.Fatalf("Dropped = %d, want 1", dropped)
	}
}

func TestBroadcastPricesFiltersBySubscription(t *testing.T) {
	m := NewManager(16)

	sub := newTestClient(16)
	sub.Subscribe([]string{"KE01"})
	other := newTestClient(16)
	other.Subscribe([]string{"SK01"})
	m.clients[sub.ID] = sub
	m.clients[other.ID] = other

	now := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	m.BroadcastPrices(now, []engine.PriceUpdate{
		{StockID: 1, Symbol: "KE01", Prev: 10.00, Price: 10.05},
	})

	select {
	case data := <-sub.sendCh:
		if len(data) == 0 {
			t.Fatal("empty event payload")
		}
	default:
		t.Fatal("subscribed client received nothing")
	}
	select {
	case <-other.sendCh:
		t.Fatal("unsubscribed client received the event")
	default:
	}
}

func TestClientCount(t *testing.T) {
	m := NewManager(16)
	if m.ClientCount() != 0 {
		t.Fatalf("ClientCount = %d, want 0", m.ClientCount())
	}
	c := newTestClient(16)
	m.clients[c.ID] = c
	if m.ClientCount() != 1 {
		t.Fatalf("ClientCount = %d, want 1", m.ClientCount())
	}
}
