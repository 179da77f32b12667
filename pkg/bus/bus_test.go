package bus

import (
	"testing"

	"PortPulse/pkg/logger"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return New(l)
}

func TestPublishDeliversInSubscriptionOrder(t *testing.T) {
	h := newTestHub(t)
	topic := NewTopic[int]("test.order")

	var got []int
	Subscribe(h, topic, func(v int) { got = append(got, v+1) })
	Subscribe(h, topic, func(v int) { got = append(got, v+2) })

	Publish(h, topic, 10)

	if len(got) != 2 || got[0] != 11 || got[1] != 12 {
		t.Fatalf("unexpected delivery order: %v", got)
	}
}

func TestPanickingHandlerDoesNotStopDelivery(t *testing.T) {
	h := newTestHub(t)
	topic := NewTopic[string]("test.panic")

	var delivered bool
	Subscribe(h, topic, func(string) { panic("boom") })
	Subscribe(h, topic, func(string) { delivered = true })

	Publish(h, topic, "payload")

	if !delivered {
		t.Fatalf("second subscriber not reached after panic")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := newTestHub(t)
	topic := NewTopic[int]("test.unsub")

	var count int
	unsub := Subscribe(h, topic, func(int) { count++ })

	Publish(h, topic, 1)
	unsub()
	Publish(h, topic, 2)

	if count != 1 {
		t.Fatalf("expected 1 delivery, got %d", count)
	}
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	h := newTestHub(t)
	topic := NewTopic[int]("test.empty")
	Publish(h, topic, 42) // must not panic
}
