package metrics

import "testing"

func TestHubPublishDeliversToSubscriber(t *testing.T) {
	h := NewHub()
	sub, ch := h.Subscribe(TopicWindowClosed)
	defer h.Unsubscribe(TopicWindowClosed, sub)

	h.Publish(TopicWindowClosed, &WindowSnapshot{Window: 42})

	select {
	case msg := <-ch:
		snap, ok := msg.(*WindowSnapshot)
		if !ok || snap.Window != 42 {
			t.Errorf("got %+v, want WindowSnapshot{Window: 42}", msg)
		}
	default:
		t.Fatal("expected message to be delivered")
	}
}

func TestHubPublishDropsWhenSubscriberBufferFull(t *testing.T) {
	h := NewHub()
	sub, ch := h.Subscribe(TopicWindowClosed)
	defer h.Unsubscribe(TopicWindowClosed, sub)

	for i := 0; i < subscriberBufSize+10; i++ {
		h.Publish(TopicWindowClosed, &WindowSnapshot{Window: int64(i)})
	}

	count := 0
	for range ch {
		count++
		if len(ch) == 0 {
			break
		}
	}
	if count > subscriberBufSize {
		t.Errorf("received %d messages, want at most %d (buffer should drop excess)", count, subscriberBufSize)
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub()
	sub, ch := h.Subscribe(TopicWindowClosed)
	h.Unsubscribe(TopicWindowClosed, sub)

	_, ok := <-ch
	if ok {
		t.Error("expected channel closed after unsubscribe")
	}
}

func TestHubPublishToUnknownTopicIsNoop(t *testing.T) {
	h := NewHub()
	h.Publish("nonexistent.topic", "hello")
}
