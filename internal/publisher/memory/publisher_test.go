package memory

import (
	"context"
	"errors"
	"testing"
)

var errUnavailable = errors.New("topic unavailable")

func TestPublisherRecordsEncodedMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "feed-rendered", map[string]any{"uri": "memory://feed.xml", "entries": 4})
	if err != nil || id1 != "memory-1" {
		t.Fatalf("unexpected publish result id=%s err=%v", id1, err)
	}
	id2, err := pub.Publish(context.Background(), "feed-audit", "rebuilt")
	if err != nil || id2 != "memory-2" {
		t.Fatalf("unexpected publish result id=%s err=%v", id2, err)
	}

	msgs := pub.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Topic != "feed-rendered" || msgs[1].Topic != "feed-audit" {
		t.Fatalf("topics not recorded correctly: %+v", msgs)
	}
	if got := string(msgs[0].Data); got != `{"entries":4,"uri":"memory://feed.xml"}` {
		t.Fatalf("unexpected encoded payload %s", got)
	}
	if got := string(msgs[1].Data); got != `"rebuilt"` {
		t.Fatalf("unexpected encoded payload %s", got)
	}

	msgs[0].Topic = "modified"
	if pub.Messages()[0].Topic == "modified" {
		t.Fatal("expected Messages() to return a copy")
	}
}

func TestPublisherFailures(t *testing.T) {
	t.Parallel()

	pub := New()
	if _, err := pub.Publish(context.Background(), "t", make(chan int)); err == nil {
		t.Fatal("expected unencodable payload to fail")
	}

	pub.FailNext(errUnavailable)
	if _, err := pub.Publish(context.Background(), "t", "x"); !errors.Is(err, errUnavailable) {
		t.Fatalf("expected injected error, got %v", err)
	}
	id, err := pub.Publish(context.Background(), "t", "x")
	if err != nil || id != "memory-1" {
		t.Fatalf("expected recovery after injected failure, id=%s err=%v", id, err)
	}
	if n := len(pub.Messages()); n != 1 {
		t.Fatalf("expected only the successful publish to be recorded, got %d", n)
	}
}
