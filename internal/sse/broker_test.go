package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type message struct {
	Type string
	Data string
}

func parse(t *testing.T, raw []byte) message {
	t.Helper()
	s := strings.TrimSuffix(string(raw), "\n\n")
	typ, data, ok := strings.Cut(s, "\n")
	if !ok || !strings.HasPrefix(typ, "event: ") || !strings.HasPrefix(data, "data: ") {
		t.Fatalf("malformed frame %q", raw)
	}
	return message{Type: strings.TrimPrefix(typ, "event: "), Data: strings.TrimPrefix(data, "data: ")}
}

func next(t *testing.T, ch <-chan []byte) message {
	t.Helper()
	select {
	case raw, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return parse(t, raw)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
	return message{}
}

func drain(ch <-chan []byte) int {
	n := 0
	for {
		select {
		case <-ch:
			n++
		default:
			return n
		}
	}
}

func refreshSpan(t *testing.T, m message) Span {
	t.Helper()
	if m.Type != EventCalendarUpdated {
		t.Fatalf("type = %s, want %s", m.Type, EventCalendarUpdated)
	}
	var s Span
	if err := json.Unmarshal([]byte(m.Data), &s); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestPublishChange_SendsChangeThenRefresh(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()

	b.PublishChange(Change{Kind: "moved", ID: "e1", Span: Span{From: "2026-10", To: "2026-11"}})

	m := next(t, ch)
	if m.Type != "event.moved" {
		t.Errorf("type = %s", m.Type)
	}
	if m.Data != `{"kind":"moved","id":"e1","from":"2026-10","to":"2026-11"}` {
		t.Errorf("data = %s", m.Data)
	}
	if s := refreshSpan(t, next(t, ch)); s != (Span{From: "2026-10", To: "2026-11"}) {
		t.Errorf("refresh span = %+v", s)
	}
}

func TestPublishChange_BulkRefreshesEverything(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()

	b.PublishChange(Change{Kind: "reloaded"})

	if m := next(t, ch); m.Type != "event.reloaded" || m.Data != `{"kind":"reloaded"}` {
		t.Errorf("change = %+v", m)
	}
	if m := next(t, ch); m.Data != "{}" {
		t.Errorf("refresh data = %s, want {}", m.Data)
	}
}

func TestPublishChange_CoalescesRefreshesInsideThrottle(t *testing.T) {
	b := NewBroker(200 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()

	b.PublishChange(Change{Kind: "created", ID: "a", Span: Span{From: "2026-10", To: "2026-10"}})
	b.PublishChange(Change{Kind: "created", ID: "b", Span: Span{From: "2026-12", To: "2026-12"}})
	b.PublishChange(Change{Kind: "updated", ID: "c", Span: Span{From: "2026-11", To: "2026-11"}})

	var refreshes []Span
	changes := 0
	for len(refreshes) < 2 {
		m := next(t, ch)
		if m.Type == EventCalendarUpdated {
			refreshes = append(refreshes, refreshSpan(t, m))
		} else {
			changes++
		}
	}
	if changes != 3 {
		t.Errorf("change messages = %d, want 3", changes)
	}
	if refreshes[0] != (Span{From: "2026-10", To: "2026-10"}) {
		t.Errorf("leading refresh = %+v", refreshes[0])
	}
	if refreshes[1] != (Span{From: "2026-11", To: "2026-12"}) {
		t.Errorf("trailing refresh = %+v, want the merged later changes", refreshes[1])
	}

	time.Sleep(300 * time.Millisecond)
	if n := drain(ch); n != 0 {
		t.Errorf("%d extra messages after the trailing refresh", n)
	}
}

func TestPublish_RawEvent(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()

	b.Publish(Event{Type: "ping", Data: map[string]int{"n": 1}})
	if m := next(t, ch); m.Type != "ping" || m.Data != `{"n":1}` {
		t.Errorf("message = %+v", m)
	}
}

func TestSlowClientDoesNotBlock(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 3*clientBuffer; i++ {
			b.Publish(Event{Type: "ping", Data: i})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full client")
	}
	if n := drain(ch); n != clientBuffer {
		t.Errorf("buffered = %d, want %d", n, clientBuffer)
	}
}

func TestSubscribeUnsubscribeClose(t *testing.T) {
	b := NewBroker(time.Hour)
	a := b.Subscribe()
	c := b.Subscribe()
	if n := b.ClientCount(); n != 2 {
		t.Fatalf("clients = %d", n)
	}
	b.Unsubscribe(a)
	if _, ok := <-a; ok {
		t.Error("unsubscribed channel still open")
	}

	// A refresh pending at close is dropped.
	b.PublishChange(Change{Kind: "created", ID: "x", Span: Span{From: "2026-10", To: "2026-10"}})
	b.PublishChange(Change{Kind: "created", ID: "y", Span: Span{From: "2026-10", To: "2026-10"}})
	b.Close()

	n := 0
	for range c {
		n++
	}
	if n != 3 {
		t.Errorf("messages before close = %d, want 2 changes and 1 refresh", n)
	}
	if b.ClientCount() != 0 {
		t.Error("clients left after close")
	}
	if _, ok := <-b.Subscribe(); ok {
		t.Error("subscribe after close returned an open channel")
	}
	b.Unsubscribe(c)
	b.PublishChange(Change{Kind: "deleted", ID: "x"})
}

func TestServeHTTP_StreamsChanges(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	srv := httptest.NewServer(b)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	deadline := time.Now().Add(2 * time.Second)
	for b.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	b.PublishChange(Change{Kind: "deleted", ID: "e9", Span: Span{From: "2026-10", To: "2026-10"}})

	sc := bufio.NewScanner(resp.Body)
	var lines []string
	for len(lines) < 2 && sc.Scan() {
		if line := sc.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) != 2 || lines[0] != "event: event.deleted" || !strings.Contains(lines[1], `"id":"e9"`) {
		t.Errorf("stream = %q", lines)
	}

	cancel()
	deadline = time.Now().Add(2 * time.Second)
	for b.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client not removed after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
