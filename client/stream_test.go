package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"voiceagent/core"
	"voiceagent/events/turn"
	"voiceagent/transports/websocket"
)

func TestStageStreamDispatchesProgress(t *testing.T) {
	hub := websocket.NewHub(websocket.HubConfig{Logger: core.NewNopLogger()})
	mux := http.NewServeMux()
	mux.HandleFunc("GET /agent/events/{key}", func(w http.ResponseWriter, r *http.Request) {
		hub.ServeSession(w, r, r.PathValue("key"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	defer hub.Close()

	got := make(chan Event, 4)
	stream, err := NewStageStream(srv.URL, func(ev Event) { got <- ev }, core.NewNopLogger())
	if err != nil {
		t.Fatalf("NewStageStream: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		stream.Follow(ctx, func() string { return "s1" })
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers("s1") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	sessCtx := core.ContextWithSessionKey(context.Background(), "s1")
	core.Publish(sessCtx, hub, &turn.TurnCompletedEvent{TurnID: "t0"}, "test")
	core.Publish(sessCtx, hub, &turn.TurnStageEvent{TurnID: "t1", State: "generating"}, "test")

	select {
	case ev := <-got:
		p, ok := ev.(StageProgress)
		if !ok || p.Stage != "generating" || p.TurnID != "t1" {
			t.Fatalf("event = %#v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no progress event")
	}
}

func TestNewStageStreamRejectsScheme(t *testing.T) {
	if _, err := NewStageStream("ftp://agent", func(Event) {}, nil); err == nil {
		t.Fatal("expected an error for a non-http base url")
	}
}

func TestStageStreamFollowsSessionSwitch(t *testing.T) {
	hub := websocket.NewHub(websocket.HubConfig{Logger: core.NewNopLogger()})
	mux := http.NewServeMux()
	mux.HandleFunc("GET /agent/events/{key}", func(w http.ResponseWriter, r *http.Request) {
		hub.ServeSession(w, r, r.PathValue("key"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	defer hub.Close()

	stream, err := NewStageStream(srv.URL, func(Event) {}, core.NewNopLogger())
	if err != nil {
		t.Fatalf("NewStageStream: %v", err)
	}
	var key atomic.Value
	key.Store("s1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		stream.Follow(ctx, func() string { return key.Load().(string) })
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	waitFor := func(k string, want int) {
		t.Helper()
		deadline := time.Now().Add(2 * time.Second)
		for hub.Subscribers(k) != want {
			if time.Now().After(deadline) {
				t.Fatalf("subscribers(%s) = %d, want %d", k, hub.Subscribers(k), want)
			}
			time.Sleep(5 * time.Millisecond)
		}
	}
	waitFor("s1", 1)

	// No events are published: the switch must not depend on traffic.
	key.Store("s2")
	waitFor("s2", 1)
	waitFor("s1", 0)
}
