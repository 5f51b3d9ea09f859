package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lotas/trackerguard/internal/types"
	"nhooyr.io/websocket"
)

func dial(t *testing.T, srv *Server) (*websocket.Conn, context.Context) {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return conn, ctx
}

func waitConnected(t *testing.T, srv *Server) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !srv.Connected() {
		if time.Now().After(deadline) {
			t.Fatal("server never registered the connection")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServerAcceptsConnection(t *testing.T) {
	srv := New(0) // port 0 = pick any free port
	conn, ctx := dial(t, srv)

	data, _ := json.Marshal(IncomingMsg{Type: MsgPanelOpened})
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case msg := <-srv.Messages():
		if msg.Type != MsgPanelOpened {
			t.Errorf("got type %q, want %s", msg.Type, MsgPanelOpened)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
}

func TestServerSkipsMalformedMessages(t *testing.T) {
	srv := New(0)
	conn, ctx := dial(t, srv)

	conn.Write(ctx, websocket.MessageText, []byte("{not json"))
	conn.Write(ctx, websocket.MessageText, []byte(`{"type":"reloaded"}`))

	select {
	case msg := <-srv.Messages():
		if msg.Type != MsgReloaded {
			t.Errorf("got type %q, want reloaded", msg.Type)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
}

func TestServerWritesPatch(t *testing.T) {
	srv := New(0)
	conn, ctx := dial(t, srv)
	waitConnected(t, srv)

	err := srv.Write(ctx, types.Patch{types.KeyPausedBlocking: true})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got OutgoingMsg
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Action != ActionSetPanelData {
		t.Errorf("action = %q, want %s", got.Action, ActionSetPanelData)
	}
	if got.Patch[types.KeyPausedBlocking] != true {
		t.Errorf("patch = %v", got.Patch)
	}
}

func TestServerWriteWithoutConnection(t *testing.T) {
	srv := New(0)
	if srv.Name() != "bridge" {
		t.Errorf("Name() = %q", srv.Name())
	}
	err := srv.Write(context.Background(), types.Patch{types.KeyPausedBlocking: true})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("got %v, want ErrNotConnected", err)
	}
	if err := srv.Send(OutgoingMsg{Action: ActionResult}); err != nil {
		t.Errorf("Send without connection should be a no-op, got %v", err)
	}
}

func TestOutgoingMsgOmitsEmptyFields(t *testing.T) {
	ok := true
	data, err := json.Marshal(OutgoingMsg{ID: "cmd-1", Action: ActionResult, OK: &ok})
	if err != nil {
		t.Fatal(err)
	}
	var parsed map[string]interface{}
	json.Unmarshal(data, &parsed)
	if _, present := parsed["patch"]; present {
		t.Error("empty patch should be omitted")
	}
	if parsed["ok"] != true {
		t.Errorf("ok = %v, want true", parsed["ok"])
	}
}
