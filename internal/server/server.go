package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/lotas/trackerguard/internal/applog"
	"github.com/lotas/trackerguard/internal/types"
	"nhooyr.io/websocket"
)

// Incoming message types sent by the extension background process.
const (
	MsgPageContext = "pageContext"
	MsgSmartBlock  = "smartBlock"
	MsgCommand     = "command"
	MsgReloaded    = "reloaded"
	MsgPanelOpened = "panelOpened"
)

// Outgoing actions.
const (
	ActionSetPanelData = "setPanelData"
	ActionResult       = "result"
)

// ErrNotConnected is returned by Write when no extension is connected.
var ErrNotConnected = errors.New("server: no extension connected")

// IncomingMsg is a message from the extension to the panel.
type IncomingMsg struct {
	Type string `json:"type"`

	// pageContext
	Page       json.RawMessage `json:"page,omitempty"`
	Categories json.RawMessage `json:"categories,omitempty"`
	PanelData  json.RawMessage `json:"panelData,omitempty"`

	// smartBlock (also accepted inside page)
	SmartBlock       json.RawMessage `json:"smartBlock,omitempty"`
	SmartBlockActive bool            `json:"smartBlockActive,omitempty"`

	// command
	ID         string `json:"id,omitempty"`
	Action     string `json:"action,omitempty"`
	CategoryID string `json:"categoryId,omitempty"`
	TrackerID  int    `json:"trackerId,omitempty"`
	Blocked    *bool  `json:"blocked,omitempty"`
	List       string `json:"list,omitempty"`
	Host       string `json:"host,omitempty"`
	Filter     string `json:"filter,omitempty"`
	Text       string `json:"text,omitempty"`
	Classes    string `json:"classes,omitempty"`
	Override   bool   `json:"override,omitempty"`
	Seconds    int    `json:"seconds,omitempty"`
}

// OutgoingMsg is a patch or command result sent to the extension.
type OutgoingMsg struct {
	ID      string      `json:"id,omitempty"`
	Action  string      `json:"action"`
	Patch   types.Patch `json:"patch,omitempty"`
	OK      *bool       `json:"ok,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
	Warning string      `json:"warning,omitempty"`
	Summary string      `json:"summary,omitempty"`
}

// Server manages the WebSocket connection to the extension.
type Server struct {
	port    int
	msgs    chan IncomingMsg
	mu      sync.Mutex
	conn    *websocket.Conn
	connCtx context.Context
}

// New creates a new Server. Port 0 means the caller manages the listener.
func New(port int) *Server {
	return &Server{
		port: port,
		msgs: make(chan IncomingMsg, 64),
	}
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Messages returns the channel of incoming messages from the extension.
func (s *Server) Messages() <-chan IncomingMsg {
	return s.msgs
}

// Connected reports whether an extension is connected.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Send sends a message to the connected extension. It is a no-op when
// nothing is connected.
func (s *Server) Send(msg OutgoingMsg) error {
	err := s.send(context.Background(), msg)
	if errors.Is(err, ErrNotConnected) {
		return nil
	}
	return err
}

func (s *Server) send(ctx context.Context, msg OutgoingMsg) error {
	s.mu.Lock()
	conn := s.conn
	connCtx := s.connCtx
	s.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	applog.Info("ws.send", "action", msg.Action, "id", msg.ID)
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	// Stop writing when either the caller or the connection goes away.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(connCtx, cancel)
	defer stop()
	return conn.Write(ctx, websocket.MessageText, data)
}

// Name identifies the server as an outbox sink.
func (s *Server) Name() string { return "bridge" }

// Write mirrors a panel-data patch to the extension.
func (s *Server) Write(ctx context.Context, p types.Patch) error {
	return s.send(ctx, OutgoingMsg{Action: ActionSetPanelData, Patch: p})
}

// Handler returns an http.Handler that accepts WebSocket upgrades.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			applog.Error("ws.accept", err)
			return
		}

		conn.SetReadLimit(4 << 20) // 4 MB, pages with many trackers

		ctx := r.Context()
		s.mu.Lock()
		if s.conn != nil {
			applog.Info("ws.replaced")
			s.conn.CloseNow()
		}
		s.conn = conn
		s.connCtx = ctx
		s.mu.Unlock()

		applog.Info("ws.connected", "remote", r.RemoteAddr)

		defer func() {
			s.mu.Lock()
			if s.conn == conn {
				s.conn = nil
				s.connCtx = nil
			}
			s.mu.Unlock()
			conn.CloseNow()
			applog.Info("ws.disconnected")
		}()

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg IncomingMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				applog.Error("ws.parse", err)
				continue
			}
			applog.Info("ws.recv", "type", msg.Type, "action", msg.Action)
			select {
			case s.msgs <- msg:
			default:
				applog.Info("ws.dropped", "type", msg.Type)
			}
		}
	})
}

// ListenAndServe starts the WebSocket server on the configured port.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/", s.Handler())

	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	applog.Info("server.start", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	return srv.ListenAndServe()
}
