// Package remote attaches a rules engine running in another process over a
// WebSocket. Every contract operation is a synchronous JSON request/response
// exchange; an error reply surfaces through the driver's engine-failure path.
package remote

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lox/gamefuzz/internal/engine"
)

// Message types exchanged with the remote engine.
const (
	TypeHello  = "hello"
	TypeSetup  = "setup"
	TypeView   = "view"
	TypeAction = "action"
	TypeResign = "resign"
	TypeState  = "state"
	TypeError  = "error"
)

// Request is a driver-to-engine frame.
type Request struct {
	Type     string         `json:"type"`
	Seed     int64          `json:"seed,omitempty"`
	Scenario string         `json:"scenario,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
	State    engine.State   `json:"state,omitempty"`
	Role     string         `json:"role,omitempty"`
	Action   string         `json:"action,omitempty"`
	Arg      any            `json:"arg,omitempty"`
}

// Response is an engine-to-driver frame. Hello fields are populated only in
// the handshake.
type Response struct {
	Type      string         `json:"type"`
	Roles     []string       `json:"roles,omitempty"`
	Scenarios []string       `json:"scenarios,omitempty"`
	Resign    bool           `json:"resign,omitempty"`
	State     engine.State   `json:"state,omitempty"`
	View      map[string]any `json:"view,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Engine is a rules engine reached over a WebSocket connection. Calls are
// strictly sequential, matching the driver's synchronous step protocol.
type Engine struct {
	conn      *websocket.Conn
	logger    zerolog.Logger
	roles     []string
	scenarios []string
}

type resignEngine struct {
	*Engine
}

// Dial connects to a remote engine and performs the hello handshake, which
// reports roles, scenarios and resignation capability.
func Dial(logger zerolog.Logger, serverURL string) (engine.Engine, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid engine URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		u.Scheme = "ws"
	}

	logger.Info().Str("url", u.String()).Msg("Connecting to rules engine")

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	var hello Response
	if err := conn.ReadJSON(&hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("read hello: %w", err)
	}
	if hello.Type != TypeHello {
		conn.Close()
		return nil, fmt.Errorf("expected hello frame, got %q", hello.Type)
	}
	if len(hello.Roles) == 0 || len(hello.Scenarios) == 0 {
		conn.Close()
		return nil, errors.New("engine hello must declare roles and scenarios")
	}

	e := &Engine{
		conn:      conn,
		logger:    logger.With().Str("component", "remote-engine").Logger(),
		roles:     hello.Roles,
		scenarios: hello.Scenarios,
	}
	if hello.Resign {
		return &resignEngine{e}, nil
	}
	return e, nil
}

// Close closes the connection with a normal-closure frame.
func (e *Engine) Close() error {
	_ = e.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return e.conn.Close()
}

// Roles returns the roles declared in the handshake.
func (e *Engine) Roles() []string {
	return e.roles
}

// Scenarios returns the scenarios declared in the handshake.
func (e *Engine) Scenarios() []string {
	return e.scenarios
}

// Setup builds the initial game state.
func (e *Engine) Setup(seed int64, scenario string, options map[string]any) (engine.State, error) {
	resp, err := e.call(Request{Type: TypeSetup, Seed: seed, Scenario: scenario, Options: options})
	if err != nil {
		return nil, err
	}
	return resp.State, nil
}

// View returns the per-role projection of state.
func (e *Engine) View(state engine.State, role string) (engine.View, error) {
	resp, err := e.call(Request{Type: TypeView, State: state, Role: role})
	if err != nil {
		return engine.View{}, err
	}
	return engine.NewView(resp.View), nil
}

// Apply performs an action and returns the replacement state.
func (e *Engine) Apply(state engine.State, role, action string, arg any) (engine.State, error) {
	resp, err := e.call(Request{Type: TypeAction, State: state, Role: role, Action: action, Arg: arg})
	if err != nil {
		return nil, err
	}
	return resp.State, nil
}

// Resign performs resignation for role.
func (e *resignEngine) Resign(state engine.State, role string) (engine.State, error) {
	resp, err := e.call(Request{Type: TypeResign, State: state, Role: role})
	if err != nil {
		return nil, err
	}
	return resp.State, nil
}

func (e *Engine) call(req Request) (Response, error) {
	if err := e.conn.WriteJSON(req); err != nil {
		return Response{}, fmt.Errorf("%s: write: %w", req.Type, err)
	}
	var resp Response
	if err := e.conn.ReadJSON(&resp); err != nil {
		return Response{}, fmt.Errorf("%s: read: %w", req.Type, err)
	}
	if resp.Type == TypeError {
		return Response{}, fmt.Errorf("%s: engine error: %s", req.Type, resp.Error)
	}
	return resp, nil
}
