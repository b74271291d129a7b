// Package realtime is the websocket transport for channel joins, lifecycle
// verbs and broadcast delivery.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nuwa-agi/nuwa/internal/auth/rbac"
	"github.com/nuwa-agi/nuwa/internal/auth/token"
	"github.com/nuwa-agi/nuwa/internal/broadcast"
	"github.com/nuwa-agi/nuwa/internal/engine"
	"github.com/nuwa-agi/nuwa/internal/ports"
	"github.com/zeromicro/go-zero/core/logx"
)

// Client to server event names.
const (
	EventJoinTeam         = "join-team"
	EventJoinSimulation   = "join-simulation"
	EventJoinUser         = "join-user"
	EventLeave            = "leave"
	EventStartSimulation  = "start-simulation"
	EventPauseSimulation  = "pause-simulation"
	EventResumeSimulation = "resume-simulation"
	EventStopSimulation   = "stop-simulation"
)

// Verifier decodes a credential into an identity.
type Verifier interface {
	Verify(tok string) (ports.Identity, error)
}

// Lifecycle is the subset of the orchestrator the gateway drives.
type Lifecycle interface {
	Authorize(ctx context.Context, id ports.Identity, simID string, verb rbac.Verb) (*ports.Simulation, rbac.Capability, error)
	Start(ctx context.Context, id ports.Identity, simID string, overrides ports.Params) (engine.State, error)
	Pause(ctx context.Context, id ports.Identity, simID string) (engine.State, error)
	Resume(ctx context.Context, id ports.Identity, simID string) (engine.State, error)
	Stop(ctx context.Context, id ports.Identity, simID string) (engine.State, error)
}

type Config struct {
	Addr           string        `json:",default=:8889"`
	Path           string        `json:",default=/ws"`
	SendBuffer     int           `json:",default=64"`
	WriteTimeout   time.Duration `json:",default=10s"`
	PongWait       time.Duration `json:",default=60s"`
	MaxMessageSize int64         `json:",default=65536"`
	VerbTimeout    time.Duration `json:",default=10s"`
}

func (c *Config) normalize() {
	if c.Path == "" {
		c.Path = "/ws"
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 64
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 64 << 10
	}
	if c.VerbTimeout <= 0 {
		c.VerbTimeout = 10 * time.Second
	}
}

// Frame is the JSON shape of every websocket message in both directions.
type Frame struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type outFrame struct {
	Event   string `json:"event"`
	Channel string `json:"channel,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// ErrorPayload is sent to the originating connection when a client event fails.
type ErrorPayload struct {
	Event   string `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Gateway struct {
	cfg      Config
	bus      *broadcast.Coordinator
	ops      Lifecycle
	verifier Verifier
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[string]*conn
}

func NewGateway(cfg Config, bus *broadcast.Coordinator, ops Lifecycle, verifier Verifier) *Gateway {
	cfg.normalize()
	return &Gateway{
		cfg:      cfg,
		bus:      bus,
		ops:      ops,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		conns: make(map[string]*conn),
	}
}

// Connections returns the number of open sockets.
func (g *Gateway) Connections() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tok := r.URL.Query().Get("token")
	if tok == "" {
		tok = token.FromHeader(r.Header.Get("Authorization"))
	}
	if tok == "" {
		writeAuthError(w, http.StatusUnauthorized, "missing token")
		return
	}
	ident, err := g.verifier.Verify(tok)
	if err != nil {
		writeAuthError(w, http.StatusForbidden, "invalid token")
		return
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logx.WithContext(r.Context()).Errorf("websocket upgrade for %s: %v", ident.PrincipalID, err)
		return
	}
	c := &conn{
		id:    uuid.NewString(),
		ident: ident,
		gw:    g,
		ws:    ws,
		send:  make(chan outFrame, g.cfg.SendBuffer),
		done:  make(chan struct{}),
	}
	g.mu.Lock()
	g.conns[c.id] = c
	g.mu.Unlock()
	logx.Infow("realtime connected", logx.Field("conn", c.id), logx.Field("principal", ident.PrincipalID))

	go g.writeLoop(c)
	g.readLoop(c)
}

// Close disconnects every socket.
func (g *Gateway) Close() {
	g.mu.Lock()
	conns := make([]*conn, 0, len(g.conns))
	for _, c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.Unlock()
	for _, c := range conns {
		c.close()
	}
}

func (g *Gateway) readLoop(c *conn) {
	defer g.disconnect(c)
	c.ws.SetReadLimit(g.cfg.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(g.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(g.cfg.PongWait))
	})
	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logx.Errorf("realtime read %s: %v", c.id, err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(g.cfg.PongWait))
		var f Frame
		if err := json.Unmarshal(payload, &f); err != nil || f.Event == "" {
			c.fail("", fmt.Errorf("%w: malformed frame", ports.ErrInvalidInput))
			continue
		}
		g.dispatch(c, f)
	}
}

func (g *Gateway) writeLoop(c *conn) {
	ping := time.NewTicker(g.cfg.PongWait * 9 / 10)
	defer func() {
		ping.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(g.cfg.WriteTimeout))
			_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case f := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(g.cfg.WriteTimeout))
			if err := c.ws.WriteJSON(f); err != nil {
				c.close()
				return
			}
		case <-ping.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(g.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

func (g *Gateway) disconnect(c *conn) {
	g.bus.Drop(c.id)
	g.mu.Lock()
	delete(g.conns, c.id)
	g.mu.Unlock()
	c.close()
	logx.Infow("realtime disconnected", logx.Field("conn", c.id), logx.Field("principal", c.ident.PrincipalID))
}

func (g *Gateway) dispatch(c *conn, f Frame) {
	ctx, cancel := context.WithTimeout(context.Background(), g.cfg.VerbTimeout)
	defer cancel()
	ctx = ports.WithIdentity(ctx, c.ident)

	var err error
	switch f.Event {
	case EventJoinTeam:
		err = g.joinTeam(c, f.Data)
	case EventJoinSimulation:
		err = g.joinSimulation(ctx, c, f.Data)
	case EventJoinUser:
		err = g.joinUser(c, f.Data)
	case EventLeave:
		err = g.leave(c, f.Data)
	case EventStartSimulation:
		var in struct {
			SimulationID string       `json:"simulationId"`
			Parameters   ports.Params `json:"parameters"`
		}
		if err = decodeData(f.Data, &in); err == nil {
			if in.SimulationID == "" {
				err = fmt.Errorf("%w: simulationId is required", ports.ErrInvalidInput)
			} else {
				_, err = g.ops.Start(ctx, c.ident, in.SimulationID, in.Parameters)
			}
		}
	case EventPauseSimulation, EventResumeSimulation, EventStopSimulation:
		var simID string
		if simID, err = idFrom(f.Data, "simulationId"); err == nil {
			switch f.Event {
			case EventPauseSimulation:
				_, err = g.ops.Pause(ctx, c.ident, simID)
			case EventResumeSimulation:
				_, err = g.ops.Resume(ctx, c.ident, simID)
			default:
				_, err = g.ops.Stop(ctx, c.ident, simID)
			}
		}
	default:
		err = fmt.Errorf("%w: unknown event %q", ports.ErrInvalidInput, f.Event)
	}
	if err != nil {
		c.fail(f.Event, err)
	}
}

func (g *Gateway) joinTeam(c *conn, data json.RawMessage) error {
	teamID, err := idFrom(data, "teamId")
	if err != nil {
		return err
	}
	if teamID != c.ident.TeamID {
		return fmt.Errorf("%w: not a member of team %s", ports.ErrAccessDenied, teamID)
	}
	return g.join(c, broadcast.TeamChannel(teamID))
}

func (g *Gateway) joinSimulation(ctx context.Context, c *conn, data json.RawMessage) error {
	simID, err := idFrom(data, "simulationId")
	if err != nil {
		return err
	}
	if _, _, err := g.ops.Authorize(ctx, c.ident, simID, rbac.VerbRead); err != nil {
		return err
	}
	return g.join(c, broadcast.SimulationChannel(simID))
}

func (g *Gateway) joinUser(c *conn, data json.RawMessage) error {
	principalID, err := idFrom(data, "principalId")
	if err != nil {
		return err
	}
	if principalID != c.ident.PrincipalID {
		return fmt.Errorf("%w: cannot join another user's channel", ports.ErrAccessDenied)
	}
	return g.join(c, broadcast.UserChannel(principalID))
}

func (g *Gateway) join(c *conn, ch broadcast.Channel) error {
	if err := g.bus.Join(ch, c); err != nil {
		return fmt.Errorf("%w: %v", ports.ErrInvalidInput, err)
	}
	c.enqueue(outFrame{Event: broadcast.EventJoined, Channel: ch.String(), Data: map[string]string{"channel": ch.String()}})
	return nil
}

// recheck drops c from the simulation channel once its principal can no longer
// read the simulation. Team members keep their subscription.
func (g *Gateway) recheck(c *conn, simID string) {
	ctx, cancel := context.WithTimeout(context.Background(), g.cfg.VerbTimeout)
	defer cancel()
	_, _, err := g.ops.Authorize(ctx, c.ident, simID, rbac.VerbRead)
	if err == nil {
		return
	}
	if !errors.Is(err, ports.ErrAccessDenied) && !errors.Is(err, ports.ErrNotFound) {
		logx.Errorf("realtime recheck %s on %s: %v", c.ident.PrincipalID, simID, err)
		return
	}
	ch := broadcast.SimulationChannel(simID)
	g.bus.Leave(ch, c.id)
	c.enqueue(outFrame{Event: broadcast.EventLeft, Channel: ch.String(), Data: map[string]string{"channel": ch.String()}})
}

func (g *Gateway) leave(c *conn, data json.RawMessage) error {
	name, err := idFrom(data, "channel")
	if err != nil {
		return err
	}
	ch, err := broadcast.ParseChannel(name)
	if err != nil {
		return fmt.Errorf("%w: %v", ports.ErrInvalidInput, err)
	}
	g.bus.Leave(ch, c.id)
	c.enqueue(outFrame{Event: broadcast.EventLeft, Channel: ch.String(), Data: map[string]string{"channel": ch.String()}})
	return nil
}

// conn is one websocket session and a broadcast member.
type conn struct {
	id    string
	ident ports.Identity
	gw    *Gateway
	ws    *websocket.Conn
	send  chan outFrame
	done  chan struct{}
	once  sync.Once
}

func (c *conn) ID() string { return c.id }

// Deliver queues env without blocking; a full buffer drops it.
func (c *conn) Deliver(env broadcast.Envelope) bool {
	ok := c.enqueue(outFrame{Event: env.Event, Channel: env.Channel, Data: env.Data})
	if env.Event == broadcast.EventCollaboratorRemoved && c.gw != nil {
		if rm, err := removalOf(env.Data); err == nil && rm.PrincipalID == c.ident.PrincipalID {
			go c.gw.recheck(c, rm.SimulationID)
		}
	}
	return ok
}

func (c *conn) enqueue(f outFrame) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- f:
		return true
	default:
		return false
	}
}

func (c *conn) fail(event string, err error) {
	msg := err.Error()
	if errors.Is(err, ports.ErrInconsistentState) || ports.ErrorCode(err) == "internal" {
		logx.Errorf("realtime %s from %s: %v", event, c.ident.PrincipalID, err)
		msg = "internal error"
	}
	c.enqueue(outFrame{Event: broadcast.EventError, Data: ErrorPayload{Event: event, Code: ports.ErrorCode(err), Message: msg}})
}

func (c *conn) close() {
	c.once.Do(func() { close(c.done) })
}

// idFrom accepts either a bare JSON string or an object carrying key.
func idFrom(data json.RawMessage, key string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: %s is required", ports.ErrInvalidInput, key)
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s = strings.TrimSpace(s); s != "" {
			return s, nil
		}
		return "", fmt.Errorf("%w: %s is required", ports.ErrInvalidInput, key)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return "", fmt.Errorf("%w: %s is required", ports.ErrInvalidInput, key)
	}
	for _, k := range []string{key, "id"} {
		if v, ok := m[k].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), nil
		}
	}
	return "", fmt.Errorf("%w: %s is required", ports.ErrInvalidInput, key)
}

func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", ports.ErrInvalidInput)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ports.ErrInvalidInput, err)
	}
	return nil
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"code": status, "message": msg})
}

// removalOf reads a revocation payload. Relayed envelopes carry decoded JSON
// rather than the typed value.
func removalOf(data any) (broadcast.CollaboratorRemoved, error) {
	if rm, ok := data.(broadcast.CollaboratorRemoved); ok {
		return rm, nil
	}
	var rm broadcast.CollaboratorRemoved
	raw, err := json.Marshal(data)
	if err != nil {
		return rm, err
	}
	err = json.Unmarshal(raw, &rm)
	return rm, err
}
