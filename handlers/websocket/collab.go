// Package websocket pushes session events to browsers over socket.io. Each
// design session has a room named after its ID.
package websocket

import (
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"sync"

	"mycase-designer/handlers/auth"
	"mycase-designer/session"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

const maxNoticesPerSession = 20

type ackInvoker func(err error, payload map[string]any)

// Hub connects socket.io clients to design sessions and implements
// session.Notifier.
type Hub struct {
	srv *socketio.Server
	reg *session.Registry

	mu      sync.RWMutex
	notices map[string][]session.Notice
	joined  map[socketio.SocketId]string

	serveOnce sync.Once
	handler   http.Handler
}

var localhostOrigin = regexp.MustCompile(`^https?://(localhost|127\.0\.0\.1|\[::1\])(:\d+)?$`)

// NewHub creates the socket.io server. origins are allowed in addition to
// localhost.
func NewHub(reg *session.Registry, origins []string) *Hub {
	h := &Hub{
		reg:     reg,
		notices: make(map[string][]session.Notice),
		joined:  make(map[socketio.SocketId]string),
	}

	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(1000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	allowed := []any{localhostOrigin}
	for _, o := range origins {
		allowed = append(allowed, o)
	}
	opts.SetCors(&types.Cors{
		Origin:      allowed,
		Credentials: true,
	})
	h.srv = socketio.NewServer(nil, opts)
	h.srv.On("connection", h.onConnection)
	return h
}

func (h *Hub) Server() *socketio.Server { return h.srv }

// Handler returns the HTTP handler of the socket.io engine, creating the
// engine on first use.
func (h *Hub) Handler() http.Handler {
	h.serveOnce.Do(func() {
		h.handler = h.srv.ServeHandler(nil)
	})
	return h.handler
}

// Close shuts the engine down. A hub whose handler was never created has
// nothing to close.
func (h *Hub) Close() {
	h.serveOnce.Do(func() {})
	if h.handler != nil {
		h.srv.Close(nil)
	}
}

func (h *Hub) onConnection(clients ...any) {
	socket, ok := clients[0].(*socketio.Socket)
	if !ok {
		return
	}
	me := socket.Id()
	log := logrus.WithField("socket_id", me)
	log.Debug("Socket connected")

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	socket.On("join-session", func(datas ...any) {
		ack, args := extractAck(datas)
		sessionID, token := stringArg(args, 0), stringArg(args, 1)
		if sessionID == "" {
			replyError(socket, ack, "join-session-ack", fmt.Errorf("session id is required"))
			return
		}
		if err := auth.Authorize(token, sessionID); err != nil {
			log.WithError(err).Warn("Rejected join-session")
			replyError(socket, ack, "join-session-ack", err)
			return
		}
		s, err := h.reg.Get(sessionID)
		if err != nil {
			replyError(socket, ack, "join-session-ack", err)
			return
		}

		h.mu.Lock()
		if prev, ok := h.joined[me]; ok && prev != sessionID {
			socket.Leave(socketio.Room(prev))
		}
		h.joined[me] = sessionID
		h.mu.Unlock()
		socket.Join(socketio.Room(sessionID))

		log.WithField("session_id", sessionID).Info("Socket joined session successfully")
		respondWithAck(socket, ack, "join-session-ack", map[string]any{
			"status":  "ok",
			"dark":    s.View().Dark,
			"notices": h.Notices(sessionID),
		}, nil)
	})

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	socket.On("theme-change", func(datas ...any) {
		ack, args := extractAck(datas)
		s, err := h.sessionOf(me)
		if err != nil {
			replyError(socket, ack, "theme-change-ack", err)
			return
		}
		dark, ok := parseDark(args)
		if !ok {
			replyError(socket, ack, "theme-change-ack", fmt.Errorf("dark flag is required"))
			return
		}
		s.SetDark(dark)
		respondWithAck(socket, ack, "theme-change-ack", map[string]any{"status": "ok", "dark": dark}, nil)
	})

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	socket.On("viewport", func(datas ...any) {
		ack, args := extractAck(datas)
		s, err := h.sessionOf(me)
		if err != nil {
			replyError(socket, ack, "viewport-ack", err)
			return
		}
		width, ok := parseWidth(args)
		if !ok {
			replyError(socket, ack, "viewport-ack", fmt.Errorf("containerWidth must be positive"))
			return
		}
		if ack == nil {
			// Resize observers fire in bursts; only the latest width matters.
			s.QueueResize(width)
			return
		}
		res := s.Resize(width)
		respondWithAck(socket, ack, "viewport-ack", map[string]any{
			"status":  "ok",
			"width":   res.Width,
			"height":  res.Height,
			"applied": res.Applied,
		}, nil)
	})

	socket.On("disconnecting", func(...any) {
		h.mu.Lock()
		delete(h.joined, me)
		h.mu.Unlock()
		log.Debug("Socket disconnecting")
	})

	socket.On("disconnect", func(...any) {
		socket.RemoveAllListeners("")
		socket.Disconnect(true)
	})
}

func (h *Hub) sessionOf(id socketio.SocketId) (*session.Session, error) {
	h.mu.RLock()
	sessionID, ok := h.joined[id]
	h.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("join a session first")
	}
	return h.reg.Get(sessionID)
}

// Notify records the notice and sends it to the session's room.
func (h *Hub) Notify(sessionID string, n session.Notice) {
	h.mu.Lock()
	list := append(h.notices[sessionID], n)
	if len(list) > maxNoticesPerSession {
		list = list[len(list)-maxNoticesPerSession:]
	}
	h.notices[sessionID] = list
	h.mu.Unlock()

	if err := h.srv.To(socketio.Room(sessionID)).Emit("notice", n); err != nil {
		logrus.WithFields(logrus.Fields{"session_id": sessionID, "error": err}).Warn("Failed to emit notice")
	}
}

// ThemeChanged tells every client of the session about the new theme.
func (h *Hub) ThemeChanged(sessionID string, dark bool) {
	if err := h.srv.To(socketio.Room(sessionID)).Emit("theme-changed", map[string]any{"dark": dark}); err != nil {
		logrus.WithFields(logrus.Fields{"session_id": sessionID, "error": err}).Warn("Failed to emit theme change")
	}
}

// Notices returns the most recent notices of a session, oldest first.
func (h *Hub) Notices(sessionID string) []session.Notice {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]session.Notice{}, h.notices[sessionID]...)
}

// Forget drops the notice history of a session.
func (h *Hub) Forget(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.notices, sessionID)
}

func stringArg(args []any, i int) string {
	if i >= len(args) {
		return ""
	}
	s, _ := args[i].(string)
	return s
}

// parseDark accepts either a bare boolean or {"dark": bool}.
func parseDark(args []any) (bool, bool) {
	if len(args) == 0 {
		return false, false
	}
	switch v := args[0].(type) {
	case bool:
		return v, true
	case map[string]any:
		dark, ok := v["dark"].(bool)
		return dark, ok
	}
	return false, false
}

// parseWidth accepts either a number or {"containerWidth": number}.
func parseWidth(args []any) (int, bool) {
	if len(args) == 0 {
		return 0, false
	}
	v := args[0]
	if m, ok := v.(map[string]any); ok {
		v = m["containerWidth"]
	}
	var w int
	switch n := v.(type) {
	case float64:
		w = int(n)
	case int:
		w = n
	case int64:
		w = int(n)
	default:
		return 0, false
	}
	return w, w > 0
}

func replyError(socket *socketio.Socket, ack ackInvoker, event string, err error) {
	respondWithAck(socket, ack, event, map[string]any{
		"status": "error",
		"error":  err.Error(),
	}, err)
}

func extractAck(datas []any) (ack ackInvoker, args []any) {
	if len(datas) == 0 {
		return nil, datas
	}

	ack = wrapAck(datas[len(datas)-1])
	if ack == nil {
		return nil, datas
	}
	return ack, datas[:len(datas)-1]
}

func wrapAck(candidate any) ackInvoker {
	if candidate == nil {
		return nil
	}

	value := reflect.ValueOf(candidate)
	if !value.IsValid() || value.Kind() != reflect.Func {
		return nil
	}

	typ := value.Type()
	return func(err error, payload map[string]any) {
		value.Call(buildAckArgs(typ, err, payload))
	}
}

func buildAckArgs(typ reflect.Type, err error, payload map[string]any) []reflect.Value {
	numIn := typ.NumIn()
	args := make([]reflect.Value, numIn)

	for i := 0; i < numIn; i++ {
		var argValue any
		switch {
		case numIn == 1:
			if err != nil {
				argValue = err
			} else {
				argValue = payload
			}
		case i == 0:
			argValue = err
		case i == 1:
			argValue = payload
		}
		args[i] = coerceValue(argValue, typ.In(i))
	}
	return args
}

func coerceValue(value any, targetType reflect.Type) reflect.Value {
	if value == nil {
		return reflect.Zero(targetType)
	}

	rv := reflect.ValueOf(value)
	switch {
	case rv.Type().AssignableTo(targetType):
		return rv
	case rv.Type().ConvertibleTo(targetType):
		return rv.Convert(targetType)
	case targetType.Kind() == reflect.Interface && (rv.Type().Implements(targetType) || targetType.NumMethod() == 0):
		return rv
	case targetType.Kind() == reflect.String:
		return reflect.ValueOf(fmt.Sprint(value)).Convert(targetType)
	}
	return reflect.Zero(targetType)
}

func respondWithAck(socket *socketio.Socket, ack ackInvoker, event string, payload map[string]any, ackErr error) {
	if ack != nil {
		ack(ackErr, payload)
	}
	if event != "" && payload != nil {
		_ = socket.Emit(event, payload)
	}
}
