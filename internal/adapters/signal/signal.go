// Package signal is the websocket adapter: it upgrades connections, runs
// the read/write pumps, validates inbound event payloads, and maps core
// errors to outbound events. The ban check runs here, before the session
// ever reaches the presence registry.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dardasha/relay/internal/app/orch"
	"github.com/dardasha/relay/internal/config"
	"github.com/dardasha/relay/internal/core"
	"github.com/dardasha/relay/internal/domain"
	"github.com/dardasha/relay/internal/protocol"
	"github.com/dardasha/relay/internal/storage"
)

var ErrBackpressure = errors.New("backpressure")

type Controller struct {
	Orch    *orch.Orchestrator
	Store   storage.Store
	Cfg     *config.Config
	limiter *RateLimiter
}

func NewController(o *orch.Orchestrator, store storage.Store, cfg *config.Config) *Controller {
	return &Controller{
		Orch:    o,
		Store:   store,
		Cfg:     cfg,
		limiter: NewRateLimiter(cfg.MessageRate.Burst, cfg.MessageRate.Interval),
	}
}

type wsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// guestSeq assigns ephemeral negative ids to anonymous identities so they
// can never collide with durable account ids.
var guestSeq atomic.Int64

// newSessionID derives a connection-unique session id. The client token is
// kept as a prefix for log correlation only; every websocket, including a
// second tab from the same browser, gets its own id.
func newSessionID(token string) core.SessionID {
	if token == "" {
		token = uuid.NewString()
	}
	return core.SessionID(token + "." + uuid.NewString()[:8])
}

// HandleSignal admits one websocket connection: upgrade, identity
// resolution, ban check, registry admission, pumps.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := newSessionID(c.GetString("client_token"))
	fingerprint := c.Query("fingerprint")
	addr := c.ClientIP()

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("addr", addr).Msg("new WS connection")

	ident := ctl.resolveIdentity(ctx, c)
	ident.Fingerprint = fingerprint
	ident.Addr = addr

	// Ban check comes first: a banned identity is told why and closed
	// before it can appear in the roster or any room.
	if err := ctl.Orch.Gate.CheckBan(ctx, fingerprint, addr); err != nil {
		var banned *domain.BannedError
		if errors.As(err, &banned) {
			writeDirect(ws, protocol.Banned{Type: protocol.TypeBanned, Reason: banned.Reason, ExpiresAt: banned.ExpiresAt})
		} else {
			writeDirect(ws, protocol.Error{Type: protocol.TypeError, Code: protocol.CodeStorageUnavailable, Message: "try again later"})
		}
		_ = ws.Close()
		return
	}

	conn := &wsSignalConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	sess := core.NewMemberSession(sid, ident, conn)
	connCtx, cancel := context.WithCancel(ctx)
	ctl.Orch.Connect(sess, cancel)

	welcome, err := protocol.Encode(protocol.Welcome{
		Type:       protocol.TypeWelcome,
		User:       ident,
		ICEServers: ctl.iceServers(),
	})
	if err == nil {
		_ = conn.TrySend(welcome)
	}

	go ctl.writePump(connCtx, conn)
	go ctl.readPump(connCtx, sid, conn)
}

// resolveIdentity builds the connection identity from the authenticated
// session when present, otherwise an ephemeral guest.
func (ctl *Controller) resolveIdentity(ctx context.Context, c *gin.Context) *domain.Identity {
	if uid, ok := sessionUserID(c); ok {
		ident, err := ctl.Store.FindUserByID(ctx, uid)
		if err == nil {
			return ident
		}
		if !errors.Is(err, storage.ErrNotFound) {
			log.Error().Err(err).Str("module", "signal").Int64("uid", int64(uid)).Msg("resolve identity")
		}
	}
	n := guestSeq.Add(1)
	return &domain.Identity{
		ID:   domain.UserID(-n),
		Name: "guest-" + uuid.NewString()[:8],
		Role: domain.RoleGuest,
	}
}

func sessionUserID(c *gin.Context) (domain.UserID, bool) {
	v := sessions.Default(c).Get("uid")
	switch uid := v.(type) {
	case int64:
		return domain.UserID(uid), true
	case int:
		return domain.UserID(uid), true
	case float64:
		return domain.UserID(int64(uid)), true
	default:
		return 0, false
	}
}

func (ctl *Controller) iceServers() []protocol.ICEServer {
	if len(ctl.Cfg.ICEServers) == 0 {
		return nil
	}
	return []protocol.ICEServer{{URLs: ctl.Cfg.ICEServers}}
}

// writeDirect is for pre-admission replies, before the write pump exists.
func writeDirect(ws *websocket.Conn, v any) {
	frame, err := protocol.Encode(v)
	if err != nil {
		return
	}
	_ = ws.WriteMessage(websocket.TextMessage, frame)
}
