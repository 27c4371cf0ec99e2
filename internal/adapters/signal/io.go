package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dardasha/relay/internal/core"
	"github.com/dardasha/relay/internal/protocol"
)

const writeTimeout = 5 * time.Second

func (ctl *Controller) writePump(ctx context.Context, c *wsSignalConn) {
	pingPeriod := ctl.Cfg.PingPeriod
	if pingPeriod <= 0 {
		pingPeriod = 54 * time.Second
	}
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, sid core.SessionID, c *wsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.Orch.Disconnect(sid)
		c.Close()
	}()

	if ctl.Cfg.ReadLimit > 0 {
		c.conn.SetReadLimit(ctl.Cfg.ReadLimit)
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				}
				return
			}
			ctl.dispatch(ctx, sid, c, data)
		}
	}
}

// dispatch validates the envelope and routes to the per-variant handler.
// Unknown types and malformed payloads get an error reply, never an
// assumption about shape.
func (ctl *Controller) dispatch(ctx context.Context, sid core.SessionID, c *wsSignalConn, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		ctl.sendErr(c, protocol.CodeBadPayload, "invalid json")
		return
	}

	switch env.Type {
	case protocol.TypeJoinRoom:
		ctl.handleJoin(sid, c, data)
	case protocol.TypeLeaveRoom:
		ctl.handleLeave(sid, c)
	case protocol.TypeChatMessage:
		ctl.handleChat(ctx, sid, c, data)
	case protocol.TypeMediaState:
		ctl.handleMediaState(sid, c, data)
	case protocol.TypeOffer:
		ctl.handleOffer(sid, c, data)
	case protocol.TypeAnswer:
		ctl.handleAnswer(sid, c, data)
	case protocol.TypeICECandidate:
		ctl.handleCandidate(sid, c, data)
	case protocol.TypeHangup:
		ctl.handleHangup(sid, c, data)
	case protocol.TypePing:
		ctl.sendJSON(c, protocol.Pong{Type: protocol.TypePong})
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.sendErr(c, protocol.CodeUnknownType, env.Type)
	}
}

func (ctl *Controller) sendJSON(c *wsSignalConn, v any) {
	frame, err := protocol.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(frame)
}

func (ctl *Controller) sendErr(c *wsSignalConn, code, msg string) {
	ctl.sendJSON(c, protocol.Error{Type: protocol.TypeError, Code: code, Message: msg})
}
