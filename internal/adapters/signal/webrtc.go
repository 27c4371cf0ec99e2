package signal

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dardasha/relay/internal/app"
	"github.com/dardasha/relay/internal/app/orch"
	"github.com/dardasha/relay/internal/core"
	"github.com/dardasha/relay/internal/domain"
	"github.com/dardasha/relay/internal/protocol"
)

func (ctl *Controller) handleOffer(sid core.SessionID, c *wsSignalConn, data []byte) {
	var p protocol.Signal
	if err := json.Unmarshal(data, &p); err != nil || p.SDP == "" {
		ctl.sendErr(c, protocol.CodeBadPayload, "offer needs peer and sdp")
		return
	}
	if err := ctl.Orch.RelayOffer(sid, p.Peer, p.SDP); err != nil {
		ctl.replySignalError(sid, c, err)
	}
}

func (ctl *Controller) handleAnswer(sid core.SessionID, c *wsSignalConn, data []byte) {
	var p protocol.Signal
	if err := json.Unmarshal(data, &p); err != nil || p.SDP == "" {
		ctl.sendErr(c, protocol.CodeBadPayload, "answer needs peer and sdp")
		return
	}
	if err := ctl.Orch.RelayAnswer(sid, p.Peer, p.SDP); err != nil {
		ctl.replySignalError(sid, c, err)
	}
}

func (ctl *Controller) handleCandidate(sid core.SessionID, c *wsSignalConn, data []byte) {
	var p protocol.ICECandidate
	if err := json.Unmarshal(data, &p); err != nil || p.Candidate == "" {
		ctl.sendErr(c, protocol.CodeBadPayload, "bad candidate payload")
		return
	}
	if err := ctl.Orch.RelayCandidate(sid, p.Peer, p); err != nil {
		ctl.replySignalError(sid, c, err)
	}
}

func (ctl *Controller) handleHangup(sid core.SessionID, c *wsSignalConn, data []byte) {
	var p protocol.Hangup
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendErr(c, protocol.CodeBadPayload, "bad hangup payload")
		return
	}
	if err := ctl.Orch.Hangup(sid, p.Peer); err != nil {
		ctl.replySignalError(sid, c, err)
	}
}

// replySignalError keeps signaling failures request-scoped: the later
// request loses, the existing session and the connection stay as they
// were.
func (ctl *Controller) replySignalError(sid core.SessionID, c *wsSignalConn, err error) {
	var conflict *domain.SessionConflictError
	switch {
	case errors.As(err, &conflict):
		ctl.sendErr(c, protocol.CodeSessionConflict, conflict.Error())
	case errors.Is(err, app.ErrInvalidTransition):
		ctl.sendErr(c, protocol.CodeBadSignalState, err.Error())
	case errors.Is(err, orch.ErrNoSession):
		ctl.sendErr(c, protocol.CodeNoSuchPeer, "peer is not connected")
	default:
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("signaling relay")
		ctl.sendErr(c, protocol.CodeBadPayload, "signal rejected")
	}
}
