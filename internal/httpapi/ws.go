package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/sagewright/colossi/internal/game/session"
)

// wsWriteTimeout bounds a single outbound frame write.
const wsWriteTimeout = 10 * time.Second

// play upgrades the connection and runs the live action loop: the client
// sends {"action": ...} frames and receives the same response body the POST
// action endpoint produces. The loop shares the manager's per-session
// serialization, so a websocket and a concurrent POST never interleave
// mid-pipeline.
func (s *Server) play(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.manager.Get(id); err != nil {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("websocket accept failed", "session_id", id, "err", err)
		return
	}
	defer conn.CloseNow()

	s.log.Info("play channel opened", "session_id", id)
	ctx := r.Context()

	for {
		var req actionRequest
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			// Normal client close or dead connection; nothing to answer.
			return
		}

		start := time.Now()
		out, err := s.manager.ProcessAction(ctx, id, req.Action)
		switch {
		case errors.Is(err, session.ErrUnknownSession):
			conn.Close(websocket.StatusPolicyViolation, "unknown session")
			return
		case errors.Is(err, session.ErrInvalidAction):
			if werr := s.writeFrame(ctx, conn, errorResponse{Error: invalidActionMessage}); werr != nil {
				return
			}
			continue
		case err != nil:
			if werr := s.writeFrame(ctx, conn, errorResponse{Error: "action failed"}); werr != nil {
				return
			}
			continue
		}

		s.recordOutcome(r, id, out, time.Since(start))
		if werr := s.writeFrame(ctx, conn, toActionResponse(out)); werr != nil {
			return
		}

		// Close only on the action that completed the final task. A session
		// whose puzzle was already solved keeps the connection open so the
		// player can continue exploring.
		if out.TaskCompleted && out.PuzzleSolved {
			conn.Close(websocket.StatusNormalClosure, "puzzle solved")
			return
		}
	}
}

// writeFrame sends one JSON frame with a write deadline.
func (s *Server) writeFrame(ctx context.Context, conn *websocket.Conn, v any) error {
	wctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(wctx, conn, v)
}
