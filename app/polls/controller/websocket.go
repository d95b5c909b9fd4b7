package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rankroom/rankroom/app/polls/types"
	"github.com/rankroom/rankroom/pkg/auth"
	"github.com/rankroom/rankroom/pkg/polls"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: In production, restrict to specific origins
		return true
	},
}

// session is the state bound to one live poll connection: the verified
// identity plus the outgoing message channel. It never changes after the
// handshake.
type session struct {
	claims *auth.Claims
	conn   *websocket.Conn
	send   chan types.ServerMessage
	cancel context.CancelFunc
	once   sync.Once
}

// Close implements rooms.Member. Used by the janitor when the session's poll
// document has expired out of the store.
func (s *session) Close(reason string) {
	s.once.Do(func() {
		deadline := time.Now().Add(5 * time.Second)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason), deadline)
		s.cancel()
		_ = s.conn.Close()
	})
}

// actionHandler processes one inbound action for a bound session. Handlers
// are composed into a pipeline of guards before dispatch; any returned error
// is sent back to the acting connection only.
type actionHandler func(ctx context.Context, sess *session, data json.RawMessage) error

// actionPipeline wires each inbound event to its handler, with the admin
// guard applied to privileged actions.
func (c *Controller) actionPipeline() map[string]actionHandler {
	return map[string]actionHandler{
		types.ActionNominate:          c.handleNominate,
		types.ActionSubmitRankings:    c.handleSubmitRankings,
		types.ActionRemoveParticipant: c.requireAdmin(c.handleRemoveParticipant),
		types.ActionRemoveNomination:  c.requireAdmin(c.handleRemoveNomination),
		types.ActionStartVote:         c.requireAdmin(c.handleStartVote),
	}
}

// HandlePollSocket is the poll session entry point. The handshake must carry
// a session token in the "token" query parameter, falling back to a "token"
// header for non-browser clients; a missing or invalid token fails the
// connection before the upgrade.
//
// After the upgrade the connection is joined to its poll's broadcast group,
// the participant entry is (re)applied, and every accepted mutation is
// fanned out to the whole group as a poll_updated event. Failed actions
// produce an exception event on the acting connection only.
func (c *Controller) HandlePollSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.Header.Get("token")
	}
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := c.App.Issuer.Verify(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.App.Logger.Error("Failed to upgrade poll socket", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess := &session{
		claims: claims,
		conn:   conn,
		send:   make(chan types.ServerMessage, 256),
		cancel: cancel,
	}

	logger := c.App.Logger.With(
		zap.String("pollID", claims.PollID),
		zap.String("userID", claims.UserID))
	logger.Info("poll socket connected", zap.String("remote_addr", r.RemoteAddr))

	c.App.Rooms.Add(claims.PollID, sess)

	updates := c.App.Broadcaster.Subscribe(ctx, claims.PollID)

	// The forwarder and pinger unwind on cancel; the writer unwinds when the
	// send channel is closed after they have stopped producing into it.
	var producers, writers sync.WaitGroup

	producers.Add(1)
	go func() {
		defer producers.Done()
		defer c.recoverPanic(logger, "broadcast forwarder", cancel)
		c.forwardUpdates(ctx, sess, updates)
	}()

	producers.Add(1)
	go func() {
		defer producers.Done()
		defer c.recoverPanic(logger, "ping ticker", cancel)
		c.sendPings(ctx, conn)
	}()

	writers.Add(1)
	go func() {
		defer writers.Done()
		defer c.recoverPanic(logger, "message writer", cancel)
		c.writeMessages(conn, sess.send)
	}()

	// Join: (re)apply the participant entry and sync the whole group. A
	// failed join (for example, an expired poll) still surfaces the reason
	// to this client before the connection is torn down.
	joinCtx, joinCancel := context.WithTimeout(ctx, 10*time.Second)
	poll, joinErr := c.App.Service.Rejoin(joinCtx, claims.PollID, claims.UserID, claims.Name)
	joinCancel()

	if joinErr != nil {
		logger.Warn("join failed", zap.Error(joinErr))
		c.sendException(sess, joinErr)
		time.Sleep(100 * time.Millisecond)
	} else {
		c.App.Broadcaster.Publish(ctx, poll)
		c.readMessages(ctx, sess, logger)
	}

	// Disconnect: leave the group, then run the removal mutation on a fresh
	// context. A connection closing never cancels its own in-flight store
	// mutations, and the removal itself must outlive the request context.
	c.App.Rooms.Remove(claims.PollID, sess)
	cancel()
	producers.Wait()
	close(sess.send)
	writers.Wait()
	_ = conn.Close()

	removeCtx, removeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer removeCancel()

	updated, err := c.App.Service.RemoveParticipant(removeCtx, claims.PollID, claims.UserID)
	if err != nil {
		logger.Error("failed to remove participant on disconnect", zap.Error(err))
	} else if updated != nil {
		c.App.Broadcaster.Publish(removeCtx, updated)
	}

	logger.Info("poll socket disconnected")
}

func (c *Controller) recoverPanic(logger *zap.Logger, where string, cancel context.CancelFunc) {
	if rec := recover(); rec != nil {
		logger.Error("Panic in poll socket goroutine",
			zap.String("goroutine", where),
			zap.Any("panic", rec),
			zap.String("stack", string(debug.Stack())))
		cancel()
	}
}

// forwardUpdates turns broadcast group deliveries into poll_updated events.
func (c *Controller) forwardUpdates(ctx context.Context, sess *session, updates <-chan *polls.Poll) {
	for {
		select {
		case <-ctx.Done():
			return
		case poll, ok := <-updates:
			if !ok {
				return
			}
			select {
			case sess.send <- types.ServerMessage{Event: types.EventPollUpdated, Payload: poll}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// sendPings sends periodic WebSocket ping frames to keep the connection
// alive. The client's pong resets the read deadline.
func (c *Controller) sendPings(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}

// writeMessages writes messages from the send channel to the connection.
func (c *Controller) writeMessages(conn *websocket.Conn, send <-chan types.ServerMessage) {
	for msg := range send {
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// readMessages processes inbound actions one at a time in arrival order for
// this connection until it closes. Messages from other connections of the
// same poll interleave freely; per-field atomicity in the store keeps that
// safe.
func (c *Controller) readMessages(ctx context.Context, sess *session, logger *zap.Logger) {
	conn := sess.conn

	if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		var msg types.ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Error("poll socket read error", zap.Error(err))
			}
			return
		}

		if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
			return
		}

		c.dispatch(ctx, sess, msg)
	}
}

// dispatch runs the pipeline for one inbound message. Failures of any kind
// are scoped to this connection; the shared document is left untouched and
// nothing is broadcast.
func (c *Controller) dispatch(ctx context.Context, sess *session, msg types.ClientMessage) {
	handler, ok := c.actions[msg.Event]
	if !ok {
		c.sendException(sess, polls.InvalidInput("unknown event: "+msg.Event))
		return
	}

	actionCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := handler(actionCtx, sess, msg.Data); err != nil {
		c.sendException(sess, err)
	}
}

// requireAdmin gates an action on the bound identity matching the poll's
// admin. The current document is re-fetched on every check: the admin never
// changes after creation, but a cached flag could outlive a momentarily
// unavailable or stale document.
func (c *Controller) requireAdmin(next actionHandler) actionHandler {
	return func(ctx context.Context, sess *session, data json.RawMessage) error {
		poll, err := c.App.Service.Get(ctx, sess.claims.PollID)
		if err != nil {
			return err
		}
		if sess.claims.UserID != poll.AdminID {
			return polls.Unauthorized("admin privileges required")
		}
		return next(ctx, sess, data)
	}
}

func (c *Controller) handleNominate(ctx context.Context, sess *session, data json.RawMessage) error {
	var in types.NominateData
	if err := decodeAction(data, &in); err != nil {
		return err
	}

	poll, err := c.App.Service.AddNomination(ctx, sess.claims.PollID, sess.claims.UserID, in.Text)
	if err != nil {
		return err
	}
	c.App.Broadcaster.Publish(ctx, poll)
	return nil
}

func (c *Controller) handleSubmitRankings(ctx context.Context, sess *session, data json.RawMessage) error {
	var in types.SubmitRankingsData
	if err := decodeAction(data, &in); err != nil {
		return err
	}

	poll, err := c.App.Service.SubmitRankings(ctx, sess.claims.PollID, sess.claims.UserID, in.Rankings)
	if err != nil {
		return err
	}
	c.App.Broadcaster.Publish(ctx, poll)
	return nil
}

func (c *Controller) handleRemoveParticipant(ctx context.Context, sess *session, data json.RawMessage) error {
	var in types.RemoveParticipantData
	if err := decodeAction(data, &in); err != nil {
		return err
	}
	if in.ID == "" {
		return polls.InvalidInput("participant id is required")
	}

	poll, err := c.App.Service.RemoveParticipant(ctx, sess.claims.PollID, in.ID)
	if err != nil {
		return err
	}
	if poll != nil {
		c.App.Broadcaster.Publish(ctx, poll)
	}
	return nil
}

func (c *Controller) handleRemoveNomination(ctx context.Context, sess *session, data json.RawMessage) error {
	var in types.RemoveNominationData
	if err := decodeAction(data, &in); err != nil {
		return err
	}
	if in.ID == "" {
		return polls.InvalidInput("nomination id is required")
	}

	poll, err := c.App.Service.RemoveNomination(ctx, sess.claims.PollID, in.ID)
	if err != nil {
		return err
	}
	c.App.Broadcaster.Publish(ctx, poll)
	return nil
}

func (c *Controller) handleStartVote(ctx context.Context, sess *session, _ json.RawMessage) error {
	poll, err := c.App.Service.Start(ctx, sess.claims.PollID)
	if err != nil {
		return err
	}
	c.App.Broadcaster.Publish(ctx, poll)
	return nil
}

func decodeAction(data json.RawMessage, out any) error {
	if len(data) == 0 {
		return polls.InvalidInput("missing action payload")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return polls.InvalidInput("malformed action payload")
	}
	return nil
}

// sendException reports a failed action to the acting connection only. A
// full send buffer drops the message rather than stalling the reader.
func (c *Controller) sendException(sess *session, err error) {
	payload := types.ExceptionPayload{
		Type:    string(polls.KindOf(err)),
		Message: polls.MessageOf(err),
	}
	select {
	case sess.send <- types.ServerMessage{Event: types.EventException, Payload: payload}:
	default:
	}
}
