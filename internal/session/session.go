// Package session implements the server-side per-connection subscription
// state: the id<->DObject handle table, a FIFO single-outstanding-write
// send queue, and the meta-queue driven Subscribe/Unsubscribe/Authenticate
// flow (spec.md §4.2 "Framing by id", §4.3 "Handle table").
package session

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"odin-dobj/internal/auth"
	"odin-dobj/internal/dobject"
	"odin-dobj/internal/metrics"
	"odin-dobj/internal/resolver"
	"odin-dobj/internal/wire"
)

// RootQueueFieldID is the well-known meta-queue field id on the root
// object (spec.md §4.2 "Meta queue").
const RootQueueFieldID = dobject.MetaQueueFieldID

// Session is one connection's worth of subscription state: every object
// it has subscribed to, keyed by the session-local id the client chose,
// plus the reverse path lookup used to dedupe repeat Subscribe requests
// for the same path.
type Session struct {
	logger  *zap.Logger
	metrics *metrics.Registry
	root    dobject.Resolvable
	verify  auth.Verifier

	mu    sync.Mutex
	byID  map[uint32]dobject.Resolvable
	byKey map[string]uint32 // Path.Key() -> id, for dedup

	send      chan []byte
	closeOnce sync.Once
	closed    chan struct{}

	userID string
}

// New constructs a Session rooted at root (always id 0, spec.md §4.3
// "root is always 0"). sendQueueSize bounds the FIFO outbound queue; a
// full queue drops the message and counts it, matching spec.md §7's
// slow-consumer guidance for a protocol with no built-in backpressure.
func New(logger *zap.Logger, metricsRegistry *metrics.Registry, root dobject.Resolvable, verify auth.Verifier, sendQueueSize int) *Session {
	s := &Session{
		logger:  logger,
		metrics: metricsRegistry,
		root:    root,
		verify:  verify,
		byID:    make(map[uint32]dobject.Resolvable),
		byKey:   make(map[string]uint32),
		send:    make(chan []byte, sendQueueSize),
		closed:  make(chan struct{}),
	}
	s.byID[0] = root
	s.byKey[(dobject.Path{}).Key()] = 0
	root.Obj().OnMessage(func(msg []byte) { s.enqueue(0, msg) })
	if metricsRegistry != nil {
		metricsRegistry.Sessions.ActiveSessions.Inc()
	}
	return s
}

// Outbound returns the channel a transport loop drains to write frames to
// the wire. Closed when the session closes.
func (s *Session) Outbound() <-chan []byte { return s.send }

func (s *Session) enqueue(id uint32, msg []byte) {
	framed := wire.NewWriter(4 + len(msg))
	framed.WriteVarUint(uint64(id))
	framed.WriteRaw(msg)
	select {
	case s.send <- framed.Bytes():
	default:
		if s.metrics != nil {
			s.metrics.Session.SendQueueDropped.Inc()
		}
		s.logger.Warn("session send queue full, dropping message", zap.Uint32("object_id", id))
	}
}

// HandleInbound dispatches one id-prefixed inbound frame (spec.md §4.2
// "Framing by id"). Frames for the root's meta-queue field id are routed
// through the Authenticate/Subscribe/Unsubscribe handlers; everything
// else is an upstream Queue.Post applied directly to the addressed object.
func (s *Session) HandleInbound(ctx context.Context, frame []byte) error {
	r := wire.NewReader(frame)
	id64, err := r.ReadVarUint()
	if err != nil {
		return fmt.Errorf("session: read object id: %w", err)
	}
	id := uint32(id64)
	rest := frame[r.Pos():]

	s.mu.Lock()
	target, ok := s.byID[id]
	s.mu.Unlock()
	if !ok {
		// spec.md §7 "Unknown message ids": log and drop, don't tear down
		// the connection, since ids can race with a just-unsubscribed
		// object.
		s.logger.Debug("inbound frame for unknown object id", zap.Uint32("object_id", id))
		return nil
	}

	if id == 0 {
		return s.handleMetaPost(ctx, target.Obj(), rest)
	}
	return target.Obj().ApplyQueuePost(rest)
}

// handleMetaPost decodes an upstream post addressed to the root object
// and dispatches it to the meta queue's OnPost listener (registered once
// via OnAuthenticate), which decides whether it is an Authenticate,
// Subscribe, or Unsubscribe request.
func (s *Session) handleMetaPost(ctx context.Context, root *dobject.Object, payload []byte) error {
	_ = ctx
	return root.ApplyQueuePost(payload)
}

// OnAuthenticate should be called once, during session setup, to register
// the Authenticate handler against the root's meta queue.
func (s *Session) OnAuthenticate(mq *dobject.Queue[dobject.MetaUp, dobject.MetaDown]) func() {
	return mq.OnPost(func(up dobject.MetaUp) {
		switch {
		case up.Authenticate != nil:
			s.authenticate(up.Authenticate)
		case up.Subscribe != nil:
			s.subscribe(context.Background(), up.Subscribe, mq)
		case up.Unsubscribe != nil:
			s.unsubscribe(up.Unsubscribe)
		}
	})
}

func (s *Session) authenticate(req *dobject.AuthenticateRequest) {
	if s.verify == nil {
		s.userID = req.UserID
		return
	}
	claims, err := s.verify.Verify(req.Token)
	if err != nil {
		if s.metrics != nil {
			s.metrics.Session.AuthenticateFailures.Inc()
		}
		s.sendMetaDown(dobject.MetaDown{AuthenticateFailed: &dobject.AuthenticateFailedMsg{Cause: "invalid token"}})
		return
	}
	s.userID = claims.UserID
}

func (s *Session) subscribe(ctx context.Context, req *dobject.SubscribeRequest, mq *dobject.Queue[dobject.MetaUp, dobject.MetaDown]) {
	s.mu.Lock()
	if _, exists := s.byID[req.ID]; exists {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	key := req.Path.Key()
	s.mu.Lock()
	if existingID, exists := s.byKey[key]; exists {
		existing := s.byID[existingID]
		s.mu.Unlock()
		s.attach(req.ID, existing)
		return
	}
	s.mu.Unlock()

	resolved, cause, err := resolver.ResolveForSubscribe(ctx, s.root, req.Path, s.userID)
	if err != nil {
		if s.metrics != nil {
			s.metrics.Session.SubscribeFailures.Inc()
		}
		s.logger.Debug("subscribe failed", zap.Error(err), zap.Stringer("path", req.Path))
		s.sendMetaDown(dobject.MetaDown{SubscribeFailed: &dobject.SubscribeFailedMsg{ID: req.ID, Cause: cause.Cause}})
		return
	}

	s.mu.Lock()
	s.byID[req.ID] = resolved
	s.byKey[key] = req.ID
	s.mu.Unlock()
	s.attach(req.ID, resolved)
}

func (s *Session) attach(id uint32, obj dobject.Resolvable) {
	obj.Obj().SetID(id)
	obj.Obj().OnMessage(func(msg []byte) { s.enqueue(id, msg) })
	s.enqueue(id, obj.Obj().EncodeSync())
}

func (s *Session) unsubscribe(req *dobject.UnsubscribeRequest) {
	s.mu.Lock()
	obj, ok := s.byID[req.ID]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.byID, req.ID)
	delete(s.byKey, obj.Obj().Path().Key())
	s.mu.Unlock()
}

// sendMetaDown unicasts a session-specific rejection (AuthenticateFailed
// or SubscribeFailed) to this connection only, via Queue.Send rather than
// Queue.Broadcast: the root's meta queue is shared by every session
// subscribed to the root, so broadcasting would leak one session's
// private rejection to every other connected client (spec.md §4.2
// "Queue.Send(down, session)" is exactly this unicast case).
func (s *Session) sendMetaDown(down dobject.MetaDown) {
	s.mu.Lock()
	root := s.byID[0]
	s.mu.Unlock()
	f, ok := root.Obj().Field(RootQueueFieldID)
	if !ok {
		return
	}
	mq, ok := f.(*dobject.Queue[dobject.MetaUp, dobject.MetaDown])
	if !ok {
		return
	}
	s.enqueue(0, mq.Send(down))
}

// Close notifies every live object of the disconnect and closes the
// outbound channel (spec.md §4.3 "On close: Notify every live object via
// OnDisconnect()").
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		objs := make([]dobject.Resolvable, 0, len(s.byID))
		for _, o := range s.byID {
			objs = append(objs, o)
		}
		s.mu.Unlock()
		for _, o := range objs {
			o.Obj().OnDisconnect()
		}
		close(s.send)
		close(s.closed)
		if s.metrics != nil {
			s.metrics.Sessions.ActiveSessions.Dec()
		}
	})
}

// Done returns a channel closed once the session has been closed.
func (s *Session) Done() <-chan struct{} { return s.closed }
