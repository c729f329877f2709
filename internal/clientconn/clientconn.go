// Package clientconn is the client-side connection state machine: handle
// table, path resolution/dedup, reconnect backoff, auth token refresh, and
// inbound dispatch (spec.md §4.3 "Subscription client", §4.4 "Connection
// state machine"). Its read/write loop is grounded on the teacher's
// single-goroutine handleConnection idiom (go-server/pkg/websocket/client.go),
// adapted from accept-role to dial-role and from JSON framing to the
// id-prefixed binary frames this protocol uses.
package clientconn

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"odin-dobj/internal/clienttransport"
	"odin-dobj/internal/dispose"
	"odin-dobj/internal/dobject"
	"odin-dobj/internal/idpool"
	"odin-dobj/internal/metrics"
	"odin-dobj/internal/wire"
)

// State is the connection state machine's state (spec.md §4.3 "Connection
// state machine": "Idle -> Connecting -> Open -> Closed -> (Reconnecting
// -> Connecting -> ...)").
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
	StateReconnecting
)

// TokenSource supplies the bearer token used for Authenticate, and lets
// the connection observe token refreshes (spec.md §4.3 "Auth token
// refresh").
type TokenSource interface {
	Token() (userID, token string, err error)
}

type handle struct {
	obj     dobject.Resolvable
	id      uint32
	path    dobject.Path
	disp    *dispose.Handle
}

// Conn is the client-side subscription connection: one logical connection
// to the server, owning the id<->object handle table and driving
// reconnects.
type Conn struct {
	logger  *zap.Logger
	metrics *metrics.Registry
	tokens  TokenSource
	url     string
	timeout time.Duration

	root *dobject.Object

	mu        sync.Mutex
	state     State
	ws        *clienttransport.Conn
	ids       *idpool.Pool
	byID      map[uint32]*handle
	byPath    map[string]*handle
	attempts  int
	wantsOpen bool

	backoffCfg backoffConfig
}

type backoffConfig struct {
	initial time.Duration
	max     time.Duration
}

// New constructs a Conn for the root object, which is always handle id 0
// (spec.md §4.3 "root is always 0").
func New(logger *zap.Logger, metricsRegistry *metrics.Registry, tokens TokenSource, url string, initialBackoff, maxBackoff, handshakeTimeout time.Duration, root *dobject.Object) *Conn {
	c := &Conn{
		logger:     logger,
		metrics:    metricsRegistry,
		tokens:     tokens,
		url:        url,
		timeout:    handshakeTimeout,
		root:       root,
		ids:        idpool.New(1),
		byID:       make(map[uint32]*handle),
		byPath:     make(map[string]*handle),
		backoffCfg: backoffConfig{initial: initialBackoff, max: maxBackoff},
	}
	c.byID[0] = &handle{obj: rootResolvable{root}, id: 0, path: nil}
	c.byPath[(dobject.Path{}).Key()] = c.byID[0]

	if f, ok := root.Field(dobject.MetaQueueFieldID); ok {
		if mq, ok := f.(*dobject.Queue[dobject.MetaUp, dobject.MetaDown]); ok {
			mq.SetPostSink(func(body []byte) { c.send(0, body) })
		}
	}
	return c
}

type rootResolvable struct{ obj *dobject.Object }

func (r rootResolvable) Obj() *dobject.Object { return r.obj }

// Resolve returns the live object at path, deduplicating by path and
// installing a dispose hook that unsubscribes and recycles the id when
// the last caller reference drops (spec.md §4.3 "Resolve(path, backing,
// ...)").
func (c *Conn) Resolve(path dobject.Path, newObj func(id uint32, path dobject.Path) dobject.Resolvable) (dobject.Resolvable, *dispose.Handle) {
	key := path.Key()

	c.mu.Lock()
	if h, ok := c.byPath[key]; ok {
		c.mu.Unlock()
		h.disp.Retain()
		return h.obj, h.disp
	}
	id := c.ids.Acquire()
	obj := newObj(id, path)
	h := &handle{obj: obj, id: id, path: path}
	h.disp = dispose.New(func() { c.release(h) })
	c.byID[id] = h
	c.byPath[key] = h
	open := c.state == StateOpen
	c.mu.Unlock()

	if open {
		c.postSubscribe(id, path)
	}
	c.maybeConnect()
	return obj, h.disp
}

func (c *Conn) release(h *handle) {
	c.mu.Lock()
	delete(c.byID, h.id)
	delete(c.byPath, h.path.Key())
	open := c.state == StateOpen
	c.mu.Unlock()
	c.ids.Release(h.id)

	if open {
		c.postUnsubscribe(h.id)
	}
	c.maybeDisconnect()
}

// maybeConnect dials iff not currently open, a user id is known, and at
// least one server-backed non-root object is alive (spec.md §4.3 "Connect
// trigger").
func (c *Conn) maybeConnect() {
	userKnown := false
	if c.tokens != nil {
		if userID, _, err := c.tokens.Token(); err == nil && userID != "" {
			userKnown = true
		}
	}
	c.mu.Lock()
	if c.state == StateOpen || c.state == StateConnecting {
		c.mu.Unlock()
		return
	}
	hasNonRoot := false
	for id, h := range c.byID {
		if id != 0 && h.obj.Obj().Backing() == dobject.BackingServer {
			hasNonRoot = true
			break
		}
	}
	dial := userKnown && hasNonRoot
	if dial {
		c.state = StateConnecting
	}
	c.mu.Unlock()
	if !dial {
		return
	}
	go c.connectLoop()
}

// maybeDisconnect closes iff open and the only remaining live object is
// the root (spec.md §4.3 "Disconnect trigger").
func (c *Conn) maybeDisconnect() {
	c.mu.Lock()
	onlyRoot := len(c.byID) == 1
	open := c.state == StateOpen
	ws := c.ws
	c.mu.Unlock()
	if open && onlyRoot && ws != nil {
		_ = ws.Close()
	}
}

func (c *Conn) connectLoop() {
	c.mu.Lock()
	c.wantsOpen = true
	c.mu.Unlock()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.backoffCfg.initial
	bo.MaxInterval = c.backoffCfg.max
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0 // retry forever until Dispose
	bo.Reset()            // start from InitialInterval, not the library default

	for {
		c.mu.Lock()
		wantsOpen := c.wantsOpen
		c.mu.Unlock()
		if !wantsOpen {
			return
		}

		if c.metrics != nil {
			c.metrics.Client.ReconnectAttempts.Inc()
		}
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		ws, err := clienttransport.Dial(ctx, c.url, c.timeout)
		cancel()
		if err != nil {
			c.logger.Warn("connect failed, will retry", zap.Error(err))
			time.Sleep(bo.NextBackOff())
			continue
		}

		if c.metrics != nil {
			c.metrics.Client.ReconnectSuccess.Inc()
		}
		bo.Reset()
		c.onOpen(ws)
		c.runSession(ws) // blocks until the connection closes
		c.onClose()

		c.mu.Lock()
		wantsOpen = c.wantsOpen
		c.mu.Unlock()
		if !wantsOpen {
			return
		}
		time.Sleep(bo.NextBackOff())
	}
}

func (c *Conn) onOpen(ws *clienttransport.Conn) {
	c.mu.Lock()
	c.ws = ws
	c.state = StateOpen
	c.attempts = 0
	handles := make([]*handle, 0, len(c.byID))
	for _, h := range c.byID {
		handles = append(handles, h)
	}
	c.mu.Unlock()

	if c.tokens != nil {
		if userID, token, err := c.tokens.Token(); err == nil {
			c.postAuthenticate(userID, token)
		}
	}
	for _, h := range handles {
		if h.id == 0 {
			continue
		}
		c.postSubscribe(h.id, h.path)
	}
}

// onClose notifies every live object of the disconnect (spec.md §4.3 "On
// close: Notify every live object via OnDisconnect()").
func (c *Conn) onClose() {
	c.mu.Lock()
	c.ws = nil
	c.state = StateReconnecting
	handles := make([]*handle, 0, len(c.byID))
	for _, h := range c.byID {
		handles = append(handles, h)
	}
	c.mu.Unlock()
	for _, h := range handles {
		h.obj.Obj().OnDisconnect()
	}
}

func (c *Conn) runSession(ws *clienttransport.Conn) {
	for {
		frame, err := ws.Receive()
		if err != nil {
			return
		}
		if err := c.dispatch(frame); err != nil {
			c.logger.Warn("failed to apply inbound frame", zap.Error(err))
		}
	}
}

// dispatch reads the object_id varint and hands the remainder to
// ClientDecode (ApplyMessage) on the matching handle (spec.md §4.3
// "Inbound dispatch").
func (c *Conn) dispatch(frame []byte) error {
	r := wire.NewReader(frame)
	id64, err := r.ReadVarUint()
	if err != nil {
		return fmt.Errorf("clientconn: read object id: %w", err)
	}
	id := uint32(id64)

	c.mu.Lock()
	h, ok := c.byID[id]
	c.mu.Unlock()
	if !ok {
		c.logger.Warn("inbound message for unknown handle id, dropping", zap.Uint32("id", id))
		return nil
	}
	return h.obj.Obj().ApplyMessage(frame[r.Pos():])
}

func (c *Conn) send(id uint32, body []byte) {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return
	}
	w := wire.NewWriter(4 + len(body))
	w.WriteVarUint(uint64(id))
	w.WriteRaw(body)
	if err := ws.Send(w.Bytes()); err != nil {
		c.logger.Debug("send failed", zap.Error(err))
	}
}

func (c *Conn) postAuthenticate(userID, token string) {
	c.postMeta(dobject.MetaUp{Authenticate: &dobject.AuthenticateRequest{UserID: userID, Token: token}})
}

func (c *Conn) postSubscribe(id uint32, path dobject.Path) {
	c.postMeta(dobject.MetaUp{Subscribe: &dobject.SubscribeRequest{ID: id, Path: path}})
}

func (c *Conn) postUnsubscribe(id uint32) {
	c.postMeta(dobject.MetaUp{Unsubscribe: &dobject.UnsubscribeRequest{ID: id}})
}

func (c *Conn) postMeta(up dobject.MetaUp) {
	f, ok := c.root.Field(dobject.MetaQueueFieldID)
	if !ok {
		return
	}
	mq, ok := f.(*dobject.Queue[dobject.MetaUp, dobject.MetaDown])
	if !ok {
		return
	}
	mq.Post(up)
}

// RefreshToken should be called whenever the auth source reports a new
// token: if connected it re-authenticates immediately, otherwise it tries
// to open a connection (spec.md §4.3 "Auth token refresh").
func (c *Conn) RefreshToken() {
	c.mu.Lock()
	open := c.state == StateOpen
	c.mu.Unlock()
	if !open {
		c.maybeConnect()
		return
	}
	if c.tokens == nil {
		return
	}
	userID, token, err := c.tokens.Token()
	if err != nil {
		c.logger.Warn("token refresh failed", zap.Error(err))
		return
	}
	c.postAuthenticate(userID, token)
}

// Dispose clears the reconnect flag and closes the connection for good
// (spec.md §4.3 "Explicit close").
func (c *Conn) Dispose() {
	c.mu.Lock()
	c.wantsOpen = false
	ws := c.ws
	c.state = StateClosed
	c.mu.Unlock()
	if ws != nil {
		_ = ws.Close()
	}
}
