package dobject

import (
	"sync"

	"odin-dobj/internal/wire"
)

// Queue is a bi-directional, stateless message channel: the client posts
// Up values, the server broadcasts or unicasts Down values (spec.md §3.4
// "Queue<Up,Down>"). Queues retain no state, so EncodeSync/ApplySync keep
// unsupportedField's no-op defaults — nothing is written for a queue
// field in a Sync message.
type Queue[Up, Down any] struct {
	unsupportedField

	upWT  wire.Type
	writeUp func(w *wire.Writer, v Up)
	readUp  func(r *wire.Reader) (Up, error)
	sizeUp  func(v Up) int

	downWT  wire.Type
	writeDown func(w *wire.Writer, v Down)
	readDown  func(r *wire.Reader) (Down, error)
	sizeDown  func(v Down) int

	mu               sync.RWMutex
	postListeners    []func(v Up)
	receiveListeners []func(v Down)

	// postSink is set by the client transport when this queue lives on a
	// server-backed client-side object; Post hands the encoded upstream
	// frame (field-id-wire-type ‖ payload, no MessageType prefix per
	// spec.md §4.2 "Framing by id") to it for delivery to the server.
	postSink func(body []byte)
}

// NewQueue constructs a Queue field over upstream type Up and downstream
// type Down.
func NewQueue[Up, Down any](id uint32,
	upWT wire.Type, writeUp func(*wire.Writer, Up), readUp func(*wire.Reader) (Up, error), sizeUp func(Up) int,
	downWT wire.Type, writeDown func(*wire.Writer, Down), readDown func(*wire.Reader) (Down, error), sizeDown func(Down) int,
) *Queue[Up, Down] {
	q := &Queue[Up, Down]{
		upWT: upWT, writeUp: writeUp, readUp: readUp, sizeUp: sizeUp,
		downWT: downWT, writeDown: writeDown, readDown: readDown, sizeDown: sizeDown,
	}
	q.id = id
	return q
}

// SetPostSink wires the outbound transport hook used by Post on a
// server-backed, client-side queue.
func (f *Queue[Up, Down]) SetPostSink(sink func(body []byte)) {
	f.mu.Lock()
	f.postSink = sink
	f.mu.Unlock()
}

// OnPost registers a listener fired when an upstream post is received:
// server-side, after decoding a client's wire post; Firestore-backed,
// immediately and locally (spec.md §4.2 "Queue": "fires posted locally").
func (f *Queue[Up, Down]) OnPost(l func(v Up)) func() {
	f.mu.Lock()
	f.postListeners = append(f.postListeners, l)
	idx := len(f.postListeners) - 1
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if idx < len(f.postListeners) {
			f.postListeners[idx] = nil
		}
	}
}

// OnReceive registers a listener fired when a downstream QueueReceive
// delta is applied (client-side).
func (f *Queue[Up, Down]) OnReceive(l func(v Down)) func() {
	f.mu.Lock()
	f.receiveListeners = append(f.receiveListeners, l)
	idx := len(f.receiveListeners) - 1
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if idx < len(f.receiveListeners) {
			f.receiveListeners[idx] = nil
		}
	}
}

func (f *Queue[Up, Down]) firePost(v Up) {
	f.mu.RLock()
	listeners := append([]func(Up)(nil), f.postListeners...)
	f.mu.RUnlock()
	for i := len(listeners) - 1; i >= 0; i-- {
		if listeners[i] != nil {
			listeners[i](v)
		}
	}
}

func (f *Queue[Up, Down]) fireReceive(v Down) {
	f.mu.RLock()
	listeners := append([]func(Down)(nil), f.receiveListeners...)
	f.mu.RUnlock()
	for i := len(listeners) - 1; i >= 0; i-- {
		if listeners[i] != nil {
			listeners[i](v)
		}
	}
}

// Post sends v upstream. Client-only, regardless of backing (spec.md
// §4.2 "Queue.Post is permitted only on the client"): on a server-backed
// object it is handed to postSink for wire delivery; on a Firestore-backed
// object (no server in the loop) it fires locally instead.
func (f *Queue[Up, Down]) Post(v Up) {
	if f.owner.Side() != SideClient {
		panic(&AuthorityViolation{FieldID: f.id, Op: "Queue.Post (client-only)"})
	}
	switch f.owner.Backing() {
	case BackingFirestore:
		f.firePost(v)
	default:
		f.mu.RLock()
		sink := f.postSink
		f.mu.RUnlock()
		if sink == nil {
			return
		}
		body := wire.NewWriter(f.sizeUp(v) + 4)
		body.WriteTag(uint64(f.id), f.upWT)
		f.writeUp(body, v)
		sink(body.Bytes())
	}
}

// Broadcast writes a QueueReceive delta through the object's normal
// fan-out path — on the server this reaches every subscribed session
// (spec.md §4.2 "Queue.Broadcast").
func (f *Queue[Up, Down]) Broadcast(v Down) {
	f.owner.checkAuthority(f.id, "Queue.Broadcast")
	body := wire.NewWriter(f.sizeDown(v) + 4)
	body.WriteTag(uint64(f.id), f.downWT)
	f.writeDown(body, v)
	f.emit(MsgQueueReceive, body)
}

// Send builds a QueueReceive message for unicast delivery to one session
// (spec.md §4.2 "Queue.Send(down, session)"); unlike Broadcast it does
// NOT go through the object's fan-out listeners, since those reach every
// subscriber. The caller (the server session layer) is responsible for
// writing the returned bytes, prefixed with the object id, to exactly one
// connection.
func (f *Queue[Up, Down]) Send(v Down) []byte {
	f.owner.checkAuthority(f.id, "Queue.Send")
	w := wire.NewWriter(f.sizeDown(v) + 8)
	w.WriteVarUint(uint64(MsgQueueReceive))
	w.WriteTag(uint64(f.id), f.downWT)
	f.writeDown(w, v)
	return w.Bytes()
}

func (f *Queue[Up, Down]) ApplyQueueReceive(r *wire.Reader) error {
	v, err := f.readDown(r)
	if err != nil {
		return err
	}
	f.fireReceive(v)
	return nil
}

func (f *Queue[Up, Down]) ApplyQueuePost(r *wire.Reader) error {
	v, err := f.readUp(r)
	if err != nil {
		return err
	}
	f.firePost(v)
	return nil
}
