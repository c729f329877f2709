package dobject

import (
	"sort"
	"sync"

	"odin-dobj/internal/wire"
)

// MessageListener receives the bytes of one emitted message (MessageType
// varint + payload, NOT including the leading object id — that framing is
// the session/client transport's job, spec.md §4.2 "Framing by id").
type MessageListener func(msg []byte)

// StateListener is notified on every State transition.
type StateListener func(old, new State)

// Object is a DObject: a schema-described record participating in
// replication (spec.md §3.4). One Object instance backs one path on one
// side of the connection; the server holds the authoritative instance and
// client instances are local mirrors driven by received deltas (except
// for Firestore-backed objects, where the client is the writer).
type Object struct {
	mu sync.RWMutex

	state   State
	path    Path
	backing Backing
	side    Side
	id      uint32 // client-local handle id; meaningless on the server

	fields   map[uint32]Field
	fieldIDs []uint32 // kept sorted for deterministic Sync ordering

	warner wire.Warner

	msgListeners   []MessageListener
	stateListeners []StateListener

	// relayPublisher, if set, is called with every locally-originated
	// delta so a cross-process bus can republish it (SPEC_FULL.md §3
	// "internal/fanout"). It is invoked once per emission regardless of
	// how many sessions are attached, unlike msgListeners which has one
	// entry per attached session.
	relayPublisher MessageListener
}

// NewObject constructs an Object at path with the given backing and the
// Side this process plays for it. warner may be nil to discard codec
// warnings.
func NewObject(path Path, backing Backing, side Side, warner wire.Warner) *Object {
	return &Object{
		state:   StateResolving,
		path:    path,
		backing: backing,
		side:    side,
		fields:  make(map[uint32]Field),
		warner:  warner,
	}
}

func (o *Object) Path() Path       { return o.path }
func (o *Object) Backing() Backing { return o.backing }
func (o *Object) Side() Side       { return o.side }

func (o *Object) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

func (o *Object) ID() uint32 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.id
}

// SetID assigns the client-local handle id (spec.md §3.4).
func (o *Object) SetID(id uint32) {
	o.mu.Lock()
	o.id = id
	o.mu.Unlock()
}

// RegisterField adds f to the field table, keyed by its static id
// (spec.md §3.4 invariant: "Field ids within a type are unique" — a
// duplicate id here is a programming error and panics, matching the
// other authority-violation panics in this package).
func (o *Object) RegisterField(f Field) {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := f.FieldID()
	if _, exists := o.fields[id]; exists {
		panic(&AuthorityViolation{FieldID: id, Op: "duplicate field registration"})
	}
	f.setOwner(o)
	o.fields[id] = f
	o.fieldIDs = append(o.fieldIDs, id)
	sort.Slice(o.fieldIDs, func(i, j int) bool { return o.fieldIDs[i] < o.fieldIDs[j] })
}

func (o *Object) field(id uint32) (Field, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	f, ok := o.fields[id]
	return f, ok
}

// Field looks up a registered field by id, for callers outside the
// package that need to walk the field table generically (the path
// resolver, spec.md §4.3 "the current object's field table is consulted
// for path[index].id").
func (o *Object) Field(id uint32) (Field, bool) {
	return o.field(id)
}

// OnMessage registers a listener invoked whenever this object emits a
// delta (spec.md §4.4 "hook obj.messageGenerated"). Returns a disposer.
func (o *Object) OnMessage(l MessageListener) func() {
	o.mu.Lock()
	o.msgListeners = append(o.msgListeners, l)
	idx := len(o.msgListeners) - 1
	o.mu.Unlock()
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if idx < len(o.msgListeners) {
			o.msgListeners[idx] = nil
		}
	}
}

// OnStateChange registers a listener invoked on every state transition.
func (o *Object) OnStateChange(l StateListener) func() {
	o.mu.Lock()
	o.stateListeners = append(o.stateListeners, l)
	idx := len(o.stateListeners) - 1
	o.mu.Unlock()
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if idx < len(o.stateListeners) {
			o.stateListeners[idx] = nil
		}
	}
}

// SetState transitions state and notifies listeners in reverse
// registration order, which lets a listener unsubscribe itself mid
// iteration (spec.md §9 "event/listener graph").
func (o *Object) SetState(newState State) {
	o.mu.Lock()
	old := o.state
	o.state = newState
	listeners := append([]StateListener(nil), o.stateListeners...)
	o.mu.Unlock()

	if old == newState {
		return
	}
	for i := len(listeners) - 1; i >= 0; i-- {
		if listeners[i] != nil {
			listeners[i](old, newState)
		}
	}
}

// OnDisconnect transitions Active -> Disconnected (spec.md §4.3 "On
// close": "Notify every live object via OnDisconnect()").
func (o *Object) OnDisconnect() {
	if o.State() == StateActive {
		o.SetState(StateDisconnected)
	}
}

// emitFieldMessage builds a full message (MessageType varint + body) and
// fans it out to message listeners. Used by field mutators (ValueChange,
// SetAdd/Remove, MapSet/Remove, QueueReceive) and never called with
// MsgSync, which is only ever produced by EncodeSync on demand.
func (o *Object) emitFieldMessage(msgType MessageType, body *wire.Writer) {
	w := wire.NewWriter(1 + body.Len())
	w.WriteVarUint(uint64(msgType))
	w.WriteRaw(body.Bytes())

	o.mu.RLock()
	listeners := append([]MessageListener(nil), o.msgListeners...)
	o.mu.RUnlock()

	msg := w.Bytes()
	for _, l := range listeners {
		if l != nil {
			l(msg)
		}
	}

	o.mu.RLock()
	publish := o.relayPublisher
	o.mu.RUnlock()
	if publish != nil {
		publish(msg)
	}
}

// SetRelayPublisher wires a cross-process relay hook, called with every
// delta this object locally originates. There is only one slot, not a
// listener list: exactly one process-wide bus should republish a given
// object's deltas, regardless of how many local sessions are attached to
// it (those are delivered separately via OnMessage).
func (o *Object) SetRelayPublisher(l MessageListener) {
	o.mu.Lock()
	o.relayPublisher = l
	o.mu.Unlock()
}

// DeliverRelayed dispatches a delta received from another process
// straight to this object's local session listeners, bypassing
// relayPublisher so a relayed message is never republished back onto the
// bus (which would echo it forever across processes).
func (o *Object) DeliverRelayed(msg []byte) {
	o.mu.RLock()
	listeners := append([]MessageListener(nil), o.msgListeners...)
	o.mu.RUnlock()
	for _, l := range listeners {
		if l != nil {
			l(msg)
		}
	}
}

// EncodeSync builds a full Sync message: the MessageType varint followed
// by one ValueChange-style (tag+value) frame per field, concatenated in
// ascending field-id order for determinism (spec.md §4.2 "Sync").
func (o *Object) EncodeSync() []byte {
	o.mu.RLock()
	ids := append([]uint32(nil), o.fieldIDs...)
	fields := o.fields
	o.mu.RUnlock()

	w := wire.NewWriter(64)
	w.WriteVarUint(uint64(MsgSync))
	for _, id := range ids {
		fields[id].EncodeSync(w)
	}
	return w.Bytes()
}

// ApplyMessage reads the MessageType varint and dispatches the remaining
// payload to the matching field, per spec.md §4.2 "Per-type emission
// rules" and "Apply semantics". A delta for an unknown field id consumes
// exactly the bytes the wire type implies and is otherwise ignored.
func (o *Object) ApplyMessage(payload []byte) error {
	r := wire.NewReader(payload)
	mt, err := r.ReadVarUint()
	if err != nil {
		return err
	}
	switch MessageType(mt) {
	case MsgSync:
		return o.applySync(r)
	case MsgValueChange:
		return o.dispatchTagged(r, func(f Field, r *wire.Reader) error { return f.ApplyValueChange(r) })
	case MsgSetAdd:
		return o.dispatchTagged(r, func(f Field, r *wire.Reader) error { return f.ApplySetAdd(r) })
	case MsgSetRemove:
		return o.dispatchTagged(r, func(f Field, r *wire.Reader) error { return f.ApplySetRemove(r) })
	case MsgMapSet:
		return o.dispatchMapTagged(r, func(f Field, r *wire.Reader) error { return f.ApplyMapSet(r) })
	case MsgMapRemove:
		return o.dispatchTagged(r, func(f Field, r *wire.Reader) error { return f.ApplyMapRemove(r) })
	case MsgQueueReceive:
		return o.dispatchTagged(r, func(f Field, r *wire.Reader) error { return f.ApplyQueueReceive(r) })
	default:
		// Unknown message type: nothing more can be safely interpreted
		// from this payload, so there is nothing to skip to — log and
		// drop, matching spec.md §7 "Unknown message ids".
		o.warn("ApplyMessage", "unknown message type", nil)
		return nil
	}
}

// ApplyQueuePost handles an upstream post, which (uniquely) carries no
// MessageType prefix: object id ‖ field-id-wire-type ‖ payload (spec.md
// §4.2 "Framing by id"). The object id has already been stripped by the
// caller; payload here starts at the field tag.
func (o *Object) ApplyQueuePost(payload []byte) error {
	r := wire.NewReader(payload)
	return o.dispatchTagged(r, func(f Field, r *wire.Reader) error { return f.ApplyQueuePost(r) })
}

func (o *Object) dispatchTagged(r *wire.Reader, apply func(Field, *wire.Reader) error) error {
	id, wt, err := r.ReadTag()
	if err != nil {
		return err
	}
	f, ok := o.field(uint32(id))
	if !ok {
		o.warn("dispatch", "unknown field id, dropping delta", nil)
		return r.Skip(wt)
	}
	if err := apply(f, r); err == errUnsupported {
		o.warn("dispatch", "field does not support this message type", nil)
		return r.Skip(wt)
	} else if err != nil {
		return err
	}
	return nil
}

func (o *Object) dispatchMapTagged(r *wire.Reader, apply func(Field, *wire.Reader) error) error {
	id, _, _, err := r.ReadMapTag()
	if err != nil {
		return err
	}
	f, ok := o.field(uint32(id))
	if !ok {
		o.warn("dispatch", "unknown field id in MapSet, cannot skip without consuming whole message", nil)
		return nil
	}
	return apply(f, r)
}

// applySync diffs the incoming full state against the current state,
// firing only the events that represent an actual change (spec.md §4.2
// "Apply semantics": "A full-state Sync applied to a non-empty object
// performs a diff"). Each field's slice is handed to that field's own
// ApplySync, which decodes the full value and compares it with the
// current state (Set/Map fire events only for changed entries); fields
// without ApplySync support are skipped by wire type.
func (o *Object) applySync(r *wire.Reader) error {
	for !r.Done() {
		id, wt, err := r.ReadTag()
		if err != nil {
			return err
		}
		f, ok := o.field(uint32(id))
		if !ok {
			o.warn("Sync", "unknown field id", nil)
			if err := r.Skip(wt); err != nil {
				return err
			}
			continue
		}
		if err := f.ApplySync(r); err != nil {
			if err == errUnsupported {
				o.warn("Sync", "field does not support full-state apply", nil)
				if err := r.Skip(wt); err != nil {
					return err
				}
				continue
			}
			return err
		}
	}
	o.SetState(StateActive)
	return nil
}

func (o *Object) warn(ctx, cause string, err error) {
	if o.warner == nil {
		return
	}
	o.warner.Warn(&wire.Warning{Context: ctx, Cause: cause, Err: err})
}

// checkAuthority panics with *AuthorityViolation if this process's Side
// does not have write authority over a server/Firestore-backed object
// (spec.md §4.2 "Authority").
func (o *Object) checkAuthority(fieldID uint32, op string) {
	allowed := (o.backing == BackingServer && o.side == SideServer) ||
		(o.backing == BackingFirestore && o.side == SideClient)
	if !allowed {
		panic(&AuthorityViolation{FieldID: fieldID, Op: op})
	}
}
