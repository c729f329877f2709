package dobject

import (
	"fmt"

	"odin-dobj/internal/wire"
)

// Meta-queue message discriminants (spec.md §3.4 "Meta queue", §7 "the
// meta-queue downstream type set ... the protocol should include both
// failure variants" — both AuthenticateFailed and SubscribeFailed are
// implemented, resolving the Open Question in favour of the superset).
const (
	metaUpAuthenticate uint8 = 0
	metaUpSubscribe    uint8 = 1
	metaUpUnsubscribe  uint8 = 2

	metaDownAuthenticateFailed uint8 = 0
	metaDownSubscribeFailed    uint8 = 1
)

// AuthenticateRequest carries the client's declared user id and token.
// The server accepts UserID verbatim (spec.md §7 Open Question: "accepts
// the client-declared user id verbatim with a TODO to validate the
// token" — kept as-is; see DESIGN.md).
type AuthenticateRequest struct {
	UserID string
	Token  string
}

// SubscribeRequest asks the server to attach the object at Path under the
// client-chosen local ID.
type SubscribeRequest struct {
	ID   uint32
	Path Path
}

// UnsubscribeRequest releases a previously subscribed local ID.
type UnsubscribeRequest struct {
	ID uint32
}

// MetaUp is the tagged union of upstream meta-queue messages.
type MetaUp struct {
	Authenticate *AuthenticateRequest
	Subscribe    *SubscribeRequest
	Unsubscribe  *UnsubscribeRequest
}

// AuthenticateFailedMsg reports that Authenticate was rejected.
type AuthenticateFailedMsg struct {
	Cause string
}

// SubscribeFailedMsg reports that a Subscribe could not be satisfied,
// carrying the FriendlyException's message verbatim (spec.md §7).
type SubscribeFailedMsg struct {
	ID    uint32
	Cause string
}

// MetaDown is the tagged union of downstream meta-queue messages.
type MetaDown struct {
	AuthenticateFailed *AuthenticateFailedMsg
	SubscribeFailed    *SubscribeFailedMsg
}

func writeMetaUp(w *wire.Writer, m MetaUp) {
	switch {
	case m.Authenticate != nil:
		w.WriteVarUint(uint64(metaUpAuthenticate))
		w.WriteString(m.Authenticate.UserID)
		w.WriteString(m.Authenticate.Token)
	case m.Subscribe != nil:
		w.WriteVarUint(uint64(metaUpSubscribe))
		w.WriteVarUint(uint64(m.Subscribe.ID))
		WritePath(w, m.Subscribe.Path)
	case m.Unsubscribe != nil:
		w.WriteVarUint(uint64(metaUpUnsubscribe))
		w.WriteVarUint(uint64(m.Unsubscribe.ID))
	}
}

func sizeMetaUp(m MetaUp) int {
	switch {
	case m.Authenticate != nil:
		return wire.SizeVarUint(uint64(metaUpAuthenticate)) + wire.SizeString(m.Authenticate.UserID) + wire.SizeString(m.Authenticate.Token)
	case m.Subscribe != nil:
		return wire.SizeVarUint(uint64(metaUpSubscribe)) + wire.SizeVarUint(uint64(m.Subscribe.ID)) + SizePath(m.Subscribe.Path)
	case m.Unsubscribe != nil:
		return wire.SizeVarUint(uint64(metaUpUnsubscribe)) + wire.SizeVarUint(uint64(m.Unsubscribe.ID))
	}
	return wire.SizeVarUint(0)
}

func readMetaUp(r *wire.Reader) (MetaUp, error) {
	tag, err := r.ReadVarUint()
	if err != nil {
		return MetaUp{}, err
	}
	switch uint8(tag) {
	case metaUpAuthenticate:
		userID, err := r.ReadString()
		if err != nil {
			return MetaUp{}, err
		}
		token, err := r.ReadString()
		if err != nil {
			return MetaUp{}, err
		}
		return MetaUp{Authenticate: &AuthenticateRequest{UserID: userID, Token: token}}, nil
	case metaUpSubscribe:
		id, err := r.ReadVarUint()
		if err != nil {
			return MetaUp{}, err
		}
		path, err := ReadPath(r)
		if err != nil {
			return MetaUp{}, err
		}
		return MetaUp{Subscribe: &SubscribeRequest{ID: uint32(id), Path: path}}, nil
	case metaUpUnsubscribe:
		id, err := r.ReadVarUint()
		if err != nil {
			return MetaUp{}, err
		}
		return MetaUp{Unsubscribe: &UnsubscribeRequest{ID: uint32(id)}}, nil
	default:
		return MetaUp{}, fmt.Errorf("dobject: unknown meta-queue upstream tag %d", tag)
	}
}

func writeMetaDown(w *wire.Writer, m MetaDown) {
	switch {
	case m.AuthenticateFailed != nil:
		w.WriteVarUint(uint64(metaDownAuthenticateFailed))
		w.WriteString(m.AuthenticateFailed.Cause)
	case m.SubscribeFailed != nil:
		w.WriteVarUint(uint64(metaDownSubscribeFailed))
		w.WriteVarUint(uint64(m.SubscribeFailed.ID))
		w.WriteString(m.SubscribeFailed.Cause)
	}
}

func sizeMetaDown(m MetaDown) int {
	switch {
	case m.AuthenticateFailed != nil:
		return wire.SizeVarUint(uint64(metaDownAuthenticateFailed)) + wire.SizeString(m.AuthenticateFailed.Cause)
	case m.SubscribeFailed != nil:
		return wire.SizeVarUint(uint64(metaDownSubscribeFailed)) + wire.SizeVarUint(uint64(m.SubscribeFailed.ID)) + wire.SizeString(m.SubscribeFailed.Cause)
	}
	return wire.SizeVarUint(0)
}

func readMetaDown(r *wire.Reader) (MetaDown, error) {
	tag, err := r.ReadVarUint()
	if err != nil {
		return MetaDown{}, err
	}
	switch uint8(tag) {
	case metaDownAuthenticateFailed:
		cause, err := r.ReadString()
		if err != nil {
			return MetaDown{}, err
		}
		return MetaDown{AuthenticateFailed: &AuthenticateFailedMsg{Cause: cause}}, nil
	case metaDownSubscribeFailed:
		id, err := r.ReadVarUint()
		if err != nil {
			return MetaDown{}, err
		}
		cause, err := r.ReadString()
		if err != nil {
			return MetaDown{}, err
		}
		return MetaDown{SubscribeFailed: &SubscribeFailedMsg{ID: uint32(id), Cause: cause}}, nil
	default:
		return MetaDown{}, fmt.Errorf("dobject: unknown meta-queue downstream tag %d", tag)
	}
}

// MetaQueueFieldID is the well-known field id of the root object's meta
// queue (spec.md §3.4 "Meta queue").
const MetaQueueFieldID uint32 = 0

// NewMetaQueue constructs the root object's well-known queue field,
// wrapping MetaUp/MetaDown's hand-rolled tagged-union codec in a regular
// Queue field so it flows through the same dispatch path as any other
// queue (spec.md §3.4: "This queue is the ONLY transport for subscription
// control; no other out-of-band control channel exists.").
func NewMetaQueue() *Queue[MetaUp, MetaDown] {
	return NewQueue[MetaUp, MetaDown](MetaQueueFieldID,
		wire.ByteLength, writeMetaUpFramed, readMetaUpFramed, sizeMetaUpFramed,
		wire.ByteLength, writeMetaDownFramed, readMetaDownFramed, sizeMetaDownFramed,
	)
}

func writeMetaUpFramed(w *wire.Writer, m MetaUp) {
	w.WriteFramed(sizeMetaUp(m), func(w *wire.Writer) { writeMetaUp(w, m) })
}

func sizeMetaUpFramed(m MetaUp) int { return wire.SizeFramed(sizeMetaUp(m)) }

func readMetaUpFramed(r *wire.Reader) (MetaUp, error) {
	frame, err := r.ReadBytesFrame()
	if err != nil {
		return MetaUp{}, err
	}
	return readMetaUp(wire.NewReader(frame))
}

func writeMetaDownFramed(w *wire.Writer, m MetaDown) {
	w.WriteFramed(sizeMetaDown(m), func(w *wire.Writer) { writeMetaDown(w, m) })
}

func sizeMetaDownFramed(m MetaDown) int { return wire.SizeFramed(sizeMetaDown(m)) }

func readMetaDownFramed(r *wire.Reader) (MetaDown, error) {
	frame, err := r.ReadBytesFrame()
	if err != nil {
		return MetaDown{}, err
	}
	return readMetaDown(wire.NewReader(frame))
}
