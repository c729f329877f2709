package dobject

import "odin-dobj/internal/wire"

// Field is the common surface every field variant (Value/Set/Map/Queue/
// Collection, spec.md §3.4) implements so an Object can hold them
// uniformly in its field table and dispatch deltas by message type
// without knowing the field's element type T.
//
// Concrete field types embed unsupportedField and override only the
// methods that apply to their kind; the rest return errUnsupported,
// which the Object treats as a skip-by-wire-type (the caller already has
// the wire type from the tag and can consume the bytes itself).
type Field interface {
	FieldID() uint32
	setOwner(o *Object)

	// EncodeSync appends this field's tag + full current value to w, for
	// inclusion in a Sync message. Collection and Queue fields write
	// nothing: Collections carry no direct data, Queues carry no state.
	EncodeSync(w *wire.Writer)

	// ApplySync applies this field's slice of a Sync message — its full
	// current value, in the same (field-id-wire-type)+value form
	// EncodeSync wrote. Unlike the incremental Apply* deltas below, this
	// must diff against the field's current value itself (spec.md §4.2
	// "A full-state Sync applied to a non-empty object performs a diff").
	ApplySync(r *wire.Reader) error

	ApplyValueChange(r *wire.Reader) error
	ApplySetAdd(r *wire.Reader) error
	ApplySetRemove(r *wire.Reader) error
	ApplyMapSet(r *wire.Reader) error
	ApplyMapRemove(r *wire.Reader) error
	ApplyQueueReceive(r *wire.Reader) error
	ApplyQueuePost(r *wire.Reader) error
}

var errUnsupported = &unsupportedOpError{}

type unsupportedOpError struct{}

func (e *unsupportedOpError) Error() string { return "dobject: field does not support this message type" }

// unsupportedField gives every concrete field type a default
// implementation of the whole Field interface; embedding types override
// only what their kind actually supports.
type unsupportedField struct {
	id    uint32
	owner *Object
}

func (f *unsupportedField) FieldID() uint32      { return f.id }
func (f *unsupportedField) setOwner(o *Object)    { f.owner = o }
func (f *unsupportedField) EncodeSync(*wire.Writer) {}

func (f *unsupportedField) ApplySync(*wire.Reader) error         { return errUnsupported }
func (f *unsupportedField) ApplyValueChange(*wire.Reader) error  { return errUnsupported }
func (f *unsupportedField) ApplySetAdd(*wire.Reader) error       { return errUnsupported }
func (f *unsupportedField) ApplySetRemove(*wire.Reader) error    { return errUnsupported }
func (f *unsupportedField) ApplyMapSet(*wire.Reader) error       { return errUnsupported }
func (f *unsupportedField) ApplyMapRemove(*wire.Reader) error    { return errUnsupported }
func (f *unsupportedField) ApplyQueueReceive(*wire.Reader) error { return errUnsupported }
func (f *unsupportedField) ApplyQueuePost(*wire.Reader) error    { return errUnsupported }

// emit frames payload as (field-id-wire-type tag already written by msgType
// helpers) and hands it to the owning Object's outbound channel, tagged
// with the message type that produced it.
func (f *unsupportedField) emit(msgType MessageType, body *wire.Writer) {
	if f.owner == nil {
		return
	}
	f.owner.emitFieldMessage(msgType, body)
}
