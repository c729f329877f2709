// Package appschema is a small concrete DObject schema — a root object
// exposing a "rooms" collection of Room objects — used to exercise the
// framework end to end (spec.md §8 "Concrete scenarios" 1 and 2: a
// Collection<Room> resolved by path, a roomName Value, and a players Set).
package appschema

import (
	"context"
	"sync"

	"odin-dobj/internal/dobject"
	"odin-dobj/internal/schema"
	"odin-dobj/internal/wire"
)

// RelayBus is the narrow surface Root needs from internal/fanout, kept as
// an interface so this package doesn't have to import fanout (and so
// NewRoot can be called with a nil bus when fanout is disabled).
type RelayBus interface {
	PublishDelta(path dobject.Path, payload []byte) error
}

const (
	fieldMetaQueue  uint32 = 0
	fieldRooms      uint32 = 1
	roomFieldName    uint32 = 1
	roomFieldPlayers uint32 = 2
	roomFieldChat    uint32 = 3
	roomFieldProfile uint32 = 4
)

func stringIO() (wire.Type, func(*wire.Writer, string), func(*wire.Reader) (string, error), func(string) int) {
	return wire.ByteLength,
		func(w *wire.Writer, v string) { w.WriteString(v) },
		func(r *wire.Reader) (string, error) { return r.ReadString() },
		func(v string) int { return wire.SizeString(v) }
}

// RoomProfile is a small nested record: optional operator-set metadata
// about a room (spec.md §4.1 "Record" > "Simple class"). It is absent
// (nil) by default.
type RoomProfile struct {
	Level       int32
	Description string
}

// roomProfileCodec is this process's codec cache entry for RoomProfile
// (spec.md §4.1 "Codec cache"): built once, on first use, and reused by
// every Room instance rather than rebuilt per object.
var roomProfileCodec = schema.NewLazy(func() *schema.SimpleClassCodec[RoomProfile] {
	return schema.NewSimpleClassCodec(schema.NewStructCodec[RoomProfile]("room.profile", []schema.FieldIO[RoomProfile]{
		{
			ID:       1,
			WireType: wire.VarInt,
			Write:    func(w *wire.Writer, o *RoomProfile) { w.WriteVarInt(int64(o.Level)) },
			Size:     func(o *RoomProfile) int { return wire.SizeVarInt(int64(o.Level)) },
			Read: func(r *wire.Reader, o *RoomProfile) error {
				v, err := r.ReadVarInt()
				if err != nil {
					return err
				}
				o.Level = int32(v)
				return nil
			},
		},
		{
			ID:       2,
			WireType: wire.ByteLength,
			Write:    func(w *wire.Writer, o *RoomProfile) { w.WriteString(o.Description) },
			Size:     func(o *RoomProfile) int { return wire.SizeString(o.Description) },
			Read: func(r *wire.Reader, o *RoomProfile) error {
				v, err := r.ReadString()
				if err != nil {
					return err
				}
				o.Description = v
				return nil
			},
		},
	}))
})

// profileIO adapts roomProfileCodec's SimpleClassCodec (presence-prefix +
// struct fields, unframed) to the ByteLength value form Value[T] expects
// (length-prefixed frame), the same way Set/Map adapt their own codecs in
// internal/dobject.
func profileIO() (wire.Type, func(*wire.Writer, *RoomProfile), func(*wire.Reader) (*RoomProfile, error), func(*RoomProfile) int) {
	write := func(w *wire.Writer, v *RoomProfile) {
		codec := roomProfileCodec.Get()
		present := v != nil
		w.WriteFramed(codec.Size(v, present), func(w *wire.Writer) { codec.Encode(w, v, present) })
	}
	read := func(r *wire.Reader) (*RoomProfile, error) {
		frame, err := r.ReadBytesFrame()
		if err != nil {
			return nil, err
		}
		sub := wire.NewReader(frame)
		var v RoomProfile
		present, err := roomProfileCodec.Get().Decode(sub, &v, nil)
		if err != nil {
			return nil, err
		}
		if !present {
			return nil, nil
		}
		return &v, nil
	}
	size := func(v *RoomProfile) int {
		codec := roomProfileCodec.Get()
		return wire.SizeFramed(codec.Size(v, v != nil))
	}
	return wire.ByteLength, write, read, size
}

// TextMessage is a chat line posted by a player.
type TextMessage struct {
	Author string
	Body   string
}

// SystemNotice is a server-originated chat event with no author.
type SystemNotice struct {
	Text string
}

// ChatEvent is a closed-set polymorphic chat broadcast (spec.md §3.5
// "polymorphic base types: the explicit closed set of subtype ids"):
// exactly one of Text/Notice is set, selecting the subtype id written on
// the wire.
type ChatEvent struct {
	Text   *TextMessage
	Notice *SystemNotice
}

func (e ChatEvent) subtypeID() uint32 {
	switch {
	case e.Text != nil:
		return 1
	case e.Notice != nil:
		return 2
	default:
		return 0
	}
}

// chatEventCodec dispatches ChatEvent's two subtypes by their numeric id
// (spec.md §4.1 "Record" > "Polymorphic class"), cached once per process.
var chatEventCodec = schema.NewLazy(func() *schema.PolyCodec[ChatEvent] {
	return schema.NewPolyCodec[ChatEvent]("room.chat", []schema.Subtype[ChatEvent]{
		{
			ID: 1,
			Encode: func(w *wire.Writer, v ChatEvent) {
				w.WriteString(v.Text.Author)
				w.WriteString(v.Text.Body)
			},
			Size: func(v ChatEvent) int {
				return wire.SizeString(v.Text.Author) + wire.SizeString(v.Text.Body)
			},
			Decode: func(r *wire.Reader, warner wire.Warner) (ChatEvent, error) {
				author, err := r.ReadString()
				if err != nil {
					return ChatEvent{}, err
				}
				body, err := r.ReadString()
				if err != nil {
					return ChatEvent{}, err
				}
				return ChatEvent{Text: &TextMessage{Author: author, Body: body}}, nil
			},
		},
		{
			ID: 2,
			Encode: func(w *wire.Writer, v ChatEvent) {
				w.WriteString(v.Notice.Text)
			},
			Size: func(v ChatEvent) int {
				return wire.SizeString(v.Notice.Text)
			},
			Decode: func(r *wire.Reader, warner wire.Warner) (ChatEvent, error) {
				text, err := r.ReadString()
				if err != nil {
					return ChatEvent{}, err
				}
				return ChatEvent{Notice: &SystemNotice{Text: text}}, nil
			},
		},
	})
})

// chatEventIO adapts chatEventCodec's subtype-id+fields form (unframed)
// to the ByteLength value form Queue's Down type needs.
func chatEventIO() (wire.Type, func(*wire.Writer, ChatEvent), func(*wire.Reader) (ChatEvent, error), func(ChatEvent) int) {
	write := func(w *wire.Writer, v ChatEvent) {
		codec := chatEventCodec.Get()
		id := v.subtypeID()
		w.WriteFramed(codec.Size(v, id), func(w *wire.Writer) { codec.Encode(w, v, id) })
	}
	read := func(r *wire.Reader) (ChatEvent, error) {
		frame, err := r.ReadBytesFrame()
		if err != nil {
			return ChatEvent{}, err
		}
		v, _, err := chatEventCodec.Get().Decode(wire.NewReader(frame), nil)
		return v, err
	}
	size := func(v ChatEvent) int {
		codec := chatEventCodec.Get()
		return wire.SizeFramed(codec.Size(v, v.subtypeID()))
	}
	return wire.ByteLength, write, read, size
}

// Root is the well-known root DObject: the meta queue plus a collection
// of rooms keyed by name.
type Root struct {
	obj   *dobject.Object
	Meta  *dobject.Queue[dobject.MetaUp, dobject.MetaDown]
	Rooms *dobject.Collection[*Room]

	mu    sync.Mutex
	local map[string]*Room // path key -> room, populated as rooms are first resolved
}

func (r *Root) Obj() *dobject.Object { return r.obj }

// DeliverRelay routes a delta relayed from another process to the local
// Room it names, if that room has ever been resolved on this process
// (SPEC_FULL.md §3 "internal/fanout"); matches the fanout.Bus.Subscribe
// handler signature so it can be passed directly as the subscription
// callback.
func (r *Root) DeliverRelay(pathKey string, payload []byte) {
	r.mu.Lock()
	room, ok := r.local[pathKey]
	r.mu.Unlock()
	if !ok {
		return
	}
	room.obj.DeliverRelayed(payload)
}

// CanAccessRoom gates room resolution; a room named "private" is denied,
// matching spec.md §8 scenario 6's access-denial test.
func CanAccessRoom(_ context.Context, _ any, key string) (bool, error) {
	return key != "private", nil
}

// NewRoot constructs a server-side root object. bus may be nil to run
// single-process with no cross-process fan-out; when set, every Room's
// deltas are republished on first resolution, and DeliverRelay can route
// deltas received from other processes back to that same Room.
func NewRoot(warner wire.Warner, bus RelayBus) *Root {
	root := &Root{obj: dobject.NewObject(nil, dobject.BackingServer, dobject.SideServer, warner), local: make(map[string]*Room)}
	root.Meta = dobject.NewMetaQueue()
	root.obj.RegisterField(root.Meta)
	root.Rooms = dobject.NewCollection[*Room](fieldRooms, func(key string) *Room {
		return newRoom(key, dobject.BackingServer, dobject.SideServer, warner)
	}, CanAccessRoom, nil)
	root.obj.RegisterField(root.Rooms)
	root.Rooms.OnSubscribed(func(room *Room) {
		root.mu.Lock()
		root.local[room.obj.Path().Key()] = room
		root.mu.Unlock()
		if bus != nil {
			room.obj.SetRelayPublisher(func(msg []byte) {
				_ = bus.PublishDelta(room.obj.Path(), msg)
			})
		}
	})
	return root
}

// NewClientRoot constructs a client-side mirror of the root object. It
// registers only the meta queue; Rooms is left nil, since the client
// reaches rooms through clientconn.Resolve rather than a local
// collection. The server root's Sync carries no field data for either
// field (a queue and a collection both write nothing), so the missing
// Rooms field does not affect Sync framing.
func NewClientRoot(warner wire.Warner) *Root {
	root := &Root{obj: dobject.NewObject(nil, dobject.BackingServer, dobject.SideClient, warner)}
	root.Meta = dobject.NewMetaQueue()
	root.obj.RegisterField(root.Meta)
	return root
}

// Room is a chat room: a display name, a set of present players, a
// chat queue (plain-string posts, polymorphic ChatEvent broadcasts), and
// an optional nested profile record.
type Room struct {
	obj     *dobject.Object
	Name    *dobject.Value[string]
	Players *dobject.Set[string]
	Chat    *dobject.Queue[string, ChatEvent]
	Profile *dobject.Value[*RoomProfile]
}

func (r *Room) Obj() *dobject.Object { return r.obj }

func newRoom(key string, backing dobject.Backing, side dobject.Side, warner wire.Warner) *Room {
	path := dobject.Path{{CollectionID: fieldRooms, Key: key}}
	room := &Room{obj: dobject.NewObject(path, backing, side, warner)}

	swt, sw, sr, ss := stringIO()
	room.Name = dobject.NewValue[string](roomFieldName, "roomName", swt, sw, sr, ss)
	room.obj.RegisterField(room.Name)
	if side == dobject.SideServer {
		room.Name.Set(key)
	}

	ewt, ew, er, es := stringIO()
	room.Players = dobject.NewSet[string](roomFieldPlayers, ewt, ew, er, es)
	room.obj.RegisterField(room.Players)

	upWT, writeUp, readUp, sizeUp := stringIO()
	downWT, writeDown, readDown, sizeDown := chatEventIO()
	room.Chat = dobject.NewQueue[string, ChatEvent](roomFieldChat, upWT, writeUp, readUp, sizeUp, downWT, writeDown, readDown, sizeDown)
	room.obj.RegisterField(room.Chat)

	pwt, pw, pr, ps := profileIO()
	room.Profile = dobject.NewValue[*RoomProfile](roomFieldProfile, "roomProfile", pwt, pw, pr, ps)
	room.obj.RegisterField(room.Profile)

	return room
}

// NewClientRoom constructs the client-side mirror of a Room resolved at
// id/path, to be filled in by the server's Sync.
func NewClientRoom(id uint32, path dobject.Path) dobject.Resolvable {
	room := newRoom(path[len(path)-1].Key, dobject.BackingServer, dobject.SideClient, nil)
	room.obj.SetID(id)
	return room
}
