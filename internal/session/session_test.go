package session

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"odin-dobj/internal/dobject"
	"odin-dobj/internal/wire"
)

type roomObject struct {
	obj  *dobject.Object
	name *dobject.Value[string]
}

func (r *roomObject) Obj() *dobject.Object { return r.obj }

type rootObject struct {
	obj   *dobject.Object
	meta  *dobject.Queue[dobject.MetaUp, dobject.MetaDown]
	rooms *dobject.Collection[*roomObject]
}

func (r *rootObject) Obj() *dobject.Object { return r.obj }

func newRoot() *rootObject {
	root := &rootObject{obj: dobject.NewObject(nil, dobject.BackingServer, dobject.SideServer, nil)}
	root.meta = dobject.NewMetaQueue()
	root.obj.RegisterField(root.meta)
	root.rooms = dobject.NewCollection[*roomObject](1, func(key string) *roomObject {
		path := dobject.Path{{CollectionID: 1, Key: key}}
		r := &roomObject{obj: dobject.NewObject(path, dobject.BackingServer, dobject.SideServer, nil)}
		wt, w, rd, sz := stringIO()
		r.name = dobject.NewValue[string](1, "name", wt, w, rd, sz)
		r.obj.RegisterField(r.name)
		r.name.Set(key)
		return r
	}, nil, nil)
	root.obj.RegisterField(root.rooms)
	return root
}

func stringIO() (wire.Type, func(*wire.Writer, string), func(*wire.Reader) (string, error), func(string) int) {
	return wire.ByteLength,
		func(w *wire.Writer, v string) { w.WriteString(v) },
		func(r *wire.Reader) (string, error) { return r.ReadString() },
		func(v string) int { return wire.SizeString(v) }
}

func newTestSession(t *testing.T) (*Session, *rootObject) {
	t.Helper()
	root := newRoot()
	s := New(zap.NewNop(), nil, root, nil, 16)
	s.OnAuthenticate(root.meta)
	return s, root
}

func TestSubscribeResolvesAndSyncs(t *testing.T) {
	s, _ := newTestSession(t)

	frame := wire.NewWriter(16)
	frame.WriteVarUint(0) // root object id
	body := wire.NewWriter(8)
	body.WriteTag(uint64(dobject.MetaQueueFieldID), wire.ByteLength)
	writeSubscribeUp(body, dobject.SubscribeRequest{ID: 5, Path: dobject.Path{{CollectionID: 1, Key: "lobby"}}})
	frame.WriteRaw(body.Bytes())

	if err := s.HandleInbound(context.Background(), frame.Bytes()); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}

	var gotSync bool
	select {
	case <-s.Outbound():
		gotSync = true
	default:
	}
	if !gotSync {
		t.Fatal("expected at least one outbound frame (Sync for the subscribed room)")
	}
}

func TestUnsubscribeRemovesHandle(t *testing.T) {
	s, _ := newTestSession(t)
	s.mu.Lock()
	s.byID[5] = &roomObject{obj: dobject.NewObject(dobject.Path{{CollectionID: 1, Key: "lobby"}}, dobject.BackingServer, dobject.SideServer, nil)}
	s.mu.Unlock()

	s.unsubscribe(&dobject.UnsubscribeRequest{ID: 5})

	s.mu.Lock()
	_, exists := s.byID[5]
	s.mu.Unlock()
	if exists {
		t.Fatal("expected handle 5 to be removed after unsubscribe")
	}
}

func TestCloseNotifiesDisconnect(t *testing.T) {
	s, root := newTestSession(t)
	var gotOld, gotNew dobject.State
	root.obj.OnStateChange(func(old, new dobject.State) { gotOld, gotNew = old, new })
	root.obj.SetState(dobject.StateActive)

	s.Close()

	if gotNew != dobject.StateDisconnected {
		t.Fatalf("state after Close = %v, want Disconnected (was %v)", gotNew, gotOld)
	}
}

// writeSubscribeUp is a test-local helper building the same framed
// MetaUp.Subscribe payload the wire codec in metaqueue.go produces,
// without exporting that codec outside the dobject package.
func writeSubscribeUp(w *wire.Writer, req dobject.SubscribeRequest) {
	inner := wire.NewWriter(16)
	inner.WriteVarUint(1) // metaUpSubscribe discriminant
	inner.WriteVarUint(uint64(req.ID))
	dobject.WritePath(inner, req.Path)
	w.WriteFramed(inner.Len(), func(w *wire.Writer) { w.WriteRaw(inner.Bytes()) })
}
