package dobject

import (
	"context"
	"testing"

	"odin-dobj/internal/wire"
)

func stringIO() (wire.Type, func(*wire.Writer, string), func(*wire.Reader) (string, error), func(string) int) {
	return wire.ByteLength,
		func(w *wire.Writer, v string) { w.WriteString(v) },
		func(r *wire.Reader) (string, error) { return r.ReadString() },
		func(v string) int { return wire.SizeString(v) }
}

func u32IO() (wire.Type, func(*wire.Writer, uint32), func(*wire.Reader) (uint32, error), func(uint32) int) {
	return wire.VarInt,
		func(w *wire.Writer, v uint32) { w.WriteVarUint(uint64(v)) },
		func(r *wire.Reader) (uint32, error) { v, err := r.ReadVarUint(); return uint32(v), err },
		func(v uint32) int { return wire.SizeVarUint(uint64(v)) }
}

func newServerObject() *Object {
	return NewObject(nil, BackingServer, SideServer, nil)
}

func newClientObject() *Object {
	return NewObject(nil, BackingServer, SideClient, nil)
}

func TestValueSetAndApply(t *testing.T) {
	wt, w, r, s := stringIO()

	server := newServerObject()
	nameServer := NewValue[string](1, "name", wt, w, r, s)
	server.RegisterField(nameServer)

	client := newClientObject()
	nameClient := NewValue[string](1, "name", wt, w, r, s)
	client.RegisterField(nameClient)

	var gotMsg []byte
	server.OnMessage(func(msg []byte) { gotMsg = msg })

	nameServer.Set("Lobby")
	if nameServer.Current() != "Lobby" {
		t.Fatalf("server value = %q, want Lobby", nameServer.Current())
	}
	if gotMsg == nil {
		t.Fatal("expected a ValueChange message to be emitted")
	}

	if err := client.ApplyMessage(gotMsg); err != nil {
		t.Fatalf("ApplyMessage: %v", err)
	}
	if nameClient.Current() != "Lobby" {
		t.Fatalf("client value = %q, want Lobby", nameClient.Current())
	}
}

func TestValueSetOnClientPanicsAuthority(t *testing.T) {
	wt, w, r, s := stringIO()
	client := newClientObject()
	name := NewValue[string](1, "name", wt, w, r, s)
	client.RegisterField(name)

	defer func() {
		rec := recover()
		if rec == nil {
			t.Fatal("expected panic on client-side Set of a server-backed field")
		}
		if _, ok := rec.(*AuthorityViolation); !ok {
			t.Fatalf("panic value = %#v, want *AuthorityViolation", rec)
		}
	}()
	name.Set("nope")
}

func TestSetNoOpSuppression(t *testing.T) {
	wt, w, r, s := stringIO()
	server := newServerObject()
	tags := NewSet[string](2, wt, w, r, s)
	server.RegisterField(tags)

	var addCount, removeCount int
	tags.OnAdd(func(string) { addCount++ })
	tags.OnRemove(func(string) { removeCount++ })

	tags.Add("red")
	tags.Add("red") // no-op: already a member
	if addCount != 1 {
		t.Fatalf("addCount = %d, want 1 (duplicate Add must not fire)", addCount)
	}

	tags.Remove("blue") // no-op: never a member
	if removeCount != 0 {
		t.Fatalf("removeCount = %d, want 0 (Remove of absent member must not fire)", removeCount)
	}

	tags.Remove("red")
	if removeCount != 1 {
		t.Fatalf("removeCount = %d, want 1", removeCount)
	}
	if tags.Contains("red") {
		t.Fatal("expected red to be removed")
	}
}

func TestSetApplySetAddSuppressesDuplicate(t *testing.T) {
	wt, w, r, s := stringIO()
	obj := newServerObject() // side doesn't matter for Apply* (no authority check)
	tags := NewSet[string](2, wt, w, r, s)
	obj.RegisterField(tags)
	tags.members["red"] = struct{}{}

	var fired int
	tags.OnAdd(func(string) { fired++ })

	body := wire.NewWriter(8)
	body.WriteString("red")
	if err := tags.ApplySetAdd(wire.NewReader(body.Bytes())); err != nil {
		t.Fatalf("ApplySetAdd: %v", err)
	}
	if fired != 0 {
		t.Fatalf("fired = %d, want 0 (duplicate element must not re-fire added)", fired)
	}
}

func TestMapNoOpSuppression(t *testing.T) {
	kwt, wk, rk, sk := stringIO()
	_, wv, rv, sv := u32IO()
	server := newServerObject()
	scores := NewMap[string, uint32](3, kwt, wire.VarInt, wk, rk, sk, wv, rv, sv, func(a, b uint32) bool { return a == b })
	server.RegisterField(scores)

	var setCount, removeCount int
	scores.OnSet(func(string, uint32) { setCount++ })
	scores.OnRemove(func(string) { removeCount++ })

	scores.Set("alice", 10)
	scores.Set("alice", 10) // no-op: same value
	if setCount != 1 {
		t.Fatalf("setCount = %d, want 1 (unchanged Set must not fire)", setCount)
	}

	scores.Set("alice", 20) // real change
	if setCount != 2 {
		t.Fatalf("setCount = %d, want 2", setCount)
	}

	scores.Remove("bob") // no-op: never present
	if removeCount != 0 {
		t.Fatalf("removeCount = %d, want 0", removeCount)
	}
}

func TestSetApplySyncDiffConvergence(t *testing.T) {
	wt, w, r, s := stringIO()
	serverObj := newServerObject()
	serverSet := NewSet[string](2, wt, w, r, s)
	serverObj.RegisterField(serverSet)
	serverSet.members["red"] = struct{}{}
	serverSet.members["green"] = struct{}{}

	clientObj := newClientObject()
	clientSet := NewSet[string](2, wt, w, r, s)
	clientObj.RegisterField(clientSet)
	clientSet.members["green"] = struct{}{}
	clientSet.members["blue"] = struct{}{}

	var added, removed []string
	clientSet.OnAdd(func(v string) { added = append(added, v) })
	clientSet.OnRemove(func(v string) { removed = append(removed, v) })

	sync := serverObj.EncodeSync()
	if err := clientObj.ApplyMessage(sync); err != nil {
		t.Fatalf("ApplyMessage(sync): %v", err)
	}

	if len(added) != 1 || added[0] != "red" {
		t.Fatalf("added = %v, want [red]", added)
	}
	if len(removed) != 1 || removed[0] != "blue" {
		t.Fatalf("removed = %v, want [blue]", removed)
	}
	if !clientSet.Contains("green") {
		t.Fatal("green should remain a member (unchanged by diff)")
	}
	if clientObj.State() != StateActive {
		t.Fatalf("state = %v, want Active after Sync", clientObj.State())
	}
}

func TestQueuePostClientOnly(t *testing.T) {
	wt, w, r, s := stringIO()
	server := newServerObject()
	chat := NewQueue[string, string](4, wt, w, r, s, wt, w, r, s)
	server.RegisterField(chat)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic: Post is client-only")
		}
	}()
	chat.Post("hi")
}

func TestQueueBroadcastReachesSubscriber(t *testing.T) {
	wt, w, r, s := stringIO()
	server := newServerObject()
	chat := NewQueue[string, string](4, wt, w, r, s, wt, w, r, s)
	server.RegisterField(chat)

	client := newClientObject()
	clientChat := NewQueue[string, string](4, wt, w, r, s, wt, w, r, s)
	client.RegisterField(clientChat)

	var got string
	clientChat.OnReceive(func(v string) { got = v })

	var msg []byte
	server.OnMessage(func(m []byte) { msg = m })
	chat.Broadcast("hello")

	if err := client.ApplyMessage(msg); err != nil {
		t.Fatalf("ApplyMessage: %v", err)
	}
	if got != "hello" {
		t.Fatalf("got = %q, want hello", got)
	}
}

func TestQueuePostDeliversToServerField(t *testing.T) {
	wt, w, r, s := stringIO()
	client := newClientObject()
	upQueue := NewQueue[string, string](4, wt, w, r, s, wt, w, r, s)
	client.RegisterField(upQueue)

	serverObj := newServerObject()
	serverQueue := NewQueue[string, string](4, wt, w, r, s, wt, w, r, s)
	serverObj.RegisterField(serverQueue)

	var got string
	serverQueue.OnPost(func(v string) { got = v })

	upQueue.SetPostSink(func(body []byte) {
		if err := serverObj.ApplyQueuePost(body); err != nil {
			t.Fatalf("ApplyQueuePost: %v", err)
		}
	})
	upQueue.Post("ping")

	if got != "ping" {
		t.Fatalf("got = %q, want ping", got)
	}
}

func TestCollectionResolveMemoizesAndChecksAccess(t *testing.T) {
	var populated []string
	col := NewCollection[string](5,
		func(key string) string { return "room:" + key },
		func(_ context.Context, _ any, key string) (bool, error) { return key != "private", nil },
		func(_ context.Context, child string) error { populated = append(populated, child); return nil },
	)

	first, err := col.Resolve(context.Background(), nil, "lobby")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	second, err := col.Resolve(context.Background(), nil, "lobby")
	if err != nil {
		t.Fatalf("Resolve (memoized): %v", err)
	}
	if first != second {
		t.Fatalf("Resolve did not memoize: %q != %q", first, second)
	}
	if len(populated) != 1 {
		t.Fatalf("populate ran %d times, want 1 (once per key)", len(populated))
	}

	_, err = col.Resolve(context.Background(), nil, "private")
	if err == nil {
		t.Fatal("expected access denial for private key")
	}
	if fe, ok := IsFriendly(err); !ok || fe.Cause != "Access denied." {
		t.Fatalf("err = %v, want FriendlyException(Access denied.)", err)
	}
}
