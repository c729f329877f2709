package resolver

import (
	"context"
	"testing"

	"odin-dobj/internal/dobject"
)

type testNode struct {
	obj   *dobject.Object
	rooms *dobject.Collection[*testNode]
}

func (n *testNode) Obj() *dobject.Object { return n.obj }

func newNode(id uint32, path dobject.Path, withRooms bool, canAccess func(ctx context.Context, subscriber any, key string) (bool, error)) *testNode {
	n := &testNode{obj: dobject.NewObject(path, dobject.BackingServer, dobject.SideServer, nil)}
	if withRooms {
		n.rooms = dobject.NewCollection[*testNode](1, func(key string) *testNode {
			return newNode(2, append(append(dobject.Path{}, path...), dobject.PathElem{CollectionID: 1, Key: key}), false, nil)
		}, canAccess, nil)
		n.obj.RegisterField(n.rooms)
	}
	return n
}

func TestResolveWalksCollectionHop(t *testing.T) {
	root := newNode(0, nil, true, nil)
	got, err := Resolve(context.Background(), root, dobject.Path{{CollectionID: 1, Key: "lobby"}}, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Obj().Path().String() != "/lobby" {
		t.Fatalf("unexpected resolved path: %s", got.Obj().Path())
	}
}

func TestResolveDeniesAccess(t *testing.T) {
	root := newNode(0, nil, true, func(ctx context.Context, subscriber any, key string) (bool, error) {
		return key != "vip", nil
	})
	_, err := Resolve(context.Background(), root, dobject.Path{{CollectionID: 1, Key: "vip"}}, nil)
	if _, ok := dobject.IsFriendly(err); !ok {
		t.Fatalf("expected FriendlyException, got %v", err)
	}
}

func TestResolveMissingCollectionFieldIsFriendlyError(t *testing.T) {
	root := newNode(0, nil, false, nil)
	_, err := Resolve(context.Background(), root, dobject.Path{{CollectionID: 1, Key: "x"}}, nil)
	if _, ok := dobject.IsFriendly(err); !ok {
		t.Fatalf("expected FriendlyException, got %v", err)
	}
}

func TestResolveForSubscribeReturnsCauseAndRawErr(t *testing.T) {
	root := newNode(0, nil, false, nil)
	_, fe, err := ResolveForSubscribe(context.Background(), root, dobject.Path{{CollectionID: 1, Key: "x"}}, nil)
	if fe == nil || err == nil {
		t.Fatalf("expected both a friendly cause and a raw error, got fe=%v err=%v", fe, err)
	}
}
