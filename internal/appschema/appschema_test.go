package appschema

import (
	"context"
	"testing"

	"odin-dobj/internal/dobject"
)

func TestNewRootBuildsLobbyRoomSharedAcrossResolves(t *testing.T) {
	root := NewRoot(nil, nil)

	ctx := context.Background()
	first, err := root.Rooms.Resolve(ctx, nil, "lobby")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	second, err := root.Rooms.Resolve(ctx, nil, "lobby")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if first != second {
		t.Fatal("expected concurrent resolves of the same key to share one Room")
	}
	if first.Name.Current() != "lobby" {
		t.Fatalf("roomName = %q, want lobby", first.Name.Current())
	}
}

func TestCanAccessRoomDeniesPrivate(t *testing.T) {
	ok, err := CanAccessRoom(context.Background(), nil, "private")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected \"private\" key to be denied")
	}
	ok, err = CanAccessRoom(context.Background(), nil, "lobby")
	if err != nil || !ok {
		t.Fatalf("expected \"lobby\" key to be allowed, got ok=%v err=%v", ok, err)
	}
}

// TestRoomProfileRoundTrip exercises the nested-record codec path
// (schema.StructCodec + schema.SimpleClassCodec, cached via schema.Lazy):
// set a profile server-side, apply the resulting delta client-side, and
// confirm the struct fields survive the wire round trip.
func TestRoomProfileRoundTrip(t *testing.T) {
	server := newRoom("lobby", dobject.BackingServer, dobject.SideServer, nil)
	client := newRoom("lobby", dobject.BackingServer, dobject.SideClient, nil)

	var gotMsg []byte
	server.obj.OnMessage(func(msg []byte) { gotMsg = msg })

	server.Profile.Set(&RoomProfile{Level: 3, Description: "after-hours"})
	if gotMsg == nil {
		t.Fatal("expected a ValueChange message for Profile.Set")
	}

	if err := client.obj.ApplyMessage(gotMsg); err != nil {
		t.Fatalf("ApplyMessage: %v", err)
	}
	got := client.Profile.Current()
	if got == nil || got.Level != 3 || got.Description != "after-hours" {
		t.Fatalf("client profile = %+v, want {Level:3 Description:after-hours}", got)
	}
}

// TestChatEventPolymorphicBroadcast exercises schema.PolyCodec's closed
// subtype dispatch: a TextMessage and a SystemNotice both round-trip
// through Queue.Broadcast/ApplyMessage as the same ChatEvent field.
func TestChatEventPolymorphicBroadcast(t *testing.T) {
	server := newRoom("lobby", dobject.BackingServer, dobject.SideServer, nil)
	client := newRoom("lobby", dobject.BackingServer, dobject.SideClient, nil)

	var gotMsg []byte
	server.obj.OnMessage(func(msg []byte) { gotMsg = msg })

	var got ChatEvent
	client.Chat.OnReceive(func(ev ChatEvent) { got = ev })

	server.Chat.Broadcast(ChatEvent{Text: &TextMessage{Author: "nova", Body: "hello"}})
	if err := client.obj.ApplyMessage(gotMsg); err != nil {
		t.Fatalf("apply text message: %v", err)
	}
	if got.Text == nil || got.Text.Author != "nova" || got.Text.Body != "hello" {
		t.Fatalf("client chat event = %+v, want Text.Author=nova Text.Body=hello", got)
	}

	server.Chat.Broadcast(ChatEvent{Notice: &SystemNotice{Text: "server restarting"}})
	if err := client.obj.ApplyMessage(gotMsg); err != nil {
		t.Fatalf("apply system notice: %v", err)
	}
	if got.Notice == nil || got.Notice.Text != "server restarting" {
		t.Fatalf("client chat event = %+v, want Notice.Text=server restarting", got)
	}
}

func TestRoomProfileSyncRoundTripsNilAndPresent(t *testing.T) {
	server := newRoom("lobby", dobject.BackingServer, dobject.SideServer, nil)
	client := newRoom("lobby", dobject.BackingServer, dobject.SideClient, nil)

	sync := server.obj.EncodeSync()
	if err := client.obj.ApplyMessage(sync); err != nil {
		t.Fatalf("apply nil-profile sync: %v", err)
	}
	if client.Profile.Current() != nil {
		t.Fatalf("expected nil profile after first sync, got %+v", client.Profile.Current())
	}

	server.Profile.Set(&RoomProfile{Level: 1, Description: "staging"})
	sync = server.obj.EncodeSync()
	if err := client.obj.ApplyMessage(sync); err != nil {
		t.Fatalf("apply present-profile sync: %v", err)
	}
	got := client.Profile.Current()
	if got == nil || got.Level != 1 || got.Description != "staging" {
		t.Fatalf("client profile after second sync = %+v, want {Level:1 Description:staging}", got)
	}
}
