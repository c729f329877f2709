package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"odin-dobj/internal/appschema"
	"odin-dobj/internal/clientconn"
	"odin-dobj/internal/config"
	"odin-dobj/internal/dobject"
	"odin-dobj/internal/logging"
	"odin-dobj/internal/metrics"
)

// staticTokenSource is a demo clientconn.TokenSource that reports one fixed
// identity; a real deployment would swap this for whatever observes the
// platform's actual token source (spec.md §4.3 "Auth token refresh").
type staticTokenSource struct {
	userID, token string
}

func (s staticTokenSource) Token() (string, string, error) { return s.userID, s.token, nil }

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() // nolint:errcheck

	metricsRegistry := metrics.NewRegistry()
	warner := &metrics.CodecWarner{Registry: metricsRegistry, Logger: logger}

	root := appschema.NewClientRoot(warner)
	tokens := staticTokenSource{userID: "demo-user", token: "demo-token"}

	conn := clientconn.New(logger, metricsRegistry, tokens,
		cfg.Client.ServerURL, cfg.Client.InitialBackoff, cfg.Client.MaxBackoff, cfg.Client.HandshakeTimeout,
		root.Obj())

	lobby, disp := conn.Resolve(dobject.Path{{CollectionID: 1, Key: "lobby"}}, func(id uint32, path dobject.Path) dobject.Resolvable {
		return appschema.NewClientRoom(id, path)
	})
	defer disp.Release()

	room := lobby.(*appschema.Room)
	room.Obj().OnStateChange(func(old, new dobject.State) {
		logger.Info("lobby state changed", zap.Stringer("old", old), zap.Stringer("new", new))
		if new == dobject.StateActive {
			logger.Info("lobby synced", zap.String("roomName", room.Name.Current()))
		}
	})
	room.Players.OnAdd(func(player string) {
		logger.Info("player joined lobby", zap.String("player", player))
	})
	room.Players.OnRemove(func(player string) {
		logger.Info("player left lobby", zap.String("player", player))
	})
	room.Chat.OnReceive(func(ev appschema.ChatEvent) {
		switch {
		case ev.Text != nil:
			logger.Info("lobby chat", zap.String("author", ev.Text.Author), zap.String("body", ev.Text.Body))
		case ev.Notice != nil:
			logger.Info("lobby system notice", zap.String("text", ev.Notice.Text))
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	conn.Dispose()
	logger.Info("client shut down")
}
