package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/wb-go/wbf/zlog"

	"questionbox/internal/client/connectivity"
	"questionbox/internal/client/offline"
	"questionbox/internal/client/platform"
	"questionbox/internal/client/pushtoken"
	"questionbox/internal/client/remote"
	"questionbox/internal/client/store"
	"questionbox/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zlog.Init()
	cfg := config.Must()

	st, err := store.Open(cfg.Client.StorePath)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to open local store")
	}

	api := remote.NewClient(cfg.Client.ServerURL, cfg.Client.RequestTimeout)

	watcher := connectivity.NewWatcher(api.Healthy, cfg.Client.ProbeInterval)

	queue := offline.NewQueue(st, api, watcher)
	tokens := pushtoken.NewManager(st, api, watcher)
	provider := platform.NewStaticProvider(cfg.Client.PushToken, cfg.Client.DeviceType)

	go watcher.Run(ctx)
	go queue.Run(ctx)
	go tokens.Run(ctx)

	granted, err := provider.RequestPermission(ctx)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to request notification permission")
	}

	if granted {
		token, err := provider.AcquireToken(ctx)
		if err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to acquire push token")
		} else {
			if err := tokens.SaveLocally(token, provider.DeviceType()); err != nil {
				zlog.Logger.Error().Err(err).Msg("failed to save push token locally")
			}

			tokens.RegisterWithServer(ctx, token, provider.DeviceType())
		}
	} else {
		zlog.Logger.Info().Msg("notification permission not granted, push disabled")
	}

	count, err := queue.PendingCount()
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to count pending questions")
	} else if count > 0 {
		zlog.Logger.Info().Int64("pending", count).Msg("questions waiting for synchronization")
	}

	<-ctx.Done()
	zlog.Logger.Info().Msg("shutdown signal received")
}
