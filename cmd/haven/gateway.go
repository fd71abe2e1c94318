package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quietroomlabs/haven/pkg/bus"
	"github.com/quietroomlabs/haven/pkg/channels"
	"github.com/quietroomlabs/haven/pkg/checkin"
	"github.com/quietroomlabs/haven/pkg/gateway"
	"github.com/quietroomlabs/haven/pkg/logger"
)

func newGatewayCommand() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:     "gateway",
		Short:   "Run the HTTP API, Discord channel, and check-in scheduler",
		Example: "  haven gateway --debug",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.SetDebug(debug)
			defer logger.Sync()
			return runGateway()
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

// lastSeen remembers where each user last talked to us so proactive
// check-ins can be delivered on the same channel.
type lastSeen struct {
	mu    sync.RWMutex
	chats map[string]bus.OutboundMessage
}

func (l *lastSeen) record(msg bus.InboundMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.chats[msg.UserID] = bus.OutboundMessage{Channel: msg.Channel, ChatID: msg.ChatID}
}

func (l *lastSeen) lookup(userID string) (bus.OutboundMessage, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out, ok := l.chats[userID]
	return out, ok
}

func runGateway() error {
	cfg, psych, logStore, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logStore.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	messageBus := bus.New()
	defer messageBus.Close()

	seen := &lastSeen{chats: make(map[string]bus.OutboundMessage)}

	manager, err := channels.NewManager(cfg, messageBus)
	if err != nil {
		return err
	}
	if manager.HasChannels() {
		if err := manager.StartAll(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = manager.StopAll(stopCtx)
		}()
	}

	scheduler, err := checkin.New(cfg.Checkin, func(ctx context.Context, userID, message string) {
		target, ok := seen.lookup(userID)
		if !ok {
			logger.DebugCF("checkin", "No known channel for user, skipping", map[string]interface{}{
				"user_id": userID,
			})
			return
		}
		target.Content = message
		messageBus.PublishOutbound(target)
	})
	if err != nil {
		return err
	}
	go scheduler.Run(ctx)

	// Inbound pump: one turn at a time per arriving message. Sessions are
	// keyed by user, so concurrent users stay isolated inside the agent.
	go func() {
		for {
			msg, ok := messageBus.ConsumeInbound(ctx)
			if !ok {
				if ctx.Err() != nil {
					return
				}
				continue
			}
			seen.record(msg)
			reply, err := psych.ProcessMessage(ctx, msg.UserID, msg.Content)
			if err != nil {
				logger.WarnCF("gateway", "Turn persisted with errors", map[string]interface{}{
					"error":   err.Error(),
					"user_id": msg.UserID,
				})
			}
			content := reply.Text
			if reply.Notice != "" {
				content = reply.Notice + "\n\n" + content
			}
			messageBus.PublishOutbound(bus.OutboundMessage{
				Channel: msg.Channel,
				ChatID:  msg.ChatID,
				Content: content,
			})
		}
	}()

	server := gateway.NewServer(psych, cfg.Gateway.Host, cfg.Gateway.Port)
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.InfoC("gateway", "Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
