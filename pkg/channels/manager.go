package channels

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/quietroomlabs/haven/pkg/bus"
	"github.com/quietroomlabs/haven/pkg/config"
	"github.com/quietroomlabs/haven/pkg/logger"
)

// Manager owns the configured channels and pumps outbound replies from
// the bus back to the channel they belong to.
type Manager struct {
	channels map[string]Channel
	bus      *bus.MessageBus
	config   *config.Config
	cancel   context.CancelFunc
	mu       sync.RWMutex
}

func NewManager(cfg *config.Config, messageBus *bus.MessageBus) (*Manager, error) {
	m := &Manager{
		channels: make(map[string]Channel),
		bus:      messageBus,
		config:   cfg,
	}
	if err := m.initChannels(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) initChannels() error {
	if strings.TrimSpace(m.config.Channels.Discord.Token) == "" {
		logger.InfoC("channels", "Discord token not configured, no channels enabled")
		return nil
	}
	discord, err := NewDiscordChannel(m.config.Channels.Discord, m.bus)
	if err != nil {
		return fmt.Errorf("initialize Discord channel: %w", err)
	}
	m.channels["discord"] = discord
	logger.InfoCF("channels", "Channel initialization completed", map[string]interface{}{
		"enabled_channels": len(m.channels),
	})
	return nil
}

func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var started []string
	for name, channel := range m.channels {
		if err := channel.Start(ctx); err != nil {
			for _, s := range started {
				_ = m.channels[s].Stop(ctx)
			}
			return fmt.Errorf("start channel %s: %w", name, err)
		}
		started = append(started, name)
	}

	dispatchCtx, cancel := context.WithCancel(ctx)
	if m.cancel != nil {
		m.cancel()
	}
	m.cancel = cancel
	go m.dispatchOutbound(dispatchCtx)

	logger.InfoCF("channels", "Channels started", map[string]interface{}{"count": len(started)})
	return nil
}

func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	for name, channel := range m.channels {
		if err := channel.Stop(ctx); err != nil {
			logger.ErrorCF("channels", "Error stopping channel", map[string]interface{}{
				"channel": name,
				"error":   err.Error(),
			})
		}
	}
	return nil
}

func (m *Manager) dispatchOutbound(ctx context.Context) {
	for {
		msg, ok := m.bus.ConsumeOutbound(ctx)
		if !ok {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		m.mu.RLock()
		channel, exists := m.channels[msg.Channel]
		m.mu.RUnlock()
		if !exists {
			logger.WarnCF("channels", "Unknown channel for outbound message", map[string]interface{}{
				"channel": msg.Channel,
			})
			continue
		}
		if err := channel.Send(ctx, msg); err != nil {
			logger.ErrorCF("channels", "Error sending message to channel", map[string]interface{}{
				"channel": msg.Channel,
				"error":   err.Error(),
			})
		}
	}
}

// HasChannels reports whether any channel adapter is configured.
func (m *Manager) HasChannels() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.channels) > 0
}
