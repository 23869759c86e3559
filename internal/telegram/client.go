package telegram

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"go.uber.org/zap"

	"github.com/gnomegl/teleinvite/internal/config"
	"github.com/gnomegl/teleinvite/internal/invite"
)

const (
	DefaultMaxFloodWait = 5 * time.Minute
	DefaultRetries      = 3
)

// Dialer opens account sessions stored under Home.
type Dialer struct {
	Config *config.Config
	Home   string
	Auth   auth.UserAuthenticator
	Logger *zap.Logger
	// MaxFloodWait is the longest FLOOD_WAIT that is slept through. Longer
	// waits end the account.
	MaxFloodWait time.Duration
	Retries      uint64
}

func (d *Dialer) Open(ctx context.Context, name string, fn func(ctx context.Context, acct invite.Account) error) error {
	if d.Config == nil || d.Config.API == nil {
		return fmt.Errorf("API credentials are not configured")
	}
	log := d.logger().With(zap.String("session", name))

	sessionPath := config.GetSessionPath(d.Home, name)
	if err := os.MkdirAll(filepath.Dir(sessionPath), 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	opts := telegram.Options{
		SessionStorage: &session.FileStorage{Path: sessionPath},
		Logger:         log.Named("telegram"),
	}
	if p := d.Config.Proxy; p != nil && p.Enabled {
		resolver, err := NewResolver(p)
		if err != nil {
			return fmt.Errorf("failed to set up proxy: %w", err)
		}
		opts.Resolver = resolver
		log.Debug("Using proxy", zap.String("proxy", p.URL().String()))
	}

	client := telegram.NewClient(d.Config.API.APIID, d.Config.API.APIHash, opts)

	return client.Run(ctx, func(ctx context.Context) error {
		flow := auth.NewFlow(d.Auth, auth.SendCodeOptions{})
		if err := client.Auth().IfNecessary(ctx, flow); err != nil {
			return fmt.Errorf("failed to authenticate: %w", err)
		}

		self, err := client.Self(ctx)
		if err != nil {
			return fmt.Errorf("failed to get current user: %w", err)
		}
		log.Info("Logged in", zap.Int64("user_id", self.ID), zap.String("username", self.Username))

		acct := &Account{
			api:   client.API(),
			self:  self.ID,
			log:   log,
			retry: newRetrier(d.maxFloodWait(), d.retries(), log),
		}
		return fn(ctx, acct)
	})
}

func (d *Dialer) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

func (d *Dialer) maxFloodWait() time.Duration {
	if d.MaxFloodWait <= 0 {
		return DefaultMaxFloodWait
	}
	return d.MaxFloodWait
}

func (d *Dialer) retries() uint64 {
	if d.Retries == 0 {
		return DefaultRetries
	}
	return d.Retries
}
