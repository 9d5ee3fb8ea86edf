package app

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ggonzalez94/lpman/internal/bot"
	"github.com/ggonzalez94/lpman/internal/config"
	clierr "github.com/ggonzalez94/lpman/internal/errors"
	"github.com/ggonzalez94/lpman/internal/session"
	"github.com/ggonzalez94/lpman/internal/snapshot"
)

const typingInterval = 4 * time.Second

func (s *runtimeState) newBotCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the chat bot with long polling",
		RunE: func(cmd *cobra.Command, args []string) error {
			tg, closeBot, err := s.startBot(cmd.Context(), "")
			if err != nil {
				return err
			}
			defer closeBot()

			s.logger.Info("bot started", "mode", "polling", "env", s.settings.AppEnv, "sessions", s.settings.SessionDriver)
			tg.Poll(cmd.Context())
			s.logger.Info("bot stopped")
			return nil
		},
	}
}

func (s *runtimeState) newWebhookCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "webhook",
		Short: "Serve the chat bot behind an HTTPS webhook",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tg, closeBot, err := s.startBot(ctx, s.settings.WebhookSecret)
			if err != nil {
				return err
			}
			defer closeBot()

			if base := strings.TrimSpace(s.settings.WebhookURL); base != "" {
				public := strings.TrimRight(base, "/") + s.settings.WebhookPath
				if err := tg.RegisterWebhook(ctx, public, s.settings.WebhookSecret); err != nil {
					return err
				}
				s.logger.Info("webhook registered", "url", public)
			}

			server := &bot.WebhookServer{
				Addr:    s.settings.WebhookAddr,
				Handler: bot.NewWebhookRouter(s.settings.WebhookPath, tg.WebhookHandler(), s.logger),
				Process: tg.ServeWebhook,
				Logger:  s.logger,
			}
			if err := server.Run(ctx); err != nil {
				return clierr.Wrap(clierr.CodeInternal, "serve webhook", err)
			}
			s.logger.Info("webhook stopped")
			return nil
		},
	}
}

// startBot wires the session store, the chat transport and the dispatcher.
// The returned func releases the session store.
func (s *runtimeState) startBot(ctx context.Context, webhookSecret string) (*bot.Telegram, func(), error) {
	sessions, err := s.openSessions(ctx)
	if err != nil {
		return nil, nil, err
	}
	tg, err := bot.NewTelegram(bot.TelegramOptions{
		Token:         s.settings.Token(),
		WebhookSecret: webhookSecret,
		Logger:        s.logger,
	})
	if err != nil {
		_ = sessions.Close()
		return nil, nil, err
	}

	d := bot.NewDispatcher(sessions, snapshot.New(s.positions, s.extractor, s.logger), tg, bot.Options{
		Timeout:        s.settings.Timeout,
		TypingInterval: typingInterval,
		Logger:         s.logger,
	})
	tg.Bind(d)
	return tg, func() { _ = sessions.Close() }, nil
}

func (s *runtimeState) openSessions(ctx context.Context) (session.Store, error) {
	switch s.settings.SessionDriver {
	case config.DriverRedis:
		store, err := session.OpenRedis(ctx, session.RedisOptions{
			Addr:     s.settings.RedisAddr,
			Password: s.settings.RedisPassword,
			DB:       s.settings.RedisDB,
			Prefix:   s.settings.RedisPrefix,
		})
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeConfig, "open redis session store", err)
		}
		return store, nil
	default:
		store, err := session.OpenSQLite(s.settings.SessionPath, s.settings.SessionLockPath)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeInternal, "open session store", err)
		}
		return store, nil
	}
}
