// Package bot routes inbound chat messages through the address dialog and
// the snapshot pipeline and turns every outcome into exactly one reply.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/ggonzalez94/lpman/internal/dialog"
	clierr "github.com/ggonzalez94/lpman/internal/errors"
	"github.com/ggonzalez94/lpman/internal/extract"
	"github.com/ggonzalez94/lpman/internal/model"
	"github.com/ggonzalez94/lpman/internal/report"
	"github.com/ggonzalez94/lpman/internal/session"
)

const (
	HelpText        = "Hi there, I am LP Man! I can help you manage your Liquidity Provider position in various DEX pair pools\n\n/setaddress - Set your crypto address\n/positions - Display active position for owner address"
	NoAddressText   = "Please set your crypto address first. /setaddress"
	InvalidURLText  = "Please provide a valid HTTPS URL."
	InternalErrText = "Internal error occurred"
	TimeoutText     = "Bot takes too much time to handle this..."
	errorPrefix     = "⚠️  "
)

// DefaultTimeout keeps a handler under the 60s webhook limit of the Bot API.
const DefaultTimeout = 50 * time.Second

func NoPositionsText(owner string) string {
	return fmt.Sprintf("No active positions found for your address %s", owner)
}

// Message is one inbound chat message.
type Message struct {
	UserID  int64
	ChatID  int64
	Text    string
	HasText bool
}

// Reply is one outbound chat message.
type Reply struct {
	Text           string
	HTML           bool
	RemoveKeyboard bool
	Silent         bool
	// WebAppURL attaches an inline "Open" button launching the URL as a web app.
	WebAppURL string
}

// Sender delivers replies. A recipient that can no longer be reached is
// reported as a CodeDelivery error.
type Sender interface {
	Send(ctx context.Context, chatID int64, r Reply) error
	Typing(ctx context.Context, chatID int64) error
}

type Snapshotter interface {
	Take(ctx context.Context, owner string) (model.Snapshot, error)
}

type Options struct {
	// Timeout bounds one message end to end, replies included.
	Timeout time.Duration
	// TypingInterval repeats the typing indicator; zero disables it.
	TypingInterval time.Duration
	Logger         *slog.Logger
}

type Dispatcher struct {
	sessions  session.Store
	snapshots Snapshotter
	sender    Sender
	timeout   time.Duration
	typing    time.Duration
	logger    *slog.Logger
}

func NewDispatcher(sessions session.Store, snapshots Snapshotter, sender Sender, opts Options) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Dispatcher{
		sessions:  sessions,
		snapshots: snapshots,
		sender:    sender,
		timeout:   opts.Timeout,
		typing:    opts.TypingInterval,
		logger:    opts.Logger,
	}
}

// Handle processes one message. It never returns an error: failures are
// logged and answered with a single reply, except undeliverable replies,
// which are only logged.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) {
	runCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	stopTyping := d.keepTyping(runCtx, msg.ChatID)
	done := make(chan error, 1)
	go func() { done <- d.route(runCtx, msg) }()

	err := awaitRoute(runCtx, done)
	stopTyping()
	if err != nil {
		d.handleError(ctx, msg, err)
	}
}

// awaitRoute waits for route or the deadline. A result that is already
// available wins over an expired deadline.
func awaitRoute(ctx context.Context, done <-chan error) error {
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		select {
		case err := <-done:
			return err
		default:
		}
		return clierr.Wrap(clierr.CodeTimeout, "handler deadline exceeded", ctx.Err())
	}
}

func (d *Dispatcher) route(ctx context.Context, msg Message) error {
	key := session.Key(msg.UserID, msg.ChatID)
	sess, err := d.sessions.Load(ctx, key)
	if err != nil {
		return fmt.Errorf("load session %s: %w", key, err)
	}

	ev := dialog.Classify(msg.Text, msg.HasText)
	if ev.Kind != dialog.EventText && ev.Kind != dialog.EventNonText {
		d.logger.Info("inbound command", "session", key, "command", dialog.CommandName(msg.Text))
	}

	before := sess
	next, effects := dialog.Transition(sess.Dialog, ev)
	sess.Dialog = next
	for _, e := range effects {
		if e.Kind == dialog.EffectSaveAddress {
			sess.OwnerAddress = e.Address
		}
	}
	if sess != before {
		if err := d.sessions.Save(ctx, key, sess); err != nil {
			return fmt.Errorf("save session %s: %w", key, err)
		}
	}
	if len(effects) > 0 {
		for _, e := range effects {
			if e.Kind != dialog.EffectReply {
				continue
			}
			if err := d.sender.Send(ctx, msg.ChatID, Reply{Text: e.Text, RemoveKeyboard: e.RemoveKeyboard, Silent: e.Silent}); err != nil {
				return err
			}
		}
		return nil
	}

	switch ev.Kind {
	case dialog.EventNonText:
		return nil
	case dialog.EventCommand:
		switch dialog.CommandName(msg.Text) {
		case "start", "help":
			return d.sender.Send(ctx, msg.ChatID, Reply{Text: HelpText})
		case "positions":
			return d.positions(ctx, msg.ChatID, sess)
		}
	}
	return d.linkPreview(ctx, msg)
}

func (d *Dispatcher) positions(ctx context.Context, chatID int64, sess session.UserSession) error {
	if sess.OwnerAddress == "" {
		return d.sender.Send(ctx, chatID, Reply{Text: NoAddressText})
	}

	start := time.Now()
	snap, err := d.snapshots.Take(ctx, sess.OwnerAddress)
	if clierr.Is(err, clierr.CodeNoPositions) {
		return d.sender.Send(ctx, chatID, Reply{Text: NoPositionsText(sess.OwnerAddress)})
	}
	if err != nil {
		return err
	}
	d.logger.Info("snapshot ready", "owner", sess.OwnerAddress, "position", snap.Position.ID, "occupancy", snap.Occupancy, "duration", time.Since(start))
	return d.sender.Send(ctx, chatID, Reply{Text: report.Format(snap), HTML: true})
}

func (d *Dispatcher) linkPreview(ctx context.Context, msg Message) error {
	u, err := url.Parse(strings.TrimSpace(msg.Text))
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return d.sender.Send(ctx, msg.ChatID, Reply{Text: InvalidURLText})
	}
	return d.sender.Send(ctx, msg.ChatID, Reply{Text: u.String(), WebAppURL: u.String()})
}

func (d *Dispatcher) handleError(parent context.Context, msg Message, err error) {
	attrs := []any{"chat", msg.ChatID, "code", clierr.CodeOf(err).String(), "error", err}
	if field, ok := extract.MissingField(err); ok {
		attrs = append(attrs, "field", string(field))
	}

	if clierr.CodeOf(err) == clierr.CodeDelivery {
		d.logger.Warn("reply not delivered", attrs...)
		return
	}

	text := InternalErrText
	if clierr.CodeOf(err) == clierr.CodeTimeout || errors.Is(err, context.DeadlineExceeded) {
		text = TimeoutText
		d.logger.Warn("handler timed out", attrs...)
	} else {
		d.logger.Error("handler failed", attrs...)
	}

	// The handler context may be spent; the error reply gets its own budget.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), 10*time.Second)
	defer cancel()
	if sendErr := d.sender.Send(ctx, msg.ChatID, Reply{Text: errorPrefix + text}); sendErr != nil {
		d.logger.Warn("error reply not delivered", "chat", msg.ChatID, "error", sendErr)
	}
}

func (d *Dispatcher) keepTyping(ctx context.Context, chatID int64) func() {
	if d.typing <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(d.typing)
		defer ticker.Stop()
		for {
			if err := d.sender.Typing(ctx, chatID); err != nil && ctx.Err() == nil {
				d.logger.Debug("typing indicator failed", "chat", chatID, "error", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return cancel
}
