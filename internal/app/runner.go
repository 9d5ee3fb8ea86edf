package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ggonzalez94/lpman/internal/address"
	"github.com/ggonzalez94/lpman/internal/config"
	clierr "github.com/ggonzalez94/lpman/internal/errors"
	"github.com/ggonzalez94/lpman/internal/extract"
	"github.com/ggonzalez94/lpman/internal/httpx"
	"github.com/ggonzalez94/lpman/internal/logx"
	"github.com/ggonzalez94/lpman/internal/model"
	"github.com/ggonzalez94/lpman/internal/out"
	"github.com/ggonzalez94/lpman/internal/render"
	"github.com/ggonzalez94/lpman/internal/report"
	"github.com/ggonzalez94/lpman/internal/snapshot"
	"github.com/ggonzalez94/lpman/internal/subgraph"
	"github.com/ggonzalez94/lpman/internal/version"
)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
	}
}

type runtimeState struct {
	runner      *Runner
	flags       config.GlobalFlags
	settings    config.Settings
	logger      *slog.Logger
	root        *cobra.Command
	lastCommand string

	mu      sync.Mutex
	sources []model.SourceTrace

	positions snapshot.PositionSource
	extractor snapshot.FieldExtractor
}

func (r *Runner) Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return r.run(ctx, &runtimeState{runner: r}, args)
}

func (r *Runner) run(ctx context.Context, state *runtimeState, args []string) int {
	root := state.newRootCommand()
	state.root = root
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := normalizeRunError(root.ExecuteContext(ctx))
	if err == nil {
		return 0
	}
	state.renderError("", err)
	return clierr.ExitCode(err)
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Liquidity provider position bot",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return clierr.Wrap(clierr.CodeConfig, "load configuration", err)
			}
			s.settings = settings
			s.lastCommand = trimRootPath(cmd.CommandPath())

			if s.logger == nil {
				logger, err := logx.New(s.runner.stderr, settings.LogLevel, settings.LogFormat)
				if err != nil {
					return clierr.Wrap(clierr.CodeConfig, "configure logging", err)
				}
				s.logger = logger
			}
			if s.positions == nil {
				s.positions = subgraph.New(httpx.New(0), settings.SubgraphEndpoint)
			}
			if s.extractor == nil {
				s.extractor = extract.New(render.NewChromeLauncher(), extractConfig(settings), s.logger)
			}
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "parse flags", err)
	})

	cmd.PersistentFlags().BoolVar(&s.flags.JSON, "json", false, "Output JSON (default)")
	cmd.PersistentFlags().BoolVar(&s.flags.Plain, "plain", false, "Output plain text")
	cmd.PersistentFlags().StringVar(&s.flags.Timeout, "timeout", "", "Deadline for one request, end to end")
	cmd.PersistentFlags().StringVar(&s.flags.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")

	cmd.AddCommand(s.newBotCommand())
	cmd.AddCommand(s.newWebhookCommand())
	cmd.AddCommand(s.newPositionsCommand())
	cmd.AddCommand(s.newSnapshotCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}

func (s *runtimeState) newPositionsCommand() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "positions",
		Short: "List open positions of an owner address",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !address.Valid(owner) {
				return clierr.New(clierr.CodeValidation, "invalid owner address")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), s.settings.Timeout)
			defer cancel()

			positions, err := s.tracedPositions().ActivePositions(ctx, strings.TrimSpace(owner))
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), positions)
		},
	}
	cmd.Flags().StringVar(&owner, "address", "", "Owner address")
	_ = cmd.MarkFlagRequired("address")
	return cmd
}

func (s *runtimeState) newSnapshotCommand() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Render the first open position of an owner and report its range occupancy",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !address.Valid(owner) {
				return clierr.New(clierr.CodeValidation, "invalid owner address")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), s.settings.Timeout)
			defer cancel()

			svc := snapshot.New(s.tracedPositions(), s.tracedExtractor(), s.logger)
			snap, err := svc.Take(ctx, strings.TrimSpace(owner))
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), model.SnapshotReport{Snapshot: snap, Report: report.Format(snap)})
		},
	}
	cmd.Flags().StringVar(&owner, "address", "", "Owner address")
	_ = cmd.MarkFlagRequired("address")
	return cmd
}

func extractConfig(settings config.Settings) extract.Config {
	return extract.Config{
		BaseURL:     settings.BaseURL,
		Chain:       settings.Chain,
		Settle:      settings.Settle,
		Width:       settings.ViewportWidth,
		Height:      settings.ViewportHeight,
		ExecPath:    settings.ChromePath,
		Headless:    settings.Headless,
		DevTools:    settings.Local(),
		MaxSessions: settings.MaxBrowsers,
	}
}

func (s *runtimeState) emitSuccess(commandPath string, data any) error {
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: true,
		Data:    data,
		Meta: model.EnvelopeMeta{
			RequestID: newRequestID(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
			Sources:   s.takeSources(),
		},
	}
	return out.Render(s.runner.stdout, env, s.settings.OutputMode)
}

func (s *runtimeState) renderError(commandPath string, err error) {
	if strings.TrimSpace(commandPath) == "" {
		commandPath = s.lastCommand
		if commandPath == "" {
			commandPath = version.CLIName
		}
	}
	message := err.Error()
	if cErr, ok := clierr.As(err); ok {
		message = cErr.Message
		if cErr.Cause != nil {
			message = fmt.Sprintf("%s: %v", cErr.Message, cErr.Cause)
		}
	}

	mode := s.settings.OutputMode
	if mode == "" {
		mode = "json"
	}
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: false,
		Error: &model.ErrorBody{
			Code:    clierr.ExitCode(err),
			Type:    clierr.CodeOf(err).String(),
			Message: message,
		},
		Meta: model.EnvelopeMeta{
			RequestID: newRequestID(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
			Sources:   s.takeSources(),
		},
	}
	_ = out.Render(s.runner.stderr, env, mode)
}

func newRequestID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func trimRootPath(path string) string {
	parts := strings.Fields(path)
	if len(parts) <= 1 {
		return path
	}
	return strings.Join(parts[1:], " ")
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	if isLikelyUsageError(err) {
		return clierr.Wrap(clierr.CodeUsage, "invalid command input", err)
	}
	return clierr.Wrap(clierr.CodeInternal, "execute command", err)
}

func isLikelyUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	patterns := []string{
		"unknown command",
		"unknown flag",
		"required flag(s)",
		"flag needs an argument",
		"requires at least",
		"requires exactly",
		"accepts ",
		"invalid argument",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
