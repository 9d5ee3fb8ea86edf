package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"

	clierr "github.com/ggonzalez94/lpman/internal/errors"
	"github.com/ggonzalez94/lpman/internal/model"
	"github.com/ggonzalez94/lpman/internal/render"
)

const (
	DefaultBaseURL = "https://pancakeswap.finance"
	DefaultChain   = "bsc"
	DefaultSettle  = 5 * time.Second
	DefaultWidth   = 1920
	DefaultHeight  = 1080
)

// Config controls where and how position pages are rendered.
type Config struct {
	BaseURL  string
	Chain    string
	Settle   time.Duration
	Width    int
	Height   int
	ExecPath string
	Headless bool
	DevTools bool
	// MaxSessions caps concurrently running browsers; zero means no cap.
	MaxSessions int
}

// FieldError reports a field whose structural path did not resolve to
// exactly one element with text, or whose text is not a number.
type FieldError struct {
	Field  Field
	Found  int
	Text   string
	Reason string
}

func (e *FieldError) Error() string {
	switch {
	case e.Reason != "":
		return fmt.Sprintf("field %s: %s (%q)", e.Field, e.Reason, e.Text)
	case e.Found == 0:
		return fmt.Sprintf("field %s: element not found", e.Field)
	default:
		return fmt.Sprintf("field %s: expected one element, found %d", e.Field, e.Found)
	}
}

// MissingField returns the field name carried by err, if any.
func MissingField(err error) (Field, bool) {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe.Field, true
	}
	return "", false
}

type Extractor struct {
	launcher render.Launcher
	cfg      Config
	layout   Layout
	logger   *slog.Logger
	slots    *semaphore.Weighted
}

func New(launcher render.Launcher, cfg Config, logger *slog.Logger) *Extractor {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Chain == "" {
		cfg.Chain = DefaultChain
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = DefaultWidth, DefaultHeight
	}
	if cfg.Settle < 0 {
		cfg.Settle = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Extractor{launcher: launcher, cfg: cfg, layout: PancakeLayout, logger: logger}
	if cfg.MaxSessions > 0 {
		e.slots = semaphore.NewWeighted(int64(cfg.MaxSessions))
	}
	return e
}

// WithLayout returns a copy of e reading fields from layout.
func (e *Extractor) WithLayout(layout Layout) *Extractor {
	cp := *e
	cp.layout = layout
	return &cp
}

// PositionURL is the detail page for one position id.
func (e *Extractor) PositionURL(positionID string) string {
	q := url.Values{}
	q.Set("chain", e.cfg.Chain)
	q.Set("persistChain", "1")
	return fmt.Sprintf("%s/liquidity/%s?%s", strings.TrimRight(e.cfg.BaseURL, "/"), url.PathEscape(positionID), q.Encode())
}

type extraction struct {
	fields model.ExtractedFields
	err    error
}

// Extract renders the position page in a fresh browser and reads every
// field of the layout. The browser is released on every return path; when
// ctx ends first the in-flight work is abandoned and the session closed.
func (e *Extractor) Extract(ctx context.Context, positionID string) (model.ExtractedFields, error) {
	start := time.Now()
	if e.slots != nil {
		if err := e.slots.Acquire(ctx, 1); err != nil {
			return model.ExtractedFields{}, e.fail(ctx, "wait for browser slot", err)
		}
		defer e.slots.Release(1)
	}
	sess, err := e.launcher.Launch(ctx, render.Options{
		Width:    e.cfg.Width,
		Height:   e.cfg.Height,
		ExecPath: e.cfg.ExecPath,
		Headless: e.cfg.Headless,
		DevTools: e.cfg.DevTools,
	})
	if err != nil {
		return model.ExtractedFields{}, e.fail(ctx, "launch browser", err)
	}
	defer func() { _ = sess.Close() }()

	done := make(chan extraction, 1)
	go func() {
		fields, err := e.run(ctx, sess, positionID)
		done <- extraction{fields: fields, err: err}
	}()

	select {
	case res := <-done:
		if res.err == nil {
			e.logger.Info("position page extracted", "position", positionID, "duration", time.Since(start))
		}
		return res.fields, res.err
	case <-ctx.Done():
		_ = sess.Close()
		return model.ExtractedFields{}, e.fail(ctx, "extract position page", ctx.Err())
	}
}

func (e *Extractor) run(ctx context.Context, sess render.Session, positionID string) (model.ExtractedFields, error) {
	target := e.PositionURL(positionID)
	e.logger.Debug("navigating", "url", target)
	if err := sess.Navigate(ctx, target); err != nil {
		return model.ExtractedFields{}, e.fail(ctx, "navigate position page", err)
	}

	if e.cfg.Settle > 0 {
		timer := time.NewTimer(e.cfg.Settle)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return model.ExtractedFields{}, e.fail(ctx, "settle position page", ctx.Err())
		}
	}

	values := make(map[Field]string, len(e.layout))
	for _, fp := range e.layout {
		texts, err := sess.QueryText(ctx, fp.Path)
		if err != nil {
			return model.ExtractedFields{}, e.fail(ctx, fmt.Sprintf("query field %s", fp.Field), err)
		}
		if len(texts) != 1 || strings.TrimSpace(texts[0]) == "" {
			return model.ExtractedFields{}, clierr.Wrap(clierr.CodeExtraction, "layout mismatch", &FieldError{Field: fp.Field, Found: len(texts)})
		}
		values[fp.Field] = strings.TrimSpace(texts[0])
	}
	return e.assemble(values)
}

func (e *Extractor) assemble(values map[Field]string) (model.ExtractedFields, error) {
	prices := make(map[Field]float64, 3)
	for _, fp := range e.layout {
		if !fp.Numeric {
			continue
		}
		v, err := parsePrice(fp.Field, values[fp.Field])
		if err != nil {
			return model.ExtractedFields{}, err
		}
		prices[fp.Field] = v
	}
	return model.ExtractedFields{
		Title:         values[FieldTitle],
		Info:          values[FieldInfo],
		Liquidity:     values[FieldLiquidity],
		UnclaimedFees: values[FieldUnclaimedFees],
		APR:           values[FieldAPR],
		MinPriceText:  values[FieldMinPrice],
		MaxPriceText:  values[FieldMaxPrice],
		CurrentText:   values[FieldCurrentPrice],
		MinPrice:      prices[FieldMinPrice],
		MaxPrice:      prices[FieldMaxPrice],
		CurrentPrice:  prices[FieldCurrentPrice],
	}, nil
}

func parsePrice(field Field, text string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return 0, clierr.Wrap(clierr.CodeExtraction, "unparsable price", &FieldError{Field: field, Found: 1, Text: text, Reason: "not a number"})
	}
	v := d.InexactFloat64()
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, clierr.Wrap(clierr.CodeExtraction, "unparsable price", &FieldError{Field: field, Found: 1, Text: text, Reason: "not a finite number"})
	}
	return v, nil
}

func (e *Extractor) fail(ctx context.Context, step string, err error) error {
	if ctx.Err() != nil {
		return clierr.Wrap(clierr.CodeTimeout, step+" abandoned", ctx.Err())
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	return clierr.Wrap(clierr.CodeExtraction, step, err)
}
