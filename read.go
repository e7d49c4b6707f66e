package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"gitlab.com/tinyland/lab/sysinfo-pulse/cache"
	"gitlab.com/tinyland/lab/sysinfo-pulse/collectors"
	"gitlab.com/tinyland/lab/sysinfo-pulse/collectors/sysinfo"
	"gitlab.com/tinyland/lab/sysinfo-pulse/config"
	"gitlab.com/tinyland/lab/sysinfo-pulse/display/color"
	"gitlab.com/tinyland/lab/sysinfo-pulse/display/widgets"
)

// printer writes rows and summaries as JSON, as a styled table on a
// terminal, or tab-separated otherwise.
type printer struct {
	out    *os.File
	json   bool
	styled bool
	width  int
}

func newPrinter(out *os.File, asJSON bool) *printer {
	p := &printer{out: out, json: asJSON}
	if !asJSON && color.IsTerminal(out) {
		p.styled = true
		p.width = color.Width(out)
		color.Apply(out)
	}
	return p
}

func (p *printer) rows(rows []collectors.Row) error {
	switch {
	case p.json:
		if rows == nil {
			rows = []collectors.Row{}
		}
		return p.encode(rows)
	case p.styled:
		_, err := fmt.Fprintln(p.out, widgets.RenderRows(rows, p.width))
		return err
	default:
		return widgets.WriteRows(p.out, rows)
	}
}

func (p *printer) summary(st cache.Status) error {
	switch {
	case p.json:
		return p.encode(st.Summary)
	case p.styled:
		_, err := fmt.Fprintln(p.out, widgets.RenderSummary(st, p.width))
		return err
	default:
		return widgets.WriteSummary(p.out, st.Summary)
	}
}

func (p *printer) encode(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printCached prints every cached row, newest sample first. A missing or
// uninitialized region prints nothing.
func printCached(p *printer, cfg *config.Config, logger *slog.Logger) error {
	c := openCache(cfg, logger)
	defer c.Close()
	return p.rows(collectors.CachedRows(cache.ReadOrEmpty(c, logger)))
}

func printSummary(p *printer, cfg *config.Config, logger *slog.Logger) error {
	c := openCache(cfg, logger)
	defer c.Close()
	return p.summary(cache.StatusOrZero(c, logger))
}

// printCollected samples the host once without touching the cache.
func printCollected(ctx context.Context, p *printer, logger *slog.Logger) error {
	producer := sysinfo.NewProducer(logger)
	sample, err := producer.Produce(ctx)
	if err != nil {
		return err
	}
	return p.rows(collectors.Rows(sample))
}
