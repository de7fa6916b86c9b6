package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/germanamz/contentcrew/cmd/contentcrew/internal/format"
	"github.com/germanamz/contentcrew/cmd/contentcrew/internal/styles"
	"github.com/germanamz/contentcrew/pkg/content"
	"github.com/germanamz/contentcrew/pkg/history"
	"github.com/mattn/go-runewidth"
	"github.com/pmezard/go-difflib/difflib"
)

const historyUsage = `Usage: contentcrew history [flags] [list | show <id> | diff <id-a> <id-b>]`

const topicColumnWidth = 40

func runHistory(args []string) error {
	var common commonFlags

	fs := flag.NewFlagSet("history", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s\n\nFlags:\n", historyUsage)
		fs.PrintDefaults()
	}
	common.register(fs)
	limit := fs.Int("limit", history.DefaultListLimit, "number of runs to list")
	_ = fs.Parse(args)

	cfg, _, err := common.setup(io.Discard)
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		return errors.New("history is disabled in the configuration")
	}

	ctx := context.Background()
	store, err := history.Open(ctx, cfg.History.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	rest := fs.Args()
	sub := "list"
	if len(rest) > 0 {
		sub, rest = rest[0], rest[1:]
	}

	switch {
	case sub == "list" && len(rest) == 0:
		return listRuns(ctx, store, os.Stdout, *limit)
	case sub == "show" && len(rest) == 1:
		format.IsDarkBG = lipgloss.HasDarkBackground()
		format.InitMarkdownRenderer(100)
		return showRun(ctx, store, os.Stdout, rest[0])
	case sub == "diff" && len(rest) == 2:
		return diffRuns(ctx, store, os.Stdout, rest[0], rest[1])
	default:
		return errors.New(historyUsage)
	}
}

// listRuns prints one line per run, newest first.
func listRuns(ctx context.Context, store *history.Store, w io.Writer, limit int) error {
	runs, err := store.List(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, styles.DimStyle.Render("No runs recorded yet."))
		return nil
	}

	for _, r := range runs {
		status := styles.SuccessStyle.Render(r.Status)
		if r.Status == history.StatusFailed {
			status = styles.ToolErrorStyle.Render(r.Status)
		}
		topic := runewidth.FillRight(format.Truncate(r.Topic, topicColumnWidth), topicColumnWidth+3)

		fmt.Fprintf(w, "%s  %s  %s  %s  %s\n",
			r.ID,
			styles.DimStyle.Render(r.CreatedAt.Local().Format("2006-01-02 15:04")),
			topic,
			status,
			styles.DimStyle.Render(fmt.Sprintf("t=%.1f n=%d %s", r.Temperature, r.NumResults, format.FmtDuration(r.Duration))),
		)
	}
	return nil
}

// showRun renders one run like the generate command does.
func showRun(ctx context.Context, store *history.Store, w io.Writer, id string) error {
	r, err := store.Get(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, styles.TitleStyle.Render(r.Topic))
	fmt.Fprintln(w, styles.DimStyle.Render(fmt.Sprintf("%s · %s · temperature %.1f · %d results · %s in / %s out · %s",
		r.CreatedAt.Local().Format("2006-01-02 15:04"),
		r.Model,
		r.Temperature,
		r.NumResults,
		format.FmtTokens(r.InputTokens),
		format.FmtTokens(r.OutputTokens),
		format.FmtDuration(r.Duration),
	)))
	fmt.Fprintln(w)

	if r.Status == history.StatusFailed {
		fmt.Fprintln(w, styles.ErrorBlockStyle.Render(content.ErrorMessage(errors.New(r.Error))))
		return nil
	}

	fmt.Fprintln(w, styles.HeaderStyle.Render(content.ResultHeader))
	fmt.Fprintln(w)
	fmt.Fprintln(w, format.RenderMarkdown(r.Content))
	return nil
}

// diffRuns prints a unified diff between the articles of two runs.
func diffRuns(ctx context.Context, store *history.Store, w io.Writer, idA, idB string) error {
	a, err := store.Get(ctx, idA)
	if err != nil {
		return err
	}
	b, err := store.Get(ctx, idB)
	if err != nil {
		return err
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(a.Content),
		B:        difflib.SplitLines(b.Content),
		FromFile: diffLabel(a),
		ToFile:   diffLabel(b),
		Context:  3,
	})
	if err != nil {
		return fmt.Errorf("diff: %w", err)
	}

	if diff == "" {
		fmt.Fprintln(w, styles.DimStyle.Render("The articles are identical."))
		return nil
	}
	_, err = io.WriteString(w, diff)
	return err
}

func diffLabel(r history.Record) string {
	return fmt.Sprintf("%s (%s, t=%.1f)", content.FileName(r.Topic), strings.SplitN(r.ID, "-", 2)[0], r.Temperature)
}
