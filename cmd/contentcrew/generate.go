package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/germanamz/contentcrew/cmd/contentcrew/internal/format"
	"github.com/germanamz/contentcrew/cmd/contentcrew/internal/progress"
	"github.com/germanamz/contentcrew/cmd/contentcrew/internal/styles"
	"github.com/germanamz/contentcrew/pkg/agentctx"
	"github.com/germanamz/contentcrew/pkg/content"
	"github.com/germanamz/contentcrew/pkg/engine"
	"github.com/google/uuid"
)

type generateOptions struct {
	common      commonFlags
	topic       string
	temperature float64
	results     int
	noInput     bool
	plain       bool
	out         string
}

func runGenerate(args []string) error {
	def := content.DefaultParams()
	var o generateOptions

	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	o.common.register(fs)
	fs.StringVar(&o.topic, "topic", def.Topic, "topic to research and write about")
	fs.Float64Var(&o.temperature, "temperature", def.Temperature, "LLM temperature (0.1 to 2.0, step 0.1)")
	fs.IntVar(&o.results, "results", def.NumResults, "number of search results (1 to 20)")
	fs.BoolVar(&o.noInput, "no-input", false, "skip the interactive form and the save prompt")
	fs.BoolVar(&o.plain, "plain", false, "print plain progress lines instead of the spinner")
	fs.StringVar(&o.out, "out", "", "write the article to this file")
	_ = fs.Parse(args)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The spinner owns the terminal; logs would tear it.
	logOut := io.Discard
	if o.plain {
		logOut = os.Stderr
	}
	cfg, log, err := o.common.setup(logOut)
	if err != nil {
		return err
	}

	fmt.Println(styles.TitleStyle.Render(content.Title))
	fmt.Println(styles.DimStyle.Render(content.Welcome))
	fmt.Println()
	printWarnings(os.Stderr, cfg)

	params := content.Params{Topic: o.topic, Temperature: o.temperature, NumResults: o.results}
	if !o.noInput {
		if params, err = askParams(params); err != nil {
			return err
		}
	}
	params = params.Normalize()
	if err := params.Validate(); err != nil {
		return err
	}

	eng, err := engine.New(ctx, cfg, engine.WithLogger(log))
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	format.IsDarkBG = lipgloss.HasDarkBackground()
	format.InitMarkdownRenderer(100)

	var res engine.Result
	if o.plain {
		res, err = generatePlain(ctx, eng, params, os.Stderr)
	} else {
		res, err = progress.Run(ctx, eng, params)
	}
	if err != nil {
		return err
	}

	printResult(os.Stdout, res)

	path, err := saveArticle(res, o.out, !o.noInput)
	if err != nil {
		return err
	}
	if path != "" {
		fmt.Println(styles.SuccessStyle.Render("Saved " + path))
	}
	return nil
}

// askParams shows the parameter form, starting from p.
func askParams(p content.Params) (content.Params, error) {
	tempOpts := make([]huh.Option[float64], 0, len(content.TemperatureOptions()))
	for _, t := range content.TemperatureOptions() {
		tempOpts = append(tempOpts, huh.NewOption(strconv.FormatFloat(t, 'f', 1, 64), t))
	}
	numOpts := make([]huh.Option[int], 0, len(content.NumResultOptions()))
	for _, n := range content.NumResultOptions() {
		numOpts = append(numOpts, huh.NewOption(strconv.Itoa(n), n))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Topic").
				Placeholder(content.TopicHint).
				Value(&p.Topic).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return content.ErrEmptyTopic
					}
					return nil
				}),
			huh.NewSelect[float64]().
				Title("Temperature").
				Description("LLM Configuration").
				Options(tempOpts...).
				Value(&p.Temperature),
			huh.NewSelect[int]().
				Title("Number of Search Results").
				Description("Search Tool Configuration").
				Options(numOpts...).
				Value(&p.NumResults),
		),
	)
	if err := form.Run(); err != nil {
		return p, err
	}
	return p, nil
}

// generatePlain runs a generation printing one line per progress event to w.
func generatePlain(ctx context.Context, gen progress.Generator, params content.Params, w io.Writer) (engine.Result, error) {
	runID := uuid.NewString()
	ctx = agentctx.WithRunID(ctx, runID)

	bus := gen.Events()
	sub := bus.Subscribe(64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range sub.C {
			if e.RunID != runID {
				continue
			}
			if line := format.DescribeEvent(e, 120); line != "" {
				fmt.Fprintln(w, line)
			}
		}
	}()

	fmt.Fprintln(w, content.ProgressText)
	res, err := gen.Generate(ctx, params)
	bus.Unsubscribe(sub)
	<-done

	return res, err
}

// printResult renders the article under the result header.
func printResult(w io.Writer, res engine.Result) {
	fmt.Fprintln(w, styles.HeaderStyle.Render(content.ResultHeader))
	fmt.Fprintln(w)
	fmt.Fprintln(w, format.RenderMarkdown(res.Content))
	fmt.Fprintln(w)
	fmt.Fprintln(w, styles.DimStyle.Render(fmt.Sprintf("%s · %s in / %s out · %s",
		res.Model,
		format.FmtTokens(res.Usage.InputTokens),
		format.FmtTokens(res.Usage.OutputTokens),
		format.FmtDuration(res.Duration),
	)))
	for _, agent := range slices.Sorted(maps.Keys(res.AgentUsage)) {
		if agent == "" {
			continue
		}
		u := res.AgentUsage[agent]
		fmt.Fprintln(w, styles.DimStyle.Render(fmt.Sprintf("  %s: %s in / %s out",
			agent, format.FmtTokens(u.InputTokens), format.FmtTokens(u.OutputTokens))))
	}
}

// saveArticle writes the article to out, or, when out is empty and ask is
// set, offers to save it under its download name. It returns the written path.
func saveArticle(res engine.Result, out string, ask bool) (string, error) {
	path := out
	if path == "" {
		if !ask {
			return "", nil
		}

		save := true
		name := res.FileName
		form := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().Title(content.DownloadLabel+"?").Value(&save),
			huh.NewInput().Title("File name").Value(&name),
		))
		if err := form.Run(); err != nil {
			return "", err
		}
		if !save || strings.TrimSpace(name) == "" {
			return "", nil
		}
		path = name
	}

	if err := writeArticle(path, res.Content); err != nil {
		return "", err
	}
	return path, nil
}

func writeArticle(path, article string) error {
	if err := os.WriteFile(path, []byte(article), 0o644); err != nil { //nolint:gosec // articles are meant to be readable
		return fmt.Errorf("save article: %w", err)
	}
	return nil
}
