// Package content assembles the two-agent research and writing pipeline and
// owns the rules for its user-facing parameters.
package content

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/germanamz/contentcrew/pkg/agent"
	"github.com/germanamz/contentcrew/pkg/crew"
	"github.com/germanamz/contentcrew/pkg/modeladapter"
	"github.com/germanamz/contentcrew/pkg/tools/toolbox"
)

// Parameter bounds, matching the sliders of the UI.
const (
	MinTemperature  = 0.1
	MaxTemperature  = 2.0
	TemperatureStep = 0.1
	MinNumResults   = 1
	MaxNumResults   = 20

	// MIMEType is the media type of the downloadable article.
	MIMEType = "text/markdown"
)

// Agent and task texts. Goals and descriptions are filled with the topic at
// kickoff.
const (
	ResearcherRole      = "Senior Research Analyst"
	ResearcherGoal      = "Research on {topic}"
	ResearcherBackstory = "You are a Senior Research Analyst with 5 years of experience in AI and the medical industry."

	WriterRole      = "Content Writer"
	WriterGoal      = "Write a detailed article on {topic}"
	WriterBackstory = "You are an experienced Content Writer with expertise in AI and healthcare topics."

	ResearchDescription    = "Research on {topic}"
	ResearchExpectedOutput = "A detailed summary of the current trends and applications of Generative AI in the Medical Industry"
	WritingDescription     = "Write a detailed article on {topic}"
	WritingExpectedOutput  = "A well-researched article on the applications of Generative AI in the Medical Industry"

	ResearchTaskName = "research"
	WritingTaskName  = "write"
)

var (
	// ErrEmptyTopic is returned when the topic is blank.
	ErrEmptyTopic = errors.New("content: topic is required")
	// ErrTemperature is returned for a temperature off the slider range or grid.
	ErrTemperature = fmt.Errorf("content: temperature must be between %.1f and %.1f in steps of %.1f", MinTemperature, MaxTemperature, TemperatureStep)
	// ErrNumResults is returned for a result count off the slider range.
	ErrNumResults = fmt.Errorf("content: number of search results must be between %d and %d", MinNumResults, MaxNumResults)
)

// Params are the user's choices for one generation.
type Params struct {
	Topic       string  `json:"topic"`
	Temperature float64 `json:"temperature"`
	NumResults  int     `json:"num_results"`
}

// DefaultParams returns the values the form starts with.
func DefaultParams() Params {
	return Params{
		Topic:       "Medical Industry using Generative AI",
		Temperature: 0.7,
		NumResults:  10,
	}
}

// Normalize trims the topic and snaps the temperature to the 0.1 grid when it
// is within floating point noise of a step.
func (p Params) Normalize() Params {
	p.Topic = strings.TrimSpace(p.Topic)
	if snapped := math.Round(p.Temperature*10) / 10; math.Abs(snapped-p.Temperature) < 1e-9 {
		p.Temperature = snapped
	}
	return p
}

// Validate checks p against the slider bounds.
func (p Params) Validate() error {
	var errs []error

	if strings.TrimSpace(p.Topic) == "" {
		errs = append(errs, ErrEmptyTopic)
	}

	steps := p.Temperature / TemperatureStep
	onGrid := math.Abs(steps-math.Round(steps)) < 1e-6
	if p.Temperature < MinTemperature-1e-9 || p.Temperature > MaxTemperature+1e-9 || !onGrid {
		errs = append(errs, ErrTemperature)
	}

	if p.NumResults < MinNumResults || p.NumResults > MaxNumResults {
		errs = append(errs, ErrNumResults)
	}

	return errors.Join(errs...)
}

// Inputs returns the placeholder values for the crew kickoff.
func (p Params) Inputs() map[string]string {
	return map[string]string{"topic": strings.TrimSpace(p.Topic)}
}

// TemperatureOptions lists every selectable temperature, lowest first.
func TemperatureOptions() []float64 {
	n := int(math.Round((MaxTemperature-MinTemperature)/TemperatureStep)) + 1
	opts := make([]float64, n)
	for i := range n {
		opts[i] = math.Round((MinTemperature+float64(i)*TemperatureStep)*10) / 10
	}
	return opts
}

// NumResultOptions lists every selectable search result count.
func NumResultOptions() []int {
	opts := make([]int, 0, MaxNumResults-MinNumResults+1)
	for n := MinNumResults; n <= MaxNumResults; n++ {
		opts = append(opts, n)
	}
	return opts
}

var unsafeFileChars = regexp.MustCompile(`[/\\:*?"<>|\x00-\x1f]`)

// FileName returns the download name for an article about topic: spaces
// become underscores and "_article.md" is appended. Characters that are not
// allowed in file names are replaced with underscores too.
func FileName(topic string) string {
	name := strings.ReplaceAll(strings.TrimSpace(topic), " ", "_")
	name = unsafeFileChars.ReplaceAllString(name, "_")
	return name + "_article.md"
}

// Options tunes the agents NewCrew builds.
type Options struct {
	Agent     agent.Options
	Callbacks crew.Callbacks
}

// NewCrew builds the research and writing pipeline: a researcher equipped
// with the search tools and a writer without tools, each with one task. Both
// agents share llm.
func NewCrew(llm modeladapter.Completer, search *toolbox.ToolBox, opts Options) (*crew.Crew, error) {
	researcher := agent.New(ResearcherRole, ResearcherGoal, ResearcherBackstory, llm, opts.Agent)
	if search != nil {
		researcher.AddToolBoxes(search)
	}

	writer := agent.New(WriterRole, WriterGoal, WriterBackstory, llm, opts.Agent)

	tasks := []crew.Task{
		{
			Name:           ResearchTaskName,
			Description:    ResearchDescription,
			ExpectedOutput: ResearchExpectedOutput,
			Agent:          researcher,
		},
		{
			Name:           WritingTaskName,
			Description:    WritingDescription,
			ExpectedOutput: WritingExpectedOutput,
			Agent:          writer,
		},
	}

	return crew.New([]*agent.Agent{researcher, writer}, tasks, crew.Options{Callbacks: opts.Callbacks})
}
