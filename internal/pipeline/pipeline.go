package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/secscan/internal/model"
)

// Page carries the state of one page through the pipeline.
// Steps read what earlier steps produced and add their own results.
type Page struct {
	// URL is the page being scanned.
	URL string

	// StatusCode and Body are set by the fetch step.
	StatusCode int
	Body       string

	// Parsed is set by the extract step.
	Parsed *model.ParsedPage

	// Findings accumulates detector results in step order.
	Findings []model.Finding

	// Performed lists the names of the steps that completed.
	Performed []string
}

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, each receiving the page built so far.
type Step interface {
	// Do executes the step. An error means the page cannot be processed
	// further; detector steps record findings and return nil.
	Do(ctx context.Context, page *Page) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to keep executing steps
// after one fails. The first error is still returned from Execute.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in order against page.
// Cancellation is checked before each step; a step that is already running
// is expected to honor ctx itself.
func (p *Pipeline) Execute(ctx context.Context, page *Page) error {
	var firstErr error
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"url", page.URL,
				"reason", err,
			)
			return err
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"url", page.URL,
		)

		if err := step.Do(ctx, page); err != nil {
			p.logger.Warn("step failed",
				"step", step.Name(),
				"url", page.URL,
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
			}
			if !p.continueOnError {
				return err
			}
			continue
		}

		page.Performed = append(page.Performed, step.Name())
	}
	return firstErr
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
