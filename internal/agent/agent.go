// Package agent runs one analysis: prompt, a single model call, code
// extraction and at most one remote execution.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/KaramelBytes/dataviz-agent/internal/ai"
	"github.com/KaramelBytes/dataviz-agent/internal/dataset"
	"github.com/KaramelBytes/dataviz-agent/internal/extract"
	"github.com/KaramelBytes/dataviz-agent/internal/prompt"
	"github.com/KaramelBytes/dataviz-agent/internal/render"
	"github.com/KaramelBytes/dataviz-agent/internal/sandbox"
	"github.com/KaramelBytes/dataviz-agent/internal/session"
	"github.com/KaramelBytes/dataviz-agent/internal/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNoDataset     = errors.New("upload a dataset first")
	ErrEmptyQuestion = errors.New("question is empty")
)

// Executor runs generated code remotely.
type Executor interface {
	Execute(ctx context.Context, code string) (*sandbox.Execution, error)
}

// Sandbox is an executor that also accepts files and must be released.
type Sandbox interface {
	Executor
	Upload(ctx context.Context, name string, r io.Reader) (string, error)
	Close(ctx context.Context) error
}

// OpenFunc provisions a sandbox with the session's sandbox key.
type OpenFunc func(ctx context.Context, apiKey string) (Sandbox, error)

// RuntimeFactory builds a model runtime for a catalog model.
type RuntimeFactory func(ctx context.Context, model string, cfg ai.RuntimeConfig) (ai.Runtime, error)

// ModelError wraps a model provider failure. Its message is the provider's.
type ModelError struct {
	Model string
	Err   error
}

func (e *ModelError) Error() string { return e.Err.Error() }
func (e *ModelError) Unwrap() error { return e.Err }

// Outcome is what one analysis produced. Text is always the raw model
// response.
type Outcome struct {
	RunID   string
	Text    string
	Code    string
	NoCode  bool
	Blocks  int
	Results []sandbox.Result
	Stdout  string
	Stderr  string
	// ExecErr records a failed remote run; the narrative is still valid.
	ExecErr  error
	Usage    ai.Usage
	Duration time.Duration
}

// Options configures an Agent. Zero values fall back to the real
// implementations.
type Options struct {
	Runtime           RuntimeFactory
	Open              OpenFunc
	HTTPTimeout       time.Duration
	OpenRouterBaseURL string
	GeminiBaseURL     string
	MaxTokens         int
	Temperature       float64
	Logger            *zap.Logger
}

// Agent ties the pipeline together. It holds no per-session state.
type Agent struct {
	runtime RuntimeFactory
	open    OpenFunc
	opts    Options
	logger  *zap.Logger
}

func New(opts Options) *Agent {
	a := &Agent{runtime: opts.Runtime, open: opts.Open, opts: opts, logger: opts.Logger}
	if a.runtime == nil {
		a.runtime = ai.NewRuntime
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	return a
}

// SandboxOpener adapts a sandbox client to OpenFunc.
func SandboxOpener(c *sandbox.Client) OpenFunc {
	return func(ctx context.Context, apiKey string) (Sandbox, error) {
		sb, err := c.Open(ctx, apiKey)
		if err != nil {
			return nil, err
		}
		return sb, nil
	}
}

func (a *Agent) runtimeConfig(model, apiKey string) ai.RuntimeConfig {
	cfg := ai.RuntimeConfig{HTTPTimeout: a.opts.HTTPTimeout, APIKey: apiKey}
	if mi, ok := ai.LookupModel(model); ok {
		switch mi.Provider {
		case ai.ProviderOpenRouter:
			cfg.BaseURL = a.opts.OpenRouterBaseURL
		case ai.ProviderGemini:
			cfg.BaseURL = a.opts.GeminiBaseURL
		}
	}
	return cfg
}

// Analyze asks the model once and runs the first python block it returns.
// A model failure is returned as *ModelError. A missing code block or a
// failed execution is reported in the Outcome, not as an error.
func (a *Agent) Analyze(ctx context.Context, sess *session.Session, question, handle string, columns []string, exec Executor) (*Outcome, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	out := &Outcome{RunID: uuid.NewString()}
	log := a.logger.With(zap.String("run", out.RunID), zap.String("session", sess.ID), zap.String("model", sess.Model))

	rt, err := a.runtime(ctx, sess.Model, a.runtimeConfig(sess.Model, sess.ProviderKey))
	if err != nil {
		return nil, &ModelError{Model: sess.Model, Err: err}
	}
	p := prompt.Build(question, handle, columns)
	log.Debug("prompt built", zap.Int("approx_tokens", utils.CountTokens(p)))

	req := ai.UserPrompt(sess.Model, p)
	req.MaxTokens, req.Temperature = a.opts.MaxTokens, a.opts.Temperature
	resp, err := rt.Generate(ctx, req)
	if err != nil {
		log.Warn("model call failed", zap.Error(err))
		return nil, &ModelError{Model: sess.Model, Err: err}
	}
	out.Text = resp.Text()
	out.Usage = resp.Usage
	log.Info("model responded", zap.Int("total_tokens", resp.Usage.TotalTokens), zap.Int("chars", len(out.Text)))

	out.Blocks = len(extract.Blocks(out.Text))
	out.Code = extract.Code(out.Text)
	if out.Code == "" {
		out.NoCode = true
		out.Duration = time.Since(start)
		log.Info("no python code in response")
		return out, nil
	}
	if out.Blocks > 1 {
		log.Info("response has several python blocks; running the first", zap.Int("blocks", out.Blocks))
	}

	execution, err := exec.Execute(ctx, out.Code)
	if execution != nil {
		out.Results = execution.Results
		out.Stdout, out.Stderr = execution.Logs()
	}
	if err != nil {
		fields := []zap.Field{zap.Int("partial_results", len(out.Results)), zap.Error(err)}
		if sandbox.IsExecutionError(err) {
			log.Warn("generated code raised", fields...)
		} else {
			log.Error("code interpreter failed", fields...)
		}
		out.ExecErr = err
	}
	out.Duration = time.Since(start)
	log.Info("analysis finished", zap.Int("results", len(out.Results)), zap.Duration("took", out.Duration))
	return out, nil
}

// Run performs the whole user action. The session is validated before any
// remote call, and the sandbox is closed on every path once opened.
func (a *Agent) Run(ctx context.Context, sess *session.Session, question string, ds *dataset.Dataset) (*Outcome, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	if ds == nil {
		return nil, ErrNoDataset
	}
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	if a.open == nil {
		return nil, errors.New("no sandbox provider configured")
	}

	sb, err := a.open(ctx, sess.SandboxKey)
	if err != nil {
		return nil, fmt.Errorf("open sandbox: %w", err)
	}
	defer func() {
		if err := sb.Close(context.WithoutCancel(ctx)); err != nil {
			a.logger.Warn("sandbox close failed", zap.String("session", sess.ID), zap.Error(err))
		}
	}()

	handle, err := sb.Upload(ctx, ds.Name, ds.Reader())
	if err != nil {
		return nil, fmt.Errorf("upload dataset: %w", err)
	}
	return a.Analyze(ctx, sess, question, handle, ds.ColumnNames(), sb)
}

// NoCodeWarning is shown when the model answered without a python block.
const NoCodeWarning = "No Python code found in the model response, so nothing was executed."

// Report renders the execution results and prepends pipeline warnings. A
// response without code gets only the no-code warning.
func (o *Outcome) Report(r *render.Renderer) render.Report {
	if o.NoCode {
		return render.Report{Warnings: []string{NoCodeWarning, render.NoVisualizationWarning}}
	}
	if o.ExecErr != nil {
		// Partial results of a failed run are kept on the Outcome but never shown.
		rep := r.Render(nil)
		msg := "Code execution failed: " + o.ExecErr.Error()
		rep.Warnings = append([]string{msg}, rep.Warnings...)
		return rep
	}
	return r.Render(o.Results)
}
