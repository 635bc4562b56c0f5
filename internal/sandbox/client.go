// Package sandbox is a client for a remote code-interpreter service: it
// provisions an isolated sandbox, writes files into its workspace, runs
// Python there and returns the tagged results.
package sandbox

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	envdPort        = 49983
	interpreterPort = 49999

	// maxStreamLine bounds one NDJSON message; base64 images can be large.
	maxStreamLine = 64 << 20
)

// Config configures the sandbox service client.
type Config struct {
	// APIURL is the control-plane endpoint used to create and kill sandboxes.
	APIURL string
	// Domain hosts per-sandbox endpoints as https://<port>-<id>.<domain>.
	Domain string
	// Template is the sandbox template id to start.
	Template string
	// Lifetime asks the service to kill the sandbox after this long.
	Lifetime time.Duration
	// HTTPTimeout bounds each HTTP request, execution included.
	HTTPTimeout time.Duration
	// EndpointOverride routes every per-sandbox endpoint to one base URL.
	// Used for self-hosted gateways and tests.
	EndpointOverride string
	Logger           *zap.Logger
}

// DefaultConfig returns the public service defaults.
func DefaultConfig() Config {
	return Config{
		APIURL:      "https://api.e2b.dev",
		Domain:      "e2b.app",
		Template:    "code-interpreter-v1",
		Lifetime:    5 * time.Minute,
		HTTPTimeout: 5 * time.Minute,
	}
}

// Client opens sandboxes. It holds no per-sandbox state.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient fills zero fields of cfg from DefaultConfig.
func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.APIURL == "" {
		cfg.APIURL = def.APIURL
	}
	if cfg.Domain == "" {
		cfg.Domain = def.Domain
	}
	if cfg.Template == "" {
		cfg.Template = def.Template
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = def.Lifetime
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = def.HTTPTimeout
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	cfg.EndpointOverride = strings.TrimRight(cfg.EndpointOverride, "/")
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		logger:     logger,
	}
}

type createRequest struct {
	TemplateID string `json:"templateID"`
	Timeout    int    `json:"timeout,omitempty"`
}

type createResponse struct {
	SandboxID       string `json:"sandboxID"`
	ClientID        string `json:"clientID"`
	EnvdAccessToken string `json:"envdAccessToken"`
	Domain          string `json:"domain"`
}

// Open provisions a new sandbox. The caller owns it and must Close it.
func (c *Client) Open(ctx context.Context, apiKey string) (*Sandbox, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	payload, err := json.Marshal(createRequest{TemplateID: c.cfg.Template, Timeout: int(c.cfg.Lifetime.Seconds())})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL+"/sandboxes", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-API-Key", apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &InterpreterError{Op: "open", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &InterpreterError{Op: "open", StatusCode: resp.StatusCode, Message: readMessage(resp.Body)}
	}
	var out createResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &InterpreterError{Op: "open", Err: fmt.Errorf("decode response: %w", err)}
	}
	if out.SandboxID == "" {
		return nil, &InterpreterError{Op: "open", Message: "response carried no sandbox id"}
	}
	domain := c.cfg.Domain
	if out.Domain != "" {
		domain = out.Domain
	}
	c.logger.Debug("sandbox opened", zap.String("sandbox", out.SandboxID), zap.String("template", c.cfg.Template))
	return &Sandbox{
		client: c,
		id:     out.SandboxID,
		token:  out.EnvdAccessToken,
		apiKey: apiKey,
		domain: domain,
	}, nil
}

// Sandbox is one provisioned remote environment.
type Sandbox struct {
	client *Client
	id     string
	token  string
	apiKey string
	domain string

	mu     sync.Mutex
	closed bool
}

// ID returns the service-assigned sandbox id.
func (s *Sandbox) ID() string { return s.id }

func (s *Sandbox) endpoint(port int) string {
	if s.client.cfg.EndpointOverride != "" {
		return s.client.cfg.EndpointOverride
	}
	return fmt.Sprintf("https://%d-%s.%s", port, s.id, s.domain)
}

func (s *Sandbox) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Handle returns the workspace path a file named name is written to.
func Handle(name string) (string, error) {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "" || base == "." || base == ".." || base == "/" {
		return "", fmt.Errorf("invalid file name: %q", name)
	}
	return "./" + base, nil
}

// Upload writes r into the sandbox workspace and returns the dataset handle
// generated code should open.
func (s *Sandbox) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	handle, err := Handle(name)
	if err != nil {
		return "", &FileWriteError{Path: name, Err: err}
	}
	if s.isClosed() {
		return "", &FileWriteError{Path: handle, Err: ErrClosed}
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", strings.TrimPrefix(handle, "./"))
	if err != nil {
		return "", &FileWriteError{Path: handle, Err: err}
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", &FileWriteError{Path: handle, Err: fmt.Errorf("read upload: %w", err)}
	}
	if err := mw.Close(); err != nil {
		return "", &FileWriteError{Path: handle, Err: err}
	}

	q := url.Values{}
	q.Set("path", handle)
	q.Set("username", "user")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint(envdPort)+"/files?"+q.Encode(), &body)
	if err != nil {
		return "", &FileWriteError{Path: handle, Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	s.authorize(req)

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return "", &FileWriteError{Path: handle, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &FileWriteError{Path: handle, StatusCode: resp.StatusCode, Message: readMessage(resp.Body)}
	}
	s.client.logger.Debug("dataset uploaded", zap.String("sandbox", s.id), zap.String("path", handle))
	return handle, nil
}

// Execution is the outcome of one Execute call.
type Execution struct {
	Results        []Result
	Stdout         []string
	Stderr         []string
	ExecutionCount int
	Error          *ExecutionError
}

// Logs returns captured stdout and stderr joined.
func (e *Execution) Logs() (stdout, stderr string) {
	if e == nil {
		return "", ""
	}
	return strings.Join(e.Stdout, ""), strings.Join(e.Stderr, "")
}

type streamMessage struct {
	Type           string `json:"type"`
	Text           string `json:"text"`
	Name           string `json:"name"`
	Value          string `json:"value"`
	Traceback      string `json:"traceback"`
	ExecutionCount int    `json:"execution_count"`
}

// Execute runs code in the sandbox's interpreter. Results keep the order the
// interpreter emitted them. When the code raises, the partial Execution is
// returned together with an *ExecutionError; service failures yield an
// *InterpreterError.
func (s *Sandbox) Execute(ctx context.Context, code string) (*Execution, error) {
	if s.isClosed() {
		return nil, &InterpreterError{Op: "execute", Err: ErrClosed}
	}
	payload, err := json.Marshal(map[string]string{"code": code, "language": "python"})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint(interpreterPort)+"/execute", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	s.authorize(req)

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return nil, &InterpreterError{Op: "execute", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &InterpreterError{Op: "execute", StatusCode: resp.StatusCode, Message: readMessage(resp.Body)}
	}

	exec, err := readStream(resp.Body)
	s.logOutput(exec)
	if err != nil {
		return exec, err
	}
	if exec.Error != nil {
		return exec, exec.Error
	}
	return exec, nil
}

func readStream(r io.Reader) (*Execution, error) {
	exec := &Execution{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxStreamLine)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var msg streamMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			return exec, &InterpreterError{Op: "execute", Err: fmt.Errorf("decode stream message: %w", err)}
		}
		switch msg.Type {
		case "result":
			var raw RawResult
			if err := json.Unmarshal(line, &raw); err != nil {
				return exec, &InterpreterError{Op: "execute", Err: fmt.Errorf("decode result: %w", err)}
			}
			exec.Results = append(exec.Results, Classify(raw))
		case "stdout":
			exec.Stdout = append(exec.Stdout, msg.Text)
		case "stderr":
			exec.Stderr = append(exec.Stderr, msg.Text)
		case "error":
			exec.Error = &ExecutionError{Name: msg.Name, Value: msg.Value, Traceback: msg.Traceback}
		case "number_of_executions":
			exec.ExecutionCount = msg.ExecutionCount
		case "end_of_execution":
			return exec, nil
		case "unexpected_end_of_execution":
			return exec, &InterpreterError{Op: "execute", Message: "interpreter process ended unexpectedly"}
		}
	}
	if err := sc.Err(); err != nil {
		return exec, &InterpreterError{Op: "execute", Err: fmt.Errorf("stream read: %w", err)}
	}
	// A stream without its terminator means the run was cut short.
	return exec, &InterpreterError{Op: "execute", Message: "stream ended before end_of_execution"}
}

func (s *Sandbox) logOutput(exec *Execution) {
	stdout, stderr := exec.Logs()
	if stdout != "" {
		s.client.logger.Info("code interpreter output", zap.String("sandbox", s.id), zap.String("stdout", stdout))
	}
	if stderr != "" {
		s.client.logger.Warn("code interpreter warnings/errors", zap.String("sandbox", s.id), zap.String("stderr", stderr))
	}
	if exec != nil && exec.Error != nil {
		s.client.logger.Error("code interpreter error",
			zap.String("sandbox", s.id),
			zap.String("name", exec.Error.Name),
			zap.String("value", exec.Error.Value),
			zap.String("traceback", exec.Error.Traceback))
	}
}

// Close kills the sandbox. It is safe to call more than once; only the first
// call reaches the service.
func (s *Sandbox) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.client.cfg.APIURL+"/sandboxes/"+url.PathEscape(s.id), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-API-Key", s.apiKey)
	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return &InterpreterError{Op: "close", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &InterpreterError{Op: "close", StatusCode: resp.StatusCode, Message: readMessage(resp.Body)}
	}
	s.client.logger.Debug("sandbox closed", zap.String("sandbox", s.id))
	return nil
}

func (s *Sandbox) authorize(req *http.Request) {
	if s.token != "" {
		req.Header.Set("X-Access-Token", s.token)
	}
}

// readMessage extracts a human-readable message from a bounded error body.
func readMessage(r io.Reader) string {
	body, _ := io.ReadAll(io.LimitReader(r, 8<<10))
	var m struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &m); err == nil {
		if m.Message != "" {
			return m.Message
		}
		if m.Error != "" {
			return m.Error
		}
	}
	return strings.TrimSpace(string(body))
}

// IsExecutionError reports whether err is an exception raised by user code.
func IsExecutionError(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee)
}
