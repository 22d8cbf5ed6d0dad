package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/ports"
)

// waitDelay bounds how long Wait keeps reading from children that outlive a killed process.
const waitDelay = 2 * time.Second

// DefaultModel is used when a block names no model, or one that is not registered.
const DefaultModel = "default"

// Models implements ports.ModelClient by running local commands.
// It follows a strict registry: only configured commands are ever executed.
// The prompt is written to stdin and stdout is relayed word by word.
// Request parameters are passed as LECTERN_* environment variables, never as flags.
type Models struct {
	registry map[string]ProcessConfig
	baseDir  string
}

// Option configures Models.
type Option func(*Models)

// WithRegistry populates the allow-list from a loaded config.
func WithRegistry(models []ProcessConfig) Option {
	return func(m *Models) {
		for _, p := range models {
			m.Register(p)
		}
	}
}

// WithBaseDir sets the working directory of executed processes.
func WithBaseDir(dir string) Option {
	return func(m *Models) {
		m.baseDir = dir
	}
}

// NewModels creates a process-backed model client.
func NewModels(opts ...Option) *Models {
	m := &Models{registry: make(map[string]ProcessConfig)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds a trusted command to the allow-list.
func (m *Models) Register(p ProcessConfig) {
	m.registry[p.Name] = p
}

// Stream starts the command registered for req.Model.
func (m *Models) Stream(ctx context.Context, req ports.ModelRequest) (ports.ModelStream, error) {
	proc, ok := m.registry[req.Model]
	if !ok {
		proc, ok = m.registry[DefaultModel]
	}
	if !ok {
		return nil, &domain.UpstreamError{Service: "model", Err: fmt.Errorf("model %q not registered", req.Model)}
	}

	cmd := m.command(ctx, proc, req.Prompt)
	cmd.Env = append(cmd.Env,
		"LECTERN_MODEL="+req.Model,
		"LECTERN_SYSTEM="+req.System,
		"LECTERN_TEMPERATURE="+strconv.FormatFloat(req.Temperature, 'f', -1, 64),
		"LECTERN_JSON="+strconv.FormatBool(req.JSON),
	)
	s := &stream{ctx: ctx, cmd: cmd, name: proc.Name}
	cmd.Stderr = &s.stderr
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &domain.UpstreamError{Service: "model", Err: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, &domain.UpstreamError{Service: "model", Err: fmt.Errorf("%s: %w", proc.Name, err)}
	}
	s.out = bufio.NewReader(out)
	return s, nil
}

func (m *Models) command(ctx context.Context, proc ProcessConfig, stdin string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, proc.Command, proc.Args...)
	cmd.Dir = m.baseDir
	cmd.WaitDelay = waitDelay
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = cmd.Environ()
	for k, v := range proc.Environment {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	return cmd
}

type stream struct {
	ctx    context.Context
	cmd    *exec.Cmd
	name   string
	out    *bufio.Reader
	stderr bytes.Buffer
	done   bool
	err    error
}

// Recv returns the next word of output, trailing space included.
func (s *stream) Recv() (string, error) {
	if s.done {
		return "", s.err
	}
	tok, err := s.out.ReadString(' ')
	if err == nil {
		return tok, nil
	}
	s.done = true
	s.err = s.wait(err)
	if tok != "" {
		return tok, nil
	}
	return "", s.err
}

func (s *stream) wait(readErr error) error {
	err := s.cmd.Wait()
	if ctxErr := s.ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err == nil && !errors.Is(readErr, io.EOF) {
		err = readErr
	}
	if err != nil {
		return &domain.UpstreamError{
			Service: "model",
			Err:     fmt.Errorf("%s: %w: %s", s.name, err, strings.TrimSpace(s.stderr.String())),
		}
	}
	return io.EOF
}

// Close stops the process if it is still running.
func (s *stream) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	s.err = io.EOF
	_ = s.cmd.Process.Kill()
	_ = s.cmd.Wait()
	return nil
}
