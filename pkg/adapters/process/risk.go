package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/ports"
)

// RiskChecker implements ports.RiskChecker with a command that reads the text on stdin.
// Exit status 0 passes, 1 rejects with stdout as the label, anything else is an error.
type RiskChecker struct {
	models *Models
	proc   ProcessConfig
}

// NewRiskChecker creates a checker running proc in the given models' base directory.
func NewRiskChecker(proc ProcessConfig, opts ...Option) *RiskChecker {
	return &RiskChecker{models: NewModels(opts...), proc: proc}
}

// Check runs the command over text.
func (r *RiskChecker) Check(ctx context.Context, text string) (ports.RiskVerdict, error) {
	cmd := r.models.command(ctx, r.proc, text)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return ports.RiskVerdict{Pass: true}, nil
	}
	var exit *exec.ExitError
	if errors.As(err, &exit) && exit.ExitCode() == 1 {
		return ports.RiskVerdict{Label: strings.TrimSpace(stdout.String())}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ports.RiskVerdict{}, ctxErr
	}
	return ports.RiskVerdict{}, &domain.UpstreamError{
		Service: "risk",
		Err:     fmt.Errorf("execution failed: %w: %s", err, strings.TrimSpace(stderr.String())),
	}
}
