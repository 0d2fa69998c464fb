package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	cerr "git.home.luguber.info/inful/cdispd/internal/errors"
)

// Request describes one invocation of the external reconfiguration program.
// Either All is set or Names carries an explicit component list.
type Request struct {
	Names     []string
	All       bool
	ProfileID uint64
}

// Invoker runs the external reconfiguration program. A nil error means the
// invocation succeeded; any error counts as a failed run for pivot purposes.
type Invoker interface {
	Invoke(ctx context.Context, req Request) error
}

// ExecInvoker shells out to the configured reconfiguration program. Retries
// and timeout are pass-through options for the program itself; the driver
// never retries an invocation.
type ExecInvoker struct {
	Program  string
	StateDir string
	Retries  int
	Timeout  time.Duration
}

// Invoke implements Invoker.
func (e *ExecInvoker) Invoke(ctx context.Context, req Request) error {
	if e.Program == "" {
		return cerr.New(cerr.CategoryInvoke, cerr.SeverityError, "no reconfiguration program configured")
	}

	args := e.buildArgs(req)
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	slog.Info("invoking reconfiguration program",
		slog.String("program", e.Program), slog.String("args", strings.Join(args, " ")))

	cmd := exec.CommandContext(ctx, e.Program, args...)
	out, err := cmd.CombinedOutput()
	if len(out) > 0 {
		slog.Debug("reconfiguration program output", slog.String("output", string(out)))
	}
	if err != nil {
		return cerr.Wrap(err, cerr.CategoryInvoke, cerr.SeverityError, "reconfiguration program failed").
			WithContext("program", e.Program)
	}
	return nil
}

func (e *ExecInvoker) buildArgs(req Request) []string {
	var args []string
	if e.StateDir != "" {
		args = append(args, "--state", e.StateDir)
	}
	if e.Retries > 0 {
		args = append(args, "--retries", strconv.Itoa(e.Retries))
	}
	if e.Timeout > 0 {
		args = append(args, "--timeout", fmt.Sprintf("%d", int(e.Timeout.Seconds())))
	}
	if req.ProfileID > 0 {
		args = append(args, "--profile-id", strconv.FormatUint(req.ProfileID, 10))
	}
	if req.All {
		args = append(args, "--all")
	} else {
		args = append(args, "--configure")
		args = append(args, req.Names...)
	}
	return args
}
