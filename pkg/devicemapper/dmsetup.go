package devicemapper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/mohammedgqudah/ff/pkg/dmtable"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// DefaultDMSetupPath is looked up in $PATH
const DefaultDMSetupPath = "dmsetup"

// Runner executes a command, feeding stdin when it is not nil, and returns
// its standard output
type Runner interface {
	Run(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error)
}

// CommandError is returned when dmsetup exits unsuccessfully
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("dmsetup %s: %v", strings.Join(e.Args, " "), e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

// Run implements Runner
func (ExecRunner) Run(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdin = stdin
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), &CommandError{
			Args:   args,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}
	return stdout.Bytes(), nil
}

// DMSetup implements Controller with dmsetup(8)
type DMSetup struct {
	logger *zap.Logger
	runner Runner
	path   string

	commandsCtr metric.Int64Counter
	failuresCtr metric.Int64Counter
}

// DMSetupOption configures DMSetup
type DMSetupOption func(*DMSetup)

// WithRunner replaces the command runner
func WithRunner(r Runner) DMSetupOption {
	return func(d *DMSetup) { d.runner = r }
}

// WithPath sets the dmsetup binary
func WithPath(path string) DMSetupOption {
	return func(d *DMSetup) { d.path = path }
}

// NewDMSetup creates a controller. A nil logger disables logging.
func NewDMSetup(logger *zap.Logger, opts ...DMSetupOption) *DMSetup {
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &DMSetup{
		logger: logger,
		runner: ExecRunner{},
		path:   DefaultDMSetupPath,
	}
	for _, opt := range opts {
		opt(d)
	}

	meter := otel.Meter("github.com/mohammedgqudah/ff/pkg/devicemapper")
	var err error
	d.commandsCtr, err = meter.Int64Counter(
		"devicemapper_commands_total",
		metric.WithDescription("dmsetup invocations"),
	)
	if err != nil {
		logger.Debug("Failed to create commands counter", zap.Error(err))
	}
	d.failuresCtr, err = meter.Int64Counter(
		"devicemapper_command_failures_total",
		metric.WithDescription("dmsetup invocations that failed"),
	)
	if err != nil {
		logger.Debug("Failed to create failures counter", zap.Error(err))
	}

	return d
}

// Create implements Controller
func (d *DMSetup) Create(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	// --notable leaves the device without a live table until the first resume
	_, err := d.run(ctx, nil, "create", "--notable", name)
	return err
}

// Load implements Controller
func (d *DMSetup) Load(ctx context.Context, name string, table dmtable.Table) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if len(table) == 0 {
		return ErrEmptyTable
	}
	_, err := d.run(ctx, strings.NewReader(table.String()+"\n"), "load", name)
	return err
}

// Suspend implements Controller
func (d *DMSetup) Suspend(ctx context.Context, name string, noflush bool) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	args := []string{"suspend"}
	if noflush {
		args = append(args, "--noflush")
	}
	_, err := d.run(ctx, nil, append(args, name)...)
	return err
}

// Resume implements Controller
func (d *DMSetup) Resume(ctx context.Context, name string, noflush bool) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	args := []string{"resume"}
	if noflush {
		args = append(args, "--noflush")
	}
	_, err := d.run(ctx, nil, append(args, name)...)
	return err
}

// Remove implements Controller
func (d *DMSetup) Remove(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	_, err := d.run(ctx, nil, "remove", name)
	return err
}

// Table implements Controller
func (d *DMSetup) Table(ctx context.Context, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	out, err := d.run(ctx, nil, "table", name)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(out), "\n"), nil
}

func (d *DMSetup) run(ctx context.Context, stdin io.Reader, args ...string) ([]byte, error) {
	start := time.Now()
	attrs := metric.WithAttributes(attribute.String("command", args[0]))
	if d.commandsCtr != nil {
		d.commandsCtr.Add(ctx, 1, attrs)
	}

	out, err := d.runner.Run(ctx, stdin, d.path, args...)
	if err != nil {
		if d.failuresCtr != nil {
			d.failuresCtr.Add(ctx, 1, attrs)
		}
		d.logger.Debug("dmsetup failed",
			zap.Strings("args", args),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return nil, err
	}

	d.logger.Debug("dmsetup",
		zap.Strings("args", args),
		zap.Duration("duration", time.Since(start)))
	return out, nil
}
