// Package runner starts a compatibility tool on an installer and streams its
// combined output line by line.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
	"unicode"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// drainSlack is how long after the group kill the output pipe is force
// closed, for helpers that left the process group and still hold it.
const drainSlack = 2 * time.Second

// Options configures a Runner.
type Options struct {
	Encoding string        // WHATWG label of the child's output, default utf-8
	Grace    time.Duration // interrupt-to-kill delay on cancel; 0 kills at once
	Log      logrus.FieldLogger
}

// Outcome describes a finished run.
type Outcome struct {
	ExitCode  int
	Lines     int
	Cancelled bool
	Err       error // wait or read failure other than a nonzero exit
}

// Success reports a clean zero exit.
func (o Outcome) Success() bool {
	return o.ExitCode == 0 && !o.Cancelled && o.Err == nil
}

// Runner spawns tool processes.
type Runner struct {
	enc   encoding.Encoding
	grace time.Duration
	log   logrus.FieldLogger
}

// New validates opts and returns a Runner.
func New(opts Options) (*Runner, error) {
	label := opts.Encoding
	if label == "" {
		label = "utf-8"
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("output encoding %q: %w", label, err)
	}
	log := opts.Log
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Runner{enc: enc, grace: opts.Grace, log: log}, nil
}

// Run is a live process. Lines must be drained until closed; Wait then
// returns the outcome.
type Run struct {
	lines   chan string
	done    chan struct{}
	drained chan struct{}
	cancel  context.CancelFunc
	outcome Outcome
}

// Lines yields decoded output lines in emitted order, trailing whitespace
// stripped. It is closed at end of output.
func (r *Run) Lines() <-chan string { return r.lines }

// Done is closed once the process has been waited for.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run finishes.
func (r *Run) Wait() Outcome {
	<-r.done
	return r.outcome
}

// Cancel interrupts the tool's process group and kills it after the grace
// period.
func (r *Run) Cancel() { r.cancel() }

// Start runs `tool file` with stdout and stderr merged. A *SpawnError is
// returned when the process cannot be started.
func (rn *Runner) Start(ctx context.Context, tool, file string) (*Run, error) {
	ctx, cancel := context.WithCancel(ctx)

	cmd := exec.CommandContext(ctx, tool, file)
	ownGroup(cmd)
	if rn.grace > 0 {
		cmd.Cancel = func() error { return interruptGroup(cmd.Process) }
		cmd.WaitDelay = rn.grace
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, &SpawnError{Tool: tool, Err: err}
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, &SpawnError{Tool: tool, Err: err}
	}
	rn.log.WithFields(logrus.Fields{"tool": tool, "file": file, "pid": cmd.Process.Pid}).Info("installer started")

	run := &Run{
		lines:   make(chan string, 64),
		done:    make(chan struct{}),
		drained: make(chan struct{}),
		cancel:  cancel,
	}

	// After a cancel, whatever is left of the group is killed once the grace
	// period ends, and the pipe is closed if something still holds it.
	go func() {
		select {
		case <-run.drained:
			return
		case <-ctx.Done():
		}
		select {
		case <-run.drained:
			return
		case <-time.After(rn.grace):
			killGroup(cmd.Process)
		}
		select {
		case <-run.drained:
		case <-time.After(drainSlack):
			_ = stdout.Close()
		}
	}()

	go rn.stream(ctx, cmd, stdout, run)
	return run, nil
}

func (rn *Runner) stream(ctx context.Context, cmd *exec.Cmd, stdout io.Reader, run *Run) {
	defer close(run.done)
	defer run.cancel()

	n, readErr := readLines(transform.NewReader(stdout, rn.enc.NewDecoder()), run.lines)
	close(run.lines)
	close(run.drained)

	waitErr := cmd.Wait()
	out := Outcome{Lines: n, Cancelled: ctx.Err() != nil, ExitCode: -1}
	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
	}

	// after a cancel Wait may report the context error instead of an exit status
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) && !out.Cancelled {
		out.Err = waitErr
	}
	if out.Err == nil && readErr != nil && !out.Cancelled {
		out.Err = fmt.Errorf("read output: %w", readErr)
	}
	run.outcome = out

	rn.log.WithFields(logrus.Fields{
		"exit_code": out.ExitCode,
		"lines":     out.Lines,
		"cancelled": out.Cancelled,
	}).Info("installer finished")
}

// readLines sends every line of r to out and returns how many were sent.
// A final line without a newline is still delivered.
func readLines(r io.Reader, out chan<- string) (int, error) {
	br := bufio.NewReader(r)
	n := 0
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			out <- strings.TrimRightFunc(line, unicode.IsSpace)
			n++
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, err
		}
	}
}
