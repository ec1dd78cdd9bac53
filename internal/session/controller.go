package session

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/SiirRandall/proton-patch-helper/internal/runner"
	"github.com/SiirRandall/proton-patch-helper/internal/steam"
)

// Starter launches the tool. *runner.Runner implements it.
type Starter interface {
	Start(ctx context.Context, tool, file string) (*runner.Run, error)
}

// Notifier shows dialogs.
type Notifier interface {
	Notify(Dialog)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Dialog)

func (f NotifierFunc) Notify(d Dialog) { f(d) }

// Controller owns the State, applies events and performs effects. Methods are
// safe to call from any goroutine.
type Controller struct {
	mu       sync.Mutex
	state    State
	onChange []func(State)
	run      *runner.Run

	ctx    context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	start  Starter
	notify Notifier
	log    logrus.FieldLogger
	now    func() time.Time
}

// New returns a Controller with an empty state.
func New(start Starter, notify Notifier, log logrus.FieldLogger) *Controller {
	ctx, stop := context.WithCancel(context.Background())
	return &Controller{
		ctx:    ctx,
		stop:   stop,
		start:  start,
		notify: notify,
		log:    log,
		now:    time.Now,
	}
}

// OnChange registers fn to receive every new state. fn runs with the
// controller locked and must not call back into it.
func (c *Controller) OnChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = append(c.onChange, fn)
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.snapshot()
}

// Detect probes l once and records the result.
func (c *Controller) Detect(l steam.Layout) {
	env, err := steam.Detect(l)
	if err != nil {
		entry := c.log.WithError(err)
		var de *steam.DetectionError
		if errors.As(err, &de) {
			entry = entry.WithField("kind", de.Kind.String())
		}
		entry.Warn("environment detection failed")
	} else {
		c.log.WithFields(logrus.Fields{"version": env.Version, "binary": env.Binary}).Info("proton detected")
	}
	c.dispatch(Detected{Env: env, Err: err})
}

// Choose records a file picked in the dialog.
func (c *Controller) Choose(path string) { c.dispatch(FileChosen{Path: path}) }

// ChooseCancelled records a dismissed dialog.
func (c *Controller) ChooseCancelled() { c.dispatch(ChooseCancelled{}) }

// SelectVersion switches to another detected Proton folder.
func (c *Controller) SelectVersion(v string) { c.dispatch(VersionChosen{Version: v}) }

// Install starts the installer if the preconditions hold.
func (c *Controller) Install() {
	tool := c.State().Env.Binary
	c.dispatch(RunRequested{Tool: tool, ToolExists: tool != "" && fileExists(tool)})
}

// Cancel stops a running installer.
func (c *Controller) Cancel() { c.dispatch(CancelRequested{}) }

// Wait blocks until any running installer has been reported finished.
func (c *Controller) Wait() { c.wg.Wait() }

// Close cancels a running installer and waits for it.
func (c *Controller) Close() {
	c.stop()
	c.wg.Wait()
}

func (c *Controller) dispatch(ev Event) {
	c.mu.Lock()
	next, effects := Reduce(c.state, ev, c.now())
	c.state = next
	if len(c.onChange) > 0 {
		snap := next.snapshot()
		for _, fn := range c.onChange {
			fn(snap)
		}
	}
	c.mu.Unlock()

	if _, ok := ev.(LineReceived); !ok {
		c.log.WithField("event", eventName(ev)).Debug("state transition")
	}
	for _, eff := range effects {
		c.perform(eff)
	}
}

func (c *Controller) perform(eff Effect) {
	switch eff := eff.(type) {
	case ShowDialog:
		if c.notify != nil {
			c.notify.Notify(eff.Dialog)
		}
	case StartProcess:
		run, err := c.start.Start(c.ctx, eff.Tool, eff.File)
		if err != nil {
			c.log.WithError(err).WithField("tool", eff.Tool).Error("installer did not start")
			c.dispatch(SpawnFailed{Err: err})
			return
		}
		c.mu.Lock()
		c.run = run
		cancelled := c.state.Cancelling
		c.mu.Unlock()
		if cancelled {
			run.Cancel()
		}
		c.wg.Add(1)
		go c.pump(run)
	case CancelProcess:
		c.mu.Lock()
		run := c.run
		c.mu.Unlock()
		if run != nil {
			run.Cancel()
		}
	}
}

func (c *Controller) pump(run *runner.Run) {
	defer c.wg.Done()
	for line := range run.Lines() {
		c.log.Debug(line)
		c.dispatch(LineReceived{Line: line})
	}
	out := run.Wait()
	c.mu.Lock()
	c.run = nil
	c.mu.Unlock()
	c.dispatch(RunFinished{Outcome: out})
}

func eventName(ev Event) string {
	switch ev.(type) {
	case Detected:
		return "detected"
	case FileChosen:
		return "file-chosen"
	case ChooseCancelled:
		return "choose-cancelled"
	case VersionChosen:
		return "version-chosen"
	case RunRequested:
		return "run-requested"
	case SpawnFailed:
		return "spawn-failed"
	case RunFinished:
		return "run-finished"
	case CancelRequested:
		return "cancel-requested"
	}
	return "unknown"
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
