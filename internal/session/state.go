// Package session holds the window's state and the transitions between states.
// Reduce is pure: it returns the next State and the side effects the
// Controller must perform.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/SiirRandall/proton-patch-helper/internal/runner"
	"github.com/SiirRandall/proton-patch-helper/internal/steam"
)

// Progress bar values. The bar only signals started and finished.
const (
	ProgressIdle    = 0.0
	ProgressStarted = 0.1
	ProgressDone    = 1.0
)

// NoneSelected is shown in place of an empty selection.
const NoneSelected = "<none selected>"

type Severity int

const (
	Info Severity = iota
	Warning
	Error
	Critical
)

// Dialog is a modal notification.
type Dialog struct {
	Severity Severity
	Title    string
	Message  string
}

// LogEntry is one line of the log panel.
type LogEntry struct {
	At   time.Time
	Text string
}

// State is everything the window displays.
type State struct {
	Env        steam.Environment
	EnvOK      bool
	EnvErr     error
	Selected   string
	Running    bool
	Cancelling bool
	Progress   float64
	Log        []LogEntry
	Last       *runner.Outcome // most recent finished run
}

// CanRun reports whether the install action is enabled.
func (s State) CanRun() bool { return s.EnvOK && !s.Running }

// CanCancel reports whether the cancel action is enabled.
func (s State) CanCancel() bool { return s.Running && !s.Cancelling }

// SelectionLabel is the text for the selection label.
func (s State) SelectionLabel() string {
	if s.Selected == "" {
		return NoneSelected
	}
	return s.Selected
}

// Lines returns the log text without timestamps.
func (s State) Lines() []string {
	out := make([]string, len(s.Log))
	for i, e := range s.Log {
		out[i] = e.Text
	}
	return out
}

// snapshot caps Log at its length, so an append on the copy reallocates
// instead of writing into the controller's spare capacity. Entries are never
// modified once logged, which makes the shared prefix safe.
func (s State) snapshot() State {
	s.Log = s.Log[:len(s.Log):len(s.Log)]
	return s
}

// Event is an input to Reduce.
type Event interface{ event() }

type (
	Detected struct {
		Env steam.Environment
		Err error
	}
	FileChosen      struct{ Path string }
	ChooseCancelled struct{}
	VersionChosen   struct{ Version string }
	// RunRequested carries the tool that was checked and whether it existed
	// at request time, not at detection time.
	RunRequested struct {
		Tool       string
		ToolExists bool
	}
	SpawnFailed     struct{ Err error }
	LineReceived    struct{ Line string }
	RunFinished     struct{ Outcome runner.Outcome }
	CancelRequested struct{}
)

func (Detected) event()        {}
func (FileChosen) event()      {}
func (ChooseCancelled) event() {}
func (VersionChosen) event()   {}
func (RunRequested) event()    {}
func (SpawnFailed) event()     {}
func (LineReceived) event()    {}
func (RunFinished) event()     {}
func (CancelRequested) event() {}

// Effect is work Reduce asks the Controller to do.
type Effect interface{ effect() }

type (
	ShowDialog   struct{ Dialog Dialog }
	StartProcess struct {
		Tool string
		File string
	}
	CancelProcess struct{}
)

func (ShowDialog) effect()    {}
func (StartProcess) effect()  {}
func (CancelProcess) effect() {}

// Reduce applies ev to s. now stamps any log lines the event produces.
// Log only grows by append; s itself is left as it was.
func Reduce(s State, ev Event, now time.Time) (State, []Effect) {
	logf := func(format string, args ...any) {
		s.Log = append(s.Log, LogEntry{At: now, Text: fmt.Sprintf(format, args...)})
	}
	show := func(sev Severity, title, msg string) Effect {
		return ShowDialog{Dialog{Severity: sev, Title: title, Message: msg}}
	}

	switch ev := ev.(type) {
	case Detected:
		if ev.Err != nil {
			s.EnvOK = false
			s.EnvErr = ev.Err
			logf("❌ %v", ev.Err)
			msg := ev.Err.Error()
			var de *steam.DetectionError
			if errors.As(ev.Err, &de) {
				msg = de.Message()
			}
			return s, []Effect{show(Critical, "Error", msg)}
		}
		s.Env = ev.Env
		s.EnvOK = true
		s.EnvErr = nil
		logf("✅ Proton detected: %s", ev.Env.Version)
		return s, nil

	case FileChosen:
		s.Selected = ev.Path
		logf("Selected translation: %s", ev.Path)
		return s, nil

	case ChooseCancelled:
		return s, nil

	case VersionChosen:
		if !s.EnvOK || s.Running || ev.Version == s.Env.Version {
			return s, nil
		}
		env, ok := s.Env.WithVersion(ev.Version)
		if !ok {
			return s, nil
		}
		s.Env = env
		logf("Using Proton version: %s", env.Version)
		return s, nil

	case RunRequested:
		if s.Running {
			return s, nil
		}
		if s.Selected == "" {
			return s, []Effect{show(Warning, "Warning", "Select a translation file before starting the installation.")}
		}
		if !s.EnvOK || !ev.ToolExists {
			return s, []Effect{show(Critical, "Error", "Could not locate the Proton binary.")}
		}
		if ev.Tool != s.Env.Binary {
			// the version changed after the check; never start an unchecked binary
			return s, []Effect{show(Warning, "Warning", "The Proton version changed. Start the installation again.")}
		}
		s.Running = true
		s.Cancelling = false
		s.Progress = ProgressStarted
		logf("Starting installer: %s", s.Selected)
		return s, []Effect{StartProcess{Tool: s.Env.Binary, File: s.Selected}}

	case SpawnFailed:
		s.Running = false
		s.Cancelling = false
		s.Progress = ProgressDone
		logf("❌ Error running installer: %v", ev.Err)
		return s, []Effect{show(Critical, "Error", fmt.Sprintf("Failed to start the installer:\n%v", ev.Err))}

	case LineReceived:
		if !s.Running {
			return s, nil
		}
		logf("%s", ev.Line)
		return s, nil

	case RunFinished:
		if !s.Running {
			return s, nil
		}
		s.Running = false
		s.Cancelling = false
		s.Progress = ProgressDone
		out := ev.Outcome
		s.Last = &out
		switch {
		case out.Cancelled:
			logf("⚠ Installation cancelled")
			return s, []Effect{show(Warning, "Cancelled", "The installer was cancelled. Check the logs.")}
		case out.Err != nil:
			logf("❌ Error running installer: %v", out.Err)
			return s, []Effect{show(Error, "Error", fmt.Sprintf("The installer failed:\n%v", out.Err))}
		case out.ExitCode != 0:
			logf("❌ Installer returned code %d", out.ExitCode)
			return s, []Effect{show(Warning, "Error", "The installer finished with an error. Check the logs.")}
		}
		logf("✅ Installation complete!")
		return s, []Effect{show(Info, "Success", "Installation completed successfully!")}

	case CancelRequested:
		if !s.CanCancel() {
			return s, nil
		}
		s.Cancelling = true
		logf("Cancelling installer…")
		return s, []Effect{CancelProcess{}}
	}
	return s, nil
}
