package session

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SiirRandall/proton-patch-helper/internal/runner"
	"github.com/SiirRandall/proton-patch-helper/internal/steam"
)

var t0 = time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)

const wine = "/steam/GE-Proton9-5/files/bin/wine"

func readyState() State {
	return State{
		Env:   steam.Environment{Version: "GE-Proton9-5", Binary: wine},
		EnvOK: true,
	}
}

func dialogs(effects []Effect) []Dialog {
	var out []Dialog
	for _, e := range effects {
		if d, ok := e.(ShowDialog); ok {
			out = append(out, d.Dialog)
		}
	}
	return out
}

func TestDetectionFailureDisablesRun(t *testing.T) {
	for _, kind := range []steam.Kind{steam.BaseMissing, steam.ToolsDirMissing, steam.NoVersion} {
		t.Run(kind.String(), func(t *testing.T) {
			err := &steam.DetectionError{Kind: kind, Path: "/home/u/.local/share/Steam"}
			s, effects := Reduce(State{}, Detected{Err: err}, t0)

			assert.False(t, s.CanRun())
			assert.Equal(t, err, s.EnvErr)
			require.Len(t, dialogs(effects), 1)
			d := dialogs(effects)[0]
			assert.Equal(t, Critical, d.Severity)
			assert.Equal(t, err.Message(), d.Message)
			require.Len(t, s.Log, 1)
			assert.Contains(t, s.Log[0].Text, "❌")

			// a later run request must not start anything
			s, effects = Reduce(s, FileChosen{Path: "/tmp/patch.exe"}, t0)
			_, effects = Reduce(s, RunRequested{Tool: wine, ToolExists: true}, t0)
			for _, e := range effects {
				assert.NotEqual(t, "StartProcess", typeName(e))
			}
		})
	}
}

func TestDetectionSuccessEnablesRun(t *testing.T) {
	env := steam.Environment{Version: "GE-Proton8-1", Binary: "/x/GE-Proton8-1/files/bin/wine"}
	s, effects := Reduce(State{}, Detected{Env: env}, t0)

	assert.True(t, s.CanRun())
	assert.Empty(t, effects)
	assert.Equal(t, []string{"✅ Proton detected: GE-Proton8-1"}, s.Lines())
	assert.Equal(t, t0, s.Log[0].At)
}

func TestChooseThenCancelKeepsSelection(t *testing.T) {
	s, _ := Reduce(readyState(), FileChosen{Path: "/games/first.exe"}, t0)
	s, effects := Reduce(s, ChooseCancelled{}, t0)
	assert.Empty(t, effects)
	assert.Equal(t, "/games/first.exe", s.Selected)
	assert.Equal(t, "/games/first.exe", s.SelectionLabel())

	s, _ = Reduce(readyState(), ChooseCancelled{}, t0)
	assert.Equal(t, NoneSelected, s.SelectionLabel())
}

func TestRunWithoutSelectionWarns(t *testing.T) {
	s, effects := Reduce(readyState(), RunRequested{Tool: wine, ToolExists: true}, t0)

	require.Len(t, effects, 1)
	assert.Equal(t, Warning, effects[0].(ShowDialog).Dialog.Severity)
	assert.False(t, s.Running)
	assert.Equal(t, ProgressIdle, s.Progress)
}

func TestRunWithMissingToolIsCritical(t *testing.T) {
	s, _ := Reduce(readyState(), FileChosen{Path: "/games/patch.exe"}, t0)
	s, effects := Reduce(s, RunRequested{Tool: wine, ToolExists: false}, t0)

	require.Len(t, effects, 1)
	d := effects[0].(ShowDialog).Dialog
	assert.Equal(t, Critical, d.Severity)
	assert.Equal(t, "Could not locate the Proton binary.", d.Message)
	assert.False(t, s.Running)
}

func TestRunLifecycleSuccess(t *testing.T) {
	s, _ := Reduce(readyState(), FileChosen{Path: "/games/patch.exe"}, t0)
	s, effects := Reduce(s, RunRequested{Tool: wine, ToolExists: true}, t0)

	require.Len(t, effects, 1)
	assert.Equal(t, StartProcess{Tool: wine, File: "/games/patch.exe"}, effects[0])
	assert.True(t, s.Running)
	assert.False(t, s.CanRun())
	assert.True(t, s.CanCancel())
	assert.Equal(t, ProgressStarted, s.Progress)

	// a second request while running is ignored
	_, effects = Reduce(s, RunRequested{Tool: wine, ToolExists: true}, t0)
	assert.Empty(t, effects)

	s, _ = Reduce(s, LineReceived{Line: "wine: copying files"}, t0)
	s, effects = Reduce(s, RunFinished{Outcome: runner.Outcome{ExitCode: 0, Lines: 1}}, t0)

	assert.False(t, s.Running)
	assert.Equal(t, ProgressDone, s.Progress)
	assert.Equal(t, []Dialog{{Severity: Info, Title: "Success", Message: "Installation completed successfully!"}}, dialogs(effects))
	lines := s.Lines()
	assert.Equal(t, "wine: copying files", lines[len(lines)-2])
	assert.Equal(t, "✅ Installation complete!", lines[len(lines)-1])
}

func TestRunFinishedOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		outcome  runner.Outcome
		severity Severity
		logLine  string
	}{
		{"nonzero", runner.Outcome{ExitCode: 2}, Warning, "❌ Installer returned code 2"},
		{"cancelled", runner.Outcome{ExitCode: -1, Cancelled: true}, Warning, "⚠ Installation cancelled"},
		{"wait error", runner.Outcome{ExitCode: -1, Err: errors.New("broken pipe")}, Error, "❌ Error running installer: broken pipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := readyState()
			s.Selected = "/games/patch.exe"
			s.Running = true
			s, effects := Reduce(s, RunFinished{Outcome: tt.outcome}, t0)

			require.Len(t, dialogs(effects), 1)
			assert.Equal(t, tt.severity, dialogs(effects)[0].Severity)
			assert.NotEqual(t, "Success", dialogs(effects)[0].Title)
			assert.Equal(t, tt.logLine, s.Lines()[len(s.Log)-1])
			assert.Equal(t, ProgressDone, s.Progress)
			assert.True(t, s.CanRun())
		})
	}
}

func TestSpawnFailed(t *testing.T) {
	s := readyState()
	s.Selected = "/games/patch.exe"
	s, _ = Reduce(s, RunRequested{Tool: wine, ToolExists: true}, t0)
	s, effects := Reduce(s, SpawnFailed{Err: errors.New("permission denied")}, t0)

	require.Len(t, effects, 1)
	d := effects[0].(ShowDialog).Dialog
	assert.Equal(t, Critical, d.Severity)
	assert.Contains(t, d.Message, "permission denied")
	assert.False(t, s.Running)
	assert.Equal(t, ProgressDone, s.Progress)
}

func TestCancelRequested(t *testing.T) {
	_, effects := Reduce(readyState(), CancelRequested{}, t0)
	assert.Empty(t, effects, "nothing to cancel")

	s := readyState()
	s.Running = true
	s, effects = Reduce(s, CancelRequested{}, t0)
	assert.Equal(t, []Effect{CancelProcess{}}, effects)
	assert.False(t, s.CanCancel())

	_, effects = Reduce(s, CancelRequested{}, t0)
	assert.Empty(t, effects, "second cancel is a no-op")
}

func TestVersionChosen(t *testing.T) {
	root := t.TempDir()
	env := steam.Environment{ToolsDir: root, Versions: []string{"A-Proton", "B-Proton"}}
	env, ok := env.WithVersion("A-Proton")
	require.True(t, ok)

	s, _ := Reduce(State{}, Detected{Env: env}, t0)
	s, _ = Reduce(s, VersionChosen{Version: "B-Proton"}, t0)
	assert.Equal(t, "B-Proton", s.Env.Version)
	assert.Contains(t, s.Env.Binary, "B-Proton")

	s, _ = Reduce(s, VersionChosen{Version: "missing"}, t0)
	assert.Equal(t, "B-Proton", s.Env.Version)
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	before := readyState()
	before.Log = []LogEntry{{At: t0, Text: "one"}}
	_, _ = Reduce(before, FileChosen{Path: "/x.exe"}, t0)
	assert.Len(t, before.Log, 1)
	assert.Empty(t, before.Selected)
}

func TestRunRefusesToolThatWasNotChecked(t *testing.T) {
	s, _ := Reduce(readyState(), FileChosen{Path: "/games/patch.exe"}, t0)
	// checked GE-Proton8-1, but the session switched versions meanwhile
	s, effects := Reduce(s, RunRequested{Tool: "/steam/GE-Proton8-1/files/bin/wine", ToolExists: true}, t0)

	require.Len(t, effects, 1)
	assert.Equal(t, "ShowDialog", typeName(effects[0]))
	assert.Equal(t, Warning, effects[0].(ShowDialog).Dialog.Severity)
	assert.False(t, s.Running)
	assert.Equal(t, ProgressIdle, s.Progress)
}

func TestSnapshotsDoNotShareAppends(t *testing.T) {
	base := readyState()
	base.Log = make([]LogEntry, 1, 8)
	base.Log[0] = LogEntry{At: t0, Text: "one"}
	snap := base.snapshot()

	a, _ := Reduce(snap, FileChosen{Path: "/a.exe"}, t0)
	b, _ := Reduce(snap, FileChosen{Path: "/b.exe"}, t0)

	assert.Equal(t, "Selected translation: /a.exe", a.Lines()[1])
	assert.Equal(t, "Selected translation: /b.exe", b.Lines()[1])
	assert.Len(t, snap.Log, 1)
}

func typeName(e Effect) string {
	switch e.(type) {
	case StartProcess:
		return "StartProcess"
	case CancelProcess:
		return "CancelProcess"
	case ShowDialog:
		return "ShowDialog"
	}
	return ""
}
