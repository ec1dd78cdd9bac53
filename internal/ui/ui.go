package ui

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"

	"github.com/SiirRandall/proton-patch-helper/internal/session"
	"github.com/SiirRandall/proton-patch-helper/internal/steam"
)

// roLast holds the text each read-only entry last had set by the program.
var (
	roMu   sync.Mutex
	roLast = map[*widget.Entry]string{}
)

// makeReadOnlyEntry styles e as a log view and reverts anything the user
// types back to the last text set through setEntryText.
func makeReadOnlyEntry(e *widget.Entry) {
	e.Wrapping = fyne.TextWrapWord
	e.TextStyle = fyne.TextStyle{Monospace: true}
	e.OnChanged = func(typed string) {
		roMu.Lock()
		want := roLast[e]
		roMu.Unlock()
		if typed == want {
			return
		}
		fyne.Do(func() { replaceText(e, want) })
	}
}

// replaceText swaps the text without firing OnChanged and parks the cursor
// on the last line.
func replaceText(e *widget.Entry, s string) {
	onchg := e.OnChanged
	e.OnChanged = nil
	e.SetText(s)
	e.CursorColumn = 0
	e.CursorRow = strings.Count(s, "\n")
	e.OnChanged = onchg
}

// setEntryText must run on the UI goroutine.
func setEntryText(e *widget.Entry, s string) {
	replaceText(e, s)
	roMu.Lock()
	roLast[e] = s
	roMu.Unlock()
}

func formatEntry(le session.LogEntry) string {
	return fmt.Sprintf("[%s] %s\n", le.At.Format("15:04:05"), le.Text)
}

// Options configures Build.
type Options struct {
	Layout    steam.Layout
	Starter   session.Starter
	Log       logrus.FieldLogger
	Preselect string // installer path chosen on the command line
}

// View is the mounted window content.
type View struct {
	w    fyne.Window
	ctrl *session.Controller

	selectionLabel *widget.Label
	chooseBtn      *widget.Button
	allFiles       *widget.Check
	versionSelect  *widget.Select
	installBtn     *widget.Button
	cancelBtn      *widget.Button
	progress       *widget.ProgressBar
	logView        *widget.Entry

	rendered int // log entries already appended to logView
	lastDir  string

	// bursts of state changes collapse into one render of the latest state
	pendingMu sync.Mutex
	pending   session.State
	scheduled bool
}

// Build builds and mounts the UI on the given window, then probes the
// environment once.
func Build(w fyne.Window, opts Options) *View {
	v := &View{w: w}
	v.ctrl = session.New(opts.Starter, v, opts.Log)

	v.selectionLabel = widget.NewLabel(session.NoneSelected)
	v.selectionLabel.Truncation = fyne.TextTruncateEllipsis
	v.selectionLabel.Importance = widget.LowImportance
	v.chooseBtn = widget.NewButton("Select…", v.choose)
	v.allFiles = widget.NewCheck("All files", nil)

	v.versionSelect = widget.NewSelect(nil, func(s string) { v.ctrl.SelectVersion(s) })
	v.versionSelect.PlaceHolder = "No Proton detected"
	v.versionSelect.Disable()

	v.installBtn = widget.NewButton("Start Installation", v.ctrl.Install)
	v.installBtn.Importance = widget.HighImportance
	v.cancelBtn = widget.NewButton("Cancel", v.ctrl.Cancel)
	v.cancelBtn.Disable()

	v.progress = widget.NewProgressBar()
	v.progress.Min = 0
	v.progress.Max = 1

	v.logView = widget.NewMultiLineEntry()
	makeReadOnlyEntry(v.logView)
	v.logView.SetPlaceHolder("Logs will appear here…")

	// Layout
	fileRow := container.NewBorder(nil, nil,
		widget.NewLabel("Translation file (.exe):"),
		container.NewHBox(v.allFiles, v.chooseBtn),
		v.selectionLabel,
	)
	versionRow := container.NewBorder(nil, nil, widget.NewLabel("Proton version:"), nil, v.versionSelect)
	execRow := container.NewBorder(nil, nil, container.NewHBox(v.installBtn, v.cancelBtn), nil, v.progress)
	top := container.NewVBox(fileRow, versionRow, execRow, widget.NewLabel("Logs:"))
	w.SetContent(container.NewBorder(top, nil, nil, nil, v.logView))

	v.ctrl.OnChange(v.schedule)

	v.ctrl.Detect(opts.Layout)
	if opts.Preselect != "" {
		v.ctrl.Choose(opts.Preselect)
	}
	return v
}

// Controller exposes the session driving this view.
func (v *View) Controller() *session.Controller { return v.ctrl }

func (v *View) schedule(s session.State) {
	v.pendingMu.Lock()
	v.pending = s
	queued := v.scheduled
	v.scheduled = true
	v.pendingMu.Unlock()
	if !queued {
		fyne.Do(v.flush)
	}
}

func (v *View) flush() {
	v.pendingMu.Lock()
	s := v.pending
	v.scheduled = false
	v.pendingMu.Unlock()
	v.render(s)
}

func (v *View) render(s session.State) {
	v.selectionLabel.SetText(s.SelectionLabel())
	if s.Selected != "" {
		v.selectionLabel.Importance = widget.MediumImportance
		v.lastDir = filepath.Dir(s.Selected)
	}
	v.selectionLabel.Refresh()

	if s.EnvOK {
		v.versionSelect.SetOptions(s.Env.Versions)
		if v.versionSelect.Selected != s.Env.Version {
			// render runs under the controller lock; do not echo back into it
			onchg := v.versionSelect.OnChanged
			v.versionSelect.OnChanged = nil
			v.versionSelect.SetSelected(s.Env.Version)
			v.versionSelect.OnChanged = onchg
		}
	}
	setEnabled(v.versionSelect, s.EnvOK && !s.Running)
	setEnabled(v.installBtn, s.CanRun())
	setEnabled(v.cancelBtn, s.CanCancel())
	setEnabled(v.chooseBtn, !s.Running)

	v.progress.SetValue(s.Progress)

	if len(s.Log) > v.rendered {
		var b strings.Builder
		for _, le := range s.Log[v.rendered:] {
			b.WriteString(formatEntry(le))
		}
		v.rendered = len(s.Log)
		setEntryText(v.logView, v.logView.Text+b.String())
	}
}

type disableable interface {
	Enable()
	Disable()
}

func setEnabled(d disableable, on bool) {
	if on {
		d.Enable()
	} else {
		d.Disable()
	}
}

func (v *View) choose() {
	d := dialog.NewFileOpen(func(r fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, v.w)
			return
		}
		if r == nil {
			v.ctrl.ChooseCancelled()
			return
		}
		path := r.URI().Path()
		_ = r.Close()
		v.ctrl.Choose(path)
	}, v.w)
	if !v.allFiles.Checked {
		d.SetFilter(storage.NewExtensionFileFilter([]string{".exe", ".EXE"}))
	}
	if v.lastDir != "" {
		if l, err := storage.ListerForURI(storage.NewFileURI(v.lastDir)); err == nil {
			d.SetLocation(l)
		}
	}
	d.Show()
}

// Notify shows d as a modal dialog on the window.
func (v *View) Notify(d session.Dialog) {
	fyne.Do(func() {
		switch d.Severity {
		case session.Info:
			dialog.ShowInformation(d.Title, d.Message, v.w)
		case session.Warning:
			body := container.NewHBox(widget.NewIcon(theme.WarningIcon()), widget.NewLabel(d.Message))
			dialog.ShowCustom(d.Title, "OK", body, v.w)
		default:
			dialog.ShowError(errors.New(d.Message), v.w)
		}
	})
}
