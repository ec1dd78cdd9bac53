package app

import (
	"runtime"

	"fyne.io/fyne/v2"
	fynex "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/theme"
	"github.com/sirupsen/logrus"

	"github.com/SiirRandall/proton-patch-helper/internal/runner"
	"github.com/SiirRandall/proton-patch-helper/internal/steam"
	"github.com/SiirRandall/proton-patch-helper/internal/ui"
)

// Options carries what the command line resolved.
type Options struct {
	Layout    steam.Layout
	Runner    *runner.Runner
	Log       *logrus.Logger
	Preselect string
}

// Run is the entry point used by cmd. It blocks until the window closes.
func Run(opts Options) {
	if runtime.GOOS != "linux" {
		opts.Log.Warn("Proton is a Linux Steam tool; paths here target Linux layouts")
	}

	a := fynex.NewWithID("com.sirrandall.protonpatch.helper")
	a.SetIcon(theme.DownloadIcon())

	w := a.NewWindow("Proton Patch Helper")
	w.Resize(fyne.NewSize(720, 480))

	// Build and mount the UI.
	v := ui.Build(w, ui.Options{
		Layout:    opts.Layout,
		Starter:   opts.Runner,
		Log:       opts.Log,
		Preselect: opts.Preselect,
	})
	w.SetOnClosed(v.Controller().Close)

	w.ShowAndRun()
}
