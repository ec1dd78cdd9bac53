package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/SiirRandall/proton-patch-helper/internal/session"
)

// ExitError carries the installer's exit status out of the run command.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("installer exited with code %d", e.Code)
}

func (e *ExitError) ExitCode() int { return e.Code }

func newRunCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run <installer.exe>",
		Short: "Run an installer through Proton without opening the window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.resolve()
			if err != nil {
				return err
			}
			file, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
			var failure *session.Dialog
			ctrl := session.New(e.runner, session.NotifierFunc(func(d session.Dialog) {
				if d.Severity != session.Info {
					failure = &d
				}
				fmt.Fprintf(errOut, "%s: %s\n", d.Title, d.Message)
			}), e.log)
			defer ctrl.Close()

			printed := 0
			ctrl.OnChange(func(s session.State) {
				for _, le := range s.Log[printed:] {
					fmt.Fprintln(out, le.Text)
				}
				printed = len(s.Log)
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				ctrl.Cancel()
			}()

			ctrl.Detect(e.layout)
			if !ctrl.State().EnvOK {
				return errors.New(failure.Message)
			}
			ctrl.Choose(file)
			ctrl.Install()
			ctrl.Wait()

			s := ctrl.State()
			if s.Last != nil && !s.Last.Success() {
				if s.Last.ExitCode > 0 {
					return &ExitError{Code: s.Last.ExitCode}
				}
				return errors.New(failure.Message)
			}
			if failure != nil {
				return errors.New(failure.Message)
			}
			return nil
		},
	}
}
