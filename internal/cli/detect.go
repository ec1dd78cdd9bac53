package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SiirRandall/proton-patch-helper/internal/steam"
)

func newDetectCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Show which Steam folder and Proton build would be used",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.resolve()
			if err != nil {
				return err
			}
			env, err := steam.Detect(e.layout)
			if err != nil {
				var de *steam.DetectionError
				if errors.As(err, &de) {
					return fmt.Errorf("%s (%w)", strings.ReplaceAll(de.Message(), "\n", " "), err)
				}
				return err
			}

			status := "ok"
			if _, err := os.Stat(env.Binary); err != nil {
				status = "missing"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Steam:    %s\n", env.Base)
			fmt.Fprintf(out, "Tools:    %s\n", env.ToolsDir)
			fmt.Fprintf(out, "Versions: %s\n", strings.Join(env.Versions, ", "))
			fmt.Fprintf(out, "Using:    %s\n", env.Version)
			fmt.Fprintf(out, "Binary:   %s (%s)\n", env.Binary, status)
			return nil
		},
	}
}
