package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/SiirRandall/proton-patch-helper/internal/app"
	"github.com/SiirRandall/proton-patch-helper/internal/cli"
)

func main() {
	if err := cli.NewRootCmd(app.Run).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var ec interface{ ExitCode() int }
	if errors.As(err, &ec) && ec.ExitCode() > 0 {
		return ec.ExitCode()
	}
	return 1
}
