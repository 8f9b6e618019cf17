package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/example/contentgate/internal/cli"
	"github.com/example/contentgate/internal/db"
	"github.com/example/contentgate/internal/version"
)

func main() {
	rootCmd := cli.RootCmd(version.String())

	err := rootCmd.Execute()
	db.Close()
	if err == nil {
		return
	}

	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintln(os.Stderr, exitErr.Err)
		}
		os.Exit(exitErr.Code)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
