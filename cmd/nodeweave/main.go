package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/vk/nodeweave/internal/cli"
)

// main is the entrypoint for the nodeweave application.
func main() {
	if err := run(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error
// handling. Command output goes to outW, logs to logW.
func run(outW, logW io.Writer, args []string) (err error) {
	// A panicking node module must not take the process down without a
	// readable message.
	defer func() {
		if r := recover(); r != nil {
			err = &cli.ExitError{Code: 1, Message: fmt.Sprintf("application panicked: %v", r)}
		}
	}()
	return cli.Execute(args, outW, logW)
}
