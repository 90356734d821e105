package main

import (
	"os"

	"lumos/cmd" // CLI commands, argument classification and exit codes
)

// main is the program entry point.
// It delegates to cmd.Execute(), which routes the arguments to a command and
// returns the process exit code:
//   - 0 on success, including help and version output
//   - 1 when a command fails
//   - 2 for an unknown command or malformed arguments
//   - 130 when interrupted
func main() {
	os.Exit(cmd.Execute())
}
