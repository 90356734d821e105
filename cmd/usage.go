package cmd

import (
	"fmt"
	"io"
)

// Version is the released version, set with -ldflags "-X lumos/cmd.Version=...".
var Version = "1.0.0"

const usageText = `Lumos - STM32 Build Tool

Usage: lumos [-C <dir>] [--debug] <command> [options]

Commands:
  init                    Initialize a new project in current directory
  build                   Build the project in current directory
  flash [port]            Flash firmware to STM32 (auto-detects port if not specified)
  monitor [port] [baud]   Monitor serial output from MCU (default 115200 baud)
  reset <port>            Reset the MCU by pulsing DTR
  ports                   List available serial ports
  --help, -h              Show this help message
  --version, -v           Show version

Global flags:
  -C, --directory <dir>   Run as if started in <dir>
  --debug                 Enable debug logging

Examples:
  mkdir my_project && cd my_project
  lumos init
  lumos build
  lumos flash
  lumos monitor /dev/ttyACM0 115200
`

func printUsage(w io.Writer) {
	fmt.Fprint(w, usageText)
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "Lumos v%s\n", Version)
}
