package cmd

import "strings"

// Route is the outcome of classifying the argument vector.
type Route int

const (
	RouteHelp Route = iota
	RouteVersion
	RouteCommand
	RouteUnknown
)

func (r Route) String() string {
	switch r {
	case RouteHelp:
		return "help"
	case RouteVersion:
		return "version"
	case RouteCommand:
		return "command"
	default:
		return "unknown"
	}
}

// Commands lists the command tokens, in usage order.
var Commands = []string{"init", "build", "flash", "monitor", "reset", "ports"}

// Classify decides what an argument vector asks for, without side effects.
// Only tokens before the command are inspected: help flags win over version
// flags, global flags are skipped (with their values), and the first other
// token must match a command exactly. The returned token is the command or
// the offending argument.
func Classify(args []string) (Route, string) {
	var help, version bool
	token := ""

	for i := 0; i < len(args) && token == ""; i++ {
		switch arg := args[i]; {
		case arg == "-h" || arg == "--help":
			help = true
		case arg == "-v" || arg == "--version":
			version = true
		case arg == "--debug" || strings.HasPrefix(arg, "--debug=") || strings.HasPrefix(arg, "--directory="):
		case arg == "-C" || arg == "--directory":
			i++
		case strings.HasPrefix(arg, "-C"):
		default:
			token = arg
		}
	}

	switch {
	case help:
		return RouteHelp, ""
	case version:
		return RouteVersion, ""
	case token == "":
		return RouteHelp, ""
	}
	for _, c := range Commands {
		if c == token {
			return RouteCommand, token
		}
	}
	return RouteUnknown, token
}
