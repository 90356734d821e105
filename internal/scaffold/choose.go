package scaffold

import (
	"strconv"
	"strings"
)

// Choose resolves a line of user input against options.
// Input may be a 1-based index or an exact option name. Blank input selects
// options[defaultIndex]. Anything else also selects the default, and valid is
// false so the caller can tell the user.
func Choose(input string, options []string, defaultIndex int) (choice string, valid bool) {
	if len(options) == 0 {
		return "", false
	}
	if defaultIndex < 0 || defaultIndex >= len(options) {
		defaultIndex = 0
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return options[defaultIndex], true
	}
	if n, err := strconv.Atoi(input); err == nil {
		if n >= 1 && n <= len(options) {
			return options[n-1], true
		}
		return options[defaultIndex], false
	}
	for _, opt := range options {
		if opt == input {
			return opt, true
		}
	}
	return options[defaultIndex], false
}
