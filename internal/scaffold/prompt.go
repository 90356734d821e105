package scaffold

import (
	"bufio"
	"io"
	"strings"

	"lumos/internal/config"
	"lumos/internal/logger"
)

// Languages are the selectable project languages, default first.
var Languages = []string{string(config.LanguageCpp), string(config.LanguageC)}

// Prompter asks numbered multiple-choice questions on a line-oriented stream.
// All questions share one buffered reader so piped answers are consumed in order.
type Prompter struct {
	in  *bufio.Reader
	log *logger.Logger
}

// NewPrompter reads answers from in and writes questions through log.
func NewPrompter(in io.Reader, log *logger.Logger) *Prompter {
	if in == nil {
		in = strings.NewReader("")
	}
	return &Prompter{in: bufio.NewReader(in), log: log}
}

// Ask prints question with numbered options and returns the chosen option.
// EOF is treated as a blank answer.
func (p *Prompter) Ask(question string, options []string, defaultIndex int) string {
	p.log.Printf("%s\n", question)
	for i, opt := range options {
		if i == defaultIndex {
			p.log.Printf("  %d. %s (default)\n", i+1, opt)
			continue
		}
		p.log.Printf("  %d. %s\n", i+1, opt)
	}
	p.log.Printf("Enter choice [1-%d]: ", len(options))

	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		// Keep the transcript readable when stdin is closed.
		p.log.Printf("\n")
	}

	choice, valid := Choose(line, options, defaultIndex)
	if !valid {
		p.log.Warn("Invalid choice, using default: %s\n", choice)
	}
	p.log.Printf("\n")
	return choice
}

// Board asks for the target board.
func (p *Prompter) Board() string {
	return p.Ask("Select target board:", config.Boards, 0)
}

// Language asks for the project language.
func (p *Prompter) Language() config.Language {
	return config.Language(p.Ask("Select programming language:", Languages, 0))
}
