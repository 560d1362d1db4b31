package importer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// TerminalPrompter asks questions on Out and reads the answers from In.
type TerminalPrompter struct {
	In  io.Reader
	Out io.Writer

	scanner *bufio.Scanner
}

// NewTerminalPrompter returns a prompter on stdin and stdout, or nil when
// stdin is not a terminal.
func NewTerminalPrompter() *TerminalPrompter {
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return nil
	}
	return &TerminalPrompter{In: os.Stdin, Out: os.Stdout}
}

// Confirm repeats question until the answer is y or n, telling the user
// about every other answer.
func (p *TerminalPrompter) Confirm(question string) (bool, error) {
	if p.scanner == nil {
		p.scanner = bufio.NewScanner(p.In)
	}
	for {
		fmt.Fprint(p.Out, question)
		if !p.scanner.Scan() {
			if err := p.scanner.Err(); err != nil {
				return false, err
			}
			return false, io.ErrUnexpectedEOF
		}
		switch strings.ToLower(strings.TrimSpace(p.scanner.Text())) {
		case "y":
			return true, nil
		case "n":
			return false, nil
		}
		fmt.Fprintln(p.Out, "Invalid input. Please enter 'y' for yes or 'n' for no.")
	}
}
