package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/moby/term"
)

// prompter reads answers from one buffered reader so consecutive prompts do
// not lose input.
type prompter struct {
	in     io.Reader
	out    io.Writer
	reader *bufio.Reader
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: in, out: out, reader: bufio.NewReader(in)}
}

// readLine prints prompt and returns the next line. When silent is set and
// input is a terminal, echo is disabled while typing.
func (p *prompter) readLine(prompt string, silent bool) (string, error) {
	fmt.Fprint(p.out, prompt)

	if silent {
		if fd, isTerminal := term.GetFdInfo(p.in); isTerminal {
			state, err := term.SaveState(fd)
			if err != nil {
				return "", err
			}
			if err := term.DisableEcho(fd, state); err != nil {
				return "", err
			}
			defer func() {
				_ = term.RestoreTerminal(fd, state)
				fmt.Fprintln(p.out)
			}()
		}
	}

	line, err := p.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
