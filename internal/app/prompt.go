package app

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
)

// linePrompter asks yes/no questions on a line-oriented terminal. It
// implements orchestrator.Prompter.
type linePrompter struct {
	mu     sync.Mutex
	reader *bufio.Reader
	out    io.Writer
}

func newLinePrompter(in io.Reader, out io.Writer) *linePrompter {
	return &linePrompter{reader: bufio.NewReader(in), out: out}
}

func (p *linePrompter) ConfirmUpdate(name, installed, latest string) bool {
	return p.confirm(fmt.Sprintf("Update %s from %s to %s? [y/N]: ", name, installed, latest))
}

func (p *linePrompter) ConfirmReinstall(name, source string) bool {
	return p.confirm(fmt.Sprintf("Reinstall %s from %s? [y/N]: ", name, source))
}

func (p *linePrompter) Notify(title, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s: %s\n", title, message)
}

// confirm prints question and reads one answer line. Anything other than
// "y" or "yes" declines, including end of input.
func (p *linePrompter) confirm(question string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprint(p.out, question)

	response, err := p.reader.ReadString('\n')
	if err != nil && response == "" {
		fmt.Fprintln(p.out)
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
