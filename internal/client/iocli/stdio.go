package iocli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// Stdio implements IO on the process's standard streams.
type Stdio struct {
	in *bufio.Reader
}

// NewStdio returns an IO bound to stdin and stdout.
func NewStdio() IO {
	return &Stdio{in: bufio.NewReader(os.Stdin)}
}

func (s *Stdio) Println(a ...any) {
	fmt.Println(a...)
}

func (s *Stdio) Printf(format string, a ...any) {
	fmt.Printf(format, a...)
}

// ReadInput prints the prompt and reads one line, trimmed of surrounding
// whitespace.
func (s *Stdio) ReadInput(prompt string) (string, error) {
	s.Printf("%s", prompt)
	input, err := s.in.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// ReadPassword prints the prompt and reads a line with terminal echo
// disabled. The user's newline is swallowed along with the echo, so one is
// printed before returning.
func (s *Stdio) ReadPassword(prompt string) (string, error) {
	s.Printf("%s", prompt)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	s.Println()
	if err != nil {
		return "", err
	}
	return string(pw), nil
}
