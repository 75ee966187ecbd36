// Package iocli abstracts terminal interaction so commands can be exercised
// in tests without a tty.
package iocli

//go:generate moq -out io_mock.go . IO

// IO is the terminal surface a command talks to. Println and Printf write to
// the user; ReadInput and ReadPassword prompt and block for one line.
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	ReadInput(prompt string) (string, error)
	ReadPassword(prompt string) (string, error)
}
