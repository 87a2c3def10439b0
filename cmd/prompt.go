package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/adamwoolhether/hfetch/client/auth"
)

// linePrompter asks for credentials on the command line. The password is
// read without echo when in is a terminal.
type linePrompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
	tty bool
}

var _ auth.Prompter = (*linePrompter)(nil)

func newPrompter(in io.Reader, out io.Writer) *linePrompter {
	p := &linePrompter{in: bufio.NewReader(in), out: out}

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
		p.tty = true
	}

	return p
}

// PromptCredentials reads a user name and password. An empty user name or
// closed input declines.
func (p *linePrompter) PromptCredentials(ctx context.Context, host, realm string) (string, string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", "", false, err
	}

	fmt.Fprintf(p.out, "Authentication required for %q at %s\nUsername: ", realm, host)

	user, err := p.readLine()
	if err != nil || user == "" {
		return "", "", false, err
	}

	fmt.Fprint(p.out, "Password: ")

	if p.tty {
		b, err := term.ReadPassword(p.fd)
		fmt.Fprintln(p.out)
		if err != nil {
			return "", "", false, fmt.Errorf("reading password: %w", err)
		}
		return user, string(b), true, nil
	}

	pass, err := p.readLine()
	if err != nil {
		return "", "", false, err
	}

	return user, pass, true, nil
}

// readLine returns the next line without its terminator. EOF with nothing
// read returns an empty line and no error.
func (p *linePrompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading input: %w", err)
	}

	return strings.TrimRight(line, "\r\n"), nil
}

// fixedPrompter answers every challenge with the same credentials.
func fixedPrompter(userinfo string) auth.Prompter {
	user, pass, _ := strings.Cut(userinfo, ":")

	return auth.PromptFunc(func(context.Context, string, string) (string, string, bool, error) {
		return user, pass, true, nil
	})
}
