// ABOUTME: Argument parsing and interactive prompts for the admin CLI
// ABOUTME: Flags accept both "--name value" and "--name=value" forms

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"
)

var timeNow = time.Now

// flags holds parsed command-line options. Repeated flags accumulate.
type flags struct {
	values     map[string][]string
	positional []string
}

// parseFlags parses args against the allowed flag names. Short aliases map
// to their long names.
func parseFlags(args []string, allowed []string, aliases map[string]string) (*flags, error) {
	known := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		known[name] = true
	}

	f := &flags{values: map[string][]string{}}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			f.positional = append(f.positional, arg)
			continue
		}

		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if long, ok := aliases[name]; ok {
			name = long
		}
		if !known[name] {
			return nil, fmt.Errorf("unknown flag: %s", arg)
		}
		if !hasValue {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--%s requires a value", name)
			}
			value = args[i+1]
			i++
		}
		f.values[name] = append(f.values[name], value)
	}
	return f, nil
}

// get returns the last value given for name.
func (f *flags) get(name string) string {
	vals := f.values[name]
	if len(vals) == 0 {
		return ""
	}
	return vals[len(vals)-1]
}

func (f *flags) all(name string) []string {
	return f.values[name]
}

func (f *flags) int(name string) (int, error) {
	v := f.get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("--%s must be a number, got %q", name, v)
	}
	return n, nil
}

// prompter reads answers from the terminal or from piped input.
type prompter struct {
	in     io.Reader
	out    io.Writer
	reader *bufio.Reader
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: in, out: out, reader: bufio.NewReader(in)}
}

func (p *prompter) line(question string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", question)
	input, err := p.reader.ReadString('\n')
	if err != nil && input == "" {
		fmt.Fprintln(p.out)
		return "", fmt.Errorf("reading %s: %w", strings.ToLower(question), err)
	}
	return strings.TrimSpace(input), nil
}

// secret reads without echo when attached to a terminal.
func (p *prompter) secret(question string) (string, error) {
	if file, ok := p.in.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		fmt.Fprintf(p.out, "%s: ", question)
		b, err := term.ReadPassword(int(file.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", strings.ToLower(question), err)
		}
		return string(b), nil
	}
	input, err := p.reader.ReadString('\n')
	if err != nil && input == "" {
		return "", fmt.Errorf("reading %s: %w", strings.ToLower(question), err)
	}
	return strings.TrimRight(input, "\r\n"), nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
