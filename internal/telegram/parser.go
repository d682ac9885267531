package telegram

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrNotCommand   = errors.New("not a command")
	ErrEmptyCommand = errors.New("empty command")
)

// CommandArgs is a parsed slash command.
type CommandArgs struct {
	Command string
	Raw     []string
	// Text is everything after the command word, with inner spacing kept.
	Text string
}

// Arg returns the i-th argument or "".
func (a *CommandArgs) Arg(i int) string {
	if i < 0 || i >= len(a.Raw) {
		return ""
	}
	return a.Raw[i]
}

// ParseCommand splits "/cmd@bot a b" into its command and arguments. The
// command is lower-cased and any bot mention is dropped.
func ParseCommand(text string) (*CommandArgs, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return nil, ErrNotCommand
	}

	parts := strings.Fields(text)
	cmd := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	if cmd == "" {
		return nil, ErrEmptyCommand
	}

	args := &CommandArgs{Command: cmd, Raw: parts[1:]}
	args.Text = strings.TrimSpace(strings.TrimPrefix(text, parts[0]))
	return args, nil
}

// ParseAmount reads a user-typed money or share amount such as "$1,250.50".
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return decimal.Zero, fmt.Errorf("missing amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q is not a number", s)
	}
	return d, nil
}
