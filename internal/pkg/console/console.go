// Package console renders command results and errors on a terminal and reads
// prompted input.
package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/goerror"
)

var (
	colorSuccess = lipgloss.Color("#10B981")
	colorWarning = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
	colorInfo    = lipgloss.Color("#3B82F6")
	colorMuted   = lipgloss.Color("#6B7280")
	colorPrimary = lipgloss.Color("#7C3AED")
)

// ErrNoInput is returned by Prompt when the input stream is exhausted.
var ErrNoInput = errors.New("console: no input")

type Console struct {
	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer

	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	info    lipgloss.Style
	muted   lipgloss.Style
	primary lipgloss.Style
}

// New returns a Console reading prompts from in. Styles follow the colour
// support detected on out; plain buffers get no escape codes.
func New(in io.Reader, out, errOut io.Writer) *Console {
	r := lipgloss.NewRenderer(out)

	return &Console{
		in:      bufio.NewReader(in),
		out:     out,
		errOut:  errOut,
		success: r.NewStyle().Foreground(colorSuccess).Bold(true),
		warning: r.NewStyle().Foreground(colorWarning).Bold(true),
		failure: r.NewStyle().Foreground(colorError).Bold(true),
		info:    r.NewStyle().Foreground(colorInfo),
		muted:   r.NewStyle().Foreground(colorMuted),
		primary: r.NewStyle().Foreground(colorPrimary).Bold(true),
	}
}

func (c *Console) Out() io.Writer {
	return c.out
}

func (c *Console) Success(format string, args ...any) {
	fmt.Fprintf(c.out, "%s%s\n", c.success.Render("✓ "), fmt.Sprintf(format, args...))
}

func (c *Console) Warning(format string, args ...any) {
	fmt.Fprintf(c.out, "%s%s\n", c.warning.Render("⚠ "), fmt.Sprintf(format, args...))
}

func (c *Console) Info(format string, args ...any) {
	fmt.Fprintf(c.out, "%s%s\n", c.info.Render("ℹ "), fmt.Sprintf(format, args...))
}

func (c *Console) Muted(format string, args ...any) {
	fmt.Fprintln(c.out, c.muted.Render(fmt.Sprintf(format, args...)))
}

func (c *Console) Primary(format string, args ...any) {
	fmt.Fprintln(c.out, c.primary.Render(fmt.Sprintf(format, args...)))
}

// Section prints a title underlined to its width.
func (c *Console) Section(title string) {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, c.primary.Render(title))
	fmt.Fprintln(c.out, c.muted.Render(strings.Repeat("═", lipgloss.Width(title))))
}

// Table renders rows under headers with a rounded border.
func (c *Console) Table(headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(c.muted).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return c.primary.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})

	fmt.Fprintln(c.out, t.Render())
}

// Fail prints err on the error stream and returns the matching process exit
// code. Server errors never show their cause.
func (c *Console) Fail(err error) int {
	if err == nil {
		return 0
	}

	var ge *goerror.Error
	if !errors.As(err, &ge) {
		fmt.Fprintf(c.errOut, "%s%s\n", c.failure.Render("✗ "), err.Error())
		return goerror.ExitCode(err)
	}

	fmt.Fprintf(c.errOut, "%s%s\n", c.failure.Render("✗ "), ge.Msg())

	if ge.Type() == goerror.TypeValidation {
		var fields map[string]string
		var ve interface{ Values() map[string]string }
		if errors.As(ge, &ve) {
			fields = ve.Values()
		} else {
			fields = ge.Fields()
		}
		for _, k := range slices.Sorted(maps.Keys(fields)) {
			fmt.Fprintf(c.errOut, "  %s %s\n", c.muted.Render(k+":"), fields[k])
		}
	}

	return ge.ExitCode()
}

// Prompt prints label and reads one trimmed line.
func (c *Console) Prompt(label string) (string, error) {
	fmt.Fprint(c.out, c.info.Render(label+": "))

	line, err := c.in.ReadString('\n')
	if errors.Is(err, io.EOF) && line == "" {
		fmt.Fprintln(c.out)
		return "", ErrNoInput
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}

	return strings.TrimSpace(line), nil
}
