package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed, color.Bold)
)

func printOK(w io.Writer, format string, a ...any) {
	_, _ = okColor.Fprintf(w, format+"\n", a...)
}

func printWarning(w io.Writer, err error) {
	_, _ = warnColor.Fprintf(w, "warning: %v\n", err)
}

func printError(w io.Writer, err error) {
	_, _ = errColor.Fprintf(w, "error: %v\n", err)
}

// splitTarget separates the optional target from the program arguments.
// dash is cobra's ArgsLenAtDash: everything after "--" is always an argument,
// so "start --config app.json -- -v" has no target.
func splitTarget(args []string, dash int) (string, []string) {
	if dash < 0 {
		dash = len(args)
	}
	before, after := args[:dash], args[dash:]
	if len(before) == 0 {
		return "", append([]string(nil), after...)
	}
	rest := append([]string(nil), before[1:]...)
	return before[0], append(rest, after...)
}

func printLine(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}
