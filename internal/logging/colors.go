package logging

import "github.com/fatih/color"

// Per-level colorizers. fatih/color disables escape sequences automatically
// when the destination isn't a terminal (or NO_COLOR is set), which is why
// this package leans on it instead of emitting raw ANSI codes.
var levelColor = map[Level]*color.Color{
	Error: color.New(color.FgRed, color.Bold),
	Warn:  color.New(color.FgYellow),
	Info:  color.New(color.FgGreen),
	Debug: color.New(color.FgCyan),
}

func (l Level) colorize(s string) string {
	c, ok := levelColor[l]
	if !ok {
		c = color.New(color.FgWhite)
	}
	return c.Sprint(s)
}
