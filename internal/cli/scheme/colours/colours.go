package colours

import "github.com/fatih/color"

// Color scheme for the CLI
var (
	Title    = color.New(color.FgCyan, color.Bold)
	Genie    = color.New(color.FgMagenta, color.Bold)
	Learner  = color.New(color.FgBlue, color.Bold)
	Example  = color.New(color.FgHiBlack, color.Italic)
	Prompt   = color.New(color.FgGreen, color.Bold)
	Error    = color.New(color.FgRed, color.Bold)
	Success  = color.New(color.FgGreen)
	Info     = color.New(color.FgBlue)
	Warning  = color.New(color.FgYellow)
	Progress = color.New(color.FgYellow, color.Bold)
)
