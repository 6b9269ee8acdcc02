package ui

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Sprint color functions for building styled strings.
var (
	Bold        = color.New(color.Bold).SprintFunc()
	Dim         = color.New(color.Faint).SprintFunc()
	Cyan        = color.New(color.FgCyan).SprintFunc()
	Green       = color.New(color.FgGreen).SprintFunc()
	Red         = color.New(color.FgRed).SprintFunc()
	Yellow      = color.New(color.FgYellow).SprintFunc()
	BoldCyan    = color.New(color.Bold, color.FgCyan).SprintFunc()
	BoldGreen   = color.New(color.Bold, color.FgGreen).SprintFunc()
	BoldRed     = color.New(color.Bold, color.FgRed).SprintFunc()
	BoldYellow  = color.New(color.Bold, color.FgYellow).SprintFunc()
	BoldMagenta = color.New(color.Bold, color.FgMagenta).SprintFunc()
)

// SetNoColor turns colored output off (or back on) for the whole process.
func SetNoColor(off bool) {
	color.NoColor = off
}

// PrintLogo renders the colored banner to w.
func PrintLogo(w io.Writer) {
	frame := color.New(color.FgCyan)
	bars := color.New(color.FgYellow)
	brand := color.New(color.Bold, color.FgMagenta)
	tag := color.New(color.Faint)

	fmt.Fprintln(w)
	frame.Fprintln(w, "   +-----------------------+")
	bars.Fprintln(w, "   | P1 ####  ##  ######   |")
	bars.Fprintln(w, "   | P2   ######  ###  ##  |")
	brand.Fprintln(w, "   |   I  P  E  F  T       |")
	frame.Fprintln(w, "   +-----------------------+")
	tag.Fprintln(w, "   lookahead list scheduling")
	fmt.Fprintln(w)
}

// processorColors is a palette of distinct bold colors for telling
// processors apart.
var processorColors = []func(a ...interface{}) string{
	BoldMagenta,
	BoldCyan,
	BoldYellow,
	BoldGreen,
	color.New(color.Bold, color.FgHiBlue).SprintFunc(),
	color.New(color.Bold, color.FgHiRed).SprintFunc(),
}

// ProcessorColor returns the palette entry for processor p.
func ProcessorColor(p int) func(a ...interface{}) string {
	return processorColors[p%len(processorColors)]
}

// ProcessorLabel returns a colored 1-based "P<n>" label.
func ProcessorLabel(p int) string {
	return ProcessorColor(p)(fmt.Sprintf("P%d", p+1))
}

// CriticalMarker returns a marker for critical-path membership: a star for
// critical tasks, a plus for tasks feeding one, blank otherwise.
func CriticalMarker(critical, adjacent bool) string {
	switch {
	case critical:
		return BoldRed("*")
	case adjacent:
		return Yellow("+")
	default:
		return " "
	}
}

// StatusIcon returns a colored status icon for a run status.
func StatusIcon(status string) string {
	switch status {
	case "scheduled":
		return Green("✓")
	case "failed":
		return Red("✗")
	default:
		return Dim("◌")
	}
}
