package tui

import (
	"github.com/muesli/termenv"

	"github.com/epistimio/kleio/pkg/domain"
)

// statusColors maps each status to a terminal color: green for healthy
// terminal states, yellow for resumable ones, red for failures.
var statusColors = map[domain.Status]string{
	domain.StatusNew:         "#9ca3af",
	domain.StatusReserved:    "#60a5fa",
	domain.StatusRunning:     "#38bdf8",
	domain.StatusCompleted:   "#4ade80",
	domain.StatusSuspended:   "#facc15",
	domain.StatusInterrupted: "#facc15",
	domain.StatusFailover:    "#fb923c",
	domain.StatusSwitchover:  "#fb923c",
	domain.StatusBroken:      "#f87171",
	domain.StatusBranched:    "#c084fc",
}

// ColorStatus renders a status name in its color, when the terminal
// supports it.
func ColorStatus(status domain.Status) string {
	color, ok := statusColors[status]
	if !ok {
		return string(status)
	}
	p := termenv.ColorProfile()
	return termenv.String(string(status)).Foreground(p.Color(color)).String()
}
