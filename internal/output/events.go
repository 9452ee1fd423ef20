package output

import (
	"fmt"
	"io"

	"github.com/tanq16/hoard/internal/journal"
)

// PrintEvents writes journal events oldest first.
func PrintEvents(w io.Writer, events []journal.Event) {
	if len(events) == 0 {
		fmt.Fprintln(w, debugStyle.Render("  no events"))
		return
	}
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		if e.State == journal.IdleState {
			fmt.Fprintf(w, "  %s %s\n", debugStyle.Render(e.CreatedAt), streamStyle.Render("queue idle"))
			continue
		}
		style := infoStyle
		switch e.State {
		case "failed":
			style = errorStyle
		case "completed", "removed":
			style = successStyle
		}
		line := fmt.Sprintf("  %s %s %s %s %s %s",
			debugStyle.Render(e.CreatedAt),
			debugStyle.Render(shortID(e.TaskID)),
			streamStyle.Render(e.PrevState+" "+StyleSymbols["arrow"]),
			style.Render(e.State),
			e.ContentID,
			streamStyle.Render("["+e.SubKeys+"]"))
		fmt.Fprintln(w, line)
		if e.Error.Valid {
			fmt.Fprintf(w, "      %s\n", errorStyle.Render(e.Error.String))
		}
	}
}
