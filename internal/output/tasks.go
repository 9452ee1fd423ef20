package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/tanq16/hoard/internal/scheduler"
	"github.com/tanq16/hoard/internal/utils"
)

// PrintTasks writes one line per task in queue order.
func PrintTasks(w io.Writer, tasks []scheduler.TaskSnapshot) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, debugStyle.Render("  no tasks"))
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("  %-8s  %-9s  %-6s  %-12s  %s", "TASK", "STATE", "FORMAT", "KEYS", "CONTENT")))
	for _, t := range tasks {
		style, symbol := stateStyle(t.State)
		keys := keysLabel(t.Action)
		if t.Pending {
			keys += " +pending"
		}
		line := fmt.Sprintf("%s %-8s  %-9s  %-6s  %-12s  %s", style.Render(symbol), shortID(t.ID), t.State, t.Action.Format, keys, t.Action.ContentID)
		fmt.Fprintln(w, " "+line)
		var details []string
		if t.RetryCount > 0 {
			details = append(details, fmt.Sprintf("retries %d", t.RetryCount))
		}
		if t.Downloaded > 0 {
			details = append(details, utils.FormatBytes(uint64(t.Downloaded)))
		}
		if t.Err != nil {
			details = append(details, errorStyle.Render(t.Err.Error()))
		}
		if len(details) > 0 {
			fmt.Fprintf(w, "%s%s\n", strings.Repeat(" ", 2+4), streamStyle.Render(strings.Join(details, " "+StyleSymbols["dot"]+" ")))
		}
	}
}
