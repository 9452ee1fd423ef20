package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tanq16/hoard/internal/scheduler"
	"github.com/tanq16/hoard/internal/utils"
)

type taskRow struct {
	snap        scheduler.TaskSnapshot
	startTime   time.Time
	lastUpdated time.Time
	index       int
}

type ErrorReport struct {
	TaskID    string
	ContentID string
	Error     error
	Time      time.Time
}

// Display is the live view used while downloads run. It listens for state
// changes and polls the source for progress on every tick.
type Display struct {
	out         io.Writer
	source      func() []scheduler.TaskSnapshot
	rows        map[string]*taskRow
	mutex       sync.RWMutex
	numLines    int
	rowCount    int
	errors      []ErrorReport
	doneCh      chan struct{}
	displayTick time.Duration
	displayWg   sync.WaitGroup
	interactive bool
}

var _ scheduler.Listener = (*Display)(nil)

func NewDisplay(out io.Writer, source func() []scheduler.TaskSnapshot) *Display {
	return &Display{
		out:         out,
		source:      source,
		rows:        make(map[string]*taskRow),
		doneCh:      make(chan struct{}),
		displayTick: 300 * time.Millisecond,
		interactive: isTerminal(),
	}
}

func (d *Display) OnTaskStateChanged(s scheduler.TaskSnapshot) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	row := d.upsert(s)
	if s.State != s.PrevState && s.State == scheduler.StateStarted {
		row.startTime = time.Now()
	}
	if s.State == scheduler.StateFailed && s.Err != nil {
		d.errors = append(d.errors, ErrorReport{TaskID: s.ID, ContentID: s.Action.ContentID, Error: s.Err, Time: time.Now()})
	}
	if !d.interactive {
		style, symbol := stateStyle(s.State)
		fmt.Fprintf(d.out, "  %s %s %s %s\n", style.Render(symbol), debugStyle.Render(shortID(s.ID)), style.Render(s.State.String()), s.Action.ContentID)
	}
}

func (d *Display) OnIdle() {}

func (d *Display) upsert(s scheduler.TaskSnapshot) *taskRow {
	row, ok := d.rows[s.ID]
	if !ok {
		d.rowCount++
		row = &taskRow{startTime: time.Now(), index: d.rowCount}
		d.rows[s.ID] = row
	}
	row.snap = s
	row.lastUpdated = time.Now()
	return row
}

func (d *Display) refresh() {
	if d.source == nil {
		return
	}
	tasks := d.source()
	d.mutex.Lock()
	defer d.mutex.Unlock()
	for _, s := range tasks {
		row, ok := d.rows[s.ID]
		if !ok {
			d.upsert(s)
			continue
		}
		// progress only; states arrive through the listener in order
		row.snap.Downloaded = s.Downloaded
		row.snap.Total = s.Total
	}
}

func (d *Display) sortRows() []*taskRow {
	rows := make([]*taskRow, 0, len(d.rows))
	for _, r := range d.rows {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].index < rows[j].index
	})
	return rows
}

// render writes the current view and returns the number of lines written.
func (d *Display) render(w io.Writer, maxLines int) int {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	lineCount := 0
	var active, done []*taskRow
	for _, r := range d.sortRows() {
		if r.snap.State.Terminal() {
			done = append(done, r)
		} else {
			active = append(active, r)
		}
	}
	if len(done) > 8 {
		fmt.Fprintf(w, "%s\n", infoStyle.Render(fmt.Sprintf("  %d tasks finished earlier ...", len(done)-8)))
		done = done[len(done)-8:]
		lineCount++
	}
	for _, r := range append(done, active...) {
		if lineCount >= maxLines {
			break
		}
		style, symbol := stateStyle(r.snap.State)
		elapsed := time.Since(r.startTime).Round(time.Second)
		if r.snap.State.Terminal() {
			elapsed = r.lastUpdated.Sub(r.startTime).Round(time.Second)
		}
		fmt.Fprintf(w, "%s%s %s %s\n", strings.Repeat(" ", 2), style.Render(symbol), debugStyle.Render(elapsed.String()),
			style.Render(fmt.Sprintf("%s %s [%s]", r.snap.State, r.snap.Action.ContentID, keysLabel(r.snap.Action))))
		lineCount++
		if r.snap.State != scheduler.StateStarted || lineCount >= maxLines {
			continue
		}
		indent := strings.Repeat(" ", 2+4)
		text := utils.FormatBytes(uint64(max(r.snap.Downloaded, 0)))
		if r.snap.Total > 0 {
			text = fmt.Sprintf("%s%s / %s", PrintProgressBar(r.snap.Downloaded, r.snap.Total, 30), text, utils.FormatBytes(uint64(r.snap.Total)))
		}
		speed := FormatSpeed(r.snap.Downloaded, time.Since(r.startTime).Seconds())
		fmt.Fprintf(w, "%s%s %s %s\n", indent, streamStyle.Render(text), StyleSymbols["bullet"], debugStyle.Render(speed))
		lineCount++
	}
	return lineCount
}

func (d *Display) updateDisplay() {
	d.refresh()
	if d.numLines > 0 {
		fmt.Fprintf(d.out, "\033[%dA\033[J", d.numLines)
	}
	d.numLines = d.render(d.out, getTerminalHeight()-3)
}

func (d *Display) StartDisplay() {
	d.displayWg.Add(1)
	go func() {
		defer d.displayWg.Done()
		ticker := time.NewTicker(d.displayTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if d.interactive {
					d.updateDisplay()
				}
			case <-d.doneCh:
				if d.interactive {
					d.updateDisplay()
				}
				d.ShowSummary()
				return
			}
		}
	}()
}

func (d *Display) StopDisplay() {
	close(d.doneCh)
	d.displayWg.Wait()
}

func (d *Display) displayErrors() {
	if len(d.errors) == 0 {
		return
	}
	fmt.Fprintln(d.out)
	fmt.Fprintln(d.out, strings.Repeat(" ", 2)+errorStyle.Bold(true).Render("Errors:"))
	for i, err := range d.errors {
		fmt.Fprintf(d.out, "%s%s %s %s\n",
			strings.Repeat(" ", 2+2),
			errorStyle.Render(fmt.Sprintf("%d.", i+1)),
			debugStyle.Render(fmt.Sprintf("[%s]", err.Time.Format("15:04:05"))),
			errorStyle.Render(fmt.Sprintf("Task %s: %s", shortID(err.TaskID), err.ContentID)))
		fmt.Fprintf(d.out, "%s%s\n", strings.Repeat(" ", 2+4), errorStyle.Render(fmt.Sprintf("Error: %v", err.Error)))
	}
}

func (d *Display) ShowSummary() {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	fmt.Fprintln(d.out)
	var completed, removed, failed, pending int
	for _, r := range d.rows {
		switch r.snap.State {
		case scheduler.StateCompleted:
			completed++
		case scheduler.StateRemoved:
			removed++
		case scheduler.StateFailed:
			failed++
		default:
			pending++
		}
	}
	fmt.Fprintln(d.out, strings.Repeat(" ", 2)+success2Style.Render(fmt.Sprintf("Completed %d of %d", completed, len(d.rows))))
	if removed > 0 {
		fmt.Fprintln(d.out, strings.Repeat(" ", 2)+successStyle.Render(fmt.Sprintf("Removed %d", removed)))
	}
	if pending > 0 {
		fmt.Fprintln(d.out, strings.Repeat(" ", 2)+pendingStyle.Render(fmt.Sprintf("Still queued %d", pending)))
	}
	if failed > 0 {
		fmt.Fprintln(d.out, strings.Repeat(" ", 2)+errorStyle.Render(fmt.Sprintf("Failed %d of %d", failed, len(d.rows))))
	}
	d.displayErrors()
	fmt.Fprintln(d.out)
}
