// Package inspector is the Go-native analogue of the teacher's
// debugger TUI: a read-only tview/tcell application, except instead
// of single-stepping one VM's registers it polls a running monitor
// endpoint's /snapshot and displays a live world view — modules
// loaded, their refcounts, and every task's state/owner/waiter count
// (spec.md §3's World/Task/Context triad, viewed from outside the
// process that owns them). It never drives any Core API operation;
// it is a pure observer, matching spec.md §1's exclusion of debugging
// protocols beyond the single-character debug-out instruction.
package inspector

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/hazna-vm/hazna/runtime"
)

// TUI is the inspector's layout: two boxed panes, modules on the left
// and tasks on the right, refreshed on a timer. Grounded on
// debugger/tui.go's Flex-of-bordered-TextViews layout, trimmed from
// that file's eight panels (source/registers/memory/stack/disasm/
// breakpoints/output/command-input) down to the two a read-only
// remote viewer needs — there is no local CPU to single-step, so the
// source/disassembly/breakpoint machinery has nothing to show.
type TUI struct {
	app          *tview.Application
	modulesView  *tview.TextView
	tasksView    *tview.TextView
	statusView   *tview.TextView
	addr         string
	client       *http.Client
	pollInterval time.Duration
}

// NewTUI builds an inspector pointed at a monitor's HTTP address.
func NewTUI(addr string, pollInterval time.Duration) *TUI {
	t := &TUI{
		app:          tview.NewApplication(),
		addr:         addr,
		client:       &http.Client{Timeout: 3 * time.Second},
		pollInterval: pollInterval,
	}
	t.build()
	return t
}

func (t *TUI) build() {
	t.modulesView = tview.NewTextView().SetDynamicColors(true)
	t.modulesView.SetBorder(true).SetTitle(" Modules ")

	t.tasksView = tview.NewTextView().SetDynamicColors(true)
	t.tasksView.SetBorder(true).SetTitle(" Tasks ")

	t.statusView = tview.NewTextView().SetDynamicColors(true)
	t.statusView.SetBorder(true).SetTitle(fmt.Sprintf(" %s (q to quit) ", t.addr))

	body := tview.NewFlex().
		AddItem(t.modulesView, 0, 1, false).
		AddItem(t.tasksView, 0, 1, false)

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(t.statusView, 3, 0, false).
		AddItem(body, 0, 1, false)

	t.app.SetRoot(root, true)
	t.app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Rune() == 'q' || ev.Key() == tcell.KeyCtrlC {
			t.app.Stop()
			return nil
		}
		return ev
	})
}

// Run starts the polling loop and blocks until the user quits or the
// application errors out.
func Run(addr string, pollInterval time.Duration) error {
	t := NewTUI(addr, pollInterval)
	return t.Run()
}

// Run blocks, polling t.addr's /snapshot endpoint every
// pollInterval and redrawing until the user quits.
func (t *TUI) Run() error {
	stop := make(chan struct{})
	go t.pollLoop(stop)
	defer close(stop)
	return t.app.Run()
}

func (t *TUI) pollLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()
	t.poll()
	for {
		select {
		case <-ticker.C:
			t.poll()
		case <-stop:
			return
		}
	}
}

func (t *TUI) poll() {
	resp, err := t.client.Get("http://" + t.addr + "/snapshot")
	if err != nil {
		t.app.QueueUpdateDraw(func() {
			t.statusView.SetText(fmt.Sprintf("[red]error: %v", err))
		})
		return
	}
	defer resp.Body.Close()

	var snap runtime.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.app.QueueUpdateDraw(func() {
			t.statusView.SetText(fmt.Sprintf("[red]decode error: %v", err))
		})
		return
	}

	t.app.QueueUpdateDraw(func() {
		t.render(snap)
	})
}

func (t *TUI) render(snap runtime.Snapshot) {
	t.statusView.SetText(fmt.Sprintf("contexts=%d  tasks-created=%d/%d  modules-loaded=%d/%d",
		snap.AttachedContexts,
		snap.Alloc.TasksFreed, snap.Alloc.TasksCreated,
		snap.Alloc.ModulesDropped, snap.Alloc.ModulesLoaded))

	var mb strings.Builder
	for _, m := range snap.Modules {
		name := m.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(&mb, "#%-4d %-20s refs=%d\n", m.ID, name, m.Refcount)
	}
	t.modulesView.SetText(mb.String())

	var tb strings.Builder
	for _, ts := range snap.Tasks {
		owner := "-"
		if ts.HasOwner {
			owner = fmt.Sprintf("%d", ts.OwnerID)
		}
		fmt.Fprintf(&tb, "#%-4d %-10s owner=%-4s waiters=%d refs=%d frames=%d\n",
			ts.ID, ts.State, owner, ts.Waiters, ts.Refcount, ts.FrameDepth)
	}
	t.tasksView.SetText(tb.String())
}
