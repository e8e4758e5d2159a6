package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// dispatchMsg carries a closure onto the program's update goroutine.
type dispatchMsg struct {
	fn func()
}

// ProgramDispatcher runs closures inside a bubbletea program's Update, which
// is the terminal UI's loop. Closures dispatched before Attach are held
// until a program is attached.
type ProgramDispatcher struct {
	mu      sync.Mutex
	program *tea.Program
	pending []func()
}

// Attach binds the dispatcher to p and forwards held closures. It may be
// called before p.Run.
func (d *ProgramDispatcher) Attach(p *tea.Program) {
	d.mu.Lock()
	d.program = p
	pending := d.pending
	d.pending = nil
	d.mu.Unlock()

	if len(pending) == 0 {
		return
	}
	go func() {
		for _, fn := range pending {
			p.Send(dispatchMsg{fn: fn})
		}
	}()
}

// Dispatch queues fn for the update goroutine. Send returns without
// delivering once the program has exited.
func (d *ProgramDispatcher) Dispatch(fn func()) {
	d.mu.Lock()
	p := d.program
	if p == nil {
		d.pending = append(d.pending, fn)
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	p.Send(dispatchMsg{fn: fn})
}
