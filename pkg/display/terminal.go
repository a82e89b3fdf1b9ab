package display

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/Veraticus/http-notify/pkg/notification"
)

const (
	defaultToastWidth = 60

	iconSuccess         = "✓"
	iconError           = "✗"
	iconValidationError = "!"
)

var (
	toastSuccessStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFFFFF")).
				Background(lipgloss.Color("#2E7D32")).
				Padding(0, 1)
	toastErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#C62828")).
			Padding(0, 1)
	toastValidationStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#000000")).
				Background(lipgloss.Color("#F9A825")).
				Padding(0, 1)
)

// TerminalRenderer keeps the toast stack pinned to the bottom lines of a
// terminal, oldest at the top.
type TerminalRenderer struct {
	mu     sync.Mutex
	writer io.Writer
	width  int
	drawn  int
}

// NewTerminalRenderer creates a renderer for a terminal of the given width.
func NewTerminalRenderer(writer io.Writer, width int) *TerminalRenderer {
	if width <= 0 {
		width = defaultToastWidth
	}
	return &TerminalRenderer{
		writer: writer,
		width:  width,
	}
}

// Render redraws the stack. Lines used by a previous, taller stack are cleared.
func (r *TerminalRenderer) Render(toasts []Toast) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lines := max(len(toasts), r.drawn)
	if lines == 0 {
		return nil
	}

	// \0337 / \0338 - DECSC/DECRC save and restore the cursor
	// \033[r - reset scroll region so line 999 clamps to the real last line
	// \033[nA / \033[1B - move without scrolling
	var b strings.Builder
	b.WriteString("\0337\033[r\033[999;1H")
	if lines > 1 {
		fmt.Fprintf(&b, "\033[%dA", lines-1)
	}

	offset := lines - len(toasts)
	for i := 0; i < lines; i++ {
		if i > 0 {
			b.WriteString("\033[1B\r")
		}
		b.WriteString("\033[2K")
		if i >= offset {
			b.WriteString(r.renderToast(toasts[i-offset]))
		}
	}
	b.WriteString("\0338")

	r.drawn = len(toasts)

	_, err := io.WriteString(r.writer, b.String())
	return err
}

func (r *TerminalRenderer) renderToast(t Toast) string {
	var icon string
	var style lipgloss.Style

	switch t.Notification.Style {
	case notification.StyleSuccess:
		icon = iconSuccess
		style = toastSuccessStyle
	case notification.StyleValidationError:
		icon = iconValidationError
		style = toastValidationStyle
	default:
		icon = iconError
		style = toastErrorStyle
	}

	if t.Phase != PhaseVisible {
		style = style.Faint(true)
	}

	content := icon + " " + plainText(t.Notification.Message)
	return style.MaxWidth(r.width).Render(content)
}

// LineRenderer prints each toast once, as a plain line, when it becomes
// visible. It suits output that is not a terminal.
type LineRenderer struct {
	mu      sync.Mutex
	writer  io.Writer
	printed map[uint64]bool
}

// NewLineRenderer creates a line renderer writing to writer.
func NewLineRenderer(writer io.Writer) *LineRenderer {
	return &LineRenderer{
		writer:  writer,
		printed: make(map[uint64]bool),
	}
}

// Render prints newly visible toasts and forgets toasts that have left.
func (r *LineRenderer) Render(toasts []Toast) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	live := make(map[uint64]bool, len(toasts))
	for _, t := range toasts {
		live[t.ID] = true
		if t.Phase != PhaseVisible || r.printed[t.ID] {
			continue
		}
		r.printed[t.ID] = true
		if _, err := fmt.Fprintf(r.writer, "[%s] %s\n", t.Notification.Style, plainText(t.Notification.Message)); err != nil {
			return err
		}
	}

	for id := range r.printed {
		if !live[id] {
			delete(r.printed, id)
		}
	}
	return nil
}

// plainText drops escape sequences from a message and turns the remaining
// control characters into spaces, so it prints on a single line as text.
func plainText(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || (r >= 0x7f && r < 0xa0) {
			return ' '
		}
		return r
	}, ansi.Strip(s))
}
