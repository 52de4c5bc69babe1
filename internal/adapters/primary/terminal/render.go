// Package terminal prints the live ticket feed as colored lines.
package terminal

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/lorrc/armesa-dashboard/internal/core/domain"
	"github.com/lorrc/armesa-dashboard/internal/core/ports"
)

// Theme holds the label colors per event type, for 256-color terminals with
// a dark background.
type Theme struct {
	Labels    map[domain.EventType]lipgloss.Color
	Unknown   lipgloss.Color
	FaintText lipgloss.Color
	Connected lipgloss.Color
	Offline   lipgloss.Color
}

var DefaultTheme = Theme{
	Labels: map[domain.EventType]lipgloss.Color{
		domain.EventTicketOpen:  lipgloss.Color("114"), // green
		domain.EventTicketClaim: lipgloss.Color("75"),  // blue
		domain.EventTicketClose: lipgloss.Color("245"), // gray
		domain.EventEscalation:  lipgloss.Color("196"), // red
		domain.EventNotesUpdate: lipgloss.Color("220"), // amber
	},
	Unknown:   lipgloss.Color("141"),
	FaintText: lipgloss.Color("241"),
	Connected: lipgloss.Color("114"),
	Offline:   lipgloss.Color("208"),
}

// Renderer writes feed events and connection changes to out. It is safe for
// use from the stream consumer and the caller at the same time.
type Renderer struct {
	mu       sync.Mutex
	out      io.Writer
	filter   domain.EventType
	theme    Theme
	renderer *lipgloss.Renderer
	location *time.Location
}

var _ ports.EventBroadcaster = (*Renderer)(nil)

// NewRenderer creates a renderer printing events that pass filter. Colors
// are dropped when out is not a terminal.
func NewRenderer(out io.Writer, filter domain.EventType) *Renderer {
	return &Renderer{
		out:      out,
		filter:   filter,
		theme:    DefaultTheme,
		renderer: lipgloss.NewRenderer(out),
		location: time.Local,
	}
}

// WithLocation sets the zone event times are shown in.
func (r *Renderer) WithLocation(loc *time.Location) *Renderer {
	r.location = loc
	return r
}

// Snapshot prints the buffered events oldest first, so the newest ends up
// at the bottom like the live lines that follow.
func (r *Renderer) Snapshot(events []domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(events) == 0 {
		r.println(r.faint("no recent events"))
		return
	}
	for i := len(events) - 1; i >= 0; i-- {
		if r.filter.Matches(events[i].Type) {
			r.println(r.FormatEvent(events[i]))
		}
	}
}

// BroadcastEvent prints one live event.
func (r *Renderer) BroadcastEvent(event domain.Event) {
	if !r.filter.Matches(event.Type) {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.println(r.FormatEvent(event))
}

// BroadcastState prints a connection change.
func (r *Renderer) BroadcastState(state domain.ConnectionState) {
	color := r.theme.Offline
	if state == domain.StateConnected {
		color = r.theme.Connected
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.println(r.renderer.NewStyle().Foreground(color).Italic(true).Render("-- " + string(state) + " --"))
}

// FormatEvent renders one feed row: time, label, ticket id, subject and the
// people involved.
func (r *Renderer) FormatEvent(event domain.Event) string {
	color, ok := r.theme.Labels[event.Type]
	if !ok {
		color = r.theme.Unknown
	}
	label := r.renderer.NewStyle().
		Foreground(color).
		Bold(true).
		Width(18).
		Render(event.Type.Label())

	details := event.Details()
	parts := []string{r.faint(r.formatTime(event)), label}
	if details.TicketID != "" {
		parts = append(parts, r.faint("#"+domain.ShortTicketID(details.TicketID)))
	}
	if details.Subject != "" {
		parts = append(parts, details.Subject)
	}
	if actors := actorsOf(details); actors != "" {
		parts = append(parts, r.faint("("+actors+")"))
	}
	if details.Priority != "" {
		parts = append(parts, r.faint("["+details.Priority+"]"))
	}
	return strings.Join(parts, " ")
}

func (r *Renderer) formatTime(event domain.Event) string {
	if t, ok := event.OccurredAt(); ok {
		return t.In(r.location).Format("15:04:05")
	}
	if event.Timestamp != "" {
		return event.Timestamp
	}
	return "--:--:--"
}

func actorsOf(d domain.EventDetails) string {
	var actors []string
	add := func(prefix, name string) {
		if name != "" {
			actors = append(actors, prefix+name)
		}
	}
	add("", d.Username)
	add("claimed by ", d.ClaimedBy)
	add("closed by ", d.ClosedBy)
	add("escalated by ", d.EscalatedBy)
	add("updated by ", d.UpdatedBy)
	return strings.Join(actors, ", ")
}

func (r *Renderer) faint(s string) string {
	return r.renderer.NewStyle().Foreground(r.theme.FaintText).Render(s)
}

func (r *Renderer) println(line string) {
	// A closed pipe only loses output.
	_, _ = fmt.Fprintln(r.out, line)
}
