package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/plsync/internal/tasks"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// Styles returns the default [Palette].
func Styles() *Palette { return styles }

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

func (p *Palette) Title(s string) string   { return p.title.Render(s) }
func (p *Palette) Success(s string) string { return p.ok.Render(s) }
func (p *Palette) Failure(s string) string { return p.err.Render(s) }
func (p *Palette) Warning(s string) string { return p.warn.Render(s) }
func (p *Palette) Help(s string) string    { return p.help.Render(s) }

// Outcome renders a one-line summary of a synchronization result.
func (p *Palette) Outcome(o tasks.SyncOutcome) string {
	if !o.Successful {
		return p.Failure("✗ Sync failed: " + o.Error)
	}
	verb := "Updated"
	if o.Created {
		verb = "Created"
	}
	return p.Success(fmt.Sprintf("✓ %s playlist %s", verb, o.PlaylistID))
}
