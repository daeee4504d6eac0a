// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux renders pathforge CLI output.
package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Brand colors
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // titles
	ColorTealDeep    = lipgloss.Color("#16858E") // borders
	ColorSlate       = lipgloss.Color("#2C4A54") // muted text

	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles holds the lipgloss styles a Printer renders with.
type Styles struct {
	Title   lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Key     lipgloss.Style
	Box     lipgloss.Style
	Path    lipgloss.Style
	Marker  lipgloss.Style
}

// NewStyles builds the styled palette on renderer r.
func NewStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Title:   r.NewStyle().Bold(true).Foreground(ColorTealBright),
		Bold:    r.NewStyle().Bold(true),
		Muted:   r.NewStyle().Foreground(ColorSlate),
		Success: r.NewStyle().Foreground(ColorTealBright),
		Warning: r.NewStyle().Foreground(ColorWarning),
		Error:   r.NewStyle().Foreground(ColorError),
		Key:     r.NewStyle().Foreground(ColorTealPrimary),
		Box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorTealDeep).
			Padding(0, 1),
		Path:   r.NewStyle().Foreground(ColorTealPrimary),
		Marker: r.NewStyle().Bold(true).Foreground(ColorWarning),
	}
}

// plainStyles renders text unchanged. The box keeps its border so the
// layout matches styled output.
func plainStyles() Styles {
	r := lipgloss.NewRenderer(io.Discard)
	return Styles{
		Title:   r.NewStyle(),
		Bold:    r.NewStyle(),
		Muted:   r.NewStyle(),
		Success: r.NewStyle(),
		Warning: r.NewStyle(),
		Error:   r.NewStyle(),
		Key:     r.NewStyle(),
		Box:     r.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1),
		Path:    r.NewStyle(),
		Marker:  r.NewStyle(),
	}
}

// Icon is a status glyph.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconBullet  Icon = "•"
	IconArrow   Icon = "→"
)

// Printer writes CLI output in one Mode.
//
// # Thread Safety
//
// Not safe for concurrent use.
type Printer struct {
	w      io.Writer
	mode   Mode
	styles Styles
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer, mode Mode) *Printer {
	p := &Printer{w: w, mode: mode}
	if mode == ModeStyled {
		p.styles = NewStyles(lipgloss.NewRenderer(w))
	} else {
		p.styles = plainStyles()
	}
	return p
}

// Mode returns the printer's output mode.
func (p *Printer) Mode() Mode { return p.mode }

// Styles returns the active palette.
func (p *Printer) Styles() Styles { return p.styles }

// Writer returns the destination.
func (p *Printer) Writer() io.Writer { return p.w }

// Title prints a heading. Machine mode prints nothing.
func (p *Printer) Title(text string) {
	if p.mode == ModeMachine {
		return
	}
	fmt.Fprintln(p.w, p.styles.Title.Render(text))
}

// Success prints a line with a check mark.
func (p *Printer) Success(text string) {
	p.status(IconSuccess, "OK", p.styles.Success, text)
}

// Warning prints a line with a warning sign.
func (p *Printer) Warning(text string) {
	p.status(IconWarning, "WARN", p.styles.Warning, text)
}

// Error prints a line with a cross.
func (p *Printer) Error(text string) {
	p.status(IconError, "ERROR", p.styles.Error, text)
}

func (p *Printer) status(icon Icon, prefix string, style lipgloss.Style, text string) {
	if p.mode == ModeMachine {
		fmt.Fprintf(p.w, "%s: %s\n", prefix, text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", style.Render(string(icon)), style.Render(text))
}

// Field is one key/value row.
type Field struct {
	Key   string
	Value string
}

// F builds a Field, formatting value with %v.
func F(key string, value any) Field {
	return Field{Key: key, Value: fmt.Sprint(value)}
}

// Fields prints aligned key/value rows, or key=value lines in machine
// mode.
func (p *Printer) Fields(fields ...Field) {
	if p.mode == ModeMachine {
		for _, f := range fields {
			fmt.Fprintf(p.w, "%s=%s\n", f.Key, f.Value)
		}
		return
	}
	width := 0
	for _, f := range fields {
		width = max(width, len(f.Key))
	}
	for _, f := range fields {
		key := p.styles.Key.Render(f.Key + ":")
		fmt.Fprintf(p.w, "  %s%s %s\n", key, strings.Repeat(" ", width-len(f.Key)), f.Value)
	}
}

// Box prints content inside a bordered box with an optional title line.
// Machine mode prints the content unchanged.
func (p *Printer) Box(title, content string) {
	if p.mode == ModeMachine {
		fmt.Fprintln(p.w, content)
		return
	}
	body := content
	if title != "" {
		body = p.styles.Bold.Render(title) + "\n" + content
	}
	fmt.Fprintln(p.w, p.styles.Box.Render(body))
}

// List prints bulleted lines.
func (p *Printer) List(items []string) {
	for _, item := range items {
		if p.mode == ModeMachine {
			fmt.Fprintln(p.w, item)
			continue
		}
		fmt.Fprintf(p.w, "  %s %s\n", p.styles.Muted.Render(string(IconBullet)), item)
	}
}

// Line prints a raw line.
func (p *Printer) Line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}
