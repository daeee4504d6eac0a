// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Mode controls how rich CLI output is.
type Mode string

const (
	// ModeStyled enables colors, icons, boxes and the canvas sketch.
	ModeStyled Mode = "styled"

	// ModePlain keeps icons and layout but drops colors.
	ModePlain Mode = "plain"

	// ModeMachine prints bare key=value lines for scripting.
	ModeMachine Mode = "machine"
)

// ParseMode converts a flag or environment value to a Mode. Unknown
// values map to ModePlain.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "styled", "full", "color":
		return ModeStyled
	case "machine", "quiet", "q":
		return ModeMachine
	default:
		return ModePlain
	}
}

// DetectMode picks a mode for w.
//
// # Description
//
// PATHFORGE_OUTPUT wins when set. Otherwise a terminal gets ModeStyled
// (ModePlain when NO_COLOR is set) and anything else, such as a pipe or a
// file, gets ModeMachine.
func DetectMode(w io.Writer) Mode {
	if env := os.Getenv("PATHFORGE_OUTPUT"); env != "" {
		return ParseMode(env)
	}
	if !IsTerminal(w) {
		return ModeMachine
	}
	if os.Getenv("NO_COLOR") != "" {
		return ModePlain
	}
	return ModeStyled
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
