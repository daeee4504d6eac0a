// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command pathforge generates tower-defense enemy paths.
//
// Usage:
//
//	pathforge generate --level 1 --seed 12345
//	pathforge generate --level 1 --theme cyber --mode dynamic --json
//	pathforge preview --level 2 --themes classic,forest
//	pathforge levels
//	pathforge levels check ./levels.yaml
//	pathforge diagnostics --runs 100 --production
//	pathforge serve --config pathforge.yaml --levels levels.yaml
//
// Example requests against a running server:
//
//	# Current path of level 1 (generated and archived on first request)
//	curl http://localhost:8085/v1/pathforge/levels/1/path | jq
//
//	# Regenerate after a tower was placed
//	curl -X POST http://localhost:8085/v1/pathforge/levels/1/regenerate \
//	  -H "Content-Type: application/json" \
//	  -d '{"trigger": "tower-placed"}'
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
