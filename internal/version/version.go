// Package version exposes the mindcanvas release version.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var versionContent string

// Get returns the release version, e.g. "0.1.0".
func Get() string {
	return strings.TrimSpace(versionContent)
}
