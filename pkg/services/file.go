package services

import (
	"path/filepath"
	"strings"
)

// SafeJoin joins target under root, returning "" when target would escape it.
func SafeJoin(root, target string) string {
	cleanTarget := filepath.Clean(target)
	if cleanTarget == "." || filepath.IsAbs(cleanTarget) || strings.Contains(cleanTarget, "..") {
		return ""
	}
	return filepath.Join(root, cleanTarget)
}
