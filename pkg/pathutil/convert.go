// Package pathutil converts between the absolute paths used internally and the
// short, slash-separated paths shown in reports, CSV files and the admin console.
package pathutil

import (
	"path/filepath"
	"strings"
)

// ToRelative converts an absolute path to relative based on a root directory.
// Falls back to the original path if conversion fails or path is already relative.
//
// Examples:
//   - ToRelative("/srv/wp/themes/child/inc/rules.php", "/srv/wp/themes/child") → "inc/rules.php"
//   - ToRelative("/other/file.php", "/srv/wp/themes/child") → "/other/file.php" (outside root)
//   - ToRelative("inc/rules.php", "/srv/wp/themes/child") → "inc/rules.php" (already relative)
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" {
		return absPath
	}

	if !filepath.IsAbs(absPath) {
		return absPath
	}

	absPath = filepath.Clean(absPath)
	rootDir = filepath.Clean(rootDir)

	relPath, err := filepath.Rel(rootDir, absPath)
	if err != nil {
		return absPath
	}

	// Outside the root: the absolute path is clearer
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return absPath
	}

	return relPath
}

// DisplayPath renders a scanned file relative to the directory that holds the theme,
// so reports read "storefront-child/inc/shipping-restrictions.php".
func DisplayPath(absPath, themeDir string) string {
	if themeDir == "" {
		return filepath.ToSlash(absPath)
	}
	parent := filepath.Dir(filepath.Clean(themeDir))
	return filepath.ToSlash(ToRelative(absPath, parent))
}
