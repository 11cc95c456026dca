package woo

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/wsd/internal/debug"
	"github.com/standardbeagle/wsd/internal/phpast"
)

func fillLocalEnvironment(env *Environment, wpRoot, themeDir string) {
	if wpRoot != "" && env.WordPressVersion == "" {
		v, err := WordPressVersion(wpRoot)
		if err != nil {
			debug.LogSource("WordPress version unavailable: %v\n", err)
		}
		env.WordPressVersion = v
	}
	if themeDir != "" && env.ThemeName == "" {
		env.ThemeName, env.ThemeVersion = ThemeHeader(themeDir)
	}
}

// WordPressVersion reads $wp_version from wp-includes/version.php
func WordPressVersion(wpRoot string) (string, error) {
	src, err := os.ReadFile(filepath.Join(wpRoot, "wp-includes", "version.php"))
	if err != nil {
		return "", err
	}
	f, err := phpast.Parse(src)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var version string
	phpast.Walk(f.Root, func(n *sitter.Node) bool {
		if version != "" {
			return false
		}
		if n.Kind() != "assignment_expression" {
			return true
		}
		if name, ok := f.VariableName(n.ChildByFieldName("left")); ok && name == "wp_version" {
			version, _ = f.StringLiteral(n.ChildByFieldName("right"))
		}
		return false
	})
	return version, nil
}

// styleHeader matches WordPress file header fields the way get_file_data does
func styleHeader(field string) *regexp.Regexp {
	return regexp.MustCompile(`(?mi)^[ \t/*#@]*` + regexp.QuoteMeta(field) + `:(.*)$`)
}

var (
	themeNameHeader    = styleHeader("Theme Name")
	themeVersionHeader = styleHeader("Version")
)

// ThemeHeader reads Theme Name and Version from the theme's style.css
func ThemeHeader(themeDir string) (name, version string) {
	data, err := os.ReadFile(filepath.Join(themeDir, "style.css"))
	if err != nil {
		return "", ""
	}
	// WordPress only reads the first 8 KiB
	if len(data) > 8192 {
		data = data[:8192]
	}
	if m := themeNameHeader.FindSubmatch(data); m != nil {
		name = cleanHeader(string(m[1]))
	}
	if m := themeVersionHeader.FindSubmatch(data); m != nil {
		version = cleanHeader(string(m[1]))
	}
	return name, version
}

func cleanHeader(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimSuffix(v, "*/")
	return strings.TrimSpace(v)
}
