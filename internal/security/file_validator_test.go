package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wsderrors "github.com/standardbeagle/wsd/internal/errors"
)

func TestFileValidator(t *testing.T) {
	t.Run("ValidPHPFile", func(t *testing.T) {
		path := writeTempFile(t, "rules.php", []byte("<?php\nadd_filter('woocommerce_package_rates', 'x');\n"))
		assert.NoError(t, NewFileValidator(0).ValidatePHPFile(path))
	})

	t.Run("ShortOpenTag", func(t *testing.T) {
		path := writeTempFile(t, "tpl.php", []byte("<div><?= $x ?></div>"))
		assert.NoError(t, NewFileValidator(0).ValidatePHPFile(path))
	})

	t.Run("BinaryDisguisedAsPHP", func(t *testing.T) {
		data := make([]byte, 1024)
		for i := range data {
			data[i] = byte(i % 8)
		}
		path := writeTempFile(t, "image.php", data)
		err := NewFileValidator(0).ValidatePHPFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "binary")
	})

	t.Run("NoOpenTag", func(t *testing.T) {
		path := writeTempFile(t, "readme.php", []byte("just some text"))
		assert.Error(t, NewFileValidator(0).ValidatePHPFile(path))
	})

	t.Run("TooLarge", func(t *testing.T) {
		path := writeTempFile(t, "big.php", []byte("<?php\n"+string(make([]byte, 200))))
		err := NewFileValidator(10).ValidatePHPFile(path)
		var fe *wsderrors.FileError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, wsderrors.ErrorTypeFileTooLarge, fe.Type)
	})

	t.Run("Missing", func(t *testing.T) {
		err := NewFileValidator(0).ValidatePHPFile(filepath.Join(t.TempDir(), "nope.php"))
		var fe *wsderrors.FileError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, wsderrors.ErrorTypeFileNotFound, fe.Type)
	})

	t.Run("EmptyFile", func(t *testing.T) {
		path := writeTempFile(t, "empty.php", nil)
		assert.NoError(t, NewFileValidator(0).ValidatePHPFile(path))
	})
}

func TestResolveInTheme(t *testing.T) {
	theme := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(theme, "inc"), 0755))

	tests := []struct {
		name    string
		rel     string
		wantErr bool
	}{
		{"default rules", "inc/shipping-restrictions.php", false},
		{"nested clean", "inc/../functions.php", false},
		{"parent escape", "../plugins/custom/rules.php", true},
		{"deep escape", "inc/../../other/x.php", true},
		{"absolute", "/etc/passwd", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveInTheme(theme, tt.rel)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, within(theme, got))
		})
	}

	_, err := ResolveInTheme(theme, "../x.php")
	assert.ErrorIs(t, err, wsderrors.ErrOutsideTheme)
}

func TestResolveInTheme_SymlinkEscape(t *testing.T) {
	theme := t.TempDir()
	outside := t.TempDir()
	target := filepath.Join(outside, "secret.php")
	require.NoError(t, os.WriteFile(target, []byte("<?php"), 0644))
	if err := os.Symlink(target, filepath.Join(theme, "link.php")); err != nil {
		t.Skip("symlinks not supported:", err)
	}

	_, err := ResolveInTheme(theme, "link.php")
	assert.ErrorIs(t, err, wsderrors.ErrOutsideTheme)
}

func writeTempFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}
