package textdiff

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatio(t *testing.T) {
	t.Run("identical strings", func(t *testing.T) {
		assert.Equal(t, 1.0, Ratio("alpha beta", "alpha beta"))
	})

	t.Run("both empty", func(t *testing.T) {
		assert.Equal(t, 1.0, Ratio("", ""))
	})

	t.Run("one empty", func(t *testing.T) {
		assert.Equal(t, 0.0, Ratio("alpha", ""))
	})

	t.Run("close variants score high", func(t *testing.T) {
		r := Ratio("The UE shall authenticate", "The UE shall mutually authenticate")
		assert.InDelta(t, 0.85, r, 0.01)
	})

	t.Run("deterministic", func(t *testing.T) {
		a, b := "some spec text", "some other spec text"
		assert.Equal(t, Ratio(a, b), Ratio(a, b))
	})
}

func TestOpcodes(t *testing.T) {
	t.Run("equal sequences produce a single equal run", func(t *testing.T) {
		ops := Opcodes([]string{"a", "b"}, []string{"a", "b"})
		require.Len(t, ops, 1)
		assert.Equal(t, byte('e'), ops[0].Tag)
	})

	t.Run("disjoint sequences produce a replace run", func(t *testing.T) {
		ops := Opcodes([]string{"a", "b", "c"}, []string{"x"})
		require.Len(t, ops, 1)
		assert.Equal(t, byte('r'), ops[0].Tag)
		assert.Equal(t, 0, ops[0].I1)
		assert.Equal(t, 3, ops[0].I2)
		assert.Equal(t, 0, ops[0].J1)
		assert.Equal(t, 1, ops[0].J2)
	})

	t.Run("trailing delete", func(t *testing.T) {
		ops := Opcodes([]string{"a", "b"}, []string{"a"})
		require.Len(t, ops, 2)
		assert.Equal(t, byte('e'), ops[0].Tag)
		assert.Equal(t, byte('d'), ops[1].Tag)
	})
}

func TestRenderHTMLDiff(t *testing.T) {
	t.Run("reproducible byte for byte", func(t *testing.T) {
		first := RenderHTMLDiff("a\nb\nc", "a\nx\nc", "Section 4.1")
		second := RenderHTMLDiff("a\nb\nc", "a\nx\nc", "Section 4.1")
		assert.Equal(t, first, second)
	})

	t.Run("escapes content", func(t *testing.T) {
		doc := RenderHTMLDiff("<script>", "<b>", "s")
		assert.NotContains(t, doc, "<script>")
		assert.Contains(t, doc, "&lt;script&gt;")
	})

	t.Run("marks changed rows", func(t *testing.T) {
		doc := RenderHTMLDiff("old line", "new line", "s")
		assert.Contains(t, doc, `class="chg"`)
	})
}

func TestWriteHTMLDiff(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteHTMLDiff("one\ntwo", "one\nthree", "4.2.1", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "diff_4_2_1.html"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "<!DOCTYPE html>"))
}
