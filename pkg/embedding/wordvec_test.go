package embedding

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadWordVectors_WithHeader(t *testing.T) {
	input := "3 2\n東京 1.0 2.0\n大阪 0.5 -0.5\nテスト 0 1\n"

	wv, err := ReadWordVectors(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 2, wv.Dimensions())
	assert.Equal(t, 3, wv.Len())
	vec, ok := wv.Lookup("大阪")
	require.True(t, ok)
	assert.Equal(t, []float32{0.5, -0.5}, vec)

	_, ok = wv.Lookup("京都")
	assert.False(t, ok)
}

func TestReadWordVectors_WithoutHeader(t *testing.T) {
	wv, err := ReadWordVectors(strings.NewReader("a 1 2 3\nb 4 5 6\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, wv.Dimensions())
	assert.Equal(t, 2, wv.Len())
}

func TestReadWordVectors_DuplicateKeepsFirst(t *testing.T) {
	wv, err := ReadWordVectors(strings.NewReader("2 1\nx 1\nx 9\n"))
	require.NoError(t, err)
	vec, _ := wv.Lookup("x")
	assert.Equal(t, []float32{1}, vec)
	assert.Equal(t, 1, wv.Len())
}

func TestReadWordVectors_Errors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		errMsg string
	}{
		{"wrong width", "2 2\na 1 2\nb 1\n", "line 3: got 1 components, want 2"},
		{"bad float", "a 1 x\n", "line 1: component 1"},
		{"empty", "\n\n", "no word vectors found"},
		{"negative count", "-5 2\na 1 2\n", "line 1: invalid count -5"},
		{"zero dimension", "3 0\na\n", "line 1: invalid dimension 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadWordVectors(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadWordVectors_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.txt")
	require.NoError(t, os.WriteFile(path, []byte("1 2\nテスト 0.25 0.75\n"), 0o600))

	wv, err := LoadWordVectors(path)
	require.NoError(t, err)
	vec, ok := wv.Lookup("テスト")
	require.True(t, ok)
	assert.Equal(t, []float32{0.25, 0.75}, vec)

	_, err = LoadWordVectors(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestNewWordVectors_RejectsWrongLength(t *testing.T) {
	_, err := NewWordVectors(2, map[string][]float32{"a": {1, 2, 3}})
	assert.Error(t, err)
}

func TestReadWordVectors_HugeHeaderCountIsOnlyAHint(t *testing.T) {
	wv, err := ReadWordVectors(strings.NewReader("9223372036854775807 2\na 1 2\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, wv.Len())
	assert.Equal(t, 2, wv.Dimensions())
}
