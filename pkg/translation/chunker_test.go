package translation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunkTexts(chunks []Chunk) []string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return texts
}

func TestChunkSpecValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    ChunkSpec
		wantErr bool
	}{
		{"default", DefaultChunkSpec(), false},
		{"overlap just below size", ChunkSpec{Size: 10, Overlap: 9}, false},
		{"zero size", ChunkSpec{Size: 0}, true},
		{"negative overlap", ChunkSpec{Size: 10, Overlap: -1}, true},
		{"overlap equals size", ChunkSpec{Size: 10, Overlap: 10}, true},
		{"overlap larger than size", ChunkSpec{Size: 10, Overlap: 20}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrConfig))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSplitRejectsInvalidInput(t *testing.T) {
	_, err := Split("", 10, 0)
	assert.True(t, errors.Is(err, ErrEmptyInput))

	_, err = Split("some text", 5, 5)
	assert.True(t, errors.Is(err, ErrConfig))
}

func TestSplitShortText(t *testing.T) {
	chunks, err := Split("Hello world", 1000, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, Chunk{Index: 0, Start: 0, End: 11, Text: "Hello world"}, chunks[0])
}

func TestSplitBoundaryPreference(t *testing.T) {
	tests := []struct {
		name string
		text string
		size int
		want []string
	}{
		{
			name: "paragraph",
			text: "aaaa bbbb.\n\ncccc dddd. eeee",
			size: 20,
			want: []string{"aaaa bbbb.\n\n", "cccc dddd. eeee"},
		},
		{
			name: "sentence before whitespace",
			text: "One two. Three four five",
			size: 15,
			want: []string{"One two. ", "Three four five"},
		},
		{
			name: "newline before whitespace",
			text: "ab cd\nef gh ij",
			size: 10,
			want: []string{"ab cd\n", "ef gh ij"},
		},
		{
			name: "whitespace",
			text: "alpha beta gamma",
			size: 12,
			want: []string{"alpha beta ", "gamma"},
		},
		{
			name: "hard cut",
			text: "abcdefghij",
			size: 4,
			want: []string{"abcd", "efgh", "ij"},
		},
		{
			name: "cjk sentence",
			text: "你好。世界！再见",
			size: 4,
			want: []string{"你好。", "世界！", "再见"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := Split(tt.text, tt.size, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, chunkTexts(chunks))
		})
	}
}

func TestSplitOverlap(t *testing.T) {
	chunks, err := Split("abcdefghij", 4, 1)
	require.NoError(t, err)

	assert.Equal(t, []string{"abcd", "defg", "ghij"}, chunkTexts(chunks))
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].End-1, chunks[i].Start)
	}
}

func TestSplitInvariants(t *testing.T) {
	paragraph := "The quick brown fox jumps over the lazy dog. It was not amused!\n" +
		"Der schnelle braune Fuchs springt. 敏捷的棕色狐狸跳过了懒狗。真的吗？\n\n"
	text := strings.Repeat(paragraph, 12) + "Final line without terminator"
	runes := []rune(text)

	specs := []ChunkSpec{
		{Size: 1, Overlap: 0},
		{Size: 7, Overlap: 0},
		{Size: 7, Overlap: 3},
		{Size: 50, Overlap: 10},
		{Size: 200, Overlap: 199},
		{Size: 1000, Overlap: 0},
	}

	for _, spec := range specs {
		chunks, err := NewChunker(spec).Split(text)
		require.NoError(t, err)
		require.NotEmpty(t, chunks)

		assert.Equal(t, 0, chunks[0].Start)
		assert.Equal(t, len(runes), chunks[len(chunks)-1].End)

		var rebuilt strings.Builder
		for i, c := range chunks {
			assert.Equal(t, i, c.Index)
			assert.LessOrEqual(t, c.Len(), spec.Size)
			assert.Greater(t, c.Len(), 0)
			assert.Equal(t, string(runes[c.Start:c.End]), c.Text)

			if i == 0 {
				rebuilt.WriteString(c.Text)
				continue
			}
			prev := chunks[i-1]
			assert.Equal(t, prev.End-spec.Overlap, c.Start, "spec %+v chunk %d", spec, i)
			assert.Greater(t, c.Start, prev.Start)
			rebuilt.WriteString(string([]rune(c.Text)[spec.Overlap:]))
		}
		assert.Equal(t, text, rebuilt.String(), "spec %+v", spec)
	}
}

func TestChunkerGetSpec(t *testing.T) {
	spec := ChunkSpec{Size: 42, Overlap: 2}
	assert.Equal(t, spec, NewChunker(spec).GetSpec())
}
