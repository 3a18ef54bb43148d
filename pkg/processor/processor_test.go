package processor_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/redagent/internal/models"
	"github.com/xhad/redagent/internal/types"
	"github.com/xhad/redagent/pkg/processor"
)

func TestChunk(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		maxSize int
		want    []string
	}{
		{
			name:    "short input is one trimmed chunk",
			text:    "  Buy low.  ",
			maxSize: 500,
			want:    []string{"Buy low."},
		},
		{
			name:    "cuts after last terminator in window",
			text:    "Buy low. Sell high. Always diversify your portfolio.",
			maxSize: 20,
			want:    []string{"Buy low. Sell high.", " Always diversify yo", "ur portfolio."},
		},
		{
			name:    "hard cut without terminator",
			text:    "abcdefghij",
			maxSize: 4,
			want:    []string{"abcd", "efgh", "ij"},
		},
		{
			name:    "repeated terminators never yield empty chunks",
			text:    "......",
			maxSize: 2,
			want:    []string{"..", "..", ".."},
		},
		{
			name:    "trailing whitespace remainder is dropped",
			text:    "One. Two.   ",
			maxSize: 9,
			want:    []string{"One. Two."},
		},
		{
			name:    "empty input",
			text:    " \n ",
			maxSize: 10,
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := processor.Chunk(tt.text, tt.maxSize)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChunkInvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, err := processor.Chunk("text", size)
		assert.ErrorIs(t, err, types.ErrInvalidChunkSize)
	}
}

func TestChunkProperties(t *testing.T) {
	text := strings.Repeat("Markets move in cycles. Risk management matters more than entries. ", 20) +
		strings.Repeat("x", 130) + " Ünïcödé sentences are fine too."

	for _, size := range []int{7, 40, 100, 500} {
		first, err := processor.Chunk(text, size)
		require.NoError(t, err)
		second, err := processor.Chunk(text, size)
		require.NoError(t, err)

		assert.Equal(t, first, second, "deterministic for size %d", size)
		assert.Equal(t, text, strings.Join(first, ""), "concatenation for size %d", size)
		for i, c := range first {
			assert.NotEmpty(t, c)
			if i < len(first)-1 {
				assert.LessOrEqual(t, utf8.RuneCountInString(c), size)
			}
		}
	}
}

func TestProcessor_Process(t *testing.T) {
	p, err := processor.NewWithConfig(processor.ProcessorConfig{ChunkSize: 20})
	require.NoError(t, err)

	processed, err := p.Process([]models.Document{
		{ID: "guide", Content: "Buy low. Sell high. Always diversify your portfolio."},
	})
	require.NoError(t, err)
	require.Len(t, processed, 1)
	assert.Equal(t, "guide", processed[0].ID)
	assert.Len(t, processed[0].Chunks, 3)
}

func TestNewWithConfig(t *testing.T) {
	p, err := processor.NewWithConfig(processor.ProcessorConfig{})
	require.NoError(t, err)
	assert.Equal(t, processor.DefaultChunkSize, p.ChunkSize())

	_, err = processor.NewWithConfig(processor.ProcessorConfig{ChunkSize: -5})
	assert.ErrorIs(t, err, types.ErrInvalidChunkSize)
}
