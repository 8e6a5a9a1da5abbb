package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArticle_ChunkTexts(t *testing.T) {
	a := Article{Chunks: []Chunk{{Index: 1, Text: "one."}, {Index: 2, Text: "two."}}}
	assert.Equal(t, []string{"one.", "two."}, a.ChunkTexts())
}

func TestArticle_ChunkTexts_EmptyIsNotNil(t *testing.T) {
	texts := Article{}.ChunkTexts()
	assert.NotNil(t, texts)
	assert.Empty(t, texts)
}
