package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestChunkConfig_Validate tests chunk config validation rules
func TestChunkConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  ChunkConfig
		wantErr bool
	}{
		{
			name:    "valid config",
			config:  ChunkConfig{ChunkSize: 100, ChunkOverlap: 20},
			wantErr: false,
		},
		{
			name:    "zero overlap is valid",
			config:  ChunkConfig{ChunkSize: 100, ChunkOverlap: 0},
			wantErr: false,
		},
		{
			name:    "zero chunk size",
			config:  ChunkConfig{ChunkSize: 0, ChunkOverlap: 0},
			wantErr: true,
		},
		{
			name:    "negative chunk size",
			config:  ChunkConfig{ChunkSize: -10, ChunkOverlap: 0},
			wantErr: true,
		},
		{
			name:    "overlap equals chunk size",
			config:  ChunkConfig{ChunkSize: 50, ChunkOverlap: 50},
			wantErr: true,
		},
		{
			name:    "overlap exceeds chunk size",
			config:  ChunkConfig{ChunkSize: 50, ChunkOverlap: 80},
			wantErr: true,
		},
		{
			name:    "negative overlap",
			config:  ChunkConfig{ChunkSize: 50, ChunkOverlap: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidChunkConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestKnowledgeBase_Validate tests knowledge base validation
func TestKnowledgeBase_Validate(t *testing.T) {
	valid := func() KnowledgeBase {
		return KnowledgeBase{
			ID:               "kb-1",
			Name:             "docs",
			Owner:            "ops",
			ChunkConfig:      ChunkConfig{ChunkSize: 400, ChunkOverlap: 40},
			EmbeddingModelID: "nomic-embed-text",
			HybridWeight:     0.5,
			FailurePolicy:    PolicyStrict,
		}
	}

	t.Run("valid knowledge base", func(t *testing.T) {
		kb := valid()
		assert.NoError(t, kb.Validate())
	})

	t.Run("missing name", func(t *testing.T) {
		kb := valid()
		kb.Name = ""
		assert.ErrorIs(t, kb.Validate(), ErrInvalidInput)
	})

	t.Run("missing embedding model", func(t *testing.T) {
		kb := valid()
		kb.EmbeddingModelID = ""
		assert.ErrorIs(t, kb.Validate(), ErrInvalidInput)
	})

	t.Run("hybrid weight out of range", func(t *testing.T) {
		kb := valid()
		kb.HybridWeight = 1.5
		assert.ErrorIs(t, kb.Validate(), ErrInvalidInput)

		kb.HybridWeight = -0.1
		assert.ErrorIs(t, kb.Validate(), ErrInvalidInput)
	})

	t.Run("boundary hybrid weights are valid", func(t *testing.T) {
		kb := valid()
		kb.HybridWeight = 0
		assert.NoError(t, kb.Validate())

		kb.HybridWeight = 1
		assert.NoError(t, kb.Validate())
	})

	t.Run("unknown failure policy", func(t *testing.T) {
		kb := valid()
		kb.FailurePolicy = FailurePolicy("lenient")
		assert.ErrorIs(t, kb.Validate(), ErrInvalidInput)
	})

	t.Run("invalid chunk config", func(t *testing.T) {
		kb := valid()
		kb.ChunkConfig = ChunkConfig{ChunkSize: 10, ChunkOverlap: 10}
		assert.ErrorIs(t, kb.Validate(), ErrInvalidChunkConfig)
	})
}

// TestFailurePolicy_IsValid tests policy validation
func TestFailurePolicy_IsValid(t *testing.T) {
	assert.True(t, PolicyStrict.IsValid())
	assert.True(t, PolicyPartial.IsValid())
	assert.False(t, FailurePolicy("").IsValid())
	assert.False(t, FailurePolicy("best-effort").IsValid())
}
