package identity

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDGenerator_Unique(t *testing.T) {
	gen := NewUUIDGenerator()
	seen := make(map[string]struct{})

	for i := 0; i < 1000; i++ {
		id := gen.NewID()
		parsed, err := uuid.Parse(id)
		require.NoError(t, err, "expected uuid, got %q", id)
		assert.Equal(t, uuid.Version(4), parsed.Version())
		_, dup := seen[id]
		assert.False(t, dup, "duplicate id %q", id)
		seen[id] = struct{}{}
	}
}

func TestSequenceGenerator(t *testing.T) {
	gen := NewSequenceGenerator("node")

	assert.Equal(t, "node-1", gen.NewID())
	assert.Equal(t, "node-2", gen.NewID())
	_, err := uuid.Parse(gen.NewID())
	assert.Error(t, err)
}
