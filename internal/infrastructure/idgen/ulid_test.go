package idgen

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestULIDGenerator_Generate(t *testing.T) {
	gen := NewULIDGenerator()

	seen := make(map[string]struct{})
	prev := ""
	for range 1000 {
		id := gen.Generate()
		_, err := ulid.ParseStrict(id)
		require.NoError(t, err)

		_, dup := seen[id]
		assert.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}

		assert.Greater(t, id, prev)
		prev = id
	}
}
