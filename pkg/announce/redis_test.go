package announce

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedFields(t *testing.T) {
	options := []PollOption{
		{Position: 0, Name: "A"},
		{Position: 1, Name: "B"},
		{Position: 2, Name: "C"},
	}

	fields := seedFields(options)

	// One marker per option, all written in a single HSET so a poll is
	// never left with a partially seeded hash.
	require.Len(t, fields, len(options))
	for _, opt := range options {
		assert.Equal(t, 1, fields[strconv.Itoa(opt.Position)], "position %d", opt.Position)
	}
}
