package requestid

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_AlwaysValid(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := Generate()
		assert.True(t, Validate(id), "generated id %q must validate", id)
	}
}

func TestGenerate_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := Generate()
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %q", id)
		seen[id] = struct{}{}
	}
}

func TestValidate_RejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		id   string
	}{
		{"empty", ""},
		{"no prefix", "20240101120000-1b9be034-4999-4289-9f03-999b042d65d6"},
		{"wrong prefix", "rid-20240101120000-1b9be034-4999-4289-9f03-999b042d65d6"},
		{"short timestamp", "req-2024010112000-1b9be034-4999-4289-9f03-999b042d65d6"},
		{"letters in timestamp", "req-2024x101120000-1b9be034-4999-4289-9f03-999b042d65d6"},
		{"bare uuid", "1b9be034-4999-4289-9f03-999b042d65d6"},
		{"uuid without dashes", "req-20240101120000-1b9be03449994289f03999b042d65d6x"},
		{"uppercase uuid", "req-20240101120000-1B9BE034-4999-4289-9F03-999B042D65D6"},
		{"trailing junk", "req-20240101120000-1b9be034-4999-4289-9f03-999b042d65d6x"},
		{"leading junk", "xreq-20240101120000-1b9be034-4999-4289-9f03-999b042d65d6"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.False(t, Validate(tc.id))
		})
	}
}

func TestExtractTimestamp(t *testing.T) {
	id := "req-20240101120000-1b9be034-4999-4289-9f03-999b042d65d6"
	ts, ok := ExtractTimestamp(id)
	require.True(t, ok)
	assert.Equal(t, "20240101120000", ts)

	_, ok = ExtractTimestamp("not-an-id")
	assert.False(t, ok)
}

func TestExtractTimestamp_FromGenerated(t *testing.T) {
	before := time.Now().Format(timestampLayout)
	id := Generate()
	after := time.Now().Format(timestampLayout)

	ts, ok := ExtractTimestamp(id)
	require.True(t, ok)
	assert.True(t, strings.Compare(before, ts) <= 0 && strings.Compare(ts, after) <= 0,
		"timestamp %s outside window [%s, %s]", ts, before, after)
}
