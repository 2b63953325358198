package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValid(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"3f2504e0-4f89-41d3-9a0c-0305e82c3301", true},
		{"3F2504E0-4F89-41D3-9A0C-0305E82C3301", true},
		{"", false},
		{"user_12345", false},
		{"3f2504e0-4f89-01d3-9a0c-0305e82c3301", false}, // version 0
		{"3f2504e0-4f89-41d3-ca0c-0305e82c3301", false}, // variant c
		{"{3f2504e0-4f89-41d3-9a0c-0305e82c3301}", false},
		{"urn:uuid:3f2504e0-4f89-41d3-9a0c-0305e82c3301", false},
		{"3f2504e04f8941d39a0c0305e82c3301", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Valid(tc.id), tc.id)
	}
}

func TestNew_IsCanonicalV4(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id, err := New()
		require.NoError(t, err)
		require.True(t, Valid(id), id)
		require.Equal(t, byte('4'), id[14])
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 100)
}
