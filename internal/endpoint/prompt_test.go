package endpoint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildInstruction(t *testing.T) {
	tests := []struct {
		name     string
		tone     string
		hint     string
		previous string
		contains []string
		excludes []string
	}{
		{
			name:     "plain",
			tone:     "insightful",
			contains: []string{"Tone: insightful", "- Add value to the conversation", "Return only the comment text"},
			excludes: []string{"Additional guidance", "Previous comment"},
		},
		{
			name:     "hint without history",
			tone:     "friendly",
			hint:     "ask a question",
			contains: []string{"- Additional guidance: ask a question"},
			excludes: []string{"Previous comment"},
		},
		{
			name:     "previous needs a hint",
			previous: "Old text",
			contains: []string{"Tone: professional"},
			excludes: []string{"Previous comment"},
		},
		{
			name:     "hint with history",
			hint:     "shorter",
			previous: "Old text",
			contains: []string{"- Additional guidance: shorter", `- Previous comment to improve: "Old text"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildInstruction(tt.tone, tt.hint, tt.previous)
			for _, s := range tt.contains {
				assert.Contains(t, got, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, got, s)
			}
			assert.True(t, strings.HasPrefix(got, "You are an expert at writing engaging LinkedIn comments."))
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héll", truncateRunes("héllo", 4))
	assert.Equal(t, "hi", truncateRunes("hi", 4))
}
