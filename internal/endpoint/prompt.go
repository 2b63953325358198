package endpoint

import (
	"fmt"
	"strings"

	"github.com/xaenox/commentgen/internal/catalog"
)

// BuildInstruction assembles the system instruction for one generation. The
// previous comment is only offered for improvement when a hint is present.
func BuildInstruction(tone, hint, previous string) string {
	if tone == "" {
		tone = catalog.DefaultTone
	}

	var b strings.Builder
	b.WriteString("You are an expert at writing engaging LinkedIn comments. ")
	b.WriteString("Generate a thoughtful, professional comment based on the given post caption.\n\n")
	fmt.Fprintf(&b, "Tone: %s\n\n", tone)
	b.WriteString("Guidelines:\n")
	b.WriteString("- Keep it concise (1-3 sentences)\n")
	b.WriteString("- Make it engaging and relevant to the post\n")
	b.WriteString("- Avoid generic responses\n")
	b.WriteString("- Add value to the conversation\n")
	if hint != "" {
		fmt.Fprintf(&b, "- Additional guidance: %s\n", hint)
		if previous != "" {
			fmt.Fprintf(&b, "- Previous comment to improve: \"%s\"\n", previous)
		}
	}
	b.WriteString("\nReturn only the comment text, no quotes or extra formatting.")
	return b.String()
}

func UserMessage(caption string) string {
	return fmt.Sprintf("Post caption: \"%s\"", caption)
}

// truncateRunes cuts s to at most n characters without splitting a rune.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
