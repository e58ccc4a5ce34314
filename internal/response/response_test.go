// ABOUTME: Tests for reply sanitizing and rich-text section parsing.
// ABOUTME: Includes the header/actions example and the no-marker fallback guarantee.

package response

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Sanitize Tests
// =============================================================================

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bold markers", "this is **important** text", "this is important text"},
		{"heading markers", "## Status\nall good", " Status\nall good"},
		{"code fences", "```\nx = 1\n```", "\nx = 1\n"},
		{"mixed", "**bold** and ```code``` and ## heading", "bold and code and  heading"},
		{"plain text untouched", "nothing to strip here", "nothing to strip here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestSanitizeLeavesRichTextAlone(t *testing.T) {
	raw := "[color=1,0.8,0.2]STATUS:[/color] ok with [item=iron-plate]"
	assert.Equal(t, raw, Sanitize(raw))
}

// =============================================================================
// Parse Tests
// =============================================================================

func TestParseHeaderAndActions(t *testing.T) {
	raw := "[color=1,0.8,0.2]STATUS:[/color] ok\n\n" +
		"[color=0.6,0.8,1]ACTIONS:[/color]\n- mined ore\n- crafted gear"

	parsed := Parse(raw)

	require.NotNil(t, parsed.Header)
	assert.Equal(t, "STATUS", parsed.Header.Label)
	assert.Equal(t, "1,0.8,0.2", parsed.Header.Color)
	assert.Equal(t, "ok", parsed.Header.Text)
	assert.Equal(t, []string{"mined ore", "crafted gear"}, parsed.Actions)
	assert.Nil(t, parsed.Footer)
	assert.Empty(t, parsed.Data)
}

func TestParseFallbackBody(t *testing.T) {
	parsed := Parse("plain text, no markers")
	assert.Nil(t, parsed.Header)
	assert.Empty(t, parsed.Actions)
	assert.Equal(t, "plain text, no markers", parsed.Body)
}

func TestParseHeaderOverflow(t *testing.T) {
	raw := "[color=1,1,1]REPORT:[/color] short summary\n\nlonger overflow body\nwith detail"

	parsed := Parse(raw)
	require.NotNil(t, parsed.Header)
	assert.Equal(t, "short summary", parsed.Header.Text)
	assert.Equal(t, "longer overflow body\nwith detail", parsed.Body)
}

func TestParseFooter(t *testing.T) {
	raw := "[color=1,1,1]STATUS:[/color] ok\n\n" +
		"[color=0.5,0.5,0.5]NEXT:[/color] expand the smelting line"

	parsed := Parse(raw)
	require.NotNil(t, parsed.Footer)
	assert.Equal(t, "NEXT", parsed.Footer.Label)
	assert.Equal(t, "expand the smelting line", parsed.Footer.Text)
}

func TestParseFooterVocabulary(t *testing.T) {
	for _, label := range []string{"NEXT", "NEXT STEPS", "SIGN-OFF", "SIGNING OFF", "OVER"} {
		raw := "[color=1,1,1]STATUS:[/color] ok\n[color=1,1,1]" + label + ":[/color] bye"
		parsed := Parse(raw)
		require.NotNil(t, parsed.Footer, "label %q should close the reply", label)
		assert.Equal(t, label, parsed.Footer.Label)
	}
}

func TestParseNamedDataSections(t *testing.T) {
	raw := "[color=1,1,1]STATUS:[/color] ok\n" +
		"[color=0,1,0]INVENTORY:[/color] 40 iron plates\n" +
		"[color=1,0,0]THREATS:[/color] biters north"

	parsed := Parse(raw)
	require.Len(t, parsed.Data, 2)
	assert.Equal(t, "INVENTORY", parsed.Data[0].Label)
	assert.Equal(t, "40 iron plates", parsed.Data[0].Text)
	assert.Equal(t, "THREATS", parsed.Data[1].Label)
	assert.Equal(t, "1,0,0", parsed.Data[1].Color)
}

func TestParseActionLabelVariants(t *testing.T) {
	raw := "[color=1,1,1]STATUS:[/color] ok\n" +
		"[color=1,1,1]ACTION LOG:[/color]\n- walked north\nplaced a drill"

	parsed := Parse(raw)
	// Bullet prefix is optional per line; bare lines are kept as-is.
	assert.Equal(t, []string{"walked north", "placed a drill"}, parsed.Actions)
}

func TestParseNeverPanics(t *testing.T) {
	inputs := []string{
		"",
		"[color=]:[/color]",
		"[color=1,1,1]ONLY HEADER:[/color]",
		"[color=1,1,1]A:[/color][color=2,2,2]B:[/color]",
		"\n\n\n",
	}
	for _, raw := range inputs {
		assert.NotPanics(t, func() { Parse(raw) })
	}
}

func TestParseEmptyHeaderText(t *testing.T) {
	parsed := Parse("[color=1,1,1]STATUS:[/color]")
	require.NotNil(t, parsed.Header)
	assert.Equal(t, "STATUS", parsed.Header.Label)
	assert.Empty(t, parsed.Header.Text)
}
