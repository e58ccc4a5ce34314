// ABOUTME: Interprets raw agent replies: strips generic markdown and parses rich-text sections.
// ABOUTME: Section markers are [color=R,G,B]LABEL:[/color] spans; parsing never fails.

package response

import (
	"regexp"
	"strings"
)

// Section is one labeled, colored span of the reply.
type Section struct {
	Label string
	Color string
	Text  string
}

// Structured is the parsed view of a raw reply. All fields are optional;
// a reply with no section markers lands entirely in Body.
type Structured struct {
	Header  *Section
	Actions []string
	Footer  *Section
	Data    []Section
	Body    string
}

// markdownStripper removes the markdown delimiters a generic text backend may
// emit. The game's rich-text markup ([color=...], [item=...]) uses square
// brackets and is untouched: the two dialects are distinguished by delimiter
// shape alone.
var markdownStripper = strings.NewReplacer("**", "", "```", "", "##", "")

// Sanitize strips bold, heading, and fenced-code markers from a reply.
func Sanitize(raw string) string {
	return markdownStripper.Replace(raw)
}

// sectionMarker matches [color=R,G,B]LABEL:[/color].
var sectionMarker = regexp.MustCompile(`\[color=([^\]]+)\]([^\[\]]+?):\[/color\]`)

// footerLabels is the closing vocabulary: a marker with one of these labels
// ends the reply rather than carrying data.
var footerLabels = map[string]bool{
	"NEXT":        true,
	"NEXT STEPS":  true,
	"SIGN-OFF":    true,
	"SIGNING OFF": true,
	"OVER":        true,
}

// Parse scans a raw reply for ordered section markers. The first marker is
// the header; a blank-line break inside its text splits the short header
// text from the overflow body. Labels containing "ACTION" collect bullet
// lines; closing-vocabulary labels become the footer; anything else is a
// named data section. With no markers the whole text is the fallback body.
func Parse(raw string) *Structured {
	matches := sectionMarker.FindAllStringSubmatchIndex(raw, -1)
	if len(matches) == 0 {
		return &Structured{Body: strings.TrimSpace(raw)}
	}

	parsed := &Structured{}
	for i, m := range matches {
		color := raw[m[2]:m[3]]
		label := strings.TrimSpace(raw[m[4]:m[5]])

		end := len(raw)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		text := strings.TrimSpace(raw[m[1]:end])

		section := Section{Label: label, Color: color, Text: text}
		switch {
		case i == 0:
			parsed.setHeader(section)
		case strings.Contains(strings.ToUpper(label), "ACTION"):
			parsed.Actions = append(parsed.Actions, bulletLines(text)...)
		case footerLabels[strings.ToUpper(label)]:
			parsed.Footer = &section
		default:
			parsed.Data = append(parsed.Data, section)
		}
	}
	return parsed
}

// setHeader installs the first marker as the header, splitting overflow body
// text off at the first blank-line break.
func (s *Structured) setHeader(section Section) {
	if short, overflow, found := splitBlankLine(section.Text); found {
		section.Text = short
		s.Body = overflow
	}
	s.Header = &section
}

// splitBlankLine splits text at its first blank-line break.
func splitBlankLine(text string) (before, after string, found bool) {
	idx := strings.Index(text, "\n\n")
	if idx < 0 {
		return text, "", false
	}
	return strings.TrimSpace(text[:idx]), strings.TrimSpace(text[idx:]), true
}

// bulletLines extracts the bullet list from an actions segment, stripping
// a leading "- " from each line.
func bulletLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.TrimPrefix(line, "- ")
		lines = append(lines, line)
	}
	return lines
}
