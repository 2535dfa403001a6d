package turn

import (
	"regexp"
	"strings"
)

// Markdown is fine on screen but sounds terrible when read aloud, so
// replies are flattened to plain text before synthesis.
var (
	reFenceLine = regexp.MustCompile("(?m)^\\s*```[a-zA-Z0-9_-]*\\s*$")
	reFence     = regexp.MustCompile("```")
	reImage     = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	reLink      = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	reBold      = regexp.MustCompile(`\*\*([^*]+)\*\*|__([^_]+)__`)
	reItalic    = regexp.MustCompile(`\*([^*]+)\*|\b_([^_]+)_\b`)
	reStrike    = regexp.MustCompile(`~~([^~]+)~~`)
	reCode      = regexp.MustCompile("`([^`]+)`")
	reHeading   = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+`)
	reStray     = regexp.MustCompile("[*`]+")
)

// Sanitize strips markdown formatting from a reply, leaving plain text
// suitable for speech synthesis. Link syntax collapses to the link
// text; images are dropped entirely.
func Sanitize(text string) string {
	out := reFenceLine.ReplaceAllString(text, "")
	out = reFence.ReplaceAllString(out, "")
	out = reCode.ReplaceAllString(out, "$1")
	out = reImage.ReplaceAllString(out, "")
	out = reLink.ReplaceAllString(out, "$1")
	out = reBold.ReplaceAllString(out, "$1$2")
	out = reItalic.ReplaceAllString(out, "$1$2")
	out = reStrike.ReplaceAllString(out, "$1")
	out = reHeading.ReplaceAllString(out, "")
	out = reStray.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}
