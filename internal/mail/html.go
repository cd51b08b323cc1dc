package mail

import (
	"html"
	"regexp"
	"strings"
)

var (
	scriptRe    = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe     = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	brRe        = regexp.MustCompile(`(?i)<br\s*/?>`)
	pOpenRe     = regexp.MustCompile(`(?i)<p[^>]*>`)
	pCloseRe    = regexp.MustCompile(`(?i)</p>`)
	divOpenRe   = regexp.MustCompile(`(?i)<div[^>]*>`)
	tagRe       = regexp.MustCompile(`<[^>]+>`)
	blankRunRe  = regexp.MustCompile(`\n\s*\n`)
	spaceRunRe  = regexp.MustCompile(`[ \t]+`)
	anchorRe    = regexp.MustCompile(`(?is)<a\s[^>]*href=["']([^"']+)["'][^>]*>(.*?)</a>`)
)

// HTMLToText renders an HTML email body as plain text: scripts and
// styles removed, block elements turned into newlines, tags stripped,
// entities unescaped.
func HTMLToText(content string) string {
	if content == "" {
		return ""
	}
	text := scriptRe.ReplaceAllString(content, "")
	text = styleRe.ReplaceAllString(text, "")
	text = brRe.ReplaceAllString(text, "\n")
	text = pOpenRe.ReplaceAllString(text, "\n")
	text = pCloseRe.ReplaceAllString(text, "\n")
	text = divOpenRe.ReplaceAllString(text, "\n")
	text = tagRe.ReplaceAllString(text, "")
	text = html.UnescapeString(text)
	text = blankRunRe.ReplaceAllString(text, "\n\n")
	text = spaceRunRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Link is one hyperlink extracted from an HTML body.
type Link struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// ExtractLinks pulls hyperlinks out of an HTML body, skipping mailto:,
// cid:, javascript: and fragment links, deduplicated by URL in
// document order.
func ExtractLinks(content string) []Link {
	if content == "" {
		return nil
	}

	seen := make(map[string]struct{})
	var links []Link

	for _, match := range anchorRe.FindAllStringSubmatch(content, -1) {
		url := strings.TrimSpace(html.UnescapeString(match[1]))
		if strings.HasPrefix(url, "mailto:") ||
			strings.HasPrefix(url, "cid:") ||
			strings.HasPrefix(url, "javascript:") ||
			strings.HasPrefix(url, "#") {
			continue
		}
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}

		text := strings.TrimSpace(html.UnescapeString(tagRe.ReplaceAllString(match[2], "")))
		links = append(links, Link{URL: url, Text: text})
	}
	return links
}
