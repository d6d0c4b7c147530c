// CLAUDE:SUMMARY Lossy HTML→Markdown (html-to-markdown v2, regex fallback) and restricted Markdown→HTML that always ends in SanitizeHTML.
// CLAUDE:EXPORTS HTMLToMarkdownish, MarkdownToHTML, RenderSummary
package richtext

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
)

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(
			commonmark.WithStrongDelimiter("**"),
			commonmark.WithEmDelimiter("*"),
			commonmark.WithBulletListMarker("-"),
		),
	),
)

// HTMLToMarkdownish converts provider HTML into the simplified Markdown
// dialect that MarkdownToHTML reads back. One-way and lossy: tables, images
// and unknown structures degrade to their text.
func HTMLToMarkdownish(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	md, err := mdConverter.ConvertString(s)
	if err != nil || strings.TrimSpace(md) == "" {
		return htmlToMarkdownRegex(s)
	}
	return strings.TrimSpace(md)
}

var (
	reBr         = regexp.MustCompile(`(?i)<br\s*/?>`)
	reStrong     = regexp.MustCompile(`(?is)<(strong|b)(\s[^>]*)?>(.*?)</(strong|b)>`)
	reEm         = regexp.MustCompile(`(?is)<(em|i)(\s[^>]*)?>(.*?)</(em|i)>`)
	reHeading    = regexp.MustCompile(`(?is)<h([1-6])(\s[^>]*)?>(.*?)</h[1-6]>`)
	reBlockquote = regexp.MustCompile(`(?is)<blockquote(\s[^>]*)?>(.*?)</blockquote>`)
	rePre        = regexp.MustCompile(`(?is)<pre(\s[^>]*)?>(.*?)</pre>`)
	reCode       = regexp.MustCompile(`(?is)<code(\s[^>]*)?>(.*?)</code>`)
	reLi         = regexp.MustCompile(`(?is)<li(\s[^>]*)?>(.*?)</li>`)
	reAnchor     = regexp.MustCompile(`(?is)<a\s[^>]*href\s*=\s*["']([^"']*)["'][^>]*>(.*?)</a>`)
	reBlockEnd   = regexp.MustCompile(`(?i)</(p|div|ul|ol|h[1-6]|blockquote|pre)>`)
	reAnyTag     = regexp.MustCompile(`(?s)<[^>]*>`)
	reBlankLines = regexp.MustCompile(`\n{3,}`)
)

// htmlToMarkdownRegex is the best-effort fallback used when the converter
// fails.
func htmlToMarkdownRegex(s string) string {
	s = reBr.ReplaceAllString(s, "\n")
	s = rePre.ReplaceAllString(s, "\n```\n$2\n```\n")
	s = reCode.ReplaceAllString(s, "`$2`")
	s = reStrong.ReplaceAllString(s, "**$3**")
	s = reEm.ReplaceAllString(s, "*$3*")
	s = reHeading.ReplaceAllStringFunc(s, func(m string) string {
		sub := reHeading.FindStringSubmatch(m)
		level, _ := strconv.Atoi(sub[1])
		return "\n" + strings.Repeat("#", level) + " " + strings.TrimSpace(sub[3]) + "\n"
	})
	s = reBlockquote.ReplaceAllStringFunc(s, func(m string) string {
		sub := reBlockquote.FindStringSubmatch(m)
		lines := strings.Split(strings.TrimSpace(reAnyTag.ReplaceAllString(sub[2], "")), "\n")
		for i, l := range lines {
			lines[i] = "> " + strings.TrimSpace(l)
		}
		return "\n" + strings.Join(lines, "\n") + "\n"
	})
	s = reLi.ReplaceAllString(s, "\n- $2")
	s = reAnchor.ReplaceAllString(s, "[$2]($1)")
	s = reBlockEnd.ReplaceAllString(s, "\n\n")
	s = reAnyTag.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = reBlankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

var (
	reMdHeading   = regexp.MustCompile(`^(#{1,6})\s+(.*?)\s*#*$`)
	reMdBullet    = regexp.MustCompile(`^[-*+]\s+(.*)$`)
	reMdOrdered   = regexp.MustCompile(`^\d+[.)]\s+(.*)$`)
	reMdCodeSpan  = regexp.MustCompile("`([^`]+)`")
	reMdEscape    = regexp.MustCompile(`\\([\\` + "`" + `*_{}\[\]()#+\-.!|~])`)
	reMdBold      = regexp.MustCompile(`\*\*(.+?)\*\*|__(.+?)__`)
	reMdItalic    = regexp.MustCompile(`\*([^*\s](?:[^*]*[^*\s])?)\*`)
	reMdLink      = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s"]+)\)`)
	reMdHolder    = regexp.MustCompile("\x00(\\d+)\x00")
	mdTextEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
)

// MarkdownToHTML renders locally authored or AI-generated Markdown. Raw
// & < > are escaped before any pass, so input markup is never interpreted;
// the result is passed through SanitizeHTML before it is returned.
func MarkdownToHTML(md string) string {
	md = strings.ReplaceAll(md, "\r\n", "\n")
	md = strings.ReplaceAll(md, "\x00", "")
	if strings.TrimSpace(md) == "" {
		return ""
	}
	lines := strings.Split(mdTextEscaper.Replace(md), "\n")

	r := &mdRenderer{}
	for _, line := range lines {
		r.line(line)
	}
	r.finish()
	return SanitizeHTML(r.out.String())
}

type mdRenderer struct {
	out     strings.Builder
	para    []string
	quote   []string
	list    string // "", "ul" or "ol"
	inFence bool
	fence   []string
}

func (r *mdRenderer) line(line string) {
	trimmed := strings.TrimSpace(line)

	if r.inFence {
		if strings.HasPrefix(trimmed, "```") {
			r.closeFence()
			return
		}
		r.fence = append(r.fence, line)
		return
	}

	switch {
	case strings.HasPrefix(trimmed, "```"):
		r.flush()
		r.inFence = true
	case trimmed == "":
		r.flush()
	case reMdHeading.MatchString(trimmed):
		r.flush()
		m := reMdHeading.FindStringSubmatch(trimmed)
		level := len(m[1])
		fmt.Fprintf(&r.out, "<h%d>%s</h%d>", level, inline(m[2]), level)
	case reMdBullet.MatchString(trimmed):
		r.item("ul", reMdBullet.FindStringSubmatch(trimmed)[1])
	case reMdOrdered.MatchString(trimmed):
		r.item("ol", reMdOrdered.FindStringSubmatch(trimmed)[1])
	case strings.HasPrefix(trimmed, "&gt;"):
		r.flushPara()
		r.closeList()
		r.quote = append(r.quote, strings.TrimSpace(strings.TrimPrefix(trimmed, "&gt;")))
	default:
		r.closeList()
		r.flushQuote()
		r.para = append(r.para, trimmed)
	}
}

func (r *mdRenderer) item(kind, text string) {
	r.flushPara()
	r.flushQuote()
	if r.list != kind {
		r.closeList()
		r.out.WriteString("<" + kind + ">")
		r.list = kind
	}
	r.out.WriteString("<li>" + inline(text) + "</li>")
}

func (r *mdRenderer) flushPara() {
	if len(r.para) == 0 {
		return
	}
	r.out.WriteString("<p>" + inline(strings.Join(r.para, "\n")) + "</p>")
	r.para = nil
}

func (r *mdRenderer) flushQuote() {
	if len(r.quote) == 0 {
		return
	}
	r.out.WriteString("<blockquote>" + inline(strings.Join(r.quote, "\n")) + "</blockquote>")
	r.quote = nil
}

func (r *mdRenderer) closeList() {
	if r.list == "" {
		return
	}
	r.out.WriteString("</" + r.list + ">")
	r.list = ""
}

func (r *mdRenderer) closeFence() {
	r.out.WriteString("<pre><code>" + strings.Join(r.fence, "\n") + "</code></pre>")
	r.fence = nil
	r.inFence = false
}

func (r *mdRenderer) flush() {
	r.flushPara()
	r.flushQuote()
	r.closeList()
}

func (r *mdRenderer) finish() {
	if r.inFence {
		r.closeFence()
	}
	r.flush()
}

// inline applies code, escape, bold, italic and link passes to already
// HTML-escaped text. Code spans and backslash escapes are parked in
// placeholders so the emphasis passes cannot touch them.
func inline(s string) string {
	var parked []string
	park := func(v string) string {
		parked = append(parked, v)
		return "\x00" + strconv.Itoa(len(parked)-1) + "\x00"
	}

	s = reMdCodeSpan.ReplaceAllStringFunc(s, func(m string) string {
		return park("<code>" + reMdCodeSpan.FindStringSubmatch(m)[1] + "</code>")
	})
	s = reMdEscape.ReplaceAllStringFunc(s, func(m string) string {
		return park(m[1:])
	})
	s = reMdBold.ReplaceAllStringFunc(s, func(m string) string {
		sub := reMdBold.FindStringSubmatch(m)
		text := sub[1]
		if text == "" {
			text = sub[2]
		}
		return "<strong>" + text + "</strong>"
	})
	s = reMdItalic.ReplaceAllString(s, "<em>$1</em>")
	s = reMdLink.ReplaceAllString(s, `<a href="$2">$1</a>`)
	s = strings.ReplaceAll(s, "\n", "<br>")

	return reMdHolder.ReplaceAllStringFunc(s, func(m string) string {
		i, err := strconv.Atoi(reMdHolder.FindStringSubmatch(m)[1])
		if err != nil || i >= len(parked) {
			return ""
		}
		return parked[i]
	})
}

var reLooksHTML = regexp.MustCompile(`(?i)<\s*/?\s*(p|br|div|span|strong|b|em|i|u|h[1-6]|ul|ol|li|blockquote|pre|code|a|table|tr|td)\b[^>]*>`)

// RenderSummary renders an AI summary for display. HTML summaries are first
// flattened to Markdown so that every summary goes through the same
// restricted renderer.
func RenderSummary(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}
	if reLooksHTML.MatchString(content) {
		content = HTMLToMarkdownish(content)
	}
	return MarkdownToHTML(content)
}
