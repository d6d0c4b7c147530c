// CLAUDE:SUMMARY Allow-list HTML sanitizer (x/net/html DOM walk, unwrap not drop) with bluemonday fallback and plain-text stripping.
// CLAUDE:EXPORTS SanitizeHTML, PlainText, AllowedTags
// Package richtext makes provider-sourced and AI-generated rich text safe to
// render: an allow-list HTML sanitizer, a lossy HTML to Markdown converter
// and a restricted Markdown to HTML renderer whose output is always
// sanitized.
package richtext

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	nethtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// AllowedTags is the element allow-list. Anything else is unwrapped.
var AllowedTags = []string{
	"p", "br", "strong", "b", "em", "i", "u",
	"h1", "h2", "h3", "h4", "h5", "h6",
	"ul", "ol", "li", "blockquote", "code", "pre", "span", "a",
}

var allowed = func() map[atom.Atom]bool {
	m := make(map[atom.Atom]bool, len(AllowedTags))
	for _, t := range AllowedTags {
		m[atom.Lookup([]byte(t))] = true
	}
	return m
}()

// dropped elements lose their content too: their text is code, not prose.
var dropped = map[atom.Atom]bool{
	atom.Script: true,
	atom.Style:  true,
}

// maxPasses bounds the fixpoint loop. Unwrapping can produce markup the
// parser restructures (a heading inside a heading); one or two extra passes
// settle it.
const maxPasses = 5

var (
	fallback = newFallbackPolicy()
	strict   = newStrictPolicy()
)

// SanitizeHTML returns a fragment containing only allow-listed elements,
// no attributes except a safe href on <a>, and the text of every removed
// wrapper. It is idempotent and never panics.
func SanitizeHTML(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	out := s
	for range maxPasses {
		next, err := sanitizeOnce(out)
		if err != nil {
			return fallback.Sanitize(s)
		}
		if next == out {
			return next
		}
		out = next
	}
	return out
}

// PlainText strips every tag and returns collapsed, unescaped text.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	text := html.UnescapeString(strict.Sanitize(s))
	return strings.Join(strings.Fields(text), " ")
}

func sanitizeOnce(s string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("richtext: sanitize panic: %v", r)
		}
	}()

	body := &nethtml.Node{Type: nethtml.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := nethtml.ParseFragment(strings.NewReader(s), body)
	if err != nil {
		return "", fmt.Errorf("richtext: parse: %w", err)
	}

	root := &nethtml.Node{Type: nethtml.ElementNode, Data: "div", DataAtom: atom.Div}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	clean(root)

	var buf bytes.Buffer
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := nethtml.Render(&buf, c); err != nil {
			return "", fmt.Errorf("richtext: render: %w", err)
		}
	}
	return buf.String(), nil
}

// clean walks parent's children depth-first. Disallowed elements are
// replaced by their (already cleaned) children.
func clean(parent *nethtml.Node) {
	for c := parent.FirstChild; c != nil; {
		next := c.NextSibling
		switch c.Type {
		case nethtml.TextNode:
		case nethtml.ElementNode:
			clean(c)
			switch {
			case dropped[c.DataAtom]:
				parent.RemoveChild(c)
			case c.Namespace != "" || !allowed[c.DataAtom]:
				unwrap(parent, c)
			default:
				c.Attr = keepAttrs(c)
			}
		default:
			// Comments, doctypes, stray documents.
			parent.RemoveChild(c)
		}
		c = next
	}
}

func unwrap(parent, n *nethtml.Node) {
	for gc := n.FirstChild; gc != nil; {
		next := gc.NextSibling
		n.RemoveChild(gc)
		parent.InsertBefore(gc, n)
		gc = next
	}
	parent.RemoveChild(n)
}

func keepAttrs(n *nethtml.Node) []nethtml.Attribute {
	if n.DataAtom != atom.A {
		return nil
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == "href" && !IsJavaScriptURL(a.Val) {
			return []nethtml.Attribute{{Key: "href", Val: a.Val}}
		}
	}
	return nil
}

// IsJavaScriptURL reports whether href would execute script. Browsers ignore
// embedded whitespace and control characters in the scheme, so those are
// removed before the case-insensitive prefix check.
func IsJavaScriptURL(href string) bool {
	var b strings.Builder
	for _, r := range href {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return strings.HasPrefix(b.String(), "javascript:")
}

func newFallbackPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(AllowedTags...)
	p.AllowAttrs("href").OnElements("a")
	p.RequireParseableURLs(true)
	p.AllowRelativeURLs(true)
	p.AllowURLSchemes("http", "https", "mailto", "tel")
	return p
}

func newStrictPolicy() *bluemonday.Policy {
	p := bluemonday.StrictPolicy()
	p.AddSpaceWhenStrippingTag(true)
	return p
}
