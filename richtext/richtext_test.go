package richtext

import (
	"strings"
	"testing"
)

func TestSanitizeHTML_AllowList(t *testing.T) {
	// WHAT: Disallowed elements are unwrapped, attributes stripped, script dropped.
	// WHY: Provider HTML is rendered in the dashboard; only the allow-list may survive.
	cases := []struct {
		name, in, want string
	}{
		{"attrs and script", `<p onclick="x">Hi <script>alert(1)</script><b>there</b></p>`, `<p>Hi <b>there</b></p>`},
		{"unwrap keeps text", `<div><span class="x">keep</span> me</div>`, `<span>keep</span> me`},
		{"comment removed", `<p>x<!-- y --></p>`, `<p>x</p>`},
		{"svg unwrapped", `<svg><text>hi</text></svg>`, `hi`},
		{"text escaped", `a < b & c`, `a &lt; b &amp; c`},
		{"style dropped", `<style>p{}</style><em>ok</em>`, `<em>ok</em>`},
		{"empty", "   ", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeHTML(tc.in); got != tc.want {
				t.Errorf("SanitizeHTML(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSanitizeHTML_JavaScriptHref(t *testing.T) {
	// WHAT: javascript: hrefs are removed, including obfuscated forms.
	// WHY: The anchor must stay (its text is content) but must not execute.
	for _, in := range []string{
		`<a href="javascript:alert(1)">x</a>`,
		`<a href="JaVaScRiPt:alert(1)">x</a>`,
		`<a href=" java&#x0A;script:alert(1)">x</a>`,
		`<a href="java&#x09;script:alert(1)">x</a>`,
	} {
		got := SanitizeHTML(in)
		if got != `<a>x</a>` {
			t.Errorf("SanitizeHTML(%q) = %q, want <a>x</a>", in, got)
		}
	}
}

func TestSanitizeHTML_KeepsSafeHref(t *testing.T) {
	// WHAT: A normal href survives, other anchor attributes do not.
	// WHY: Links to tribunal portals are useful content.
	got := SanitizeHTML(`<a href="https://example.com/?a=1&b=2" target="_blank">link</a>`)
	want := `<a href="https://example.com/?a=1&amp;b=2">link</a>`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSanitizeHTML_Idempotent(t *testing.T) {
	// WHAT: sanitize(sanitize(x)) == sanitize(x).
	// WHY: Content is sanitized at several layers; repeated passes must be stable.
	inputs := []string{
		`<h1><h2>nested</h2></h1>`,
		`<p><div>block in p</div></p>`,
		`<table><tr><td>cell</td></tr></table><p>after</p>`,
		`<a href="x"><a href="y">double</a></a>`,
		`<ul><li><p>item</p></li></ul>`,
		`<b><i>mis</b>nested</i>`,
		`plain & <unknown>text</unknown>`,
		`<pre>
code</pre>`,
	}
	for _, in := range inputs {
		once := SanitizeHTML(in)
		twice := SanitizeHTML(once)
		if once != twice {
			t.Errorf("not idempotent for %q:\n once  %q\n twice %q", in, once, twice)
		}
	}
}

func TestIsJavaScriptURL(t *testing.T) {
	cases := map[string]bool{
		"javascript:x":          true,
		"  JAVASCRIPT:x":        true,
		"java\tscript:x":        true,
		"https://javascript.io": false,
		"/relative":             false,
		"":                      false,
	}
	for in, want := range cases {
		if got := IsJavaScriptURL(in); got != want {
			t.Errorf("IsJavaScriptURL(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestPlainText(t *testing.T) {
	// WHAT: All tags are stripped and whitespace collapsed.
	// WHY: Used for list previews and publication titles.
	got := PlainText("<p>Hello <b>world</b></p>\n<p>again</p>")
	if got != "Hello world again" {
		t.Errorf("got %q", got)
	}
	if PlainText("") != "" {
		t.Error("empty input should give empty output")
	}
}

func TestMarkdownToHTML_Blocks(t *testing.T) {
	// WHAT: The supported Markdown subset renders to the expected elements.
	// WHY: AI summaries rely on headings, lists and emphasis.
	cases := []struct {
		name, in, want string
	}{
		{"heading", "# Title", `<h1>Title</h1>`},
		{"emphasis", "**bold** and *it*", `<p><strong>bold</strong> and <em>it</em></p>`},
		{"underscore bold", "__b__", `<p><strong>b</strong></p>`},
		{"bullets", "- a\n- b", `<ul><li>a</li><li>b</li></ul>`},
		{"ordered", "1. a\n2) b", `<ol><li>a</li><li>b</li></ol>`},
		{"quote", "> quoted", `<blockquote>quoted</blockquote>`},
		{"fence", "```\n<b>x</b>\n```", `<pre><code>&lt;b&gt;x&lt;/b&gt;</code></pre>`},
		{"code span", "`**x**`", `<p><code>**x**</code></p>`},
		{"escape", `\*not italic\*`, `<p>*not italic*</p>`},
		{"link", "[site](https://example.com)", `<p><a href="https://example.com">site</a></p>`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MarkdownToHTML(tc.in); got != tc.want {
				t.Errorf("MarkdownToHTML(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestMarkdownToHTML_EscapesRawHTML(t *testing.T) {
	// WHAT: Raw HTML in Markdown input is shown as text, never interpreted.
	// WHY: AI output is untrusted.
	got := MarkdownToHTML("<script>alert(1)</script>")
	if got != `<p>&lt;script&gt;alert(1)&lt;/script&gt;</p>` {
		t.Errorf("got %q", got)
	}
	got = MarkdownToHTML(`<img src=x onerror="alert(1)">`)
	if strings.Contains(got, "<img") {
		t.Errorf("img element leaked: %q", got)
	}
}

func TestMarkdownToHTML_JavaScriptLink(t *testing.T) {
	// WHAT: A Markdown link with a javascript: target loses its href.
	got := MarkdownToHTML("[x](javascript:alert(1))")
	if strings.Contains(strings.ToLower(got), "javascript") {
		t.Errorf("javascript href leaked: %q", got)
	}
	if !strings.Contains(got, "<a>x</a>") {
		t.Errorf("anchor text lost: %q", got)
	}
}

func TestMarkdownToHTML_StableUnderSanitize(t *testing.T) {
	// WHAT: sanitize(markdownToHtml(x)) == markdownToHtml(x).
	// WHY: Rendered summaries may be sanitized again downstream.
	inputs := []string{
		"# H\n\npara one\nline two\n\n- a\n- **b**",
		"> q1\n> q2\n\n1. x\n2. y",
		"```\ncode & <tags>\n```",
		"mixed *em* `code` [l](/rel) \\_",
		"<div>raw</div> & stuff",
	}
	for _, in := range inputs {
		out := MarkdownToHTML(in)
		if again := SanitizeHTML(out); again != out {
			t.Errorf("unstable for %q:\n md  %q\n san %q", in, out, again)
		}
	}
}

func TestMarkdownToHTML_LineBreaks(t *testing.T) {
	got := MarkdownToHTML("line1\nline2")
	if !strings.HasPrefix(got, "<p>line1<br") || !strings.HasSuffix(got, "line2</p>") {
		t.Errorf("got %q", got)
	}
}

func TestHTMLToMarkdownish(t *testing.T) {
	// WHAT: Provider HTML converts to the simplified Markdown dialect.
	// WHY: Step descriptions are stored and re-rendered as Markdown.
	got := HTMLToMarkdownish(`<p><strong>Hi</strong> <em>there</em></p><ul><li>a</li></ul>`)
	for _, want := range []string{"**Hi**", "*there*", "- a"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
	if HTMLToMarkdownish("  ") != "" {
		t.Error("blank input should give empty output")
	}
}

func TestHTMLToMarkdownRegexFallback(t *testing.T) {
	// WHAT: The regex fallback handles headings, breaks and anchors.
	// WHY: Used when the converter fails on malformed input.
	got := htmlToMarkdownRegex(`<h2>T</h2><p>a<br>b</p><a href="https://x">l</a>`)
	for _, want := range []string{"## T", "a\nb", "[l](https://x)"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
	if strings.Contains(got, "<") {
		t.Errorf("tags left in %q", got)
	}
}

func TestRenderSummary(t *testing.T) {
	// WHAT: HTML and Markdown summaries both end up as sanitized HTML.
	if got := RenderSummary("<p><b>x</b></p>"); !strings.Contains(got, "<strong>x</strong>") {
		t.Errorf("html summary: %q", got)
	}
	if got := RenderSummary("**x**"); got != "<p><strong>x</strong></p>" {
		t.Errorf("markdown summary: %q", got)
	}
	if RenderSummary("") != "" {
		t.Error("empty summary should render empty")
	}
}
