package render

import (
	"fmt"
	"html"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/microcosm-cc/bluemonday"
)

// HTMLRenderer turns a Node tree into sanitized HTML for the preview pane.
//
// SANITIZATION:
// Markdown is untrusted input — an article body can contain raw HTML. The
// rendered document passes through a bluemonday policy before anything
// reaches a browser. The policy is the UGC baseline extended with what the
// pipeline's own output needs: chroma's class attributes, disabled task
// checkboxes, and the diagram placeholder's data attribute. Compiled diagram
// SVG is injected AFTER sanitization by the editor layer — it is generated
// by our own compiler from escaped labels, not drawn from user HTML.
type HTMLRenderer struct {
	policy    *bluemonday.Policy
	formatter *chromahtml.Formatter
	style     string
}

// NewHTMLRenderer creates an HTMLRenderer with the default policy and the
// given chroma style name ("" → "github").
func NewHTMLRenderer(styleName string) *HTMLRenderer {
	if styleName == "" {
		styleName = "github"
	}

	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").OnElements("pre", "code", "span", "div", "table")
	policy.AllowAttrs("data-diagram-id").OnElements("div")
	policy.AllowAttrs("type", "checked", "disabled").OnElements("input")
	policy.AllowElements("input")

	return &HTMLRenderer{
		policy: policy,
		// WithClasses makes chroma emit class attributes instead of inline
		// styles — inline style attributes would not survive sanitization.
		formatter: chromahtml.New(chromahtml.WithClasses(true)),
		style:     styleName,
	}
}

// StyleSheet emits the CSS for the class names the highlighter produces.
// Render emits classes only (inline styles would not survive
// sanitization), so a page showing highlighted code must serve this
// stylesheet alongside it.
func (r *HTMLRenderer) StyleSheet() (string, error) {
	style := styles.Get(r.style)
	if style == nil {
		style = styles.Fallback
	}
	var b strings.Builder
	if err := r.formatter.WriteCSS(&b, style); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Render emits sanitized HTML for the document tree.
func (r *HTMLRenderer) Render(doc *Node) string {
	var b strings.Builder
	for _, child := range doc.Children {
		r.writeNode(&b, child)
	}
	return r.policy.Sanitize(b.String())
}

func (r *HTMLRenderer) writeNode(b *strings.Builder, n *Node) {
	switch n.Kind {
	case KindPlaceholder:
		b.WriteString(`<p class="preview-placeholder"></p>`)

	case KindHeading:
		fmt.Fprintf(b, "<h%d>", n.Level)
		r.writeChildren(b, n)
		fmt.Fprintf(b, "</h%d>", n.Level)

	case KindParagraph:
		b.WriteString("<p>")
		r.writeChildren(b, n)
		b.WriteString("</p>")

	case KindText:
		b.WriteString(html.EscapeString(n.Text))

	case KindEmphasis:
		b.WriteString("<em>")
		r.writeChildren(b, n)
		b.WriteString("</em>")

	case KindStrong:
		b.WriteString("<strong>")
		r.writeChildren(b, n)
		b.WriteString("</strong>")

	case KindCodeSpan:
		b.WriteString("<code>")
		b.WriteString(html.EscapeString(n.Text))
		b.WriteString("</code>")

	case KindLink:
		fmt.Fprintf(b, `<a href="%s"`, html.EscapeString(n.Destination))
		if n.Title != "" {
			fmt.Fprintf(b, ` title="%s"`, html.EscapeString(n.Title))
		}
		b.WriteString(">")
		r.writeChildren(b, n)
		b.WriteString("</a>")

	case KindImage:
		fmt.Fprintf(b, `<img src="%s" alt="%s"`,
			html.EscapeString(n.Destination), html.EscapeString(n.Text))
		if n.Title != "" {
			fmt.Fprintf(b, ` title="%s"`, html.EscapeString(n.Title))
		}
		b.WriteString("/>")

	case KindList:
		tag := "ul"
		if n.Ordered {
			tag = "ol"
		}
		b.WriteString("<" + tag)
		if n.Ordered && n.Start > 1 {
			fmt.Fprintf(b, ` start="%d"`, n.Start)
		}
		b.WriteString(">")
		r.writeChildren(b, n)
		b.WriteString("</" + tag + ">")

	case KindListItem:
		b.WriteString("<li>")
		r.writeChildren(b, n)
		b.WriteString("</li>")

	case KindBlockquote:
		b.WriteString("<blockquote>")
		r.writeChildren(b, n)
		b.WriteString("</blockquote>")

	case KindThematicBreak:
		b.WriteString("<hr/>")

	case KindTable:
		b.WriteString("<table>")
		r.writeChildren(b, n)
		b.WriteString("</table>")

	case KindTableRow:
		b.WriteString("<tr>")
		r.writeChildren(b, n)
		b.WriteString("</tr>")

	case KindTableCell:
		tag := "td"
		if n.IsHead {
			tag = "th"
		}
		b.WriteString("<" + tag + ">")
		r.writeChildren(b, n)
		b.WriteString("</" + tag + ">")

	case KindStrikethrough:
		b.WriteString("<del>")
		r.writeChildren(b, n)
		b.WriteString("</del>")

	case KindTaskCheckbox:
		b.WriteString(`<input type="checkbox" disabled`)
		if n.Checked {
			b.WriteString(" checked")
		}
		b.WriteString("/>")

	case KindCodeBlock:
		r.writeCodeBlock(b, n)

	case KindDiagram:
		// Placeholder only; the diagram renderer resolves it asynchronously
		// and the editor substitutes the compiled SVG (or an inline error
		// block) by identifier.
		fmt.Fprintf(b, `<div class="diagram" data-diagram-id="%s"></div>`,
			html.EscapeString(n.DiagramID))

	case KindHTML:
		// Passed through raw here; the document-level sanitize pass strips
		// anything dangerous.
		b.WriteString(n.Text)

	default:
		r.writeChildren(b, n)
	}
}

func (r *HTMLRenderer) writeChildren(b *strings.Builder, n *Node) {
	for _, c := range n.Children {
		r.writeNode(b, c)
	}
}

// writeCodeBlock highlights via chroma when the language tag is recognised,
// falling back to a verbatim <pre> block when the tag is blank or unknown.
func (r *HTMLRenderer) writeCodeBlock(b *strings.Builder, n *Node) {
	lexer := lexers.Get(n.Language)
	if n.Language == "" || lexer == nil {
		b.WriteString(`<pre class="verbatim"><code>`)
		b.WriteString(html.EscapeString(n.Code))
		b.WriteString("</code></pre>")
		return
	}

	style := styles.Get(r.style)
	if style == nil {
		style = styles.Fallback
	}

	iterator, err := lexer.Tokenise(nil, n.Code)
	if err != nil {
		// Highlighting failure is scoped to this block: verbatim fallback.
		b.WriteString(`<pre class="verbatim"><code>`)
		b.WriteString(html.EscapeString(n.Code))
		b.WriteString("</code></pre>")
		return
	}

	var highlighted strings.Builder
	if err := r.formatter.Format(&highlighted, style, iterator); err != nil {
		b.WriteString(`<pre class="verbatim"><code>`)
		b.WriteString(html.EscapeString(n.Code))
		b.WriteString("</code></pre>")
		return
	}
	b.WriteString(highlighted.String())
}
