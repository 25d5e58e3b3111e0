package render

import (
	"bytes"
	"strings"

	"github.com/rs/xid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// DiagramKeyword is the reserved fence language tag that routes a code
// block to the diagram sub-renderer instead of the syntax highlighter.
const DiagramKeyword = "mermaid"

// Pipeline turns markdown source into a Node tree and HTML.
// Render is pure and synchronous; diagram blocks come back as placeholder
// nodes to be resolved asynchronously by the diagram package.
type Pipeline struct {
	md    goldmark.Markdown
	newID func() string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithIDGenerator overrides the diagram identifier generator.
// Tests use this for deterministic IDs.
func WithIDGenerator(fn func() string) Option {
	return func(p *Pipeline) { p.newID = fn }
}

// New creates a Pipeline with the GitHub-flavored grammar: tables,
// task-list items and strikethrough parse in addition to the standard
// block/inline syntax.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		md:    goldmark.New(goldmark.WithExtensions(extension.GFM)),
		newID: func() string { return xid.New().String() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Render parses source into a document tree. It never fails: malformed
// constructs degrade to literal text (the grammar's fallback), an
// unterminated fence extends to end of input, and empty source yields a
// document holding a single placeholder node.
func (p *Pipeline) Render(source string) *Node {
	doc := &Node{Kind: KindDocument}

	if strings.TrimSpace(source) == "" {
		doc.AppendChild(&Node{Kind: KindPlaceholder})
		return doc
	}

	src := []byte(source)
	root := p.md.Parser().Parse(text.NewReader(src))
	for child := root.FirstChild(); child != nil; child = child.NextSibling() {
		if n := p.convert(child, src); n != nil {
			doc.AppendChild(n)
		}
	}

	if len(doc.Children) == 0 {
		doc.AppendChild(&Node{Kind: KindPlaceholder})
	}
	return doc
}

// convert maps one goldmark AST node (and its subtree) onto the pipeline's
// taxonomy. Unknown node types flatten to their text content rather than
// being dropped.
func (p *Pipeline) convert(n ast.Node, source []byte) *Node {
	switch v := n.(type) {
	case *ast.Heading:
		return p.withChildren(&Node{Kind: KindHeading, Level: v.Level}, n, source)

	case *ast.Paragraph:
		return p.withChildren(&Node{Kind: KindParagraph}, n, source)

	case *ast.TextBlock:
		// Tight list items wrap their content in a TextBlock instead of a
		// Paragraph; flatten it so both list styles produce the same tree.
		return p.withChildren(&Node{Kind: KindParagraph}, n, source)

	case *ast.Text:
		txt := string(v.Segment.Value(source))
		if v.SoftLineBreak() || v.HardLineBreak() {
			txt += "\n"
		}
		return &Node{Kind: KindText, Text: txt}

	case *ast.String:
		return &Node{Kind: KindText, Text: string(v.Value)}

	case *ast.Emphasis:
		kind := KindEmphasis
		if v.Level >= 2 {
			kind = KindStrong
		}
		return p.withChildren(&Node{Kind: kind}, n, source)

	case *ast.CodeSpan:
		return &Node{Kind: KindCodeSpan, Text: textOf(n, source)}

	case *ast.Link:
		return p.withChildren(&Node{
			Kind:        KindLink,
			Destination: string(v.Destination),
			Title:       string(v.Title),
		}, n, source)

	case *ast.AutoLink:
		url := string(v.URL(source))
		link := &Node{Kind: KindLink, Destination: url}
		link.AppendChild(&Node{Kind: KindText, Text: url})
		return link

	case *ast.Image:
		return &Node{
			Kind:        KindImage,
			Destination: string(v.Destination),
			Title:       string(v.Title),
			Text:        textOf(n, source),
		}

	case *ast.List:
		list := &Node{Kind: KindList, Ordered: v.IsOrdered(), Start: v.Start}
		return p.withChildren(list, n, source)

	case *ast.ListItem:
		return p.withChildren(&Node{Kind: KindListItem}, n, source)

	case *ast.Blockquote:
		return p.withChildren(&Node{Kind: KindBlockquote}, n, source)

	case *ast.ThematicBreak:
		return &Node{Kind: KindThematicBreak}

	case *ast.FencedCodeBlock:
		return p.convertFence(v, source)

	case *ast.CodeBlock:
		// Indented code block: no language tag, always verbatim.
		return &Node{Kind: KindCodeBlock, Code: blockText(v, source)}

	case *ast.HTMLBlock:
		return &Node{Kind: KindHTML, Text: blockText(v, source)}

	case *ast.RawHTML:
		var b strings.Builder
		for i := 0; i < v.Segments.Len(); i++ {
			seg := v.Segments.At(i)
			b.Write(seg.Value(source))
		}
		return &Node{Kind: KindHTML, Text: b.String()}

	case *east.Table:
		return p.withChildren(&Node{Kind: KindTable}, n, source)

	case *east.TableHeader:
		row := p.withChildren(&Node{Kind: KindTableRow, IsHead: true}, n, source)
		for _, cell := range row.Children {
			cell.IsHead = true
		}
		return row

	case *east.TableRow:
		return p.withChildren(&Node{Kind: KindTableRow}, n, source)

	case *east.TableCell:
		return p.withChildren(&Node{Kind: KindTableCell}, n, source)

	case *east.Strikethrough:
		return p.withChildren(&Node{Kind: KindStrikethrough}, n, source)

	case *east.TaskCheckBox:
		return &Node{Kind: KindTaskCheckbox, Checked: v.IsChecked}

	default:
		// Anything we don't model explicitly degrades to its literal text.
		if txt := textOf(n, source); txt != "" {
			return &Node{Kind: KindText, Text: txt}
		}
		return nil
	}
}

// convertFence dispatches a fenced code block: the diagram keyword yields a
// placeholder node with a fresh identifier; anything else (including a
// blank tag) yields a syntax-highlight node carrying the tag.
func (p *Pipeline) convertFence(v *ast.FencedCodeBlock, source []byte) *Node {
	lang := string(v.Language(source))
	code := blockText(v, source)

	if strings.EqualFold(lang, DiagramKeyword) {
		return &Node{
			Kind:      KindDiagram,
			Code:      code,
			DiagramID: p.newID(),
		}
	}
	return &Node{Kind: KindCodeBlock, Language: lang, Code: code}
}

// withChildren converts n's AST children and appends them to node.
func (p *Pipeline) withChildren(node *Node, n ast.Node, source []byte) *Node {
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		if c := p.convert(child, source); c != nil {
			node.AppendChild(c)
		}
	}
	return node
}

// blockText joins the source lines of a block node.
func blockText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
	return buf.String()
}

// textOf flattens a subtree to its literal text.
func textOf(n ast.Node, source []byte) string {
	var b strings.Builder
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch v := child.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(source))
		case *ast.String:
			b.Write(v.Value)
		default:
			b.WriteString(textOf(child, source))
		}
	}
	return b.String()
}
