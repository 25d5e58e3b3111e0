// Package render converts raw markdown text into a displayable document
// tree, dispatching fenced code blocks to either the syntax highlighter or
// the diagram sub-renderer.
//
// PIPELINE SHAPE:
//
//	source text → goldmark AST (GitHub-flavored grammar) → Node tree →
//	sanitized HTML
//
// The Node tree is the pipeline's own taxonomy, independent of goldmark's
// AST: it is what the editor layer walks, tests assert against, and the
// diagram renderer receives placeholders from. It is ephemeral — recomputed
// on every content change, never persisted.
package render

// Kind identifies what a Node is.
type Kind int

const (
	KindDocument Kind = iota
	// KindPlaceholder is the sole child of a document rendered from empty
	// source — an empty editor shows a placeholder, never an error.
	KindPlaceholder
	KindHeading
	KindParagraph
	KindText
	KindEmphasis // *italic*
	KindStrong   // **bold**
	KindCodeSpan // `inline code`
	KindLink
	KindImage
	KindList
	KindListItem
	KindBlockquote
	KindThematicBreak
	KindTable
	KindTableRow
	KindTableCell
	KindStrikethrough
	KindTaskCheckbox
	// KindCodeBlock is a fenced (or indented) code block destined for the
	// syntax highlighter. Language may be empty → verbatim rendering.
	KindCodeBlock
	// KindDiagram is a fenced block whose language tag named the diagram
	// keyword. It carries the raw block text and a freshly generated
	// identifier for the asynchronous diagram sub-renderer to resolve.
	KindDiagram
	KindHTML // raw HTML passed through (and later sanitized)
)

func (k Kind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindPlaceholder:
		return "placeholder"
	case KindHeading:
		return "heading"
	case KindParagraph:
		return "paragraph"
	case KindText:
		return "text"
	case KindEmphasis:
		return "emphasis"
	case KindStrong:
		return "strong"
	case KindCodeSpan:
		return "code-span"
	case KindLink:
		return "link"
	case KindImage:
		return "image"
	case KindList:
		return "list"
	case KindListItem:
		return "list-item"
	case KindBlockquote:
		return "blockquote"
	case KindThematicBreak:
		return "thematic-break"
	case KindTable:
		return "table"
	case KindTableRow:
		return "table-row"
	case KindTableCell:
		return "table-cell"
	case KindStrikethrough:
		return "strikethrough"
	case KindTaskCheckbox:
		return "task-checkbox"
	case KindCodeBlock:
		return "code-block"
	case KindDiagram:
		return "diagram"
	case KindHTML:
		return "html"
	default:
		return "unknown"
	}
}

// Node is one node of the parsed document. Only the fields relevant to its
// Kind are populated.
type Node struct {
	Kind     Kind
	Children []*Node

	Text  string // KindText, KindCodeSpan, KindHTML
	Level int    // KindHeading: 1-6

	Ordered bool // KindList
	Start   int  // KindList: starting number of an ordered list

	Destination string // KindLink, KindImage
	Title       string // KindLink, KindImage

	Checked bool // KindTaskCheckbox
	IsHead  bool // KindTableRow/KindTableCell: part of the header

	Language string // KindCodeBlock: the fence's language tag, may be ""
	Code     string // KindCodeBlock, KindDiagram: raw block text

	DiagramID string // KindDiagram: fresh per-mount identifier
}

// AppendChild adds c to n's children.
func (n *Node) AppendChild(c *Node) {
	n.Children = append(n.Children, c)
}

// Walk calls fn for n and every descendant, depth-first. Returning false
// stops the walk below that node.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Diagrams returns every diagram node in the document, in source order.
// The editor hands these to the diagram renderer after each re-parse.
func (n *Node) Diagrams() []*Node {
	var out []*Node
	n.Walk(func(c *Node) bool {
		if c.Kind == KindDiagram {
			out = append(out, c)
		}
		return true
	})
	return out
}
