package render

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectText flattens every text node under n, in order. Useful for
// asserting on content without caring how goldmark split the segments.
func collectText(n *Node) string {
	var b strings.Builder
	n.Walk(func(c *Node) bool {
		if c.Kind == KindText {
			b.WriteString(c.Text)
		}
		return true
	})
	return b.String()
}

func TestRenderBoldRoundTrip(t *testing.T) {
	doc := New().Render("**bold**")

	require.Len(t, doc.Children, 1)
	para := doc.Children[0]
	require.Equal(t, KindParagraph, para.Kind)

	// The paragraph's sole inline node is a bold span wrapping "bold".
	require.Len(t, para.Children, 1)
	strong := para.Children[0]
	assert.Equal(t, KindStrong, strong.Kind)
	assert.Equal(t, "bold", collectText(strong))
}

func TestRenderEmptySourceYieldsPlaceholder(t *testing.T) {
	for _, source := range []string{"", "   ", "\n\n"} {
		doc := New().Render(source)
		require.Len(t, doc.Children, 1, "source %q", source)
		assert.Equal(t, KindPlaceholder, doc.Children[0].Kind, "source %q", source)
	}
}

func TestFenceLanguageDispatch(t *testing.T) {
	pipeline := New(WithIDGenerator(func() string { return "test-id" }))

	tests := []struct {
		name     string
		source   string
		wantKind Kind
		wantLang string
	}{
		{
			name:     "diagram keyword yields a diagram placeholder",
			source:   "```mermaid\ngraph TD\nA-->B\n```",
			wantKind: KindDiagram,
		},
		{
			name:     "diagram keyword is case-insensitive",
			source:   "```Mermaid\ngraph TD\nA-->B\n```",
			wantKind: KindDiagram,
		},
		{
			name:     "known language yields a highlight node carrying the tag",
			source:   "```go\nfmt.Println(1)\n```",
			wantKind: KindCodeBlock,
			wantLang: "go",
		},
		{
			name:     "unknown language still carries the tag",
			source:   "```klingon\nqapla'\n```",
			wantKind: KindCodeBlock,
			wantLang: "klingon",
		},
		{
			name:     "blank tag yields an untagged verbatim node",
			source:   "```\nplain text\n```",
			wantKind: KindCodeBlock,
			wantLang: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := pipeline.Render(tt.source)
			require.Len(t, doc.Children, 1)
			block := doc.Children[0]
			assert.Equal(t, tt.wantKind, block.Kind)
			if tt.wantKind == KindCodeBlock {
				assert.Equal(t, tt.wantLang, block.Language)
			}
			if tt.wantKind == KindDiagram {
				assert.Equal(t, "test-id", block.DiagramID)
				assert.Contains(t, block.Code, "graph TD")
			}
		})
	}
}

func TestDiagramIdentifiersAreFreshPerBlock(t *testing.T) {
	seq := 0
	pipeline := New(WithIDGenerator(func() string {
		seq++
		return fmt.Sprintf("d%d", seq)
	}))

	doc := pipeline.Render("```mermaid\nA\n```\n\n```mermaid\nB\n```")
	diagrams := doc.Diagrams()
	require.Len(t, diagrams, 2)
	assert.NotEqual(t, diagrams[0].DiagramID, diagrams[1].DiagramID)
}

func TestUnterminatedFenceRunsToEndOfInput(t *testing.T) {
	doc := New().Render("```go\npackage main\n\nfunc main() {}")

	require.Len(t, doc.Children, 1)
	block := doc.Children[0]
	require.Equal(t, KindCodeBlock, block.Kind)
	assert.Equal(t, "go", block.Language)
	assert.Contains(t, block.Code, "func main() {}")
}

func TestMalformedLinkDegradesToLiteralText(t *testing.T) {
	doc := New().Render("before [text](oops after")

	require.Len(t, doc.Children, 1)
	para := doc.Children[0]
	assert.Equal(t, "before [text](oops after", collectText(para))

	// No link node anywhere in the tree.
	para.Walk(func(n *Node) bool {
		assert.NotEqual(t, KindLink, n.Kind)
		return true
	})
}

func TestWellFormedLink(t *testing.T) {
	doc := New().Render("[docs](https://example.com \"the title\")")

	var link *Node
	doc.Walk(func(n *Node) bool {
		if n.Kind == KindLink {
			link = n
		}
		return true
	})
	require.NotNil(t, link)
	assert.Equal(t, "https://example.com", link.Destination)
	assert.Equal(t, "the title", link.Title)
	assert.Equal(t, "docs", collectText(link))
}

func TestGitHubFlavoredExtensions(t *testing.T) {
	t.Run("table", func(t *testing.T) {
		doc := New().Render("| a | b |\n|---|---|\n| 1 | 2 |")
		var table *Node
		doc.Walk(func(n *Node) bool {
			if n.Kind == KindTable {
				table = n
			}
			return true
		})
		require.NotNil(t, table, "table did not parse")
		require.Len(t, table.Children, 2, "want header row + body row")
		header := table.Children[0]
		assert.True(t, header.IsHead)
		require.Len(t, header.Children, 2)
		assert.True(t, header.Children[0].IsHead)
	})

	t.Run("strikethrough", func(t *testing.T) {
		doc := New().Render("~~gone~~")
		var del *Node
		doc.Walk(func(n *Node) bool {
			if n.Kind == KindStrikethrough {
				del = n
			}
			return true
		})
		require.NotNil(t, del, "strikethrough did not parse")
		assert.Equal(t, "gone", collectText(del))
	})

	t.Run("task list", func(t *testing.T) {
		doc := New().Render("- [x] done\n- [ ] todo")
		var boxes []*Node
		doc.Walk(func(n *Node) bool {
			if n.Kind == KindTaskCheckbox {
				boxes = append(boxes, n)
			}
			return true
		})
		require.Len(t, boxes, 2, "task checkboxes did not parse")
		assert.True(t, boxes[0].Checked)
		assert.False(t, boxes[1].Checked)
	})
}

func TestHeadingLevels(t *testing.T) {
	doc := New().Render("# one\n\n###### six")
	require.Len(t, doc.Children, 2)
	assert.Equal(t, 1, doc.Children[0].Level)
	assert.Equal(t, 6, doc.Children[1].Level)
}

func TestHTMLRendererBasics(t *testing.T) {
	r := NewHTMLRenderer("")

	out := r.Render(New().Render("**bold** and *italic*"))
	assert.Contains(t, out, "<strong>bold</strong>")
	assert.Contains(t, out, "<em>italic</em>")
}

func TestHTMLRendererSanitizesScript(t *testing.T) {
	r := NewHTMLRenderer("")

	out := r.Render(New().Render("hello\n\n<script>alert(1)</script>"))
	assert.NotContains(t, out, "<script")
	assert.Contains(t, out, "hello")
}

func TestHTMLRendererVerbatimFallback(t *testing.T) {
	r := NewHTMLRenderer("")

	out := r.Render(New().Render("```klingon\nqapla'\n```"))
	assert.Contains(t, out, "verbatim")
	assert.Contains(t, out, "qapla&#39;")
}

func TestHTMLRendererDiagramPlaceholderSurvivesSanitization(t *testing.T) {
	pipeline := New(WithIDGenerator(func() string { return "d1" }))
	r := NewHTMLRenderer("")

	out := r.Render(pipeline.Render("```mermaid\ngraph TD\nA-->B\n```"))
	assert.Contains(t, out, `data-diagram-id="d1"`)
	// The raw diagram source must not leak into the document.
	assert.NotContains(t, out, "graph TD")
}

func TestHTMLRendererHighlightsKnownLanguage(t *testing.T) {
	r := NewHTMLRenderer("")

	out := r.Render(New().Render("```go\npackage main\n```"))
	// Chroma wraps highlighted output in a pre with the chroma class.
	assert.Contains(t, out, "chroma")
	assert.Contains(t, out, "package")
}

func TestHTMLRendererStyleSheetCoversEmittedClasses(t *testing.T) {
	r := NewHTMLRenderer("")

	css, err := r.StyleSheet()
	require.NoError(t, err)
	// Class-mode highlighting is useless without rules for the classes.
	assert.Contains(t, css, ".chroma")
}
