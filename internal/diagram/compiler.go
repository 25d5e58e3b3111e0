// Package diagram compiles fenced diagram sources into standalone SVG
// documents and tracks the compile lifecycle of every diagram mount in
// the rendered page.
//
// The compiler understands the flowchart dialect used in article
// bodies: a direction header, node declarations with a shape hint, and
// labelled edges. Anything outside that subset fails with a render
// error carried on the mount instead of breaking the page.
package diagram

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"

	"github.com/sakif/inkpad/internal/apperror"
)

// Compiler turns diagram source text into an SVG document.
type Compiler interface {
	Compile(ctx context.Context, source string) (string, error)
}

// shape is the visual treatment of a node, picked by its bracket style.
type shape int

const (
	shapeRect    shape = iota // A[label]
	shapeRounded              // A(label)
	shapeDiamond              // A{label}
)

type node struct {
	id    string
	label string
	shape shape
	layer int
	index int // position within its layer
}

type edge struct {
	from, to string
	label    string
	arrow    bool // --> draws an arrowhead, --- does not
}

type graph struct {
	vertical bool // TD/TB lay layers top to bottom, LR left to right
	nodes    map[string]*node
	order    []string // declaration order, keeps layout stable
	edges    []edge
}

// FlowchartCompiler compiles the flowchart dialect. It is stateless and
// safe for concurrent use.
type FlowchartCompiler struct{}

func NewFlowchartCompiler() *FlowchartCompiler {
	return &FlowchartCompiler{}
}

var (
	headerRe   = regexp.MustCompile(`^(?:graph|flowchart)(?:\s+(TD|TB|LR|RL|BT))?\s*$`)
	endpointRe = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_]*)(?:\[([^\]]*)\]|\(([^)]*)\)|\{([^}]*)\})?$`)
	arrowRe    = regexp.MustCompile(`\s*(-->|---)\s*(?:\|([^|]*)\|\s*)?`)
)

// Compile parses the source and lays the graph out into an SVG string.
func (c *FlowchartCompiler) Compile(ctx context.Context, source string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	g, err := parse(source)
	if err != nil {
		return "", err
	}
	if len(g.order) == 0 {
		return "", apperror.Render("diagram has no nodes")
	}

	layout(g)
	return emitSVG(g), nil
}

func parse(source string) (*graph, error) {
	g := &graph{vertical: true, nodes: make(map[string]*node)}
	sawHeader := false

	for lineNo, raw := range strings.Split(source, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "%%") {
			continue
		}

		if !sawHeader {
			m := headerRe.FindStringSubmatch(line)
			if m == nil {
				return nil, apperror.Render(fmt.Sprintf("line %d: expected a graph or flowchart header, got %q", lineNo+1, line))
			}
			switch m[1] {
			case "LR", "RL":
				g.vertical = false
			}
			sawHeader = true
			continue
		}

		if err := parseStatement(g, line, lineNo+1); err != nil {
			return nil, err
		}
	}

	if !sawHeader {
		return nil, apperror.Render("diagram is empty")
	}
	return g, nil
}

// parseStatement handles one node declaration or edge chain. Chains
// like A --> B --> C declare every hop in one line.
func parseStatement(g *graph, line string, lineNo int) error {
	arrows := arrowRe.FindAllStringSubmatchIndex(line, -1)

	if len(arrows) == 0 {
		if _, err := declare(g, line, lineNo); err != nil {
			return err
		}
		return nil
	}

	prevEnd := 0
	var prev string
	for i, m := range arrows {
		left := line[prevEnd:m[0]]
		if i == 0 {
			id, err := declare(g, left, lineNo)
			if err != nil {
				return err
			}
			prev = id
		} else if strings.TrimSpace(left) != "" {
			return apperror.Render(fmt.Sprintf("line %d: unexpected text %q between edges", lineNo, left))
		}

		token := line[m[2]:m[3]]
		label := ""
		if m[4] >= 0 {
			label = strings.TrimSpace(line[m[4]:m[5]])
		}

		// The right endpoint runs to the next arrow, or end of line.
		rightEnd := len(line)
		if i+1 < len(arrows) {
			rightEnd = arrows[i+1][0]
		}
		id, err := declare(g, line[m[1]:rightEnd], lineNo)
		if err != nil {
			return err
		}

		g.edges = append(g.edges, edge{from: prev, to: id, label: label, arrow: token == "-->"})
		prev = id
		prevEnd = rightEnd
	}
	return nil
}

// declare registers an endpoint, reusing the node when the id was seen
// before. A later declaration with a bracket label overrides the bare id.
func declare(g *graph, token string, lineNo int) (string, error) {
	token = strings.TrimSpace(token)
	m := endpointRe.FindStringSubmatch(token)
	if m == nil {
		return "", apperror.Render(fmt.Sprintf("line %d: cannot parse node %q", lineNo, token))
	}

	id := m[1]
	n, ok := g.nodes[id]
	if !ok {
		n = &node{id: id, label: id, shape: shapeRect}
		g.nodes[id] = n
		g.order = append(g.order, id)
	}

	switch {
	case m[2] != "":
		n.label, n.shape = m[2], shapeRect
	case m[3] != "":
		n.label, n.shape = m[3], shapeRounded
	case m[4] != "":
		n.label, n.shape = m[4], shapeDiamond
	}
	return id, nil
}

// layout assigns each node a layer via longest-path from the roots and
// an index within the layer. Cycles are broken by never revisiting a
// node with a smaller or equal layer.
func layout(g *graph) {
	children := make(map[string][]string)
	indegree := make(map[string]int)
	for _, e := range g.edges {
		children[e.from] = append(children[e.from], e.to)
		indegree[e.to]++
	}

	queue := make([]string, 0, len(g.order))
	for _, id := range g.order {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	// A pure cycle has no roots; seed with the first declared node.
	if len(queue) == 0 && len(g.order) > 0 {
		queue = append(queue, g.order[0])
	}

	visited := make(map[string]bool)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		for _, child := range children[id] {
			if visited[child] || child == id {
				continue // back edge, keep the existing layer
			}
			if g.nodes[child].layer <= g.nodes[id].layer {
				g.nodes[child].layer = g.nodes[id].layer + 1
			}
			queue = append(queue, child)
		}
	}

	perLayer := make(map[int]int)
	for _, id := range g.order {
		n := g.nodes[id]
		n.index = perLayer[n.layer]
		perLayer[n.layer]++
	}
}

const (
	nodeHeight   = 36.0
	layerSpacing = 90.0
	siblingGap   = 30.0
	charWidth    = 8.0
	labelPad     = 24.0
)

func nodeWidth(n *node) float64 {
	w := float64(len(n.label))*charWidth + labelPad
	if w < 60 {
		w = 60
	}
	return w
}

// center returns the midpoint of a node in the chosen orientation.
func center(g *graph, n *node, layerOffsets map[int][]float64) (float64, float64) {
	along := float64(n.layer)*layerSpacing + nodeHeight/2
	across := layerOffsets[n.layer][n.index]
	if g.vertical {
		return across, along
	}
	return along, across
}

func emitSVG(g *graph) string {
	// Pack each layer's nodes side by side, then center the layers on
	// a common axis so narrow layers do not hug the left edge.
	layerWidths := make(map[int]float64)
	layerNodes := make(map[int][]*node)
	maxLayer := 0
	for _, id := range g.order {
		n := g.nodes[id]
		layerNodes[n.layer] = append(layerNodes[n.layer], n)
		if n.layer > maxLayer {
			maxLayer = n.layer
		}
	}
	widest := 0.0
	for layer, ns := range layerNodes {
		sort.Slice(ns, func(i, j int) bool { return ns[i].index < ns[j].index })
		total := 0.0
		for _, n := range ns {
			total += nodeWidth(n)
		}
		total += siblingGap * float64(len(ns)-1)
		layerWidths[layer] = total
		if total > widest {
			widest = total
		}
	}

	layerOffsets := make(map[int][]float64)
	for layer, ns := range layerNodes {
		cursor := (widest - layerWidths[layer]) / 2
		for _, n := range ns {
			w := nodeWidth(n)
			layerOffsets[layer] = append(layerOffsets[layer], cursor+w/2)
			cursor += w + siblingGap
		}
	}

	along := float64(maxLayer)*layerSpacing + nodeHeight
	var width, height float64
	if g.vertical {
		width, height = widest, along
	} else {
		width, height = along, widest
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="-10 -10 %.0f %.0f" class="flowchart">`,
		width+20, height+20)
	b.WriteString(`<defs><marker id="arrow" viewBox="0 0 10 10" refX="9" refY="5" markerWidth="7" markerHeight="7" orient="auto-start-reverse"><path d="M 0 0 L 10 5 L 0 10 z"/></marker></defs>`)

	for _, e := range g.edges {
		fx, fy := center(g, g.nodes[e.from], layerOffsets)
		tx, ty := center(g, g.nodes[e.to], layerOffsets)
		marker := ""
		if e.arrow {
			marker = ` marker-end="url(#arrow)"`
		}
		fmt.Fprintf(&b, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" class="edge"%s/>`, fx, fy, tx, ty, marker)
		if e.label != "" {
			fmt.Fprintf(&b, `<text x="%.1f" y="%.1f" text-anchor="middle" class="edge-label">%s</text>`,
				(fx+tx)/2, (fy+ty)/2-4, html.EscapeString(e.label))
		}
	}

	for _, id := range g.order {
		n := g.nodes[id]
		cx, cy := center(g, n, layerOffsets)
		w := nodeWidth(n)
		switch n.shape {
		case shapeRounded:
			fmt.Fprintf(&b, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" rx="18" class="node"/>`,
				cx-w/2, cy-nodeHeight/2, w, nodeHeight)
		case shapeDiamond:
			fmt.Fprintf(&b, `<polygon points="%.1f,%.1f %.1f,%.1f %.1f,%.1f %.1f,%.1f" class="node"/>`,
				cx, cy-nodeHeight/2-8, cx+w/2+8, cy, cx, cy+nodeHeight/2+8, cx-w/2-8, cy)
		default:
			fmt.Fprintf(&b, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" rx="3" class="node"/>`,
				cx-w/2, cy-nodeHeight/2, w, nodeHeight)
		}
		fmt.Fprintf(&b, `<text x="%.1f" y="%.1f" text-anchor="middle" dominant-baseline="middle" class="node-label">%s</text>`,
			cx, cy, html.EscapeString(n.label))
	}

	b.WriteString(`</svg>`)
	return b.String()
}
