// Package graph provides the road network arena (intersections and directed
// road segments) and free-flow route computation for the simulation.
//
// The Graph owns every Node and Edge. Edges refer to their endpoints by id and
// nodes keep the ids of their incident edges, so all cross references are
// resolved through Graph lookups.
package graph

import (
	"errors"
	"fmt"
	"slices"

	"github.com/paulmach/orb"
)

// NodeID, EdgeID, PathID are string aliases used as identifiers.
type (
	NodeID = string
	EdgeID = string
	PathID = string
)

// ErrInvalidValue is returned for negative loads, counts or travel times and NaN values.
var ErrInvalidValue = errors.New("invalid value")

// Coordinate is a 2D position in metres.
type Coordinate struct {
	X float64 `json:"x" yaml:"x"` // metres
	Y float64 `json:"y" yaml:"y"` // metres
}

// NodeData is the serialisable input representation of a node.
type NodeData struct {
	ID  NodeID     `json:"node_id" yaml:"node_id"`
	Loc Coordinate `json:"loc" yaml:"loc"`
}

// Node is an intersection of the road network.
type Node struct {
	ID       NodeID
	Loc      orb.Point
	outgoing map[EdgeID]struct{}
	incoming map[EdgeID]struct{}
}

// NewNode creates a node with no incident edges.
func NewNode(id NodeID, x, y float64) *Node {
	return &Node{
		ID:       id,
		Loc:      orb.Point{x, y},
		outgoing: make(map[EdgeID]struct{}),
		incoming: make(map[EdgeID]struct{}),
	}
}

// X is the node abscissa in metres.
func (n *Node) X() float64 { return n.Loc.X() }

// Y is the node ordinate in metres.
func (n *Node) Y() float64 { return n.Loc.Y() }

// OutgoingEdges returns the sorted ids of the edges leaving n.
func (n *Node) OutgoingEdges() []EdgeID { return sortedKeys(n.outgoing) }

// IncomingEdges returns the sorted ids of the edges entering n.
func (n *Node) IncomingEdges() []EdgeID { return sortedKeys(n.incoming) }

func sortedKeys(m map[EdgeID]struct{}) []EdgeID {
	ids := make([]EdgeID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// PathInfo holds the result of a shortest-path computation.
type PathInfo struct {
	ID         PathID
	Route      []NodeID // ordered node IDs from start to end
	Edges      []EdgeID // ordered edge IDs from start to end
	TravelTime float64  // free-flow travel time in seconds
}

// Graph is a directed road network with cached free-flow route computation.
type Graph struct {
	nodeOrder []NodeID
	edgeOrder []EdgeID
	nodeMap   map[NodeID]*Node
	edgeMap   map[EdgeID]*Edge
	bounds    orb.Bound
	// Route cache; cleared whenever the graph topology changes.
	pathCache map[PathID]PathInfo
}

// NewGraph returns an empty graph whose bounds start at the origin.
func NewGraph() *Graph {
	return &Graph{
		nodeMap:   make(map[NodeID]*Node),
		edgeMap:   make(map[EdgeID]*Edge),
		bounds:    orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{0, 0}},
		pathCache: make(map[PathID]PathInfo),
	}
}

// AddNode adds a node to the graph. Returns an error if the node is nil or its
// ID already exists.
func (g *Graph) AddNode(n *Node) error {
	if n == nil {
		return errors.New("nil node")
	}
	if _, exists := g.nodeMap[n.ID]; exists {
		return fmt.Errorf("node %q already exists", n.ID)
	}
	g.nodeOrder = append(g.nodeOrder, n.ID)
	g.nodeMap[n.ID] = n
	g.bounds = g.bounds.Extend(n.Loc)
	g.pathCache = make(map[PathID]PathInfo)
	return nil
}

// AddEdge adds a directed edge to the graph and registers it on both endpoint
// nodes. Returns an error if the edge ID already exists or either endpoint is missing.
func (g *Graph) AddEdge(e *Edge) error {
	if e == nil {
		return errors.New("nil edge")
	}
	if _, exists := g.edgeMap[e.ID]; exists {
		return fmt.Errorf("edge %q already exists", e.ID)
	}
	from, ok := g.nodeMap[e.From]
	if !ok {
		return fmt.Errorf("edge %q: source node %q not found", e.ID, e.From)
	}
	to, ok := g.nodeMap[e.To]
	if !ok {
		return fmt.Errorf("edge %q: target node %q not found", e.ID, e.To)
	}
	g.edgeOrder = append(g.edgeOrder, e.ID)
	g.edgeMap[e.ID] = e
	from.outgoing[e.ID] = struct{}{}
	to.incoming[e.ID] = struct{}{}
	g.pathCache = make(map[PathID]PathInfo)
	return nil
}

// Node looks up a node by its ID.
func (g *Graph) Node(id NodeID) (*Node, bool) {
	n, ok := g.nodeMap[id]
	return n, ok
}

// Edge looks up an edge by its ID.
func (g *Graph) Edge(id EdgeID) (*Edge, bool) {
	e, ok := g.edgeMap[id]
	return e, ok
}

// GetEdgeByID looks up an edge by its ID, returning an error if it is missing.
func (g *Graph) GetEdgeByID(id EdgeID) (*Edge, error) {
	e, ok := g.edgeMap[id]
	if !ok {
		return nil, fmt.Errorf("edge %q not found", id)
	}
	return e, nil
}

// Nodes returns every node in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.nodeOrder))
	for i, id := range g.nodeOrder {
		out[i] = g.nodeMap[id]
	}
	return out
}

// Edges returns every edge in insertion order.
func (g *Graph) Edges() []*Edge {
	out := make([]*Edge, len(g.edgeOrder))
	for i, id := range g.edgeOrder {
		out[i] = g.edgeMap[id]
	}
	return out
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodeMap) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edgeMap) }

// IsEmpty reports whether the graph has neither nodes nor edges.
func (g *Graph) IsEmpty() bool { return len(g.nodeMap) == 0 && len(g.edgeMap) == 0 }

// IncomingEdges returns the edges feeding into node id, sorted by edge ID.
// Unknown nodes have no incoming edges.
func (g *Graph) IncomingEdges(id NodeID) []*Edge {
	n, ok := g.nodeMap[id]
	if !ok {
		return nil
	}
	ids := n.IncomingEdges()
	out := make([]*Edge, 0, len(ids))
	for _, eid := range ids {
		out = append(out, g.edgeMap[eid])
	}
	return out
}

// OutgoingEdges returns the edges leaving node id, sorted by edge ID.
func (g *Graph) OutgoingEdges(id NodeID) []*Edge {
	n, ok := g.nodeMap[id]
	if !ok {
		return nil
	}
	ids := n.OutgoingEdges()
	out := make([]*Edge, 0, len(ids))
	for _, eid := range ids {
		out = append(out, g.edgeMap[eid])
	}
	return out
}

// Bounds returns the bounding box of all node coordinates, always including the origin.
func (g *Graph) Bounds() orb.Bound { return g.bounds }

// MapWidth is the horizontal extent of the node bounds.
func (g *Graph) MapWidth() float64 { return g.bounds.Max.X() - g.bounds.Min.X() }

// MapHeight is the vertical extent of the node bounds.
func (g *Graph) MapHeight() float64 { return g.bounds.Max.Y() - g.bounds.Min.Y() }

// Clear removes every node and edge and resets the bounds.
func (g *Graph) Clear() {
	*g = *NewGraph()
}

// pathKey returns a canonical string key for a start→end pair.
func pathKey(start, end NodeID) PathID { return start + "->" + end }
