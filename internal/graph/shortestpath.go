package graph

import (
	"container/heap"
	"fmt"
	"math"
	"slices"
)

// routeWeight is the cost of traversing e for routing purposes: its free-flow
// travel time. Edges that cannot be traversed (zero speed limit) are skipped.
func routeWeight(e *Edge) (float64, bool) {
	w := e.MinTravelTime()
	if math.IsInf(w, 0) || math.IsNaN(w) {
		return 0, false
	}
	return w, true
}

// computeShortestPath runs Dijkstra from start, stopping once end is settled.
func (g *Graph) computeShortestPath(start, end NodeID) (PathInfo, bool) {
	dist := map[NodeID]float64{start: 0}
	prev := make(map[NodeID]*Edge)

	pq := &priorityQueue{{node: start, dist: 0}}
	heap.Init(pq)
	for pq.Len() > 0 {
		it := heap.Pop(pq).(pqItem)
		if it.node == end {
			break
		}
		if d, ok := dist[it.node]; ok && it.dist > d {
			continue
		}
		for _, e := range g.OutgoingEdges(it.node) {
			w, ok := routeWeight(e)
			if !ok {
				continue
			}
			nd := it.dist + w
			if d, ok := dist[e.To]; !ok || nd < d {
				dist[e.To] = nd
				prev[e.To] = e
				heap.Push(pq, pqItem{node: e.To, dist: nd})
			}
		}
	}

	d, ok := dist[end]
	if !ok {
		return PathInfo{}, false
	}
	route := []NodeID{end}
	var edges []EdgeID
	for n := end; n != start; {
		e := prev[n]
		edges = append(edges, e.ID)
		n = e.From
		route = append(route, n)
	}
	slices.Reverse(route)
	slices.Reverse(edges)
	return PathInfo{ID: pathKey(start, end), Route: route, Edges: edges, TravelTime: d}, true
}

// GetShortestPath returns the fastest free-flow path between start and end, using a cache.
// Returns an error if either node is unknown or no path exists.
func (g *Graph) GetShortestPath(start, end NodeID) (PathInfo, error) {
	if _, ok := g.nodeMap[start]; !ok {
		return PathInfo{}, fmt.Errorf("node %q not found", start)
	}
	if _, ok := g.nodeMap[end]; !ok {
		return PathInfo{}, fmt.Errorf("node %q not found", end)
	}
	if start == end {
		return PathInfo{ID: pathKey(start, end), Route: []NodeID{start}}, nil
	}
	key := pathKey(start, end)
	if p, ok := g.pathCache[key]; ok {
		return p, nil
	}
	p, ok := g.computeShortestPath(start, end)
	if !ok {
		return PathInfo{}, fmt.Errorf("no path from %q to %q", start, end)
	}
	g.pathCache[key] = p
	return p, nil
}

// RouteEdges resolves the fastest free-flow path between two nodes into edges.
func (g *Graph) RouteEdges(start, end NodeID) ([]*Edge, error) {
	p, err := g.GetShortestPath(start, end)
	if err != nil {
		return nil, err
	}
	if len(p.Edges) == 0 {
		return nil, fmt.Errorf("no edges on path from %q to %q", start, end)
	}
	out := make([]*Edge, len(p.Edges))
	for i, id := range p.Edges {
		out[i] = g.edgeMap[id]
	}
	return out, nil
}

// Priority queue for Dijkstra
type pqItem struct {
	node NodeID
	dist float64
}

type priorityQueue []pqItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].dist < pq[j].dist }
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(pqItem)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}
