package neoquery

import (
	"maps"
	"slices"
)

// GraphNode is the plain form of a graph node.
type GraphNode struct {
	// Identity is the node's element id as assigned by the database.
	Identity string `json:"identity"`

	// Labels lists the node's labels in the order the database reports them.
	Labels []string `json:"labels"`

	// Properties holds the node's properties, already transformed.
	Properties map[string]any `json:"properties"`
}

// Relationship is the plain form of a graph relationship.
type Relationship struct {
	// Identity is the relationship's element id.
	Identity string `json:"identity"`

	// Start is the element id of the node the relationship starts at.
	Start string `json:"start"`

	// End is the element id of the node the relationship ends at.
	End string `json:"end"`

	// Type is the relationship type, e.g. "WROTE".
	Type string `json:"type"`

	// Properties holds the relationship's properties, already transformed.
	Properties map[string]any `json:"properties"`
}

// GraphResult is a de-duplicated set of nodes and relationships, the shape
// most graph visualization front ends consume.
type GraphResult struct {
	Nodes         []GraphNode    `json:"nodes"`
	Relationships []Relationship `json:"relationships"`
}

// CollectGraph gathers every node and relationship found in rows, at any
// nesting depth and inside paths. Each element appears once, in first-seen
// order; columns and map keys are visited alphabetically.
func CollectGraph(rows []Row) *GraphResult {
	c := graphCollector{
		graph:     &GraphResult{Nodes: []GraphNode{}, Relationships: []Relationship{}},
		seenNodes: make(map[string]bool),
		seenRels:  make(map[string]bool),
	}
	for _, row := range rows {
		for _, key := range sortedKeys(row) {
			c.visit(row[key])
		}
	}
	return c.graph
}

type graphCollector struct {
	graph     *GraphResult
	seenNodes map[string]bool
	seenRels  map[string]bool
}

func (c *graphCollector) visit(value any) {
	switch v := value.(type) {
	case GraphNode:
		if !c.seenNodes[v.Identity] {
			c.seenNodes[v.Identity] = true
			c.graph.Nodes = append(c.graph.Nodes, v)
		}
	case Relationship:
		if !c.seenRels[v.Identity] {
			c.seenRels[v.Identity] = true
			c.graph.Relationships = append(c.graph.Relationships, v)
		}
	case []any:
		for _, item := range v {
			c.visit(item)
		}
	case map[string]any:
		for _, key := range sortedKeys(v) {
			c.visit(v[key])
		}
	}
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	return slices.Sorted(maps.Keys(m))
}
