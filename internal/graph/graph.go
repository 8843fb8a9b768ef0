/*
Copyright 2020 The Crossplane Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package graph holds the binding graph produced by the analyzer: one node
// per inspected module (or synthesized stub), linked by the outcome of
// binding simulation.
//
// Unlike a DAG, this graph tolerates cycles (cross-library
// back-references are a real thing modules do), so nodes are addressed by
// stable arena index rather than owning back-pointers, per Design Notes §9
// of SPEC_FULL.md.
package graph

import (
	"math"

	"github.com/lostromb/wayfinder/internal/module"
)

// Node is one module in the binding graph.
type Node struct {
	Data *module.Data
	// Errors accumulates down-grade and cross-framework violation messages
	// attached during binding (spec.md §4.5 "Post-binding error checks").
	Errors []string

	deps     []int
	incoming int
}

// Dependencies returns the nodes this node directly depends on, in the
// order they were bound.
func (n *Node) Dependencies(g *Graph) []*Node {
	out := make([]*Node, 0, len(n.deps))
	for _, idx := range n.deps {
		out = append(out, g.nodes[idx])
	}
	return out
}

// Outgoing returns the number of outbound dependency edges.
func (n *Node) Outgoing() int { return len(n.deps) }

// Incoming returns the number of inbound dependency edges.
func (n *Node) Incoming() int { return n.incoming }

// Weight is ln(incoming + outgoing + 1), per spec.md §3.
func (n *Node) Weight() float64 {
	return math.Log1p(float64(n.incoming + len(n.deps)))
}

// Graph is the set of nodes produced for one analysis run. Edges live
// inside nodes, addressed by arena index.
type Graph struct {
	nodes []*Node
	// byPath indexes real (non-stub) nodes by absolute file path, the
	// graph's node identity per spec.md §3.
	byPath map[string]int
	// byStub indexes stub nodes by the (binary name, effective version,
	// binary kind) triple spec.md §3 caps at one stub per combination.
	byStub map[stubKey]int
	// index maps a node to its arena position, used by AddEdge.
	index map[*Node]int
}

type stubKey struct {
	name    string
	version string
	kind    module.BinaryKind
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		byPath: map[string]int{},
		byStub: map[stubKey]int{},
		index:  map[*Node]int{},
	}
}

// Nodes returns every node in the graph, in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int { return len(g.nodes) }

// AddModule inserts a node for a real, file-backed module. It panics if a
// node for the same file path already exists; callers are expected to
// de-duplicate by path before calling (spec.md §3: "Exactly one GraphNode
// per inspected file").
func (g *Graph) AddModule(d *module.Data) *Node {
	if d.IsStub() {
		return g.AddStub(d)
	}
	if _, ok := g.byPath[d.FilePath]; ok {
		panic("graph: duplicate node for file path " + d.FilePath)
	}
	n := &Node{Data: d}
	idx := len(g.nodes)
	g.nodes = append(g.nodes, n)
	g.byPath[d.FilePath] = idx
	g.index[n] = idx
	return n
}

// GetModule returns the node for a real file path, if any.
func (g *Graph) GetModule(path string) (*Node, bool) {
	idx, ok := g.byPath[path]
	if !ok {
		return nil, false
	}
	return g.nodes[idx], true
}

// GetStub returns the stub node for a (name, version, kind) triple, if one
// has already been synthesized.
func (g *Graph) GetStub(name, version string, kind module.BinaryKind) (*Node, bool) {
	idx, ok := g.byStub[stubKey{name, version, kind}]
	if !ok {
		return nil, false
	}
	return g.nodes[idx], true
}

// AddStub inserts a new stub node. It does not check for an existing stub
// with the same key; callers should call GetStub first, per spec.md §4.5's
// "bind with empty codebase hint; reuse if one matches" step.
func (g *Graph) AddStub(d *module.Data) *Node {
	n := &Node{Data: d}
	idx := len(g.nodes)
	g.nodes = append(g.nodes, n)
	g.index[n] = idx

	g.byStub[stubKey{name: d.BinaryName, version: d.Version.String(), kind: d.Kind}] = idx
	return n
}

// AddEdge records a dependency from "from" to "to", incrementing both
// endpoints' edge counts. Edges are not deduplicated across repeated calls
// for distinct references resolving to the same target, matching the
// one-edge-per-reference semantics of spec.md §4.5 step 3.
func (g *Graph) AddEdge(from, to *Node) {
	toIdx, ok := g.index[to]
	if !ok {
		panic("graph: AddEdge target is not a member of this graph")
	}
	from.deps = append(from.deps, toIdx)
	to.incoming++
}

// SumOutgoing returns the sum of every node's outgoing edge count.
func (g *Graph) SumOutgoing() int {
	total := 0
	for _, n := range g.nodes {
		total += len(n.deps)
	}
	return total
}

// SumIncoming returns the sum of every node's incoming edge count.
func (g *Graph) SumIncoming() int {
	total := 0
	for _, n := range g.nodes {
		total += n.incoming
	}
	return total
}
