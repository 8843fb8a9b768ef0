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

package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/emicklei/dot"

	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/lostromb/wayfinder/internal/graph"
)

const errEmptyGraph = "graph is empty"

// DotPrinter renders a graph in Graphviz DOT format.
type DotPrinter struct{}

var _ Printer = &DotPrinter{}

type dotLabel struct {
	name     string
	kind     string
	version  string
	platform string
	status   string
}

func (l *dotLabel) String() string {
	out := []string{
		"Name: " + l.name,
		"Kind: " + l.kind,
		"Version: " + l.version,
		"Platform: " + l.platform,
	}
	if l.status != "" {
		out = append(out, "Status: "+l.status)
	}
	return strings.Join(out, "\n") + "\n"
}

// Print implements Printer.
func (p *DotPrinter) Print(w io.Writer, g *graph.Graph) error {
	dg := dot.NewGraph(dot.Directed)

	nodes := g.Nodes()
	if len(nodes) == 0 {
		return errors.New(errEmptyGraph)
	}

	dotNodes := make([]dot.Node, len(nodes))
	index := make(map[*graph.Node]int, len(nodes))
	for i, n := range nodes {
		index[n] = i
	}

	for i, n := range nodes {
		d := n.Data
		name := d.BinaryName
		if d.IsStub() {
			name += " (stub)"
		}

		status := ""
		if d.LoaderError != "" {
			status = d.LoaderError
		} else if len(n.Errors) > 0 {
			status = strings.Join(n.Errors, "; ")
		}

		label := &dotLabel{
			name:     name,
			kind:     d.Kind.String(),
			version:  d.Version.String(),
			platform: d.Platform.String(),
			status:   status,
		}

		dn := dg.Node(fmt.Sprintf("%d", i))
		dn.Label(label.String())
		dn.Attr("penwidth", "2")
		if status != "" {
			dn.Attr("color", "red")
		}
		dotNodes[i] = dn
	}

	for i, n := range nodes {
		for _, dep := range n.Dependencies(g) {
			dg.Edge(dotNodes[i], dotNodes[index[dep]])
		}
	}

	dg.Write(w)
	return nil
}
