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
	"encoding/json"
	"fmt"
	"io"

	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/lostromb/wayfinder/internal/graph"
	"github.com/lostromb/wayfinder/internal/module"
)

const errCannotMarshalJSON = "cannot marshal graph as JSON"

// JSONPrinter renders a graph as a JSON document: a flat list of nodes
// plus their outgoing edges by index, since module.Data itself has no
// stable identity suitable for a JSON object key.
type JSONPrinter struct{}

var _ Printer = &JSONPrinter{}

type jsonNode struct {
	Index    int           `json:"index"`
	Data     *module.Data  `json:"data"`
	Errors   []string      `json:"errors,omitempty"`
	Outgoing []int         `json:"outgoing"`
	Incoming int           `json:"incoming"`
	Weight   float64       `json:"weight"`
}

type jsonGraph struct {
	Nodes []jsonNode `json:"nodes"`
}

// Print implements Printer.
func (p *JSONPrinter) Print(w io.Writer, g *graph.Graph) error {
	nodes := g.Nodes()
	index := make(map[*graph.Node]int, len(nodes))
	for i, n := range nodes {
		index[n] = i
	}

	out := jsonGraph{Nodes: make([]jsonNode, len(nodes))}
	for i, n := range nodes {
		outgoing := make([]int, 0, n.Outgoing())
		for _, dep := range n.Dependencies(g) {
			outgoing = append(outgoing, index[dep])
		}
		out.Nodes[i] = jsonNode{
			Index:    i,
			Data:     n.Data,
			Errors:   n.Errors,
			Outgoing: outgoing,
			Incoming: n.Incoming(),
			Weight:   n.Weight(),
		}
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return errors.Wrap(err, errCannotMarshalJSON)
	}
	_, err = fmt.Fprintln(w, string(encoded))
	return err
}
