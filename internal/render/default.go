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
	"text/tabwriter"

	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/lostromb/wayfinder/internal/graph"
)

const (
	errWriteHeader    = "cannot write header"
	errWriteRow       = "cannot write row"
	errFlushTabWriter = "cannot flush tab writer"
)

// DefaultPrinter renders a graph as a tab-aligned table, one row per node.
type DefaultPrinter struct{}

var _ Printer = &DefaultPrinter{}

type defaultRow struct {
	name     string
	kind     string
	version  string
	platform string
	incoming string
	outgoing string
	status   string
}

func (r *defaultRow) String() string {
	return strings.Join([]string{
		r.name, r.kind, r.version, r.platform, r.incoming, r.outgoing, r.status,
	}, "\t") + "\t"
}

// Print implements Printer.
func (p *DefaultPrinter) Print(w io.Writer, g *graph.Graph) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	header := &defaultRow{
		name: "NAME", kind: "KIND", version: "VERSION", platform: "PLATFORM",
		incoming: "IN", outgoing: "OUT", status: "STATUS",
	}
	if _, err := fmt.Fprintln(tw, header.String()); err != nil {
		return errors.Wrap(err, errWriteHeader)
	}

	for _, n := range g.Nodes() {
		d := n.Data
		name := d.BinaryName
		if d.IsStub() {
			name += " (stub)"
		}

		status := "OK"
		if d.LoaderError != "" {
			status = "Error: " + d.LoaderError
		} else if len(n.Errors) > 0 {
			status = strings.Join(n.Errors, "; ")
		}

		row := &defaultRow{
			name:     name,
			kind:     d.Kind.String(),
			version:  d.Version.String(),
			platform: d.Platform.String(),
			incoming: fmt.Sprintf("%d", n.Incoming()),
			outgoing: fmt.Sprintf("%d", n.Outgoing()),
			status:   status,
		}
		if _, err := fmt.Fprintln(tw, row.String()); err != nil {
			return errors.Wrap(err, errWriteRow)
		}
	}

	if err := tw.Flush(); err != nil {
		return errors.Wrap(err, errFlushTabWriter)
	}
	return nil
}
