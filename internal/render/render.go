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

// Package render formats a graph.Graph for a human or machine consumer.
// Bit-exact output is not a goal (spec.md §6); the formats exist to make
// a run's graph inspectable.
package render

import (
	"io"

	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/lostromb/wayfinder/internal/graph"
)

const errFmtUnknownFormat = "unknown output format: %s"

// Format names a renderer, selected on the command line.
type Format string

// Supported output formats.
const (
	FormatDefault Format = "default"
	FormatJSON    Format = "json"
	FormatDot     Format = "dot"
)

// Printer writes a rendered graph to w.
type Printer interface {
	Print(w io.Writer, g *graph.Graph) error
}

// New returns the Printer for the named format.
func New(format string) (Printer, error) {
	switch Format(format) {
	case FormatDefault, "":
		return &DefaultPrinter{}, nil
	case FormatJSON:
		return &JSONPrinter{}, nil
	case FormatDot:
		return &DotPrinter{}, nil
	default:
		return nil, errors.Errorf(errFmtUnknownFormat, format)
	}
}
