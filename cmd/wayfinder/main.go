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

// Package main implements wayfinder, a command line tool that analyzes a
// directory or file of compiled binary modules and prints the dependency
// graph the runtime's loader would construct for them.
package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/go-logr/zapr"

	"github.com/crossplane/crossplane-runtime/pkg/logging"

	"github.com/lostromb/wayfinder/internal/analyzer"
	"github.com/lostromb/wayfinder/internal/graph"
	"github.com/lostromb/wayfinder/internal/inspect"
	"github.com/lostromb/wayfinder/internal/pkgindex"
	"github.com/lostromb/wayfinder/internal/render"

	"github.com/spf13/afero"
)

var _ = kong.Must(&cli{})

type verboseFlag bool

func (v verboseFlag) BeforeApply(ctx *kong.Context) error { //nolint:unparam // BeforeApply requires this signature.
	var zl *zap.Logger
	var err error
	if v {
		zl, err = zap.NewDevelopment()
	} else {
		zl, err = zap.NewProduction()
	}
	if err != nil {
		return err
	}
	logger := logging.NewLogrLogger(zapr.NewLogger(zl))
	ctx.BindTo(logger, (*logging.Logger)(nil))
	return nil
}

// cli is the top-level wayfinder command.
type cli struct {
	Path string `arg:"" help:"Path to a module file or a directory of modules." type:"path"`

	Format      string   `help:"Output format: default, json, or dot." default:"default" enum:"default,json,dot"`
	ConfigRoots []string `help:"Additional package root directories, beyond the default package cache." name:"config-root" type:"path"`
	PackageRoot string   `help:"Package cache root. Defaults to $WAYFINDER_PACKAGE_ROOT or the per-user package cache." type:"path"`
	NoPkgIndex  bool     `help:"Skip building the package index entirely (source-package annotation is omitted)."`
	HashCache   string   `help:"Path to the persistent content-hash cache. Defaults to wayfinder-hashcache.bin in the system temp directory." type:"path"`

	Verbose verboseFlag `help:"Print verbose logging statements." name:"verbose"`
}

func (c *cli) Run(log logging.Logger) error {
	fs := afero.NewOsFs()
	ctx := context.Background()

	pipeline := inspect.New(
		&inspect.ManagedInspector{Fs: fs},
		&inspect.NativeInspector{},
	)

	var pkgIdx *pkgindex.Index
	var hashCachePath string
	if !c.NoPkgIndex {
		roots := c.ConfigRoots
		root := c.PackageRoot
		if root == "" {
			root = pkgindex.DefaultPackageRoot()
		}
		if root != "" {
			roots = append(roots, root)
		}
		idx, err := pkgindex.Initialize(fs, roots, log)
		if err != nil {
			return err
		}

		hashCachePath = c.HashCache
		if hashCachePath == "" {
			hashCachePath = filepath.Join(os.TempDir(), "wayfinder-hashcache.bin")
		}
		if hashCachePath != "" {
			if err := idx.LoadCache(hashCachePath); err != nil {
				log.Debug("hash cache not loaded", "path", hashCachePath, "error", err)
			}
		}

		pkgIdx = idx
	}

	builder := analyzer.NewBuilder(fs, pipeline, pkgIdx, log)

	info, err := fs.Stat(c.Path)
	if err != nil {
		return err
	}

	var g *graph.Graph
	if info.IsDir() {
		g, err = builder.BuildDirectory(ctx, c.Path)
	} else {
		g, err = builder.BuildFile(c.Path)
	}
	if err != nil {
		return err
	}

	if pkgIdx != nil && hashCachePath != "" {
		if err := pkgIdx.CommitCache(hashCachePath); err != nil {
			log.Debug("hash cache not committed", "path", hashCachePath, "error", err)
		}
	}

	printer, err := render.New(c.Format)
	if err != nil {
		return err
	}
	return printer.Print(os.Stdout, g)
}

func main() {
	logger := logging.NewNopLogger()
	parser := kong.Must(&cli{},
		kong.Name("wayfinder"),
		kong.Description("Analyze a directory or file of compiled binary modules and print the binding graph the runtime's loader would construct."),
		kong.BindTo(logger, (*logging.Logger)(nil)),
		kong.ConfigureHelp(kong.HelpOptions{
			FlagsLast:      true,
			Compact:        true,
			WrapUpperBound: 80,
		}),
		kong.UsageOnError())

	parsed, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	err = parsed.Run()
	parsed.FatalIfErrorf(err)
}
