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

// Package pkgindex builds a content-addressed index of a local package
// cache (roots laid out as root/<package>/<version>/.../*.dll|*.exe) and
// answers name+hash queries against it, per spec.md §4.6.
package pkgindex

import (
	"bufio"
	"crypto/md5" //nolint:gosec // content-addressing hash, not a security boundary.
	"encoding/binary"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/Masterminds/semver"
	"github.com/spf13/afero"

	"github.com/crossplane/crossplane-runtime/pkg/errors"
	"github.com/crossplane/crossplane-runtime/pkg/logging"

	"github.com/lostromb/wayfinder/internal/module"
)

const (
	errWalkRoot    = "cannot walk package root"
	errReadHash    = "cannot hash candidate file"
	errLoadCache   = "cannot load hash cache"
	errCommitCache = "cannot commit hash cache"
)

// Match is one file in the package cache that satisfies a Resolve query.
type Match struct {
	Package module.PackageID
	File    string
}

// Index is a built, read-only package index. It is safe for concurrent
// Resolve calls; hash computation is memoized behind a mutex.
type Index struct {
	fs  afero.Fs
	log logging.Logger

	// files maps a package identity to every module-extension file found
	// beneath its version directory.
	files map[module.PackageID][]string

	mu     sync.Mutex
	hashes map[string]string // absolute file path -> lower-hex md5
}

// DefaultPackageRoot returns the well-known per-user package cache
// location, honoring the WAYFINDER_PACKAGE_ROOT override named in
// spec.md §6.
func DefaultPackageRoot() string {
	if root := os.Getenv("WAYFINDER_PACKAGE_ROOT"); root != "" {
		return root
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".dotnet-modcache", "packages")
}

// Initialize walks each root directory for package/version/.../module
// subtrees and builds an Index. A root that does not exist or cannot be
// read is skipped with a logged warning rather than failing the whole
// build, matching spec.md §7's "Package-index build swallows I/O errors
// per-file (skip) and continues."
func Initialize(fs afero.Fs, roots []string, log logging.Logger) (*Index, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}

	idx := &Index{
		fs:     fs,
		log:    log,
		files:  map[module.PackageID][]string{},
		hashes: map[string]string{},
	}

	for _, root := range roots {
		if err := idx.walkRoot(root); err != nil {
			log.Debug(errWalkRoot, "root", root, "error", err)
		}
	}

	return idx, nil
}

func (idx *Index) walkRoot(root string) error {
	pkgEntries, err := afero.ReadDir(idx.fs, root)
	if err != nil {
		return errors.Wrap(err, errWalkRoot)
	}

	for _, pkgEntry := range pkgEntries {
		if !pkgEntry.IsDir() {
			continue
		}
		pkgDir := filepath.Join(root, pkgEntry.Name())

		versionEntries, err := afero.ReadDir(idx.fs, pkgDir)
		if err != nil {
			idx.log.Debug(errWalkRoot, "dir", pkgDir, "error", err)
			continue
		}

		for _, versionEntry := range versionEntries {
			if !versionEntry.IsDir() || !looksLikeVersionDir(versionEntry.Name()) {
				continue
			}

			id := module.PackageID{Name: pkgEntry.Name(), Version: versionEntry.Name()}
			versionDir := filepath.Join(pkgDir, versionEntry.Name())

			err := afero.Walk(idx.fs, versionDir, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return nil //nolint:nilerr // skip unreadable entries, continue the walk.
				}
				if info.IsDir() || !module.HasModuleExtension(path) {
					return nil
				}
				idx.files[id] = append(idx.files[id], path)
				return nil
			})
			if err != nil {
				idx.log.Debug(errWalkRoot, "dir", versionDir, "error", err)
			}
		}
	}

	return nil
}

// looksLikeVersionDir reports whether name starts with a digit and
// contains a dot, the
// "known filter" of spec.md §9: ecosystem conventions that prefix versions
// with a letter (e.g. "v1.2") are intentionally not matched.
func looksLikeVersionDir(name string) bool {
	if name == "" {
		return false
	}
	return unicode.IsDigit(rune(name[0])) && strings.Contains(name, ".")
}

// Resolve returns every file in the index whose stem matches name
// case-insensitively (after trimming a trailing module extension), further
// filtered to those whose content hash equals hash when hash is non-nil.
// Results are ordered package-version descending (semver.NewVersion,
// falling back to lexicographic order for non-semver version strings),
// keeping a single run's ordering deterministic per spec.md §4.6.
func (idx *Index) Resolve(name string, hash *string) []Match {
	name = module.TrimModuleExtension(name)

	var matches []Match
	for id, files := range idx.files {
		for _, f := range files {
			if !strings.EqualFold(module.Stem(f), name) {
				continue
			}
			if hash != nil {
				got, err := idx.hashFile(f)
				if err != nil {
					idx.log.Debug(errReadHash, "file", f, "error", err)
					continue
				}
				if !strings.EqualFold(got, *hash) {
					continue
				}
			}
			matches = append(matches, Match{Package: id, File: f})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return versionDescending(matches[i].Package.Version, matches[j].Package.Version)
	})

	return matches
}

func versionDescending(a, b string) bool {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA == nil && errB == nil {
		return va.GreaterThan(vb)
	}
	return a > b
}

func (idx *Index) hashFile(path string) (string, error) {
	idx.mu.Lock()
	if h, ok := idx.hashes[path]; ok {
		idx.mu.Unlock()
		return h, nil
	}
	idx.mu.Unlock()

	f, err := idx.fs.Open(path)
	if err != nil {
		return "", errors.Wrap(err, errReadHash)
	}
	defer f.Close() //nolint:errcheck // read-only handle, nothing to flush.

	h := md5.New() //nolint:gosec // content-addressing hash, not a security boundary.
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrap(err, errReadHash)
	}
	sum := hex.EncodeToString(h.Sum(nil))

	idx.mu.Lock()
	idx.hashes[path] = sum
	idx.mu.Unlock()

	return sum, nil
}

// LoadCache preloads idx's hash memoization table from a file written by a
// prior CommitCache call, per spec.md §6's persistent hash cache: a 32-bit
// entry count followed by N x {length-prefixed path, length-prefixed hex
// hash}. A missing cache file is not an error (first run on a fresh
// machine); a malformed one is reported but does not prevent Resolve from
// working, since hashes are recomputed lazily on demand.
func (idx *Index) LoadCache(path string) error {
	f, err := idx.fs.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, errLoadCache)
	}
	defer f.Close() //nolint:errcheck // read-only handle, nothing to flush.

	br := bufio.NewReader(f)
	count, err := readCacheUint32(br)
	if err != nil {
		return errors.Wrap(err, errLoadCache)
	}

	loaded := make(map[string]string, count)
	for i := uint32(0); i < count; i++ {
		p, err := readCacheString(br)
		if err != nil {
			return errors.Wrap(err, errLoadCache)
		}
		h, err := readCacheString(br)
		if err != nil {
			return errors.Wrap(err, errLoadCache)
		}
		loaded[p] = h
	}

	idx.mu.Lock()
	for p, h := range loaded {
		idx.hashes[p] = h
	}
	idx.mu.Unlock()
	return nil
}

// CommitCache writes idx's current hash memoization table to path via a
// temp-file-then-rename, so a crash mid-write never leaves a truncated
// cache behind for the next run to trip over.
func (idx *Index) CommitCache(path string) error {
	idx.mu.Lock()
	snapshot := make(map[string]string, len(idx.hashes))
	for p, h := range idx.hashes {
		snapshot[p] = h
	}
	idx.mu.Unlock()

	tmp := path + ".tmp"
	f, err := idx.fs.Create(tmp)
	if err != nil {
		return errors.Wrap(err, errCommitCache)
	}

	bw := bufio.NewWriter(f)
	writeCacheUint32(bw, uint32(len(snapshot)))
	for p, h := range snapshot {
		writeCacheString(bw, p)
		writeCacheString(bw, h)
	}
	if err := bw.Flush(); err != nil {
		f.Close() //nolint:errcheck // best effort on the failure path.
		return errors.Wrap(err, errCommitCache)
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, errCommitCache)
	}

	if err := idx.fs.Rename(tmp, path); err != nil {
		return errors.Wrap(err, errCommitCache)
	}
	return nil
}

func writeCacheString(bw *bufio.Writer, s string) {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], uint64(len(s)))
	bw.Write(buf[:n])
	bw.WriteString(s)
}

func readCacheString(br *bufio.Reader) (string, error) {
	length, err := binary.ReadUvarint(br)
	if err != nil {
		return "", err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(br, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeCacheUint32(bw *bufio.Writer, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	bw.Write(buf[:])
}

func readCacheUint32(br *bufio.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(br, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}
