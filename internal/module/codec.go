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

package module

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/crossplane/crossplane-runtime/pkg/errors"

	"github.com/lostromb/wayfinder/internal/framework"
)

// This file implements the positional binary encoding of spec.md §4.4: a
// stable, versioned wire format for a Data record and its References and
// PackageIDs. Strings are varint-length-prefixed UTF-8; versions are
// serialized as their rendered string form (empty string == absent);
// enums are little-endian int32; collections are preceded by a uint32
// count.

const (
	errEncode = "cannot encode module data"
	errDecode = "cannot decode module data"
)

// Encode writes d to w in the §4.4 wire format.
func Encode(w io.Writer, d *Data) error {
	bw := bufio.NewWriter(w)

	writeString(bw, d.FilePath)
	writeString(bw, d.BinaryName)
	writeString(bw, d.FullName)
	writeString(bw, d.Version.String())
	writeString(bw, d.FrameworkID)
	writeString(bw, d.Framework.String())
	writeInt32(bw, int32(d.Platform))
	writeInt32(bw, int32(d.Kind))
	writeString(bw, d.ContentHash)
	writeString(bw, d.LoaderError)

	writeUint32(bw, uint32(len(d.References)))
	for _, ref := range d.References {
		encodeReference(bw, ref)
	}

	writeUint32(bw, uint32(len(d.SourcePackages)))
	for _, pkg := range d.SourcePackages {
		writeString(bw, pkg.Name)
		writeString(bw, pkg.Version)
	}

	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, errEncode)
	}
	return nil
}

func encodeReference(bw *bufio.Writer, ref Reference) {
	writeString(bw, ref.BinaryName)
	writeOptionalVersion(bw, ref.DeclaredVersion)
	writeOptionalVersion(bw, ref.EffectiveVersion)
	writeInt32(bw, int32(ref.Kind))
	writeString(bw, ref.FullName)
	writeString(bw, ref.CodebaseHint)
}

func writeOptionalVersion(bw *bufio.Writer, v *Version) {
	if v == nil {
		writeString(bw, "")
		return
	}
	writeString(bw, v.String())
}

// Decode reads one Data record from r in the §4.4 wire format.
func Decode(r io.Reader) (*Data, error) {
	br := bufio.NewReader(r)
	d := &Data{}

	var err error
	if d.FilePath, err = readString(br); err != nil {
		return nil, errors.Wrap(err, errDecode)
	}
	if d.BinaryName, err = readString(br); err != nil {
		return nil, errors.Wrap(err, errDecode)
	}
	if d.FullName, err = readString(br); err != nil {
		return nil, errors.Wrap(err, errDecode)
	}
	versionStr, err := readString(br)
	if err != nil {
		return nil, errors.Wrap(err, errDecode)
	}
	d.Version = parseVersionOrZero(versionStr)
	if d.FrameworkID, err = readString(br); err != nil {
		return nil, errors.Wrap(err, errDecode)
	}
	fwStr, err := readString(br)
	if err != nil {
		return nil, errors.Wrap(err, errDecode)
	}
	d.Framework = framework.Parse(fwStr)

	platform, err := readInt32(br)
	if err != nil {
		return nil, errors.Wrap(err, errDecode)
	}
	d.Platform = Platform(platform)

	kind, err := readInt32(br)
	if err != nil {
		return nil, errors.Wrap(err, errDecode)
	}
	d.Kind = BinaryKind(kind)

	if d.ContentHash, err = readString(br); err != nil {
		return nil, errors.Wrap(err, errDecode)
	}
	if d.LoaderError, err = readString(br); err != nil {
		return nil, errors.Wrap(err, errDecode)
	}

	refCount, err := readUint32(br)
	if err != nil {
		return nil, errors.Wrap(err, errDecode)
	}
	if refCount > 0 {
		d.References = make([]Reference, refCount)
	}
	for i := range d.References {
		ref, err := decodeReference(br)
		if err != nil {
			return nil, errors.Wrap(err, errDecode)
		}
		d.References[i] = ref
	}

	pkgCount, err := readUint32(br)
	if err != nil {
		return nil, errors.Wrap(err, errDecode)
	}
	if pkgCount > 0 {
		d.SourcePackages = make([]PackageID, pkgCount)
	}
	for i := range d.SourcePackages {
		name, err := readString(br)
		if err != nil {
			return nil, errors.Wrap(err, errDecode)
		}
		version, err := readString(br)
		if err != nil {
			return nil, errors.Wrap(err, errDecode)
		}
		d.SourcePackages[i] = PackageID{Name: name, Version: version}
	}

	return d, nil
}

func decodeReference(br *bufio.Reader) (Reference, error) {
	var ref Reference
	var err error

	if ref.BinaryName, err = readString(br); err != nil {
		return Reference{}, err
	}
	if ref.DeclaredVersion, err = readOptionalVersion(br); err != nil {
		return Reference{}, err
	}
	if ref.EffectiveVersion, err = readOptionalVersion(br); err != nil {
		return Reference{}, err
	}
	kind, err := readInt32(br)
	if err != nil {
		return Reference{}, err
	}
	ref.Kind = ReferenceKind(kind)
	if ref.FullName, err = readString(br); err != nil {
		return Reference{}, err
	}
	if ref.CodebaseHint, err = readString(br); err != nil {
		return Reference{}, err
	}
	return ref, nil
}

func readOptionalVersion(br *bufio.Reader) (*Version, error) {
	s, err := readString(br)
	if err != nil {
		return nil, err
	}
	if s == "" {
		return nil, nil
	}
	v := parseVersionOrZero(s)
	return &v, nil
}

func parseVersionOrZero(s string) Version {
	var v Version
	if s == "" {
		return v
	}
	var major, minor, build, revision uint16
	n, _ := parseDottedVersion(s, &major, &minor, &build, &revision)
	if n == 0 {
		return Version{}
	}
	return Version{Major: major, Minor: minor, Build: build, Revision: revision}
}

// parseDottedVersion parses a "major.minor.build.revision" string in place,
// tolerating fewer than four fields (the rest default to zero).
func parseDottedVersion(s string, major, minor, build, revision *uint16) (int, error) {
	fields := [4]*uint16{major, minor, build, revision}
	n := 0
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '.' {
			if n >= len(fields) {
				break
			}
			val, err := parseUint16Field(s[start:i])
			if err != nil {
				return n, err
			}
			*fields[n] = val
			n++
			start = i + 1
		}
	}
	return n, nil
}

func parseUint16Field(s string) (uint16, error) {
	var n uint64
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, errors.New("invalid version field")
		}
		n = n*10 + uint64(r-'0')
	}
	return uint16(n), nil
}

// --- primitive wire helpers ---

func writeString(bw *bufio.Writer, s string) {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], uint64(len(s)))
	bw.Write(buf[:n])
	bw.WriteString(s)
}

func readString(br *bufio.Reader) (string, error) {
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

func writeInt32(bw *bufio.Writer, v int32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	bw.Write(buf[:])
}

func readInt32(br *bufio.Reader) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(br, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

func writeUint32(bw *bufio.Writer, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	bw.Write(buf[:])
}

func readUint32(br *bufio.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(br, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}
