// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package errorfs provides a vfs.FS wrapper that injects errors into file
// system operations, for exercising error paths in tests.
package errorfs

import (
	"fmt"
	"go/scanner"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/errors/oserror"
	"github.com/cockroachdb/shuffle/vfs"
)

// ErrInjected is an error artificially injected for testing fs error paths.
var ErrInjected = errors.New("injected error")

// Op is an enum describing the type of operation.
type Op int

const (
	// OpCreate describes a create file operation.
	OpCreate Op = iota
	// OpOpen describes a file open operation.
	OpOpen
	// OpOpenAppend describes an append-mode open operation.
	OpOpenAppend
	// OpRemove describes a remove file operation.
	OpRemove
	// OpRename describes a rename operation.
	OpRename
	// OpMkdir describes a make directory operation.
	OpMkdir
	// OpMkdirAll describes a make directory including parents operation.
	OpMkdirAll
	// OpList describes a list directory operation.
	OpList
	// OpStat describes a path-based stat operation.
	OpStat
	// OpFileClose describes a close file operation.
	OpFileClose
	// OpFileRead describes a file read operation.
	OpFileRead
	// OpFileReadAt describes a file seek read operation.
	OpFileReadAt
	// OpFileWrite describes a file write operation.
	OpFileWrite
	// OpFileSeek describes a file seek operation.
	OpFileSeek
	// OpFileStat describes a file stat operation.
	OpFileStat
	// OpFileSync describes a file sync operation.
	OpFileSync
)

var opNames = [...]string{
	OpCreate:     "create",
	OpOpen:       "open",
	OpOpenAppend: "open-append",
	OpRemove:     "remove",
	OpRename:     "rename",
	OpMkdir:      "mkdir",
	OpMkdirAll:   "mkdir-all",
	OpList:       "list",
	OpStat:       "stat",
	OpFileClose:  "close",
	OpFileRead:   "read",
	OpFileReadAt: "read-at",
	OpFileWrite:  "write",
	OpFileSeek:   "seek",
	OpFileStat:   "file-stat",
	OpFileSync:   "sync",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// OpKind returns the operation's kind.
func (o Op) OpKind() OpKind {
	switch o {
	case OpOpen, OpList, OpStat, OpFileRead, OpFileReadAt, OpFileSeek, OpFileStat:
		return OpKindRead
	case OpCreate, OpOpenAppend, OpRemove, OpRename, OpMkdir, OpMkdirAll, OpFileClose, OpFileWrite, OpFileSync:
		return OpKindWrite
	default:
		panic(fmt.Sprintf("unrecognized op %v\n", o))
	}
}

// OpKind is an enum describing whether an operation is a read or write
// operation.
type OpKind int

const (
	// OpKindRead describes read operations.
	OpKindRead OpKind = iota
	// OpKindWrite describes write operations.
	OpKindWrite
)

// OnIndex constructs an injector that returns an error on
// the (n+1)-th invocation of its MaybeError function. It
// may be passed to Wrap to inject an error into an FS.
func OnIndex(index int32, next Injector) *InjectIndex {
	ii := &InjectIndex{next: next}
	ii.index.Store(index)
	return ii
}

// InjectIndex implements Injector, injecting an error at a specific index.
type InjectIndex struct {
	index atomic.Int32
	next  Injector
}

// MaybeError implements the Injector interface.
func (ii *InjectIndex) MaybeError(op Op, path string) error {
	if ii.index.Add(-1) != -1 {
		return nil
	}
	return ii.next.MaybeError(op, path)
}

// InjectorFunc implements the Injector interface for a function with
// MaybeError's signature.
type InjectorFunc func(Op, string) error

// MaybeError implements the Injector interface.
func (f InjectorFunc) MaybeError(op Op, path string) error { return f(op, path) }

// Injector injects errors into FS operations.
type Injector interface {
	// MaybeError is invoked by an errorfs before an operation is executed. It
	// is passed an enum indicating the type of operation and a path of the
	// subject file or directory. If the operation takes two paths (eg,
	// Rename), the original source path is provided.
	MaybeError(op Op, path string) error
}

// Always returns an injector that always injects an error.
func Always() Injector { return InjectorFunc(func(Op, string) error { return ErrInjected }) }

// Any returns an injector that injects an error if any the provided injectors
// inject an error.
func Any(injectors ...Injector) Injector {
	return InjectorFunc(func(op Op, path string) error {
		for _, inj := range injectors {
			if err := inj.MaybeError(op, path); err != nil {
				return err
			}
		}
		return nil
	})
}

// PathMatch returns an injector that injects an error on file paths that
// match the provided pattern (according to filepath.Match) and for which the
// provided next injector injects an error.
func PathMatch(pattern string, next Injector) Injector {
	return InjectorFunc(func(op Op, path string) error {
		if matched, err := filepath.Match(pattern, path); err != nil {
			// Only possible error is ErrBadPattern, indicating an issue with
			// the test itself.
			panic(err)
		} else if matched {
			return next.MaybeError(op, path)
		}
		return nil
	})
}

// OnOp returns an injector that passes only operations of the given type to
// next.
func OnOp(o Op, next Injector) Injector {
	return InjectorFunc(func(op Op, path string) error {
		if op == o {
			return next.MaybeError(op, path)
		}
		return nil
	})
}

// ParseInjectorFromDSL parses a string encoding a ruleset describing when
// errors should be injected. There are a handful of supported functions and
// primitives:
//   - "always" is a primitive that injects an error every time
//   - "any(injector, [injector]...)" injects an error if any of the provided
//     injectors inject an error
//   - "pathMatch(pattern, injector)" injects an error if an operation's file path
//     matches the provided shell pattern and the provided injector injects an
//     error.
//   - "onIndex(idx, injector)" injects an error on the idx-th operation if the
//     provided injector injects an error.
//   - "op(name, injector)" passes only operations named name (for example
//     "write" or "close") to the provided injector.
//   - "reads(injector)" injects an error on all read operations for which
//     the provided injector injects an error.
//   - "writes(injector)" injects an error on all write operations for which
//     the provided injector injects an error.
//
// Example: pathMatch("*.data", onIndex(5, always)) is a rule set that will
// inject an error on the 5-th I/O operation involving a data file.
func ParseInjectorFromDSL(d string) (inj Injector, err error) {
	defer func() {
		if r := recover(); r != nil {
			var ok bool
			err, ok = r.(error)
			if !ok {
				panic(r)
			}
		}
	}()

	fset := token.NewFileSet()
	file := fset.AddFile("", -1, len(d))
	var s scanner.Scanner
	s.Init(file, []byte(strings.TrimSpace(d)), nil /* no error handler */, 0)
	inj = parseInjectorDSLFunc(&s)
	consumeTok(&s, token.SEMICOLON)
	consumeTok(&s, token.EOF)
	return inj, err
}

var dslParsers map[string]func(*scanner.Scanner) Injector

func init() {
	dslParsers = map[string]func(*scanner.Scanner) Injector{
		"always": func(*scanner.Scanner) Injector { return Always() },
		"any": func(s *scanner.Scanner) Injector {
			var injs []Injector
			consumeTok(s, token.LPAREN)
			injs = append(injs, parseInjectorDSLFunc(s))
			pos, tok, lit := s.Scan()
			for tok == token.COMMA {
				injs = append(injs, parseInjectorDSLFunc(s))
				pos, tok, lit = s.Scan()
			}
			if tok != token.RPAREN {
				panic(errors.Errorf("errorfs: unexpected token %s (%q) at %#v", tok, lit, pos))
			}
			return Any(injs...)
		},
		"pathMatch": func(s *scanner.Scanner) Injector {
			consumeTok(s, token.LPAREN)
			pattern := mustUnquote(consumeTok(s, token.STRING))
			consumeTok(s, token.COMMA)
			next := parseInjectorDSLFunc(s)
			consumeTok(s, token.RPAREN)
			return PathMatch(pattern, next)
		},
		"onIndex": func(s *scanner.Scanner) Injector {
			consumeTok(s, token.LPAREN)
			i, err := strconv.ParseInt(consumeTok(s, token.INT), 10, 32)
			if err != nil {
				panic(err)
			}
			consumeTok(s, token.COMMA)
			next := parseInjectorDSLFunc(s)
			consumeTok(s, token.RPAREN)
			return OnIndex(int32(i), next)
		},
		"op": func(s *scanner.Scanner) Injector {
			consumeTok(s, token.LPAREN)
			name := mustUnquote(consumeTok(s, token.STRING))
			o, ok := opByName(name)
			if !ok {
				panic(errors.Errorf("errorfs: unknown op %q", name))
			}
			consumeTok(s, token.COMMA)
			next := parseInjectorDSLFunc(s)
			consumeTok(s, token.RPAREN)
			return OnOp(o, next)
		},
		"reads": func(s *scanner.Scanner) Injector {
			consumeTok(s, token.LPAREN)
			next := parseInjectorDSLFunc(s)
			consumeTok(s, token.RPAREN)
			return InjectorFunc(func(o Op, path string) error {
				if o.OpKind() == OpKindRead {
					return next.MaybeError(o, path)
				}
				return nil
			})
		},
		"writes": func(s *scanner.Scanner) Injector {
			consumeTok(s, token.LPAREN)
			next := parseInjectorDSLFunc(s)
			consumeTok(s, token.RPAREN)
			return InjectorFunc(func(o Op, path string) error {
				if o.OpKind() == OpKindWrite {
					return next.MaybeError(o, path)
				}
				return nil
			})
		},
	}
}

func opByName(name string) (Op, bool) {
	for i, n := range opNames {
		if n == name {
			return Op(i), true
		}
	}
	return 0, false
}

func parseInjectorDSLFunc(s *scanner.Scanner) Injector {
	fn := consumeTok(s, token.IDENT)
	p, ok := dslParsers[fn]
	if !ok {
		panic(errors.Errorf("errorfs: unknown func %q", fn))
	}
	return p(s)
}

func consumeTok(s *scanner.Scanner, expected token.Token) (lit string) {
	pos, tok, lit := s.Scan()
	if tok != expected {
		panic(errors.Errorf("errorfs: unexpected token %s (%q) at %#v", tok, lit, pos))
	}
	return lit
}

func mustUnquote(lit string) string {
	s, err := strconv.Unquote(lit)
	if err != nil {
		panic(errors.Newf("errorfs: unquoting %q: %v", lit, err))
	}
	return s
}

// FS implements vfs.FS, injecting errors into
// its operations.
type FS struct {
	fs  vfs.FS
	inj Injector
}

var _ vfs.FS = (*FS)(nil)

// Wrap wraps an existing vfs.FS implementation, returning a new
// vfs.FS implementation that shadows operations to the provided FS.
// It uses the provided Injector for deciding when to inject errors.
// If an error is injected, FS propagates the error instead of
// shadowing the operation.
func Wrap(fs vfs.FS, inj Injector) *FS {
	return &FS{
		fs:  fs,
		inj: inj,
	}
}

// Create implements FS.Create.
func (fs *FS) Create(name string) (vfs.File, error) {
	if err := fs.inj.MaybeError(OpCreate, name); err != nil {
		return nil, err
	}
	f, err := fs.fs.Create(name)
	if err != nil {
		return nil, err
	}
	return &errorFile{name, f, fs.inj}, nil
}

// Open implements FS.Open.
func (fs *FS) Open(name string) (vfs.File, error) {
	if err := fs.inj.MaybeError(OpOpen, name); err != nil {
		return nil, err
	}
	f, err := fs.fs.Open(name)
	if err != nil {
		return nil, err
	}
	return &errorFile{name, f, fs.inj}, nil
}

// OpenAppend implements FS.OpenAppend.
func (fs *FS) OpenAppend(name string) (vfs.File, error) {
	if err := fs.inj.MaybeError(OpOpenAppend, name); err != nil {
		return nil, err
	}
	f, err := fs.fs.OpenAppend(name)
	if err != nil {
		return nil, err
	}
	return &errorFile{name, f, fs.inj}, nil
}

// PathBase implements FS.PathBase.
func (fs *FS) PathBase(p string) string {
	return fs.fs.PathBase(p)
}

// PathDir implements FS.PathDir.
func (fs *FS) PathDir(p string) string {
	return fs.fs.PathDir(p)
}

// PathJoin implements FS.PathJoin.
func (fs *FS) PathJoin(elem ...string) string {
	return fs.fs.PathJoin(elem...)
}

// Remove implements FS.Remove.
func (fs *FS) Remove(name string) error {
	if _, err := fs.fs.Stat(name); oserror.IsNotExist(err) {
		return nil
	}

	if err := fs.inj.MaybeError(OpRemove, name); err != nil {
		return err
	}
	return fs.fs.Remove(name)
}

// Rename implements FS.Rename.
func (fs *FS) Rename(oldname, newname string) error {
	if err := fs.inj.MaybeError(OpRename, oldname); err != nil {
		return err
	}
	return fs.fs.Rename(oldname, newname)
}

// Mkdir implements FS.Mkdir.
func (fs *FS) Mkdir(dir string, perm os.FileMode) error {
	if err := fs.inj.MaybeError(OpMkdir, dir); err != nil {
		return err
	}
	return fs.fs.Mkdir(dir, perm)
}

// MkdirAll implements FS.MkdirAll.
func (fs *FS) MkdirAll(dir string, perm os.FileMode) error {
	if err := fs.inj.MaybeError(OpMkdirAll, dir); err != nil {
		return err
	}
	return fs.fs.MkdirAll(dir, perm)
}

// List implements FS.List.
func (fs *FS) List(dir string) ([]string, error) {
	if err := fs.inj.MaybeError(OpList, dir); err != nil {
		return nil, err
	}
	return fs.fs.List(dir)
}

// Stat implements FS.Stat.
func (fs *FS) Stat(name string) (vfs.FileInfo, error) {
	if err := fs.inj.MaybeError(OpStat, name); err != nil {
		return nil, err
	}
	return fs.fs.Stat(name)
}

// errorFile implements vfs.File. The interface is implemented on the pointer
// type to allow pointer equality comparisons.
type errorFile struct {
	path string
	file vfs.File
	inj  Injector
}

func (f *errorFile) Close() error {
	// The underlying file is always closed so that an injected close error
	// does not leak the handle.
	err := f.file.Close()
	if injErr := f.inj.MaybeError(OpFileClose, f.path); injErr != nil {
		return injErr
	}
	return err
}

func (f *errorFile) Read(p []byte) (int, error) {
	if err := f.inj.MaybeError(OpFileRead, f.path); err != nil {
		return 0, err
	}
	return f.file.Read(p)
}

func (f *errorFile) ReadAt(p []byte, off int64) (int, error) {
	if err := f.inj.MaybeError(OpFileReadAt, f.path); err != nil {
		return 0, err
	}
	return f.file.ReadAt(p, off)
}

func (f *errorFile) Write(p []byte) (int, error) {
	if err := f.inj.MaybeError(OpFileWrite, f.path); err != nil {
		return 0, err
	}
	return f.file.Write(p)
}

func (f *errorFile) Seek(offset int64, whence int) (int64, error) {
	if err := f.inj.MaybeError(OpFileSeek, f.path); err != nil {
		return 0, err
	}
	return f.file.Seek(offset, whence)
}

func (f *errorFile) Stat() (vfs.FileInfo, error) {
	if err := f.inj.MaybeError(OpFileStat, f.path); err != nil {
		return nil, err
	}
	return f.file.Stat()
}

func (f *errorFile) Sync() error {
	if err := f.inj.MaybeError(OpFileSync, f.path); err != nil {
		return err
	}
	return f.file.Sync()
}

// Fd hides the underlying descriptor so that transfers go through Read and
// Write and observe injected errors.
func (f *errorFile) Fd() uintptr {
	return vfs.InvalidFd
}
