package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// PartState is the lifecycle state of a file part.
type PartState int

const (
	PartOpen PartState = iota
	PartClosed
	PartReady
	PartBroken
)

func (s PartState) String() string {
	switch s {
	case PartOpen:
		return "open"
	case PartClosed:
		return "closed"
	case PartReady:
		return "ready"
	case PartBroken:
		return "broken"
	default:
		return "unknown"
	}
}

// Terminal reports whether no more bytes are expected for the part.
func (s PartState) Terminal() bool { return s != PartOpen }

func ParsePartState(v string) (PartState, error) {
	switch strings.ToLower(v) {
	case "open", "":
		return PartOpen, nil
	case "closed":
		return PartClosed, nil
	case "ready":
		return PartReady, nil
	case "broken":
		return PartBroken, nil
	default:
		return PartOpen, fmt.Errorf("unknown part state %q", v)
	}
}

// TmpName derives the stable temp file name of a download.
func TmpName(name string, size int64) string {
	sum := sha256.Sum256([]byte(name + ":" + strconv.FormatInt(size, 10)))
	return hex.EncodeToString(sum[:16])
}

// FileSet is the root of the downloads being assembled.
type FileSet struct {
	Object
	files *Children[*File]
}

func NewFileSet() *FileSet {
	s := &FileSet{}
	s.init(s, "files")
	s.files = newChildren(s, func(v *File) string { return v.tmpName })
	return s
}

func (s *FileSet) children() []Node { return nodes(s.files.items) }

func (s *FileSet) Files() *Children[*File] { return s.files }

// File returns the download with the given name and size, or nil.
func (s *FileSet) File(name string, size int64) *File {
	v, _ := s.files.byKey(TmpName(name, size))
	return v
}

// ByTmpName looks a download up by its temp file name.
func (s *FileSet) ByTmpName(tmp string) *File {
	v, _ := s.files.byKey(tmp)
	return v
}

// AddFile returns the existing download or attaches a new one.
func (s *FileSet) AddFile(name string, size int64) *File {
	f := NewFile(name, size)
	if s.files.Add(f) {
		return f
	}
	return s.File(name, size)
}

func (s *FileSet) CommitAll() { commitTree(s) }

// File is a download assembled from one or more parts.
type File struct {
	Object
	size    int64
	tmpName string
	parts   *Children[*FilePart]
}

func NewFile(name string, size int64) *File {
	f := &File{size: size, tmpName: TmpName(name, size)}
	f.init(f, name)
	f.enabled = true
	f.parts = newChildren(f, func(v *FilePart) string { return strconv.FormatInt(v.start, 10) })
	return f
}

func (f *File) children() []Node { return nodes(f.parts.items) }

func (f *File) Size() int64     { return f.size }
func (f *File) TmpName() string { return f.tmpName }

func (f *File) Parts() *Children[*FilePart] { return f.parts }

// Part returns the part starting at offset start, or nil.
func (f *File) Part(start int64) *FilePart {
	v, _ := f.parts.byKey(strconv.FormatInt(start, 10))
	return v
}

// AddPart returns the existing part at start or attaches a new one.
func (f *File) AddPart(start, stop int64) *FilePart {
	p := NewFilePart(start, stop)
	if f.parts.Add(p) {
		return p
	}
	return f.Part(start)
}

// CurrentSize sums the bytes received by every part.
func (f *File) CurrentSize() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var n int64
	for _, p := range f.parts.items {
		n += p.current - p.start
	}
	return n
}

// Speed sums the transfer speed of every part in bytes per second.
func (f *File) Speed() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var n int64
	for _, p := range f.parts.items {
		n += p.speed
	}
	return n
}

// Complete reports whether every part is ready and the parts cover the file.
func (f *File) Complete() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.parts.items) == 0 {
		return false
	}
	var covered int64
	for _, p := range f.parts.items {
		if p.state != PartReady {
			return false
		}
		covered += p.stop - p.start
	}
	return covered >= f.size
}

// FilePart is the byte range [start, stop) of a file.
type FilePart struct {
	Object
	start   int64
	stop    int64
	current int64
	state   PartState
	speed   int64
}

func NewFilePart(start, stop int64) *FilePart {
	p := &FilePart{start: start, stop: stop, current: start}
	p.init(p, strconv.FormatInt(start, 10))
	p.enabled = true
	return p
}

func (p *FilePart) StartSize() int64           { return p.start }
func (p *FilePart) StopSize() int64            { return getValue(&p.Object, &p.stop) }
func (p *FilePart) SetStopSize(v int64)        { setValue(&p.Object, &p.stop, v, "stop_size") }
func (p *FilePart) CurrentSize() int64         { return getValue(&p.Object, &p.current) }
func (p *FilePart) SetCurrentSize(v int64)     { setValue(&p.Object, &p.current, v, "current_size") }
func (p *FilePart) State() PartState           { return getValue(&p.Object, &p.state) }
func (p *FilePart) SetState(v PartState)       { setValue(&p.Object, &p.state, v, "state") }
func (p *FilePart) Speed() int64               { return getValue(&p.Object, &p.speed) }
func (p *FilePart) SetSpeed(bytesPerSec int64) { setValue(&p.Object, &p.speed, bytesPerSec, "speed") }

// MissingSize is the number of bytes still expected.
func (p *FilePart) MissingSize() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stop - p.current
}

func (p *FilePart) File() *File {
	p.mu.RLock()
	defer p.mu.RUnlock()
	f, _ := p.parent.(*File)
	return f
}
