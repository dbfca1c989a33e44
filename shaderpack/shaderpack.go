// Package shaderpack bundles named SPIR-V modules into one file. Every module
// is lz4-compressed on its own and the index in front of them says where each
// one starts, so a pack can be memory mapped and single modules read out of
// it without touching the rest.
package shaderpack

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"io"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pierrec/lz4"
	"github.com/vkngwrapper/gpucore"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/mmap"
	"golang.org/x/exp/slices"
)

var (
	// ErrFormat is returned for input that is not a shader pack.
	ErrFormat = errors.New("corrupted or not a shader pack")
	// ErrNotFound is returned when a pack holds no module of the given name.
	ErrNotFound = errors.New("shader not in pack")
)

const (
	version = 1

	magicLength      = 4
	headerSizeLength = 8
)

var magic = [magicLength]byte{'S', 'P', 'K', '\x00'}

// Entry describes one module of a pack.
type Entry struct {
	Name  string
	Stage gpucore.ShaderStage

	// Offset is relative to the end of the header.
	Offset         int64
	Size           int64
	CompressedSize int64
}

type header struct {
	Version int
	Index   []Entry
}

var stageSuffixes = map[string]gpucore.ShaderStage{
	".vert": gpucore.StageVertex,
	".frag": gpucore.StageFragment,
	".comp": gpucore.StageCompute,
}

// StageFromName derives the stage of a module from its file name, following
// the glslc convention: triangle.vert or triangle.vert.spv is a vertex shader.
func StageFromName(name string) (gpucore.ShaderStage, error) {
	base := strings.TrimSuffix(filepath.Base(name), ".spv")
	stage, ok := stageSuffixes[filepath.Ext(base)]
	if !ok {
		return 0, errors.Newf("no shader stage for %s", name)
	}
	return stage, nil
}

// Builder collects compressed modules for a new pack.
type Builder struct {
	entries []Entry
	data    bytes.Buffer
}

// Add compresses spirv and appends it under name. Names must be unique.
func (b *Builder) Add(name string, stage gpucore.ShaderStage, spirv []byte) error {
	for _, entry := range b.entries {
		if entry.Name == name {
			return errors.Newf("shader %q added twice", name)
		}
	}

	offset := int64(b.data.Len())
	writer := lz4.NewWriter(&b.data)
	if _, err := writer.Write(spirv); err != nil {
		return errors.Wrapf(err, "compressing %s", name)
	}
	if err := writer.Close(); err != nil {
		return errors.Wrapf(err, "compressing %s", name)
	}

	b.entries = append(b.entries, Entry{
		Name:           name,
		Stage:          stage,
		Offset:         offset,
		Size:           int64(len(spirv)),
		CompressedSize: int64(b.data.Len()) - offset,
	})
	return nil
}

// WriteTo writes the magic, the header size, the gob-encoded header and the
// compressed modules to w.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	var encoded bytes.Buffer
	if err := gob.NewEncoder(&encoded).Encode(header{Version: version, Index: b.entries}); err != nil {
		return 0, errors.Wrap(err, "encoding pack header")
	}

	prefix := make([]byte, magicLength+headerSizeLength)
	copy(prefix, magic[:])
	binary.LittleEndian.PutUint64(prefix[magicLength:], uint64(encoded.Len()))

	var written int64
	for _, chunk := range [][]byte{prefix, encoded.Bytes(), b.data.Bytes()} {
		n, err := w.Write(chunk)
		written += int64(n)
		if err != nil {
			return written, errors.Wrap(err, "writing pack")
		}
	}
	return written, nil
}

// Pack reads modules from a shader pack. It is safe for concurrent use when
// its reader is.
type Pack struct {
	reader  io.ReaderAt
	closer  io.Closer
	entries map[string]Entry
	data    int64
}

// Open reads the index of the pack in r.
func Open(r io.ReaderAt) (*Pack, error) {
	prefix := make([]byte, magicLength+headerSizeLength)
	if _, err := r.ReadAt(prefix, 0); err != nil {
		return nil, errors.Wrap(ErrFormat, err.Error())
	}
	if !bytes.Equal(prefix[:magicLength], magic[:]) {
		return nil, ErrFormat
	}

	headerSize := int64(binary.LittleEndian.Uint64(prefix[magicLength:]))
	if headerSize <= 0 || headerSize > 1<<30 {
		return nil, errors.Wrapf(ErrFormat, "header size %d", headerSize)
	}

	encoded := make([]byte, headerSize)
	if _, err := r.ReadAt(encoded, int64(len(prefix))); err != nil {
		return nil, errors.Wrap(ErrFormat, err.Error())
	}

	var h header
	if err := gob.NewDecoder(bytes.NewReader(encoded)).Decode(&h); err != nil {
		return nil, errors.Wrap(ErrFormat, err.Error())
	}
	if h.Version != version {
		return nil, errors.Wrapf(ErrFormat, "version %d", h.Version)
	}

	pack := &Pack{
		reader:  r,
		entries: make(map[string]Entry, len(h.Index)),
		data:    int64(len(prefix)) + headerSize,
	}
	for _, entry := range h.Index {
		pack.entries[entry.Name] = entry
	}
	return pack, nil
}

// OpenFile memory maps the pack at path.
func OpenFile(path string) (*Pack, error) {
	reader, err := mmap.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "mapping %s", path)
	}

	pack, err := Open(reader)
	if err != nil {
		reader.Close()
		return nil, err
	}
	pack.closer = reader
	return pack, nil
}

// Close releases the mapping of a pack opened with OpenFile.
func (p *Pack) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

// Names lists the modules in the pack, sorted.
func (p *Pack) Names() []string {
	names := maps.Keys(p.entries)
	slices.Sort(names)
	return names
}

// Entry returns the index entry of a module.
func (p *Pack) Entry(name string) (Entry, bool) {
	entry, ok := p.entries[name]
	return entry, ok
}

// ReadAll decompresses a module.
func (p *Pack) ReadAll(name string) ([]byte, error) {
	entry, ok := p.entries[name]
	if !ok {
		return nil, errors.Wrap(ErrNotFound, name)
	}

	section := io.NewSectionReader(p.reader, p.data+entry.Offset, entry.CompressedSize)
	spirv, err := io.ReadAll(lz4.NewReader(section))
	if err != nil {
		return nil, errors.Wrapf(err, "decompressing %s", name)
	}
	if int64(len(spirv)) != entry.Size {
		return nil, errors.Wrapf(ErrFormat, "%s is %d bytes, index says %d", name, len(spirv), entry.Size)
	}
	return spirv, nil
}

// Load creates a shader on c from a module of the pack.
func (p *Pack) Load(c *gpucore.Core, name string) (gpucore.Shader, error) {
	spirv, err := p.ReadAll(name)
	if err != nil {
		return gpucore.Shader{}, err
	}
	return c.CreateShader(p.entries[name].Stage, spirv)
}
