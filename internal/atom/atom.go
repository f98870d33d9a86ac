package atom

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// Well-known box types referenced by the embed path.
const (
	TypeUUID = "uuid"
	TypeXMP  = "XMP_"
	TypeMoov = "moov"
	TypeUdta = "udta"
	TypeFtyp = "ftyp"
	TypeMdat = "mdat"
	TypeFree = "free"
)

const (
	headerSize         = 8
	extendedHeaderSize = 16
)

// maxBoxSize is the largest box Build will emit. It is a variable so tests can
// exercise the overflow path without allocating 4 GiB.
var maxBoxSize uint64 = math.MaxUint32

var (
	// ErrTruncatedHeader reports a box header cut short by the container bound.
	ErrTruncatedHeader = errors.New("truncated atom header")
	// ErrInvalidSize reports a declared size smaller than its header or larger
	// than the space left in the container.
	ErrInvalidSize = errors.New("invalid atom size")
	// ErrUnaligned reports a scan that did not end exactly on the container boundary.
	ErrUnaligned = errors.New("atom scan did not end on container boundary")
	// ErrPayloadTooLarge reports a payload that does not fit a 32-bit box.
	ErrPayloadTooLarge = errors.New("payload too large for 32-bit atom")
	// ErrInvalidType reports a box type that is not exactly four bytes.
	ErrInvalidType = errors.New("atom type must be four bytes")
)

// An Atom describes one box within a file or buffer.
type Atom struct {
	Type       string // four character box type
	Offset     uint64 // start of the box relative to the scanned source
	Size       uint64 // total length including the header
	HeaderSize uint8  // 8, or 16 for extended-size boxes
}

// End returns the offset of the end of the atom.
func (a Atom) End() uint64 {
	return a.Offset + a.Size
}

// HeaderEnd returns the offset of the end of the atom's header.
func (a Atom) HeaderEnd() uint64 {
	return a.Offset + uint64(a.HeaderSize)
}

// PayloadSize returns the number of bytes following the header.
func (a Atom) PayloadSize() uint64 {
	return a.Size - uint64(a.HeaderSize)
}

// ParseError wraps a failure to tile a container with atoms.
type ParseError struct {
	Offset uint64
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse atoms at offset %d: %v", e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// headerReader returns up to n bytes starting at off.
type headerReader func(off uint64, n int) ([]byte, error)

// scan walks [start, end) box by box. The walk must tile the range exactly.
func scan(start, end uint64, read headerReader) ([]Atom, error) {
	var atoms []Atom
	offset := start
	for offset < end && end-offset >= headerSize {
		remaining := end - offset
		n := extendedHeaderSize
		if remaining < extendedHeaderSize {
			n = int(remaining)
		}
		header, err := read(offset, n)
		if err != nil {
			return nil, &ParseError{Offset: offset, Err: err}
		}

		atom := Atom{
			Type:       string(header[4:8]),
			Offset:     offset,
			Size:       uint64(binary.BigEndian.Uint32(header[0:4])),
			HeaderSize: headerSize,
		}
		switch atom.Size {
		case 1:
			if len(header) < extendedHeaderSize {
				return nil, &ParseError{Offset: offset, Err: ErrTruncatedHeader}
			}
			atom.Size = binary.BigEndian.Uint64(header[8:16])
			atom.HeaderSize = extendedHeaderSize
		case 0:
			atom.Size = remaining
		}

		if atom.Size < uint64(atom.HeaderSize) || atom.Size > remaining {
			return nil, &ParseError{
				Offset: offset,
				Err:    fmt.Errorf("%w: %q declares %d bytes, %d available", ErrInvalidSize, atom.Type, atom.Size, remaining),
			}
		}

		atoms = append(atoms, atom)
		offset += atom.Size
	}

	if offset != end {
		return nil, &ParseError{Offset: offset, Err: ErrUnaligned}
	}
	return atoms, nil
}

// ParseTopLevel reads the sequence of top-level boxes from r, which holds size
// bytes. The boxes must cover the whole source without gaps or overlaps.
func ParseTopLevel(r io.ReaderAt, size int64) ([]Atom, error) {
	if size < 0 {
		return nil, &ParseError{Err: fmt.Errorf("%w: negative container size %d", ErrInvalidSize, size)}
	}
	buf := make([]byte, extendedHeaderSize)
	return scan(0, uint64(size), func(off uint64, n int) ([]byte, error) {
		header := buf[:n]
		if _, err := r.ReadAt(header, int64(off)); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, ErrTruncatedHeader
			}
			return nil, fmt.Errorf("read header: %w", err)
		}
		return header, nil
	})
}

// ParseFile parses the top-level boxes of an open file.
func ParseFile(f *os.File) ([]Atom, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", f.Name(), err)
	}
	return ParseTopLevel(f, info.Size())
}

// ParseChildren applies the top-level algorithm to buf[start:end], typically
// the payload of an already loaded parent such as moov. Offsets in the result
// are relative to buf.
func ParseChildren(buf []byte, start, end int) ([]Atom, error) {
	if start < 0 || end > len(buf) || start > end {
		return nil, &ParseError{
			Offset: uint64(max(start, 0)),
			Err:    fmt.Errorf("%w: child range [%d, %d) outside buffer of %d bytes", ErrInvalidSize, start, end, len(buf)),
		}
	}
	return scan(uint64(start), uint64(end), func(off uint64, n int) ([]byte, error) {
		return buf[off : off+uint64(n)], nil
	})
}

// Build serializes a standard box with a 32-bit size field.
func Build(typ string, payload []byte) ([]byte, error) {
	if len(typ) != 4 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, typ)
	}
	out, err := newBox(typ, uint64(len(payload)))
	if err != nil {
		return nil, err
	}
	copy(out[headerSize:], payload)
	return out, nil
}

// BuildUUID serializes a uuid box whose payload starts with XMPUUID, marking
// it as the XMP metadata box rather than an arbitrary vendor uuid box.
func BuildUUID(payload []byte) ([]byte, error) {
	out, err := newBox(TypeUUID, uint64(len(XMPUUID))+uint64(len(payload)))
	if err != nil {
		return nil, err
	}
	copy(out[headerSize:], XMPUUID[:])
	copy(out[headerSize+len(XMPUUID):], payload)
	return out, nil
}

func newBox(typ string, payloadLen uint64) ([]byte, error) {
	total := headerSize + payloadLen
	if payloadLen > maxBoxSize || total > maxBoxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, total)
	}
	out := make([]byte, total)
	binary.BigEndian.PutUint32(out[0:4], uint32(total))
	copy(out[4:8], typ)
	return out, nil
}

// Header serializes only the header of a box whose total size is boxSize.
// Sizes above 4 GiB use the 64-bit extended form. Callers write the
// boxSize-len(header) payload bytes themselves.
func Header(typ string, boxSize uint64) ([]byte, error) {
	if len(typ) != 4 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, typ)
	}
	if boxSize > math.MaxUint32 {
		out := make([]byte, extendedHeaderSize)
		binary.BigEndian.PutUint32(out[0:4], 1)
		copy(out[4:8], typ)
		binary.BigEndian.PutUint64(out[8:16], boxSize)
		return out, nil
	}
	if boxSize < headerSize {
		return nil, fmt.Errorf("%w: %d bytes is smaller than a header", ErrInvalidSize, boxSize)
	}
	out := make([]byte, headerSize)
	binary.BigEndian.PutUint32(out[0:4], uint32(boxSize))
	copy(out[4:8], typ)
	return out, nil
}
