package atom

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
)

// XMPUUID identifies the uuid box that carries an XMP packet. Adobe tools use
// the same value, so files embedded here remain readable by them.
var XMPUUID = uuid.MustParse("be7acfcb-97a9-42e8-9c71-999491e3afac")

var xpacketMarker = []byte("<?xpacket")

// Shape names where an XMP packet was found.
type Shape int

const (
	ShapeNone        Shape = iota
	ShapeUUID              // top-level uuid box tagged with XMPUUID
	ShapeTopLevelXMP       // top-level XMP_ box
	ShapeMoovUdta          // XMP_ or XMP uuid box under moov/udta
)

func (s Shape) String() string {
	switch s {
	case ShapeUUID:
		return "uuid"
	case ShapeTopLevelXMP:
		return "top-level XMP_"
	case ShapeMoovUdta:
		return "moov/udta"
	default:
		return "none"
	}
}

// IsXMPPayload reports whether a uuid box payload (everything after the
// header) starts with XMPUUID and contains an xpacket processing instruction.
func IsXMPPayload(payload []byte) bool {
	if len(payload) < len(XMPUUID) {
		return false
	}
	if !bytes.Equal(payload[:len(XMPUUID)], XMPUUID[:]) {
		return false
	}
	return bytes.Contains(payload[len(XMPUUID):], xpacketMarker)
}

// IsXMPUUIDAtom reports whether box is a complete serialized XMP uuid box.
func IsXMPUUIDAtom(box []byte) bool {
	atoms, err := ParseChildren(box, 0, len(box))
	if err != nil || len(atoms) != 1 || atoms[0].Type != TypeUUID {
		return false
	}
	return IsXMPPayload(box[atoms[0].HeaderSize:])
}

// FindXMPUUID returns the index of the first top-level XMP uuid box in atoms,
// or -1 when there is none. Only the UUID prefix is read for foreign uuid
// boxes, so large vendor boxes are never loaded.
func FindXMPUUID(r io.ReaderAt, atoms []Atom) (int, error) {
	for i, a := range atoms {
		if a.Type != TypeUUID || a.PayloadSize() < uint64(len(XMPUUID)) {
			continue
		}
		var id uuid.UUID
		if _, err := r.ReadAt(id[:], int64(a.HeaderEnd())); err != nil {
			return -1, fmt.Errorf("read uuid at offset %d: %w", a.Offset, err)
		}
		if id != XMPUUID {
			continue
		}
		payload, err := readPayload(r, a)
		if err != nil {
			return -1, err
		}
		if IsXMPPayload(payload) {
			return i, nil
		}
	}
	return -1, nil
}

// Detect reports which XMP shape the file at path carries. Shapes are checked
// in order: top-level XMP uuid box, top-level XMP_ box, then moov/udta.
func Detect(path string) (Shape, error) {
	f, err := os.Open(path)
	if err != nil {
		return ShapeNone, err
	}
	defer f.Close()

	top, err := ParseFile(f)
	if err != nil {
		return ShapeNone, err
	}

	idx, err := FindXMPUUID(f, top)
	if err != nil {
		return ShapeNone, err
	}
	if idx >= 0 {
		return ShapeUUID, nil
	}

	for _, a := range top {
		if a.Type == TypeXMP {
			return ShapeTopLevelXMP, nil
		}
	}

	for _, a := range top {
		if a.Type != TypeMoov {
			continue
		}
		moov, err := readAtom(f, a)
		if err != nil {
			return ShapeNone, err
		}
		found, err := udtaHasXMP(moov, int(a.HeaderSize))
		if err != nil {
			return ShapeNone, fmt.Errorf("moov at offset %d: %w", a.Offset, err)
		}
		if found {
			return ShapeMoovUdta, nil
		}
	}
	return ShapeNone, nil
}

// HasXMP is the detection query: true when any supported XMP shape is present.
func HasXMP(path string) (bool, error) {
	shape, err := Detect(path)
	return shape != ShapeNone, err
}

func udtaHasXMP(moov []byte, headerLen int) (bool, error) {
	children, err := ParseChildren(moov, headerLen, len(moov))
	if err != nil {
		return false, err
	}
	for _, child := range children {
		if child.Type != TypeUdta {
			continue
		}
		entries, err := ParseChildren(moov, int(child.HeaderEnd()), int(child.End()))
		if err != nil {
			return false, err
		}
		for _, e := range entries {
			switch e.Type {
			case TypeXMP:
				return true, nil
			case TypeUUID:
				if IsXMPPayload(moov[e.HeaderEnd():e.End()]) {
					return true, nil
				}
			}
		}
	}
	return false, nil
}

func readAtom(r io.ReaderAt, a Atom) ([]byte, error) {
	buf := make([]byte, a.Size)
	if _, err := r.ReadAt(buf, int64(a.Offset)); err != nil {
		return nil, fmt.Errorf("read %s atom at offset %d: %w", a.Type, a.Offset, err)
	}
	return buf, nil
}

func readPayload(r io.ReaderAt, a Atom) ([]byte, error) {
	buf := make([]byte, a.PayloadSize())
	if _, err := r.ReadAt(buf, int64(a.HeaderEnd())); err != nil {
		return nil, fmt.Errorf("read %s payload at offset %d: %w", a.Type, a.Offset, err)
	}
	return buf, nil
}
