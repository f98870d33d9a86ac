package testsupport

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

// xmpUUIDHex mirrors atom.XMPUUID. It is duplicated so packages under test can
// use these fixtures from their internal tests without an import cycle.
const xmpUUIDHex = "be7acfcb97a942e89c71999491e3afac"

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	data := bytes.Repeat([]byte{0x42}, int(size))
	WriteBytes(t, path, data)
}

// WriteBytes writes data to path, creating parent directories.
func WriteBytes(t testing.TB, path string, data []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ReadBytes returns the contents of path or fails the test.
func ReadBytes(t testing.TB, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return data
}

// Box serializes a box with a 32-bit size from the concatenated payload parts.
func Box(typ string, payload ...[]byte) []byte {
	body := bytes.Join(payload, nil)
	out := make([]byte, 8, 8+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(8+len(body)))
	copy(out[4:8], typ)
	return append(out, body...)
}

// ExtendedBox serializes a box using the 64-bit extended size header.
func ExtendedBox(typ string, payload []byte) []byte {
	out := make([]byte, 16, 16+len(payload))
	binary.BigEndian.PutUint32(out[0:4], 1)
	copy(out[4:8], typ)
	binary.BigEndian.PutUint64(out[8:16], uint64(16+len(payload)))
	return append(out, payload...)
}

// XMPPacket wraps body in an xpacket envelope.
func XMPPacket(body string) []byte {
	return []byte(`<?xpacket begin="" id="W5M0MpCehiHzreSzNTczkc9d"?>` +
		`<x:xmpmeta xmlns:x="adobe:ns:meta/">` + body + `</x:xmpmeta>` +
		`<?xpacket end="w"?>`)
}

// XMPUUIDBox builds a top-level uuid box carrying packet.
func XMPUUIDBox(packet []byte) []byte {
	id, _ := hex.DecodeString(xmpUUIDHex)
	return Box("uuid", id, packet)
}

// MinimalMP4 returns a small but well-formed ftyp/moov/mdat layout.
func MinimalMP4() []byte {
	ftyp := Box("ftyp", []byte("isom"), []byte{0, 0, 2, 0}, []byte("isomiso2mp41"))
	mvhd := Box("mvhd", make([]byte, 100))
	moov := Box("moov", mvhd)
	mdat := Box("mdat", bytes.Repeat([]byte{0xAB}, 512))
	return bytes.Join([][]byte{ftyp, moov, mdat}, nil)
}

// WriteMP4 writes MinimalMP4 to path and returns the bytes written.
func WriteMP4(t testing.TB, path string) []byte {
	t.Helper()

	data := MinimalMP4()
	WriteBytes(t, path, data)
	return data
}
