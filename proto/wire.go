// Package proto implements the length-prefixed command framing, the
// block-chunked compressed transport, the delta transport, and every
// command/response shape of spec.md §4.1/§4.2/§6.
//
// Wire semantics (field order, response enum values, the
// length-prefix-then-kind-byte framing) are grounded on
// original_source/include/EACopyNetwork.h and EACopyShared.h — not
// copied as text, since that header is C++ describing Windows wchar_t
// wire types net copy has no use for. One adaptation is recorded here:
// every variable-length string field (paths, the version info string,
// the net directory) is encoded as a uint32 byte-length prefix
// followed by UTF-8 bytes, not a uint16 UTF-16 code-unit count — Go's
// string type is UTF-8 natively and this repo targets both Windows and
// Unix shares, so there is no wchar_t on the wire to match.
package proto

import (
	"encoding/binary"
	"io"

	"github.com/buildpipe/netcopy/internal/nerrors"
)

var byteOrder = binary.LittleEndian

func writeUint32(w io.Writer, v uint32) error {
	var b [4]byte
	byteOrder.PutUint32(b[:], v)
	return writeFull(w, b[:])
}

func writeUint64(w io.Writer, v uint64) error {
	var b [8]byte
	byteOrder.PutUint64(b[:], v)
	return writeFull(w, b[:])
}

func writeUint16(w io.Writer, v uint16) error {
	var b [2]byte
	byteOrder.PutUint16(b[:], v)
	return writeFull(w, b[:])
}

func writeByte(w io.Writer, v byte) error {
	return writeFull(w, []byte{v})
}

func writeString(w io.Writer, s string) error {
	if err := writeUint32(w, uint32(len(s))); err != nil {
		return err
	}
	return writeFull(w, []byte(s))
}

// writeFull loops on short writes (§4.1 "Sends are all-or-nothing:
// short writes loop; on error the connection is poisoned").
func writeFull(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return nerrors.NewNetworkError(nerrors.NetOther, err)
		}
		b = b[n:]
	}
	return nil
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if err := readFull(r, b[:]); err != nil {
		return 0, err
	}
	return byteOrder.Uint32(b[:]), nil
}

func readUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if err := readFull(r, b[:]); err != nil {
		return 0, err
	}
	return byteOrder.Uint64(b[:]), nil
}

func readUint16(r io.Reader) (uint16, error) {
	var b [2]byte
	if err := readFull(r, b[:]); err != nil {
		return 0, err
	}
	return byteOrder.Uint16(b[:]), nil
}

func readByteVal(r io.Reader) (byte, error) {
	var b [1]byte
	if err := readFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// maxStringLen bounds any single string field read off the wire; a
// value above it is a protocol error, the Go analogue of "values above
// a receive buffer cap are a protocol error" (§6, stated there for
// block frames but applied uniformly to every length-prefixed field).
const maxStringLen = 1 << 20

func readString(r io.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	if n > maxStringLen {
		return "", nerrors.NewProtocolError("string field too large: %d bytes", n)
	}
	b := make([]byte, n)
	if err := readFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// readFull uses block-until-N semantics; 0 bytes read before any data
// arrives means an orderly peer close, surfaced as NetClosed rather
// than a generic error, per §4.1.
func readFull(r io.Reader, b []byte) error {
	_, err := io.ReadFull(r, b)
	if err == nil {
		return nil
	}
	if err == io.EOF {
		return nerrors.NewNetworkError(nerrors.NetClosed, err)
	}
	if err == io.ErrUnexpectedEOF {
		return nerrors.NewProtocolError("connection closed mid-frame")
	}
	return nerrors.NewNetworkError(nerrors.NetOther, err)
}
