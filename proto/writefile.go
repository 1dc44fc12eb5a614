package proto

import (
	"bytes"
	"io"

	"github.com/buildpipe/netcopy/internal/filedb"
)

// WriteFileCommand asks the server to accept path with the given
// FileInfo. CompressionLevel follows the External Interfaces'
// "compression_level:u8" overload (§6): 0 means off, 1..22 a fixed
// zstd level, 255 means dynamic (auto-tuned, see proto.CompressionTuner).
type WriteFileCommand struct {
	CompressionLevel uint8
	Info             filedb.FileInfo
	Path             string
}

func (c WriteFileCommand) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeByte(&buf, c.CompressionLevel); err != nil {
		return nil, err
	}
	if err := encodeFileInfo(&buf, c.Info); err != nil {
		return nil, err
	}
	if err := writeString(&buf, c.Path); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeWriteFileCommand(r io.Reader) (WriteFileCommand, error) {
	var c WriteFileCommand
	lvl, err := readByteVal(r)
	if err != nil {
		return c, err
	}
	c.CompressionLevel = lvl
	if c.Info, err = decodeFileInfo(r); err != nil {
		return c, err
	}
	if c.Path, err = readString(r); err != nil {
		return c, err
	}
	return c, nil
}

func SendWriteFileCommand(w io.Writer, c WriteFileCommand) error {
	payload, err := c.Encode()
	if err != nil {
		return err
	}
	return WriteCommand(w, KindWriteFile, payload)
}

// WriteResponse is the server's single-byte decision for a WriteFile
// request, per spec.md §4.2's decision tree.
type WriteResponse byte

const (
	WriteResponseCopy WriteResponse = iota
	WriteResponseCopyUsingSmb
	WriteResponseCopyDelta
	WriteResponseLink
	WriteResponseOdx
	WriteResponseSkip
	WriteResponseHash
	WriteResponseBadDestination
)

func (r WriteResponse) String() string {
	switch r {
	case WriteResponseCopy:
		return "Copy"
	case WriteResponseCopyUsingSmb:
		return "CopyUsingSmb"
	case WriteResponseCopyDelta:
		return "CopyDelta"
	case WriteResponseLink:
		return "Link"
	case WriteResponseOdx:
		return "Odx"
	case WriteResponseSkip:
		return "Skip"
	case WriteResponseHash:
		return "Hash"
	case WriteResponseBadDestination:
		return "BadDestination"
	default:
		return "Unknown"
	}
}

func SendWriteResponse(w io.Writer, resp WriteResponse) error {
	return writeByte(w, byte(resp))
}

func ReadWriteResponse(r io.Reader) (WriteResponse, error) {
	b, err := readByteVal(r)
	return WriteResponse(b), err
}

// WriteOutcome is the single trailing success byte the server sends
// after it has finished receiving/positioning the file, per §4.2 ("...
// and returns a trailing success byte"). A zero value means failure
// (§7: "the server returns a zero success byte; the client treats this
// as one retry increment").
type WriteOutcome byte

const (
	WriteOutcomeFailure WriteOutcome = 0
	WriteOutcomeSuccess WriteOutcome = 1
)

func SendWriteOutcome(w io.Writer, ok bool) error {
	if ok {
		return writeByte(w, byte(WriteOutcomeSuccess))
	}
	return writeByte(w, byte(WriteOutcomeFailure))
}

func ReadWriteOutcome(r io.Reader) (bool, error) {
	b, err := readByteVal(r)
	if err != nil {
		return false, err
	}
	return WriteOutcome(b) == WriteOutcomeSuccess, nil
}
