package proto

import (
	"bytes"
	"io"

	"github.com/buildpipe/netcopy/internal/nerrors"
)

// Kind is the single-byte command discriminator, spec.md §4.1's
// CommandType.
type Kind byte

const (
	KindVersion Kind = iota
	KindText
	KindWriteFile
	KindReadFile
	KindCreateDir
	KindEnvironment
	KindDeleteFiles
	KindDone
	KindRequestReport
	KindFindFiles
	KindGetFileInfo
)

func (k Kind) String() string {
	switch k {
	case KindVersion:
		return "Version"
	case KindText:
		return "Text"
	case KindWriteFile:
		return "WriteFile"
	case KindReadFile:
		return "ReadFile"
	case KindCreateDir:
		return "CreateDir"
	case KindEnvironment:
		return "Environment"
	case KindDeleteFiles:
		return "DeleteFiles"
	case KindDone:
		return "Done"
	case KindRequestReport:
		return "RequestReport"
	case KindFindFiles:
		return "FindFiles"
	case KindGetFileInfo:
		return "GetFileInfo"
	default:
		return "Unknown"
	}
}

// maxFrameSize bounds total_size (kind byte + payload), independent of
// maxStringLen: a command frame carries at most one or two strings
// plus fixed fields, so this is a coarser backstop against a corrupt
// or hostile size prefix.
const maxFrameSize = 4 << 20

// WriteCommand frames kind+payload as {total_size:u32, kind:u8,
// payload...} and sends it all-or-nothing.
func WriteCommand(w io.Writer, kind Kind, payload []byte) error {
	total := uint32(1 + len(payload))
	if err := writeUint32(w, total); err != nil {
		return err
	}
	if err := writeByte(w, byte(kind)); err != nil {
		return err
	}
	return writeFull(w, payload)
}

// ReadCommand reads one framed command, returning its kind and a
// reader positioned at the start of its kind-specific payload. The
// reader trusts total_size to know exactly how much to read, per
// §4.1's "the reader dispatches on kind and trusts total_size to
// advance the buffer" — any command-specific decoder that tries to
// read past the end of payload gets io.EOF, not data from the next
// frame.
func ReadCommand(r io.Reader) (Kind, io.Reader, error) {
	total, err := readUint32(r)
	if err != nil {
		return 0, nil, err
	}
	if total == 0 || total > maxFrameSize {
		return 0, nil, nerrors.NewProtocolError("oversize or empty frame: %d bytes", total)
	}
	buf := make([]byte, total)
	if err := readFull(r, buf); err != nil {
		return 0, nil, err
	}
	return Kind(buf[0]), bytes.NewReader(buf[1:]), nil
}
