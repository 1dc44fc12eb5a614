package proto

import (
	"bytes"
	"io"

	"github.com/buildpipe/netcopy/internal/filedb"
)

// ReadFileCommand asks the server to send path to the client.
type ReadFileCommand struct {
	CompressionLevel uint8
	Info             filedb.FileInfo
	Path             string
}

func (c ReadFileCommand) Encode() ([]byte, error) {
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

func DecodeReadFileCommand(r io.Reader) (ReadFileCommand, error) {
	var c ReadFileCommand
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

func SendReadFileCommand(w io.Writer, c ReadFileCommand) error {
	payload, err := c.Encode()
	if err != nil {
		return err
	}
	return WriteCommand(w, KindReadFile, payload)
}

// ReadResponse is the server's decision for a ReadFile request, per
// spec.md §4.2.
type ReadResponse byte

const (
	ReadResponseCopy ReadResponse = iota
	ReadResponseCopyUsingSmb
	ReadResponseCopyDelta
	ReadResponseSkip
	ReadResponseServerBusy
	ReadResponseBadSource
	ReadResponseHash
)

func (r ReadResponse) String() string {
	switch r {
	case ReadResponseCopy:
		return "Copy"
	case ReadResponseCopyUsingSmb:
		return "CopyUsingSmb"
	case ReadResponseCopyDelta:
		return "CopyDelta"
	case ReadResponseSkip:
		return "Skip"
	case ReadResponseServerBusy:
		return "ServerBusy"
	case ReadResponseBadSource:
		return "BadSource"
	case ReadResponseHash:
		return "Hash"
	default:
		return "Unknown"
	}
}

func SendReadResponse(w io.Writer, resp ReadResponse) error {
	return writeByte(w, byte(resp))
}

func ReadReadResponse(r io.Reader) (ReadResponse, error) {
	b, err := readByteVal(r)
	return ReadResponse(b), err
}
