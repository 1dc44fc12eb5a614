package proto

import (
	"bytes"
	"io"

	"github.com/buildpipe/netcopy/internal/filedb"
)

// GetFileInfoCommand asks the server to stat a single path.
type GetFileInfoCommand struct {
	Path string
}

func (c GetFileInfoCommand) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeString(&buf, c.Path); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeGetFileInfoCommand(r io.Reader) (GetFileInfoCommand, error) {
	path, err := readString(r)
	if err != nil {
		return GetFileInfoCommand{}, err
	}
	return GetFileInfoCommand{Path: path}, nil
}

func SendGetFileInfoCommand(w io.Writer, c GetFileInfoCommand) error {
	payload, err := c.Encode()
	if err != nil {
		return err
	}
	return WriteCommand(w, KindGetFileInfo, payload)
}

// GetFileInfoResponse reports whether path existed and, if so, its
// FileInfo. It is framed as a single block the way FindFiles is, for
// consistency with that command even though its payload is fixed-size.
type GetFileInfoResponse struct {
	Exists bool
	Info   filedb.FileInfo
}

func SendGetFileInfoResponse(w io.Writer, resp GetFileInfoResponse) error {
	var buf bytes.Buffer
	exists := byte(0)
	if resp.Exists {
		exists = 1
	}
	if err := writeByte(&buf, exists); err != nil {
		return err
	}
	if err := encodeFileInfo(&buf, resp.Info); err != nil {
		return err
	}
	return WriteBlocks(w, &buf, make([]byte, 64))
}

func ReadGetFileInfoResponse(r io.Reader) (GetFileInfoResponse, error) {
	var buf bytes.Buffer
	if err := ReadBlocks(&buf, r); err != nil {
		return GetFileInfoResponse{}, err
	}
	existsByte, err := readByteVal(&buf)
	if err != nil {
		return GetFileInfoResponse{}, err
	}
	info, err := decodeFileInfo(&buf)
	if err != nil {
		return GetFileInfoResponse{}, err
	}
	return GetFileInfoResponse{Exists: existsByte != 0, Info: info}, nil
}
