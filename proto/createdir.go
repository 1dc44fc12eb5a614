package proto

import (
	"bytes"
	"io"
)

// CreateDirCommand asks the server to ensure path exists.
type CreateDirCommand struct {
	Path string
}

func (c CreateDirCommand) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeString(&buf, c.Path); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeCreateDirCommand(r io.Reader) (CreateDirCommand, error) {
	var c CreateDirCommand
	path, err := readString(r)
	if err != nil {
		return c, err
	}
	c.Path = path
	return c, nil
}

func SendCreateDirCommand(w io.Writer, c CreateDirCommand) error {
	payload, err := c.Encode()
	if err != nil {
		return err
	}
	return WriteCommand(w, KindCreateDir, payload)
}

// CreateDirResponse overloads its byte: 0 is BadDestination, 1 is
// Error, and values >= 2 encode SuccessExisted + createdCount (capped
// at 200 per spec.md §4.2, so the whole range fits in one byte).
type CreateDirResponse byte

const (
	CreateDirResponseBadDestination CreateDirResponse = 0
	CreateDirResponseError          CreateDirResponse = 1
	createDirResponseSuccessBase    CreateDirResponse = 2
)

// EncodeCreateDirSuccess packs a freshly-created-directory-levels count
// into the overloaded response byte.
func EncodeCreateDirSuccess(createdLevels int) CreateDirResponse {
	if createdLevels < 0 {
		createdLevels = 0
	}
	if createdLevels > 200 {
		createdLevels = 200
	}
	return createDirResponseSuccessBase + CreateDirResponse(createdLevels)
}

// IsSuccess reports whether r encodes a success, and if so the created
// directory-level count.
func (r CreateDirResponse) IsSuccess() (created int, ok bool) {
	if r < createDirResponseSuccessBase {
		return 0, false
	}
	return int(r - createDirResponseSuccessBase), true
}

func SendCreateDirResponse(w io.Writer, resp CreateDirResponse) error {
	return writeByte(w, byte(resp))
}

func ReadCreateDirResponse(r io.Reader) (CreateDirResponse, error) {
	b, err := readByteVal(r)
	return CreateDirResponse(b), err
}
