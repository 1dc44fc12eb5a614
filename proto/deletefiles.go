package proto

import (
	"bytes"
	"io"
)

// DeleteFilesCommand tells the server to recursively delete everything
// under path (§4.2, §4.7's "single DeleteFiles request that deletes
// everything under the path").
type DeleteFilesCommand struct {
	Path string
}

func (c DeleteFilesCommand) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeString(&buf, c.Path); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeDeleteFilesCommand(r io.Reader) (DeleteFilesCommand, error) {
	var c DeleteFilesCommand
	path, err := readString(r)
	if err != nil {
		return c, err
	}
	c.Path = path
	return c, nil
}

func SendDeleteFilesCommand(w io.Writer, c DeleteFilesCommand) error {
	payload, err := c.Encode()
	if err != nil {
		return err
	}
	return WriteCommand(w, KindDeleteFiles, payload)
}

type DeleteFilesResponse byte

const (
	DeleteFilesResponseSuccess DeleteFilesResponse = iota
	DeleteFilesResponseError
	DeleteFilesResponseBadDestination
)

func SendDeleteFilesResponse(w io.Writer, resp DeleteFilesResponse) error {
	return writeByte(w, byte(resp))
}

func ReadDeleteFilesResponse(r io.Reader) (DeleteFilesResponse, error) {
	b, err := readByteVal(r)
	return DeleteFilesResponse(b), err
}
