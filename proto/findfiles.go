package proto

import (
	"bytes"
	"encoding/gob"
	"io"

	"github.com/buildpipe/netcopy/filesystem"
)

// FindFilesCommand asks the server to enumerate dir (used when the
// source is a server, §4.5 processDir).
type FindFilesCommand struct {
	Path string
}

func (c FindFilesCommand) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeString(&buf, c.Path); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeFindFilesCommand(r io.Reader) (FindFilesCommand, error) {
	path, err := readString(r)
	if err != nil {
		return FindFilesCommand{}, err
	}
	return FindFilesCommand{Path: path}, nil
}

func SendFindFilesCommand(w io.Writer, c FindFilesCommand) error {
	payload, err := c.Encode()
	if err != nil {
		return err
	}
	return WriteCommand(w, KindFindFiles, payload)
}

// SendFindFilesResponse gob-encodes the enumerated entries and sends
// them as a single block-framed response (§4.2 "responses are framed
// blocks").
func SendFindFilesResponse(w io.Writer, entries []filesystem.Entry) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entries); err != nil {
		return err
	}
	return WriteBlocks(w, &buf, make([]byte, 64*1024))
}

func ReadFindFilesResponse(r io.Reader) ([]filesystem.Entry, error) {
	var buf bytes.Buffer
	if err := ReadBlocks(&buf, r); err != nil {
		return nil, err
	}
	var entries []filesystem.Entry
	if err := gob.NewDecoder(&buf).Decode(&entries); err != nil {
		return nil, err
	}
	return entries, nil
}
