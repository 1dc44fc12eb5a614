package proto

import (
	"bytes"
	"io"
)

// TextCommand carries a free-form message from client to server. The
// original notes it is "currently not used but can be used to
// communicate message to server from client" (EACopyNetwork.h);
// netcopy keeps it wired for forward compatibility with out-of-scope
// CLI features (e.g. an operator broadcasting a message into the
// session log) without giving it a required response.
type TextCommand struct {
	Text string
}

func (c TextCommand) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeString(&buf, c.Text); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeTextCommand(r io.Reader) (TextCommand, error) {
	text, err := readString(r)
	if err != nil {
		return TextCommand{}, err
	}
	return TextCommand{Text: text}, nil
}

func SendTextCommand(w io.Writer, c TextCommand) error {
	payload, err := c.Encode()
	if err != nil {
		return err
	}
	return WriteCommand(w, KindText, payload)
}
