package proto

import (
	"bytes"
	"io"
)

// DoneCommand tells the server the connection is finished; the server
// answers with a DoneFooter (§4.2's "Done" footer) and leaves its
// command loop.
type DoneCommand struct{}

func (c DoneCommand) Encode() ([]byte, error) { return nil, nil }

func SendDoneCommand(w io.Writer) error {
	return WriteCommand(w, KindDone, nil)
}

// DoneFooter is the server's reply to Done: the CompressionLevelSum of
// the server's stats.Counters, matching
// SendFileStats.compressionLevelSum in the original source
// (EACopyNetwork.h). No transfer path adds to that sum, and
// PeerConn.Close reads the footer and discards it.
type DoneFooter struct {
	CompressionLevelSum uint64
}

func (f DoneFooter) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeUint64(&buf, f.CompressionLevelSum); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func SendDoneFooter(w io.Writer, f DoneFooter) error {
	payload, err := f.Encode()
	if err != nil {
		return err
	}
	return writeFull(w, payload)
}

func ReadDoneFooter(r io.Reader) (DoneFooter, error) {
	var f DoneFooter
	sum, err := readUint64(r)
	if err != nil {
		return f, err
	}
	f.CompressionLevelSum = sum
	return f, nil
}
