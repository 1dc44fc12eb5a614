package proto

import (
	"bytes"
	"io"
)

// ProtocolVersion must match between client and server. On a mismatch
// DialPeer fails with a NetProtocolMismatch error, whatever the
// UseServer mode; there is no fallback to direct I/O.
const ProtocolVersion = 7

// DefaultPort is the default TCP port for client/server connections
// (spec.md §6).
const DefaultPort = 18099

// DefaultDeltaCompressionThreshold is the default file size (bytes)
// above which delta compression is considered (spec.md §6).
const DefaultDeltaCompressionThreshold = 1024 * 1024

// VersionFlags are the bits of VersionCommand.Flags.
type VersionFlags uint32

const (
	FlagUseSecurityFile VersionFlags = 1 << 0
)

// VersionCommand is the unsolicited first message the server sends
// after accepting a connection (§4.2).
type VersionCommand struct {
	ProtocolVersion uint32
	Flags           VersionFlags
	Info            string
}

func (c VersionCommand) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeUint32(&buf, c.ProtocolVersion); err != nil {
		return nil, err
	}
	if err := writeUint32(&buf, uint32(c.Flags)); err != nil {
		return nil, err
	}
	if err := writeString(&buf, c.Info); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeVersionCommand(r io.Reader) (VersionCommand, error) {
	var c VersionCommand
	pv, err := readUint32(r)
	if err != nil {
		return c, err
	}
	flags, err := readUint32(r)
	if err != nil {
		return c, err
	}
	info, err := readString(r)
	if err != nil {
		return c, err
	}
	c.ProtocolVersion = pv
	c.Flags = VersionFlags(flags)
	c.Info = info
	return c, nil
}

// SendVersion writes the unsolicited handshake frame (§4.2 "the server
// ... sends VersionCommand{protocol_version, info, flags} unsolicited").
func SendVersion(w io.Writer, c VersionCommand) error {
	payload, err := c.Encode()
	if err != nil {
		return err
	}
	return WriteCommand(w, KindVersion, payload)
}
