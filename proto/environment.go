package proto

import (
	"bytes"
	"io"

	"github.com/google/uuid"
)

// EnvironmentCommand binds a connection to a session and a destination
// (or source) directory, per spec.md §4.2 and §6's wire shape.
type EnvironmentCommand struct {
	DeltaCompressionThreshold uint64
	ConnectionIndex           uint32
	MajorVersion              uint16
	MinorVersion              uint16
	SecretGUID                uuid.UUID
	NetDirectory              string
}

func (c EnvironmentCommand) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeUint64(&buf, c.DeltaCompressionThreshold); err != nil {
		return nil, err
	}
	if err := writeUint32(&buf, c.ConnectionIndex); err != nil {
		return nil, err
	}
	if err := writeUint16(&buf, c.MajorVersion); err != nil {
		return nil, err
	}
	if err := writeUint16(&buf, c.MinorVersion); err != nil {
		return nil, err
	}
	guidBytes, err := c.SecretGUID.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if err := writeFull(&buf, guidBytes); err != nil {
		return nil, err
	}
	if err := writeString(&buf, c.NetDirectory); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeEnvironmentCommand(r io.Reader) (EnvironmentCommand, error) {
	var c EnvironmentCommand
	var err error
	if c.DeltaCompressionThreshold, err = readUint64(r); err != nil {
		return c, err
	}
	if c.ConnectionIndex, err = readUint32(r); err != nil {
		return c, err
	}
	if c.MajorVersion, err = readUint16(r); err != nil {
		return c, err
	}
	if c.MinorVersion, err = readUint16(r); err != nil {
		return c, err
	}
	var guidBytes [16]byte
	if err := readFull(r, guidBytes[:]); err != nil {
		return c, err
	}
	if err := c.SecretGUID.UnmarshalBinary(guidBytes[:]); err != nil {
		return c, err
	}
	if c.NetDirectory, err = readString(r); err != nil {
		return c, err
	}
	return c, nil
}

// SendEnvironment frames and sends an EnvironmentCommand.
func SendEnvironment(w io.Writer, c EnvironmentCommand) error {
	payload, err := c.Encode()
	if err != nil {
		return err
	}
	return WriteCommand(w, KindEnvironment, payload)
}

// SecurityFileRequest/Response are the two small messages exchanged
// during the security-file handshake (§4.2): the server sends the
// filename GUID it created, the client reads that file and echoes its
// contents (the secret GUID) back.
type SecurityFileRequest struct {
	FilenameGUID uuid.UUID
}

func (c SecurityFileRequest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	b, err := c.FilenameGUID.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if err := writeFull(&buf, b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeSecurityFileRequest(r io.Reader) (SecurityFileRequest, error) {
	var c SecurityFileRequest
	var b [16]byte
	if err := readFull(r, b[:]); err != nil {
		return c, err
	}
	if err := c.FilenameGUID.UnmarshalBinary(b[:]); err != nil {
		return c, err
	}
	return c, nil
}

type SecurityFileResponse struct {
	SecretGUID uuid.UUID
}

func (c SecurityFileResponse) Encode() ([]byte, error) {
	b, err := c.SecretGUID.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return b, nil
}

func DecodeSecurityFileResponse(r io.Reader) (SecurityFileResponse, error) {
	var c SecurityFileResponse
	var b [16]byte
	if err := readFull(r, b[:]); err != nil {
		return c, err
	}
	if err := c.SecretGUID.UnmarshalBinary(b[:]); err != nil {
		return c, err
	}
	return c, nil
}

// SendSecurityFileRequest and ReadSecurityFileRequest exchange the
// handshake's two small fixed-size messages directly over the
// connection, unframed by WriteCommand/ReadCommand: they are a
// sub-exchange nested inside the Environment step (§4.2), not
// top-level commands with their own Kind.
func SendSecurityFileRequest(w io.Writer, c SecurityFileRequest) error {
	payload, err := c.Encode()
	if err != nil {
		return err
	}
	return writeFull(w, payload)
}

func ReadSecurityFileRequest(r io.Reader) (SecurityFileRequest, error) {
	return DecodeSecurityFileRequest(r)
}

func SendSecurityFileResponse(w io.Writer, c SecurityFileResponse) error {
	payload, err := c.Encode()
	if err != nil {
		return err
	}
	return writeFull(w, payload)
}

func ReadSecurityFileResponse(r io.Reader) (SecurityFileResponse, error) {
	return DecodeSecurityFileResponse(r)
}
