package proto

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommandRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	cmd := VersionCommand{ProtocolVersion: ProtocolVersion, Flags: FlagUseSecurityFile, Info: "netcopy-test"}
	payload, err := cmd.Encode()
	require.NoError(t, err)
	require.NoError(t, WriteCommand(&buf, KindVersion, payload))

	kind, r, err := ReadCommand(&buf)
	require.NoError(t, err)
	require.Equal(t, KindVersion, kind)

	got, err := DecodeVersionCommand(r)
	require.NoError(t, err)
	require.Equal(t, cmd, got)
}

func TestReadCommandRejectsOversizeFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeUint32(&buf, maxFrameSize+1))
	_, _, err := ReadCommand(&buf)
	require.Error(t, err)
}

func TestReadCommandRejectsZeroSizeFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeUint32(&buf, 0))
	_, _, err := ReadCommand(&buf)
	require.Error(t, err)
}

func TestEnvironmentCommandRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	cmd := EnvironmentCommand{
		DeltaCompressionThreshold: DefaultDeltaCompressionThreshold,
		ConnectionIndex:           2,
		MajorVersion:              1,
		MinorVersion:              0,
		NetDirectory:              `\\server\share\dest`,
	}
	payload, err := cmd.Encode()
	require.NoError(t, err)
	require.NoError(t, WriteCommand(&buf, KindEnvironment, payload))

	kind, r, err := ReadCommand(&buf)
	require.NoError(t, err)
	require.Equal(t, KindEnvironment, kind)
	got, err := DecodeEnvironmentCommand(r)
	require.NoError(t, err)
	require.Equal(t, cmd.NetDirectory, got.NetDirectory)
	require.Equal(t, cmd.DeltaCompressionThreshold, got.DeltaCompressionThreshold)
}

func TestWriteFileCommandRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	cmd := WriteFileCommand{CompressionLevel: 5, Path: "Foo.txt"}
	cmd.Info.Size = 123

	payload, err := cmd.Encode()
	require.NoError(t, err)
	require.NoError(t, WriteCommand(&buf, KindWriteFile, payload))

	kind, r, err := ReadCommand(&buf)
	require.NoError(t, err)
	require.Equal(t, KindWriteFile, kind)
	got, err := DecodeWriteFileCommand(r)
	require.NoError(t, err)
	require.Equal(t, cmd, got)
}

func TestCreateDirResponseOverload(t *testing.T) {
	require.Equal(t, CreateDirResponseBadDestination, CreateDirResponse(0))
	require.Equal(t, CreateDirResponseError, CreateDirResponse(1))

	resp := EncodeCreateDirSuccess(5)
	created, ok := resp.IsSuccess()
	require.True(t, ok)
	require.Equal(t, 5, created)

	_, ok = CreateDirResponseBadDestination.IsSuccess()
	require.False(t, ok)
}

func TestCreateDirResponseCapsAt200(t *testing.T) {
	resp := EncodeCreateDirSuccess(10000)
	created, ok := resp.IsSuccess()
	require.True(t, ok)
	require.Equal(t, 200, created)
}

func TestReadCommandDoesNotOverrunIntoNextFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SendDoneCommand(&buf))
	require.NoError(t, SendRequestReportCommand(&buf))

	kind, r, err := ReadCommand(&buf)
	require.NoError(t, err)
	require.Equal(t, KindDone, kind)
	// Done has no payload; reading from r must hit EOF, never bytes
	// belonging to the next frame.
	b := make([]byte, 1)
	_, err = r.Read(b)
	require.ErrorIs(t, err, io.EOF)

	kind, _, err = ReadCommand(&buf)
	require.NoError(t, err)
	require.Equal(t, KindRequestReport, kind)
}
