package proto

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestWriteResponseRoundTrip(t *testing.T) {
	for _, resp := range []WriteResponse{
		WriteResponseCopy, WriteResponseCopyUsingSmb, WriteResponseCopyDelta,
		WriteResponseLink, WriteResponseOdx, WriteResponseSkip,
		WriteResponseHash, WriteResponseBadDestination,
	} {
		var buf bytes.Buffer
		require.NoError(t, SendWriteResponse(&buf, resp))
		got, err := ReadWriteResponse(&buf)
		require.NoError(t, err)
		require.Equal(t, resp, got)
		require.NotEqual(t, "Unknown", resp.String())
	}
}

func TestWriteOutcomeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SendWriteOutcome(&buf, true))
	ok, err := ReadWriteOutcome(&buf)
	require.NoError(t, err)
	require.True(t, ok)

	buf.Reset()
	require.NoError(t, SendWriteOutcome(&buf, false))
	ok, err = ReadWriteOutcome(&buf)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReadFileCommandRoundTrip(t *testing.T) {
	cmd := ReadFileCommand{CompressionLevel: CompressionLevelDynamic, Path: "builds/out.bin"}
	cmd.Info.Size = 9000

	payload, err := cmd.Encode()
	require.NoError(t, err)
	got, err := DecodeReadFileCommand(bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, cmd, got)
}

func TestReadResponseRoundTrip(t *testing.T) {
	for _, resp := range []ReadResponse{
		ReadResponseCopy, ReadResponseCopyUsingSmb, ReadResponseCopyDelta,
		ReadResponseSkip, ReadResponseServerBusy, ReadResponseBadSource, ReadResponseHash,
	} {
		var buf bytes.Buffer
		require.NoError(t, SendReadResponse(&buf, resp))
		got, err := ReadReadResponse(&buf)
		require.NoError(t, err)
		require.Equal(t, resp, got)
		require.NotEqual(t, "Unknown", resp.String())
	}
}

func TestDeleteFilesRoundTrip(t *testing.T) {
	cmd := DeleteFilesCommand{Path: "stale/artifacts"}
	payload, err := cmd.Encode()
	require.NoError(t, err)
	got, err := DecodeDeleteFilesCommand(bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, cmd, got)

	var buf bytes.Buffer
	require.NoError(t, SendDeleteFilesResponse(&buf, DeleteFilesResponseSuccess))
	gotResp, err := ReadDeleteFilesResponse(&buf)
	require.NoError(t, err)
	require.Equal(t, DeleteFilesResponseSuccess, gotResp)
}

func TestTextCommandRoundTrip(t *testing.T) {
	cmd := TextCommand{Text: "operator broadcast"}
	payload, err := cmd.Encode()
	require.NoError(t, err)
	got, err := DecodeTextCommand(bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, cmd, got)
}

func TestSecurityFileHandshakeRoundTrip(t *testing.T) {
	req := SecurityFileRequest{FilenameGUID: uuid.New()}
	payload, err := req.Encode()
	require.NoError(t, err)
	gotReq, err := DecodeSecurityFileRequest(bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, req, gotReq)

	resp := SecurityFileResponse{SecretGUID: uuid.New()}
	payload, err = resp.Encode()
	require.NoError(t, err)
	gotResp, err := DecodeSecurityFileResponse(bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, resp, gotResp)
}

func TestDoneFooterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SendDoneFooter(&buf, DoneFooter{CompressionLevelSum: 77}))
	got, err := ReadDoneFooter(&buf)
	require.NoError(t, err)
	require.Equal(t, uint64(77), got.CompressionLevelSum)
}

func TestReportResponseRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SendReportResponse(&buf, ReportResponse{Text: "5 files copied"}))
	got, err := ReadReportResponse(&buf)
	require.NoError(t, err)
	require.Equal(t, "5 files copied", got.Text)
}

func TestCompressionTunerStepsUpOnImprovingWeight(t *testing.T) {
	tuner := NewCompressionTuner()
	start := tuner.Level()

	// First call just seeds lastWeight; no level change yet.
	tuner.Observe(1000, 500, 10*time.Millisecond, 0)
	require.Equal(t, start, tuner.Level())

	// A much better weight (more saved per ms) should step the level up.
	tuner.Observe(1000, 100, 1*time.Millisecond, 0)
	require.NotEqual(t, start, tuner.Level())
}

func TestCompressionTunerNeverExceedsLadderBounds(t *testing.T) {
	tuner := NewCompressionTuner()
	for i := 0; i < 50; i++ {
		tuner.Observe(int64(1000+i), int64(100), time.Millisecond, 0)
	}
	require.Contains(t, tunerLevels, tuner.Level())
}
