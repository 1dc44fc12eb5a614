package proto

import (
	"bytes"
	"io"
)

// RequestReportCommand asks the server for a human-readable status
// string (§4.2; backs the out-of-scope /STATS CLI).
type RequestReportCommand struct{}

func (c RequestReportCommand) Encode() ([]byte, error) { return nil, nil }

func SendRequestReportCommand(w io.Writer) error {
	return WriteCommand(w, KindRequestReport, nil)
}

// ReportResponse carries the report text itself.
type ReportResponse struct {
	Text string
}

func (r ReportResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeString(&buf, r.Text); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func SendReportResponse(w io.Writer, r ReportResponse) error {
	payload, err := r.Encode()
	if err != nil {
		return err
	}
	return writeFull(w, payload)
}

func ReadReportResponse(r io.Reader) (ReportResponse, error) {
	text, err := readString(r)
	if err != nil {
		return ReportResponse{}, err
	}
	return ReportResponse{Text: text}, nil
}
