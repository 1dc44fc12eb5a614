package proto

import (
	"io"

	"github.com/buildpipe/netcopy/internal/nerrors"
	"github.com/klauspost/compress/zstd"
)

// maxDictSize bounds how much of a reference file netcopy will load
// into memory to use as a zstd dictionary. Reference files bigger than
// this fall back to a full Copy rather than a delta, since the whole
// point of delta compression is saving bandwidth on files this system
// expects to be "the same build artifact, slightly different" — not
// multi-gigabyte blobs.
const maxDictSize = 256 << 20

// EncodeDelta implements the spec's "prefix-referenced Zstandard
// stream" delta option (§4.1, §6 GLOSSARY "Delta compression"): it
// reads all of reference into memory as a dictionary, then streams
// target compressed against that dictionary as ordinary block frames.
// patch(reference, EncodeDelta(reference, target)) reconstructs target
// bytewise regardless of which of the two is larger (§8).
func EncodeDelta(w io.Writer, reference io.Reader, target io.Reader) error {
	dict, err := readDict(reference)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(blockFrameWriter{w}, zstd.WithEncoderDict(dict))
	if err != nil {
		return nerrors.NewIoError(nerrors.IoOther, "", err)
	}
	if _, err := io.Copy(enc, target); err != nil {
		_ = enc.Close()
		return nerrors.NewIoError(nerrors.IoOther, "", err)
	}
	if err := enc.Close(); err != nil {
		return nerrors.NewIoError(nerrors.IoOther, "", err)
	}
	return writeUint32(w, 0)
}

// DecodePatch reconstructs the target file by decompressing the
// delta-block stream read from r against reference, writing the result
// to dst.
func DecodePatch(dst io.Writer, reference io.Reader, r io.Reader) error {
	dict, err := readDict(reference)
	if err != nil {
		return err
	}
	dec, err := zstd.NewReader(&blockFrameReader{r: r}, zstd.WithDecoderDicts(dict))
	if err != nil {
		return nerrors.NewIoError(nerrors.IoOther, "", err)
	}
	defer dec.Close()
	if _, err := io.Copy(dst, dec); err != nil && err != io.EOF {
		return nerrors.NewIoError(nerrors.IoOther, "", err)
	}
	return nil
}

func readDict(reference io.Reader) ([]byte, error) {
	limited := io.LimitReader(reference, maxDictSize+1)
	dict, err := io.ReadAll(limited)
	if err != nil {
		return nil, nerrors.NewIoError(nerrors.IoOther, "", err)
	}
	if len(dict) > maxDictSize {
		return nil, nerrors.NewProtocolError("reference file exceeds delta dictionary size cap")
	}
	return dict, nil
}
