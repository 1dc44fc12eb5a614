package proto

import (
	"io"

	"github.com/buildpipe/netcopy/internal/filedb"
)

// encodeFileInfo writes the wire-exact 24-byte FileInfo: creation_time,
// last_write_time (both FileTime, compared bitwise per spec.md §3),
// then size — all u64.
func encodeFileInfo(w io.Writer, info filedb.FileInfo) error {
	if err := writeUint64(w, uint64(info.CreationTime)); err != nil {
		return err
	}
	if err := writeUint64(w, uint64(info.LastWriteTime)); err != nil {
		return err
	}
	return writeUint64(w, info.Size)
}

func decodeFileInfo(r io.Reader) (filedb.FileInfo, error) {
	ct, err := readUint64(r)
	if err != nil {
		return filedb.FileInfo{}, err
	}
	lwt, err := readUint64(r)
	if err != nil {
		return filedb.FileInfo{}, err
	}
	sz, err := readUint64(r)
	if err != nil {
		return filedb.FileInfo{}, err
	}
	return filedb.FileInfo{
		CreationTime:  filedb.FileTime(ct),
		LastWriteTime: filedb.FileTime(lwt),
		Size:          sz,
	}, nil
}

func encodeHash(w io.Writer, h filedb.Hash) error {
	return writeFull(w, h[:])
}

func decodeHash(r io.Reader) (filedb.Hash, error) {
	var h filedb.Hash
	if err := readFull(r, h[:]); err != nil {
		return filedb.Hash{}, err
	}
	return h, nil
}

// SendHash and ReadHash exchange the bare 16-byte content hash the
// client sends unframed in response to a Hash WriteResponse/ReadResponse
// (§4.2 steps 5/4.6 "the client computes it ... the server then probes
// by_hash").
func SendHash(w io.Writer, h filedb.Hash) error { return encodeHash(w, h) }

func ReadHash(r io.Reader) (filedb.Hash, error) { return decodeHash(r) }
