package proto

import (
	"io"

	"github.com/buildpipe/netcopy/internal/nerrors"
	"github.com/klauspost/compress/zstd"
)

// maxBlockSize bounds a single block frame; a block_size above the
// receive buffer cap is a protocol error (§6).
const maxBlockSize = 64 << 20

// WriteBlocks writes r's content as a sequence of {block_size:u32,
// bytes} frames terminated by block_size=0 (§4.1). Each Read() from r
// becomes one block, whatever size the caller's buffer is — callers
// that want specific chunk sizes (hashsum.ChunkSize, 8 MiB) should wrap
// r accordingly before calling this.
func WriteBlocks(w io.Writer, r io.Reader, buf []byte) error {
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if err := writeUint32(w, uint32(n)); err != nil {
				return err
			}
			if err := writeFull(w, buf[:n]); err != nil {
				return err
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nerrors.NewIoError(nerrors.IoOther, "", err)
		}
	}
	return writeUint32(w, 0)
}

// ReadBlocks reads a sequence of block frames from r and writes their
// payload to dst until the block_size=0 terminator.
func ReadBlocks(dst io.Writer, r io.Reader) error {
	for {
		size, err := readUint32(r)
		if err != nil {
			return err
		}
		if size == 0 {
			return nil
		}
		if size > maxBlockSize {
			return nerrors.NewProtocolError("block frame too large: %d bytes", size)
		}
		if _, err := io.CopyN(dst, r, int64(size)); err != nil {
			if err == io.EOF {
				return nerrors.NewProtocolError("connection closed mid-block")
			}
			return nerrors.NewNetworkError(nerrors.NetOther, err)
		}
	}
}

// WriteCompressedBlocks feeds r through a zstd encoder whose output goes
// into block frames (blockFrameWriter), ending with the block_size=0
// terminator: the producer emits whatever the compressor yields per
// input chunk, exactly the
// block semantics §4.1 specifies ("the producer emits whatever the
// compressor yields per input chunk").
func WriteCompressedBlocks(w io.Writer, r io.Reader, level zstd.EncoderLevel) error {
	enc, err := zstd.NewWriter(blockFrameWriter{w}, zstd.WithEncoderLevel(level))
	if err != nil {
		return nerrors.NewIoError(nerrors.IoOther, "", err)
	}
	if _, err := io.Copy(enc, r); err != nil {
		_ = enc.Close()
		return nerrors.NewIoError(nerrors.IoOther, "", err)
	}
	if err := enc.Close(); err != nil {
		return nerrors.NewIoError(nerrors.IoOther, "", err)
	}
	return writeUint32(w, 0)
}

// ReadCompressedBlocks reads block frames from r, decompresses them
// with zstd, and writes the plaintext to dst. "the receiver feeds the
// decompressor until it signals end-of-stream" (§4.1).
func ReadCompressedBlocks(dst io.Writer, r io.Reader) error {
	dec, err := zstd.NewReader(&blockFrameReader{r: r})
	if err != nil {
		return nerrors.NewIoError(nerrors.IoOther, "", err)
	}
	defer dec.Close()
	if _, err := io.Copy(dst, dec); err != nil && err != io.EOF {
		return nerrors.NewIoError(nerrors.IoOther, "", err)
	}
	return nil
}

// blockFrameWriter adapts an io.Writer into the {block_size, bytes}
// framing, one frame per Write call — zstd.Writer calls Write with
// whatever chunk size its internal buffering produces, which is
// exactly the "whatever the compressor yields" contract.
type blockFrameWriter struct{ w io.Writer }

func (b blockFrameWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := writeUint32(b.w, uint32(len(p))); err != nil {
		return 0, err
	}
	if err := writeFull(b.w, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// blockFrameReader adapts the block-framed wire format back into a
// plain io.Reader the zstd decoder can consume, buffering any leftover
// bytes from a frame that was larger than the caller's read request.
type blockFrameReader struct {
	r       io.Reader
	pending []byte
	done    bool
}

func (b *blockFrameReader) Read(p []byte) (int, error) {
	if len(b.pending) > 0 {
		n := copy(p, b.pending)
		b.pending = b.pending[n:]
		return n, nil
	}
	if b.done {
		return 0, io.EOF
	}
	size, err := readUint32(b.r)
	if err != nil {
		return 0, err
	}
	if size == 0 {
		b.done = true
		return 0, io.EOF
	}
	if size > maxBlockSize {
		return 0, nerrors.NewProtocolError("block frame too large: %d bytes", size)
	}
	buf := make([]byte, size)
	if err := readFull(b.r, buf); err != nil {
		return 0, err
	}
	n := copy(p, buf)
	if n < len(buf) {
		b.pending = buf[n:]
	}
	return n, nil
}
