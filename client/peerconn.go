// Package client implements the client work engine of spec.md §4.5:
// traversal, queueing, the per-file copy/skip/link/delta decision, the
// worker-thread pool, and retry. Grounded on the teacher's sync engine
// shape (fs/sync's march+transfer split) generalized to this domain's
// peer-server/local split, since no pack repo drives a hand-rolled
// length-prefixed TCP protocol of its own.
package client

import (
	"bytes"
	"io"
	"net"
	"path/filepath"
	"time"

	"github.com/buildpipe/netcopy/filesystem"
	"github.com/buildpipe/netcopy/internal/filedb"
	"github.com/buildpipe/netcopy/internal/hashsum"
	"github.com/buildpipe/netcopy/internal/nerrors"
	"github.com/buildpipe/netcopy/proto"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// PeerConn is the client's half of the mirror state machine described
// in §4.2 "Client Connection": receive Version, send Environment,
// optionally run the security-file proof, then issue WriteFile/
// ReadFile/CreateDir/DeleteFiles/FindFiles/GetFileInfo requests.
type PeerConn struct {
	conn         net.Conn
	fs           filesystem.FileSystem
	netDirectory string
	secretGUID   uuid.UUID
	tuner        *proto.CompressionTuner
}

// DialPeer connects to addr and performs the Version/Environment
// handshake for one connection. connectionIndex 0 is the controlling
// connection; workers use 1..N (§4.2, §4.4).
func DialPeer(addr string, fs filesystem.FileSystem, netDirectory string, connectionIndex uint32, secretGUID uuid.UUID, deltaThreshold uint64, useSecurityFile bool) (*PeerConn, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, nerrors.NewNetworkError(nerrors.NetOther, err)
	}
	pc := &PeerConn{conn: conn, fs: fs, netDirectory: netDirectory, secretGUID: secretGUID}

	version, err := proto.DecodeVersionCommand(mustFrame(pc.conn))
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if version.ProtocolVersion != proto.ProtocolVersion {
		_ = conn.Close()
		return nil, nerrors.NewNetworkError(nerrors.NetProtocolMismatch, nerrors.NewProtocolError("server protocol %d != client %d", version.ProtocolVersion, proto.ProtocolVersion))
	}

	if err := proto.SendEnvironment(conn, proto.EnvironmentCommand{
		DeltaCompressionThreshold: deltaThreshold,
		ConnectionIndex:           connectionIndex,
		MajorVersion:              proto.ProtocolVersion,
		SecretGUID:                secretGUID,
		NetDirectory:              netDirectory,
	}); err != nil {
		_ = conn.Close()
		return nil, err
	}

	if useSecurityFile && version.Flags&proto.FlagUseSecurityFile != 0 && secretGUID == (uuid.UUID{}) {
		req, err := proto.ReadSecurityFileRequest(conn)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		secretPath := filepath.Join(netDirectory, req.FilenameGUID.String()+".netcopy-secret")
		rh, err := fs.OpenRead(secretPath)
		if err != nil {
			_ = conn.Close()
			return nil, nerrors.NewFatal(err)
		}
		secretBytes, err := io.ReadAll(rh)
		_ = rh.Close()
		if err != nil {
			_ = conn.Close()
			return nil, nerrors.NewFatal(err)
		}
		var secret uuid.UUID
		if err := secret.UnmarshalBinary(secretBytes); err != nil {
			_ = conn.Close()
			return nil, nerrors.NewFatal(err)
		}
		if err := proto.SendSecurityFileResponse(conn, proto.SecurityFileResponse{SecretGUID: secret}); err != nil {
			_ = conn.Close()
			return nil, err
		}
		pc.secretGUID = secret
	}

	return pc, nil
}

// mustFrame reads one framed command and returns its payload reader.
func mustFrame(r io.Reader) io.Reader {
	_, payload, err := proto.ReadCommand(r)
	if err != nil {
		return errReader{err}
	}
	return payload
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }

// Close closes the underlying connection after sending Done and
// draining its footer, per §4.2's "Done terminates".
func (p *PeerConn) Close() error {
	if err := proto.SendDoneCommand(p.conn); err == nil {
		_, _ = proto.ReadDoneFooter(p.conn)
	}
	return p.conn.Close()
}

// levelFor mirrors connState.levelFor on the requesting side: it
// resolves the zstd level for an outgoing compressed stream, owning
// the auto-tuned case when compressionLevel is CompressionLevelDynamic.
func (p *PeerConn) levelFor(compressionLevel uint8) zstd.EncoderLevel {
	if compressionLevel != proto.CompressionLevelDynamic {
		level := zstd.EncoderLevelFromZstd(int(compressionLevel))
		if level < zstd.SpeedFastest {
			level = zstd.SpeedDefault
		}
		return level
	}
	if p.tuner == nil {
		p.tuner = proto.NewCompressionTuner()
	}
	return p.tuner.Level()
}

// WriteFile uploads entry to the peer, implementing the client side of
// §4.2's WriteFile decision tree and §4.6's delta/hash followups.
func (p *PeerConn) WriteFile(entry CopyEntry, compressionLevel uint8) (linked bool, err error) {
	if err := proto.SendWriteFileCommand(p.conn, proto.WriteFileCommand{
		CompressionLevel: compressionLevel,
		Info:             entry.SrcInfo,
		Path:             entry.DstRelative,
	}); err != nil {
		return false, err
	}
	resp, err := proto.ReadWriteResponse(p.conn)
	if err != nil {
		return false, err
	}

	switch resp {
	case proto.WriteResponseBadDestination:
		return false, nerrors.NewProtocolError("server reports bad destination for %q", entry.DstRelative)
	case proto.WriteResponseSkip:
		return false, nil
	case proto.WriteResponseLink, proto.WriteResponseOdx:
		ok, err := proto.ReadWriteOutcome(p.conn)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nerrors.Retry(nerrors.NewProtocolError("server-side link/odx failed for %q", entry.DstRelative))
		}
		return true, nil
	case proto.WriteResponseHash:
		return p.writeFileHashFollowup(entry, compressionLevel)
	case proto.WriteResponseCopyDelta:
		return false, p.sendWriteDelta(entry)
	default: // Copy, CopyUsingSmb
		return false, p.streamFileToPeer(entry, compressionLevel)
	}
}

func (p *PeerConn) writeFileHashFollowup(entry CopyEntry, compressionLevel uint8) (bool, error) {
	rh, err := p.fs.OpenRead(entry.Src)
	if err != nil {
		return false, nerrors.Retry(err)
	}
	hash, _, err := hashsum.HashReader(rh)
	_ = rh.Close()
	if err != nil {
		return false, nerrors.Retry(err)
	}
	if err := proto.SendHash(p.conn, hash); err != nil {
		return false, err
	}
	resp, err := proto.ReadWriteResponse(p.conn)
	if err != nil {
		return false, err
	}
	switch resp {
	case proto.WriteResponseLink, proto.WriteResponseOdx:
		ok, err := proto.ReadWriteOutcome(p.conn)
		if err != nil {
			return false, err
		}
		return ok, nil
	default: // Copy
		return false, p.streamFileToPeer(entry, compressionLevel)
	}
}

// sendWriteDelta implements the client half of the signature->delta->
// patch exchange (§4.6): the server has already sent CopyDelta and
// will follow with the reference file's raw bytes (its "signature" in
// this system's zstd-dictionary scheme) before reading the delta
// stream back.
func (p *PeerConn) sendWriteDelta(entry CopyEntry) error {
	var refBuf bytes.Buffer
	if err := proto.ReadBlocks(&refBuf, p.conn); err != nil {
		return err
	}
	rh, err := p.fs.OpenRead(entry.Src)
	if err != nil {
		return nerrors.Retry(err)
	}
	defer rh.Close()
	if err := proto.EncodeDelta(p.conn, bytes.NewReader(refBuf.Bytes()), rh); err != nil {
		return err
	}
	ok, err := proto.ReadWriteOutcome(p.conn)
	if err != nil {
		return err
	}
	if !ok {
		return nerrors.Retry(nerrors.NewProtocolError("server rejected delta upload for %q", entry.DstRelative))
	}
	return nil
}

func (p *PeerConn) streamFileToPeer(entry CopyEntry, compressionLevel uint8) error {
	rh, err := p.fs.OpenRead(entry.Src)
	if err != nil {
		return nerrors.Retry(err)
	}
	defer rh.Close()

	if compressionLevel == 0 {
		err = proto.WriteBlocks(p.conn, rh, make([]byte, 64*1024))
	} else {
		err = proto.WriteCompressedBlocks(p.conn, rh, p.levelFor(compressionLevel))
	}
	if err != nil {
		return err
	}
	ok, err := proto.ReadWriteOutcome(p.conn)
	if err != nil {
		return err
	}
	if !ok {
		return nerrors.Retry(nerrors.NewProtocolError("server rejected upload for %q", entry.DstRelative))
	}
	return nil
}

// ReadFile downloads entry's DstRelative path from the peer to
// entry.Src (the local destination), the client side of §4.2 ReadFile.
// serverBusy reports the ServerBusy response distinctly so the caller
// can requeue at the front of its queue and back off (§4.5).
func (p *PeerConn) ReadFile(entry CopyEntry, compressionLevel uint8) (serverBusy bool, err error) {
	if err := proto.SendReadFileCommand(p.conn, proto.ReadFileCommand{
		CompressionLevel: compressionLevel,
		Info:             entry.SrcInfo,
		Path:             entry.DstRelative,
	}); err != nil {
		return false, err
	}
	resp, err := proto.ReadReadResponse(p.conn)
	if err != nil {
		return false, err
	}

	switch resp {
	case proto.ReadResponseServerBusy:
		return true, nil
	case proto.ReadResponseBadSource:
		return false, nerrors.NewProtocolError("server reports bad source for %q", entry.DstRelative)
	case proto.ReadResponseSkip:
		return false, nil
	case proto.ReadResponseHash:
		return false, p.readFileHashFollowup(entry, compressionLevel)
	case proto.ReadResponseCopyDelta:
		return false, p.recvReadDelta(entry)
	default: // Copy, CopyUsingSmb
		return false, p.recvFileFromPeer(entry, compressionLevel)
	}
}

func (p *PeerConn) readFileHashFollowup(entry CopyEntry, compressionLevel uint8) error {
	rh, err := p.fs.OpenRead(entry.Src)
	if err != nil {
		// No local copy to hash: tell the server so with the zero hash,
		// which can never match and forces a Copy.
		if err := proto.SendHash(p.conn, filedb.Hash{}); err != nil {
			return err
		}
	} else {
		hash, _, herr := hashsum.HashReader(rh)
		_ = rh.Close()
		if herr != nil {
			return nerrors.Retry(herr)
		}
		if err := proto.SendHash(p.conn, hash); err != nil {
			return err
		}
	}
	resp, err := proto.ReadReadResponse(p.conn)
	if err != nil {
		return err
	}
	if resp == proto.ReadResponseSkip {
		return nil
	}
	return p.recvFileFromPeer(entry, compressionLevel)
}

// recvReadDelta mirrors sendWriteDelta for the pull direction: the
// client already holds the reference bytes locally (its own
// destination file, a near-match by name) and uses them both as the
// zstd dictionary and, implicitly, as what gets overwritten.
func (p *PeerConn) recvReadDelta(entry CopyEntry) error {
	rh, err := p.fs.OpenRead(entry.Src)
	if err != nil {
		return nerrors.Retry(err)
	}
	refBuf, err := io.ReadAll(rh)
	_ = rh.Close()
	if err != nil {
		return nerrors.Retry(err)
	}

	wh, err := p.fs.OpenWrite(entry.Src, false)
	if err != nil {
		return nerrors.Retry(err)
	}
	if err := proto.DecodePatch(wh, bytes.NewReader(refBuf), p.conn); err != nil {
		_ = wh.Close()
		return err
	}
	if err := wh.Close(); err != nil {
		return nerrors.Retry(err)
	}
	return p.fs.SetModTime(entry.Src, fileTimeToTime(entry.SrcInfo.LastWriteTime))
}

func (p *PeerConn) recvFileFromPeer(entry CopyEntry, compressionLevel uint8) error {
	wh, err := p.fs.OpenWrite(entry.Src, false)
	if err != nil {
		return nerrors.Retry(err)
	}
	var recvErr error
	if compressionLevel == 0 {
		recvErr = proto.ReadBlocks(wh, p.conn)
	} else {
		recvErr = proto.ReadCompressedBlocks(wh, p.conn)
	}
	if recvErr != nil {
		_ = wh.Close()
		return recvErr
	}
	if err := wh.Close(); err != nil {
		return nerrors.Retry(err)
	}
	return p.fs.SetModTime(entry.Src, fileTimeToTime(entry.SrcInfo.LastWriteTime))
}

// CreateDir asks the peer to ensure relPath exists.
func (p *PeerConn) CreateDir(relPath string) (createdLevels int, err error) {
	if err := proto.SendCreateDirCommand(p.conn, proto.CreateDirCommand{Path: relPath}); err != nil {
		return 0, err
	}
	resp, err := proto.ReadCreateDirResponse(p.conn)
	if err != nil {
		return 0, err
	}
	if resp == proto.CreateDirResponseBadDestination {
		return 0, nerrors.NewProtocolError("server reports bad destination for dir %q", relPath)
	}
	if resp == proto.CreateDirResponseError {
		return 0, nerrors.Retry(nerrors.NewProtocolError("server failed to create dir %q", relPath))
	}
	created, _ := resp.IsSuccess()
	return created, nil
}

// DeleteFiles asks the peer to recursively delete relPath.
func (p *PeerConn) DeleteFiles(relPath string) error {
	if err := proto.SendDeleteFilesCommand(p.conn, proto.DeleteFilesCommand{Path: relPath}); err != nil {
		return err
	}
	resp, err := proto.ReadDeleteFilesResponse(p.conn)
	if err != nil {
		return err
	}
	switch resp {
	case proto.DeleteFilesResponseSuccess:
		return nil
	case proto.DeleteFilesResponseBadDestination:
		return nerrors.NewProtocolError("server reports bad destination for delete %q", relPath)
	default:
		return nerrors.Retry(nerrors.NewProtocolError("server failed to delete %q", relPath))
	}
}

// FindFiles enumerates relPath's immediate children on the peer, used
// by traversal when the source is a server (§4.5).
func (p *PeerConn) FindFiles(relPath string) ([]filesystem.Entry, error) {
	if err := proto.SendFindFilesCommand(p.conn, proto.FindFilesCommand{Path: relPath}); err != nil {
		return nil, err
	}
	return proto.ReadFindFilesResponse(p.conn)
}

// GetFileInfo stats a single path on the peer.
func (p *PeerConn) GetFileInfo(relPath string) (proto.GetFileInfoResponse, error) {
	if err := proto.SendGetFileInfoCommand(p.conn, proto.GetFileInfoCommand{Path: relPath}); err != nil {
		return proto.GetFileInfoResponse{}, err
	}
	return proto.ReadGetFileInfoResponse(p.conn)
}

// RequestReport asks the peer for its human-readable status string.
func (p *PeerConn) RequestReport() (string, error) {
	if err := proto.SendRequestReportCommand(p.conn); err != nil {
		return "", err
	}
	resp, err := proto.ReadReportResponse(p.conn)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func fileTimeToTime(ft filedb.FileTime) time.Time { return time.Unix(0, int64(ft)) }
