package server

import (
	"io"
	"net"
	"path/filepath"

	"github.com/buildpipe/netcopy/filesystem"
	"github.com/buildpipe/netcopy/internal/filedb"
	"github.com/buildpipe/netcopy/internal/nerrors"
	"github.com/buildpipe/netcopy/internal/nlog"
	"github.com/buildpipe/netcopy/internal/uncpath"
	"github.com/buildpipe/netcopy/proto"
	"github.com/buildpipe/netcopy/session"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// connState is the mutable per-connection state a session thread
// owns: its socket, which session (secret GUID) it belongs to, the
// resolved local directory it reads/writes under, and whether it has
// completed the Environment handshake. Before it, WriteFile, CreateDir
// and DeleteFiles answer BadDestination and ReadFile answers BadSource;
// FindFiles, GetFileInfo and RequestReport do not check it.
type connState struct {
	server    *Server
	conn      net.Conn
	connIndex int
	log       *nlog.Context

	hasEnv       bool
	secretGUID   uuid.UUID
	activeSess   *session.ActiveSession
	netDirectory string
	external     bool
	deltaThresh  uint64

	tuner *proto.CompressionTuner
}

// levelFor resolves the zstd level to use for one outgoing stream:
// compressionLevel is the client-requested value from the wire
// (§6 "compression_level:u8 ... 255 means dynamic"), CompressionTuner
// owns the auto-tuned case.
func (c *connState) levelFor(compressionLevel uint8) zstd.EncoderLevel {
	if compressionLevel != proto.CompressionLevelDynamic {
		level := zstd.EncoderLevelFromZstd(int(compressionLevel))
		if level < zstd.SpeedFastest {
			level = zstd.SpeedDefault
		}
		return level
	}
	if c.tuner == nil {
		c.tuner = proto.NewCompressionTuner()
	}
	return c.tuner.Level()
}

func (c *connState) run() error {
	if err := proto.SendVersion(c.conn, proto.VersionCommand{
		ProtocolVersion: proto.ProtocolVersion,
		Flags:           c.versionFlags(),
		Info:            "netcopy-server",
	}); err != nil {
		return err
	}

	for {
		kind, r, err := proto.ReadCommand(c.conn)
		if err != nil {
			return err
		}
		switch kind {
		case proto.KindEnvironment:
			if err := c.handleEnvironment(r); err != nil {
				return err
			}
		case proto.KindWriteFile:
			if err := c.handleWriteFile(r); err != nil {
				return err
			}
		case proto.KindReadFile:
			if err := c.handleReadFile(r); err != nil {
				return err
			}
		case proto.KindCreateDir:
			if err := c.handleCreateDir(r); err != nil {
				return err
			}
		case proto.KindDeleteFiles:
			if err := c.handleDeleteFiles(r); err != nil {
				return err
			}
		case proto.KindFindFiles:
			if err := c.handleFindFiles(r); err != nil {
				return err
			}
		case proto.KindGetFileInfo:
			if err := c.handleGetFileInfo(r); err != nil {
				return err
			}
		case proto.KindRequestReport:
			if err := c.handleRequestReport(); err != nil {
				return err
			}
		case proto.KindText:
			if _, err := proto.DecodeTextCommand(r); err != nil {
				return err
			}
		case proto.KindDone:
			return c.handleDone()
		default:
			return nerrors.NewProtocolError("unexpected command kind %v before environment", kind)
		}
	}
}

func (c *connState) versionFlags() proto.VersionFlags {
	if c.server.Settings.UseSecurityFile {
		return proto.FlagUseSecurityFile
	}
	return 0
}

func (c *connState) teardown() {
	if c.activeSess != nil {
		c.server.Sessions.Release(c.secretGUID)
	}
	c.server.Admit.Leave(c.connIndex)
	c.log.Infof("connection closed, stats: %s", c.server.reportString())
}

// handleEnvironment implements §4.2 Environment: binds the session,
// resolves the net directory to a local path, and (if security-file
// mode is on) runs the create-secret / verify-secret handshake.
func (c *connState) handleEnvironment(r io.Reader) error {
	cmd, err := proto.DecodeEnvironmentCommand(r)
	if err != nil {
		return err
	}

	c.deltaThresh = cmd.DeltaCompressionThreshold
	c.netDirectory = uncpath.Optimize(cmd.NetDirectory)
	c.connIndex = int(cmd.ConnectionIndex)
	c.server.Admit.Join(c.connIndex)

	zero := uuid.UUID{}
	if c.server.Settings.UseSecurityFile {
		if cmd.SecretGUID == zero {
			secret := uuid.New()
			filenameGUID := uuid.New()
			if err := c.createSecurityFile(filenameGUID, secret); err != nil {
				return err
			}
			if err := proto.SendSecurityFileRequest(c.conn, proto.SecurityFileRequest{FilenameGUID: filenameGUID}); err != nil {
				return err
			}
			resp, err := proto.ReadSecurityFileResponse(c.conn)
			if err != nil {
				return err
			}
			if resp.SecretGUID != secret {
				return nerrors.NewProtocolError("security-file secret mismatch")
			}
			c.secretGUID = secret
			c.activeSess = c.server.Sessions.Acquire(secret)
		} else {
			sess := c.server.Sessions.Lookup(cmd.SecretGUID)
			if sess == nil {
				return nerrors.NewProtocolError("unknown session secret")
			}
			c.secretGUID = cmd.SecretGUID
			c.activeSess = c.server.Sessions.Acquire(cmd.SecretGUID)
		}
	} else {
		c.secretGUID = cmd.SecretGUID
		c.activeSess = c.server.Sessions.Acquire(cmd.SecretGUID)
	}

	c.hasEnv = true
	return nil
}

// createSecurityFile writes a hidden file under the net directory
// named after filenameGUID, containing secret's bytes, the artifact
// the client reads back to prove it can see this share (§4.2).
func (c *connState) createSecurityFile(filenameGUID, secret uuid.UUID) error {
	path := filepath.Join(c.netDirectory, filenameGUID.String()+".netcopy-secret")
	w, err := c.server.FS.OpenWrite(path, true)
	if err != nil {
		return err
	}
	defer w.Close()
	secretBytes, _ := secret.MarshalBinary()
	if _, err := w.Write(secretBytes); err != nil {
		return err
	}
	return c.server.FS.SetWritable(path, false)
}

func (c *connState) requireEnv() bool { return c.hasEnv }

func (c *connState) destPath(relPath string) string {
	return filepath.Join(c.netDirectory, relPath)
}

func (c *connState) fileKey(relPath string, info filedb.FileInfo) filedb.FileKey {
	return filedb.FileKey{Name: relPath, LastWriteTime: info.LastWriteTime, Size: info.Size}
}

// toFileInfo converts a filesystem.Entry into the bitwise-comparable
// FileInfo the database and wire protocol use. CreateTime is left as
// FileTime(0) when the entry never populated it (filesystem.Local's
// Stat does not report a creation time), matching the zero value
// FileDatabase.Insert records for it so restat comparisons agree.
func toFileInfo(e filesystem.Entry) filedb.FileInfo {
	var ct filedb.FileTime
	if !e.CreateTime.IsZero() {
		ct = filedb.FileTime(e.CreateTime.UnixNano())
	}
	return filedb.FileInfo{
		CreationTime:  ct,
		LastWriteTime: filedb.FileTime(e.ModTime.UnixNano()),
		Size:          uint64(e.Size),
	}
}

// restat re-stats path and reports whether it still matches want,
// spec.md §4.6 "the candidate's recorded FileInfo still matches its
// on-disk state (restat the candidate)".
func (c *connState) restatMatches(path string, want filedb.FileInfo) bool {
	entry, err := c.server.FS.Stat(path)
	if err != nil {
		return false
	}
	return toFileInfo(entry).Equal(want)
}

func (c *connState) handleRequestReport() error {
	return proto.SendReportResponse(c.conn, proto.ReportResponse{Text: c.server.reportString()})
}

func (c *connState) handleDone() error {
	return proto.SendDoneFooter(c.conn, proto.DoneFooter{CompressionLevelSum: uint64(c.server.Stats.CompressionLevelSum)})
}

func (c *connState) handleCreateDir(r io.Reader) error {
	cmd, err := proto.DecodeCreateDirCommand(r)
	if err != nil {
		return err
	}
	if !c.requireEnv() {
		return proto.SendCreateDirResponse(c.conn, proto.CreateDirResponseBadDestination)
	}
	path := c.destPath(cmd.Path)
	created, err := c.server.FS.EnsureDir(path)
	if err != nil {
		c.server.Stats.AddFailure()
		return proto.SendCreateDirResponse(c.conn, proto.CreateDirResponseError)
	}
	if c.activeSess != nil && created > 0 {
		c.activeSess.MarkDirCreated(path)
	}
	return proto.SendCreateDirResponse(c.conn, proto.EncodeCreateDirSuccess(created))
}

func (c *connState) handleDeleteFiles(r io.Reader) error {
	cmd, err := proto.DecodeDeleteFilesCommand(r)
	if err != nil {
		return err
	}
	if !c.requireEnv() {
		return proto.SendDeleteFilesResponse(c.conn, proto.DeleteFilesResponseBadDestination)
	}
	if err := c.server.FS.DeleteAll(c.destPath(cmd.Path)); err != nil {
		return proto.SendDeleteFilesResponse(c.conn, proto.DeleteFilesResponseError)
	}
	return proto.SendDeleteFilesResponse(c.conn, proto.DeleteFilesResponseSuccess)
}

func (c *connState) handleFindFiles(r io.Reader) error {
	cmd, err := proto.DecodeFindFilesCommand(r)
	if err != nil {
		return err
	}
	entries, err := c.server.FS.Enumerate(c.destPath(cmd.Path))
	if err != nil {
		entries = nil
	}
	return proto.SendFindFilesResponse(c.conn, entries)
}

func (c *connState) handleGetFileInfo(r io.Reader) error {
	cmd, err := proto.DecodeGetFileInfoCommand(r)
	if err != nil {
		return err
	}
	entry, err := c.server.FS.Stat(c.destPath(cmd.Path))
	if err != nil {
		return proto.SendGetFileInfoResponse(c.conn, proto.GetFileInfoResponse{Exists: false})
	}
	return proto.SendGetFileInfoResponse(c.conn, proto.GetFileInfoResponse{Exists: true, Info: toFileInfo(entry)})
}
