package server

import (
	"bytes"
	"io"
	"path/filepath"
	"time"

	"github.com/buildpipe/netcopy/internal/filedb"
	"github.com/buildpipe/netcopy/proto"
)

// fileTimeToTime converts a filedb.FileTime (opaque, compared bitwise)
// to time.Time, reading it as UnixNano; toFileInfo in connection.go
// does the opposite direction with the same convention, so the two
// round-trip exactly.
func fileTimeToTime(ft filedb.FileTime) time.Time { return time.Unix(0, int64(ft)) }

// handleWriteFile implements §4.2 WriteFile's full decision tree. The
// decision and, where the original combines them, the corresponding
// local action (hardlink attempt, ODX copy) happen together: the
// response the client receives already reflects whether that action
// succeeded, exactly as spec.md describes ("If the link succeeds,
// respond Link ... If it fails and ODX enabled, try server-side copy").
func (c *connState) handleWriteFile(r io.Reader) error {
	cmd, err := proto.DecodeWriteFileCommand(r)
	if err != nil {
		return err
	}
	if !c.requireEnv() {
		return proto.SendWriteResponse(c.conn, proto.WriteResponseBadDestination)
	}

	dest := c.destPath(cmd.Path)
	key := c.fileKey(cmd.Path, cmd.Info)

	resp, err := c.decideAndActWriteFile(key, cmd.Info, dest)
	if err != nil {
		return err
	}
	if err := proto.SendWriteResponse(c.conn, resp); err != nil {
		return err
	}

	switch resp {
	case proto.WriteResponseBadDestination:
		return nil
	case proto.WriteResponseSkip:
		c.server.Stats.AddSkip(int64(cmd.Info.Size))
		return nil
	case proto.WriteResponseLink, proto.WriteResponseOdx:
		// The action already ran, and succeeded, inside
		// decideAndActWriteFile (a failed link/ODX attempt falls through
		// to another response), so the outcome sent here is success.
		return proto.SendWriteOutcome(c.conn, true)
	case proto.WriteResponseHash:
		return c.handleWriteHashFollowup(cmd, key, dest)
	case proto.WriteResponseCopyDelta:
		return c.receiveDeltaAndFinalize(cmd, key, dest)
	default: // Copy, CopyUsingSmb
		return c.receiveStreamAndFinalize(cmd, key, dest, filedb.Hash{})
	}
}

// decideAndActWriteFile walks §4.2's WriteFile decision tree steps
// 2-4 and 6 (step 5, Hash, is handled by the caller once the client's
// hash arrives). It performs the hard-link/ODX attempts themselves
// since their outcome determines which response is sent.
func (c *connState) decideAndActWriteFile(key filedb.FileKey, info filedb.FileInfo, dest string) (proto.WriteResponse, error) {
	if rec, ok := c.server.DB.GetByKey(key); ok && info.Size >= c.server.Settings.UseLinksThreshold {
		if c.restatMatches(rec.FullPath, rec.Info) {
			if destEntry, err := c.server.FS.Stat(dest); err == nil && toFileInfo(destEntry).Equal(info) {
				return proto.WriteResponseSkip, nil
			}
			if err := c.server.FS.Hardlink(rec.FullPath, dest); err == nil {
				c.finalizeLink(key, rec.Hash, dest, proto.WriteResponseLink)
				return proto.WriteResponseLink, nil
			}
			if c.server.Settings.OdxEnabled {
				if err := c.serverLocalCopy(rec.FullPath, dest, info); err == nil {
					c.finalizeLink(key, rec.Hash, dest, proto.WriteResponseOdx)
					return proto.WriteResponseOdx, nil
				}
			}
		}
	}

	destDir := filepath.Dir(dest)
	if c.activeSess == nil || !c.activeSess.CreatedDir(destDir) {
		if destEntry, err := c.server.FS.Stat(dest); err == nil && toFileInfo(destEntry).Equal(info) {
			return proto.WriteResponseSkip, nil
		}
	}

	if c.server.Settings.DeltaEnabled && info.Size >= c.effectiveDeltaThreshold() {
		if candidate, ok := c.server.DB.FindDeltaCandidate(key); ok && candidate.FullPath != dest {
			return proto.WriteResponseCopyDelta, nil
		}
	}

	if c.server.Settings.HashMode {
		return proto.WriteResponseHash, nil
	}

	if c.external && c.isUncompressed() {
		return proto.WriteResponseCopyUsingSmb, nil
	}
	return proto.WriteResponseCopy, nil
}

func (c *connState) effectiveDeltaThreshold() uint64 {
	if c.deltaThresh > 0 {
		return c.deltaThresh
	}
	return proto.DefaultDeltaCompressionThreshold
}

func (c *connState) isUncompressed() bool { return false }

// finalizeLink records the database entry and stats for a completed
// Link/Odx action; no byte stream followed, so there is nothing left
// to receive.
func (c *connState) finalizeLink(key filedb.FileKey, hash filedb.Hash, dest string, resp proto.WriteResponse) {
	c.server.DB.Insert(key, hash, dest)
	if resp == proto.WriteResponseOdx {
		c.server.Stats.AddOdx()
	} else {
		c.server.Stats.AddLink()
	}
}

// serverLocalCopy performs an ODX-style server-local copy from src to
// dest entirely within the server process (§4.2 step 2's "try
// server-side copy").
func (c *connState) serverLocalCopy(src, dest string, info filedb.FileInfo) error {
	rh, err := c.server.FS.OpenRead(src)
	if err != nil {
		return err
	}
	defer rh.Close()
	wh, err := c.server.FS.OpenWrite(dest, false)
	if err != nil {
		return err
	}
	if _, err := io.Copy(wh, rh); err != nil {
		_ = wh.Close()
		return err
	}
	if err := wh.Close(); err != nil {
		return err
	}
	return c.server.FS.SetModTime(dest, fileTimeToTime(info.LastWriteTime))
}

// handleWriteHashFollowup implements §4.2 step 5: the client sends its
// content hash; the server probes by_hash and re-runs the link/ODX
// attempt, falling through to Copy if nothing matches. A second
// WriteResponse byte follows, reflecting this second decision.
func (c *connState) handleWriteHashFollowup(cmd proto.WriteFileCommand, key filedb.FileKey, dest string) error {
	clientHash, err := proto.ReadHash(c.conn)
	if err != nil {
		return err
	}

	resp := proto.WriteResponseCopy
	if rec, ok := c.server.DB.GetByHash(clientHash); ok && cmd.Info.Size >= c.server.Settings.UseLinksThreshold {
		if c.restatMatches(rec.FullPath, rec.Info) {
			if err := c.server.FS.Hardlink(rec.FullPath, dest); err == nil {
				c.finalizeLink(key, clientHash, dest, proto.WriteResponseLink)
				if err := proto.SendWriteResponse(c.conn, proto.WriteResponseLink); err != nil {
					return err
				}
				return proto.SendWriteOutcome(c.conn, true)
			}
			if c.server.Settings.OdxEnabled {
				if err := c.serverLocalCopy(rec.FullPath, dest, cmd.Info); err == nil {
					c.finalizeLink(key, clientHash, dest, proto.WriteResponseOdx)
					if err := proto.SendWriteResponse(c.conn, proto.WriteResponseOdx); err != nil {
						return err
					}
					return proto.SendWriteOutcome(c.conn, true)
				}
			}
		}
	}

	if err := proto.SendWriteResponse(c.conn, resp); err != nil {
		return err
	}
	return c.receiveStreamAndFinalize(cmd, key, dest, clientHash)
}

// receiveStreamAndFinalize receives the file body (compressed if the
// client chose a nonzero compression level) and positions it at dest.
func (c *connState) receiveStreamAndFinalize(cmd proto.WriteFileCommand, key filedb.FileKey, dest string, hash filedb.Hash) error {
	wh, err := c.server.FS.OpenWrite(dest, false)
	if err != nil {
		c.server.Stats.AddFailure()
		return proto.SendWriteOutcome(c.conn, false)
	}

	var recvErr error
	if cmd.CompressionLevel == 0 {
		recvErr = proto.ReadBlocks(wh, c.conn)
	} else {
		recvErr = proto.ReadCompressedBlocks(wh, c.conn)
	}
	if recvErr != nil {
		_ = wh.Close()
		c.server.Stats.AddFailure()
		return proto.SendWriteOutcome(c.conn, false)
	}
	if err := wh.Close(); err != nil {
		c.server.Stats.AddFailure()
		return proto.SendWriteOutcome(c.conn, false)
	}
	if err := c.server.FS.SetModTime(dest, fileTimeToTime(cmd.Info.LastWriteTime)); err != nil {
		c.server.Stats.AddFailure()
		return proto.SendWriteOutcome(c.conn, false)
	}

	c.server.DB.Insert(key, hash, dest)
	c.server.Stats.AddCopy(int64(cmd.Info.Size))
	return proto.SendWriteOutcome(c.conn, true)
}

// receiveDeltaAndFinalize implements the signature->delta->patch
// exchange's server half (§4.6). The client has no access to the
// server-local candidate.FullPath bytes, so the server sends them
// first as a plain block stream — standing in for "signature" in this
// system's zstd-dictionary realization of delta compression, since the
// dictionary IS the reference content rather than a rolling checksum.
// The client then replies with the delta stream, encoded against that
// same reference, which DecodePatch below decodes against the
// in-memory copy the server already holds.
func (c *connState) receiveDeltaAndFinalize(cmd proto.WriteFileCommand, key filedb.FileKey, dest string) error {
	candidate, ok := c.server.DB.FindDeltaCandidate(key)
	if !ok {
		c.server.Stats.AddFailure()
		return proto.SendWriteOutcome(c.conn, false)
	}
	ref, err := c.server.FS.OpenRead(candidate.FullPath)
	if err != nil {
		c.server.Stats.AddFailure()
		return proto.SendWriteOutcome(c.conn, false)
	}
	refBytes, err := io.ReadAll(ref)
	_ = ref.Close()
	if err != nil {
		c.server.Stats.AddFailure()
		return proto.SendWriteOutcome(c.conn, false)
	}
	if err := proto.WriteBlocks(c.conn, bytes.NewReader(refBytes), make([]byte, 64*1024)); err != nil {
		c.server.Stats.AddFailure()
		return err
	}

	wh, err := c.server.FS.OpenWrite(dest, false)
	if err != nil {
		c.server.Stats.AddFailure()
		return proto.SendWriteOutcome(c.conn, false)
	}
	if err := proto.DecodePatch(wh, bytes.NewReader(refBytes), c.conn); err != nil {
		_ = wh.Close()
		c.server.Stats.AddFailure()
		return proto.SendWriteOutcome(c.conn, false)
	}
	if err := wh.Close(); err != nil {
		c.server.Stats.AddFailure()
		return proto.SendWriteOutcome(c.conn, false)
	}
	if err := c.server.FS.SetModTime(dest, fileTimeToTime(cmd.Info.LastWriteTime)); err != nil {
		c.server.Stats.AddFailure()
		return proto.SendWriteOutcome(c.conn, false)
	}

	c.server.DB.Insert(key, filedb.Hash{}, dest)
	c.server.Stats.AddDelta()
	return proto.SendWriteOutcome(c.conn, true)
}
