package server

import (
	"io"

	"github.com/buildpipe/netcopy/internal/filedb"
	"github.com/buildpipe/netcopy/internal/hashsum"
	"github.com/buildpipe/netcopy/proto"
)

// handleReadFile implements §4.2 ReadFile: admission-controlled
// symmetric counterpart to WriteFile. cmd.Info carries the client's
// current local FileInfo for the path (zero value if it has none), so
// the server can decide Skip/Hash/CopyDelta/Copy without the client
// having to send a separate stat request first.
func (c *connState) handleReadFile(r io.Reader) error {
	cmd, err := proto.DecodeReadFileCommand(r)
	if err != nil {
		return err
	}
	if !c.requireEnv() {
		return proto.SendReadResponse(c.conn, proto.ReadResponseBadSource)
	}

	admitted, seq := c.server.Admit.Request(c.connIndex)
	if !admitted {
		return proto.SendReadResponse(c.conn, proto.ReadResponseServerBusy)
	}
	defer c.server.Admit.Done(c.connIndex, seq)

	src := c.destPath(cmd.Path)
	entry, err := c.server.FS.Stat(src)
	if err != nil {
		return proto.SendReadResponse(c.conn, proto.ReadResponseBadSource)
	}
	srcInfo := toFileInfo(entry)

	if srcInfo.Equal(cmd.Info) {
		return proto.SendReadResponse(c.conn, proto.ReadResponseSkip)
	}

	if srcInfo.Size == cmd.Info.Size && srcInfo.LastWriteTime != cmd.Info.LastWriteTime {
		return c.handleReadHashFollowup(cmd, src, srcInfo)
	}

	key := c.fileKey(cmd.Path, srcInfo)
	if c.server.Settings.DeltaEnabled && srcInfo.Size >= c.effectiveDeltaThreshold() {
		if candidate, ok := c.server.DB.FindDeltaCandidate(key); ok && candidate.FullPath != src {
			return c.sendReadDelta(src, candidate.FullPath, srcInfo)
		}
	}

	resp := proto.ReadResponseCopy
	if c.external && c.isUncompressed() {
		resp = proto.ReadResponseCopyUsingSmb
	}
	return c.sendReadStream(resp, src, srcInfo, cmd.CompressionLevel)
}

// handleReadHashFollowup implements the ReadFile analogue of §4.6's
// hash path: sizes match but write times differ, so the server asks
// for the client's hash, computes its own, and only streams bytes if
// they disagree.
func (c *connState) handleReadHashFollowup(cmd proto.ReadFileCommand, src string, srcInfo filedb.FileInfo) error {
	if err := proto.SendReadResponse(c.conn, proto.ReadResponseHash); err != nil {
		return err
	}
	clientHash, err := proto.ReadHash(c.conn)
	if err != nil {
		return err
	}

	rh, err := c.server.FS.OpenRead(src)
	if err != nil {
		return proto.SendReadResponse(c.conn, proto.ReadResponseBadSource)
	}
	serverHash, _, err := hashsum.HashReader(rh)
	_ = rh.Close()
	if err != nil {
		return proto.SendReadResponse(c.conn, proto.ReadResponseBadSource)
	}

	if serverHash == clientHash {
		c.server.Stats.AddSkip(int64(srcInfo.Size))
		return proto.SendReadResponse(c.conn, proto.ReadResponseSkip)
	}
	if err := proto.SendReadResponse(c.conn, proto.ReadResponseCopy); err != nil {
		return err
	}
	return c.streamFile(src, cmd.CompressionLevel)
}

func (c *connState) sendReadDelta(src, referencePath string, srcInfo filedb.FileInfo) error {
	if err := proto.SendReadResponse(c.conn, proto.ReadResponseCopyDelta); err != nil {
		return err
	}
	target, err := c.server.FS.OpenRead(src)
	if err != nil {
		c.server.Stats.AddFailure()
		return err
	}
	defer target.Close()
	ref, err := c.server.FS.OpenRead(referencePath)
	if err != nil {
		c.server.Stats.AddFailure()
		return err
	}
	defer ref.Close()

	if err := proto.EncodeDelta(c.conn, ref, target); err != nil {
		c.server.Stats.AddFailure()
		return err
	}
	c.server.Stats.AddDelta()
	return nil
}

func (c *connState) sendReadStream(resp proto.ReadResponse, src string, srcInfo filedb.FileInfo, compressionLevel uint8) error {
	if err := proto.SendReadResponse(c.conn, resp); err != nil {
		return err
	}
	if err := c.streamFile(src, compressionLevel); err != nil {
		c.server.Stats.AddFailure()
		return err
	}
	c.server.Stats.AddCopy(int64(srcInfo.Size))
	return nil
}

func (c *connState) streamFile(src string, compressionLevel uint8) error {
	rh, err := c.server.FS.OpenRead(src)
	if err != nil {
		return err
	}
	defer rh.Close()
	if compressionLevel == 0 {
		return proto.WriteBlocks(c.conn, rh, make([]byte, 64*1024))
	}
	return proto.WriteCompressedBlocks(c.conn, rh, c.levelFor(compressionLevel))
}
