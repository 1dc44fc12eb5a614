// Command netcopy is the client CLI: point it at a source and
// destination directory (either of which may be host:port:subdir to
// route that side through a peer netcopy server) and it drives one
// client.Engine run to completion, printing the final stats report.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/buildpipe/netcopy/client"
	"github.com/buildpipe/netcopy/filesystem"
	"github.com/buildpipe/netcopy/internal/config"
	"github.com/buildpipe/netcopy/internal/nlog"
	"github.com/buildpipe/netcopy/internal/uncpath"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	settings := config.Default()
	var verbose bool

	root := &cobra.Command{
		Use:   "netcopy SOURCE DEST",
		Short: "copy a directory tree, optionally through a peer netcopy server",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				nlog.SetLevel(logrus.DebugLevel)
			}
			settings.SourceDirectory = uncpath.Optimize(args[0])
			settings.DestDirectory = uncpath.Optimize(args[1])
			return run(settings)
		},
	}
	settings.BindFlags(root.Flags())
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run wires one Engine for this process() invocation (spec.md §4.5),
// dialing a peer for whichever side's address carries a host:port.
func run(settings config.ClientSettings) error {
	log := nlog.New(logrus.Fields{"component": "client"})
	fs := filesystem.NewLocal()
	engine := client.NewEngine(settings, fs, log)

	secretGUID := uuid.New()

	source, sourceConn, err := resolveEndpoint(settings.SourceDirectory, fs, secretGUID, settings)
	if err != nil {
		return err
	}
	if sourceConn != nil {
		defer sourceConn.Close()
	}
	dest, destConn, err := resolveEndpoint(settings.DestDirectory, fs, secretGUID, settings)
	if err != nil {
		return err
	}
	if destConn != nil {
		defer destConn.Close()
	}

	engine.Source = source
	engine.Dest = dest

	if err := engine.Run(); err != nil {
		return err
	}
	fmt.Println(engine.Stats.String())
	return nil
}

// resolveEndpoint splits dir into a plain local path, or a host:port
// pair that gets dialed as a peer connection, per §6's "either side
// may name a netcopy server instead of a local path" CLI surface.
func resolveEndpoint(dir string, fs filesystem.FileSystem, secretGUID uuid.UUID, settings config.ClientSettings) (client.Endpoint, *client.PeerConn, error) {
	addr, netDir, ok := splitServerDir(dir)
	if !ok || settings.UseServer == config.UseServerDisabled {
		return client.Endpoint{Root: dir}, nil, nil
	}
	peer, err := client.DialPeer(addr, fs, netDir, 0, secretGUID, settings.DeltaCompressionThreshold, settings.UseSecurityFile)
	if err != nil {
		return client.Endpoint{}, nil, err
	}
	return client.Endpoint{Peer: peer, Root: netDir}, peer, nil
}

// splitServerDir recognizes host:port:subdir, the original's
// server-path shorthand.
func splitServerDir(dir string) (addr, netDir string, ok bool) {
	parts := strings.SplitN(dir, ":", 3)
	if len(parts) != 3 {
		return "", "", false
	}
	if _, err := strconv.Atoi(parts[1]); err != nil {
		return "", "", false
	}
	return parts[0] + ":" + parts[1], parts[2], true
}
