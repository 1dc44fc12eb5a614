// Command netcopyctl is a thin remote-control client for a running
// netcopyd: it dials the server's control connection (index 0) and
// issues a single request, printing the response. It shares no memory
// with the daemon it talks to, so anything stateful (priming, session
// admission) stays a netcopyd-side concern; netcopyctl only exercises
// requests that are meaningful from a fresh connection.
package main

import (
	"fmt"
	"os"

	"github.com/buildpipe/netcopy/client"
	"github.com/buildpipe/netcopy/filesystem"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	var addr string
	var netDir string

	root := &cobra.Command{
		Use:   "netcopyctl",
		Short: "control a running netcopyd instance",
	}
	root.PersistentFlags().StringVar(&addr, "server", "localhost:18099", "netcopyd address")
	root.PersistentFlags().StringVar(&netDir, "dir", ".", "directory relative to the server's root")

	root.AddCommand(&cobra.Command{
		Use:   "report",
		Short: "print the server's accumulated stats report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPeer(addr, netDir, func(peer *client.PeerConn) error {
				report, err := peer.RequestReport()
				if err != nil {
					return err
				}
				fmt.Println(report)
				return nil
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "list the entries under --dir",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPeer(addr, netDir, func(peer *client.PeerConn) error {
				entries, err := peer.FindFiles(".")
				if err != nil {
					return err
				}
				for _, e := range entries {
					fmt.Printf("%12d  %s\n", e.Size, e.Name)
				}
				return nil
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "rm RELPATH",
		Short: "delete RELPATH (and everything under it) on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPeer(addr, netDir, func(peer *client.PeerConn) error {
				return peer.DeleteFiles(args[0])
			})
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func withPeer(addr, netDir string, fn func(*client.PeerConn) error) error {
	peer, err := client.DialPeer(addr, filesystem.NewLocal(), netDir, 0, uuid.New(), 0, false)
	if err != nil {
		return err
	}
	defer peer.Close()
	return fn(peer)
}
