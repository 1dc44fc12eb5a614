// Command netcopyd runs the peer netcopy server process of spec.md
// §4.2/§4.4: it listens on a TCP port, serves WriteFile/ReadFile/
// CreateDir/DeleteFiles/FindFiles/GetFileInfo/RequestReport sessions
// against a FileDatabase rooted at a directory, and optionally primes
// that database from one or more subtrees before accepting
// connections (§4.9).
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/buildpipe/netcopy/filesystem"
	"github.com/buildpipe/netcopy/internal/config"
	"github.com/buildpipe/netcopy/internal/nlog"
	"github.com/buildpipe/netcopy/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	settings := config.DefaultServer()
	var verbose bool
	var primeDirs []string
	var primeBackground bool

	root := &cobra.Command{
		Use:   "netcopyd ROOT",
		Short: "serve a directory tree to netcopy clients",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				nlog.SetLevel(logrus.DebugLevel)
			}
			return run(args[0], settings, primeDirs, primeBackground)
		},
	}
	settings.BindFlags(root.Flags())
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.Flags().StringArrayVar(&primeDirs, "prime-dir", nil, "directory (relative to ROOT) to prime into the FileDatabase before serving; repeatable")
	root.Flags().BoolVar(&primeBackground, "prime-background", false, "prime directories in the background instead of blocking startup")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(netDirectory string, settings config.ServerSettings, primeDirs []string, background bool) error {
	root, err := filepath.Abs(netDirectory)
	if err != nil {
		return err
	}

	fs := filesystem.NewLocal()
	srv := server.New(settings, fs)

	for _, dir := range primeDirs {
		if err := srv.PrimeDirectory(root, dir, background); err != nil {
			return fmt.Errorf("priming %q: %w", dir, err)
		}
	}
	if !background {
		srv.PrimeWait(root)
	}

	addr := fmt.Sprintf("%s:%d", settings.ListenAddr, settings.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv.Log.Infof("listening on %s, serving %s", addr, root)
	return srv.Serve(ctx, ln)
}
