package server

import (
	"path/filepath"

	"github.com/buildpipe/netcopy/prime"
	"github.com/sirupsen/logrus"
)

// primerFor returns the Primer rooted at root, creating and caching it
// on first use so a later PrimeWait call for the same root finds the
// worker its earlier background PrimeDirectory call started.
func (s *Server) primerFor(root string) *prime.Primer {
	root = filepath.Clean(root)
	s.primeMu.Lock()
	defer s.primeMu.Unlock()
	p, ok := s.primers[root]
	if !ok {
		p = prime.New(s.FS, s.DB, root, s.Log.Child(logrus.Fields{"prime-root": root}))
		s.primers[root] = p
	}
	return p
}

// PrimeDirectory is the server-side entry point for §4.9's
// prime_directory: an operator (netcopyd's --prime-dir startup flag,
// or any future admin surface sharing this process) populates the
// running server's FileDatabase for root/relPath before any client
// connection ever asks for it. Priming shares the same *filedb.DB
// every WriteFile/ReadFile decision already reads.
func (s *Server) PrimeDirectory(root, relPath string, background bool) error {
	return s.primerFor(root).PrimeDirectory(relPath, background)
}

// PrimeWait is the server-side prime_wait: it blocks until root's
// priming queue has drained and no worker is mid-directory.
func (s *Server) PrimeWait(root string) {
	s.primerFor(root).Wait()
}
