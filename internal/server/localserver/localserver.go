// Package localserver implements server.Server over the local filesystem,
// used for local staging targets and for driving server.Server's test
// suite without a network round trip.
package localserver

import (
	"os"
	"os/exec"
	"path/filepath"

	"htdeploy/internal/server"
)

// LocalServer roots every remote-looking path under a local directory.
type LocalServer struct {
	root string
}

// New returns a LocalServer rooted at root. root must already exist.
func New(root string) *LocalServer {
	return &LocalServer{root: root}
}

var _ server.Server = (*LocalServer)(nil)

func (s *LocalServer) abs(p string) string {
	return filepath.Join(s.root, p)
}

func (s *LocalServer) Connect() error { return nil }
func (s *LocalServer) Close() error   { return nil }

func (s *LocalServer) Dir() string { return s.root }

func (s *LocalServer) ReadFile(remotePath, localDest string) error {
	data, err := os.ReadFile(s.abs(remotePath))
	if err != nil {
		return server.Wrap("readFile", remotePath, err)
	}
	if err := os.WriteFile(localDest, data, 0644); err != nil {
		return server.Wrap("readFile", remotePath, err)
	}
	return nil
}

func (s *LocalServer) WriteFile(localSource, remotePath string, onProgress server.ProgressFunc) error {
	data, err := os.ReadFile(localSource)
	if err != nil {
		return server.Wrap("writeFile", remotePath, err)
	}
	dest := s.abs(remotePath)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return server.Wrap("writeFile", remotePath, err)
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return server.Wrap("writeFile", remotePath, err)
	}
	if onProgress != nil {
		onProgress(100)
	}
	return nil
}

func (s *LocalServer) RenameFile(from, to string) error {
	dest := s.abs(to)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return server.Wrap("renameFile", to, err)
	}
	if err := os.Rename(s.abs(from), dest); err != nil {
		return server.Wrap("renameFile", from, err)
	}
	return nil
}

func (s *LocalServer) RemoveFile(path string) error {
	if err := os.Remove(s.abs(path)); err != nil && !os.IsNotExist(err) {
		return server.Wrap("removeFile", path, err)
	}
	return nil
}

func (s *LocalServer) RemoveDir(path string) error {
	if err := os.RemoveAll(s.abs(path)); err != nil {
		return server.Wrap("removeDir", path, err)
	}
	return nil
}

func (s *LocalServer) CreateDir(path string) error {
	if err := os.MkdirAll(s.abs(path), 0755); err != nil {
		return server.Wrap("createDir", path, err)
	}
	return nil
}

func (s *LocalServer) Purge(path string, onEntry func(entryPath string)) error {
	root := s.abs(path)
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return server.Wrap("purge", path, err)
	}
	for _, entry := range entries {
		entryPath := filepath.Join(path, entry.Name())
		if err := os.RemoveAll(filepath.Join(root, entry.Name())); err != nil {
			return server.Wrap("purge", entryPath, err)
		}
		if onEntry != nil {
			onEntry(entryPath)
		}
	}
	return nil
}

func (s *LocalServer) Execute(cmd string) (string, error) {
	out, err := exec.Command("sh", "-c", cmd).CombinedOutput()
	if err != nil {
		return string(out), server.Wrap("execute", cmd, err)
	}
	return string(out), nil
}
