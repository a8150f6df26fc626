// Package server defines the remote-server abstraction the deployer
// drives: connect, read/write files, rename, remove, create directories,
// purge, and execute shell commands.
package server

import "fmt"

// ProgressFunc reports upload/download progress as a 0-100 percentage.
type ProgressFunc func(percent int)

// Server is the synchronous remote-operation contract. Implementations
// (localserver, sshserver) are exclusively owned by one Deployer for the
// duration of a deploy; no operation runs concurrently with another.
type Server interface {
	Connect() error
	Close() error

	// Dir returns the absolute remote root path, with no trailing slash.
	Dir() string

	ReadFile(remotePath, localDest string) error
	WriteFile(localSource, remotePath string, onProgress ProgressFunc) error
	RenameFile(from, to string) error
	RemoveFile(path string) error
	RemoveDir(path string) error
	CreateDir(path string) error

	// Purge removes every entry inside path, preserving path itself.
	// onEntry is called once per removed entry, with its path.
	Purge(path string, onEntry func(entryPath string)) error

	Execute(cmd string) (output string, err error)
}

// Error wraps a failing Server operation with the operation name and the
// path it targeted, per the core's "one line naming the failing
// operation and path" user-visible failure convention.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("server: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap builds an *Error, or returns nil if err is nil.
func Wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Path: path, Err: err}
}
