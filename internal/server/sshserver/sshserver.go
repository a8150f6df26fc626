// Package sshserver implements server.Server over SSH, driving the SCP
// protocol by hand over a session's stdin/stdout/stderr pipes.
package sshserver

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"htdeploy/internal/server"
)

const ackTimeout = 10 * time.Second

// Config holds the connection parameters for one remote deploy target.
type Config struct {
	Username   string
	PrivateKey string // path to a private key file; mutually exclusive with Password
	Password   string
	Host       string
	Port       string
	RemoteRoot string // absolute remote root path, no trailing slash
}

// SSHServer is a server.Server backed by a single SSH connection.
type SSHServer struct {
	cfg    Config
	client *ssh.Client
}

// New returns an unconnected SSHServer for cfg.
func New(cfg Config) *SSHServer {
	return &SSHServer{cfg: cfg}
}

var _ server.Server = (*SSHServer)(nil)

func (s *SSHServer) Connect() error {
	auth, err := s.authMethod()
	if err != nil {
		return server.Wrap("connect", s.cfg.Host, err)
	}
	clientConfig := &ssh.ClientConfig{
		User:            s.cfg.Username,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         15 * time.Second,
	}
	addr := fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port)
	client, err := ssh.Dial("tcp", addr, clientConfig)
	if err != nil {
		return server.Wrap("connect", addr, err)
	}
	s.client = client
	return nil
}

func (s *SSHServer) authMethod() (ssh.AuthMethod, error) {
	if s.cfg.PrivateKey != "" {
		key, err := os.ReadFile(s.cfg.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("unable to read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("unable to parse private key: %w", err)
		}
		return ssh.PublicKeys(signer), nil
	}
	return ssh.Password(s.cfg.Password), nil
}

func (s *SSHServer) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *SSHServer) Dir() string { return s.cfg.RemoteRoot }

func (s *SSHServer) remotePath(p string) string {
	return path.Join(s.cfg.RemoteRoot, strings.TrimPrefix(p, "/"))
}

func (s *SSHServer) session() (*ssh.Session, error) {
	return s.client.NewSession()
}

func (s *SSHServer) Execute(cmd string) (string, error) {
	sess, err := s.session()
	if err != nil {
		return "", server.Wrap("execute", cmd, err)
	}
	defer sess.Close()
	out, err := sess.CombinedOutput(cmd)
	if err != nil {
		return string(out), server.Wrap("execute", cmd, err)
	}
	return string(out), nil
}

func (s *SSHServer) CreateDir(remotePath string) error {
	_, err := s.Execute(fmt.Sprintf("mkdir -p %s", shellQuote(s.remotePath(remotePath))))
	return err
}

func (s *SSHServer) RemoveFile(remotePath string) error {
	_, err := s.Execute(fmt.Sprintf("rm -f %s", shellQuote(s.remotePath(remotePath))))
	return err
}

func (s *SSHServer) RemoveDir(remotePath string) error {
	_, err := s.Execute(fmt.Sprintf("rm -rf %s", shellQuote(s.remotePath(remotePath))))
	return err
}

func (s *SSHServer) RenameFile(from, to string) error {
	dest := s.remotePath(to)
	mkdirErr := s.CreateDir(path.Dir(to))
	if mkdirErr != nil {
		return mkdirErr
	}
	_, err := s.Execute(fmt.Sprintf("mv -f %s %s", shellQuote(s.remotePath(from)), shellQuote(dest)))
	return err
}

// Purge removes every entry directly inside path, preserving path
// itself, reporting each removed entry via onEntry.
func (s *SSHServer) Purge(remotePath string, onEntry func(entryPath string)) error {
	target := s.remotePath(remotePath)
	listing, err := s.Execute(fmt.Sprintf("ls -1A %s 2>/dev/null || true", shellQuote(target)))
	if err != nil {
		return err
	}
	for _, name := range strings.Split(strings.TrimSpace(listing), "\n") {
		if name == "" {
			continue
		}
		entryAbs := path.Join(target, name)
		if _, err := s.Execute(fmt.Sprintf("rm -rf %s", shellQuote(entryAbs))); err != nil {
			return server.Wrap("purge", path.Join(remotePath, name), err)
		}
		if onEntry != nil {
			onEntry(path.Join(remotePath, name))
		}
	}
	return nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func readAck(stdout io.Reader, stderr io.Reader) error {
	buf := make([]byte, 1)
	ch := make(chan error, 1)
	go func() {
		if _, err := stdout.Read(buf); err != nil {
			ch <- fmt.Errorf("failed to read scp ack: %w", err)
			return
		}
		switch buf[0] {
		case 0:
			ch <- nil
		case 1, 2:
			msg := make([]byte, 1024)
			n, _ := stderr.Read(msg)
			ch <- fmt.Errorf("scp remote error: %s", strings.TrimSpace(string(msg[:n])))
		default:
			ch <- fmt.Errorf("unknown scp ack byte: %v", buf[0])
		}
	}()
	select {
	case err := <-ch:
		return err
	case <-time.After(ackTimeout):
		return fmt.Errorf("timeout waiting for scp ack")
	}
}

// WriteFile uploads localSource to remotePath via the SCP "to" protocol.
func (s *SSHServer) WriteFile(localSource, remotePath string, onProgress server.ProgressFunc) error {
	localFile, err := os.Open(localSource)
	if err != nil {
		return server.Wrap("writeFile", remotePath, err)
	}
	defer localFile.Close()

	stat, err := localFile.Stat()
	if err != nil {
		return server.Wrap("writeFile", remotePath, err)
	}

	dest := s.remotePath(remotePath)
	if err := s.CreateDir(path.Dir(remotePath)); err != nil {
		return err
	}

	sess, err := s.session()
	if err != nil {
		return server.Wrap("writeFile", remotePath, err)
	}
	defer sess.Close()

	stdin, err := sess.StdinPipe()
	if err != nil {
		return server.Wrap("writeFile", remotePath, err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		return server.Wrap("writeFile", remotePath, err)
	}
	stderr, err := sess.StderrPipe()
	if err != nil {
		return server.Wrap("writeFile", remotePath, err)
	}

	if err := sess.Start(fmt.Sprintf("scp -t %s", shellQuote(path.Dir(dest)))); err != nil {
		return server.Wrap("writeFile", remotePath, err)
	}

	if err := readAck(stdout, stderr); err != nil {
		stdin.Close()
		sess.Wait()
		return server.Wrap("writeFile", remotePath, err)
	}

	filename := path.Base(dest)
	fmt.Fprintf(stdin, "C%04o %d %s\n", stat.Mode().Perm(), stat.Size(), filename)
	if err := readAck(stdout, stderr); err != nil {
		stdin.Close()
		sess.Wait()
		return server.Wrap("writeFile", remotePath, err)
	}

	written, total := int64(0), stat.Size()
	buf := make([]byte, 32*1024)
	for {
		n, rerr := localFile.Read(buf)
		if n > 0 {
			if _, werr := stdin.Write(buf[:n]); werr != nil {
				stdin.Close()
				sess.Wait()
				return server.Wrap("writeFile", remotePath, werr)
			}
			written += int64(n)
			if onProgress != nil && total > 0 {
				onProgress(int(written * 100 / total))
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			stdin.Close()
			sess.Wait()
			return server.Wrap("writeFile", remotePath, rerr)
		}
	}

	fmt.Fprint(stdin, "\x00")
	if err := readAck(stdout, stderr); err != nil {
		stdin.Close()
		sess.Wait()
		return server.Wrap("writeFile", remotePath, err)
	}
	stdin.Close()

	if err := sess.Wait(); err != nil {
		return server.Wrap("writeFile", remotePath, err)
	}
	return nil
}

// ReadFile downloads remotePath to localDest via the SCP "from" protocol.
func (s *SSHServer) ReadFile(remotePath, localDest string) error {
	sess, err := s.session()
	if err != nil {
		return server.Wrap("readFile", remotePath, err)
	}
	defer sess.Close()

	stdin, err := sess.StdinPipe()
	if err != nil {
		return server.Wrap("readFile", remotePath, err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		return server.Wrap("readFile", remotePath, err)
	}
	stderr, err := sess.StderrPipe()
	if err != nil {
		return server.Wrap("readFile", remotePath, err)
	}

	if err := sess.Start(fmt.Sprintf("scp -f %s", shellQuote(s.remotePath(remotePath)))); err != nil {
		return server.Wrap("readFile", remotePath, err)
	}

	if _, err := stdin.Write([]byte{0}); err != nil {
		return server.Wrap("readFile", remotePath, err)
	}

	reader := bufio.NewReader(stdout)
	header, err := reader.ReadByte()
	if err != nil {
		stdin.Close()
		sess.Wait()
		return server.Wrap("readFile", remotePath, err)
	}
	if header == 1 || header == 2 {
		msg := make([]byte, 1024)
		n, _ := stderr.Read(msg)
		stdin.Close()
		sess.Wait()
		return server.Wrap("readFile", remotePath, fmt.Errorf("scp remote error: %s", strings.TrimSpace(string(msg[:n]))))
	}

	line, err := reader.ReadString('\n')
	if err != nil {
		stdin.Close()
		sess.Wait()
		return server.Wrap("readFile", remotePath, err)
	}
	var mode uint32
	var size int64
	var name string
	if _, err := fmt.Sscanf(line, "C%o %d %s", &mode, &size, &name); err != nil {
		stdin.Close()
		sess.Wait()
		return server.Wrap("readFile", remotePath, fmt.Errorf("malformed scp header: %q", line))
	}

	if _, err := stdin.Write([]byte{0}); err != nil {
		return server.Wrap("readFile", remotePath, err)
	}

	out, err := os.Create(localDest)
	if err != nil {
		stdin.Close()
		sess.Wait()
		return server.Wrap("readFile", remotePath, err)
	}
	defer out.Close()

	if _, err := io.CopyN(out, reader, size); err != nil {
		stdin.Close()
		sess.Wait()
		return server.Wrap("readFile", remotePath, err)
	}

	trailer, err := reader.ReadByte()
	if err != nil || trailer != 0 {
		stdin.Close()
		sess.Wait()
		return server.Wrap("readFile", remotePath, fmt.Errorf("malformed scp trailer"))
	}

	if _, err := stdin.Write([]byte{0}); err != nil {
		return server.Wrap("readFile", remotePath, err)
	}
	stdin.Close()

	if err := sess.Wait(); err != nil {
		return server.Wrap("readFile", remotePath, err)
	}
	return nil
}
