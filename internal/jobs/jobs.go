// Package jobs parses and executes the pre/post deploy job list: local
// shell commands, remote shell commands (via the Server), HTTP GETs, and
// in-process callbacks.
package jobs

import (
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strings"

	"htdeploy/internal/server"
)

// Kind identifies a Job's execution mode.
type Kind int

const (
	KindLocal Kind = iota
	KindRemote
	KindHTTP
	KindCallback
)

// CallbackFunc is the signature for in-process jobs.
type CallbackFunc func() error

// Job is a tagged value: {local, cmd}, {remote, cmd}, {http, url}, or
// {callback, fn}.
type Job struct {
	Kind     Kind
	Cmd      string // shell command (local/remote) or URL (http)
	Callback CallbackFunc
}

// Error wraps a failing job with its kind and command/url for the "one
// line naming the failing operation" convention.
type Error struct {
	Job Job
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("job %s failed: %v", describe(e.Job), e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func describe(j Job) string {
	switch j.Kind {
	case KindLocal:
		return "local:" + j.Cmd
	case KindRemote:
		return "remote:" + j.Cmd
	case KindHTTP:
		return j.Cmd
	default:
		return "callback"
	}
}

// ParseJob parses one scheme-prefixed job spec string: "local:<cmd>",
// "remote:<cmd>", or a bare "http://" / "https://" URL.
func ParseJob(spec string) (Job, error) {
	switch {
	case strings.HasPrefix(spec, "local:"):
		return Job{Kind: KindLocal, Cmd: strings.TrimPrefix(spec, "local:")}, nil
	case strings.HasPrefix(spec, "remote:"):
		return Job{Kind: KindRemote, Cmd: strings.TrimPrefix(spec, "remote:")}, nil
	case strings.HasPrefix(spec, "http://"), strings.HasPrefix(spec, "https://"):
		return Job{Kind: KindHTTP, Cmd: spec}, nil
	default:
		return Job{}, fmt.Errorf("unrecognized job spec: %q", spec)
	}
}

// ParseJobs parses a list of job spec strings in order.
func ParseJobs(specs []string) ([]Job, error) {
	jobs := make([]Job, 0, len(specs))
	for _, spec := range specs {
		job, err := ParseJob(spec)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// SplitLocal partitions jobs into local:-scheme jobs and everything else,
// preserving relative order within each group. Local jobs run before the
// Server is contacted for any mutation; the rest run after the running
// marker is created.
func SplitLocal(all []Job) (local, rest []Job) {
	for _, j := range all {
		if j.Kind == KindLocal {
			local = append(local, j)
		} else {
			rest = append(rest, j)
		}
	}
	return local, rest
}

// Run executes jobs sequentially; the first failure aborts and its error
// is returned wrapped in *Error. srv may be nil if no remote jobs are
// present in the list.
func Run(jobs []Job, srv server.Server) error {
	for _, j := range jobs {
		if err := runOne(j, srv); err != nil {
			return &Error{Job: j, Err: err}
		}
	}
	return nil
}

func runOne(j Job, srv server.Server) error {
	switch j.Kind {
	case KindLocal:
		cmd := exec.Command("sh", "-c", j.Cmd)
		out, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
		}
		return nil
	case KindRemote:
		if srv == nil {
			return fmt.Errorf("remote job requires a connected server")
		}
		_, err := srv.Execute(j.Cmd)
		return err
	case KindHTTP:
		resp, err := http.Get(j.Cmd)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)
		if resp.StatusCode >= 400 {
			return fmt.Errorf("http job returned status %d", resp.StatusCode)
		}
		return nil
	case KindCallback:
		if j.Callback == nil {
			return fmt.Errorf("callback job has no function")
		}
		return j.Callback()
	default:
		return fmt.Errorf("unknown job kind %d", j.Kind)
	}
}
