package jobs

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseJobSchemes(t *testing.T) {
	cases := []struct {
		spec string
		kind Kind
		cmd  string
	}{
		{"local:echo hi", KindLocal, "echo hi"},
		{"remote:ls -la", KindRemote, "ls -la"},
		{"https://example.com/hook", KindHTTP, "https://example.com/hook"},
	}
	for _, c := range cases {
		j, err := ParseJob(c.spec)
		if err != nil {
			t.Fatalf("ParseJob(%q) error: %v", c.spec, err)
		}
		if j.Kind != c.kind || j.Cmd != c.cmd {
			t.Fatalf("ParseJob(%q) = %+v, want kind=%v cmd=%q", c.spec, j, c.kind, c.cmd)
		}
	}
}

func TestParseJobRejectsUnknownScheme(t *testing.T) {
	if _, err := ParseJob("ftp:nope"); err == nil {
		t.Fatal("expected error for unrecognized scheme")
	}
}

func TestSplitLocalPreservesOrder(t *testing.T) {
	all := []Job{
		{Kind: KindLocal, Cmd: "a"},
		{Kind: KindRemote, Cmd: "b"},
		{Kind: KindLocal, Cmd: "c"},
		{Kind: KindHTTP, Cmd: "d"},
	}
	local, rest := SplitLocal(all)
	if len(local) != 2 || local[0].Cmd != "a" || local[1].Cmd != "c" {
		t.Fatalf("unexpected local split: %+v", local)
	}
	if len(rest) != 2 || rest[0].Cmd != "b" || rest[1].Cmd != "d" {
		t.Fatalf("unexpected rest split: %+v", rest)
	}
}

func TestRunLocalJobSuccess(t *testing.T) {
	j := Job{Kind: KindLocal, Cmd: "true"}
	if err := Run([]Job{j}, nil); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestRunAbortsOnFirstFailure(t *testing.T) {
	calledSecond := false
	jobList := []Job{
		{Kind: KindLocal, Cmd: "false"},
		{Kind: KindCallback, Callback: func() error { calledSecond = true; return nil }},
	}
	err := Run(jobList, nil)
	if err == nil {
		t.Fatal("expected error from failing job")
	}
	if calledSecond {
		t.Fatal("expected subsequent job to be skipped after failure")
	}
	var jerr *Error
	if !errors.As(err, &jerr) {
		t.Fatalf("expected *Error, got %T", err)
	}
}

func TestRunHTTPJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	j, err := ParseJob(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if err := Run([]Job{j}, nil); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestRunHTTPJobFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	j, _ := ParseJob(srv.URL)
	if err := Run([]Job{j}, nil); err == nil {
		t.Fatal("expected error for 500 status")
	}
}
