package deploy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"htdeploy/internal/config"
	"htdeploy/internal/manifest"
	"htdeploy/internal/server/localserver"
)

func newTestConfig(localPath string) *config.Config {
	return &config.Config{
		ProjectName: "test",
		LocalPath:   localPath,
		AllowDelete: true,
	}
}

func TestRunFirstDeployUploadsEverythingAndWritesManifest(t *testing.T) {
	localDir := t.TempDir()
	remoteDir := t.TempDir()

	os.MkdirAll(filepath.Join(localDir, "sub"), 0755)
	os.WriteFile(filepath.Join(localDir, "a.txt"), []byte("hello"), 0644)
	os.WriteFile(filepath.Join(localDir, "sub", "b.txt"), []byte("world"), 0644)

	srv := localserver.New(remoteDir)
	d := New(newTestConfig(localDir), srv, nil, nil)

	summary, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.AlreadySynced {
		t.Fatal("expected first deploy to not be a no-op")
	}
	if !summary.ManifestChanged {
		t.Fatal("expected manifest to change on first deploy")
	}

	if _, err := os.Stat(filepath.Join(remoteDir, "a.txt")); err != nil {
		t.Fatal("expected a.txt uploaded to remote")
	}
	if _, err := os.Stat(filepath.Join(remoteDir, "sub", "b.txt")); err != nil {
		t.Fatal("expected sub/b.txt uploaded to remote")
	}
	if _, err := os.Stat(filepath.Join(remoteDir, ".htdeployment.running")); err == nil {
		t.Fatal("expected running marker to be cleared after a successful deploy")
	}

	data, err := os.ReadFile(filepath.Join(remoteDir, ".htdeployment"))
	if err != nil {
		t.Fatal("expected manifest file present on remote")
	}
	fm, err := manifest.Decode(data)
	if err != nil {
		t.Fatalf("manifest did not decode: %v", err)
	}
	if _, ok := fm["/a.txt"]; !ok {
		t.Fatal("expected /a.txt in decoded manifest")
	}
	if _, ok := fm["/sub/b.txt"]; !ok {
		t.Fatal("expected /sub/b.txt in decoded manifest")
	}
	if _, ok := fm["/.htdeployment"]; ok {
		t.Fatal("manifest must never list its own path")
	}
}

func TestRunSecondDeployIsNoOp(t *testing.T) {
	localDir := t.TempDir()
	remoteDir := t.TempDir()
	os.WriteFile(filepath.Join(localDir, "a.txt"), []byte("hello"), 0644)

	srv := localserver.New(remoteDir)
	d := New(newTestConfig(localDir), srv, nil, nil)

	if _, err := d.Run(context.Background()); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	summary, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if !summary.AlreadySynced {
		t.Fatal("expected second deploy against unchanged tree to be a no-op")
	}
}

func TestRunDeletesRemovedFilesWhenAllowed(t *testing.T) {
	localDir := t.TempDir()
	remoteDir := t.TempDir()
	os.WriteFile(filepath.Join(localDir, "a.txt"), []byte("hello"), 0644)
	os.WriteFile(filepath.Join(localDir, "b.txt"), []byte("world"), 0644)

	srv := localserver.New(remoteDir)
	d := New(newTestConfig(localDir), srv, nil, nil)
	if _, err := d.Run(context.Background()); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	os.Remove(filepath.Join(localDir, "b.txt"))

	summary, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	found := false
	for _, p := range summary.Deleted {
		if p == "/b.txt" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected /b.txt in deletes, got %v", summary.Deleted)
	}
	if _, err := os.Stat(filepath.Join(remoteDir, "b.txt")); err == nil {
		t.Fatal("expected b.txt removed from remote")
	}
}

func TestRunDryRunDoesNotMutateRemote(t *testing.T) {
	localDir := t.TempDir()
	remoteDir := t.TempDir()
	os.WriteFile(filepath.Join(localDir, "a.txt"), []byte("hello"), 0644)

	srv := localserver.New(remoteDir)
	d := New(newTestConfig(localDir), srv, nil, nil)
	d.DryRun = true

	summary, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if !summary.DryRun {
		t.Fatal("expected DryRun summary flag set")
	}
	if _, err := os.Stat(filepath.Join(remoteDir, "a.txt")); err == nil {
		t.Fatal("expected dry run not to write any files to remote")
	}
}
