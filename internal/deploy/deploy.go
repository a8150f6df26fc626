// Package deploy orchestrates the full one-way synchronization protocol:
// connect, run pre-jobs, load the remote manifest, scan the local tree,
// plan the diff, upload, rename, delete, purge, run post-jobs, and clear
// the running marker. Phase transitions are published on an EventBus so
// the CLI's progress logger can subscribe without the deployer knowing
// about any particular UI.
package deploy

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"

	"htdeploy/internal/config"
	"htdeploy/internal/fingerprint"
	"htdeploy/internal/jobs"
	"htdeploy/internal/logger"
	"htdeploy/internal/manifest"
	"htdeploy/internal/planner"
	"htdeploy/internal/scanner"
	"htdeploy/internal/server"
)

// Event topics published on the Deployer's bus.
const (
	TopicPhase          = "deploy:phase"
	TopicUploadProgress = "deploy:upload:progress"
	TopicDeleteFailed   = "deploy:delete:failed"
)

// Summary reports what a Run actually did.
type Summary struct {
	Uploaded        []string
	Deleted         []string
	ManifestChanged bool
	DryRun          bool
	AlreadySynced   bool
	DeleteErrors    []error
}

// Deployer owns one Server for the duration of Run and drives it through
// every phase exactly once.
type Deployer struct {
	Cfg          *config.Config
	Server       server.Server
	Logger       *logger.Logger
	Bus          EventBus.Bus
	Preprocessor scanner.Preprocessor // may be nil
	DryRun       bool
}

// New builds a Deployer. If bus is nil, a private EventBus is created so
// Run always has somewhere to publish phase events.
func New(cfg *config.Config, srv server.Server, log *logger.Logger, bus EventBus.Bus) *Deployer {
	if log == nil {
		log = logger.Default
	}
	if bus == nil {
		bus = EventBus.New()
	}
	return &Deployer{Cfg: cfg, Server: srv, Logger: log, Bus: bus}
}

func (d *Deployer) publishPhase(name string) {
	d.Logger.Infof("phase: %s", name)
	d.Bus.Publish(TopicPhase, name)
}

// Run executes the full protocol against ctx. Cancellation is checked
// between phases; it does not roll back work already committed — by
// design, per the .deploytmp-then-rename discipline, a cancelled deploy
// leaves the remote tree in a harmless intermediate state.
func (d *Deployer) Run(ctx context.Context) (Summary, error) {
	cfg := d.Cfg
	manifestName := cfg.ManifestName()
	manifestPath := "/" + manifestName
	runningMarkerPath := "/" + manifestName + ".running"

	preJobs, err := jobs.ParseJobs(cfg.Jobs.Before)
	if err != nil {
		return Summary{}, fmt.Errorf("config error parsing pre-jobs: %w", err)
	}
	postJobs, err := jobs.ParseJobs(cfg.Jobs.After)
	if err != nil {
		return Summary{}, fmt.Errorf("config error parsing post-jobs: %w", err)
	}
	localPreJobs, remotePreJobs := jobs.SplitLocal(preJobs)

	// 1. Connect.
	d.publishPhase("connect")
	if err := d.Server.Connect(); err != nil {
		return Summary{}, fmt.Errorf("connect: %w", err)
	}
	defer d.Server.Close()

	// 2. Local pre-jobs.
	d.publishPhase("local-pre-jobs")
	if err := jobs.Run(localPreJobs, nil); err != nil {
		return Summary{}, err
	}

	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}

	// 3. Load remote manifest. Tolerates absence/corruption as empty.
	d.publishPhase("load-manifest")
	remoteMap := d.loadRemoteManifest(manifestPath)

	// 4. Scan. Build local FileMap; remove the manifest path.
	d.publishPhase("scan")
	localMap, err := scanner.Scan(cfg.LocalPath, scanner.Options{
		IgnorePatterns: cfg.Ignores,
		Preprocessor:   d.Preprocessor,
		Logger:         d.Logger,
	})
	if err != nil {
		return Summary{}, fmt.Errorf("scan: %w", err)
	}
	delete(localMap, manifestPath)

	// 5. Plan.
	d.publishPhase("plan")
	result := planner.Plan(localMap, remoteMap, manifestPath, cfg.AllowDelete)

	// 6. Fast paths.
	if len(result.Uploads) == 0 && len(result.Deletes) == 0 {
		d.Logger.Infof("already synchronized")
		return Summary{AlreadySynced: true}, nil
	}
	if d.DryRun {
		d.Logger.Infof("dry run: %d uploads, %d deletes planned", len(result.Uploads), len(result.Deletes))
		return Summary{Uploaded: result.Uploads, Deleted: result.Deletes, ManifestChanged: result.ManifestChanged, DryRun: true}, nil
	}

	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}

	// 7. Running marker.
	d.publishPhase("running-marker")
	if err := d.writeRunningMarker(runningMarkerPath); err != nil {
		return Summary{}, fmt.Errorf("running marker: %w", err)
	}

	// 8. Remote pre-jobs.
	d.publishPhase("remote-pre-jobs")
	if err := jobs.Run(remotePreJobs, d.Server); err != nil {
		return Summary{}, err
	}

	// 9. Upload phase.
	d.publishPhase("upload")
	renameList, err := d.uploadAll(ctx, result.Uploads, localMap, remoteMap, manifestPath)
	if err != nil {
		return Summary{}, fmt.Errorf("upload: %w", err)
	}

	// 10. Rename phase.
	d.publishPhase("rename")
	for _, target := range renameList {
		if err := d.Server.RenameFile(target+tempSuffix, target); err != nil {
			return Summary{}, fmt.Errorf("rename: %w", err)
		}
	}

	// 11. Delete phase.
	d.publishPhase("delete")
	var deleteErrors []error
	for _, p := range result.Deletes {
		var err error
		if remoteMap.IsDir(p) {
			err = d.Server.RemoveDir(p)
		} else {
			err = d.Server.RemoveFile(p)
		}
		if err != nil {
			d.Logger.Warnf("delete failed for %s: %v", p, err)
			d.Bus.Publish(TopicDeleteFailed, p, err)
			deleteErrors = append(deleteErrors, err)
		}
	}

	// 12. Purge phase.
	d.publishPhase("purge")
	for _, purgePath := range cfg.Purge {
		if err := d.Server.Purge(purgePath, func(entry string) {
			d.Logger.Debugf("purged %s", entry)
		}); err != nil {
			return Summary{}, fmt.Errorf("purge: %w", err)
		}
	}

	// 13. Post-jobs.
	d.publishPhase("post-jobs")
	if err := jobs.Run(postJobs, d.Server); err != nil {
		return Summary{}, err
	}

	// 14. Clear running marker.
	d.publishPhase("clear-running-marker")
	if err := d.Server.RemoveFile(runningMarkerPath); err != nil {
		return Summary{}, fmt.Errorf("clear running marker: %w", err)
	}

	d.Logger.Successf("deployed %d upload(s), %d delete(s)", len(result.Uploads), len(result.Deletes))

	return Summary{
		Uploaded:        result.Uploads,
		Deleted:         result.Deletes,
		ManifestChanged: result.ManifestChanged,
		DeleteErrors:    deleteErrors,
	}, nil
}

const tempSuffix = ".deploytmp"

func (d *Deployer) loadRemoteManifest(manifestPath string) fingerprint.FileMap {
	tmp, err := os.CreateTemp("", "htdeploy-manifest-*")
	if err != nil {
		return fingerprint.FileMap{}
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := d.Server.ReadFile(manifestPath, tmpPath); err != nil {
		d.Logger.Debugf("no remote manifest yet (treating as first deploy): %v", err)
		return fingerprint.FileMap{}
	}
	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return fingerprint.FileMap{}
	}
	fm, err := manifest.Decode(data)
	if err != nil {
		d.Logger.Warnf("remote manifest malformed, treating as empty: %v", err)
		return fingerprint.FileMap{}
	}
	return fm
}

func (d *Deployer) writeRunningMarker(markerPath string) error {
	tmp, err := os.CreateTemp("", "htdeploy-marker-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(uuid.NewString()); err != nil {
		tmp.Close()
		return err
	}
	tmp.Close()
	return d.Server.WriteFile(tmp.Name(), markerPath, nil)
}

// uploadAll ensures parent directories exist, preprocesses and uploads
// file content to its .deploytmp path, and returns the ordered list of
// final target paths to rename in the next phase. The manifest entry (if
// present, always last in uploads) is built from localMap in memory
// rather than scanned from disk.
func (d *Deployer) uploadAll(ctx context.Context, uploads []string, localMap, remoteMap fingerprint.FileMap, manifestPath string) ([]string, error) {
	var renameList []string
	createdDirs := map[string]bool{}

	for _, p := range uploads {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if p == manifestPath {
			// Manifest content reflects the post-deploy state: localMap
			// (which already carries its directory entries), with the
			// manifest path itself never included (per the FileMap invariant).
			finalMap := localMap.Clone()
			delete(finalMap, manifestPath)
			data, err := manifest.Encode(finalMap)
			if err != nil {
				return nil, err
			}
			tmp, err := os.CreateTemp("", "htdeploy-manifest-out-*")
			if err != nil {
				return nil, err
			}
			tmpPath := tmp.Name()
			if _, err := tmp.Write(data); err != nil {
				tmp.Close()
				os.Remove(tmpPath)
				return nil, err
			}
			tmp.Close()
			defer os.Remove(tmpPath)

			dir := path.Dir(p)
			if !createdDirs[dir] {
				if err := d.Server.CreateDir(dir); err != nil {
					return nil, err
				}
				createdDirs[dir] = true
			}
			if err := d.Server.WriteFile(tmpPath, p+tempSuffix, nil); err != nil {
				return nil, err
			}
			renameList = append(renameList, p)
			continue
		}

		if localMap[p] == fingerprint.DirSentinel {
			if err := d.Server.CreateDir(p); err != nil {
				return nil, err
			}
			createdDirs[p] = true
			continue
		}

		dir := path.Dir(p)
		if !createdDirs[dir] {
			if err := d.Server.CreateDir(dir); err != nil {
				return nil, err
			}
			createdDirs[dir] = true
		}

		absLocal := filepath.Join(d.Cfg.LocalPath, filepath.FromSlash(p))
		source := absLocal
		if d.Preprocessor != nil {
			if processed, err := d.Preprocessor.Process(absLocal, strings.TrimPrefix(p, "/")); err == nil {
				source = processed
			}
		}

		var size int64
		if st, err := os.Stat(source); err == nil {
			size = st.Size()
		}
		progress := func(pct int) {
			d.Bus.Publish(TopicUploadProgress, p, pct)
			d.Logger.Progress(p, size*int64(pct)/100, size)
		}
		if err := d.Server.WriteFile(source, p+tempSuffix, progress); err != nil {
			return nil, err
		}
		d.Logger.ProgressDone()
		renameList = append(renameList, p)
	}

	return renameList, nil
}
