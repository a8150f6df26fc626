// Package planner diffs a local FileMap against a remote FileMap to
// produce the ordered upload and delete lists the deployer executes.
package planner

import (
	"path"
	"sort"
	"strings"

	"htdeploy/internal/fingerprint"
)

// Result is the output of Plan.
type Result struct {
	Uploads         []string
	Deletes         []string
	ManifestChanged bool
}

// Plan diffs local against remote. manifestPath, if non-empty and
// manifestChanged is true, is appended as the final upload entry so it is
// renamed into place only after every content upload has committed.
func Plan(local, remote fingerprint.FileMap, manifestPath string, allowDelete bool) Result {
	var uploads []string
	for p, lfp := range local {
		rfp, present := remote[p]
		if !present || rfp != lfp {
			uploads = append(uploads, p)
		}
	}
	uploads = groupByParentDir(uploads)

	var deletes []string
	if allowDelete {
		for p := range remote {
			if _, present := local[p]; !present {
				deletes = append(deletes, p)
			}
		}
		sort.Sort(sort.Reverse(sort.StringSlice(deletes)))
	}

	manifestChanged := !mapsEqual(local, remote)
	if manifestChanged && manifestPath != "" {
		uploads = append(uploads, manifestPath)
	}

	return Result{Uploads: uploads, Deletes: deletes, ManifestChanged: manifestChanged}
}

// groupByParentDir orders paths so that, within each parent directory's
// group of uploads, entries appear together — directories are thus
// created at most once in sequence rather than being revisited.
func groupByParentDir(paths []string) []string {
	sort.Strings(paths)

	byDir := map[string][]string{}
	var dirs []string
	for _, p := range paths {
		dir := path.Dir(strings.TrimSuffix(p, "/"))
		if _, seen := byDir[dir]; !seen {
			dirs = append(dirs, dir)
		}
		byDir[dir] = append(byDir[dir], p)
	}
	sort.Strings(dirs)

	out := make([]string, 0, len(paths))
	for _, dir := range dirs {
		out = append(out, byDir[dir]...)
	}
	return out
}

func mapsEqual(a, b fingerprint.FileMap) bool {
	if len(a) != len(b) {
		return false
	}
	for p, fp := range a {
		if b[p] != fp {
			return false
		}
	}
	return true
}
