// Package manifest encodes and decodes the remote manifest file: a raw
// DEFLATE stream of LF-separated "fingerprint=path" records.
package manifest

import (
	"bytes"
	"compress/flate"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"htdeploy/internal/fingerprint"
)

// ErrMalformed is the sentinel wrapped by the *ManifestError Decode
// returns when the payload cannot be inflated. Callers treat this the
// same as an absent manifest (empty FileMap).
var ErrMalformed = errors.New("manifest: malformed payload")

// ManifestError wraps a manifest decode failure, preserving the
// underlying inflate error alongside the ErrMalformed sentinel.
type ManifestError struct {
	Err error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("manifest: malformed payload: %v", e.Err)
}

func (e *ManifestError) Unwrap() error { return e.Err }

// Is reports ErrMalformed as a match, so callers can keep using
// errors.Is(err, ErrMalformed) without caring about the wrapped cause.
func (e *ManifestError) Is(target error) bool { return target == ErrMalformed }

// Encode serializes fm as a raw-DEFLATE stream at maximum compression.
// Line order is sorted for reproducibility, though it's not required for
// correctness.
func Encode(fm fingerprint.FileMap) ([]byte, error) {
	var lines []string
	for path, fp := range fm {
		tag := fp
		if fp == fingerprint.DirSentinel {
			tag = "1"
		}
		lines = append(lines, tag+"="+path)
	}
	sort.Strings(lines)

	payload := strings.Join(lines, "\n")
	if len(lines) > 0 {
		payload += "\n"
	}

	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write([]byte(payload)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode inflates a raw-DEFLATE manifest payload into a FileMap. A
// malformed payload yields ErrMalformed; callers should treat that (and
// an absent manifest) as an empty FileMap.
func Decode(data []byte) (fingerprint.FileMap, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, &ManifestError{Err: err}
	}

	fm := fingerprint.FileMap{}
	for _, line := range strings.Split(string(raw), "\n") {
		if line == "" {
			continue
		}
		idx := strings.Index(line, "=")
		if idx < 0 {
			continue
		}
		tag, path := line[:idx], line[idx+1:]
		if tag == "1" {
			fm[path] = fingerprint.DirSentinel
		} else {
			fm[path] = tag
		}
	}
	return fm, nil
}
