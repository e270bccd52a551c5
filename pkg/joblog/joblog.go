// Package joblog computes and reads the per-job log file locations named in
// §6's on-disk layout: "a per-job log directory; file name derived
// deterministically from (jobId, source, platform, builder id, job key)."
package joblog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// dirName is the log directory, relative to the cache root.
const dirName = "logs"

// Extension is the per-job log file extension.
const Extension = ".log"

// Path computes the deterministic log file path for a single job.
func Path(cacheRoot string, jobID int64, source, platform, builderID, jobKey string) string {
	name := fmt.Sprintf("%d-%s-%s-%s-%s%s", jobID, sanitize(source), sanitize(platform), sanitize(builderID), sanitize(jobKey), Extension)
	return filepath.Join(cacheRoot, dirName, name)
}

func sanitize(s string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_")
	return r.Replace(s)
}

// Write records content as the log for a job, creating the log directory if
// necessary.
func Write(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("unable to create job log directory: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("unable to write job log: %w", err)
	}
	return nil
}

// Read returns the contents of a job's log file.
func Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read job log: %w", err)
	}
	return data, nil
}
