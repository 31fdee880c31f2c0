package main

import (
	"os"
	"path/filepath"

	"dirwatch/internal/metrics"
)

// writeMetricsFile replaces path with the registry in Prometheus text format.
// The file is written beside path and renamed so scrapers never read a
// partial file.
func writeMetricsFile(path string, registry *metrics.Registry) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if err := registry.WritePrometheus(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
