package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/hakim/vulnpipe/internal/models"
)

var unsafePathRe = regexp.MustCompile(`[^a-zA-Z0-9.\-]+`)

// SanitizeTarget makes a target safe to use as a path component.
// Anything outside alphanumerics, dots and hyphens becomes an
// underscore, so "10.0.0.0/24" turns into "10.0.0.0_24".
func SanitizeTarget(target string) string {
	return unsafePathRe.ReplaceAllString(target, "_")
}

// ScanDirPath builds the per-scan directory path:
// {baseDir}/{target}_{YYYYMMDD}_{HHMMSS}.
func ScanDirPath(baseDir, target string, startedAt time.Time) string {
	dirName := fmt.Sprintf("%s_%s", SanitizeTarget(target), startedAt.Format("20060102_150405"))
	return filepath.Join(baseDir, dirName)
}

// CreateScanDir creates the scan directory and the subdirectories the
// pipeline writes into: raw/ for scanner output, web/ for the secondary
// scanner, reports/ for rendered reports.
func CreateScanDir(baseDir, target string, startedAt time.Time) (string, error) {
	scanPath := ScanDirPath(baseDir, target, startedAt)

	for _, dir := range []string{scanPath,
		filepath.Join(scanPath, "raw"),
		filepath.Join(scanPath, "web"),
		filepath.Join(scanPath, "reports"),
	} {
		if err := EnsureDir(dir); err != nil {
			return "", err
		}
	}
	return scanPath, nil
}

// EnsureDir creates a directory and its parents if missing.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// WriteContext snapshots the full scan context as JSON into the scan
// directory, so results survive independently of the history database.
func WriteContext(sc *models.ScanContext) (string, error) {
	if sc.ScanDir == "" {
		return "", fmt.Errorf("scan context has no scan directory")
	}
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(sc.ScanDir, "context.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// ReadContext loads a previously written scan context snapshot.
func ReadContext(scanDir string) (*models.ScanContext, error) {
	data, err := os.ReadFile(filepath.Join(scanDir, "context.json"))
	if err != nil {
		return nil, err
	}
	var sc models.ScanContext
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}
