package storage

import (
	"fmt"
	"path"
	"regexp"
	"time"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// ModelTimestampLayout names generated models uniquely per second,
// matching the <base>_<YYYYMMDD_HHMMSS>.yaml convention.
const ModelTimestampLayout = "20060102_150405"

func BuildModelPath(workspace, baseName string, generatedAt time.Time) (string, error) {
	if err := validatePathComponent(workspace, "workspace"); err != nil {
		return "", err
	}
	if err := validatePathComponent(baseName, "model base name"); err != nil {
		return "", err
	}
	return path.Join(
		workspace,
		"models",
		fmt.Sprintf("%s_%s.yaml", baseName, generatedAt.UTC().Format(ModelTimestampLayout)),
	), nil
}

func BuildModelPrefix(workspace string) (string, error) {
	if err := validatePathComponent(workspace, "workspace"); err != nil {
		return "", err
	}
	return path.Join(workspace, "models") + "/", nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
