package e2e

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmokeFlow(t *testing.T) {
	home := t.TempDir()
	binaryPath := buildBinary(t)
	input, err := writeExportFixture(home)
	require.NoError(t, err)

	output := filepath.Join(home, "out", "trip.kml")
	stdout, stderr, err := runKMLX(t, binaryPath, home, "parse", "-f", input, "-o", output, "--stats")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "2 resolved")
	assert.Contains(t, stdout, "1 failed")

	stdout, stderr, err = runKMLX(t, binaryPath, home, "split", "-f", output, "-o", filepath.Join(home, "out", "leg.kml"), "--placements-per-file", "1")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "leg2.kml")

	stdout, stderr, err = runKMLX(t, binaryPath, home, "errors", "--file", filepath.Join(home, "out", "trip.errors.toml"))
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "https://example.com/elsewhere")
}

func buildBinary(t *testing.T) string {
	t.Helper()

	binaryPath := filepath.Join(t.TempDir(), "kmlx-e2e")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/kmlx")
	cmd.Dir = repoRoot(t)

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "build kmlx binary: %s", string(output))
	return binaryPath
}

func runKMLX(t *testing.T, binaryPath, home string, args ...string) (string, string, error) {
	t.Helper()

	cmd := exec.Command(binaryPath, args...)
	cmd.Env = append(os.Environ(), "HOME="+home)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func repoRoot(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}

// writeExportFixture writes a saved-places export that resolves without a
// browser: two search rows and one unrecognized URL.
func writeExportFixture(home string) (string, error) {
	export := `Title,Note,URL,Comment
Hill,Dry,"https://www.google.com/maps/search/33.895,-112.333",
Lake,,"https://www.google.com/maps/search/38.61,-106.32",Swim
Odd,,https://example.com/elsewhere,
`

	path := filepath.Join(home, "saved.csv")
	return path, os.WriteFile(path, []byte(export), 0o644)
}
