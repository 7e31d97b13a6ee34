package testsupport

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

// UpdateGoldenEnv rewrites golden files instead of comparing when set to 1.
const UpdateGoldenEnv = "UPDATE_GOLDEN"

const testdataDir = "testdata"

// FixturePath returns the path of a fixture under testdata.
func FixturePath(name string) string {
	return filepath.Join(testdataDir, name)
}

// GoldenPath returns the path of a golden file under testdata/golden.
func GoldenPath(name string) string {
	return filepath.Join(testdataDir, "golden", name)
}

// LoadFixture reads path, relative to the test package directory.
func LoadFixture(t testing.TB, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("load fixture %s: %v", path, err)
	}
	return data
}

// LoadFixtureJSON decodes the fixture at path into dest. Unknown fields fail
// the test so fixtures cannot drift from the structs that read them.
func LoadFixtureJSON(t testing.TB, path string, dest any) {
	t.Helper()

	dec := json.NewDecoder(bytes.NewReader(LoadFixture(t, path)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		t.Fatalf("decode fixture %s: %v", path, err)
	}
}

// WriteGolden stores data at path, creating parent directories.
func WriteGolden(t testing.TB, path string, data []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create golden dir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write golden %s: %v", path, err)
	}
}

// CompareWithGolden fails the test when actual differs from the golden file
// at path. With UPDATE_GOLDEN=1, or when the file does not exist yet, actual
// is written instead.
func CompareWithGolden(t testing.TB, path string, actual []byte) {
	t.Helper()

	expected, err := os.ReadFile(path)
	switch {
	case os.Getenv(UpdateGoldenEnv) == "1":
		WriteGolden(t, path, actual)
		return
	case errors.Is(err, fs.ErrNotExist):
		t.Logf("golden %s missing, writing it", path)
		WriteGolden(t, path, actual)
		return
	case err != nil:
		t.Fatalf("read golden %s: %v", path, err)
	}

	if !bytes.Equal(actual, expected) {
		t.Errorf("%s mismatch\nwant:\n%s\ngot:\n%s", path, expected, actual)
	}
}
