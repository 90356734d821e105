package state

import (
	"encoding/hex"
	"encoding/json" // For JSON encoding and decoding of the state file
	"os"            // For file system operations like reading and writing files
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3" // Fast content digests for incremental compilation
)

// FileName is the name of the build state file inside the build directory.
const FileName = "state.json"

// ObjectState represents the saved state of one compiled object file.
// It records the source the object was produced from and the digest of
// everything that influenced the compilation (source bytes, included headers
// and compiler arguments).
type ObjectState struct {
	Source string `json:"source"` // Source path relative to the project root
	Digest string `json:"digest"` // Hex BLAKE3 digest of source bytes and argument vector
}

// State holds the entire saved build state for a project.
// Objects is keyed by the object file path relative to the project root.
type State struct {
	Objects map[string]ObjectState `json:"objects"`
}

// Path returns the state file location for a build directory.
func Path(buildDir string) string {
	return filepath.Join(buildDir, FileName)
}

// LoadState loads the saved state from a JSON file at the given path.
// If the file does not exist or cannot be parsed, it returns a new empty State,
// which simply forces a full rebuild.
func LoadState(path string) *State {
	file, err := os.ReadFile(path)
	if err != nil {
		return &State{Objects: make(map[string]ObjectState)}
	}

	var st State
	if err := json.Unmarshal(file, &st); err != nil {
		return &State{Objects: make(map[string]ObjectState)}
	}

	// JSON may contain null for the map
	if st.Objects == nil {
		st.Objects = make(map[string]ObjectState)
	}
	return &st
}

// SaveState writes the given State to a JSON file at the given path.
// It pretty-prints the JSON with indentation for readability.
func SaveState(path string, st *State) error {
	file, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, file, 0644)
}

// Digest hashes the source file contents, the contents of every header it
// depends on, and the compiler arguments. deps must be in a stable order.
func Digest(sourcePath string, deps []string, args []string) (string, error) {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return "", err
	}

	h := blake3.New()
	_, _ = h.Write(data)
	_, _ = h.Write([]byte{0})
	for _, dep := range deps {
		body, err := os.ReadFile(dep)
		if err != nil {
			return "", err
		}
		_, _ = h.Write([]byte(dep))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write(body)
		_, _ = h.Write([]byte{0})
	}
	_, _ = h.Write([]byte(strings.Join(args, "\x00")))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// UpToDate reports whether object was built from source with the same digest
// and the object file is still on disk.
func (s *State) UpToDate(object, objectPath, digest string) bool {
	prev, ok := s.Objects[object]
	if !ok || prev.Digest != digest {
		return false
	}
	_, err := os.Stat(objectPath)
	return err == nil
}

// Record stores the digest for a freshly compiled object.
func (s *State) Record(object, source, digest string) {
	s.Objects[object] = ObjectState{Source: source, Digest: digest}
}
