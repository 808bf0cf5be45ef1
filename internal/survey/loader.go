package survey

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

var (
	// ErrConfigMissing is returned by Load when the answers file does not exist.
	ErrConfigMissing = errors.New("survey answers file not found")
	// ErrNoQuestions marks an answers file that parsed to zero usable questions.
	ErrNoQuestions = errors.New("survey answers file contains no usable questions")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Load reads and parses the answers document at path. A missing file is the
// only failure that Parse's tolerance cannot absorb; it wraps ErrConfigMissing.
func Load(path string) (*Config, *Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrConfigMissing, path)
		}
		return nil, nil, fmt.Errorf("failed to read survey answers %s: %w", path, err)
	}
	cfg, report := Parse(string(bytes.TrimPrefix(data, utf8BOM)))
	return cfg, report, nil
}
