package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Load reads a corpus file, choosing the format by extension: ".jsonl" and
// ".ndjson" are read as JSON lines, everything else as CSV.
func Load(path string, opts Options) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open corpus %s: %w", path, err)
	}
	defer f.Close()

	var res Result
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		res, err = ReadJSONL(f, opts)
	default:
		res, err = ReadCSV(f, opts)
	}
	if err != nil {
		return res, fmt.Errorf("load corpus %s: %w", path, err)
	}
	return res, nil
}
