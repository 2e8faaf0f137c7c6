package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"SolarFeed/internal/model"
)

// WriteLatest overwrites path with the record as a flat JSON object.
// The file is replaced through a rename so readers never see a torn write.
func WriteLatest(path string, rec model.Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode latest: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".latest-*.json")
	if err != nil {
		return fmt.Errorf("write latest %s: %w", path, err)
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write latest %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write latest %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write latest %s: %w", path, err)
	}
	return nil
}
