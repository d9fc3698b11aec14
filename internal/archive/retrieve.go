package archive

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"glimpse/internal/config"
	"glimpse/internal/entries"
	"glimpse/internal/imaging"
)

// Path returns where entry's image lives: the archive unit for archived
// entries, the loose screenshot otherwise.
func Path(cfg *config.Config, entry entries.Entry) string {
	if entry.Archived && entry.ArchivedFilename != "" {
		if filepath.IsAbs(entry.ArchivedFilename) {
			return entry.ArchivedFilename
		}
		return filepath.Join(cfg.Paths.ArchiveDir, entry.ArchivedFilename)
	}
	return filepath.Join(cfg.Paths.ScreenshotsDir, entry.Filename)
}

// Open returns the encoded image bytes of entry, decompressing archived units.
func Open(cfg *config.Config, entry entries.Entry) ([]byte, error) {
	if entry.Filename == "" && entry.ArchivedFilename == "" {
		return nil, fmt.Errorf("entry %s has no image", entry.ID)
	}
	path := Path(cfg, entry)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !entry.Archived || entry.ArchivedFilename == "" {
		return data, nil
	}
	raw, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return raw, nil
}

// Load decodes entry's image. It reports false when no image is available,
// whatever the cause.
func Load(cfg *config.Config, entry entries.Entry) (image.Image, bool) {
	data, err := Open(cfg, entry)
	if err != nil {
		return nil, false
	}
	img, _, err := imaging.Decode(data)
	if err != nil {
		return nil, false
	}
	return img, true
}
