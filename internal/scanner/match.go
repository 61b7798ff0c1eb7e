package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// SlotCount is the number of photo positions on a template.
const SlotCount = 8

// NoBGSuffix marks photos produced by background removal.
const NoBGSuffix = "_NO_BG"

func splitJPEG(name string) (stem string, ok bool) {
	ext := filepath.Ext(name)
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return strings.TrimSuffix(name, ext), true
	default:
		return "", false
	}
}

// MatchSlot reports whether a file name is a camera photo for slot n. Camera
// files look like "<n>..MG..<digits>.jpg", for example "3_IMG_0412.jpg".
func MatchSlot(name string, slot int) bool {
	stem, ok := splitJPEG(name)
	if !ok {
		return false
	}
	matched, err := filepath.Match(strconv.Itoa(slot)+"*MG*[0-9]*", stem)
	return err == nil && matched
}

func isCameraPhoto(name string) bool {
	for slot := 1; slot <= SlotCount; slot++ {
		if MatchSlot(name, slot) {
			return true
		}
	}
	return false
}

// FormatSlots renders slot numbers as "4, 7" for messages and tables.
func FormatSlots(slots []int) string {
	parts := make([]string, len(slots))
	for i, slot := range slots {
		parts[i] = strconv.Itoa(slot)
	}
	return strings.Join(parts, ", ")
}

func isExtraOral(name string) bool {
	return MatchSlot(name, 1) || MatchSlot(name, 2) || MatchSlot(name, 3)
}

// IsNoBG reports whether the file is a background-removed photo.
func IsNoBG(name string) bool {
	stem, ok := splitJPEG(name)
	return ok && strings.HasSuffix(stem, NoBGSuffix)
}

// NoBGPath returns the background-removed output path for a photo.
func NoBGPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + NoBGSuffix + ".jpg"
}

// isTemplateName reports whether name is a composite for patient id:
// "<id>_<anything>.jpg" that is neither a camera photo nor a NO_BG output.
func isTemplateName(name string, id int64) bool {
	if id <= 0 || !strings.HasPrefix(name, strconv.FormatInt(id, 10)+"_") {
		return false
	}
	if _, ok := splitJPEG(name); !ok {
		return false
	}
	return !isCameraPhoto(name) && !IsNoBG(name)
}

// pickSlots chooses one file per slot from a sorted listing, preferring the
// background-removed variant when one exists.
func pickSlots(dir string, names []string, template string) ([SlotCount]string, []int) {
	var (
		slots   [SlotCount]string
		missing []int
	)
	for slot := 1; slot <= SlotCount; slot++ {
		var plain, noBG string
		for _, name := range names {
			if name == template || !MatchSlot(name, slot) {
				continue
			}
			if IsNoBG(name) {
				if noBG == "" {
					noBG = name
				}
				continue
			}
			if plain == "" {
				plain = name
			}
		}
		switch {
		case noBG != "":
			slots[slot-1] = filepath.Join(dir, noBG)
		case plain != "":
			slots[slot-1] = filepath.Join(dir, plain)
		default:
			missing = append(missing, slot)
		}
	}
	return slots, missing
}

func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// FindTemplate returns the composite for patient id inside dir, or "" when
// none exists.
func FindTemplate(dir string, id int64) (string, error) {
	names, err := listFiles(dir)
	if err != nil {
		return "", fmt.Errorf("list %s: %w", dir, err)
	}
	for _, name := range names {
		if isTemplateName(name, id) {
			return filepath.Join(dir, name), nil
		}
	}
	return "", nil
}

// BackgroundCandidates lists the extra-oral photos in dir that still need
// background removal: ".jpg" camera photos for slots 1 to 3 that are not
// NO_BG outputs and have no NO_BG sibling yet. Templates and other files
// are never candidates.
func BackgroundCandidates(dir string) ([]string, error) {
	names, err := listFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	present := make(map[string]struct{}, len(names))
	for _, name := range names {
		present[name] = struct{}{}
	}
	var out []string
	for _, name := range names {
		if filepath.Ext(name) != ".jpg" || IsNoBG(name) {
			continue
		}
		if !isExtraOral(name) {
			continue
		}
		if _, done := present[filepath.Base(NoBGPath(name))]; done {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}
