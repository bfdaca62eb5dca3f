package util

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	controlChars  = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	reservedChars = regexp.MustCompile(`[\\/:*?"<>|]`)
	dashRuns      = regexp.MustCompile(`-+`)
)

// Device names Windows refuses as file names.
var windowsReserved = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

const writeCheckFile = ".anisync_write_check"

// EnsureWritableDir creates dir if it does not exist and checks that files
// can be written in it.
func EnsureWritableDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("directory path cannot be empty")
	}
	clean := filepath.Clean(dir)

	info, err := os.Stat(clean)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("path exists but is not a directory: %s", clean)
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(clean, 0o755); err != nil {
			return fmt.Errorf("cannot create directory: %w", err)
		}
	case err != nil:
		return fmt.Errorf("cannot access path: %w", err)
	}

	check := filepath.Join(clean, writeCheckFile)
	f, err := os.Create(check)
	if err != nil {
		return fmt.Errorf("no write permission for %s: %w", clean, err)
	}
	f.Close()
	return os.Remove(check)
}

// SanitizeFolderName makes one path component safe on Windows, macOS and
// Linux. It is applied to anime titles, group names and the directories
// built from them. Non-ASCII text is kept as is.
func SanitizeFolderName(name string) string {
	if name == "" {
		return ""
	}
	safe := controlChars.ReplaceAllString(name, "")
	safe = reservedChars.ReplaceAllString(safe, "-")
	safe = strings.Trim(safe, " .")
	safe = dashRuns.ReplaceAllString(safe, "-")
	safe = strings.Trim(safe, "-")
	if windowsReserved[strings.ToUpper(safe)] {
		safe += "_"
	}
	return safe
}
