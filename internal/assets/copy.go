package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/himu-me/notepress/internal/fsutil"
)

// CopyTree mirrors every regular file under src into dst, rewriting a
// destination only when its bytes differ. It returns the number of files
// written. A missing src is not an error.
func CopyTree(src, dst string) (int, error) {
	if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	written := 0
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		changed, err := fsutil.CopyIfChanged(path, filepath.Join(dst, rel))
		if err != nil {
			return err
		}
		if changed {
			written++
		}
		return nil
	})
	if err != nil {
		return written, fmt.Errorf("copy %s: %w", src, err)
	}
	return written, nil
}
