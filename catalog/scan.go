package catalog

import (
	"os"
	"path/filepath"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
)

// scannedFile is one file discovered by a source-directory scan.
type scannedFile struct {
	relPath string // POSIX-separated, relative to the scan root
	absPath string
	size    int64
}

// scan walks srcDir recursively and returns every regular file found.
// Symlinks are skipped: spec §9 leaves symlink handling as an open
// question, and silently dereferencing them risks hashing content outside
// srcDir, so this implementation declines to follow them rather than guess.
func scan(srcDir string) ([]scannedFile, error) {
	var files []scannedFile

	err := godirwalk.Walk(srcDir, &godirwalk.Options{
		Unsorted: true,
		Callback: func(osPath string, de *godirwalk.Dirent) error {
			if de.IsSymlink() {
				return godirwalk.SkipThis
			}
			if !de.IsRegular() {
				return nil
			}

			rel, err := filepath.Rel(srcDir, osPath)
			if err != nil {
				return errors.Wrapf(err, "could not compute relative path for %s", osPath)
			}

			info, err := os.Lstat(osPath)
			if err != nil {
				return errors.Wrapf(err, "could not stat %s", osPath)
			}

			files = append(files, scannedFile{
				relPath: filepath.ToSlash(rel),
				absPath: osPath,
				size:    info.Size(),
			})
			return nil
		},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "error scanning %s", srcDir)
	}

	return files, nil
}
