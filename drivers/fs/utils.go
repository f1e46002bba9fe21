package fs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// AtomicPrefix is a file prefix for temporary files that are created during
// AtomicWrite.
const AtomicPrefix = ".zinc.atomic."

// ManagedWrite encapsulates an io.WriteCloser such that the write can be
// rolled back upon error.
type ManagedWrite struct {
	io.WriteCloser
	closeFunc    func() error
	rollbackFunc func() error
	closed       bool
}

// Close frees up any resources and performs the necessary actions to
// commit the write.
func (w *ManagedWrite) Close() error {
	return w.closeWith(w.closeFunc)
}

// Rollback attempts to undo any tangible effects of an incomplete/errored write.
func (w *ManagedWrite) Rollback() error {
	return w.closeWith(w.rollbackFunc)
}

func (w *ManagedWrite) closeWith(f func() error) error {
	if w.closed {
		return nil
	}
	err := w.WriteCloser.Close()
	if err != nil {
		return err
	}
	w.closed = true

	if f != nil {
		return f()
	}

	return nil
}

// AtomicWrite creates a temporary file which is opened for write (only),
// in the same directory as the specified path. Once written and closed,
// it atomically renames the temp file to match the given path.
//
// Note, Close() may fail. If it does, it is up to the caller to determine the
// appropriate response (e.g. Rollback(), or log it and manually inspect).
func AtomicWrite(path string) (*ManagedWrite, error) {
	tname := filepath.Join(filepath.Dir(path), AtomicPrefix+filepath.Base(path))
	tfile, err := os.OpenFile(tname, os.O_WRONLY|os.O_EXCL|os.O_CREATE, 0664)
	if err != nil {
		return nil, errors.Wrapf(err, "could not create temporary file %s", tname)
	}

	return &ManagedWrite{
		WriteCloser: tfile,
		closeFunc: func() error {
			err := os.Rename(tname, path)
			return errors.Wrapf(err, "could not rename %s to %s", tname, path)
		},
		rollbackFunc: func() error {
			return os.Remove(tname)
		},
	}, nil
}

// SafeWrite attempts to create a file at the given path to write to. If
// a file already exists there, it does an AtomicWrite which writes to
// a temporary file, and atomically renames when successful, replacing the
// existing file.
func SafeWrite(path string) (*ManagedWrite, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_EXCL|os.O_CREATE, 0664)
	if err != nil && os.IsExist(err) {
		return AtomicWrite(path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "could not create file for writing %s", path)
	}

	return &ManagedWrite{
		WriteCloser: file,
		rollbackFunc: func() error {
			return os.Remove(path)
		},
	}, nil
}

// TeeWriter passes along bytes to a given "Tee" writer as it writes
// to a Destination writer.
type TeeWriter struct {
	io.Writer           // Destination
	Tee       io.Writer // Bytes get cc'd to the tee
}

func (t *TeeWriter) Write(b []byte) (n int, err error) {
	wbytes, err := t.Writer.Write(b)
	if err != nil {
		return wbytes, err
	}

	tbytes, err := t.Tee.Write(b[:wbytes])
	if err != nil {
		return tbytes, errors.Wrapf(err, "could not tee write")
	}
	if tbytes != wbytes {
		return wbytes, fmt.Errorf("bytes written != bytes processed")
	}

	return wbytes, nil
}

// EnsureDir creates path (and parents) if it does not already exist. If it
// exists and is not a directory, it returns an error.
func EnsureDir(path string) error {
	finfo, err := os.Stat(path)
	if err != nil && os.IsNotExist(err) {
		return errors.Wrapf(os.MkdirAll(path, 0755), "could not create directory %s", path)
	} else if err != nil {
		return errors.Wrapf(err, "could not stat %s", path)
	}

	if !finfo.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}
