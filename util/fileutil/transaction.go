package fileutil

import (
	"fmt"
	"github.com/APTrust/bagr/bagerr"
	"github.com/satori/go.uuid"
	"path/filepath"
)

type stagedFile struct {
	name     string
	tempPath string
}

// Transaction replaces a set of files in one directory so that no
// reader ever sees a half-written one. Each file is first written in
// full to a hidden temp file next to its destination, then all temp
// files are renamed over their destinations in the order they were
// staged. Nothing is visible until the first rename.
type Transaction struct {
	fs        FileSystem
	dir       string
	staged    []stagedFile
	committed int
}

// NewTransaction starts a transaction for files in dir.
func NewTransaction(fs FileSystem, dir string) *Transaction {
	return &Transaction{fs: fs, dir: dir}
}

// TempName returns the name of the temp file name is staged in.
func TempName(name string) string {
	return fmt.Sprintf(".%s.%s.tmp", name, uuid.NewV4().String())
}

// Stage writes data to a new temp file that will become dir/name on
// Commit. The temp file is synced before Stage returns.
func (tx *Transaction) Stage(name string, data []byte) error {
	tempPath := filepath.Join(tx.dir, TempName(name))
	file, err := tx.fs.Create(tempPath)
	if err != nil {
		return bagerr.IO("create", tempPath, err)
	}
	tx.staged = append(tx.staged, stagedFile{name: name, tempPath: tempPath})
	if _, err = file.Write(data); err == nil {
		err = file.Sync()
	}
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		return bagerr.IO("write", tempPath, err)
	}
	return nil
}

// Names lists the staged destination names in commit order.
func (tx *Transaction) Names() []string {
	names := make([]string, len(tx.staged))
	for i, file := range tx.staged {
		names[i] = file.name
	}
	return names
}

// Commit renames every staged file into place. If the first rename
// fails, the temp files are removed and the directory is unchanged.
// If a later rename fails, the temp files not yet renamed are left in
// place so a reader can tell the directory holds a partial commit.
func (tx *Transaction) Commit() error {
	for tx.committed < len(tx.staged) {
		file := tx.staged[tx.committed]
		dest := filepath.Join(tx.dir, file.name)
		if err := tx.fs.Rename(file.tempPath, dest); err != nil {
			if tx.committed == 0 {
				tx.Rollback()
			}
			return bagerr.IO("rename", dest, err)
		}
		tx.committed++
	}
	return nil
}

// Rollback removes the temp files that have not been committed. It is
// safe to call after a successful Commit, when it does nothing.
func (tx *Transaction) Rollback() {
	for _, file := range tx.staged[tx.committed:] {
		tx.fs.Remove(file.tempPath)
	}
	tx.staged = tx.staged[:tx.committed]
}
