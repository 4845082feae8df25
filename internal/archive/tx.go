package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// surfaceTx is the all-or-nothing commit mechanism. Every surface's full new
// content is first staged to a sibling ".tmp" file; swap then moves each
// live file aside to ".bak" and renames the staged file into place. If any
// swap step fails, the already-swapped surfaces are restored from their
// backups. Renames within one directory are atomic on POSIX filesystems, so
// a reader never sees a half-written surface.
type surfaceTx struct {
	staged  []stagedFile
	swapped int  // how many surfaces have been renamed into place
	done    bool // swap finished; cleanup removes backups instead of temps
}

type stagedFile struct {
	target string
	tmp    string
	bak    string
	hadOld bool
}

func newSurfaceTx() *surfaceTx {
	return &surfaceTx{}
}

// stage writes one surface's complete new content next to its target.
func (tx *surfaceTx) stage(target string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(target), err)
	}

	tmp := target + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to stage %s: %w", target, err)
	}

	if err := encodeRows(f, header, rows); err != nil {
		f.Close()
		return fmt.Errorf("failed to stage %s: %w", target, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}

	_, statErr := os.Stat(target)
	tx.staged = append(tx.staged, stagedFile{
		target: target,
		tmp:    tmp,
		bak:    target + ".bak",
		hadOld: statErr == nil,
	})
	return nil
}

// swap renames every staged file into place. On the first failure it rolls
// back the surfaces already swapped and reports the error; the caller sees
// either all surfaces updated or none.
func (tx *surfaceTx) swap() error {
	for i, sf := range tx.staged {
		if sf.hadOld {
			if err := os.Rename(sf.target, sf.bak); err != nil {
				tx.rollback(i)
				return fmt.Errorf("failed to back up %s: %w", sf.target, err)
			}
		}
		if err := os.Rename(sf.tmp, sf.target); err != nil {
			if sf.hadOld {
				if rerr := os.Rename(sf.bak, sf.target); rerr != nil {
					err = errors.Join(err, rerr)
				}
			}
			tx.rollback(i)
			return fmt.Errorf("failed to swap %s: %w", sf.target, err)
		}
		tx.swapped = i + 1
	}
	tx.done = true
	return nil
}

// rollback restores the first n surfaces from their backups.
func (tx *surfaceTx) rollback(n int) {
	for i := n - 1; i >= 0; i-- {
		sf := tx.staged[i]
		if sf.hadOld {
			if err := os.Rename(sf.bak, sf.target); err != nil {
				// The backup still exists on disk; operator intervention can
				// recover it, and the error is loud.
				log.Errorf("archive: rollback of %s failed: %v", sf.target, err)
			}
		} else {
			if err := os.Remove(sf.target); err != nil && !os.IsNotExist(err) {
				log.Errorf("archive: rollback removal of %s failed: %v", sf.target, err)
			}
		}
	}
	tx.swapped = 0
}

// cleanup removes whatever intermediate files remain: temp files when the
// transaction never completed, backups when it did.
func (tx *surfaceTx) cleanup() {
	for i, sf := range tx.staged {
		if !tx.done && i >= tx.swapped {
			if err := os.Remove(sf.tmp); err != nil && !os.IsNotExist(err) {
				log.Warnf("archive: failed to remove staging file %s: %v", sf.tmp, err)
			}
		}
		if tx.done && sf.hadOld {
			if err := os.Remove(sf.bak); err != nil && !os.IsNotExist(err) {
				log.Warnf("archive: failed to remove backup %s: %v", sf.bak, err)
			}
		}
	}
}
