// Package artifact manages the directories the fuzz engine reads inputs
// from and writes its findings to.
package artifact

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"code-intelligence.com/cargo-fuzz/pkg/log"
)

// Snapshot is the point in time before a run of the fuzz engine. Files
// modified after it are attributed to the run.
type Snapshot struct {
	Time time.Time
}

// Store provides access to the corpus, artifacts and coverage
// directories. It does not lock anything, it's assumed that no two
// processes operate on the directories of the same fuzz target at the
// same time.
type Store struct {
	fs  *afero.Afero
	now func() time.Time
}

func NewStore(fs *afero.Afero) *Store {
	return &Store{fs: fs, now: time.Now}
}

// Dir creates the directory if it doesn't exist yet and returns its
// path.
func (s *Store) Dir(path string) (string, error) {
	err := s.fs.MkdirAll(path, 0755)
	if err != nil {
		return "", errors.Wrapf(err, "could not create directory %s", path)
	}
	return path, nil
}

// Snapshot records the current time
func (s *Store) Snapshot() Snapshot {
	return Snapshot{Time: s.now()}
}

// NewFilesSince returns the regular files in dir which were modified
// after the snapshot was taken. Directories are skipped.
//
// Files created within the timestamp resolution of the filesystem
// before the snapshot can be missed, and files of another run finishing
// at the same time can be attributed to this run.
func (s *Store) NewFilesSince(dir string, snapshot Snapshot) ([]string, error) {
	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read directory entries of %s", dir)
	}

	var files []string
	for _, entry := range entries {
		if !entry.Mode().IsRegular() || !entry.ModTime().After(snapshot.Time) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	return files, nil
}

// MostRecentSince returns the most recently modified of the files
// returned by NewFilesSince, or an empty string if there is none.
func (s *Store) MostRecentSince(dir string, snapshot Snapshot) (string, error) {
	files, err := s.NewFilesSince(dir, snapshot)
	if err != nil {
		return "", err
	}

	var newest string
	var newestTime time.Time
	for _, file := range files {
		info, err := s.fs.Stat(file)
		if err != nil {
			return "", errors.WithStack(err)
		}
		if newest == "" || info.ModTime().After(newestTime) {
			newest = file
			newestTime = info.ModTime()
		}
	}
	return newest, nil
}

// ContainsRegularFiles returns whether any of the directories contains
// a regular file. Directories which don't exist are treated as empty.
func (s *Store) ContainsRegularFiles(dirs ...string) (bool, error) {
	for _, dir := range dirs {
		entries, err := s.fs.ReadDir(dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return false, errors.WithStack(err)
		}
		for _, entry := range entries {
			if entry.Mode().IsRegular() {
				return true, nil
			}
		}
	}
	return false, nil
}

// CountFiles returns the number of regular files in dir
func (s *Store) CountFiles(dir string) (int, error) {
	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	n := 0
	for _, entry := range entries {
		if entry.Mode().IsRegular() {
			n++
		}
	}
	return n, nil
}

// StageCorpus creates a staging directory for corpus minimization in
// the fuzz dir, which contains an empty corpus directory. It must be
// on the same filesystem as the corpus, so that the staged corpus can
// be swapped in by renaming.
func (s *Store) StageCorpus(fuzzDir string) (string, error) {
	stage, err := afero.TempDir(s.fs, fuzzDir, "cmin-")
	if err != nil {
		return "", errors.WithStack(err)
	}
	err = s.fs.Mkdir(StagedCorpus(stage), 0755)
	if err != nil {
		s.RemoveStage(stage)
		return "", errors.WithStack(err)
	}
	return stage, nil
}

// StagedCorpus returns the corpus directory of the staging directory
func StagedCorpus(stage string) string {
	return filepath.Join(stage, "corpus")
}

// SwapCorpus replaces the corpus with the staged corpus and removes the
// staging directory together with the old corpus.
//
// The two renames are not atomic as a pair: if the process is killed
// in between, the old corpus is left at <stage>/old.
func (s *Store) SwapCorpus(stage string, corpus string) error {
	old := filepath.Join(stage, "old")
	err := s.fs.Rename(corpus, old)
	if err != nil {
		return errors.WithStack(err)
	}
	err = s.fs.Rename(StagedCorpus(stage), corpus)
	if err != nil {
		// The stage is kept, it holds both the old and the minimized corpus
		return errors.Wrapf(err, "failed to move minimized corpus to %s, the previous corpus was moved to %s", corpus, old)
	}
	s.RemoveStage(stage)
	return nil
}

// RemoveStage removes the staging directory and prints any errors
func (s *Store) RemoveStage(stage string) {
	if os.Getenv("SKIP_CLEANUP") != "" {
		return
	}
	err := s.fs.RemoveAll(stage)
	if err != nil {
		log.Warnf("%+v", errors.WithStack(err))
	}
}
