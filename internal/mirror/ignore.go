package mirror

import (
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/openmirror/mirrorbox/internal/utils"
)

const ignoreFileName = ".mirrorignore"

// Entries mirrorbox itself writes must never be propagated or deleted.
var defaultIgnoreLines = []string{
	metadataDirName,
	metadataDirName + "/",
	ignoreFileName,
}

// IgnoreList excludes paths from mirroring. Ignored entries are never copied
// to the replica and never deleted from it. Rules come from an optional
// .mirrorignore file (gitignore syntax) at the source root.
type IgnoreList struct {
	baseDir string
	ignore  *gitignore.GitIgnore
}

func NewIgnoreList(baseDir string) *IgnoreList {
	ignoreFile := filepath.Join(baseDir, ignoreFileName)

	var ignore *gitignore.GitIgnore
	if utils.FileExists(ignoreFile) {
		compiled, err := gitignore.CompileIgnoreFileAndLines(ignoreFile, defaultIgnoreLines...)
		if err == nil {
			ignore = compiled
		}
	}
	if ignore == nil {
		ignore = gitignore.CompileIgnoreLines(defaultIgnoreLines...)
	}

	return &IgnoreList{baseDir: baseDir, ignore: ignore}
}

// ShouldIgnore matches a path relative to the tree root.
func (l *IgnoreList) ShouldIgnore(relPath string) bool {
	return l.ignore.MatchesPath(relPath)
}
