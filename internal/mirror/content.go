package mirror

import (
	"crypto/md5"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/openmirror/mirrorbox/internal/utils"
)

// FileDigest calculates the MD5 hash of a file's full contents. The digest is
// used for equality detection only, not integrity guarantees.
func FileDigest(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}

// FilesEqual reports whether two existing files have identical contents by
// comparing their digests. A read failure on either side is logged and treated
// as "different", so the caller overwrites instead of silently keeping a
// possibly stale replica copy.
func FilesEqual(pathA, pathB string) bool {
	digestA, err := FileDigest(pathA)
	if err != nil {
		slog.Warn("content compare failed", "pathA", pathA, "pathB", pathB, "error", err)
		return false
	}

	digestB, err := FileDigest(pathB)
	if err != nil {
		slog.Warn("content compare failed", "pathA", pathA, "pathB", pathB, "error", err)
		return false
	}

	return digestA == digestB
}

// copyFile copies a file from src to dst, creating parent directories as
// needed. The destination is fully replaced, not patched.
func copyFile(src, dst string) (int64, error) {
	if err := utils.EnsureParent(dst); err != nil {
		return 0, err
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dst)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(dstFile, srcFile)
	if err != nil {
		dstFile.Close()
		return n, err
	}
	return n, dstFile.Close()
}
