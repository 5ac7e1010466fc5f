// Package incremental provides input-signature computation so scheduled full
// rebuilds can be skipped when nothing changed.
package incremental

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
)

// Signature is a deterministic hash over the watched input tree. Two
// identical signatures mean the inputs are byte-for-byte candidates for
// skipping a rebuild (path, size and mtime granularity, not content).
type Signature struct {
	Hash  string
	Files int
}

// Compute walks the given paths (relative to root) and hashes every regular
// file's path, size and modification time. Paths that do not exist are
// skipped: a deleted watch directory still produces a valid (different)
// signature.
func Compute(root string, paths []string) (*Signature, error) {
	type fileStamp struct {
		path string
		size int64
		mod  int64
	}
	var stamps []fileStamp

	for _, p := range paths {
		base := filepath.Join(root, p)
		err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			stamps = append(stamps, fileStamp{
				path: filepath.ToSlash(rel),
				size: info.Size(),
				mod:  info.ModTime().UnixNano(),
			})
			return nil
		})
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue // missing watch path
			}
			return nil, fmt.Errorf("walk %s: %w", base, err)
		}
	}

	// Sort by path for determinism; walk order is already lexical per
	// directory but not across multiple roots.
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].path < stamps[j].path })

	h := sha256.New()
	for _, s := range stamps {
		fmt.Fprintf(h, "%s\x00%d\x00%d\x00", s.path, s.size, s.mod)
	}

	return &Signature{
		Hash:  hex.EncodeToString(h.Sum(nil)),
		Files: len(stamps),
	}, nil
}

// Equal reports whether two signatures match.
func (s *Signature) Equal(other *Signature) bool {
	if s == nil || other == nil {
		return false
	}
	return s.Hash == other.Hash
}
