package index

import (
	"crypto/md5"
	"encoding/hex"
	"path/filepath"
	"strings"
)

// StorageID identifies an index by the files it covers and the embedding
// model used to build it. Changing either produces a different id.
func StorageID(files []string, embedModel string) string {
	token := "!notset!"
	if embedModel != "" {
		token = "!" + embedModel + "!"
	}

	parts := make([]string, 0, len(files)+1)
	parts = append(parts, files...)
	parts = append(parts, token)

	sum := md5.Sum([]byte(strings.Join(parts, ":")))
	return hex.EncodeToString(sum[:])
}

// StorageName is the directory, collection or table name for an index id.
func StorageName(id string) string {
	return "storage." + id
}

// SQLitePath is where the sqlite-vec database for id lives under root.
func SQLitePath(root, id string) string {
	return filepath.Join(root, StorageName(id), "index.db")
}
