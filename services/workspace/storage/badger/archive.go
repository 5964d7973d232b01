// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AppForgeLocal/services/workspace"
)

// Key layout. Sequence numbers are zero-padded so version keys iterate
// in snapshot order.
//
//	meta:<project_id>              -> ProjectMeta (JSON)
//	file:<project_id>:<path>       -> FileRecord (JSON)
//	ver:<project_id>:<seq %010d>   -> Version (JSON)
const (
	metaPrefix = "meta:"
	filePrefix = "file:"
	verPrefix  = "ver:"
)

// Archive implements workspace.Archive on BadgerDB.
//
// The workspace layer serializes per-project calls under its own lock;
// the archive only needs cross-project safety, which BadgerDB's
// transactions provide.
type Archive struct {
	db *DB
}

// NewArchive wraps an open database as a workspace archive.
func NewArchive(db *DB) *Archive {
	return &Archive{db: db}
}

var _ workspace.Archive = (*Archive)(nil)

func metaKey(projectID string) []byte {
	return []byte(metaPrefix + projectID)
}

func fileKey(projectID, path string) []byte {
	return []byte(filePrefix + projectID + ":" + path)
}

func verKey(projectID string, seq int) []byte {
	return []byte(fmt.Sprintf("%s%s:%010d", verPrefix, projectID, seq))
}

// SaveProject writes a project's metadata.
func (a *Archive) SaveProject(meta workspace.ProjectMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal project meta: %w", err)
	}
	return a.db.WithTxn(context.Background(), func(txn *badger.Txn) error {
		return txn.Set(metaKey(meta.ID), data)
	})
}

// DeleteProject removes a project's metadata, files, and versions.
func (a *Archive) DeleteProject(projectID string) error {
	keys, err := a.collectKeys(filePrefix+projectID+":", verPrefix+projectID+":")
	if err != nil {
		return err
	}
	keys = append(keys, metaKey(projectID))

	// Deletes are chunked so a large project cannot exceed the
	// transaction size limit.
	for len(keys) > 0 {
		batch := keys
		if len(batch) > 1000 {
			batch = keys[:1000]
		}
		keys = keys[len(batch):]
		err := a.db.WithTxn(context.Background(), func(txn *badger.Txn) error {
			for _, k := range batch {
				if err := txn.Delete(k); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("delete project %s: %w", projectID, err)
		}
	}
	return nil
}

// SaveFile writes one file record.
func (a *Archive) SaveFile(projectID string, rec workspace.FileRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal file record: %w", err)
	}
	return a.db.WithTxn(context.Background(), func(txn *badger.Txn) error {
		return txn.Set(fileKey(projectID, rec.Path), data)
	})
}

// DeleteFile removes one file record.
func (a *Archive) DeleteFile(projectID string, path string) error {
	return a.db.WithTxn(context.Background(), func(txn *badger.Txn) error {
		return txn.Delete(fileKey(projectID, path))
	})
}

// ReplaceFiles swaps a project's whole file set. Uses a write batch, so
// the swap is not transactional across chunks; the workspace lock keeps
// readers out until the in-memory swap lands, and startup replay reads
// whatever the batch flushed.
func (a *Archive) ReplaceFiles(projectID string, files map[string]workspace.FileRecord) error {
	old, err := a.collectKeys(filePrefix + projectID + ":")
	if err != nil {
		return err
	}

	wb := a.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range old {
		if err := wb.Delete(k); err != nil {
			return fmt.Errorf("replace files: %w", err)
		}
	}
	for _, rec := range files {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal file record: %w", err)
		}
		if err := wb.Set(fileKey(projectID, rec.Path), data); err != nil {
			return fmt.Errorf("replace files: %w", err)
		}
	}
	return wb.Flush()
}

// SaveVersion writes one ledger version, including file contents.
func (a *Archive) SaveVersion(projectID string, v workspace.Version) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal version: %w", err)
	}
	return a.db.WithTxn(context.Background(), func(txn *badger.Txn) error {
		return txn.Set(verKey(projectID, v.Sequence), data)
	})
}

// LoadProjects returns every archived project's metadata.
func (a *Archive) LoadProjects() ([]workspace.ProjectMeta, error) {
	var metas []workspace.ProjectMeta
	err := a.db.WithReadTxn(context.Background(), func(txn *badger.Txn) error {
		return iterate(txn, metaPrefix, func(_ string, val []byte) error {
			var meta workspace.ProjectMeta
			if err := json.Unmarshal(val, &meta); err != nil {
				return fmt.Errorf("unmarshal project meta: %w", err)
			}
			metas = append(metas, meta)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return metas, nil
}

// LoadFiles returns a project's archived file set.
func (a *Archive) LoadFiles(projectID string) (map[string]workspace.FileRecord, error) {
	files := make(map[string]workspace.FileRecord)
	err := a.db.WithReadTxn(context.Background(), func(txn *badger.Txn) error {
		return iterate(txn, filePrefix+projectID+":", func(_ string, val []byte) error {
			var rec workspace.FileRecord
			if err := json.Unmarshal(val, &rec); err != nil {
				return fmt.Errorf("unmarshal file record: %w", err)
			}
			files[rec.Path] = rec
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// LoadVersions returns a project's versions in sequence order.
func (a *Archive) LoadVersions(projectID string) ([]workspace.Version, error) {
	var versions []workspace.Version
	err := a.db.WithReadTxn(context.Background(), func(txn *badger.Txn) error {
		return iterate(txn, verPrefix+projectID+":", func(_ string, val []byte) error {
			var v workspace.Version
			if err := json.Unmarshal(val, &v); err != nil {
				return fmt.Errorf("unmarshal version: %w", err)
			}
			versions = append(versions, v)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return versions, nil
}

// collectKeys gathers all keys under the given prefixes.
func (a *Archive) collectKeys(prefixes ...string) ([][]byte, error) {
	var keys [][]byte
	err := a.db.WithReadTxn(context.Background(), func(txn *badger.Txn) error {
		for _, prefix := range prefixes {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			opts.Prefix = []byte(prefix)
			it := txn.NewIterator(opts)
			for it.Rewind(); it.Valid(); it.Next() {
				keys = append(keys, it.Item().KeyCopy(nil))
			}
			it.Close()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// iterate walks all key/value pairs under a prefix.
func iterate(txn *badger.Txn, prefix string, fn func(key string, val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		key := strings.TrimPrefix(string(item.Key()), prefix)
		err := item.Value(func(val []byte) error {
			return fn(key, val)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
