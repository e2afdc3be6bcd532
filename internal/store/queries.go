package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/upstream-sh/upstream/internal/platform"
	"github.com/upstream-sh/upstream/internal/provider"
)

const recordColumns = `name, repo, provider, kind, channel, pinned, version,
	install_path, exec_path, checksum, symlink_path, desktop_entry_path,
	match_pattern, exclude_pattern, etag, last_checked_at, last_updated_at`

// Upsert inserts or replaces the record keyed by rec.Name.
func (s *Store) Upsert(rec *Record) error {
	query := `
		INSERT OR REPLACE INTO packages
		(` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		rec.Name,
		rec.Repo,
		string(rec.Provider),
		string(rec.Kind),
		string(rec.Channel),
		rec.Pinned,
		rec.Version,
		rec.InstallPath,
		rec.ExecPath,
		rec.Checksum,
		rec.SymlinkPath,
		rec.DesktopEntryPath,
		rec.MatchPattern,
		rec.ExcludePattern,
		rec.ETag,
		formatTime(rec.LastCheckedAt),
		formatTime(rec.LastUpdatedAt),
	)
	if err != nil {
		return wrapSchemaErr(fmt.Errorf("failed to upsert package %s: %w", rec.Name, err))
	}
	return nil
}

// Get retrieves a record by name. Returns ErrNotFound when absent.
func (s *Store) Get(name string) (*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM packages WHERE name = ?`

	rec, err := scanRecord(s.db.QueryRow(query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("package %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, wrapSchemaErr(fmt.Errorf("failed to get package %s: %w", name, err))
	}
	return rec, nil
}

// List returns all records ordered by name.
func (s *Store) List() ([]*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM packages ORDER BY name`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, wrapSchemaErr(fmt.Errorf("failed to list packages: %w", err))
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan package row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating packages: %w", err)
	}
	return records, nil
}

// Delete removes the record for name. Returns ErrNotFound when absent.
func (s *Store) Delete(name string) error {
	result, err := s.db.Exec(`DELETE FROM packages WHERE name = ?`, name)
	if err != nil {
		return wrapSchemaErr(fmt.Errorf("failed to delete package %s: %w", name, err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("package %s: %w", name, ErrNotFound)
	}
	return nil
}

// Rename changes the record's key while preserving everything else.
// Symlink bookkeeping that embeds the old name is the engine's problem;
// the store only re-keys.
func (s *Store) Rename(oldName, newName string) error {
	if _, err := s.Get(newName); err == nil {
		return fmt.Errorf("package %s already exists", newName)
	}

	result, err := s.db.Exec(`UPDATE packages SET name = ? WHERE name = ?`, newName, oldName)
	if err != nil {
		return wrapSchemaErr(fmt.Errorf("failed to rename package %s: %w", oldName, err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("package %s: %w", oldName, ErrNotFound)
	}
	return nil
}

// SetPinned flips the pinned flag for name.
func (s *Store) SetPinned(name string, pinned bool) error {
	result, err := s.db.Exec(`UPDATE packages SET pinned = ? WHERE name = ?`, pinned, name)
	if err != nil {
		return wrapSchemaErr(fmt.Errorf("failed to update pin for %s: %w", name, err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("package %s: %w", name, ErrNotFound)
	}
	return nil
}

// keyAccessor reads and writes one exposed record field as a string.
type keyAccessor struct {
	get func(*Record) string
	set func(*Record, string) error
}

// recordKeys are the fields reachable through get-key/set-key. Values are
// coerced from strings with validation; read-only fields have a nil setter.
var recordKeys = map[string]keyAccessor{
	"repo": {
		get: func(r *Record) string { return r.Repo },
		set: func(r *Record, v string) error { r.Repo = v; return nil },
	},
	"provider": {
		get: func(r *Record) string { return string(r.Provider) },
		set: func(r *Record, v string) error {
			kind, ok := provider.ParseProviderKind(v)
			if !ok {
				return fmt.Errorf("invalid provider %q", v)
			}
			r.Provider = kind
			return nil
		},
	},
	"kind": {
		get: func(r *Record) string { return string(r.Kind) },
		set: func(r *Record, v string) error {
			kind, ok := platform.ParseKind(v)
			if !ok {
				return fmt.Errorf("invalid kind %q", v)
			}
			r.Kind = kind
			return nil
		},
	},
	"channel": {
		get: func(r *Record) string { return string(r.Channel) },
		set: func(r *Record, v string) error {
			ch, ok := provider.ParseChannel(v)
			if !ok {
				return fmt.Errorf("invalid channel %q", v)
			}
			r.Channel = ch
			return nil
		},
	},
	"pinned": {
		get: func(r *Record) string { return strconv.FormatBool(r.Pinned) },
		set: func(r *Record, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("expected boolean value, got %q", v)
			}
			r.Pinned = b
			return nil
		},
	},
	"version": {
		get: func(r *Record) string { return r.Version },
	},
	"install_path": {
		get: func(r *Record) string { return r.InstallPath },
	},
	"symlink_path": {
		get: func(r *Record) string { return r.SymlinkPath },
	},
	"checksum": {
		get: func(r *Record) string { return r.Checksum },
	},
	"match_pattern": {
		get: func(r *Record) string { return r.MatchPattern },
		set: func(r *Record, v string) error { r.MatchPattern = v; return nil },
	},
	"exclude_pattern": {
		get: func(r *Record) string { return r.ExcludePattern },
		set: func(r *Record, v string) error { r.ExcludePattern = v; return nil },
	},
}

// Keys returns the sorted list of field names reachable through
// get-key/set-key.
func Keys() []string {
	keys := make([]string, 0, len(recordKeys))
	for k := range recordKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetKey reads a single record field by key name.
func (s *Store) GetKey(name, key string) (string, error) {
	acc, ok := recordKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown key %q (known keys: %v)", key, Keys())
	}
	rec, err := s.Get(name)
	if err != nil {
		return "", err
	}
	return acc.get(rec), nil
}

// SetKey writes a single record field by key name, with type coercion
// and validation, and flushes the record.
func (s *Store) SetKey(name, key, value string) error {
	acc, ok := recordKeys[key]
	if !ok {
		return fmt.Errorf("unknown key %q (known keys: %v)", key, Keys())
	}
	if acc.set == nil {
		return fmt.Errorf("key %q is read-only", key)
	}
	rec, err := s.Get(name)
	if err != nil {
		return err
	}
	if err := acc.set(rec, value); err != nil {
		return err
	}
	return s.Upsert(rec)
}

// scanner matches both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var rec Record
	var providerStr, kindStr, channelStr string
	var lastChecked, lastUpdated sql.NullString

	err := row.Scan(
		&rec.Name,
		&rec.Repo,
		&providerStr,
		&kindStr,
		&channelStr,
		&rec.Pinned,
		&rec.Version,
		&rec.InstallPath,
		&rec.ExecPath,
		&rec.Checksum,
		&rec.SymlinkPath,
		&rec.DesktopEntryPath,
		&rec.MatchPattern,
		&rec.ExcludePattern,
		&rec.ETag,
		&lastChecked,
		&lastUpdated,
	)
	if err != nil {
		return nil, err
	}

	rec.Provider = provider.Kind(providerStr)
	rec.Kind = platform.Kind(kindStr)
	rec.Channel = provider.Channel(channelStr)

	if rec.LastCheckedAt, err = parseTime(lastChecked); err != nil {
		return nil, fmt.Errorf("failed to parse last_checked_at for %s: %w", rec.Name, err)
	}
	if rec.LastUpdatedAt, err = parseTime(lastUpdated); err != nil {
		return nil, fmt.Errorf("failed to parse last_updated_at for %s: %w", rec.Name, err)
	}
	return &rec, nil
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(v sql.NullString) (time.Time, error) {
	if !v.Valid || v.String == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v.String)
}
