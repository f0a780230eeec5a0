package file

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/k0kubun/schemaedit/database"
)

// Pseudo database backed by a YAML constraint snapshot, for previewing DDL
// without a live connection. With no snapshot file every lookup reports
// database.ErrIntrospectionUnavailable.
type FileDatabase struct {
	file     string
	features database.Features
	snapshot database.Snapshot
}

func NewDatabase(file string, features database.Features) (*FileDatabase, error) {
	d := &FileDatabase{
		file:     file,
		features: features,
	}
	if file == "" {
		return d, nil
	}

	buf, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	snapshot, err := database.UnmarshalSnapshot(buf)
	if err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", file, err)
	}
	d.snapshot = snapshot
	return d, nil
}

// NewSnapshotDatabase builds a FileDatabase from an in-memory snapshot.
func NewSnapshotDatabase(snapshot database.Snapshot, features database.Features) *FileDatabase {
	return &FileDatabase{
		features: features,
		snapshot: snapshot,
	}
}

func (d *FileDatabase) DB() *sql.DB {
	return nil
}

func (d *FileDatabase) Close() error {
	return nil
}

func (d *FileDatabase) Features() database.Features {
	return d.features
}

func (d *FileDatabase) GetDefaultSchema() string {
	return ""
}

func (d *FileDatabase) GetConstraints(_ context.Context, _ database.Queryer, table string) (map[string]database.Constraint, error) {
	if d.snapshot == nil {
		return nil, database.ErrIntrospectionUnavailable
	}
	constraints, ok := d.snapshot[table]
	if !ok {
		return map[string]database.Constraint{}, nil
	}
	return constraints, nil
}

func (d *FileDatabase) GetSequences(_ context.Context, _ database.Queryer, _ string) ([]database.Sequence, error) {
	return nil, nil
}
