package store

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mindshare-cli/internal/model"
)

// CSVStore keeps records in a CSV file whose header is model.Columns.
type CSVStore struct {
	path string
}

// NewCSV returns a store backed by the file at path. The file need not exist.
func NewCSV(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Path returns the backing file path.
func (s *CSVStore) Path() string {
	return s.path
}

// Load reads every row. Columns are matched by header name, so files
// written with a different column order still load.
func (s *CSVStore) Load(ctx context.Context) ([]model.Record, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "csv store: open %s", s.path)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "csv store: read header")
	}
	idx := model.NewHeaderIndex(header)
	if _, ok := idx["project"]; !ok {
		return nil, eris.Errorf("csv store: %s has no project column", s.path)
	}

	var records []model.Record
	for line := 2; ; line++ {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "csv store: context cancelled")
		}
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "csv store: read line %d", line)
		}
		rec, err := model.RecordFromRow(idx, row)
		if err != nil {
			return nil, eris.Wrapf(err, "csv store: line %d", line)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Replace writes all records to a temp file next to the target and renames
// it into place, so readers never see a half-written file.
func (s *CSVStore) Replace(ctx context.Context, records []model.Record) (err error) {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "csv store: create temp file")
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	w := csv.NewWriter(tmp)
	if err = w.Write(model.Columns); err != nil {
		return eris.Wrap(err, "csv store: write header")
	}
	for _, rec := range records {
		if err = ctx.Err(); err != nil {
			return eris.Wrap(err, "csv store: context cancelled")
		}
		if err = w.Write(rec.Row()); err != nil {
			return eris.Wrap(err, "csv store: write row")
		}
	}
	w.Flush()
	if err = w.Error(); err != nil {
		return eris.Wrap(err, "csv store: flush")
	}
	if err = tmp.Sync(); err != nil {
		return eris.Wrap(err, "csv store: sync")
	}
	if err = tmp.Close(); err != nil {
		return eris.Wrap(err, "csv store: close temp file")
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return eris.Wrap(err, "csv store: chmod")
	}
	if err = os.Rename(tmp.Name(), s.path); err != nil {
		return eris.Wrapf(err, "csv store: rename into %s", s.path)
	}
	return nil
}

// Close is a no-op; the file is only open during Load and Replace.
func (s *CSVStore) Close() error {
	return nil
}
