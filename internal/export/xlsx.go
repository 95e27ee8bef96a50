// Package export renders stored leaderboard records as spreadsheets.
package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/mindshare-cli/internal/model"
)

// XLSXOptions configures the spreadsheet layout.
type XLSXOptions struct {
	SheetName string // default "leaderboard"
	// SplitByPeriod writes one sheet per period instead of a single sheet.
	SplitByPeriod bool
}

// WriteXLSX writes records to path with a model.Columns header row.
// Numeric fields become numeric cells; nulls are left blank.
func WriteXLSX(path string, records []model.Record, opts XLSXOptions) error {
	if opts.SheetName == "" {
		opts.SheetName = "leaderboard"
	}

	f := xlsx.NewFile()
	sheets := make(map[string]*xlsx.Sheet)
	sheetFor := func(name string) (*xlsx.Sheet, error) {
		if s, ok := sheets[name]; ok {
			return s, nil
		}
		s, err := f.AddSheet(name)
		if err != nil {
			return nil, eris.Wrapf(err, "xlsx: add sheet %s", name)
		}
		writeHeader(s)
		sheets[name] = s
		return s, nil
	}

	if !opts.SplitByPeriod || len(records) == 0 {
		if _, err := sheetFor(opts.SheetName); err != nil {
			return err
		}
	}

	for _, r := range records {
		name := opts.SheetName
		if opts.SplitByPeriod {
			name = string(r.Period)
			if name == "" {
				name = "unknown"
			}
		}
		s, err := sheetFor(name)
		if err != nil {
			return err
		}
		writeRecord(s.AddRow(), r)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", path)
	}
	return nil
}

func writeHeader(s *xlsx.Sheet) {
	row := s.AddRow()
	for _, col := range model.Columns {
		row.AddCell().SetString(col)
	}
}

func writeRecord(row *xlsx.Row, r model.Record) {
	row.AddCell().SetString(r.Project)
	row.AddCell().SetString(string(r.Period))
	intCell(row.AddCell(), r.Position)
	intCell(row.AddCell(), r.PositionChange)
	floatCell(row.AddCell(), r.MindsharePercentage)
	floatCell(row.AddCell(), r.RelativeMindshare)
	for _, v := range []*string{r.ID, r.Name, r.Rank, r.Score, r.ScorePercentile, r.ScoreQuantile, r.Username} {
		if v != nil {
			row.AddCell().SetString(*v)
		} else {
			row.AddCell()
		}
	}
}

func intCell(c *xlsx.Cell, v *int64) {
	if v != nil {
		c.SetInt64(*v)
	}
}

func floatCell(c *xlsx.Cell, v *float64) {
	if v != nil {
		c.SetFloat(*v)
	}
}

// ReadXLSX returns every row of the named sheet as strings. An empty name
// selects the first sheet.
func ReadXLSX(path, sheetName string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := getSheet(f, sheetName)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		rows = append(rows, rowToStrings(row))
	}
	return rows, nil
}

func getSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: file has no sheets")
	}
	return f.Sheets[0], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
