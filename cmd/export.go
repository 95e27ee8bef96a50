package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/mindshare-cli/internal/export"
)

var (
	exportOut         string
	exportSheet       string
	exportSplitPeriod bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the record store to an XLSX spreadsheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("export"); err != nil {
			return err
		}

		st, err := openRecordStore(ctx, cfg.Store)
		if err != nil {
			return eris.Wrap(err, "open record store")
		}
		defer st.Close() //nolint:errcheck

		records, err := st.Load(ctx)
		if err != nil {
			return eris.Wrap(err, "export: load records")
		}

		if err := export.WriteXLSX(exportOut, records, export.XLSXOptions{
			SheetName:     exportSheet,
			SplitByPeriod: exportSplitPeriod,
		}); err != nil {
			return err
		}

		zap.L().Info("export complete", zap.String("path", exportOut), zap.Int("records", len(records)))
		fmt.Fprintf(os.Stderr, "Wrote %d records to %s\n", len(records), exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "mindshare_leaderboard.xlsx", "output XLSX path")
	exportCmd.Flags().StringVar(&exportSheet, "sheet", "leaderboard", "sheet name when not splitting by period")
	exportCmd.Flags().BoolVar(&exportSplitPeriod, "split-by-period", false, "write one sheet per period")
	rootCmd.AddCommand(exportCmd)
}
