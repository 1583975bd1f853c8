package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/arda-labs/reorder-cli/internal/archive"
	"github.com/arda-labs/reorder-cli/internal/inventory"
	"github.com/arda-labs/reorder-cli/internal/model"
)

var (
	reportOut       string
	reportOrdersOut string
	reportXLSX      string
	reportSinceDays int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Build reorder recommendations from archived orders",
	Long:  "Aggregates the order archive into per-item velocity profiles (burn rate, reorder point, recommended order quantity) and writes them as CSV or XLSX.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("report"); err != nil {
			return err
		}

		arc, err := archive.Open(cfg.Archive.Path)
		if err != nil {
			return err
		}
		defer arc.Close()
		if err := arc.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate archive")
		}

		orders, err := loadOrders(cmd, arc)
		if err != nil {
			return err
		}
		if len(orders) == 0 {
			fmt.Println("no archived orders; run ingest first")
			return nil
		}

		profiles := inventory.Aggregate(orders)
		fmt.Printf("%d orders, %d tracked items\n", len(orders), len(profiles))

		if reportOrdersOut != "" {
			if err := writeCSVFile(reportOrdersOut, func(f *os.File) error {
				return inventory.WriteOrdersCSV(f, orders)
			}); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", reportOrdersOut)
		}

		if reportXLSX != "" {
			if err := inventory.WriteProfilesXLSX(reportXLSX, profiles); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", reportXLSX)
			return nil
		}

		if reportOut == "-" {
			return inventory.WriteProfilesCSV(os.Stdout, profiles)
		}
		if err := writeCSVFile(reportOut, func(f *os.File) error {
			return inventory.WriteProfilesCSV(f, profiles)
		}); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", reportOut)
		return nil
	},
}

func loadOrders(cmd *cobra.Command, arc *archive.Archive) ([]model.ExtractedOrder, error) {
	if reportSinceDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -reportSinceDays)
		return arc.LoadSince(cmd.Context(), cutoff)
	}
	return arc.LoadAll(cmd.Context())
}

func writeCSVFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	defer f.Close()
	if err := write(f); err != nil {
		return err
	}
	return eris.Wrap(f.Close(), "close output")
}

func init() {
	reportCmd.Flags().StringVar(&reportOut, "out", "reorder-report.csv", "profiles CSV path, - for stdout")
	reportCmd.Flags().StringVar(&reportOrdersOut, "orders-out", "", "also write raw orders CSV to this path")
	reportCmd.Flags().StringVar(&reportXLSX, "xlsx", "", "write profiles as XLSX instead of CSV")
	reportCmd.Flags().IntVar(&reportSinceDays, "since-days", 0, "only include orders from the last N days")
	rootCmd.AddCommand(reportCmd)
}
