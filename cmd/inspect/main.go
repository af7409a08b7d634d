package main

import (
	"chat-guard/repositories"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	badgerPath string
	blugePath  string
	limit      int
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Browse the chat audit store",
	}
	rootCmd.PersistentFlags().StringVar(&badgerPath, "db", "data/badger", "Badger directory")
	rootCmd.PersistentFlags().StringVar(&blugePath, "index", "data/bluge", "Bluge index directory")
	rootCmd.PersistentFlags().IntVar(&limit, "limit", repositories.DefaultLimit, "maximum number of records")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "WARN", "log level")

	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(searchCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func listCmd() *cobra.Command {
	var cursor string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logs.GetLoggerFromString(logLevel)
			db, err := openDB(badgerPath)
			if err != nil {
				return err
			}
			defer db.Close()

			repository := repositories.NewRecordRepository(db, nil, logger, limit)
			var from *string
			if cursor != "" {
				from = &cursor
			}
			records, next, err := repository.List(from)
			if err != nil {
				return err
			}
			renderRecords(cmd.OutOrStdout(), records)
			if len(records) == limit && next != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "\nNext page: --cursor %s\n", *next)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cursor, "cursor", "", "resume after this key suffix")
	return cmd
}

func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search [text]",
		Short: "Full-text search over record texts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logs.GetLoggerFromString(logLevel)
			db, err := openDB(badgerPath)
			if err != nil {
				return err
			}
			defer db.Close()

			writer, err := bluge.OpenWriter(bluge.DefaultConfig(blugePath))
			if err != nil {
				return fmt.Errorf("failed to open bluge index: %w", err)
			}
			defer writer.Close()

			repository := repositories.NewRecordRepository(db, writer, logger, limit)
			records, total, err := repository.Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			renderRecords(cmd.OutOrStdout(), records)
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d match(es)\n", total)
			return nil
		},
	}
}

func openDB(path string) (*badger.DB, error) {
	options := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(options)
	if err != nil {
		return nil, fmt.Errorf("error while opening badger %s: %w", path, err)
	}
	return db, nil
}

func renderRecords(w io.Writer, records []repositories.StoredRecord) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Time", "Tag", "Conf", "Lang", "Text"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, record := range records {
		confidence := "-"
		if record.Confidence >= 0 {
			confidence = fmt.Sprintf("%.2f", record.Confidence)
		}
		table.Append([]string{
			record.At.Local().Format("2006-01-02 15:04:05"),
			string(record.Tag),
			confidence,
			record.Lang,
			record.Text,
		})
	}
	table.Render()
}
