package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/arloliu/leadflow"
)

var (
	importFile    string
	importListID  string
	importStageID string
	importTags    []string
	importMapping map[string]string

	exportOut string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import contacts from a CSV file",
	Long: `Reads a CSV file with a header row and creates one contact per row in the
given list and stage. Rows matching an existing contact of the list by email or
phone update that contact instead.

Columns are detected from the header (English or Portuguese names) unless
--map is given, e.g. --map "Nome=name,E-mail=email,Budget=custom_<field-id>".`,
	RunE: runImport,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all contacts as CSV",
	RunE:  runExport,
}

func init() {
	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "CSV file to import (required)")
	importCmd.Flags().StringVar(&importListID, "list", "", "Target list ID (required)")
	importCmd.Flags().StringVar(&importStageID, "stage", "", "Target stage ID (required)")
	importCmd.Flags().StringSliceVar(&importTags, "tag", nil, "Tag ID attached to every imported contact (repeatable)")
	importCmd.Flags().StringToStringVar(&importMapping, "map", nil, "Column mapping header=field")
	_ = importCmd.MarkFlagRequired("file")
	_ = importCmd.MarkFlagRequired("list")
	_ = importCmd.MarkFlagRequired("stage")

	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "-", "Output file, - for stdout")
}

func runImport(cmd *cobra.Command, _ []string) error {
	f, err := os.Open(importFile)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", importFile, err)
	}
	defer f.Close()

	svc, shutdown, err := startService(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer shutdown()

	var mapping map[string]string
	if len(importMapping) > 0 {
		mapping = importMapping
	}

	report, err := svc.ImportContacts(cmd.Context(), f, leadflow.ImportOptions{
		ListID:  importListID,
		StageID: importStageID,
		Tags:    importTags,
		Mapping: mapping,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Imported %d of %d rows (%d created, %d updated)\n",
		report.Succeeded, report.Total, report.Created, report.Updated)
	for _, rowErr := range report.Errors {
		fmt.Fprintf(out, "  %s\n", rowErr.Error())
	}

	return nil
}

func runExport(cmd *cobra.Command, _ []string) (err error) {
	svc, shutdown, err := startService(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer shutdown()

	var w io.Writer = cmd.OutOrStdout()
	if exportOut != "-" {
		f, createErr := os.Create(exportOut)
		if createErr != nil {
			return fmt.Errorf("failed to create %s: %w", exportOut, createErr)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		w = f
	}

	bw := bufio.NewWriter(w)
	if err := svc.ExportContacts(cmd.Context(), bw); err != nil {
		return err
	}

	return bw.Flush()
}
