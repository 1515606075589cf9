package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/solatis/stashkeeper/internal/ingest"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage rule documents stored in the database",
}

var rulesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Store a rule document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		name, _ := cmd.Flags().GetString("name")
		if name == "" {
			name = filepath.Base(path)
		}

		format, err := ingest.ParseFormat(filepath.Ext(path))
		if err != nil {
			return err
		}
		body, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := ingest.Validate(format, body); err != nil {
			return fmt.Errorf("invalid rule document %s: %w", path, err)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		docs, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer docs.Close()

		doc, err := docs.Insert(cmd.Context(), name, string(format), string(body))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "stored %s as %s\n", doc.Name, doc.DocumentID)
		return nil
	},
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored rule documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		docs, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer docs.Close()

		list, err := docs.List(cmd.Context())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tFORMAT\tENABLED\tCREATED\tID")
		for _, d := range list {
			created := d.CreatedAt
			if at, err := d.Created(); err == nil {
				created = at.Local().Format("2006-01-02 15:04")
			}
			fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n", d.Name, d.Format, d.Enabled, created, d.DocumentID)
		}
		return tw.Flush()
	},
}

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete <name|id>",
	Short: "Delete a stored rule document by name or document id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		docs, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer docs.Close()

		if err := docs.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesImportCmd, rulesListCmd, rulesDeleteCmd)
	rulesImportCmd.Flags().String("name", "", "document name (defaults to the file name)")
}
