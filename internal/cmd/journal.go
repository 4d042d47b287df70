package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nextdhcp/nextlease/core/journal"
	"github.com/spf13/cobra"
)

var (
	journalFile string
	journalFrom uint64
	journalJSON bool
)

var journalCommand = &cobra.Command{
	Use:   "journal",
	Short: "Print the lease event journal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if journalFile == "" {
			return errors.New("--file is required")
		}

		j, err := journal.OpenReadOnly(journalFile)
		if err != nil {
			return err
		}
		defer j.Close()

		entries, err := j.Entries(cmd.Context(), journalFrom)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()

		if journalJSON {
			enc := json.NewEncoder(out)
			for _, e := range entries {
				if err := enc.Encode(e); err != nil {
					return err
				}
			}
			return nil
		}

		for _, e := range entries {
			fmt.Fprintln(out, formatEntry(e))
		}

		return nil
	},
}

func formatEntry(e journal.Entry) string {
	line := fmt.Sprintf("%d %s %-15s %s", e.Seq, time.Unix(e.Time, 0).UTC().Format(time.RFC3339), e.Event, e.Client)

	if e.Address != "" {
		line += " " + e.Address
	}

	if e.Expires != 0 {
		line += " expires=" + time.Unix(e.Expires, 0).UTC().Format(time.RFC3339)
	}

	return line
}

func init() {
	flags := journalCommand.Flags()

	flags.StringVarP(&journalFile, "file", "f", "", "Path to the journal database")
	flags.Uint64Var(&journalFrom, "from", 0, "Only print entries with a sequence number >= from")
	flags.BoolVar(&journalJSON, "json", false, "Print entries as JSON lines")
}
