package cmd

import (
	"fmt"
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/apex/log/handlers/text"
	"github.com/mattn/go-isatty"
	"github.com/nextdhcp/nextlease/leasemain"
	"github.com/spf13/cobra"
)

var (
	configFile string
	logLevel   string
)

// Root is the root cobra command for NextLease. It runs the lease server
var Root = &cobra.Command{
	Use:           "nextlease",
	Short:         "Address leasing service over JSON/UDP",
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return configureLogging(logLevel)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return leasemain.Run(configFile)
	},
}

func init() {
	flags := Root.Flags()
	flags.StringVarP(&configFile, "conf", "c", "", "Leasefile to load (default \"Leasefile\", use - for stdin)")

	Root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error or fatal)")

	Root.AddCommand(clientCommand, journalCommand)
}

func configureLogging(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}

	if isatty.IsTerminal(os.Stderr.Fd()) {
		log.SetHandler(cli.New(os.Stderr))
	} else {
		log.SetHandler(text.New(os.Stderr))
	}

	log.SetLevel(lvl)
	return nil
}
