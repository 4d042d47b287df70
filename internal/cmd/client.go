package cmd

import (
	"errors"

	"github.com/apex/log"
	"github.com/nextdhcp/nextlease/core/leaseclient"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	clientServer string
	clientCount  int
	clientRenew  bool
)

var clientCommand = &cobra.Command{
	Use:   "client",
	Short: "Simulate clients requesting address leases",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if clientCount < 1 {
			return errors.New("--clients must be at least 1")
		}

		grp, ctx := errgroup.WithContext(cmd.Context())

		for i := 0; i < clientCount; i++ {
			l := log.WithField("id", i+1)

			grp.Go(func() error {
				return leaseclient.Simulate(ctx, clientServer, clientRenew, l)
			})
		}

		return grp.Wait()
	},
}

func init() {
	flags := clientCommand.Flags()

	flags.StringVarP(&clientServer, "server", "s", "127.0.0.1:6767", "Address of the lease server")
	flags.IntVarP(&clientCount, "clients", "n", 6, "Number of concurrent clients")
	flags.BoolVar(&clientRenew, "renew", false, "Renew the lease after 70% of the lease time")
}
