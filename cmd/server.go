package cmd

import (
	"github.com/spf13/cobra"

	"library-encoder/config"
	server2 "library-encoder/server"
)

func server(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "start http server and encoding consumer",
		Run: func(cmd *cobra.Command, args []string) {
			server2.RunHttp(config)
		},
	}
}
