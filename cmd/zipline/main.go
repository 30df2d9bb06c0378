// Command zipline runs the archive-listing search service and its REPL
// client.
package main

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wizenheimer/zipline/client"
	"github.com/wizenheimer/zipline/server"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		log.Fatal().Err(err).Msg("zipline")
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "zipline",
		Short: "Full-text search over archive listings",
		PersistentPreRun: func(*cobra.Command, []string) {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		},
	}

	viper.SetEnvPrefix("zipline")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	root.AddCommand(serveCmd(), clientCmd())
	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(*cobra.Command, []string) error {
			srv, err := server.New(server.Config{
				Addr:       viper.GetString("addr"),
				StagingDir: viper.GetString("staging-dir"),
				StateDir:   viper.GetString("state-dir"),
			}, log.Logger)
			if err != nil {
				return err
			}
			return srv.ListenAndServe()
		},
	}

	cmd.Flags().String("addr", ":8000", "listen address")
	cmd.Flags().String("staging-dir", "data/staging", "uploaded archive directory")
	cmd.Flags().String("state-dir", "data/state", "intermediate and snapshot directory")
	viper.BindPFlags(cmd.Flags())

	return cmd
}

func clientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Interactive REPL over the HTTP API",
		RunE: func(*cobra.Command, []string) error {
			return client.New(viper.GetString("server-url")).Run(os.Stdin, os.Stdout)
		},
	}

	cmd.Flags().String("server-url", "http://127.0.0.1:8000", "service base URL")
	viper.BindPFlag("server-url", cmd.Flags().Lookup("server-url"))

	return cmd
}
