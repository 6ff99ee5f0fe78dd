package main

import (
	"fmt"

	"github.com/castlemilk/finagent/internal/auth"
	"github.com/castlemilk/finagent/internal/config"
	"github.com/spf13/cobra"
)

var tokenSave bool

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Generate an API token for the HTTP server",
	Long: `Generate a random API token. The raw token is printed once; only its
SHA-256 hash needs to be stored. With --save the hash is written to the
config file as server.api_token.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, hash, prefix, err := auth.GenerateAPIToken()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Token:  %s\n", raw)
		fmt.Fprintf(out, "Prefix: %s\n", prefix)
		fmt.Fprintf(out, "Hash:   %s\n", hash)

		if !tokenSave {
			fmt.Fprintln(out, "\nSet FINAGENT_API_TOKEN to the token or hash, or rerun with --save.")
			return nil
		}
		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		cfg.Server.APIToken = hash
		if err := config.Save(path, cfg); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nSaved token hash to %s\n", path)
		return nil
	},
}

func init() {
	tokenCmd.Flags().BoolVar(&tokenSave, "save", false, "store the token hash in the config file")
}
