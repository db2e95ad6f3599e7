package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/aKV/cmd/kv"
	"github.com/ValentinKolb/aKV/cmd/serve"
	"github.com/ValentinKolb/aKV/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "akv",
		Short: "key-value store with blocking reads",
		Long: fmt.Sprintf(`aKV (v%s)

A single node key-value store written in Go. Writes are applied in order
by one coordinator per store and every read can wait until a key is written.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of aKV",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("aKV v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json, gob, binary)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
