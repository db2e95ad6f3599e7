package kv

import (
	"github.com/ValentinKolb/aKV/cmd/util"
	"github.com/ValentinKolb/aKV/lib/store"
	"github.com/spf13/cobra"
)

var (
	rpcStore store.IStore

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Perform key-value store operations",
		PersistentPreRunE:  setupKVClient,
		PersistentPostRunE: closeKVClient,
	}
)

func init() {
	// Add common RPC flags to the KV command
	util.SetupRPCClientFlags(KeyValueCommands)

	// Add subcommands
	KeyValueCommands.AddCommand(writeCmd)
	KeyValueCommands.AddCommand(writeSyncCmd)
	KeyValueCommands.AddCommand(readCmd)
	KeyValueCommands.AddCommand(awaitCmd)
	KeyValueCommands.AddCommand(infoCmd)
	KeyValueCommands.AddCommand(benchCmd)
}

// setupKVClient initializes the RPC store client
func setupKVClient(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	var err error
	rpcStore, err = util.NewStoreClient()
	return err
}

func closeKVClient(_ *cobra.Command, _ []string) error {
	if rpcStore == nil {
		return nil
	}
	return rpcStore.Close()
}
