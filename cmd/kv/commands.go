package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ValentinKolb/aKV/cmd/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	writeCmd = &cobra.Command{
		Use:   "write [key] [value]",
		Short: "Writes the value for a key (returns once the write is queued)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcStore.Write(cmd.Context(), []byte(args[0]), []byte(args[1])); err != nil {
				return err
			}
			fmt.Println("write submitted")
			return nil
		},
	}
	writeSyncCmd = &cobra.Command{
		Use:   "write-sync [key] [value]",
		Short: "Writes the value for a key and waits until it is stored",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcStore.WriteSync(cmd.Context(), []byte(args[0]), []byte(args[1])); err != nil {
				return err
			}
			fmt.Println("write stored")
			return nil
		},
	}
	readCmd = &cobra.Command{
		Use:   "read [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value, ok, err := rpcStore.Read(cmd.Context(), []byte(key))
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%v, value=%s\n", key, ok, value)
			return nil
		},
	}
	awaitCmd = &cobra.Command{
		Use:   "await [key]",
		Short: "Reads the value for a key, waits until the key is written if it does not exist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]

			ctx := cmd.Context()
			if wait := viper.GetInt("wait"); wait > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, time.Duration(wait)*time.Second)
				defer cancel()
			}

			value, err := rpcStore.AwaitRead(ctx, []byte(key))
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, value=%s\n", key, value)
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints information about the database of the shard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := rpcStore.GetDBInfo(cmd.Context())
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode info: %w", err)
			}
			fmt.Println(string(out))
			return nil
		},
	}
)

func init() {
	awaitCmd.Flags().Int("wait", 0, util.WrapString("Maximum number of seconds to wait for the key (0 = wait until the key is written)"))
}
