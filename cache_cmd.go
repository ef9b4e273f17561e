package main

import (
	"fmt"

	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the synthesized audio cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cacheStatsCmd.RunE(cmd, nil)
		},
	}

	cacheStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show cache size and entries",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			store, err := openCache()
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck

			if store.Dir() == "" {
				fmt.Println(dim("The audio cache is disabled."))
				return nil
			}

			st := store.Stats(cache.LevelDisk)
			fmt.Printf("%s %s\n", keyword("Directory"), store.Dir())
			fmt.Printf("%s %d\n", keyword("Entries  "), st.Items)
			fmt.Printf("%s %s of %s\n", keyword("Size     "),
				humanize.IBytes(uint64(st.Size)),     //nolint:gosec
				humanize.IBytes(uint64(st.Capacity)), //nolint:gosec
			)
			if entries := store.Entries(); len(entries) > 0 {
				fmt.Printf("%s %s\n", keyword("Newest   "), humanize.Time(entries[0].Modified))
				fmt.Printf("%s %s\n", keyword("Oldest   "), humanize.Time(entries[len(entries)-1].Modified))
			}
			return nil
		},
	}

	cacheClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Delete all cached audio",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			store, err := openCache()
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck

			before := store.Stats(cache.LevelDisk)
			if err := store.Clear(); err != nil {
				return fmt.Errorf("unable to clear cache: %w", err)
			}
			fmt.Printf("Removed %d entries (%s).\n", before.Items, humanize.IBytes(uint64(before.Size))) //nolint:gosec
			return nil
		},
	}
)

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
}
