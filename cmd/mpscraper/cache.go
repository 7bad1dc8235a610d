package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the result cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		resultCache, err := newResultCache()
		if err != nil {
			return err
		}

		stats := resultCache.Stats()
		if !stats.Enabled {
			fmt.Println("Cache is disabled.")
			return nil
		}

		fmt.Printf("TTL:        %s\n", stats.TTL)
		fmt.Printf("In memory:  %d entries\n", stats.MemoryCount)
		fmt.Printf("On disk:    %d entries (%d bytes)\n", stats.DiskCount, stats.TotalSizeBytes)
		fmt.Printf("Items:      %d\n", stats.TotalItems)
		return nil
	},
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached result sets",
	RunE: func(cmd *cobra.Command, args []string) error {
		resultCache, err := newResultCache()
		if err != nil {
			return err
		}

		entries := resultCache.ListEntries()
		if len(entries) == 0 {
			fmt.Println("Cache is empty.")
			return nil
		}

		for _, entry := range entries {
			state := "fresh"
			if entry.Expired {
				state = "expired"
			}
			name := entry.AccountName
			if name == "" {
				name = "-"
			}
			fmt.Printf("%-40s %-20s %4d/%4d items  %s  %s\n",
				entry.Key, name, entry.ItemCount, entry.TotalCount,
				entry.CachedAt.Format(time.RFC3339), state)
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached result set",
	RunE: func(cmd *cobra.Command, args []string) error {
		resultCache, err := newResultCache()
		if err != nil {
			return err
		}
		if err := resultCache.Clear(); err != nil {
			return err
		}
		fmt.Println("Cache cleared.")
		return nil
	},
}

var cacheCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove expired and corrupt cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		resultCache, err := newResultCache()
		if err != nil {
			return err
		}
		removed := resultCache.CleanupExpired()
		fmt.Printf("Removed %d entries.\n", removed)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheCleanupCmd)
	rootCmd.AddCommand(cacheCmd)
}
