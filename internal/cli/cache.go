package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// newCacheCmd creates the cache management command. It operates on the file
// cache directory only; Redis entries expire via their TTL.
func newCacheCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the response cache",
	}

	cmd.AddCommand(newCacheClearCmd(cfgPath))
	cmd.AddCommand(newCachePathCmd(cfgPath))

	return cmd
}

// newCacheClearCmd creates the "cache clear" subcommand.
func newCacheClearCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all cached responses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())

			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}
			dir := cfg.Cache.Dir

			if _, err := os.Stat(dir); os.IsNotExist(err) {
				logger.Info("Cache is empty")
				return nil
			}

			count := 0
			err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
				if err != nil || path == dir || info.IsDir() {
					return nil
				}
				if err := os.Remove(path); err == nil {
					count++
				}
				return nil
			})
			if err != nil {
				return err
			}

			// Sweep now-empty subdirectories.
			_ = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
				if err != nil || path == dir {
					return nil
				}
				if info.IsDir() {
					os.Remove(path)
				}
				return nil
			})

			logger.Infof("Cleared %d cached entries from %s", count, dir)
			return nil
		},
	}
}

// newCachePathCmd creates the "cache path" subcommand.
func newCachePathCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}
			fmt.Println(cfg.Cache.Dir)
			return nil
		},
	}
}
