package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"pkt.systems/joblog/internal/appconfig"
	"pkt.systems/joblog/internal/displaystate"
	"pkt.systems/joblog/schema"
	"pkt.systems/pslog"
)

func newPrefsCmd() *cobra.Command {
	var cfgPath string
	var profile string
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or edit persisted display preferences",
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config path")
	cmd.PersistentFlags().StringVar(&profile, "profile", "", "display profile (default from config)")

	open := func(cmd *cobra.Command) (*displaystate.Store, error) {
		cfg, err := appconfig.Load(cfgPath)
		if err != nil {
			return nil, err
		}
		return openDisplay(cfg, profile, pslog.Ctx(cmd.Context()))
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [KEY]",
		Short: "Print preferences",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open(cmd)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				key, err := persistedKey(args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), store.String(key))
				return err
			}
			return printPrefs(cmd.OutOrStdout(), store)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a preference; wrap and timestamps stay coupled",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := persistedKey(args[0])
			if err != nil {
				return err
			}
			value, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("%s: %w", args[1], schema.ErrInvalidDisplayValue)
			}
			store, err := open(cmd)
			if err != nil {
				return err
			}
			if err := store.SetBool(key, value); err != nil {
				return err
			}
			return printPrefs(cmd.OutOrStdout(), store)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Restore default preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open(cmd)
			if err != nil {
				return err
			}
			if err := store.Reset(); err != nil {
				return err
			}
			return printPrefs(cmd.OutOrStdout(), store)
		},
	})
	return cmd
}

func persistedKey(name string) (schema.DisplayKey, error) {
	key, err := displaystate.ParseKey(name)
	if err != nil {
		return "", err
	}
	if !schema.IsPersistedDisplayKey(key) {
		return "", fmt.Errorf("%s is session-only: %w", name, schema.ErrInvalidDisplayKey)
	}
	return key, nil
}

func printPrefs(w io.Writer, store *displaystate.Store) error {
	for _, key := range schema.PersistedDisplayKeys {
		if _, err := fmt.Fprintf(w, "%s=%s\n", key, store.String(key)); err != nil {
			return err
		}
	}
	return nil
}
