// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theredstring/bridge/internal/profiles"
)

var profileDir string

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage LLM provider profiles (C13)",
}

var profileAddCmd = &cobra.Command{
	Use:   "add NAME PROVIDER KEY",
	Short: "Store a new provider profile",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := profiles.Open(profileDir)
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := store.Store(args[1], args[0], "", "", profiles.Settings{Temperature: 0.7}, args[2])
		if err != nil {
			return err
		}
		fmt.Printf("stored profile %q (%s)\n", args[0], id)
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := profiles.Open(profileDir)
		if err != nil {
			return err
		}
		defer store.Close()

		list, err := store.ListProfiles()
		if err != nil {
			return err
		}
		active, hasActive, err := store.GetActive()
		if err != nil {
			return err
		}
		for _, p := range list {
			marker := "  "
			if hasActive && p.ID == active.ID {
				marker = "* "
			}
			fmt.Printf("%s%s\t%s\t%s\t%s\n", marker, p.ID, p.Name, p.Provider, p.Model)
		}
		return nil
	},
}

var profileUseCmd = &cobra.Command{
	Use:   "use ID",
	Short: "Mark a profile as active",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := profiles.Open(profileDir)
		if err != nil {
			return err
		}
		defer store.Close()
		return store.SetActive(args[0])
	},
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove ID",
	Short: "Delete a stored profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := profiles.Open(profileDir)
		if err != nil {
			return err
		}
		defer store.Close()
		return store.Delete(args[0])
	},
}

func init() {
	profileCmd.PersistentFlags().StringVar(&profileDir, "profile-dir", "./.bridge/profiles", "directory for the profile store")
	profileCmd.AddCommand(profileAddCmd, profileListCmd, profileUseCmd, profileRemoveCmd)
}
