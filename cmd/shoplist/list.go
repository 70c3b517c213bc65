package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"lists"},
	Short:   "Show and manage your lists",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := signedIn(cmd.Context())
		if err != nil {
			return err
		}
		options := s.Settings.ListOptions()
		if len(options) == 0 {
			fmt.Println("No lists yet, create one with 'shoplist list select <name>'")
			return nil
		}

		active := s.Settings.ActiveList()
		perms := s.Settings.Permissions()
		faint := color.New(color.Faint).SprintFunc()
		for _, opt := range options {
			marker := "  "
			name := opt.Label
			if opt.Value == active {
				marker = color.GreenString("▸ ")
				name = color.New(color.Bold).Sprint(name)
			}
			role := string(perms[opt.Value])
			if meta, ok := s.Settings.Metadata(opt.Value); ok && meta.Blocked {
				role += ", locked"
			}
			fmt.Printf("%s%s %s %s\n", marker, name, faint(opt.Value), faint("("+role+")"))
		}
		return nil
	},
}

var listSelectCmd = &cobra.Command{
	Use:   "select <name-or-id>",
	Short: "Open a list by id, or create one with that name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := signedIn(cmd.Context())
		if err != nil {
			return err
		}
		listID, err := s.Settings.SelectList(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Active list: %s\n", color.CyanString(listID))
		return nil
	},
}

var listRenameCmd = &cobra.Command{
	Use:   "rename <name>",
	Short: "Rename the active list (owner only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := signedIn(cmd.Context())
		if err != nil {
			return err
		}
		return s.Settings.UpdateListName(cmd.Context(), args[0])
	},
}

var listCloneCmd = &cobra.Command{
	Use:   "clone <name>",
	Short: "Copy the active catalog into a new list and open it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := signedIn(cmd.Context())
		if err != nil {
			return err
		}
		listID, err := s.Settings.CloneList(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Active list: %s\n", color.CyanString(listID))
		return nil
	},
}

var listLockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Toggle guest write access to the active list (owner only)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := signedIn(cmd.Context())
		if err != nil {
			return err
		}
		return s.Settings.ToggleWritingPrivileges(cmd.Context())
	},
}

var listLeaveCmd = &cobra.Command{
	Use:   "leave [id]",
	Short: "Stop following a list, the active one by default",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return leaveOrDelete(cmd, args, false)
	},
}

var listDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a list you own, the active one by default",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return leaveOrDelete(cmd, args, true)
	},
}

func init() {
	listDeleteCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")

	listCmd.AddCommand(listSelectCmd, listRenameCmd, listCloneCmd, listLockCmd, listLeaveCmd, listDeleteCmd)
	rootCmd.AddCommand(listCmd)
}

func leaveOrDelete(cmd *cobra.Command, args []string, deleteList bool) error {
	s, err := signedIn(cmd.Context())
	if err != nil {
		return err
	}
	listID := s.Settings.ActiveList()
	if len(args) > 0 {
		listID = args[0]
	}
	if listID == "" {
		return fmt.Errorf("no list selected")
	}
	if deleteList {
		yes, _ := cmd.Flags().GetBool("yes")
		name := listID
		if meta, ok := s.Settings.Metadata(listID); ok {
			name = meta.Name
		}
		if !yes && !confirm(fmt.Sprintf("Delete %q for every member?", name)) {
			return nil
		}
	}
	return s.Settings.LeaveOrDeleteList(cmd.Context(), listID, deleteList)
}
