package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var registerCmd = &cobra.Command{
	Use:   "register [email] [password]",
	Short: "Create an account and sign in",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, password, err := credentials(args)
		if err != nil {
			return err
		}
		s, err := session()
		if err != nil {
			return err
		}
		ident, err := s.Register(cmd.Context(), email, password)
		if err != nil {
			return err
		}
		fmt.Printf("Signed in as %s\n", color.CyanString(ident.Email))
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login [email] [password]",
	Short: "Sign in to an existing account",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, password, err := credentials(args)
		if err != nil {
			return err
		}
		s, err := session()
		if err != nil {
			return err
		}
		ident, err := s.Login(cmd.Context(), email, password)
		if err != nil {
			return err
		}
		fmt.Printf("Signed in as %s\n", color.CyanString(ident.Email))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the saved token",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := session()
		if err != nil {
			return err
		}
		if err := s.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account and its settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := signedIn(cmd.Context())
		if err != nil {
			return err
		}
		faint := color.New(color.Faint).SprintFunc()
		fmt.Printf("uid:      %s\n", s.Settings.UID())
		fmt.Printf("username: %s\n", orNone(s.Settings.Username(), faint))
		fmt.Printf("list:     %s\n", orNone(s.Settings.ListName(), faint))
		for _, p := range s.Settings.OnboardingPrompts() {
			fmt.Println(color.YellowString("! no %s chosen yet", p))
		}
		return nil
	},
}

var usernameCmd = &cobra.Command{
	Use:   "username <name>",
	Short: "Set the name stamped on products you add to the cart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := signedIn(cmd.Context())
		if err != nil {
			return err
		}
		return s.Settings.SetUsername(cmd.Context(), args[0])
	},
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage the signed-in account",
}

var accountPasswordCmd = &cobra.Command{
	Use:   "password <new-password>",
	Short: "Change the account password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := signedIn(cmd.Context())
		if err != nil {
			return err
		}
		return s.UpdatePassword(cmd.Context(), args[0])
	},
}

var accountEmailCmd = &cobra.Command{
	Use:   "email <new-email>",
	Short: "Change the account email",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := signedIn(cmd.Context())
		if err != nil {
			return err
		}
		return s.UpdateEmail(cmd.Context(), args[0])
	},
}

var accountDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the account and its settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes && !confirm("Delete your account? Lists you own stay behind.") {
			return nil
		}
		s, err := signedIn(cmd.Context())
		if err != nil {
			return err
		}
		return s.DeleteAccount(cmd.Context())
	},
}

func init() {
	accountDeleteCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")

	accountCmd.AddCommand(accountPasswordCmd, accountEmailCmd, accountDeleteCmd)
	rootCmd.AddCommand(registerCmd, loginCmd, logoutCmd, whoamiCmd, usernameCmd, accountCmd)
}

// credentials picks email and password from the arguments, then the
// configuration, then prompts for the password.
func credentials(args []string) (string, string, error) {
	email, password := cfg.Client.Email, cfg.Client.Password
	if len(args) > 0 {
		email = args[0]
	}
	if len(args) > 1 {
		password = args[1]
	}
	if email == "" {
		return "", "", fmt.Errorf("email is required")
	}
	if password == "" {
		password = prompt("Password: ")
	}
	if password == "" {
		return "", "", fmt.Errorf("password is required")
	}
	return email, password, nil
}

func prompt(label string) string {
	fmt.Print(label)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(line)
}

func confirm(question string) bool {
	answer := strings.ToLower(prompt(question + " [y/N] "))
	return answer == "y" || answer == "yes"
}

func orNone(s string, faint func(a ...any) string) string {
	if s == "" {
		return faint("(none)")
	}
	return s
}
