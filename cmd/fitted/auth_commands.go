package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fittedhq/fitted-go/internal/session"
)

func loginCmd(cfgPath *string) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to your Fitted account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*cfgPath)
			if err != nil {
				return err
			}

			if password == "" {
				password, err = promptLine("Password: ")
				if err != nil {
					return err
				}
			}

			returnPath, err := a.store.Login(cmd.Context(), session.Credentials{
				Email:    email,
				Password: password,
			})
			if err != nil {
				return err
			}

			state := a.store.State()
			fmt.Printf("Signed in as %s %s <%s>\n", state.User.FirstName, state.User.LastName, state.User.Email)
			if returnPath != session.DefaultReturnPath {
				fmt.Printf("You were headed to %s\n", returnPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func signupCmd(cfgPath *string) *cobra.Command {
	var req session.SignupRequest

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create a Fitted account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*cfgPath)
			if err != nil {
				return err
			}

			if req.Password == "" {
				req.Password, err = promptLine("Password: ")
				if err != nil {
					return err
				}
				req.PasswordConfirmation, err = promptLine("Confirm password: ")
				if err != nil {
					return err
				}
			} else if req.PasswordConfirmation == "" {
				req.PasswordConfirmation = req.Password
			}

			if _, err := a.store.Signup(cmd.Context(), req); err != nil {
				return err
			}

			state := a.store.State()
			fmt.Printf("Welcome to Fitted, %s!\n", state.User.FirstName)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Email, "email", "", "account email")
	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&req.Password, "password", "", "password (prompted when omitted)")
	cmd.Flags().StringVar(&req.PasswordConfirmation, "password-confirmation", "", "password confirmation")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("first-name")
	_ = cmd.MarkFlagRequired("last-name")

	return cmd
}

func logoutCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear local session state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*cfgPath)
			if err != nil {
				return err
			}

			a.store.Logout(cmd.Context())
			fmt.Println("Signed out.")
			return nil
		},
	}
}

func whoamiCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*cfgPath)
			if err != nil {
				return err
			}

			a.store.InitializeAuth(cmd.Context())

			state := a.store.State()
			if !state.IsAuthenticated {
				fmt.Println("Not signed in.")
				return nil
			}

			fmt.Printf("%s %s <%s>\n", state.User.FirstName, state.User.LastName, state.User.Email)
			return nil
		},
	}
}

func promptLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
