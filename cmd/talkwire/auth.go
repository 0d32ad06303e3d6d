package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	talkwire "github.com/talkwire-im/talkwire-go"
)

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Log in and store the credential",
	Long:  "Authenticate against the configured server and save the session\ntoken to the local config file. Prompts for the password on stdin.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		username := args[0]

		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		password, err := promptLine("Password: ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading password: %v\n", err)
			os.Exit(1)
		}
		if password == "" {
			fmt.Fprintln(os.Stderr, "Password must not be empty.")
			os.Exit(1)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		client := talkwire.NewClient(cfg.baseURL(), "")
		data, err := client.Login(ctx, username, password)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Login failed: %v\n", err)
			os.Exit(1)
		}

		cfg.Auth.Token = data.Token
		cfg.Auth.UserID = data.User.ID.String()
		cfg.Auth.Username = data.User.Username
		if err := saveConfig(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Logged in as %s (id %s).\n", data.User.Username, data.User.ID)
	},
}

var registerCmd = &cobra.Command{
	Use:   "register <username>",
	Short: "Create a new account",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		username := args[0]

		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		password, err := promptLine("Password: ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading password: %v\n", err)
			os.Exit(1)
		}
		confirm, err := promptLine("Confirm password: ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading password: %v\n", err)
			os.Exit(1)
		}
		if password == "" || password != confirm {
			fmt.Fprintln(os.Stderr, "Passwords do not match.")
			os.Exit(1)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		client := talkwire.NewClient(cfg.baseURL(), "")
		if err := client.Register(ctx, username, password); err != nil {
			fmt.Fprintf(os.Stderr, "Registration failed: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Account %q created. Run 'talkwire login %s' to sign in.\n", username, username)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard the stored credential",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		if !cfg.loggedIn() {
			fmt.Println("Already logged out.")
			return
		}

		cfg.Auth = ConfigAuth{}
		if err := saveConfig(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Logged out.")
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(logoutCmd)
}
