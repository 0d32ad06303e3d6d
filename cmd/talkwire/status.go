package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	talkwire "github.com/talkwire-im/talkwire-go"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and server reachability",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("Talkwire status")
		fmt.Println("===============")
		fmt.Printf("Server:    %s\n", cfg.baseURL())
		if cfg.loggedIn() {
			fmt.Printf("User:      %s (id %s)\n", cfg.Auth.Username, cfg.Auth.UserID)
			fmt.Printf("Token:     %s\n", maskToken(cfg.Auth.Token))
		} else {
			fmt.Println("User:      (not logged in)")
		}

		if !cfg.loggedIn() {
			return
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		client := talkwire.NewClient(cfg.baseURL(), cfg.Auth.Token)
		friends, err := client.Friends(ctx)
		if err != nil {
			fmt.Printf("Reachable: no (%v)\n", err)
			return
		}
		fmt.Println("Reachable: yes")
		fmt.Printf("Friends:   %d\n", len(friends))
		if groups, err := client.Groups(ctx); err == nil {
			fmt.Printf("Groups:    %d\n", len(groups))
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
