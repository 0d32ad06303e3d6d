package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var friendsCmd = &cobra.Command{
	Use:   "friends",
	Short: "List your friends",
	Run: func(cmd *cobra.Command, args []string) {
		client, _ := getClient()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		friends, err := client.Friends(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error fetching friends: %v\n", err)
			os.Exit(1)
		}
		if len(friends) == 0 {
			fmt.Println("No friends yet. Add one with 'talkwire friends add <userId>'.")
			return
		}
		for _, f := range friends {
			fmt.Printf("%-8s %s\n", f.ID, f.Username)
		}
	},
}

var friendsAddCmd = &cobra.Command{
	Use:   "add <userId>",
	Short: "Add a friend by user id",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, _ := getClient()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		if err := client.AddFriend(ctx, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error adding friend: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Friend %s added.\n", args[0])
	},
}

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List your groups",
	Run: func(cmd *cobra.Command, args []string) {
		client, _ := getClient()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		groups, err := client.Groups(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error fetching groups: %v\n", err)
			os.Exit(1)
		}
		if len(groups) == 0 {
			fmt.Println("No groups yet. Create one with 'talkwire groups create <name>'.")
			return
		}
		for _, g := range groups {
			fmt.Printf("%-8s %s\n", g.ID, g.Name)
		}
	},
}

var groupsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new group",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, _ := getClient()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		if err := client.CreateGroup(ctx, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating group: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Group %q created.\n", args[0])
	},
}

func init() {
	friendsCmd.AddCommand(friendsAddCmd)
	groupsCmd.AddCommand(groupsCreateCmd)
	rootCmd.AddCommand(friendsCmd)
	rootCmd.AddCommand(groupsCmd)
}
