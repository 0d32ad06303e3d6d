package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	talkwire "github.com/talkwire-im/talkwire-go"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open a live conversation",
}

var chatPrivateCmd = &cobra.Command{
	Use:   "private <userId>",
	Short: "Chat with a friend",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runChat(talkwire.KindPrivate, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

var chatGroupCmd = &cobra.Command{
	Use:   "group <groupId>",
	Short: "Chat in a group",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runChat(talkwire.KindGroup, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

// runChat opens the conversation, prints its history, then relays between
// stdin and the realtime connection until interrupted.
func runChat(kind talkwire.ConversationKind, id string) error {
	client, cfg := getClient()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	me := talkwire.UserProfile{
		ID:       talkwire.Identifier(cfg.Auth.UserID),
		Username: cfg.Auth.Username,
	}
	key := talkwire.ConversationKey{Kind: kind, ID: id}

	// Reconnects keep firing until the stored credential disappears, so a
	// logout from another terminal stops this chat's retry loop too.
	conn := talkwire.NewConn(talkwire.ConnConfig{
		BaseURL: cfg.baseURL(),
		Token:   cfg.Auth.Token,
		Authorized: func() bool {
			c, err := loadConfig()
			return err == nil && c.loggedIn()
		},
		Logger: logger,
	})

	session := talkwire.NewSession(client, conn, talkwire.SessionConfig{
		User:   me,
		Logger: logger,
		OnMessage: func(k talkwire.ConversationKey, m talkwire.Message) {
			if k == key {
				printMessage(me, m)
			}
		},
	})
	defer session.Logout()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go session.Run(ctx)

	if err := conn.Connect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Connection failed, retrying in background: %v\n", err)
	}
	if err := session.Switch(ctx, key); err != nil {
		return fmt.Errorf("cannot open conversation: %w", err)
	}
	for _, m := range session.ActiveMessages() {
		printMessage(me, m)
	}
	fmt.Printf("-- %s %s -- type a message and press enter, Ctrl-C to quit --\n", kind, id)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nBye.")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			var err error
			if kind == talkwire.KindPrivate {
				err = session.SendPrivate(ctx, id, line)
			} else {
				err = session.SendGroup(ctx, id, line)
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Send failed: %v\n", err)
			}
		}
	}
}

// printMessage renders one log entry as "[15:04:05] sender: content".
func printMessage(me talkwire.UserProfile, m talkwire.Message) {
	sender := m.SenderID.String()
	if m.SenderID == me.ID {
		sender = "me"
	}
	ts := m.Timestamp
	if t, err := time.Parse(time.RFC3339Nano, m.Timestamp); err == nil {
		ts = t.Local().Format("15:04:05")
	}
	fmt.Printf("[%s] %s: %s\n", ts, sender, m.Content)
}

func init() {
	chatCmd.AddCommand(chatPrivateCmd)
	chatCmd.AddCommand(chatGroupCmd)
	rootCmd.AddCommand(chatCmd)
}
