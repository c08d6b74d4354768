package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	chatMessage string
	chatSession string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the reservation assistant from the terminal",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "send one message and exit")
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", "", "session ID (default: a new one)")
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	sessionID := strings.TrimSpace(chatSession)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	if chatMessage != "" {
		return chatOnce(ctx, a, sessionID, chatMessage)
	}

	fmt.Printf("FoodieSpot assistant (session %s). Type 'exit' to quit, '/reset' to start over.\n\n", sessionID)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch strings.ToLower(line) {
		case "exit", "quit", "/exit", "/quit", ":q":
			return nil
		case "/reset":
			if err := a.orchestrator.Reset(ctx, sessionID); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			fmt.Print("Session cleared.\n\n")
			continue
		}
		if err := chatOnce(ctx, a, sessionID, line); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	return scanner.Err()
}

func chatOnce(ctx context.Context, a *app, sessionID, text string) error {
	reply, err := a.orchestrator.Respond(ctx, sessionID, text)
	if err != nil {
		return err
	}
	fmt.Printf("\nFoodieSpot: %s\n\n", reply.Text)
	return nil
}
