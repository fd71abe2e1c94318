package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/quietroomlabs/haven/pkg/agent"
	"github.com/quietroomlabs/haven/pkg/logger"
)

func newChatCommand() *cobra.Command {
	var (
		userID  string
		message string
		debug   bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Run an interactive local session (or send a one-shot message)",
		Example: strings.Join([]string{
			"  haven chat",
			"  haven chat --user alice",
			"  haven chat --message \"I've been feeling anxious about work\"",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.SetDebug(debug)
			defer logger.Sync()

			_, psych, logStore, err := loadRuntime()
			if err != nil {
				return err
			}
			defer logStore.Close()

			session := psych.StartSession(userID)
			fmt.Printf("Session %s started for %s (%s).\n", session.ID, userID, session.ActiveMode.Display())
			fmt.Println("haven is not a replacement for professional mental health care.")

			if strings.TrimSpace(message) != "" {
				return runOneShot(cmd.Context(), psych, userID, message)
			}
			return runREPL(cmd.Context(), psych, userID)
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "default", "User identifier for session and history")
	cmd.Flags().StringVarP(&message, "message", "m", "", "One-shot message instead of the interactive loop")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}

func runOneShot(ctx context.Context, psych *agent.Psychologist, userID, message string) error {
	reply, err := psych.ProcessMessage(ctx, userID, message)
	if err != nil {
		fmt.Println("(warning: this exchange could not be saved to history)")
	}
	printReply(reply.Notice, string(reply.Mode), reply.Text)
	return nil
}

func runREPL(ctx context.Context, psych *agent.Psychologist, userID string) error {
	rl, err := readline.New("you> ")
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	fmt.Println("Type 'help' for commands.")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt || err == io.EOF {
			fmt.Println("Take care.")
			return nil
		}
		if err != nil {
			return err
		}
		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "quit", "exit", "bye":
			fmt.Println("Ending session. Take care.")
			return nil
		case "help":
			printHelp()
			continue
		case "summary":
			summary, err := psych.SessionSummary(ctx, userID)
			if err != nil {
				fmt.Printf("Could not load summary: %v\n", err)
				continue
			}
			fmt.Println(summary)
			continue
		case "history":
			turns, err := psych.History(ctx, userID, 5)
			if err != nil {
				fmt.Printf("Could not load history: %v\n", err)
				continue
			}
			if len(turns) == 0 {
				fmt.Println("No previous conversations found.")
				continue
			}
			for i, turn := range turns {
				fmt.Printf("%d. You: %s\n   AI: %s\n", i+1, clipLine(turn.UserMessage), clipLine(turn.AgentResponse))
			}
			continue
		case "status", "agent":
			fmt.Println(psych.Status(userID))
			continue
		}

		reply, err := psych.ProcessMessage(ctx, userID, input)
		if err != nil {
			fmt.Println("(warning: this exchange could not be saved to history)")
		}
		printReply(reply.Notice, string(reply.Mode), reply.Text)
	}
}

func printReply(notice, mode, text string) {
	if notice != "" {
		fmt.Printf("-- %s --\n", notice)
	}
	fmt.Printf("[%s]\n%s\n", strings.ToUpper(mode), text)
}

func printHelp() {
	fmt.Println(strings.TrimSpace(`
Available commands:
  summary   Show a short summary of this session
  history   Show your recent conversation history
  status    Show the active specialist and mode history
  help      Show this help
  quit      End the session`))
}

func clipLine(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\n", " ")
	if len(s) > 100 {
		return s[:100] + "..."
	}
	return s
}
