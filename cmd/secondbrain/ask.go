package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"second-brain/internal/dto"
	"second-brain/internal/service"

	"github.com/spf13/cobra"
)

var (
	askModel       string
	askInteractive bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question grounded on the journal",
	Long: `Retrieves journal context for the first question of the session and
streams the model's answer to stdout. With --interactive, further questions
are read from stdin and continue the same conversation; /clear starts over.`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askModel, "model", "m", "", "Generative model (default LLM_MODEL)")
	askCmd.Flags().BoolVarP(&askInteractive, "interactive", "i", false, "Keep reading questions from stdin")
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" && !askInteractive {
		return cmd.Usage()
	}

	a, err := openApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	chat := a.container.ChatbotService
	session, err := chat.CreateSession(cmd.Context(), &dto.CreateSessionRequest{Model: askModel})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if question != "" {
		if err := askOnce(cmd.Context(), chat, session.Id, question, out); err != nil {
			return err
		}
	}
	if !askInteractive {
		return nil
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		infoColor.Fprint(os.Stderr, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/clear":
			if err := chat.ClearSession(cmd.Context(), session.Id); err != nil {
				return err
			}
			infoColor.Fprintln(os.Stderr, "session cleared")
			continue
		}
		if err := askOnce(cmd.Context(), chat, session.Id, line, out); err != nil {
			printError(err)
		}
	}
}

func askOnce(ctx context.Context, chat service.IChatbotService, sessionId, question string, out io.Writer) error {
	res, err := chat.SendChat(ctx, sessionId, &dto.SendChatRequest{Chat: question, Model: askModel}, func(chunk string) error {
		_, err := io.WriteString(out, chunk)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	if !res.Grounded {
		warnColor.Fprintln(os.Stderr, "warning: the journal database was unreachable; this answer is not grounded")
	}
	return nil
}
