package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newChatCmd(a *app) *cobra.Command {
	var stream bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the finance assistant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if !cmd.Flags().Changed("stream") {
				stream = a.cfg.UI.Streaming
			}

			svc, err := a.openRAG(ctx, nil)
			if err != nil {
				return err
			}
			defer svc.Close()

			assistant, err := a.newAssistant(svc)
			if err != nil {
				return err
			}

			color.Cyan("\nChat with your trading library (type 'exit' to quit)")

			scanner := bufio.NewScanner(os.Stdin)
			userPrompt := color.New(color.FgGreen).PrintfFunc()
			assistantPrompt := color.New(color.FgCyan).PrintfFunc()

			for {
				userPrompt("\nYou: ")
				if !scanner.Scan() {
					break
				}

				query := strings.TrimSpace(scanner.Text())
				if query == "" {
					continue
				}
				if strings.EqualFold(query, "exit") {
					break
				}

				if stream {
					spinner := getSpinner(" Thinking...")
					first := true
					_, err := assistant.AnswerStream(ctx, query, func(chunk string) {
						if first {
							spinner.Finish()
							assistantPrompt("\nAssistant: ")
							first = false
						}
						fmt.Print(chunk)
					})
					if first {
						spinner.Finish()
					}
					if err != nil {
						color.Red("\nError: %v", err)
						continue
					}
					fmt.Println()
					continue
				}

				spinner := getSpinner(" Generating response...")
				answer, err := assistant.Answer(ctx, query)
				spinner.Finish()
				if err != nil {
					color.Red("Error: %v", err)
					continue
				}
				assistantPrompt("\nAssistant: %s\n", answer)
			}
			return scanner.Err()
		},
	}

	cmd.Flags().BoolVar(&stream, "stream", false, "stream responses as they are generated (default from config)")
	return cmd
}
