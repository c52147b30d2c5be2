package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codemarcinu/ageny/llmrouter"
)

var (
	chatModelFlag        string
	chatProviderFlag     string
	chatTutorFlag        bool
	chatConversationFlag string
)

var chatCmd = &cobra.Command{
	Use:   "chat [prompt]",
	Short: "Send one completion through the fallback chain",
	Long: `Send a prompt through the configured providers and print the answer.

With --tutor the prompt is coached instead of answered: the tutor either asks
for the most important missing element or, once the prompt is complete,
prints an assessment and a rewritten prompt. Tutor state lives in memory for
the life of one process, so multi-turn coaching belongs to the server.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatModelFlag, "model", "", "override the provider's default model")
	chatCmd.Flags().StringVar(&chatProviderFlag, "provider", "", "prefer this provider first")
	chatCmd.Flags().BoolVar(&chatTutorFlag, "tutor", false, "coach the prompt instead of answering it")
	chatCmd.Flags().StringVar(&chatConversationFlag, "conversation", "", "tutor conversation id")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	st, err := buildStack(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	req := llmrouter.ChatRequest{
		Messages:       []llmrouter.Message{llmrouter.UserMessage(strings.Join(args, " "))},
		Model:          chatModelFlag,
		Provider:       chatProviderFlag,
		TutorMode:      chatTutorFlag,
		ConversationID: chatConversationFlag,
	}

	ctx := cmd.Context()
	if chatTutorFlag {
		result, err := st.machine.Turn(ctx, req)
		if err != nil {
			return err
		}
		if result.Question != "" {
			fmt.Fprintf(ioOut, "Tutor: %s\n", result.Question)
			return nil
		}
		fmt.Fprintln(ioOut, result.Feedback)
		return nil
	}

	resp, err := st.client.Complete(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintln(ioOut, resp.Text)
	st.logger.Debug("completion served",
		"provider", resp.Provider,
		"model", resp.Model,
		"tokens", resp.Usage.TotalTokens,
		"cost", resp.Cost.Total,
	)
	return nil
}
