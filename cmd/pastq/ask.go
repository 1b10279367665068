package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/pastq/internal/domain"
)

var askK int

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question from the command line and print the result envelope",
	Example: `  pastq ask "C programming questions from 2079 about pointers"
  pastq ask -k 5 "5 mark questions on recursion"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askK, "k", "k", 0, "maximum number of questions (0 = configured default)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, a, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, usage := domain.NewContextWithUsage(ctx)
	env, err := a.retrieve.Retrieve(ctx, strings.Join(args, " "), askK)
	if err != nil {
		return fmt.Errorf("retrieve: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if usage.Used {
		fmt.Fprintf(cmd.ErrOrStderr(), "embedding tokens: %d\n", usage.TotalTokens)
	}
	return nil
}
