package cmd

import (
	"context"
	"fmt"

	"charm.land/fantasy"
	"github.com/spf13/cobra"

	"tabletalk/internal/agent"
)

var chatCmd = &cobra.Command{
	Use:   "chat [question]",
	Short: "Chat with Claude about the loaded data (agentic)",
	Long: `Ask a question and let Claude answer it agentically: the model can list
tables, inspect schemas, and run its own SQL queries as tools before
responding. Unlike "ask", which generates a single query, "chat" may run
several queries to assemble an answer.

Requires ANTHROPIC_API_KEY environment variable to be set.

Example:
  tabletalk chat "Which table has the most rows, and what does it contain?"
  tabletalk chat "Compare average order amounts between regions"`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		question := args[0]

		initStoreWrapper := func(dataDir string) (agent.Store, func(), error) {
			store, cleanup, err := InitStore(dataDir)
			if err != nil {
				return nil, nil, err
			}
			return &agentStoreAdapter{store: store}, cleanup, nil
		}

		chatAgent, err := agent.NewChatAgent(
			agent.WithAPIKeyFromEnv(),
			agent.WithDataDir(dataDir),
			agent.WithStoreInitializer(initStoreWrapper),
		)
		if err != nil {
			HandleError(err, "Failed to create agent")
		}

		ctx := context.Background()

		result, err := chatAgent.Generate(ctx, fantasy.AgentCall{Prompt: question})
		if err != nil {
			HandleError(err, "Failed to generate response")
		}

		fmt.Println(result.Response.Content.Text())
	},
}

// agentStoreAdapter adapts cmd.StoreInterface to agent.Store
type agentStoreAdapter struct {
	store StoreInterface
}

func (a *agentStoreAdapter) SchemaForLLM(names ...string) (string, error) {
	return a.store.SchemaForLLM(names...)
}

func (a *agentStoreAdapter) ExecuteQuery(query string) ([]map[string]any, error) {
	return a.store.ExecuteQuery(query)
}

func (a *agentStoreAdapter) TableNames() []string {
	tables := a.store.Tables()
	names := make([]string, 0, len(tables))
	for _, table := range tables {
		names = append(names, table.Name)
	}
	return names
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
