package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ahrav/shinise-scout/infrastructure/agents"
	"github.com/ahrav/shinise-scout/internal/application"
	"github.com/ahrav/shinise-scout/internal/domain"
	"github.com/ahrav/shinise-scout/sdk/scout"
)

type agentOptions struct {
	shop   domain.Shop
	force  bool
	server string
	asJSON bool
}

func newAgentCmd(root *rootOptions) *cobra.Command {
	opts := &agentOptions{}
	cmd := &cobra.Command{
		Use:   "agent <agent-type|all>",
		Short: "Run analysis agents against one shop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := agentIDs(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			emit := func(r domain.AgentResult) {
				if opts.asJSON {
					_ = writeJSON(out, r)
					return
				}
				writeResult(out, r)
			}

			if opts.server != "" {
				_, err = scout.New(opts.server).RunAgents(cmd.Context(), ids, opts.shop, opts.force, emit)
				return err
			}
			return runAgentsLocal(cmd.Context(), root, ids, opts, emit)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.shop.Name, "shop-name", "", "shop name")
	f.StringVar(&opts.shop.Address, "shop-address", "", "shop address")
	f.StringVar(&opts.shop.ID, "shop-id", "", "place id, used as the cache key")
	f.BoolVar(&opts.force, "force", false, "skip cached results")
	f.StringVar(&opts.server, "server", "", "query a running server instead of running locally")
	f.BoolVar(&opts.asJSON, "json", false, "print results as JSON")
	_ = cmd.MarkFlagRequired("shop-name")
	return cmd
}

func agentIDs(arg string) ([]domain.TaskID, error) {
	if arg == "all" {
		tasks := agents.AgentTasks()
		ids := make([]domain.TaskID, len(tasks))
		for i, t := range tasks {
			ids[i] = t.ID()
		}
		return ids, nil
	}
	var ids []domain.TaskID
	for _, part := range strings.Split(arg, ",") {
		id := domain.TaskID(strings.TrimSpace(part))
		if _, err := agents.Lookup(id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func runAgentsLocal(ctx context.Context, root *rootOptions, ids []domain.TaskID, opts *agentOptions, emit func(domain.AgentResult)) error {
	cfg, log, err := root.load()
	if err != nil {
		return err
	}
	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	tasks := make([]*agents.Task, len(ids))
	for i, id := range ids {
		tasks[i] = agents.MustLookup(id)
	}

	board := application.NewBoard()
	board.MarkPending(opts.shop.ID, tasks)
	dispatcher := application.NewDispatcher(a.agents, cfg.Dispatcher.Concurrency, log)
	board.Consume(dispatcher.Dispatch(ctx, tasks, opts.shop, opts.force), func(e application.Emission) {
		emit(e.Result)
	})
	return nil
}

func writeResult(w io.Writer, r domain.AgentResult) {
	fmt.Fprintf(w, "%s %s: %s", r.Icon, r.AgentName, r.Summary)
	if r.Score != nil {
		fmt.Fprintf(w, " (%d)", *r.Score)
	}
	if r.RiskLevel != "" {
		fmt.Fprintf(w, " [%s]", r.RiskLevel)
	}
	fmt.Fprintln(w)
	for _, d := range r.Details {
		fmt.Fprintf(w, "    - %s\n", d)
	}
}
