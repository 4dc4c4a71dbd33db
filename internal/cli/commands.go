package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/interest/internal/config"
	"github.com/lazypower/interest/internal/engine"
	"github.com/lazypower/interest/internal/store"
)

var (
	recordID        string
	recordUser      string
	recordContent   string
	recordDiscovery string
	recordType      string
	recordAt        string

	scoresLimit  int
	relatedLimit int

	contentText   string
	contentTopics []string

	maintainUser    string
	maintainScores  bool
	maintainGraph   bool
	configInitForce bool
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record one interaction and print the accumulator result",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		at := a.engine.Now()
		if recordAt != "" {
			t, err := time.Parse(time.RFC3339, recordAt)
			if err != nil {
				return fmt.Errorf("--at: %w", err)
			}
			at = t.UnixMilli()
		}
		res, err := a.engine.Record(cmd.Context(), engine.Interaction{
			ID:        recordID,
			UserID:    recordUser,
			ContentID: recordContent,
			Discovery: recordDiscovery,
			Type:      recordType,
			Timestamp: at,
		})
		if perr := printJSON(res); perr != nil {
			return perr
		}
		return err
	},
}

var scoresCmd = &cobra.Command{
	Use:   "scores <user>",
	Short: "Show a user's topic scores with decay applied",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		scores, err := a.engine.Scores(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if scoresLimit > 0 && len(scores) > scoresLimit {
			scores = scores[:scoresLimit]
		}
		out := cmd.OutOrStdout()
		if len(scores) == 0 {
			fmt.Fprintf(out, "no scores for %s\n", args[0])
			return nil
		}
		fmt.Fprintf(out, "%-32s %9s %11s %9s\n", "TOPIC", "INTEREST", "DISINTEREST", "NET")
		for _, s := range scores {
			fmt.Fprintf(out, "%-32s %9.3f %11.3f %9.3f\n", s.Topic, s.Interest, s.Disinterest, s.Net())
		}
		return nil
	},
}

var activityCmd = &cobra.Command{
	Use:   "activity <user>",
	Short: "Show a user's activity profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.engine.Activity(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(p)
	},
}

var relatedCmd = &cobra.Command{
	Use:   "related <topic>",
	Short: "List topics related to a topic, strongest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		topic := strings.ToLower(args[0])
		rels, err := a.engine.Graph.Related(cmd.Context(), topic, relatedLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(rels) == 0 {
			fmt.Fprintf(out, "no topics related to %s\n", topic)
			return nil
		}
		for _, r := range rels {
			fmt.Fprintf(out, "%-32s %8.3f  (%d co-occurrences)\n", r.Other(topic), r.Weight, r.CoOccurrences)
		}
		return nil
	},
}

var contentCmd = &cobra.Command{
	Use:   "content <id>",
	Short: "Store a content item, optionally with its topics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		var topics []string
		for _, t := range contentTopics {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				topics = append(topics, t)
			}
		}
		ctx := cmd.Context()
		if err := a.db.PutContent(ctx, store.Content{ID: args[0], Text: contentText, Topics: topics}); err != nil {
			return err
		}
		c, err := a.db.GetContent(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(c)
	},
}

var maintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Run score decay and relationship maintenance once",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		return runMaintain(cmd.Context(), a, cmd)
	},
}

func runMaintain(ctx context.Context, a *app, cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	if maintainScores {
		var (
			report engine.DecayReport
			err    error
		)
		if maintainUser != "" {
			report, err = a.engine.DecayUser(ctx, maintainUser)
		} else {
			report, err = a.engine.DecayAll(ctx)
		}
		if err != nil {
			return fmt.Errorf("score decay: %w", err)
		}
		fmt.Fprintf(out, "scores: %d users, %d changed, %d removed\n", report.Users, report.Changed, report.Removed)
	}
	if maintainGraph && maintainUser == "" {
		res, err := a.engine.MaintainGraph(ctx)
		if err != nil {
			return fmt.Errorf("relationship decay: %w", err)
		}
		fmt.Fprintf(out, "relationships: %d decayed, %d pruned\n", res.Decayed, res.Pruned)
	}
	return nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the configuration file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.LLM.AnthropicKey = redact(cfg.LLM.AnthropicKey)
		return printJSON(cfg)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to --config",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !configInitForce {
			if _, err := config.Load(configPath); err == nil {
				return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
			}
		}
		if err := config.Save(configPath, config.Default()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", configPath)
		return nil
	},
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

func init() {
	f := recordCmd.Flags()
	f.StringVar(&recordID, "id", "", "interaction id (generated when empty)")
	f.StringVar(&recordUser, "user", "", "user id")
	f.StringVar(&recordContent, "content", "", "content id")
	f.StringVar(&recordDiscovery, "discovery", "SEARCH", "discovery mode: SEARCH, TRENDING or RECOMMENDATION")
	f.StringVar(&recordType, "type", "VIEW", "interaction type: LIKE, DISLIKE, COMMENT, REPORT, VIEW, SHARE or REACTION")
	f.StringVar(&recordAt, "at", "", "event time as RFC3339 (default now)")
	recordCmd.MarkFlagRequired("user")
	recordCmd.MarkFlagRequired("content")

	scoresCmd.Flags().IntVar(&scoresLimit, "limit", 0, "show at most this many topics")
	relatedCmd.Flags().IntVar(&relatedLimit, "limit", 0, "show at most this many topics (default graph.neighbor_limit)")

	contentCmd.Flags().StringVar(&contentText, "text", "", "content text used for topic extraction")
	contentCmd.Flags().StringSliceVar(&contentTopics, "topics", nil, "comma-separated topics; skips extraction")

	maintainCmd.Flags().StringVar(&maintainUser, "user", "", "decay only this user's scores")
	maintainCmd.Flags().BoolVar(&maintainScores, "scores", true, "decay user scores")
	maintainCmd.Flags().BoolVar(&maintainGraph, "graph", true, "decay and prune topic relationships")

	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configShowCmd, configInitCmd)
}
