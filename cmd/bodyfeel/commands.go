package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bodyfeel/internal/client"
	"bodyfeel/internal/domain"
	"bodyfeel/internal/emotion"
	"bodyfeel/internal/mapping"
)

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("BODYFEEL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault("timeout", client.DefaultTimeout)

	root := &cobra.Command{
		Use:           "bodyfeel",
		Short:         "Infer a probable emotional state from body sensations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("server", "", "bodyfeel server URL (or set BODYFEEL_SERVER); empty analyzes locally")
	root.PersistentFlags().Duration("timeout", client.DefaultTimeout, "request timeout when talking to the server (or set BODYFEEL_TIMEOUT)")
	root.PersistentFlags().Bool("json", false, "print JSON instead of text")
	_ = v.BindPFlag("server", root.PersistentFlags().Lookup("server"))
	_ = v.BindPFlag("timeout", root.PersistentFlags().Lookup("timeout"))
	_ = v.BindPFlag("json", root.PersistentFlags().Lookup("json"))

	root.AddCommand(newAnalyzeCmd(v), newStatusCmd(v), newStatsCmd(v), newKnowledgeCmd(v))
	return root
}

func newAnalyzeCmd(v *viper.Viper) *cobra.Command {
	var (
		marks     []string
		backMarks []string
		view      string
		matcher   string
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze marked body regions",
		Example: `  bodyfeel analyze --mark head=hot --mark chest=hot --mark left-arm=hot
  bodyfeel analyze --mark left-leg=cold --back-mark right-leg=cold --matcher counts
  bodyfeel analyze --server http://localhost:8000 --mark chest=warm`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			front, err := parseMarks(marks)
			if err != nil {
				return err
			}
			back, err := parseMarks(backMarks)
			if err != nil {
				return err
			}
			markings := front
			if len(back) > 0 {
				markings = domain.MergeViews(front, back)
				if len(front) == 0 {
					view = string(domain.ViewBack)
				}
			}
			markings, err = mapping.ValidateMarkings(markings, domain.View(view))
			if err != nil {
				return err
			}

			ctx := commandContext(cmd)

			var out domain.AnalyzeResponse
			if server := v.GetString("server"); server != "" {
				c := client.NewClient(server, v.GetDuration("timeout"))
				out, err = c.Analyze(ctx, domain.AnalyzeRequest{BodyMarkings: markings, View: domain.View(view)})
				if err != nil {
					return fmt.Errorf("remote analysis: %w", err)
				}
			} else {
				m, err := emotion.NewMatcher(matcher, emotion.DefaultKnowledgeBase())
				if err != nil {
					return err
				}
				chain := emotion.NewChain(nil, emotion.NewLocalProvider(m), nil, nil)
				analysis := chain.Analyze(ctx, markings, domain.View(view))
				out = domain.AnalyzeResponse{Analysis: analysis, Emotion: analysis.Primary()}
			}

			if v.GetBool("json") {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			printAnalysis(cmd.OutOrStdout(), out.Analysis)
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&marks, "mark", "m", nil, "region=sensation on the front view (repeatable)")
	cmd.Flags().StringArrayVar(&backMarks, "back-mark", nil, "region=sensation on the back view; overrides the front for the same region")
	cmd.Flags().StringVar(&view, "view", string(domain.ViewFront), "view tag sent with the markings: front or back")
	cmd.Flags().StringVar(&matcher, "matcher", emotion.MatcherPattern, "local matcher: pattern or counts")
	return cmd
}

func newStatusCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the analysis chain of a running server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			server := v.GetString("server")
			if server == "" {
				return fmt.Errorf("--server or BODYFEEL_SERVER is required")
			}
			st, err := client.NewClient(server, v.GetDuration("timeout")).Status(commandContext(cmd))
			if err != nil {
				return err
			}
			if v.GetBool("json") {
				return writeJSON(cmd.OutOrStdout(), st)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "status:    %s\n", st.Status)
			fmt.Fprintf(w, "providers: %s\n", strings.Join(st.Providers, " -> "))
			fmt.Fprintf(w, "primary:   %s\n", st.PrimaryProvider)
			fmt.Fprintf(w, "matcher:   %s\n", st.LocalMatcher)
			return nil
		},
	}
}

func newStatsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show stored session and mapping counts of a running server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			server := v.GetString("server")
			if server == "" {
				return fmt.Errorf("--server or BODYFEEL_SERVER is required")
			}
			st, err := client.NewClient(server, v.GetDuration("timeout")).Stats(commandContext(cmd))
			if err != nil {
				return err
			}
			if v.GetBool("json") {
				return writeJSON(cmd.OutOrStdout(), st)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "storage:  %s\n", st.Storage)
			fmt.Fprintf(w, "sessions: %d\n", st.TotalSessions)
			fmt.Fprintf(w, "mappings: %d\n", st.TotalMappings)
			fmt.Fprintf(w, "results:  %d\n", st.TotalEmotionResults)
			return nil
		},
	}
}

func newKnowledgeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "knowledge",
		Short: "List the built-in emotion patterns",
		RunE: func(cmd *cobra.Command, _ []string) error {
			patterns := emotion.DefaultKnowledgeBase().Patterns()
			if v.GetBool("json") {
				return writeJSON(cmd.OutOrStdout(), patterns)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "EMOTION\tCUES\tDESCRIPTION")
			for _, p := range patterns {
				cues := make([]string, 0, len(p.Cues))
				for _, c := range p.Cues {
					cues = append(cues, fmt.Sprintf("%s(%d)", c.Sensation, len(c.Regions)))
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Emotion, strings.Join(cues, " "), p.Description)
			}
			return tw.Flush()
		},
	}
}

// commandContext returns the context the command was executed with. Request
// deadlines come from the client's --timeout.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// parseMarks reads region=sensation pairs. A bare region is recorded as
// present but unmarked.
func parseMarks(marks []string) (domain.SensationMap, error) {
	out := make(domain.SensationMap, len(marks))
	for _, raw := range marks {
		region, value, _ := strings.Cut(raw, "=")
		region = strings.TrimSpace(region)
		if region == "" {
			return nil, fmt.Errorf("invalid mark %q: region is required", raw)
		}
		value = strings.TrimSpace(value)
		if value == "" {
			out[region] = ""
			continue
		}
		s, ok := domain.ParseSensation(value)
		if !ok {
			return nil, fmt.Errorf("invalid mark %q: sensation must be one of %v", raw, domain.Sensations)
		}
		out[region] = s
	}
	return out, nil
}

func printAnalysis(w io.Writer, a domain.Analysis) {
	fmt.Fprintf(w, "source: %s\n", a.Source)
	for i, h := range a.Results {
		fmt.Fprintf(w, "%d. %s (%.2f)\n", i+1, h.Emotion, h.Confidence)
		if h.Description != "" {
			fmt.Fprintf(w, "   %s\n", h.Description)
		}
		if len(h.Patterns) > 0 {
			fmt.Fprintf(w, "   patterns: %s\n", strings.Join(h.Patterns, ", "))
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
