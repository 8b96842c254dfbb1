package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/affective-core/internal/cognitive"
	"github.com/danielpatrickdp/affective-core/internal/emotion"
	"github.com/danielpatrickdp/affective-core/internal/journal"
	"github.com/danielpatrickdp/affective-core/internal/logging"
	"github.com/danielpatrickdp/affective-core/internal/state"
)

// #region root
var (
	dbPath  string
	jsonOut bool
	now     = time.Now
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "inspect",
		Short:         "Inspect persisted cognitive sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dbPath, "db", envOr("AFFECTIVE_DB_PATH", "affective.db"), "path to the session database")
	root.PersistentFlags().BoolVar(&jsonOut, "json", false, "output as JSON instead of a table")

	root.AddCommand(sessionsCmd(), versionsCmd(), showCmd(), decisionsCmd(), journalCmd(), rollbackCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		exitErr("inspect", err)
	}
}

func openStore() (*state.Store, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("database %s: %w", dbPath, err)
	}
	return state.NewStore(dbPath)
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}

// #endregion root

// #region sessions
func sessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List sessions with their active checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			infos, err := store.Sessions()
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd, infos)
			}
			if len(infos) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "no sessions found")
				return nil
			}
			w := table(cmd, "SESSION", "ACTIVE", "VERSIONS", "UPDATED")
			for _, s := range infos {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.SessionID, shortID(s.VersionID), s.Versions, humanize.RelTime(s.UpdatedAt, now(), "ago", "from now"))
			}
			return w.Flush()
		},
	}
}

// #endregion sessions

// #region versions
type versionRow struct {
	VersionID string             `json:"version_id"`
	ParentID  string             `json:"parent_id,omitempty"`
	SessionID string             `json:"session_id"`
	Tone      string             `json:"tone,omitempty"`
	Memories  int                `json:"memories"`
	Channels  map[string]float64 `json:"channels"`
	CreatedAt time.Time          `json:"created_at"`
}

func toRow(rec state.CheckpointRecord) versionRow {
	row := versionRow{
		VersionID: rec.VersionID,
		ParentID:  rec.ParentID,
		SessionID: rec.SessionID,
		Channels:  make(map[string]float64, emotion.NumChannels),
		CreatedAt: rec.CreatedAt,
	}
	for _, c := range emotion.Channels() {
		row.Channels[c.String()] = rec.Channels[c]
	}
	if sum, ok := summaryOf(rec); ok {
		row.Tone = string(sum.EmotionalTone)
		row.Memories = sum.Memory.Episodic.Total() + sum.Memory.Semantic.Total() + sum.Memory.Affective.Total()
	}
	return row
}

func summaryOf(rec state.CheckpointRecord) (cognitive.Summary, bool) {
	var sum cognitive.Summary
	if rec.SummaryJSON == "" || json.Unmarshal([]byte(rec.SummaryJSON), &sum) != nil {
		return cognitive.Summary{}, false
	}
	return sum, true
}

func versionsCmd() *cobra.Command {
	var sessionID string
	var last int
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "List checkpoint versions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			recs, err := store.List(sessionID, last)
			if err != nil {
				return err
			}
			rows := make([]versionRow, len(recs))
			for i, rec := range recs {
				rows[i] = toRow(rec)
			}
			if jsonOut {
				return printJSON(cmd, rows)
			}
			w := table(cmd, "VERSION", "PARENT", "SESSION", "TONE", "MEMORIES", "CREATED")
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", shortID(r.VersionID), dash(shortID(r.ParentID)), r.SessionID,
					dash(r.Tone), r.Memories, humanize.RelTime(r.CreatedAt, now(), "ago", "from now"))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "only versions of this session")
	cmd.Flags().IntVarP(&last, "last", "n", 20, "show N most recent versions")
	return cmd
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <version>",
		Short: "Show one checkpoint in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			rec, err := store.Version(args[0])
			if err != nil {
				return err
			}
			row := toRow(rec)
			if jsonOut {
				return printJSON(cmd, row)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Version:  %s\n", row.VersionID)
			fmt.Fprintf(out, "Parent:   %s\n", dash(row.ParentID))
			fmt.Fprintf(out, "Session:  %s\n", row.SessionID)
			fmt.Fprintf(out, "Created:  %s (%s)\n", row.CreatedAt.Format(time.RFC3339), humanize.RelTime(row.CreatedAt, now(), "ago", "from now"))
			fmt.Fprintf(out, "Tone:     %s\n", dash(row.Tone))
			fmt.Fprintf(out, "Memories: %d (%s of memory JSON)\n", row.Memories, humanize.Bytes(uint64(len(rec.MemoryJSON))))
			fmt.Fprintf(out, "\nChannels:\n")
			printChannels(cmd, row.Channels)
			return nil
		},
	}
}

func printChannels(cmd *cobra.Command, channels map[string]float64) {
	names := make([]string, 0, len(channels))
	for name := range channels {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v := channels[name]
		fmt.Fprintf(cmd.OutOrStdout(), "  %-13s %.4f %s\n", name, v, strings.Repeat("#", int(v*20+0.5)))
	}
}

// #endregion versions

// #region decisions
func decisionsCmd() *cobra.Command {
	var sessionID string
	var last int
	cmd := &cobra.Command{
		Use:   "decisions",
		Short: "List logged decisions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := logging.RecentDecisions(store.DB(), sessionID, last)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd, entries)
			}
			w := table(cmd, "SESSION", "APPROACH", "CONFIDENCE", "TONE", "FEEDBACK", "TASK", "WHEN")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\t%s\t%s\n", e.SessionID, e.Approach, e.Confidence, e.Tone,
					dash(e.Feedback), truncate(e.Task, 40), humanize.RelTime(e.CreatedAt, now(), "ago", "from now"))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "only decisions of this session")
	cmd.Flags().IntVarP(&last, "last", "n", 20, "show N most recent decisions")
	return cmd
}

// #endregion decisions

// #region journal
func journalCmd() *cobra.Command {
	var sessionID string
	var last int
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List learned experiences, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			j, err := journal.NewStore(store.DB())
			if err != nil {
				return err
			}
			entries, err := j.Recent(sessionID, last)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd, entries)
			}
			w := table(cmd, "SESSION", "OK", "TASK", "INSIGHT", "WHEN")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%v\t%s\t%s\t%s\n", e.SessionID, e.Success, truncate(e.Task, 30),
					truncate(e.Insight, 60), humanize.RelTime(e.CreatedAt, now(), "ago", "from now"))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "only entries of this session")
	cmd.Flags().IntVarP(&last, "last", "n", 20, "show N most recent entries")
	return cmd
}

// #endregion journal

// #region rollback
func rollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <session> <version>",
		Short: "Point a session back at an earlier checkpoint",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Rollback(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session %s now at %s\n", args[0], args[1])
			return nil
		},
	}
}

// #endregion rollback

// #region output
func table(cmd *cobra.Command, headers ...string) *tabwriter.Writer {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(headers, "\t"))
	return w
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion output
