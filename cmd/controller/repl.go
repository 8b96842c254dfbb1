package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/affective-core/internal/cognitive"
	"github.com/danielpatrickdp/affective-core/internal/journal"
	"github.com/danielpatrickdp/affective-core/internal/logging"
	"github.com/danielpatrickdp/affective-core/internal/session"
	"github.com/danielpatrickdp/affective-core/internal/state"
)

// #region commands
type commandKind int

const (
	cmdTask commandKind = iota
	cmdFeedback
	cmdUser
	cmdLearn
	cmdConcept
	cmdSummary
	cmdCleanup
	cmdSave
	cmdHelp
	cmdQuit
)

type command struct {
	kind    commandKind
	text    string
	detail  string
	success bool
}

const helpText = `Type a task, or one of:
  /feedback <text>        feedback attached to the next task
  /user <id>              user id sent as context
  /learn ok|fail <task>   report the outcome of a task
  /concept <name> = <def> teach a concept to semantic memory
  /summary                print the cognitive summary
  /cleanup                expire old long-term memories
  /save                   checkpoint the session now
  /help                   this text
  quit                    leave`

func parseLine(line string) (command, error) {
	line = strings.TrimSpace(line)
	if line == "quit" || line == "exit" {
		return command{kind: cmdQuit}, nil
	}
	if !strings.HasPrefix(line, "/") {
		return command{kind: cmdTask, text: line}, nil
	}
	name, rest, _ := strings.Cut(line[1:], " ")
	rest = strings.TrimSpace(rest)
	switch name {
	case "feedback":
		return command{kind: cmdFeedback, text: rest}, nil
	case "user":
		return command{kind: cmdUser, text: rest}, nil
	case "learn":
		verdict, task, _ := strings.Cut(rest, " ")
		task = strings.TrimSpace(task)
		if task == "" {
			return command{}, fmt.Errorf("usage: /learn ok|fail <task>")
		}
		switch verdict {
		case "ok", "success":
			return command{kind: cmdLearn, text: task, success: true}, nil
		case "fail", "failure":
			return command{kind: cmdLearn, text: task}, nil
		}
		return command{}, fmt.Errorf("unknown verdict %q, want ok or fail", verdict)
	case "concept":
		name, def, found := strings.Cut(rest, "=")
		name, def = strings.TrimSpace(name), strings.TrimSpace(def)
		if !found || name == "" || def == "" {
			return command{}, fmt.Errorf("usage: /concept <name> = <definition>")
		}
		return command{kind: cmdConcept, text: name, detail: def}, nil
	case "summary":
		return command{kind: cmdSummary}, nil
	case "cleanup":
		return command{kind: cmdCleanup}, nil
	case "save":
		return command{kind: cmdSave}, nil
	case "help":
		return command{kind: cmdHelp}, nil
	}
	return command{}, fmt.Errorf("unknown command /%s", name)
}

// #endregion commands

// #region repl
type repl struct {
	sessionID string
	sessions  *session.Manager
	store     *state.Store   // nil without persistence
	journal   *journal.Store // nil without persistence
	logger    *zap.Logger
	out       io.Writer

	userID   string
	feedback string
	turn     int
}

func (r *repl) run(in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, err := parseLine(line)
		if err != nil {
			fmt.Fprintln(r.out, err)
			continue
		}
		if cmd.kind == cmdQuit {
			break
		}
		if err := r.exec(cmd); err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
	}
	return scanner.Err()
}

func (r *repl) exec(cmd command) error {
	switch cmd.kind {
	case cmdFeedback:
		r.feedback = cmd.text
		fmt.Fprintf(r.out, "feedback queued: %q\n", r.feedback)
	case cmdUser:
		r.userID = cmd.text
		fmt.Fprintf(r.out, "user set to %q\n", r.userID)
	case cmdHelp:
		fmt.Fprintln(r.out, helpText)
	case cmdTask:
		return r.task(cmd.text)
	case cmdLearn:
		return r.learn(cmd.text, cmd.success)
	case cmdConcept:
		return r.sessions.With(r.sessionID, func(c *cognitive.Core) error {
			if _, ok := c.LearnConcept(cmd.text, cmd.detail, nil); !ok {
				return fmt.Errorf("semantic memory is disabled")
			}
			fmt.Fprintf(r.out, "learned concept %q\n", cmd.text)
			return nil
		})
	case cmdSummary:
		return r.sessions.With(r.sessionID, func(c *cognitive.Core) error {
			printSummary(r.out, c.GetCognitiveSummary())
			return nil
		})
	case cmdCleanup:
		return r.sessions.With(r.sessionID, func(c *cognitive.Core) error {
			fmt.Fprintf(r.out, "removed %d expired memories\n", c.Cleanup())
			return nil
		})
	case cmdSave:
		if err := r.sessions.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "saved %s\n", dash(r.sessions.Version(r.sessionID)))
	}
	return nil
}

func (r *repl) task(text string) error {
	r.turn++
	var taskCtx map[string]any
	if r.userID != "" {
		taskCtx = map[string]any{cognitive.KeyUserID: r.userID}
	}
	feedback := r.feedback
	r.feedback = ""

	var res cognitive.TaskResult
	if err := r.sessions.With(r.sessionID, func(c *cognitive.Core) error {
		res = c.ProcessTask(text, taskCtx, feedback)
		return nil
	}); err != nil {
		return err
	}

	fmt.Fprintf(r.out, "[turn-%d] approach=%s confidence=%.2f tone=%s memories=%d\n",
		r.turn, res.Decision.Approach, res.Confidence, res.EmotionalTone, len(res.RelevantMemories.Episodic))
	fmt.Fprintf(r.out, "  params: temperature=%.3f max_tokens=%v timeout=%v\n",
		res.Decision.Parameters["temperature"], res.Decision.Parameters["max_tokens"], res.Decision.Parameters["timeout"])
	for _, s := range res.Reflection.Suggestions {
		fmt.Fprintf(r.out, "  suggestion: %s\n", s)
	}
	for _, s := range res.RelevantMemories.Semantic {
		fmt.Fprintf(r.out, "  concept: %s = %s\n", s.Concept, s.Definition)
	}

	if r.store != nil {
		entry, err := logging.NewDecisionEntry(r.sessionID, r.sessions.Version(r.sessionID), text, feedback, res)
		if err == nil {
			err = logging.LogDecision(r.store.DB(), entry)
		}
		if err != nil {
			r.logger.Warn("decision log failed", zap.Error(err))
		}
	}
	return nil
}

func (r *repl) learn(task string, success bool) error {
	var res cognitive.LearnResult
	if err := r.sessions.With(r.sessionID, func(c *cognitive.Core) error {
		res = c.LearnFromExperience(task, success, "")
		return nil
	}); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "insight: %s\n", res.Insight)
	if r.journal != nil {
		if err := r.journal.Append(r.sessionID, task, success, res); err != nil {
			r.logger.Warn("journal append failed", zap.Error(err))
		}
	}
	return nil
}

func printSummary(w io.Writer, sum cognitive.Summary) {
	fmt.Fprintf(w, "tone=%s stable=%v decisions=%d\n", sum.EmotionalTone, sum.IsStable, sum.DecisionCount)
	for _, name := range sortedKeys(sum.EmotionalState) {
		fmt.Fprintf(w, "  %-13s %.3f\n", name, sum.EmotionalState[name])
	}
	m := sum.Memory
	fmt.Fprintf(w, "memory: episodic=%d semantic=%d affective=%d users=%d\n",
		m.Episodic.Total(), m.Semantic.Total(), m.Affective.Total(), m.Users)
	fmt.Fprintf(w, "meta: reflections=%d insights=%d\n", sum.MetaReasoning.TotalReflections, sum.MetaReasoning.InsightsCount)
	for _, c := range sum.RecentConflicts {
		fmt.Fprintf(w, "  conflict: %s\n", c.RuleName)
	}
}

// #endregion repl
