package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/affective-core/internal/cognitive"
	"github.com/danielpatrickdp/affective-core/internal/journal"
	"github.com/danielpatrickdp/affective-core/internal/logging"
	"github.com/danielpatrickdp/affective-core/internal/session"
	"github.com/danielpatrickdp/affective-core/internal/state"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line    string
		kind    commandKind
		text    string
		detail  string
		success bool
		wantErr bool
	}{
		{line: "write a haiku", kind: cmdTask, text: "write a haiku"},
		{line: "quit", kind: cmdQuit},
		{line: "exit", kind: cmdQuit},
		{line: "/feedback great work", kind: cmdFeedback, text: "great work"},
		{line: "/user ana", kind: cmdUser, text: "ana"},
		{line: "/learn ok deploy the app", kind: cmdLearn, text: "deploy the app", success: true},
		{line: "/learn fail deploy", kind: cmdLearn, text: "deploy"},
		{line: "/learn maybe deploy", wantErr: true},
		{line: "/learn ok", wantErr: true},
		{line: "/concept haiku = a three line poem", kind: cmdConcept, text: "haiku", detail: "a three line poem"},
		{line: "/concept haiku", wantErr: true},
		{line: "/concept = a poem", wantErr: true},
		{line: "/summary", kind: cmdSummary},
		{line: "/cleanup", kind: cmdCleanup},
		{line: "/save", kind: cmdSave},
		{line: "/dance", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parseLine(tt.line)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.kind != tt.kind || got.text != tt.text || got.detail != tt.detail || got.success != tt.success {
				t.Errorf("got %+v", got)
			}
		})
	}
}

func TestREPLSession(t *testing.T) {
	store, err := state.NewStore(filepath.Join(t.TempDir(), "repl.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()
	j, err := journal.NewStore(store.DB())
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	clock := func() time.Time { return time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC) }
	sessions, err := session.NewManager(session.Options{Core: cognitive.DefaultConfig(), Clock: clock, Persister: store})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	var out bytes.Buffer
	r := &repl{sessionID: "local", sessions: sessions, store: store, journal: j, logger: zap.NewNop(), out: &out}
	input := strings.Join([]string{
		"/user ana",
		"/feedback thanks, great job",
		"/concept haiku = write a haiku in three lines",
		"write a haiku",
		"/learn ok write a haiku",
		"/summary",
		"/save",
		"/bogus",
		"quit",
		"never reached",
	}, "\n")
	if err := r.run(strings.NewReader(input)); err != nil {
		t.Fatalf("run: %v", err)
	}

	text := out.String()
	for _, want := range []string{"[turn-1] approach=", "concept: haiku = write a haiku in three lines", "insight:", "tone=", "saved ", "unknown command /bogus"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if r.turn != 1 {
		t.Errorf("expected one processed turn, got %d", r.turn)
	}

	decisions, err := logging.RecentDecisions(store.DB(), "local", 10)
	if err != nil || len(decisions) != 1 || decisions[0].Feedback != "thanks, great job" {
		t.Errorf("unexpected decisions %+v err=%v", decisions, err)
	}
	if e, _ := j.Latest("local"); e == nil || !e.Success {
		t.Errorf("expected a journal entry, got %+v", e)
	}
	if _, found, _ := store.LoadCore("local"); !found {
		t.Error("expected /save to checkpoint the session")
	}
}
