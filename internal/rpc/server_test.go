package rpc

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/affective-core/internal/cognitive"
	"github.com/danielpatrickdp/affective-core/internal/emotion"
	"github.com/danielpatrickdp/affective-core/internal/journal"
	"github.com/danielpatrickdp/affective-core/internal/logging"
	"github.com/danielpatrickdp/affective-core/internal/session"
	"github.com/danielpatrickdp/affective-core/internal/state"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// #region harness
type harness struct {
	client   *Client
	sessions *session.Manager
	store    *state.Store
	journal  *journal.Store
}

func startServer(t *testing.T) *harness {
	t.Helper()
	store, err := state.NewStore(filepath.Join(t.TempDir(), "rpc.db"))
	require.NoError(t, err)
	j, err := journal.NewStore(store.DB())
	require.NoError(t, err)

	clock := func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) }
	sessions, err := session.NewManager(session.Options{
		MaxSessions: 8,
		Core:        cognitive.DefaultConfig(),
		Clock:       clock,
		Persister:   store,
	})
	require.NoError(t, err)

	srv := NewServer(ServerOptions{Sessions: sessions, Decisions: store.DB(), Journal: j})
	gs := NewGRPCServer(srv)
	lis := bufconn.Listen(1 << 20)
	go gs.Serve(lis)

	client, err := NewClient("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
		gs.Stop()
		sessions.Close()
		store.Close()
	})
	return &harness{client: client, sessions: sessions, store: store, journal: j}
}

func callCtx(t *testing.T) context.Context {
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

// #endregion harness

// #region round-trip-tests
func TestProcessTaskRoundTrip(t *testing.T) {
	h := startServer(t)

	res, err := h.client.ProcessTask(callCtx(t), "s1", "write a poem", map[string]any{"userId": "ana"}, "great job")
	require.NoError(t, err)
	require.Equal(t, "process", res.Decision.Action)
	require.Equal(t, float64(2000), res.Decision.Parameters["max_tokens"])
	require.Greater(t, res.Confidence, 0.0)
	require.NotEmpty(t, res.EmotionalTone)

	again, err := h.client.ProcessTask(callCtx(t), "s1", "write a poem", nil, "")
	require.NoError(t, err)
	require.NotEmpty(t, again.RelevantMemories.Episodic, "second call should recall the first task")

	entries, err := logging.RecentDecisions(h.store.DB(), "s1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "write a poem", entries[0].Task)
	require.Equal(t, "great job", entries[1].Feedback)
}

func TestLearnAndSummary(t *testing.T) {
	h := startServer(t)

	learned, err := h.client.LearnFromExperience(callCtx(t), "s2", "deploy", false, "rollback needed")
	require.NoError(t, err)
	require.NotEmpty(t, learned.Insight)
	require.False(t, learned.Memory.Success)

	sum, err := h.client.GetCognitiveSummary(callCtx(t), "s2")
	require.NoError(t, err)
	require.Equal(t, 1, sum.Memory.Episodic.Total())
	require.Greater(t, sum.EmotionalState[emotion.Frustration.String()], 0.0)

	e, err := h.journal.Latest("s2")
	require.NoError(t, err)
	require.NotNil(t, e)
	require.Equal(t, "deploy", e.Task)
	require.Equal(t, learned.Insight, e.Insight)
}

func TestCleanupRoundTrip(t *testing.T) {
	h := startServer(t)
	removed, err := h.client.Cleanup(callCtx(t), "s3")
	require.NoError(t, err)
	require.Zero(t, removed)
}

func TestSessionsPersistThroughStore(t *testing.T) {
	h := startServer(t)
	_, err := h.client.LearnFromExperience(callCtx(t), "s4", "ship it", true, "")
	require.NoError(t, err)
	require.NoError(t, h.sessions.Flush())

	cp, found, err := h.store.LoadCore("s4")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, cp.Memory.Episodic, 1)
}

func TestLearnConceptRecalledByTask(t *testing.T) {
	h := startServer(t)

	rec, err := h.client.LearnConcept(callCtx(t), "s5", "deploy", "ship the build to production", []string{"release"})
	require.NoError(t, err)
	require.Equal(t, "deploy", rec.Concept)
	require.Equal(t, []string{"release"}, rec.Associations)

	res, err := h.client.ProcessTask(callCtx(t), "s5", "deploy", nil, "")
	require.NoError(t, err)
	require.Len(t, res.RelevantMemories.Semantic, 1)
	require.Equal(t, "ship the build to production", res.RelevantMemories.Semantic[0].Definition)
}

// #endregion round-trip-tests

// #region error-tests
func TestInvalidArguments(t *testing.T) {
	h := startServer(t)

	_, err := h.client.ProcessTask(callCtx(t), "", "task", nil, "")
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = h.client.ProcessTask(callCtx(t), "s", "", nil, "")
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	raw := NewCognitiveServiceClient(h.client.conn)
	in, _ := structpb.NewStruct(map[string]any{FieldSessionID: "s", FieldTask: "t", FieldSuccess: "yes"})
	_, err = raw.LearnFromExperience(callCtx(t), in)
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestClosedManagerIsUnavailable(t *testing.T) {
	h := startServer(t)
	require.NoError(t, h.sessions.Close())
	_, err := h.client.GetCognitiveSummary(callCtx(t), "s")
	require.Equal(t, codes.Unavailable, status.Code(err))
}

func TestServerWithoutOptionalCollaborators(t *testing.T) {
	sessions, err := session.NewManager(session.Options{Core: cognitive.DefaultConfig()})
	require.NoError(t, err)
	srv := NewServer(ServerOptions{Sessions: sessions})

	in, _ := structpb.NewStruct(map[string]any{FieldSessionID: "s", FieldTask: "t", FieldSuccess: true})
	out, err := srv.LearnFromExperience(context.Background(), in)
	require.NoError(t, err)
	require.Contains(t, out.AsMap(), "insight")
}

func TestLearnConceptArguments(t *testing.T) {
	h := startServer(t)
	_, err := h.client.LearnConcept(callCtx(t), "s", "deploy", "", nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	cfg := cognitive.DefaultConfig()
	cfg.Features.Memory = false
	sessions, err := session.NewManager(session.Options{Core: cfg})
	require.NoError(t, err)
	srv := NewServer(ServerOptions{Sessions: sessions})
	in, _ := structpb.NewStruct(map[string]any{FieldSessionID: "s", FieldConcept: "deploy", FieldDefinition: "ship"})
	_, err = srv.LearnConcept(context.Background(), in)
	require.Equal(t, codes.FailedPrecondition, status.Code(err))
}

// #endregion error-tests

// #region struct-tests
func TestToStructUsesJSONKeys(t *testing.T) {
	s, err := toStruct(cognitive.TaskResult{EmotionalTone: emotion.ToneNeutral})
	require.NoError(t, err)
	m := s.AsMap()
	for _, k := range []string{"decision", "confidence", "reflection", "modulationFactors", "relevantMemories", "emotionalTone"} {
		require.Contains(t, m, k)
	}
}

// #endregion struct-tests
