package rpc

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/affective-core/internal/cognitive"
	"github.com/danielpatrickdp/affective-core/internal/journal"
	"github.com/danielpatrickdp/affective-core/internal/logging"
	"github.com/danielpatrickdp/affective-core/internal/memory"
	"github.com/danielpatrickdp/affective-core/internal/session"
)

// #region server-struct
// ServerOptions wires the collaborators of a Server. Decisions and Journal
// are optional.
type ServerOptions struct {
	Sessions  *session.Manager
	Decisions *sql.DB // database holding decision_log
	Journal   *journal.Store
	Logger    *zap.Logger
}

// Server implements CognitiveServiceServer on top of a session manager.
type Server struct {
	sessions  *session.Manager
	decisions *sql.DB
	journal   *journal.Store
	logger    *zap.Logger
}

// NewServer builds a Server.
func NewServer(opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		sessions:  opts.Sessions,
		decisions: opts.Decisions,
		journal:   opts.Journal,
		logger:    logger.Named("rpc"),
	}
}

// NewGRPCServer returns a grpc.Server with the service registered and call
// logging installed.
func NewGRPCServer(s *Server, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.UnaryInterceptor(LoggingInterceptor(s.logger))}, opts...)
	gs := grpc.NewServer(opts...)
	RegisterCognitiveServiceServer(gs, s)
	return gs
}

// #endregion server-struct

// #region handlers
// ProcessTask runs the pipeline for {sessionId, task, context?, feedback?}.
func (s *Server) ProcessTask(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := in.AsMap()
	id, err := requireString(req, FieldSessionID)
	if err != nil {
		return nil, err
	}
	task, err := requireString(req, FieldTask)
	if err != nil {
		return nil, err
	}
	taskCtx, _ := req[FieldContext].(map[string]any)
	feedback, _ := req[FieldFeedback].(string)

	var res cognitive.TaskResult
	err = s.sessions.With(id, func(c *cognitive.Core) error {
		res = c.ProcessTask(task, taskCtx, feedback)
		return nil
	})
	if err != nil {
		return nil, sessionError(err)
	}
	s.logDecision(id, task, feedback, res)
	return toStruct(res)
}

// LearnFromExperience records {sessionId, task, success, outcome?}.
func (s *Server) LearnFromExperience(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := in.AsMap()
	id, err := requireString(req, FieldSessionID)
	if err != nil {
		return nil, err
	}
	task, err := requireString(req, FieldTask)
	if err != nil {
		return nil, err
	}
	success, ok := req[FieldSuccess].(bool)
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "%s must be a bool", FieldSuccess)
	}
	outcome, _ := req[FieldOutcome].(string)

	var res cognitive.LearnResult
	err = s.sessions.With(id, func(c *cognitive.Core) error {
		res = c.LearnFromExperience(task, success, outcome)
		return nil
	})
	if err != nil {
		return nil, sessionError(err)
	}
	if s.journal != nil {
		if err := s.journal.Append(id, task, success, res); err != nil {
			s.logger.Error("journal append failed", zap.String("session", id), zap.Error(err))
		}
	}
	return toStruct(res)
}

// GetCognitiveSummary returns the summary of {sessionId}.
func (s *Server) GetCognitiveSummary(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireString(in.AsMap(), FieldSessionID)
	if err != nil {
		return nil, err
	}
	var sum cognitive.Summary
	err = s.sessions.With(id, func(c *cognitive.Core) error {
		sum = c.GetCognitiveSummary()
		return nil
	})
	if err != nil {
		return nil, sessionError(err)
	}
	return toStruct(sum)
}

// Cleanup drops expired long-term memories of {sessionId} and returns
// {removed}.
func (s *Server) Cleanup(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireString(in.AsMap(), FieldSessionID)
	if err != nil {
		return nil, err
	}
	var removed int
	err = s.sessions.With(id, func(c *cognitive.Core) error {
		removed = c.Cleanup()
		return nil
	})
	if err != nil {
		return nil, sessionError(err)
	}
	return structpb.NewStruct(map[string]any{FieldRemoved: removed})
}

// LearnConcept stores {sessionId, concept, definition, associations?} in
// semantic memory and returns the stored record.
func (s *Server) LearnConcept(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := in.AsMap()
	id, err := requireString(req, FieldSessionID)
	if err != nil {
		return nil, err
	}
	concept, err := requireString(req, FieldConcept)
	if err != nil {
		return nil, err
	}
	definition, err := requireString(req, FieldDefinition)
	if err != nil {
		return nil, err
	}
	var assoc []string
	raw, _ := req[FieldAssociations].([]any)
	for _, v := range raw {
		if a, ok := v.(string); ok && a != "" {
			assoc = append(assoc, a)
		}
	}

	var rec memory.Semantic
	var stored bool
	err = s.sessions.With(id, func(c *cognitive.Core) error {
		rec, stored = c.LearnConcept(concept, definition, assoc)
		return nil
	})
	if err != nil {
		return nil, sessionError(err)
	}
	if !stored {
		return nil, status.Error(codes.FailedPrecondition, "semantic memory is disabled")
	}
	return toStruct(rec)
}

// #endregion handlers

// #region helpers
func (s *Server) logDecision(sessionID, task, feedback string, res cognitive.TaskResult) {
	if s.decisions == nil {
		return
	}
	entry, err := logging.NewDecisionEntry(sessionID, s.sessions.Version(sessionID), task, feedback, res)
	if err == nil {
		err = logging.LogDecision(s.decisions, entry)
	}
	if err != nil {
		s.logger.Error("decision log failed", zap.String("session", sessionID), zap.Error(err))
	}
}

func requireString(req map[string]any, key string) (string, error) {
	v, _ := req[key].(string)
	if v == "" {
		return "", status.Errorf(codes.InvalidArgument, "%s is required", key)
	}
	return v, nil
}

func sessionError(err error) error {
	if errors.Is(err, session.ErrClosed) {
		return status.Error(codes.Unavailable, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// toStruct converts a result through its JSON form so the wire keys match
// the json tags.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode result: %v", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode result: %v", err)
	}
	return out, nil
}

func fromStruct(in *structpb.Struct, v any) error {
	b, err := protojson.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal struct: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode struct: %w", err)
	}
	return nil
}

// #endregion helpers

// #region interceptor
// LoggingInterceptor logs every unary call with its duration and status code.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Duration("elapsed", time.Since(start)),
			zap.Stringer("code", status.Code(err)),
		}
		if err != nil {
			logger.Warn("call failed", append(fields, zap.Error(err))...)
		} else {
			logger.Debug("call", fields...)
		}
		return resp, err
	}
}

// #endregion interceptor
