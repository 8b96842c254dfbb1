package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/affective-core/internal/cognitive"
	"github.com/danielpatrickdp/affective-core/internal/memory"
)

// #region client-struct
// Client is a typed wrapper over the CognitiveService connection.
type Client struct {
	conn   *grpc.ClientConn
	client CognitiveServiceClient
}

// #endregion client-struct

// #region constructor
// NewClient connects to a CognitiveService server.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{
		conn:   conn,
		client: NewCognitiveServiceClient(conn),
	}, nil
}

// NewClientWithService creates a Client with an injected service implementation.
// Used for testing without a real gRPC connection.
func NewClientWithService(svc CognitiveServiceClient) *Client {
	return &Client{client: svc}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region calls
// ProcessTask runs a task on a remote session. Numbers in the returned
// parameters decode as float64.
func (c *Client) ProcessTask(ctx context.Context, sessionID, task string, taskCtx map[string]any, feedback string) (cognitive.TaskResult, error) {
	fields := map[string]any{FieldSessionID: sessionID, FieldTask: task}
	if taskCtx != nil {
		fields[FieldContext] = taskCtx
	}
	if feedback != "" {
		fields[FieldFeedback] = feedback
	}
	var res cognitive.TaskResult
	if err := c.call(ctx, "process task", c.client.ProcessTask, fields, &res); err != nil {
		return cognitive.TaskResult{}, err
	}
	return res, nil
}

// LearnFromExperience reports the outcome of a task on a remote session.
func (c *Client) LearnFromExperience(ctx context.Context, sessionID, task string, success bool, outcome string) (cognitive.LearnResult, error) {
	fields := map[string]any{FieldSessionID: sessionID, FieldTask: task, FieldSuccess: success, FieldOutcome: outcome}
	var res cognitive.LearnResult
	if err := c.call(ctx, "learn", c.client.LearnFromExperience, fields, &res); err != nil {
		return cognitive.LearnResult{}, err
	}
	return res, nil
}

// GetCognitiveSummary fetches the summary of a remote session.
func (c *Client) GetCognitiveSummary(ctx context.Context, sessionID string) (cognitive.Summary, error) {
	var sum cognitive.Summary
	if err := c.call(ctx, "summary", c.client.GetCognitiveSummary, map[string]any{FieldSessionID: sessionID}, &sum); err != nil {
		return cognitive.Summary{}, err
	}
	return sum, nil
}

// Cleanup expires long-term memories of a remote session and returns how many
// were removed.
func (c *Client) Cleanup(ctx context.Context, sessionID string) (int, error) {
	var out struct {
		Removed int `json:"removed"`
	}
	if err := c.call(ctx, "cleanup", c.client.Cleanup, map[string]any{FieldSessionID: sessionID}, &out); err != nil {
		return 0, err
	}
	return out.Removed, nil
}

// LearnConcept teaches a concept to a remote session's semantic memory.
func (c *Client) LearnConcept(ctx context.Context, sessionID, concept, definition string, associations []string) (memory.Semantic, error) {
	fields := map[string]any{FieldSessionID: sessionID, FieldConcept: concept, FieldDefinition: definition}
	if len(associations) > 0 {
		list := make([]any, len(associations))
		for i, a := range associations {
			list[i] = a
		}
		fields[FieldAssociations] = list
	}
	var rec memory.Semantic
	if err := c.call(ctx, "learn concept", c.client.LearnConcept, fields, &rec); err != nil {
		return memory.Semantic{}, err
	}
	return rec, nil
}

type rawCall func(context.Context, *structpb.Struct, ...grpc.CallOption) (*structpb.Struct, error)

func (c *Client) call(ctx context.Context, name string, fn rawCall, fields map[string]any, out any) error {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return fmt.Errorf("%s request: %w", name, err)
	}
	resp, err := fn(ctx, in)
	if err != nil {
		return fmt.Errorf("%s rpc: %w", name, err)
	}
	if err := fromStruct(resp, out); err != nil {
		return fmt.Errorf("%s response: %w", name, err)
	}
	return nil
}

// #endregion calls
