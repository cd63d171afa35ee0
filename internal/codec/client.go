package codec

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielpatrickdp/cotherapist/internal/capability"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// ErrMalformedResponse is returned when a reply lacks its expected field.
var ErrMalformedResponse = errors.New("malformed inference response")

// #region client-struct
// Client wraps the gRPC connection to the inference service. It provides
// generation, embedding and toxicity scoring.
type Client struct {
	conn   *grpc.ClientConn
	client InferenceServiceClient
}

var (
	_ capability.Generator      = (*Client)(nil)
	_ capability.Embedder       = (*Client)(nil)
	_ capability.ToxicityScorer = (*Client)(nil)
)

// #endregion client-struct

// #region constructor
// NewClient connects to the inference service at addr.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{
		conn:   conn,
		client: NewInferenceServiceClient(conn),
	}, nil
}

// NewClientWithService creates a Client with an injected service
// implementation. Used for testing without a real connection.
func NewClientWithService(svc InferenceServiceClient) *Client {
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

// #region generate
// Generate sends a prompt and its retrieved context to the service.
func (c *Client) Generate(ctx context.Context, req capability.GenerateRequest) (string, error) {
	passages := make([]any, len(req.Context))
	for i, p := range req.Context {
		passages[i] = p
	}
	in, err := structpb.NewStruct(map[string]any{
		"prompt":     req.Prompt,
		"context":    passages,
		"max_tokens": float64(req.MaxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("encode generate request: %w", err)
	}

	resp, err := c.client.Generate(ctx, in)
	if err != nil {
		return "", fmt.Errorf("generate rpc: %w", err)
	}
	text, ok := resp.GetFields()["text"]
	if !ok {
		return "", fmt.Errorf("generate rpc: %w: missing text", ErrMalformedResponse)
	}
	return text.GetStringValue(), nil
}

// #endregion generate

// #region embed
// Embed sends text to the service for embedding.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.Embed(ctx, &structpb.Struct{Fields: map[string]*structpb.Value{
		"text": structpb.NewStringValue(text),
	}})
	if err != nil {
		return nil, fmt.Errorf("embed rpc: %w", err)
	}
	list := resp.GetFields()["embedding"].GetListValue()
	if list == nil {
		return nil, fmt.Errorf("embed rpc: %w: missing embedding", ErrMalformedResponse)
	}
	vec := make([]float32, len(list.GetValues()))
	for i, v := range list.GetValues() {
		vec[i] = float32(v.GetNumberValue())
	}
	return vec, nil
}

// #endregion embed

// #region score
// Score asks the service for a toxicity rating in [0,1].
func (c *Client) Score(ctx context.Context, text string) (float64, error) {
	resp, err := c.client.ScoreToxicity(ctx, &structpb.Struct{Fields: map[string]*structpb.Value{
		"text": structpb.NewStringValue(text),
	}})
	if err != nil {
		return 0, fmt.Errorf("toxicity rpc: %w", err)
	}
	v, ok := resp.GetFields()["score"]
	if !ok {
		return 0, fmt.Errorf("toxicity rpc: %w: missing score", ErrMalformedResponse)
	}
	return v.GetNumberValue(), nil
}

// #endregion score
