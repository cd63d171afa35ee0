package codec

import (
	"context"

	"github.com/danielpatrickdp/cotherapist/internal/capability"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region server
// Server exposes local capabilities over the inference service. Any
// capability left nil answers Unimplemented.
type Server struct {
	generator capability.Generator
	embedder  capability.Embedder
	toxicity  capability.ToxicityScorer
	logger    *zap.Logger
}

var _ InferenceServiceServer = (*Server)(nil)

// NewServer creates a Server. logger may be nil.
func NewServer(g capability.Generator, e capability.Embedder, t capability.ToxicityScorer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{generator: g, embedder: e, toxicity: t, logger: logger.Named("codec")}
}

// Generate implements InferenceServiceServer.
func (s *Server) Generate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.generator == nil {
		return nil, status.Error(codes.Unimplemented, "generation not available")
	}
	fields := in.GetFields()
	req := capability.GenerateRequest{
		Prompt:    fields["prompt"].GetStringValue(),
		MaxTokens: int(fields["max_tokens"].GetNumberValue()),
	}
	for _, v := range fields["context"].GetListValue().GetValues() {
		req.Context = append(req.Context, v.GetStringValue())
	}
	text, err := s.generator.Generate(ctx, req)
	if err != nil {
		return nil, s.toStatus("generate", err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"text": structpb.NewStringValue(text),
	}}, nil
}

// Embed implements InferenceServiceServer.
func (s *Server) Embed(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.embedder == nil {
		return nil, status.Error(codes.Unimplemented, "embedding not available")
	}
	vec, err := s.embedder.Embed(ctx, in.GetFields()["text"].GetStringValue())
	if err != nil {
		return nil, s.toStatus("embed", err)
	}
	values := make([]*structpb.Value, len(vec))
	for i, f := range vec {
		values[i] = structpb.NewNumberValue(float64(f))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"embedding": structpb.NewListValue(&structpb.ListValue{Values: values}),
	}}, nil
}

// ScoreToxicity implements InferenceServiceServer.
func (s *Server) ScoreToxicity(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.toxicity == nil {
		return nil, status.Error(codes.Unimplemented, "toxicity scoring not available")
	}
	score, err := s.toxicity.Score(ctx, in.GetFields()["text"].GetStringValue())
	if err != nil {
		return nil, s.toStatus("score toxicity", err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"score": structpb.NewNumberValue(score),
	}}, nil
}

func (s *Server) toStatus(op string, err error) error {
	s.logger.Warn("capability call failed", zap.String("op", op), zap.Error(err))
	if st := status.FromContextError(err); st.Code() != codes.Unknown {
		return st.Err()
	}
	return status.Error(codes.Internal, err.Error())
}

// #endregion server
