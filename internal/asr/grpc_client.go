package asr

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
)

// asrJSONCodec is a gRPC codec that marshals with encoding/json instead of
// protobuf, so a remote ASR service can be called without generating
// .pb.go stubs.
type asrJSONCodec struct{}

func (asrJSONCodec) Name() string                     { return "asr-json" }
func (asrJSONCodec) Marshal(v any) ([]byte, error)    { return json.Marshal(v) }
func (asrJSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func init() {
	encoding.RegisterCodec(asrJSONCodec{})
}

// recognizeRequest/recognizeResponse are the wire shapes for the remote
// ASR call, matching Recognizer.Recognize's own parameters one-to-one.
type recognizeRequest struct {
	Samples      []float32 `json:"samples"`
	Lang         string    `json:"lang"`
	InitialPrompt string   `json:"initial_prompt"`
}

type recognizeResponse struct {
	Segments []Segment `json:"segments"`
}

// GRPCRecognizer calls a remote ASR service over a plain gRPC unary call
// using the JSON codec above, so the gateway never needs to own the ASR
// model process itself (an alternative to the in-process SherpaRecognizer,
// selected by internal/config's --asr-backend=grpc).
type GRPCRecognizer struct {
	conn *grpc.ClientConn
}

// NewGRPCRecognizer dials a remote ASR gRPC endpoint, addr being a plain
// host:port (TLS termination is assumed to happen at a sidecar/proxy).
func NewGRPCRecognizer(addr string) (*GRPCRecognizer, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(asrJSONCodec{})),
	)
	if err != nil {
		return nil, fmt.Errorf("asr: dial %s: %w", addr, err)
	}
	return &GRPCRecognizer{conn: conn}, nil
}

func (r *GRPCRecognizer) Recognize(ctx context.Context, samples []float32, lang, initialPrompt string) ([]Segment, error) {
	req := &recognizeRequest{Samples: samples, Lang: lang, InitialPrompt: initialPrompt}
	resp := &recognizeResponse{}
	if err := r.conn.Invoke(ctx, "/meetchi.ASR/Recognize", req, resp); err != nil {
		return nil, fmt.Errorf("asr: grpc recognize: %w", err)
	}
	return resp.Segments, nil
}

// Close releases the underlying connection.
func (r *GRPCRecognizer) Close() error {
	return r.conn.Close()
}
