package api

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"os"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"
)

// jsonCodec lets gRPC carry JSON payloads instead of protobuf, so the
// Message struct (protocol.go) can serve the gRPC transport without a generated
// .pb.go.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}
func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// TranscribeServer is the bidirectional stream RPC mirroring /ws/transcribe.
type TranscribeServer interface {
	Stream(Transcribe_StreamServer) error
}

type UnimplementedTranscribeServer struct{}

func (UnimplementedTranscribeServer) Stream(Transcribe_StreamServer) error {
	return status.Errorf(codes.Unimplemented, "method Stream not implemented")
}

type Transcribe_StreamServer interface {
	Send(*Message) error
	Recv() (*Message, error)
	grpc.ServerStream
}

type transcribeStreamServer struct {
	grpc.ServerStream
}

func (x *transcribeStreamServer) Send(m *Message) error {
	return x.ServerStream.SendMsg(m)
}

func (x *transcribeStreamServer) Recv() (*Message, error) {
	m := new(Message)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func _Transcribe_Stream_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(TranscribeServer).Stream(&transcribeStreamServer{stream})
}

var _Transcribe_serviceDesc = grpc.ServiceDesc{
	ServiceName: "meetchi.Transcribe",
	HandlerType: (*TranscribeServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Stream",
			Handler:       _Transcribe_Stream_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "internal/api/transcribe.proto",
}

func RegisterTranscribeServer(s *grpc.Server, srv TranscribeServer) {
	s.RegisterService(&_Transcribe_serviceDesc, srv)
}

// grpcTransport adapts a server-side gRPC bidi stream to the Transport
// interface, so the same session Coordinator loop drives it identically
// to a websocket connection. Unlike binary PCM over websocket (raw
// frames), audio bytes travel as a Message whose Content field carries
// them; see Frame in transport.go.
type grpcTransport struct {
	stream Transcribe_StreamServer
}

func newGRPCTransport(stream Transcribe_StreamServer) *grpcTransport {
	return &grpcTransport{stream: stream}
}

func (t *grpcTransport) Send(m *Message) error {
	return t.stream.Send(m)
}

func (t *grpcTransport) Recv() (Frame, error) {
	m, err := t.stream.Recv()
	if err != nil {
		return Frame{}, err
	}
	if m.Type == "audio" {
		return Frame{Binary: []byte(m.Content)}, nil
	}
	return Frame{JSON: m}, nil
}

func (t *grpcTransport) Close() error {
	return nil
}

// transcribeService implements TranscribeServer, dispatching each
// accepted stream to accept, exactly like WebSocketHandler does for the
// websocket transport.
type transcribeService struct {
	UnimplementedTranscribeServer
	accept func(Transport)
}

// NewTranscribeService builds the gRPC-side mirror of WebSocketHandler.
func NewTranscribeService(accept func(Transport)) TranscribeServer {
	return &transcribeService{accept: accept}
}

func (s *transcribeService) Stream(stream Transcribe_StreamServer) error {
	s.accept(newGRPCTransport(stream))
	return nil
}

// ServeGRPC starts a gRPC server at addr (unix:/path, or host:port for
// TCP) registering srv. Named-pipe addresses (npipe:...) are not supported
// on any platform and return an error.
func ServeGRPC(addr string, srv TranscribeServer) error {
	lis, err := listenGRPC(addr)
	if err != nil {
		return err
	}

	server := grpc.NewServer(
		grpc.Creds(insecure.NewCredentials()),
		grpc.ForceServerCodec(jsonCodec{}),
	)
	RegisterTranscribeServer(server, srv)

	log.Printf("api: gRPC listening on %s", addr)
	return server.Serve(lis)
}

func listenGRPC(addr string) (net.Listener, error) {
	switch {
	case strings.HasPrefix(addr, "unix:"):
		socketPath := strings.TrimPrefix(addr, "unix:")
		if err := removeIfExists(socketPath); err != nil {
			return nil, err
		}
		return net.Listen("unix", socketPath)
	case strings.HasPrefix(addr, "npipe:"):
		return nil, errors.New("api: named pipe listeners are not supported on this platform build")
	default:
		return net.Listen("tcp", addr)
	}
}

func removeIfExists(path string) error {
	if path == "" {
		return errors.New("api: empty socket path")
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
