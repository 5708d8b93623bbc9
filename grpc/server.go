package digitchaingrpc

import (
	"context"
	"net"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/blockberries/digitchain/chain"
	"github.com/blockberries/digitchain/types"
)

// Compile-time interface check.
var _ DigitChainServiceServer = (*GRPCServer)(nil)

// SessionFactory creates a Disconnected session for a deployment name.
// An empty name selects the default deployment.
type SessionFactory func(ctx context.Context, deployment string) (*chain.Session, error)

// GRPCServer serves chain sessions to remote hosts. Each OpenSession
// creates an independent session addressed by a random id.
type GRPCServer struct {
	factory SessionFactory
	log     log.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*chain.Session
}

// NewGRPCServer creates a server creating sessions with factory.
func NewGRPCServer(factory SessionFactory) *GRPCServer {
	return &GRPCServer{
		factory:  factory,
		log:      log.Root(),
		sessions: make(map[uuid.UUID]*chain.Session),
	}
}

// WithLogger replaces the server logger.
func (s *GRPCServer) WithLogger(l log.Logger) *GRPCServer {
	s.log = l
	return s
}

// Register adds the service to a gRPC server.
func (s *GRPCServer) Register(gs *grpc.Server) {
	RegisterDigitChainServiceServer(gs, s)
}

// Serve starts a gRPC server on the given listener.
func (s *GRPCServer) Serve(lis net.Listener, opts ...grpc.ServerOption) error {
	gs := grpc.NewServer(opts...)
	s.Register(gs)
	return gs.Serve(lis)
}

// Sessions returns the number of open sessions.
func (s *GRPCServer) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close closes every open session and its backends.
func (s *GRPCServer) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[uuid.UUID]*chain.Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
}

func (s *GRPCServer) session(id string) (*chain.Session, error) {
	_, sess, err := s.lookup(id)
	return sess, err
}

func (s *GRPCServer) lookup(id string) (uuid.UUID, *chain.Session, error) {
	key, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, nil, status.Errorf(codes.InvalidArgument, "invalid session id %q", id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if !ok {
		return uuid.Nil, nil, status.Errorf(codes.NotFound, "unknown session %s", id)
	}
	return key, sess, nil
}

// --- Session management ---

func (s *GRPCServer) OpenSession(ctx context.Context, req *OpenSessionRequest) (*OpenSessionResponse, error) {
	sess, err := s.factory(ctx, req.Deployment)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "open session: %v", err)
	}
	id := uuid.New()

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	st := sess.Status()
	s.log.Info("Session opened", "id", id, "deployment", st.Deployment)
	return &OpenSessionResponse{SessionID: id.String(), Status: st}, nil
}

func (s *GRPCServer) CloseSession(_ context.Context, req *SessionRequest) (*Empty, error) {
	key, sess, err := s.lookup(req.SessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	delete(s.sessions, key)
	s.mu.Unlock()
	sess.Close()

	s.log.Info("Session closed", "id", key)
	return &Empty{}, nil
}

// --- Connection RPCs ---

func (s *GRPCServer) Connect(ctx context.Context, req *SessionRequest) (*types.SessionStatus, error) {
	sess, err := s.session(req.SessionID)
	if err != nil {
		return nil, err
	}
	st, err := sess.Connect(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &st, nil
}

func (s *GRPCServer) Disconnect(_ context.Context, req *SessionRequest) (*Empty, error) {
	sess, err := s.session(req.SessionID)
	if err != nil {
		return nil, err
	}
	sess.Disconnect()
	return &Empty{}, nil
}

func (s *GRPCServer) Status(_ context.Context, req *SessionRequest) (*types.SessionStatus, error) {
	sess, err := s.session(req.SessionID)
	if err != nil {
		return nil, err
	}
	st := sess.Status()
	return &st, nil
}

func (s *GRPCServer) Predict(ctx context.Context, req *PredictRequest) (*types.Prediction, error) {
	sess, err := s.session(req.SessionID)
	if err != nil {
		return nil, err
	}
	p, err := sess.Predict(ctx, req.Pixels, req.PredictorID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &p, nil
}

func (s *GRPCServer) Mint(ctx context.Context, req *MintRequest) (*types.MintReceipt, error) {
	sess, err := s.session(req.SessionID)
	if err != nil {
		return nil, err
	}
	r, err := sess.MintDocument(ctx, req.Document)
	if err != nil {
		return nil, toStatus(err)
	}
	return &r, nil
}

func (s *GRPCServer) Clear(_ context.Context, req *SessionRequest) (*Empty, error) {
	sess, err := s.session(req.SessionID)
	if err != nil {
		return nil, err
	}
	sess.Clear()
	return &Empty{}, nil
}
