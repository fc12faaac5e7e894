package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

type memStore struct {
	mu            sync.Mutex
	owners        map[string]Identity
	turns         map[string][]Turn
	nextID        int
	writes        int
	failCreate    error
	failAppend    func(turn Turn) error
	failList      error
	cancelledCtxs int
}

func newMemStore() *memStore {
	return &memStore{
		owners: make(map[string]Identity),
		turns:  make(map[string][]Turn),
	}
}

func (s *memStore) CreateConversation(ctx context.Context, owner Identity) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != nil {
		return "", s.failCreate
	}
	s.nextID++
	id := fmt.Sprintf("chat-%d", s.nextID)
	s.owners[id] = owner
	s.writes++
	return id, nil
}

func (s *memStore) AppendTurn(ctx context.Context, chatID string, turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		s.cancelledCtxs++
		return ctx.Err()
	}
	if s.failAppend != nil {
		if err := s.failAppend(turn); err != nil {
			return err
		}
	}
	if _, ok := s.owners[chatID]; !ok {
		return ErrConversationNotFound
	}
	s.turns[chatID] = append(s.turns[chatID], turn)
	s.writes++
	return nil
}

func (s *memStore) ListTurns(ctx context.Context, chatID string) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failList != nil {
		return nil, s.failList
	}
	out := make([]Turn, len(s.turns[chatID]))
	copy(out, s.turns[chatID])
	return out, nil
}

func (s *memStore) GetOwner(ctx context.Context, chatID string) (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, ok := s.owners[chatID]
	if !ok {
		return Anonymous, ErrConversationNotFound
	}
	return owner, nil
}

func (s *memStore) seed(owner Identity, turns ...Turn) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := fmt.Sprintf("chat-%d", s.nextID)
	s.owners[id] = owner
	s.turns[id] = append([]Turn(nil), turns...)
	return id
}

func (s *memStore) snapshot(chatID string) []Turn {
	turns, _ := s.ListTurns(context.Background(), chatID)
	return turns
}

func (s *memStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *memStore) conversationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.owners)
}

// scriptedProvider replays fragments and records every message list it gets.
type scriptedProvider struct {
	mu        sync.Mutex
	fragments []string
	failAfter error
	openErr   error
	reply     string
	calls     [][]Turn
	// onOpen runs when a stream is opened, before any fragment.
	onOpen func()
	// block makes Recv wait for ctx cancellation after the scripted fragments.
	block bool
}

func (p *scriptedProvider) StreamCompletion(ctx context.Context, turns []Turn) (FragmentStream, error) {
	p.mu.Lock()
	p.calls = append(p.calls, append([]Turn(nil), turns...))
	p.mu.Unlock()
	if p.onOpen != nil {
		p.onOpen()
	}
	if p.openErr != nil {
		return nil, p.openErr
	}
	return &scriptedStream{
		ctx:       ctx,
		fragments: append([]string(nil), p.fragments...),
		failAfter: p.failAfter,
		block:     p.block,
	}, nil
}

func (p *scriptedProvider) Complete(ctx context.Context, turns []Turn) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, append([]Turn(nil), turns...))
	p.mu.Unlock()
	if p.openErr != nil {
		return "", p.openErr
	}
	return p.reply, nil
}

func (p *scriptedProvider) lastCall() []Turn {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) == 0 {
		return nil
	}
	return p.calls[len(p.calls)-1]
}

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type scriptedStream struct {
	ctx       context.Context
	fragments []string
	failAfter error
	block     bool
	closed    bool
}

var errStreamClosed = errors.New("stream closed")

func (s *scriptedStream) Recv() (string, error) {
	if s.closed {
		return "", errStreamClosed
	}
	if len(s.fragments) > 0 {
		next := s.fragments[0]
		s.fragments = s.fragments[1:]
		return next, nil
	}
	if s.block {
		<-s.ctx.Done()
		return "", s.ctx.Err()
	}
	if s.failAfter != nil {
		return "", s.failAfter
	}
	return "", io.EOF
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}
