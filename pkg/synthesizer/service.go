package synthesizer

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/skillminer/skillminer/pkg/logger"
	"github.com/skillminer/skillminer/pkg/proposalcache"
	"github.com/skillminer/skillminer/pkg/store"
	"github.com/skillminer/skillminer/pkg/telemetry"
	"github.com/skillminer/skillminer/pkg/types/mining"
)

// Gateway merges an approved proposal into the live skill registry.
// It is an external collaborator: calls are fallible and must already
// carry their own retry discipline.
type Gateway interface {
	Apply(ctx context.Context, proposal mining.ChangeProposal) error
}

// Service wires proposal generation to the candidate store, the
// proposal cache and the application gateway.
type Service struct {
	store   store.CandidateStore
	cache   *proposalcache.Cache
	gateway Gateway

	mu       sync.Mutex
	inflight map[string]*inflightSynthesis
}

// inflightSynthesis coalesces concurrent generations for one candidate
// id: followers wait on done and adopt the leader's result, so at most
// one synthesis and one cache write happen per id at a time.
type inflightSynthesis struct {
	done     chan struct{}
	proposal mining.ChangeProposal
	err      error
}

// NewService creates a Service. The gateway may be nil when the apply
// flow is not wired (e.g. read-only review deployments).
func NewService(st store.CandidateStore, cache *proposalcache.Cache, gw Gateway) *Service {
	return &Service{
		store:    st,
		cache:    cache,
		gateway:  gw,
		inflight: make(map[string]*inflightSynthesis),
	}
}

// GenerateProposal synthesizes a fresh proposal for the candidate and
// stores it in the cache, overwriting any prior entry. On any failure
// the cache keeps its prior value. Concurrent calls for the same id
// coalesce to a single synthesis.
func (s *Service) GenerateProposal(ctx context.Context, candidateID string) (mining.ChangeProposal, error) {
	s.mu.Lock()
	if call, ok := s.inflight[candidateID]; ok {
		s.mu.Unlock()
		select {
		case <-call.done:
			return call.proposal, call.err
		case <-ctx.Done():
			return mining.ChangeProposal{}, ctx.Err()
		}
	}

	call := &inflightSynthesis{done: make(chan struct{})}
	s.inflight[candidateID] = call
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inflight, candidateID)
		s.mu.Unlock()
		close(call.done)
	}()

	call.proposal, call.err = s.generate(ctx, candidateID)
	return call.proposal, call.err
}

func (s *Service) generate(ctx context.Context, candidateID string) (mining.ChangeProposal, error) {
	var proposal mining.ChangeProposal

	err := telemetry.WithSpan(ctx, "synthesizer.GenerateProposal", func(ctx context.Context) error {
		candidate, err := s.store.Get(ctx, candidateID)
		if err != nil {
			return err
		}

		proposal, err = Synthesize(candidate)
		if err != nil {
			return err
		}

		s.cache.Put(candidateID, proposal)

		logger.G(ctx).WithFields(map[string]any{
			"candidate": candidateID,
			"skill":     proposal.NewSkillID,
			"selectors": len(proposal.SelectorChanges),
			"workflows": len(proposal.WorkflowChanges),
		}).Info("synthesized change proposal")
		return nil
	}, attribute.String("candidate.id", candidateID))

	return proposal, err
}

// CachedProposal returns the latest cached proposal for the candidate.
// A cache entry whose candidate no longer exists in the store is stale
// and is dropped instead of returned.
func (s *Service) CachedProposal(ctx context.Context, candidateID string) (mining.ChangeProposal, error) {
	proposal, ok := s.cache.Get(candidateID)
	if !ok {
		return mining.ChangeProposal{}, errors.Wrapf(mining.ErrNotFound, "no cached proposal for candidate %s", candidateID)
	}

	if _, err := s.store.Get(ctx, candidateID); err != nil {
		if errors.Is(err, mining.ErrNotFound) {
			s.cache.Delete(candidateID)
		}
		return mining.ChangeProposal{}, err
	}

	return proposal, nil
}

// ApplyProposal submits an approved candidate's proposal to the
// application gateway. On confirmed merge the candidate moves to
// merged; on gateway failure the status stays approved and the error
// is surfaced to the reviewer, never retried silently here.
func (s *Service) ApplyProposal(ctx context.Context, candidateID string) error {
	if s.gateway == nil {
		return errors.New("no application gateway configured")
	}

	candidate, err := s.store.Get(ctx, candidateID)
	if err != nil {
		return err
	}
	if candidate.Status != mining.StatusApproved {
		return errors.Wrapf(mining.ErrInvalidTransition,
			"candidate %s is %s; only approved candidates can be applied", candidateID, candidate.Status)
	}

	proposal, ok := s.cache.Get(candidateID)
	if !ok {
		proposal, err = s.GenerateProposal(ctx, candidateID)
		if err != nil {
			return err
		}
	}

	if err := s.gateway.Apply(ctx, proposal); err != nil {
		return errors.Wrapf(err, "gateway failed to merge proposal for candidate %s", candidateID)
	}

	return s.store.SetStatus(ctx, candidateID, mining.StatusMerged)
}
