package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/Rrens/support-chat/internal/domain"
)

// LoadCounter computes how many sessions each directory agent holds
type LoadCounter struct {
	agents   domain.AgentRepository
	sessions domain.SessionRepository
}

// NewLoadCounter creates a new load counter
func NewLoadCounter(agents domain.AgentRepository, sessions domain.SessionRepository) *LoadCounter {
	return &LoadCounter{agents: agents, sessions: sessions}
}

// Count returns one entry per agent in directory order. Agents with no sessions have load 0.
func (c *LoadCounter) Count(ctx context.Context) ([]domain.AgentLoad, error) {
	agents, err := c.agents.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	if len(agents) == 0 {
		return []domain.AgentLoad{}, nil
	}

	emails := make([]string, len(agents))
	for i, a := range agents {
		emails[i] = a.Email
	}

	counts, err := c.sessions.CountByAgent(ctx, emails)
	if err != nil {
		return nil, fmt.Errorf("failed to count sessions: %w", err)
	}

	loads := make([]domain.AgentLoad, len(agents))
	for i, email := range emails {
		loads[i] = domain.AgentLoad{Agent: email, Sessions: counts[email]}
	}
	return loads, nil
}

// LeastLoadedPolicy picks uniformly at random among the agents with the fewest sessions
type LeastLoadedPolicy struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewLeastLoadedPolicy creates a policy drawing from src
func NewLeastLoadedPolicy(src rand.Source) *LeastLoadedPolicy {
	return &LeastLoadedPolicy{rnd: rand.New(src)}
}

// Pick returns the chosen agent email or ErrNoAgentsAvailable for an empty input
func (p *LeastLoadedPolicy) Pick(loads []domain.AgentLoad) (string, error) {
	if len(loads) == 0 {
		return "", domain.ErrNoAgentsAvailable
	}

	minLoad := loads[0].Sessions
	for _, l := range loads[1:] {
		if l.Sessions < minLoad {
			minLoad = l.Sessions
		}
	}

	eligible := make([]string, 0, len(loads))
	for _, l := range loads {
		if l.Sessions == minLoad {
			eligible = append(eligible, l.Agent)
		}
	}

	p.mu.Lock()
	i := p.rnd.Intn(len(eligible))
	p.mu.Unlock()

	return eligible[i], nil
}
