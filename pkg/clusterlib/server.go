package clusterlib

import (
	"fmt"
	"sync"
	"time"
)

// HealthCheckFunc is the user-supplied probe a Server's health-checker
// thread calls on every tick. The child-process supervisor that would
// normally drive ProcessSlot state from this result is out of scope.
type HealthCheckFunc func() (healthy bool, description string)

// Server is a Client bound to one Node: it runs a health-checker
// thread that publishes clientState on the bound Node, and wraps its
// Group's leader election. The description returned by the health check
// is not published.
type Server struct {
	*Client

	node                    *Node
	group                   *groupCore
	check                   HealthCheckFunc
	checkFrequencyHealthy   time.Duration
	checkFrequencyUnhealthy time.Duration

	stopMu   sync.Mutex
	stopped  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewServer binds a Server to node, using check on every health-check
// tick. checkFrequencyHealthy/Unhealthy set the sleep between ticks
// following a successful/failed check, respectively.
func NewServer(f *FactoryOps, node *Node, check HealthCheckFunc, checkFrequencyHealthy, checkFrequencyUnhealthy time.Duration) (*Server, error) {
	var group *groupCore
	parent, err := node.Parent()
	if err != nil {
		return nil, err
	}
	switch p := parent.(type) {
	case *Group:
		group = p.groupCore
	case *Application:
		group = p.groupCore
	default:
		return nil, fmt.Errorf("%w: node %s has no group-like parent", ErrInvalidArguments, node.Key())
	}

	s := &Server{
		Client:                  NewClient(f),
		node:                    node,
		group:                   group,
		check:                   check,
		checkFrequencyHealthy:   checkFrequencyHealthy,
		checkFrequencyUnhealthy: checkFrequencyUnhealthy,
		stopChan:                make(chan struct{}),
	}
	s.wg.Add(1)
	go s.healthCheckLoop()
	return s, nil
}

func (s *Server) healthCheckLoop() {
	defer s.wg.Done()
	for {
		healthy, _ := s.check()
		state := ClientStateUnhealthy
		if healthy {
			state = ClientStateHealthy
		}
		_ = s.node.SetClientState(state)

		freq := s.checkFrequencyUnhealthy
		if healthy {
			freq = s.checkFrequencyHealthy
		}
		select {
		case <-s.stopChan:
			return
		case <-time.After(freq):
		}
	}
}

// TryToBecomeLeader enters this Server's node's Group's leader
// election, wrapping groupCore.TryToBecomeLeader.
func (s *Server) TryToBecomeLeader(onElected, onDeposed func()) error {
	return s.group.TryToBecomeLeader(onElected, onDeposed)
}

// AmITheLeader reports whether this Server's most recent bid in its
// Group's election is currently elected.
func (s *Server) AmITheLeader() bool {
	return s.group.AmITheLeader()
}

// GiveUpLeadership withdraws this Server's bid from its Group's election.
func (s *Server) GiveUpLeadership() error {
	return s.group.GiveUpLeadership()
}

// Stop ends the health-checker thread and closes the underlying Client.
func (s *Server) Stop() {
	s.stopMu.Lock()
	if s.stopped {
		s.stopMu.Unlock()
		return
	}
	s.stopped = true
	s.stopMu.Unlock()
	close(s.stopChan)
	s.wg.Wait()
	s.Client.Close()
}
