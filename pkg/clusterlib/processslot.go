package clusterlib

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/clusterlib/clusterlib/pkg/key"
	"github.com/clusterlib/clusterlib/pkg/repository"
)

// ProcessState enumerates ProcessSlot.currentProcessState.
type ProcessState int

const (
	ProcessStateUnused ProcessState = iota
	ProcessStateStarted
	ProcessStateRunning
	ProcessStateStopped
	ProcessStateFinished
	ProcessStateFailed
	ProcessStateInvalid
)

func (s ProcessState) String() string {
	switch s {
	case ProcessStateUnused:
		return "UNUSED"
	case ProcessStateStarted:
		return "STARTED"
	case ProcessStateRunning:
		return "RUNNING"
	case ProcessStateStopped:
		return "STOPPED"
	case ProcessStateFinished:
		return "FINISHED"
	case ProcessStateFailed:
		return "FAILED"
	default:
		return "INVALID"
	}
}

func parseProcessState(s string) ProcessState {
	switch s {
	case "UNUSED":
		return ProcessStateUnused
	case "STARTED":
		return ProcessStateStarted
	case "RUNNING":
		return ProcessStateRunning
	case "STOPPED":
		return ProcessStateStopped
	case "FINISHED":
		return ProcessStateFinished
	case "FAILED":
		return ProcessStateFailed
	default:
		return ProcessStateInvalid
	}
}

// ExecArgs is the (env, path, command) tuple an external supervisor
// reads to launch the reserved process; the supervisor itself is out of
// scope for this package.
type ExecArgs struct {
	Env     []string
	Path    string
	Command string
}

func marshalExecArgs(a ExecArgs) string {
	return fmt.Sprintf("%s\x01%s\x01%s", strings.Join(a.Env, ","), a.Path, a.Command)
}

func parseExecArgs(s string) ExecArgs {
	parts := strings.SplitN(s, "\x01", 3)
	a := ExecArgs{}
	if len(parts) > 0 && parts[0] != "" {
		a.Env = strings.Split(parts[0], ",")
	}
	if len(parts) > 1 {
		a.Path = parts[1]
	}
	if len(parts) > 2 {
		a.Command = parts[2]
	}
	return a
}

const (
	attrDesiredState    = "desiredProcessState"
	attrCurrentState    = "currentProcessState"
	attrExecArgs        = "execArgs"
	attrPortVector      = "portVector"
	attrPID             = "pid"
	attrReservationName = "reservationName"
)

// ProcessSlot is a Notifyable holding the desired/current state pair an
// external supervisor reconciles, plus the exec args, port vector, PID
// and reservation name it needs to do so; the supervisor that actually
// launches the process is explicitly out of scope for this package.
type ProcessSlot struct {
	*common

	mu              sync.Mutex
	desiredState    ProcessState
	currentState    ProcessState
	execArgs        ExecArgs
	portVector      []int
	pid             int
	reservationName string
}

func newProcessSlot(f *FactoryOps, k, name, parentKey string) *ProcessSlot {
	return &ProcessSlot{common: newCommon(f, k, name, parentKey)}
}

// DesiredState returns the last observed desiredProcessState.
func (p *ProcessSlot) DesiredState() ProcessState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.desiredState
}

// CurrentState returns the last observed currentProcessState.
func (p *ProcessSlot) CurrentState() ProcessState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentState
}

// SetDesiredState publishes state as this slot's desiredProcessState;
// a managing process calls this to request work.
func (p *ProcessSlot) SetDesiredState(state ProcessState) error {
	return p.setAttr(attrDesiredState, state.String(), func() { p.mu.Lock(); p.desiredState = state; p.mu.Unlock() })
}

// SetCurrentState publishes state as this slot's currentProcessState;
// the external supervisor calls this as the process's fortunes change.
func (p *ProcessSlot) SetCurrentState(state ProcessState) error {
	return p.setAttr(attrCurrentState, state.String(), func() { p.mu.Lock(); p.currentState = state; p.mu.Unlock() })
}

// ExecArgs returns the last observed exec args.
func (p *ProcessSlot) ExecArgs() ExecArgs {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.execArgs
}

// SetExecArgs publishes the (env, path, command) tuple the supervisor
// should use to launch the reserved process.
func (p *ProcessSlot) SetExecArgs(a ExecArgs) error {
	return p.setAttr(attrExecArgs, marshalExecArgs(a), func() { p.mu.Lock(); p.execArgs = a; p.mu.Unlock() })
}

// PortVector returns the last observed port assignment.
func (p *ProcessSlot) PortVector() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.portVector...)
}

// SetPortVector publishes the slot's assigned ports.
func (p *ProcessSlot) SetPortVector(ports []int) error {
	strs := make([]string, len(ports))
	for i, port := range ports {
		strs[i] = strconv.Itoa(port)
	}
	return p.setAttr(attrPortVector, strings.Join(strs, ","), func() {
		p.mu.Lock()
		p.portVector = append([]int(nil), ports...)
		p.mu.Unlock()
	})
}

// PID returns the last observed process ID, or 0 if none is recorded.
func (p *ProcessSlot) PID() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

// SetPID publishes the running process's PID.
func (p *ProcessSlot) SetPID(pid int) error {
	return p.setAttr(attrPID, strconv.Itoa(pid), func() { p.mu.Lock(); p.pid = pid; p.mu.Unlock() })
}

// ReservationName returns the last observed reservation name.
func (p *ProcessSlot) ReservationName() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reservationName
}

// SetReservationName publishes the name under which this slot is
// reserved.
func (p *ProcessSlot) SetReservationName(name string) error {
	return p.setAttr(attrReservationName, name, func() { p.mu.Lock(); p.reservationName = name; p.mu.Unlock() })
}

// Refresh re-reads every attribute leaf from the backend into the
// in-memory snapshot the accessors above return.
func (p *ProcessSlot) Refresh() error {
	if err := p.checkRemoved(); err != nil {
		return err
	}
	ctx := context.Background()
	if v, ok, err := p.readAttr(ctx, attrDesiredState); err != nil {
		return err
	} else if ok {
		p.mu.Lock()
		p.desiredState = parseProcessState(v)
		p.mu.Unlock()
	}
	if v, ok, err := p.readAttr(ctx, attrCurrentState); err != nil {
		return err
	} else if ok {
		p.mu.Lock()
		p.currentState = parseProcessState(v)
		p.mu.Unlock()
	}
	if v, ok, err := p.readAttr(ctx, attrExecArgs); err != nil {
		return err
	} else if ok {
		p.mu.Lock()
		p.execArgs = parseExecArgs(v)
		p.mu.Unlock()
	}
	if v, ok, err := p.readAttr(ctx, attrReservationName); err != nil {
		return err
	} else if ok {
		p.mu.Lock()
		p.reservationName = v
		p.mu.Unlock()
	}
	if v, ok, err := p.readAttr(ctx, attrPID); err != nil {
		return err
	} else if ok {
		pid, _ := strconv.Atoi(v)
		p.mu.Lock()
		p.pid = pid
		p.mu.Unlock()
	}
	if v, ok, err := p.readAttr(ctx, attrPortVector); err != nil {
		return err
	} else if ok && v != "" {
		fields := strings.Split(v, ",")
		ports := make([]int, 0, len(fields))
		for _, f := range fields {
			if n, err := strconv.Atoi(f); err == nil {
				ports = append(ports, n)
			}
		}
		p.mu.Lock()
		p.portVector = ports
		p.mu.Unlock()
	}
	return nil
}

func (p *ProcessSlot) readAttr(ctx context.Context, attr string) (string, bool, error) {
	data, _, err := p.factory.repo.GetNodeData(ctx, key.Attribute(p.key, attr), nil)
	if err != nil {
		if errors.Is(err, repository.ErrNoNode) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(data), true, nil
}

func (p *ProcessSlot) setAttr(attr, value string, apply func()) error {
	if err := p.checkRemoved(); err != nil {
		return err
	}
	ctx := context.Background()
	attrKey := key.Attribute(p.key, attr)
	_, stat, err := p.factory.repo.GetNodeData(ctx, attrKey, nil)
	if err != nil {
		if errors.Is(err, repository.ErrNoNode) {
			if _, cerr := p.factory.repo.CreateNode(ctx, attrKey, []byte(value), repository.FlagNone); cerr != nil {
				return cerr
			}
			apply()
			return nil
		}
		return err
	}
	if _, err := p.factory.repo.SetNodeData(ctx, attrKey, []byte(value), stat.Version); err != nil {
		return err
	}
	apply()
	return nil
}

// Remove deletes this ProcessSlot (it has no children, so recursive is
// moot).
func (p *ProcessSlot) Remove(recursive bool) error {
	return p.factory.removeNotifyable(p, p.common, true)
}
