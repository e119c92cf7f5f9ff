// Package ccp models the contact control panel side of the bridge: agent
// presence, mapped to the coarse availability the chat surface displays.
package ccp

import (
	"chat-bridge/contract"
	"sync"
)

// AgentStatus is the raw presence reported by the control panel.
type AgentStatus string

const (
	StatusAvailable     AgentStatus = "Available"
	StatusOnCall        AgentStatus = "OnCall"
	StatusBusy          AgentStatus = "Busy"
	StatusAfterCallWork AgentStatus = "AfterCallWork"
	StatusOffline       AgentStatus = "Offline"
)

// Availability is the three-valued view shown to customers.
type Availability string

const (
	Available   Availability = "available"
	Busy        Availability = "busy"
	Unavailable Availability = "offline"
)

// MapAgentStatus collapses panel presence into customer-facing
// availability. Unknown statuses read as offline rather than available.
func MapAgentStatus(status AgentStatus) Availability {
	switch status {
	case StatusAvailable:
		return Available
	case StatusOnCall, StatusBusy, StatusAfterCallWork:
		return Busy
	case StatusOffline:
		return Unavailable
	default:
		return Unavailable
	}
}

// Panel exposes current agent presence and change notifications.
type Panel interface {
	AgentStatus() AgentStatus
	OnStatusChange(fn func(AgentStatus)) contract.Subscription
}

// StatusPanel is an in-process Panel implementation fed by SetStatus.
type StatusPanel struct {
	mu        sync.RWMutex
	status    AgentStatus
	nextID    int
	observers map[int]func(AgentStatus)
}

func NewStatusPanel() *StatusPanel {
	return &StatusPanel{
		status:    StatusOffline,
		observers: make(map[int]func(AgentStatus)),
	}
}

func (p *StatusPanel) AgentStatus() AgentStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// SetStatus records the new presence and fires observers outside the lock.
func (p *StatusPanel) SetStatus(status AgentStatus) {
	p.mu.Lock()
	if p.status == status {
		p.mu.Unlock()
		return
	}
	p.status = status
	observers := make([]func(AgentStatus), 0, len(p.observers))
	for _, fn := range p.observers {
		observers = append(observers, fn)
	}
	p.mu.Unlock()

	for _, fn := range observers {
		fn(status)
	}
}

func (p *StatusPanel) OnStatusChange(fn func(AgentStatus)) contract.Subscription {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.observers[id] = fn
	p.mu.Unlock()

	return contract.SubscriptionFunc(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.observers, id)
	})
}
