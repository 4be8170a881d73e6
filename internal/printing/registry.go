package printing

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Conn is one live client connection as seen by the broker.
type Conn interface {
	ID() string
	Send(ctx context.Context, msg Message) error
}

// PrinterInfo is what a client tells us about itself when it registers.
type PrinterInfo struct {
	Name     string `json:"name,omitempty"`
	Location string `json:"location,omitempty"`
}

type member struct {
	conn         Conn
	printer      bool
	info         PrinterInfo
	connectedAt  time.Time
	registeredAt time.Time
}

// Registry tracks every open connection and which of them joined the
// printers group. Membership has no identity beyond the connection: a
// reconnecting printer is a new member.
type Registry struct {
	mu      sync.RWMutex
	members map[string]*member
}

func NewRegistry() *Registry {
	return &Registry{members: make(map[string]*member)}
}

func (r *Registry) Connect(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[c.ID()]; ok {
		return
	}
	r.members[c.ID()] = &member{conn: c, connectedAt: time.Now()}
}

// Register adds the connection to the printers group. Registering twice only
// refreshes the metadata. Unknown connections are connected first.
func (r *Registry) Register(c Conn, info PrinterInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[c.ID()]
	if !ok {
		m = &member{conn: c, connectedAt: time.Now()}
		r.members[c.ID()] = m
	}
	if !m.printer {
		m.printer = true
		m.registeredAt = time.Now()
	}
	m.info = info
}

// Disconnect drops the connection and its group membership.
func (r *Registry) Disconnect(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	if !ok {
		return false
	}
	delete(r.members, id)
	return m.printer
}

// Printers returns a snapshot of the printers group.
func (r *Registry) Printers() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Conn, 0, len(r.members))
	for _, m := range r.members {
		if m.printer {
			out = append(out, m.conn)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (r *Registry) IsPrinter(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[id]
	return ok && m.printer
}

// Count is the size of the printers group.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, m := range r.members {
		if m.printer {
			n++
		}
	}
	return n
}

// Total counts every open connection, printer or not.
func (r *Registry) Total() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}
