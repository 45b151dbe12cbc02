package services

import (
	"sort"
	"sync"
)

// PresenceRegistry 进程内在线用户集合（按邮箱）。不持久化，
// 只由连接/断开事件驱动；短暂的不一致是可接受的。
type PresenceRegistry struct {
	mu      sync.RWMutex
	members map[string]struct{}
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{members: make(map[string]struct{})}
}

func (p *PresenceRegistry) Add(email string) {
	if email == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.members[email] = struct{}{}
}

func (p *PresenceRegistry) Remove(email string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.members, email)
}

// Replace 整体替换在线集合
func (p *PresenceRegistry) Replace(emails []string) {
	members := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		if e != "" {
			members[e] = struct{}{}
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.members = members
}

func (p *PresenceRegistry) IsActive(email string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.members[email]
	return ok
}

func (p *PresenceRegistry) List() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.members))
	for e := range p.members {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}
