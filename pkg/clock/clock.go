package clock

import (
	"sync"
	"time"
)

// Clock источник текущего времени (всегда UTC)
type Clock interface {
	Now() time.Time
}

// System часы на основе time.Now
type System struct{}

// NewSystem создает системные часы
func NewSystem() System {
	return System{}
}

// Now возвращает текущее время в UTC
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Manual часы с ручным управлением, для тестов
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual создает часы, стоящие на указанном моменте
func NewManual(t time.Time) *Manual {
	return &Manual{now: t.UTC()}
}

// Now возвращает текущее значение часов
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set переставляет часы
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t.UTC()
	m.mu.Unlock()
}

// Advance сдвигает часы вперед на d
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}
