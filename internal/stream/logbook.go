package stream

import (
	"sync"
	"time"

	"pve_client/internal/models"
)

const defaultLogCapacity = 1000

// LogBook — ограниченный буфер последних записей лога.
type LogBook struct {
	mu   sync.RWMutex
	buf  []models.LogRecord
	head int
	full bool
	now  func() time.Time
}

func NewLogBook(capacity int) *LogBook {
	if capacity <= 0 {
		capacity = defaultLogCapacity
	}
	return &LogBook{buf: make([]models.LogRecord, capacity), now: time.Now}
}

// Push разбирает сырую строку и добавляет запись.
func (b *LogBook) Push(line string) models.LogRecord {
	rec := ParseLogLine(line, b.now())
	b.Append(rec)
	return rec
}

func (b *LogBook) Append(rec models.LogRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf[b.head] = rec
	b.head = (b.head + 1) % len(b.buf)
	if b.head == 0 {
		b.full = true
	}
}

// Records — от старых к новым.
func (b *LogBook) Records() []models.LogRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.full {
		out := make([]models.LogRecord, b.head)
		copy(out, b.buf[:b.head])
		return out
	}
	out := make([]models.LogRecord, 0, len(b.buf))
	out = append(out, b.buf[b.head:]...)
	return append(out, b.buf[:b.head]...)
}

func (b *LogBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.full {
		return len(b.buf)
	}
	return b.head
}

func (b *LogBook) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head, b.full = 0, false
	clear(b.buf)
}
