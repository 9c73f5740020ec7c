package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/GoPolymarket/levergate/internal/model"
	"github.com/GoPolymarket/levergate/internal/pkg/logger"
	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"
)

// EventService journals engine events: a bounded in-memory ring for quick reads,
// a rotated jsonl file, and an optional repository.
type EventService struct {
	eventChan chan *model.Event
	journal   *lumberjack.Logger
	buffer    *eventBuffer
	repo      EventRepo
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.RWMutex
	closed bool
}

type EventRepo interface {
	Insert(ctx context.Context, event *model.Event) error
	List(ctx context.Context, eventType model.EventType, limit int) ([]*model.Event, error)
}

type EventOptions struct {
	Dir        string
	BufferSize int
	MaxSizeMB  int
	MaxBackups int
}

func NewEventService(opts EventOptions, repo EventRepo) (*EventService, error) {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1000
	}
	svc := &EventService{
		eventChan: make(chan *model.Event, opts.BufferSize),
		buffer:    newEventBuffer(opts.BufferSize),
		repo:      repo,
		done:      make(chan struct{}),
	}
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, err
		}
		svc.journal = &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, "events.jsonl"),
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			Compress:   true,
		}
	}

	go svc.process()

	return svc, nil
}

// Emit never blocks the engine: when the queue is full the event is still kept
// in the ring buffer but not journaled.
func (s *EventService) Emit(event *model.Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	s.buffer.Add(event)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		logger.Warn("event service closed, skipping journal entry", "event_id", event.ID, "type", event.Type)
		return
	}
	select {
	case s.eventChan <- event:
	default:
		logger.Warn("event queue full, dropping journal entry", "event_id", event.ID, "type", event.Type)
	}
}

func (s *EventService) List(ctx context.Context, eventType model.EventType, limit int) ([]*model.Event, error) {
	if s.repo != nil {
		records, err := s.repo.List(ctx, eventType, limit)
		if err == nil {
			return records, nil
		}
		logger.LogError(ctx, err, "event repository list failed, serving from buffer")
	}
	return s.buffer.List(eventType, limit), nil
}

func (s *EventService) process() {
	defer close(s.done)
	var encoder *json.Encoder
	if s.journal != nil {
		encoder = json.NewEncoder(s.journal)
	}
	for event := range s.eventChan {
		if s.repo != nil {
			if err := s.repo.Insert(context.Background(), event); err != nil {
				logger.Error("failed to write event to DB", "event_id", event.ID, "error", err.Error())
			}
		}
		if encoder != nil {
			if err := encoder.Encode(event); err != nil {
				logger.Error("failed to journal event", "event_id", event.ID, "error", err.Error())
			}
		}
	}
}

// Close drains the queue and closes the journal.
func (s *EventService) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.eventChan)
		s.mu.Unlock()
		<-s.done
		if s.journal != nil {
			_ = s.journal.Close()
		}
	})
}

type eventBuffer struct {
	mu        sync.Mutex
	maxSize   int
	records   []*model.Event
	nextIndex int
}

func newEventBuffer(maxSize int) *eventBuffer {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &eventBuffer{
		maxSize: maxSize,
		records: make([]*model.Event, 0, maxSize),
	}
}

func (b *eventBuffer) Add(event *model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.records) < b.maxSize {
		b.records = append(b.records, event)
		return
	}
	b.records[b.nextIndex] = event
	b.nextIndex = (b.nextIndex + 1) % b.maxSize
}

// List returns newest first.
func (b *eventBuffer) List(eventType model.EventType, limit int) []*model.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if limit <= 0 || limit > b.maxSize {
		limit = b.maxSize
	}
	results := make([]*model.Event, 0, limit)
	total := len(b.records)
	for i := 0; i < total; i++ {
		idx := (b.nextIndex + total - 1 - i) % total
		event := b.records[idx]
		if event == nil {
			continue
		}
		if eventType != "" && event.Type != eventType {
			continue
		}
		results = append(results, event)
		if len(results) >= limit {
			break
		}
	}
	return results
}
