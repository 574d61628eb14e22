package service

import (
	"context"

	"github.com/tovald/pageflow/internal/app/model"
	"github.com/tovald/pageflow/internal/app/repository"
)

// EventSink is the persistence strategy behind the orchestrator. The
// RequiresSessionRows capability decides whether the pipeline issues explicit
// session creation: a relational backend keeps a sessions table, while a
// stream backend embeds the session snapshot in every event.
type EventSink interface {
	RequiresSessionRows() bool
	CreateSession(ctx context.Context, session *model.Session) error
	SaveEvent(ctx context.Context, event *model.WebsiteEvent) error
	SaveSessionData(ctx context.Context, sessionID, distinctID string, data map[string]any) error
}

type relationalSink struct {
	sessions repository.SessionRepository
	events   repository.EventRepository
}

// NewRelationalSink stores hits in explicit sessions/events tables. Session
// creation is create-if-absent; the core does not serialize concurrent
// first-sight requests.
func NewRelationalSink(sessions repository.SessionRepository, events repository.EventRepository) EventSink {
	return &relationalSink{sessions: sessions, events: events}
}

func (s *relationalSink) RequiresSessionRows() bool { return true }

func (s *relationalSink) CreateSession(ctx context.Context, session *model.Session) error {
	return s.sessions.CreateIfAbsent(ctx, session)
}

func (s *relationalSink) SaveEvent(ctx context.Context, event *model.WebsiteEvent) error {
	return s.events.Create(ctx, event)
}

func (s *relationalSink) SaveSessionData(ctx context.Context, sessionID, distinctID string, data map[string]any) error {
	return s.sessions.SaveData(ctx, sessionID, distinctID, data)
}

type streamSink struct {
	publisher *HitPublisher
	sessions  repository.SessionRepository
}

// NewStreamSink publishes hits to JetStream; the archive consumer lands them
// in the append-only store with session attributes embedded, so no session
// rows are kept. Identify data still goes to the session_data table.
func NewStreamSink(publisher *HitPublisher, sessions repository.SessionRepository) EventSink {
	return &streamSink{publisher: publisher, sessions: sessions}
}

func (s *streamSink) RequiresSessionRows() bool { return false }

func (s *streamSink) CreateSession(context.Context, *model.Session) error { return nil }

func (s *streamSink) SaveEvent(ctx context.Context, event *model.WebsiteEvent) error {
	return s.publisher.Publish(ctx, event)
}

func (s *streamSink) SaveSessionData(ctx context.Context, sessionID, distinctID string, data map[string]any) error {
	return s.sessions.SaveData(ctx, sessionID, distinctID, data)
}
