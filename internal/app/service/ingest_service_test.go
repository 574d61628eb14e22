package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tovald/pageflow/internal/app/model"
	"github.com/tovald/pageflow/internal/app/repository"
	"github.com/tovald/pageflow/internal/enrich"
	"github.com/tovald/pageflow/internal/tracker"
)

const testWebsiteID = "0d4b1f6e-9a14-4a6a-b2f0-1f2e3d4c5b6a"

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type mockWebsiteRepository struct {
	getFn    func(ctx context.Context, id string) (*model.Website, error)
	getCalls int
}

func (m *mockWebsiteRepository) GetByID(ctx context.Context, id string) (*model.Website, error) {
	m.getCalls++
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return &model.Website{ID: id, Domain: "example.com"}, nil
}

func (m *mockWebsiteRepository) ListIDs(ctx context.Context) ([]string, error) {
	return []string{testWebsiteID}, nil
}

type mockSink struct {
	sessionRows bool

	createFn func(ctx context.Context, session *model.Session) error
	eventFn  func(ctx context.Context, event *model.WebsiteEvent) error
	dataFn   func(ctx context.Context, sessionID, distinctID string, data map[string]any) error

	sessions []*model.Session
	events   []*model.WebsiteEvent
	dataKeys []string
}

func (m *mockSink) RequiresSessionRows() bool { return m.sessionRows }

func (m *mockSink) CreateSession(ctx context.Context, session *model.Session) error {
	m.sessions = append(m.sessions, session)
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSink) SaveEvent(ctx context.Context, event *model.WebsiteEvent) error {
	m.events = append(m.events, event)
	if m.eventFn != nil {
		return m.eventFn(ctx, event)
	}
	return nil
}

func (m *mockSink) SaveSessionData(ctx context.Context, sessionID, distinctID string, data map[string]any) error {
	for key := range data {
		m.dataKeys = append(m.dataKeys, key)
	}
	if m.dataFn != nil {
		return m.dataFn(ctx, sessionID, distinctID, data)
	}
	return nil
}

type fixture struct {
	svc      *IngestService
	websites *mockWebsiteRepository
	sink     *mockSink
	now      time.Time
}

func newFixture(t *testing.T, mutate func(*fixture)) *fixture {
	t.Helper()

	enricher, err := enrich.New(nil, nil, []string{"203.0.113.0/24"})
	if err != nil {
		t.Fatalf("enrich.New returned error: %v", err)
	}

	f := &fixture{
		websites: &mockWebsiteRepository{},
		sink:     &mockSink{sessionRows: true},
		now:      time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC),
	}
	if mutate != nil {
		mutate(f)
	}

	f.svc = NewIngestService(IngestDeps{
		Websites: f.websites,
		Sink:     f.sink,
		Enricher: enricher,
		Secret:   testSecret,
		Now:      func() time.Time { return f.now },
	})
	return f
}

func pageviewRequest() Request {
	return Request{
		Envelope: tracker.Envelope{
			Type: tracker.TypeEvent,
			Payload: tracker.Payload{
				Website:  testWebsiteID,
				Hostname: "example.com",
				URL:      "https://www.example.com/a/b?x=1#sec",
				Referrer: "https://ref.com/page?y=2",
				Screen:   "1920x1080",
				Language: "en-US",
			},
		},
		RemoteIP:        "1.2.3.4",
		UserAgentHeader: "Mozilla/5.0 (Windows NT 10.0) Chrome/120.0 Safari/537.36",
	}
}

func TestIngest_FirstPageview(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.svc.Ingest(context.Background(), pageviewRequest())
	if err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}

	if len(f.sink.sessions) != 1 {
		t.Fatalf("expected one session row, got %d", len(f.sink.sessions))
	}
	if len(f.sink.events) != 1 {
		t.Fatalf("expected one event, got %d", len(f.sink.events))
	}

	ev := f.sink.events[0]
	if ev.EventType != tracker.EventTypePageView {
		t.Fatalf("event type: got %q", ev.EventType)
	}
	if ev.URLPath != "/a/b#sec" || ev.URLQuery != "x=1" {
		t.Fatalf("url normalization: got path=%q query=%q", ev.URLPath, ev.URLQuery)
	}
	if ev.ReferrerDomain != "ref.com" || ev.ReferrerPath != "/page" || ev.ReferrerQuery != "y=2" {
		t.Fatalf("referrer normalization: got %q %q %q", ev.ReferrerDomain, ev.ReferrerPath, ev.ReferrerQuery)
	}

	claims := tracker.DecodeCacheToken(res.CacheToken, testSecret)
	if claims == nil {
		t.Fatal("expected the issued cache token to decode")
	}
	if claims.SessionID.String() != res.SessionID || claims.VisitID.String() != res.VisitID {
		t.Fatal("expected the token to carry the response identity")
	}
	if claims.SourceID.String() != testWebsiteID {
		t.Fatalf("token source: got %s", claims.SourceID)
	}
}

func TestIngest_CacheTokenSkipsLookups(t *testing.T) {
	f := newFixture(t, nil)

	first, err := f.svc.Ingest(context.Background(), pageviewRequest())
	if err != nil {
		t.Fatalf("first Ingest returned error: %v", err)
	}
	if f.websites.getCalls != 1 {
		t.Fatalf("expected one website lookup, got %d", f.websites.getCalls)
	}

	f.now = f.now.Add(5 * time.Minute)
	req := pageviewRequest()
	req.CacheHeader = first.CacheToken

	second, err := f.svc.Ingest(context.Background(), req)
	if err != nil {
		t.Fatalf("second Ingest returned error: %v", err)
	}

	if f.websites.getCalls != 1 {
		t.Fatal("expected the cache token to skip the website lookup")
	}
	if len(f.sink.sessions) != 1 {
		t.Fatal("expected the cache token to skip session creation")
	}
	if second.SessionID != first.SessionID || second.VisitID != first.VisitID {
		t.Fatal("expected identity carried over within the idle window")
	}
}

func TestIngest_IdleWindowRotatesVisit(t *testing.T) {
	f := newFixture(t, nil)

	first, err := f.svc.Ingest(context.Background(), pageviewRequest())
	if err != nil {
		t.Fatalf("first Ingest returned error: %v", err)
	}

	f.now = f.now.Add(40 * time.Minute)
	req := pageviewRequest()
	req.CacheHeader = first.CacheToken

	second, err := f.svc.Ingest(context.Background(), req)
	if err != nil {
		t.Fatalf("second Ingest returned error: %v", err)
	}

	if second.SessionID != first.SessionID {
		t.Fatal("expected the session to survive idle rotation")
	}
	if second.VisitID == first.VisitID {
		t.Fatal("expected a fresh visit id after 40 idle minutes")
	}
}

func TestIngest_IdentifyWritesSessionData(t *testing.T) {
	f := newFixture(t, nil)

	req := Request{
		Envelope: tracker.Envelope{
			Type: tracker.TypeIdentify,
			Payload: tracker.Payload{
				Website: testWebsiteID,
				ID:      "user-42",
				Data:    map[string]any{"plan": "pro"},
			},
		},
		RemoteIP:        "1.2.3.4",
		UserAgentHeader: "Mozilla/5.0 (Windows NT 10.0) Chrome/120.0 Safari/537.36",
	}

	var gotSession, gotDistinct string
	f.sink.dataFn = func(ctx context.Context, sessionID, distinctID string, data map[string]any) error {
		gotSession, gotDistinct = sessionID, distinctID
		return nil
	}

	res, err := f.svc.Ingest(context.Background(), req)
	if err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}

	if len(f.sink.events) != 0 {
		t.Fatal("identify must not write an event")
	}
	if gotDistinct != "user-42" {
		t.Fatalf("distinct id: got %q", gotDistinct)
	}
	if gotSession != res.SessionID {
		t.Fatal("expected session data keyed by the resolved session id")
	}

	// Same distinct id from a different client fingerprint resolves to the
	// same session.
	req.RemoteIP = "9.9.9.9"
	res2, err := f.svc.Ingest(context.Background(), req)
	if err != nil {
		t.Fatalf("second Ingest returned error: %v", err)
	}
	if res2.SessionID != res.SessionID {
		t.Fatal("expected (source, distinctId) to pin the session id")
	}
}

func TestIngest_IdentifyWithoutDataIsNoOp(t *testing.T) {
	f := newFixture(t, nil)

	req := Request{
		Envelope: tracker.Envelope{
			Type:    tracker.TypeIdentify,
			Payload: tracker.Payload{Website: testWebsiteID},
		},
		RemoteIP:        "1.2.3.4",
		UserAgentHeader: "Mozilla/5.0 (Windows NT 10.0) Chrome/120.0 Safari/537.36",
	}

	res, err := f.svc.Ingest(context.Background(), req)
	if err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}
	if len(f.sink.dataKeys) != 0 {
		t.Fatal("expected no session data write")
	}
	if res.CacheToken == "" {
		t.Fatal("expected a cache token even for a no-op identify")
	}
}

func TestIngest_ValidationFailureHasNoSideEffects(t *testing.T) {
	f := newFixture(t, nil)

	req := pageviewRequest()
	req.Envelope.Payload.Website = ""

	_, err := f.svc.Ingest(context.Background(), req)
	if !errors.Is(err, tracker.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if f.websites.getCalls != 0 || len(f.sink.sessions) != 0 || len(f.sink.events) != 0 {
		t.Fatal("expected zero lookups and zero writes")
	}
}

func TestIngest_UnknownWebsite(t *testing.T) {
	f := newFixture(t, func(f *fixture) {
		f.websites.getFn = func(ctx context.Context, id string) (*model.Website, error) {
			return nil, repository.ErrWebsiteNotFound
		}
	})

	_, err := f.svc.Ingest(context.Background(), pageviewRequest())
	if !errors.Is(err, ErrUnknownWebsite) {
		t.Fatalf("expected ErrUnknownWebsite, got %v", err)
	}
	if len(f.sink.events) != 0 {
		t.Fatal("expected no writes for an unknown website")
	}
}

func TestIngest_BotGetsDecoyWithoutWrites(t *testing.T) {
	f := newFixture(t, nil)

	req := pageviewRequest()
	req.UserAgentHeader = "Googlebot/2.1 (+http://www.google.com/bot.html)"

	res, err := f.svc.Ingest(context.Background(), req)
	if err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}
	if !res.BotFiltered {
		t.Fatal("expected the bot flag")
	}
	if res.CacheToken != "" {
		t.Fatal("bots must not receive a cache token")
	}
	if len(f.sink.sessions) != 0 || len(f.sink.events) != 0 {
		t.Fatal("expected zero writes for bot traffic")
	}
}

func TestIngest_BlockedIP(t *testing.T) {
	f := newFixture(t, nil)

	req := pageviewRequest()
	req.RemoteIP = "203.0.113.50"

	_, err := f.svc.Ingest(context.Background(), req)
	if !errors.Is(err, ErrBlockedIP) {
		t.Fatalf("expected ErrBlockedIP, got %v", err)
	}
	if len(f.sink.sessions) != 0 || len(f.sink.events) != 0 {
		t.Fatal("expected zero writes for a blocked ip")
	}
}

func TestIngest_LinkHitClassifiesAsLink(t *testing.T) {
	f := newFixture(t, nil)

	req := pageviewRequest()
	req.Envelope.Payload.Website = ""
	req.Envelope.Payload.Link = "7a1c2b3d-4e5f-4a6b-8c9d-0e1f2a3b4c5d"
	req.Envelope.Payload.Name = "signup"

	res, err := f.svc.Ingest(context.Background(), req)
	if err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}

	if f.websites.getCalls != 0 {
		t.Fatal("link hits must not trigger a website lookup")
	}
	if f.sink.events[0].EventType != tracker.EventTypeLink {
		t.Fatalf("expected link precedence over custom, got %q", f.sink.events[0].EventType)
	}
	if res.CacheToken == "" {
		t.Fatal("expected a cache token for link hits too")
	}
}

func TestIngest_PersistenceFailureSurfaces(t *testing.T) {
	storeErr := errors.New("connection refused")
	f := newFixture(t, nil)
	f.sink.eventFn = func(ctx context.Context, event *model.WebsiteEvent) error {
		return storeErr
	}

	_, err := f.svc.Ingest(context.Background(), pageviewRequest())
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected the storage error to propagate, got %v", err)
	}
}

func TestIngest_ForeignTokenIsIgnored(t *testing.T) {
	f := newFixture(t, nil)

	foreign, err := tracker.EncodeCacheToken(tracker.CacheClaims{
		SourceID:  tracker.DeriveID("other-site"),
		SessionID: tracker.DeriveID("s"),
		VisitID:   tracker.DeriveID("v"),
		IssuedAt:  f.now.Unix(),
	}, testSecret)
	if err != nil {
		t.Fatalf("EncodeCacheToken returned error: %v", err)
	}

	req := pageviewRequest()
	req.CacheHeader = foreign

	if _, err := f.svc.Ingest(context.Background(), req); err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}
	if f.websites.getCalls != 1 {
		t.Fatal("expected a foreign token to be treated as a cache miss")
	}
	if len(f.sink.sessions) != 1 {
		t.Fatal("expected full resolution including session creation")
	}
}

func TestIngest_StreamSinkSkipsSessionRows(t *testing.T) {
	f := newFixture(t, func(f *fixture) {
		f.sink.sessionRows = false
	})

	if _, err := f.svc.Ingest(context.Background(), pageviewRequest()); err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}
	if len(f.sink.sessions) != 0 {
		t.Fatal("expected no session rows when the sink embeds sessions")
	}
	if len(f.sink.events) != 1 {
		t.Fatal("expected the event write to happen regardless")
	}

	ev := f.sink.events[0]
	if ev.Browser == "" || ev.Screen == "" {
		t.Fatal("expected the session snapshot embedded in the event")
	}
}

func TestIngest_CorruptTokenDowngradesToMiss(t *testing.T) {
	f := newFixture(t, nil)

	req := pageviewRequest()
	req.CacheHeader = "garbage.token.value"

	res, err := f.svc.Ingest(context.Background(), req)
	if err != nil {
		t.Fatalf("expected a corrupt token to be silently ignored, got %v", err)
	}
	if res.SessionID == "" {
		t.Fatal("expected full resolution to proceed")
	}
}
