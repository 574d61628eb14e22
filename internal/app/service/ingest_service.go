package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tovald/pageflow/internal/app/model"
	"github.com/tovald/pageflow/internal/app/repository"
	"github.com/tovald/pageflow/internal/enrich"
	infraprom "github.com/tovald/pageflow/internal/infra/prometheus"
	"github.com/tovald/pageflow/internal/tracker"
	"go.uber.org/zap"
)

// Request is one inbound tracking call, already parsed off the wire but not
// yet validated.
type Request struct {
	Envelope    tracker.Envelope
	CacheHeader string

	RemoteIP        string
	ForwardedFor    string
	UserAgentHeader string
}

// Result is the successful response body. BotFiltered marks the decoy path:
// nothing was written and no token was issued, but the client still sees 200.
type Result struct {
	CacheToken  string
	SessionID   string
	VisitID     string
	BotFiltered bool
}

// IngestDeps groups the collaborators of the ingestion pipeline.
type IngestDeps struct {
	Logger   *zap.Logger
	Websites repository.WebsiteRepository
	Sink     EventSink
	Enricher *enrich.Enricher
	Metrics  *infraprom.IngestMetrics

	Secret  []byte
	URLOpts tracker.NormalizeOptions

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// IngestService sequences validation, identity resolution, enrichment and
// persistence for one hit.
type IngestService struct {
	logger   *zap.Logger
	websites repository.WebsiteRepository
	sink     EventSink
	enricher *enrich.Enricher
	metrics  *infraprom.IngestMetrics
	secret   []byte
	urlOpts  tracker.NormalizeOptions
	now      func() time.Time
}

// NewIngestService builds the orchestrator.
func NewIngestService(deps IngestDeps) *IngestService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &IngestService{
		logger:   logger,
		websites: deps.Websites,
		sink:     deps.Sink,
		enricher: deps.Enricher,
		metrics:  deps.Metrics,
		secret:   deps.Secret,
		urlOpts:  deps.URLOpts,
		now:      now,
	}
}

// Ingest runs the pipeline. Error values map to client statuses upstream:
// tracker.ErrValidation and ErrUnknownWebsite to 400, ErrBlockedIP to 403,
// anything else to a scrubbed 500. Failures before the bot/IP gate cause no
// writes; past it the pipeline is best-effort with no transaction across the
// session write, the event write and token issuance.
func (s *IngestService) Ingest(ctx context.Context, req Request) (*Result, error) {
	payload, source, err := req.Envelope.Validate()
	if err != nil {
		return nil, err
	}

	cache := tracker.DecodeCacheToken(req.CacheHeader, s.secret)
	if cache != nil && cache.SourceID != source.ID {
		// A token minted for another source proves nothing about this one.
		cache = nil
	}
	if cache != nil {
		s.metrics.TokenHit()
	} else {
		s.metrics.TokenMiss()
	}

	// A valid token already proves the website existed when it was minted,
	// so the lookup only runs on token-less website hits.
	if source.Kind == tracker.SourceWebsite && cache == nil {
		if _, err := s.websites.GetByID(ctx, source.ID.String()); err != nil {
			if errors.Is(err, repository.ErrWebsiteNotFound) {
				return nil, ErrUnknownWebsite
			}
			return nil, fmt.Errorf("website lookup: %w", err)
		}
	}

	client := s.enricher.Resolve(ctx, enrich.Request{
		RemoteIP:     req.RemoteIP,
		ForwardedFor: req.ForwardedFor,
		UserAgent:    req.UserAgentHeader,
		OverrideIP:   payload.IP,
		OverrideUA:   payload.UserAgent,
		Screen:       payload.Screen,
	})

	if s.enricher.IsBot(client.UserAgent) {
		s.metrics.BotFiltered()
		s.logger.Debug("bot filtered",
			zap.String("source", string(source.Kind)),
			zap.String("user_agent", client.UserAgent),
		)
		return &Result{BotFiltered: true}, nil
	}

	if s.enricher.IsBlockedIP(client.IP) {
		s.metrics.BlockedHit()
		return nil, ErrBlockedIP
	}

	now := s.now()
	identity := tracker.Resolve(tracker.ResolveInput{
		SourceID:      source.ID,
		IP:            client.IP,
		UserAgent:     client.UserAgent,
		DistinctID:    payload.ID,
		HasClientTime: payload.Timestamp > 0,
		Cache:         cache,
		Now:           now,
	})

	// A valid cache token implies the session row already exists.
	if s.sink.RequiresSessionRows() && cache == nil {
		session := &model.Session{
			ID:         identity.SessionID.String(),
			WebsiteID:  source.ID.String(),
			Browser:    client.Browser,
			OS:         client.OS,
			Device:     client.Device,
			Screen:     payload.Screen,
			Language:   payload.Language,
			Country:    client.Location.Country,
			Region:     client.Location.Region,
			City:       client.Location.City,
			DistinctID: payload.ID,
			CreatedAt:  now,
		}
		if err := s.sink.CreateSession(ctx, session); err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
	}

	switch req.Envelope.Type {
	case tracker.TypeIdentify:
		if len(payload.Data) > 0 {
			if err := s.sink.SaveSessionData(ctx, identity.SessionID.String(), payload.ID, payload.Data); err != nil {
				return nil, fmt.Errorf("save session data: %w", err)
			}
		}
		// An identify call without data is a no-op, not an error.
	default:
		if err := s.saveEvent(ctx, payload, source, client, identity, now); err != nil {
			return nil, err
		}
	}

	token, err := tracker.EncodeCacheToken(tracker.CacheClaims{
		SourceID:  source.ID,
		SessionID: identity.SessionID,
		VisitID:   identity.VisitID,
		IssuedAt:  identity.IssuedAt,
	}, s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign cache token: %w", err)
	}

	return &Result{
		CacheToken: token,
		SessionID:  identity.SessionID.String(),
		VisitID:    identity.VisitID.String(),
	}, nil
}

func (s *IngestService) saveEvent(ctx context.Context, payload *tracker.Payload, source tracker.Source, client enrich.ClientInfo, identity tracker.Identity, now time.Time) error {
	page := tracker.NormalizePage(payload.URL, payload.Hostname, s.urlOpts)

	var ref tracker.PageInfo
	if payload.Referrer != "" {
		ref = tracker.NormalizePage(payload.Referrer, payload.Hostname, s.urlOpts)
	}

	eventType := tracker.Classify(source, payload.Name)

	var eventData string
	if len(payload.Data) > 0 {
		raw, err := json.Marshal(payload.Data)
		if err != nil {
			return fmt.Errorf("marshal event data: %w", err)
		}
		eventData = string(raw)
	}

	createdAt := now
	if payload.Timestamp > 0 {
		createdAt = time.Unix(payload.Timestamp, 0).UTC()
	}

	event := &model.WebsiteEvent{
		ID:        uuid.NewString(),
		WebsiteID: source.ID.String(),
		SessionID: identity.SessionID.String(),
		VisitID:   identity.VisitID.String(),
		EventType: eventType,
		CreatedAt: createdAt,

		Hostname:  payload.Hostname,
		PageTitle: tracker.SafeDecode(payload.Title),
		URLPath:   page.Path,
		URLQuery:  page.Query,

		ReferrerPath:   ref.Path,
		ReferrerQuery:  ref.Query,
		ReferrerDomain: ref.Domain,

		UTMSource:   page.UTM.Source,
		UTMMedium:   page.UTM.Medium,
		UTMCampaign: page.UTM.Campaign,
		UTMContent:  page.UTM.Content,
		UTMTerm:     page.UTM.Term,

		Gclid:   page.Clicks.Gclid,
		Fbclid:  page.Clicks.Fbclid,
		Msclkid: page.Clicks.Msclkid,
		Ttclid:  page.Clicks.Ttclid,
		LiFatID: page.Clicks.LiFatID,
		Twclid:  page.Clicks.Twclid,

		EventName: payload.Name,
		EventData: eventData,
		Tag:       payload.Tag,

		Browser:    client.Browser,
		OS:         client.OS,
		Device:     client.Device,
		Screen:     payload.Screen,
		Language:   payload.Language,
		Country:    client.Location.Country,
		Region:     client.Location.Region,
		City:       client.Location.City,
		DistinctID: payload.ID,
	}

	if err := s.sink.SaveEvent(ctx, event); err != nil {
		return fmt.Errorf("save event: %w", err)
	}

	s.metrics.EventStored(eventType)
	return nil
}
