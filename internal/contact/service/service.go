// Package service implements contact identity reconciliation: deciding
// whether an observed (email, phone) pair belongs to a known customer, a new
// customer, or proves that two previously separate clusters are one identity.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"coalesce/internal/audit"
	"coalesce/internal/contact"
	"coalesce/internal/contact/metrics"
	"coalesce/internal/platform/middleware"
	dErrors "coalesce/pkg/domain-errors"
	"coalesce/pkg/platform/sentinel"
)

const defaultMaxRetries = 3

// Service is the reconciliation engine. It owns the concurrency-safety
// contract: every identify runs under attribute-scoped locks and a store
// transaction, and re-runs from the match step on write conflict.
type Service struct {
	store      contact.Store
	locks      Locker
	auditor    audit.Publisher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	maxRetries int
}

// Option configures optional service collaborators.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) {
		s.auditor = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithMaxRetries bounds how many times a conflicted identify is re-run.
func WithMaxRetries(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

func New(store contact.Store, locks Locker, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("contact store is required")
	}
	if locks == nil {
		return nil, errors.New("locker is required")
	}

	svc := &Service{
		store:      store,
		locks:      locks,
		auditor:    audit.NopPublisher{},
		logger:     slog.Default(),
		tracer:     otel.Tracer("coalesce/contact"),
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Identify reconciles one contact observation and returns the consolidated
// view of the cluster it resolved to. At least one of email or phone must be
// supplied. Calling it again with the same arguments is a no-op that returns
// the same view.
func (s *Service) Identify(ctx context.Context, email, phone string) (contact.ConsolidatedView, error) {
	email = strings.TrimSpace(email)
	phone = strings.TrimSpace(phone)
	if email == "" && phone == "" {
		return contact.ConsolidatedView{}, dErrors.New(dErrors.CodeBadRequest, "at least one of email or phoneNumber is required")
	}

	ctx, span := s.tracer.Start(ctx, "contact.identify",
		trace.WithAttributes(
			attribute.Bool("contact.has_email", email != ""),
			attribute.Bool("contact.has_phone", phone != ""),
		))
	defer span.End()

	start := time.Now()

	// Requests whose attribute sets intersect are serialized here; disjoint
	// requests proceed in parallel.
	release, err := s.locks.Acquire(ctx, lockKeys(email, phone))
	if err != nil {
		s.metrics.RecordIdentify("lock_failed", time.Since(start))
		return contact.ConsolidatedView{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not serialize identify request")
	}
	defer release()

	var view contact.ConsolidatedView
	for attempt := 0; ; attempt++ {
		view, err = s.reconcile(ctx, email, phone)
		if err == nil || !errors.Is(err, sentinel.ErrConflict) || attempt >= s.maxRetries {
			break
		}
		// Stale reads must not survive a conflict: the next attempt re-runs
		// the whole unit from the match step.
		s.metrics.RecordConflictRetry()
		s.logger.WarnContext(ctx, "identify hit write conflict, retrying",
			"attempt", attempt+1,
			"request_id", middleware.GetRequestID(ctx),
		)
	}
	if err != nil {
		span.RecordError(err)
		s.metrics.RecordIdentify("error", time.Since(start))
		return contact.ConsolidatedView{}, s.translate(ctx, err)
	}

	s.metrics.RecordIdentify("ok", time.Since(start))
	return view, nil
}

// reconcile executes one attempt of the match-resolve-mutate-reassemble
// sequence as a single store transaction. Audit events are emitted only after
// the transaction commits.
func (s *Service) reconcile(ctx context.Context, email, phone string) (contact.ConsolidatedView, error) {
	var (
		view   contact.ConsolidatedView
		events []audit.Event
	)

	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		matched, err := s.store.QueryByAttributes(ctx, email, phone)
		if err != nil {
			return err
		}

		if len(matched) == 0 {
			created, err := s.store.InsertPrimary(ctx, email, phone)
			if err != nil {
				return err
			}
			s.metrics.RecordContactCreated(string(contact.LinkPrecedencePrimary))
			events = append(events, audit.Event{
				Action:           audit.ActionContactCreated,
				PrimaryContactID: created.ID,
				ContactID:        created.ID,
				RequestID:        middleware.GetRequestID(ctx),
			})
			view, err = BuildView([]contact.Contact{created})
			return err
		}

		// The matcher only sees direct attribute overlap. Expand to full
		// clusters so every involved primary is present even when the match
		// itself returned only secondaries.
		members, err := s.expandClusters(ctx, matched)
		if err != nil {
			return err
		}

		res, ok := Resolve(members, email, phone)
		if !ok {
			return errNoPrimary
		}

		if len(res.Demote) > 0 {
			demotedIDs := make([]int64, 0, len(res.Demote))
			for _, demoted := range res.Demote {
				if err := s.store.Demote(ctx, demoted.ID, res.SurvivingPrimary.ID); err != nil {
					return err
				}
				// Re-target the demoted primary's own dependents; without
				// this the cluster silently fragments for any contact not
				// sharing an attribute with this request.
				if err := s.store.Repoint(ctx, demoted.ID, res.SurvivingPrimary.ID); err != nil {
					return err
				}
				demotedIDs = append(demotedIDs, demoted.ID)
			}
			s.metrics.RecordMerge(len(demotedIDs))
			events = append(events, audit.Event{
				Action:           audit.ActionClustersMerged,
				PrimaryContactID: res.SurvivingPrimary.ID,
				DemotedIDs:       demotedIDs,
				RequestID:        middleware.GetRequestID(ctx),
			})
		}

		if res.HasNewEmail || res.HasNewPhone {
			// The secondary carries the full incoming pair, not just the
			// novel field.
			created, err := s.store.InsertSecondary(ctx, email, phone, res.SurvivingPrimary.ID)
			if err != nil {
				return err
			}
			s.metrics.RecordContactCreated(string(contact.LinkPrecedenceSecondary))
			events = append(events, audit.Event{
				Action:           audit.ActionObservationRecorded,
				PrimaryContactID: res.SurvivingPrimary.ID,
				ContactID:        created.ID,
				RequestID:        middleware.GetRequestID(ctx),
			})
		}

		// Fresh read: demotions and inserts above may have changed membership,
		// so the stale matched set must not feed the view.
		cluster, err := s.store.QueryByCluster(ctx, res.SurvivingPrimary.ID)
		if err != nil {
			return err
		}
		view, err = BuildView(cluster)
		return err
	})
	if err != nil {
		return contact.ConsolidatedView{}, err
	}

	for _, event := range events {
		if err := s.auditor.Emit(ctx, event); err != nil {
			s.logger.WarnContext(ctx, "audit emit failed",
				"action", string(event.Action),
				"error", err,
			)
		}
	}
	return view, nil
}

// expandClusters widens a raw attribute match to the full membership of every
// cluster it touched, deduplicated by contact id.
func (s *Service) expandClusters(ctx context.Context, matched []contact.Contact) ([]contact.Contact, error) {
	primaryIDs := make(map[int64]struct{}, len(matched))
	for _, c := range matched {
		primaryIDs[c.PrimaryID()] = struct{}{}
	}

	seen := make(map[int64]struct{}, len(matched))
	var members []contact.Contact
	for primaryID := range primaryIDs {
		cluster, err := s.store.QueryByCluster(ctx, primaryID)
		if err != nil {
			return nil, err
		}
		for _, c := range cluster {
			if _, ok := seen[c.ID]; ok {
				continue
			}
			seen[c.ID] = struct{}{}
			members = append(members, c)
		}
	}
	return members, nil
}

func (s *Service) translate(ctx context.Context, err error) error {
	var de dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "concurrent updates kept conflicting, retry the request")
	case errors.Is(err, ErrEmptyCluster), errors.Is(err, errNoPrimary):
		s.logger.ErrorContext(ctx, "cluster invariant violated", "error", err)
		return dErrors.Wrap(err, dErrors.CodeInternal, "cluster resolution failed")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "contact store unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "identify failed")
	}
}
