package service

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"coalesce/internal/audit"
	"coalesce/internal/contact"
	"coalesce/internal/contact/store/memory"
	dErrors "coalesce/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite
	store   *memory.Store
	auditor *audit.MemoryPublisher
	svc     *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	// Strictly increasing clock so creation order is unambiguous.
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var ticks atomic.Int64
	clock := func() time.Time {
		return base.Add(time.Duration(ticks.Add(1)) * time.Second)
	}

	s.store = memory.New(memory.WithClock(clock))
	s.auditor = audit.NewMemoryPublisher()
	s.ctx = context.Background()

	svc, err := New(s.store, NewShardedLocker(),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(s.auditor),
	)
	s.Require().NoError(err)
	s.svc = svc
}

func (s *ServiceSuite) identify(email, phone string) contact.ConsolidatedView {
	view, err := s.svc.Identify(s.ctx, email, phone)
	s.Require().NoError(err)
	return view
}

func (s *ServiceSuite) TestNewIdentityCreatesSinglePrimary() {
	view := s.identify("a@x.com", "")

	s.Equal([]string{"a@x.com"}, view.Emails)
	s.Empty(view.PhoneNumbers)
	s.Empty(view.SecondaryContactIDs)

	cluster, err := s.store.QueryByCluster(s.ctx, view.PrimaryContactID)
	s.Require().NoError(err)
	s.Require().Len(cluster, 1)
	s.True(cluster[0].IsPrimary())
	s.Nil(cluster[0].LinkedTo)

	events := s.auditor.Events()
	s.Require().Len(events, 1)
	s.Equal(audit.ActionContactCreated, events[0].Action)
	s.Equal(view.PrimaryContactID, events[0].PrimaryContactID)
}

func (s *ServiceSuite) TestRejectsRequestWithoutAttributes() {
	_, err := s.svc.Identify(s.ctx, "", "   ")
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeBadRequest))
	s.Empty(s.auditor.Events())
}

func (s *ServiceSuite) TestSurroundingWhitespaceIsTrimmedBeforeMatching() {
	first := s.identify("a@x.com", "111")

	// Padded input is the same observation, not a new identity.
	padded := s.identify("  a@x.com ", " 111\t")
	s.Equal(first, padded)

	cluster, err := s.store.QueryByCluster(s.ctx, first.PrimaryContactID)
	s.Require().NoError(err)
	s.Len(cluster, 1)

	// Case still distinguishes: only whitespace is normalized.
	upper := s.identify("A@X.com", "")
	s.NotEqual(first.PrimaryContactID, upper.PrimaryContactID)
}

func (s *ServiceSuite) TestRepeatedRequestIsIdempotent() {
	first := s.identify("a@x.com", "111")
	second := s.identify("a@x.com", "111")

	s.Equal(first, second)

	cluster, err := s.store.QueryByCluster(s.ctx, first.PrimaryContactID)
	s.Require().NoError(err)
	s.Len(cluster, 1, "second call must not create another contact")
}

func (s *ServiceSuite) TestNewInformationAppendsSecondary() {
	first := s.identify("a@x.com", "111")

	view := s.identify("a@x.com", "222")

	s.Equal(first.PrimaryContactID, view.PrimaryContactID)
	s.Equal([]string{"a@x.com"}, view.Emails)
	s.Equal([]string{"111", "222"}, view.PhoneNumbers, "primary's phone first")
	s.Require().Len(view.SecondaryContactIDs, 1)

	cluster, err := s.store.QueryByCluster(s.ctx, view.PrimaryContactID)
	s.Require().NoError(err)
	s.Require().Len(cluster, 2)
	secondary := cluster[1]
	s.Equal(contact.LinkPrecedenceSecondary, secondary.LinkPrecedence)
	s.Require().NotNil(secondary.LinkedTo)
	s.Equal(view.PrimaryContactID, *secondary.LinkedTo)
	// The secondary carries the full incoming pair.
	s.Equal("a@x.com", secondary.Email)
	s.Equal("222", secondary.Phone)

	// Same observation again adds nothing.
	again := s.identify("a@x.com", "222")
	s.Equal(view, again)
	cluster, err = s.store.QueryByCluster(s.ctx, view.PrimaryContactID)
	s.Require().NoError(err)
	s.Len(cluster, 2)
}

func (s *ServiceSuite) TestTwoPrimaryMerge() {
	p1 := s.identify("a@x.com", "")
	p2 := s.identify("", "222")
	s.NotEqual(p1.PrimaryContactID, p2.PrimaryContactID)

	merged := s.identify("a@x.com", "222")

	s.Equal(p1.PrimaryContactID, merged.PrimaryContactID, "oldest primary survives")
	s.Equal([]string{"a@x.com"}, merged.Emails)
	s.Equal([]string{"222"}, merged.PhoneNumbers)
	s.Equal([]int64{p2.PrimaryContactID}, merged.SecondaryContactIDs)

	// The demoted primary must no longer resolve as a primary.
	byPhone := s.identify("", "222")
	s.Equal(p1.PrimaryContactID, byPhone.PrimaryContactID)

	s.assertOnePrimary(merged.PrimaryContactID)

	var mergeEvents []audit.Event
	for _, e := range s.auditor.Events() {
		if e.Action == audit.ActionClustersMerged {
			mergeEvents = append(mergeEvents, e)
		}
	}
	s.Require().Len(mergeEvents, 1)
	s.Equal([]int64{p2.PrimaryContactID}, mergeEvents[0].DemotedIDs)
}

func (s *ServiceSuite) TestMergeRepointsDemotedPrimarysSecondaries() {
	p1 := s.identify("a@x.com", "")
	_ = s.identify("b@y.com", "222")
	withSecondary := s.identify("b@y.com", "333")
	s.Require().Len(withSecondary.SecondaryContactIDs, 1)
	secondaryID := withSecondary.SecondaryContactIDs[0]

	// The request overlaps P1 by email and P2 by phone; S shares neither.
	merged := s.identify("a@x.com", "222")
	s.Equal(p1.PrimaryContactID, merged.PrimaryContactID)

	cluster, err := s.store.QueryByCluster(s.ctx, p1.PrimaryContactID)
	s.Require().NoError(err)

	var foundSecondary bool
	for _, c := range cluster {
		if c.ID == secondaryID {
			foundSecondary = true
			s.Require().NotNil(c.LinkedTo)
			s.Equal(p1.PrimaryContactID, *c.LinkedTo, "repointed to the surviving primary, not the demoted one")
		}
	}
	s.True(foundSecondary, "the demoted primary's secondary must follow it into the merged cluster")

	// Resolving by the repointed secondary's own attribute lands on P1.
	byOldAttribute := s.identify("", "333")
	s.Equal(p1.PrimaryContactID, byOldAttribute.PrimaryContactID)

	s.assertOnePrimary(p1.PrimaryContactID)
}

func (s *ServiceSuite) TestMatchThroughSecondaryOnlyResolvesPrimary() {
	s.identify("a@x.com", "111")
	s.identify("a@x.com", "222")

	// Phone 222 only matches the secondary; the view must still be the full
	// cluster under the original primary.
	view := s.identify("", "222")
	s.Equal([]string{"a@x.com"}, view.Emails)
	s.Equal([]string{"111", "222"}, view.PhoneNumbers)
}

func (s *ServiceSuite) TestSoftDeletedContactsAreInvisible() {
	first := s.identify("a@x.com", "")
	s.Require().NoError(s.store.SoftDelete(s.ctx, first.PrimaryContactID))

	second := s.identify("a@x.com", "")
	s.NotEqual(first.PrimaryContactID, second.PrimaryContactID)
}

func (s *ServiceSuite) TestConcurrentFirstTimeRequestsCreateOnePrimary() {
	const callers = 16

	primaryIDs := make([]int64, callers)
	g, ctx := errgroup.WithContext(s.ctx)
	for i := 0; i < callers; i++ {
		i := i
		g.Go(func() error {
			view, err := s.svc.Identify(ctx, "race@x.com", "999")
			if err != nil {
				return err
			}
			primaryIDs[i] = view.PrimaryContactID
			return nil
		})
	}
	s.Require().NoError(g.Wait())

	for _, id := range primaryIDs[1:] {
		s.Equal(primaryIDs[0], id, "every caller must observe the same primary")
	}

	cluster, err := s.store.QueryByCluster(s.ctx, primaryIDs[0])
	s.Require().NoError(err)
	s.Len(cluster, 1, "exactly one contact may exist for the identity")
}

func (s *ServiceSuite) TestConcurrentOverlappingUpdatesStayConsistent() {
	base := s.identify("a@x.com", "111")

	phones := []string{"222", "333", "444", "555"}
	g, ctx := errgroup.WithContext(s.ctx)
	for _, phone := range phones {
		phone := phone
		g.Go(func() error {
			_, err := s.svc.Identify(ctx, "a@x.com", phone)
			return err
		})
	}
	s.Require().NoError(g.Wait())

	view := s.identify("a@x.com", "")
	s.Equal(base.PrimaryContactID, view.PrimaryContactID)
	s.ElementsMatch([]string{"111", "222", "333", "444", "555"}, view.PhoneNumbers)
	s.Len(view.SecondaryContactIDs, len(phones))
	s.assertOnePrimary(base.PrimaryContactID)
}

// assertOnePrimary checks the cluster invariant: exactly one primary member,
// every other member linked directly to it.
func (s *ServiceSuite) assertOnePrimary(primaryID int64) {
	s.T().Helper()

	cluster, err := s.store.QueryByCluster(s.ctx, primaryID)
	s.Require().NoError(err)

	primaries := 0
	for _, c := range cluster {
		if c.IsPrimary() {
			primaries++
			s.Nil(c.LinkedTo)
			continue
		}
		s.Require().NotNil(c.LinkedTo)
		s.Equal(primaryID, *c.LinkedTo)
	}
	s.Equal(1, primaries)
}
