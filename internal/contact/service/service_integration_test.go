//go:build integration

package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"coalesce/internal/contact/store/postgres"
	"coalesce/pkg/testutil/containers"
)

// IdentifyPostgresSuite runs the reconciliation engine against a real
// PostgreSQL store, where serializable transactions and the live-pair unique
// index provide the conflict signal the retry loop consumes.
type IdentifyPostgresSuite struct {
	suite.Suite
	pg  *containers.PostgresContainer
	svc *Service
	ctx context.Context
}

func TestIdentifyPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(IdentifyPostgresSuite))
}

func (s *IdentifyPostgresSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.ctx = context.Background()

	svc, err := New(postgres.New(s.pg.DB), NewShardedLocker(),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)
	s.svc = svc
}

func (s *IdentifyPostgresSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(s.ctx, "contacts"))
}

func (s *IdentifyPostgresSuite) TestEndToEndMerge() {
	p1, err := s.svc.Identify(s.ctx, "a@x.com", "")
	s.Require().NoError(err)
	p2, err := s.svc.Identify(s.ctx, "", "222")
	s.Require().NoError(err)
	s.NotEqual(p1.PrimaryContactID, p2.PrimaryContactID)

	merged, err := s.svc.Identify(s.ctx, "a@x.com", "222")
	s.Require().NoError(err)

	s.Equal(p1.PrimaryContactID, merged.PrimaryContactID)
	s.Equal([]string{"a@x.com"}, merged.Emails)
	s.Equal([]string{"222"}, merged.PhoneNumbers)
	s.Equal([]int64{p2.PrimaryContactID}, merged.SecondaryContactIDs)
}

func (s *IdentifyPostgresSuite) TestConcurrentFirstTimeRequestsCreateOnePrimary() {
	const callers = 8

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
		s.Equal(primaryIDs[0], id)
	}

	var count int
	s.Require().NoError(s.pg.DB.QueryRowContext(s.ctx,
		`SELECT count(*) FROM contacts WHERE deleted_at IS NULL`).Scan(&count))
	s.Equal(1, count)
}

func (s *IdentifyPostgresSuite) TestConcurrentOverlappingUpdatesKeepOnePrimary() {
	_, err := s.svc.Identify(s.ctx, "a@x.com", "111")
	s.Require().NoError(err)

	phones := []string{"222", "333", "444"}
	g, ctx := errgroup.WithContext(s.ctx)
	for _, phone := range phones {
		phone := phone
		g.Go(func() error {
			_, err := s.svc.Identify(ctx, "a@x.com", phone)
			return err
		})
	}
	s.Require().NoError(g.Wait())

	view, err := s.svc.Identify(s.ctx, "a@x.com", "")
	s.Require().NoError(err)
	s.ElementsMatch([]string{"111", "222", "333", "444"}, view.PhoneNumbers)

	var primaries int
	s.Require().NoError(s.pg.DB.QueryRowContext(s.ctx,
		`SELECT count(*) FROM contacts WHERE link_precedence = 'primary' AND deleted_at IS NULL`).Scan(&primaries))
	s.Equal(1, primaries)
}
