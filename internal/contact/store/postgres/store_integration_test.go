//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"coalesce/internal/contact"
	"coalesce/pkg/platform/sentinel"
	"coalesce/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *Store
	ctx   context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = New(s.pg.DB)
	s.ctx = context.Background()
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(s.ctx, "contacts"))
}

func (s *PostgresStoreSuite) TestInsertAndQueryByAttributes() {
	p, err := s.store.InsertPrimary(s.ctx, "a@x.com", "111")
	s.Require().NoError(err)
	s.True(p.IsPrimary())
	s.Nil(p.LinkedTo)
	s.False(p.CreatedAt.IsZero())

	matched, err := s.store.QueryByAttributes(s.ctx, "a@x.com", "")
	s.Require().NoError(err)
	s.Require().Len(matched, 1)
	s.Equal(p.ID, matched[0].ID)
	s.Equal("a@x.com", matched[0].Email)
	s.Equal("111", matched[0].Phone)

	matched, err = s.store.QueryByAttributes(s.ctx, "", "111")
	s.Require().NoError(err)
	s.Require().Len(matched, 1)

	matched, err = s.store.QueryByAttributes(s.ctx, "", "")
	s.Require().NoError(err)
	s.Empty(matched)
}

func (s *PostgresStoreSuite) TestEmptyAttributesStoredAsNull() {
	p, err := s.store.InsertPrimary(s.ctx, "a@x.com", "")
	s.Require().NoError(err)
	s.Equal("", p.Phone)

	// NULL phone must not collide with another NULL phone at a different email.
	_, err = s.store.InsertPrimary(s.ctx, "b@y.com", "")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestDuplicateLivePairConflicts() {
	_, err := s.store.InsertPrimary(s.ctx, "a@x.com", "111")
	s.Require().NoError(err)

	_, err = s.store.InsertPrimary(s.ctx, "a@x.com", "111")
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestQueryByClusterSpansPrimaryAndSecondaries() {
	p, err := s.store.InsertPrimary(s.ctx, "a@x.com", "")
	s.Require().NoError(err)
	sec, err := s.store.InsertSecondary(s.ctx, "a@x.com", "222", p.ID)
	s.Require().NoError(err)
	s.Require().NotNil(sec.LinkedTo)
	s.Equal(p.ID, *sec.LinkedTo)

	cluster, err := s.store.QueryByCluster(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Require().Len(cluster, 2)
	s.Equal(p.ID, cluster[0].ID)
	s.Equal(sec.ID, cluster[1].ID)
}

func (s *PostgresStoreSuite) TestDemoteAndRepoint() {
	p1, err := s.store.InsertPrimary(s.ctx, "a@x.com", "")
	s.Require().NoError(err)
	p2, err := s.store.InsertPrimary(s.ctx, "b@y.com", "222")
	s.Require().NoError(err)
	_, err = s.store.InsertSecondary(s.ctx, "b@y.com", "333", p2.ID)
	s.Require().NoError(err)

	s.Require().NoError(s.store.Demote(s.ctx, p2.ID, p1.ID))
	s.Require().NoError(s.store.Repoint(s.ctx, p2.ID, p1.ID))

	cluster, err := s.store.QueryByCluster(s.ctx, p1.ID)
	s.Require().NoError(err)
	s.Require().Len(cluster, 3)
	for _, c := range cluster[1:] {
		s.Equal(contact.LinkPrecedenceSecondary, c.LinkPrecedence)
		s.Require().NotNil(c.LinkedTo)
		s.Equal(p1.ID, *c.LinkedTo)
	}
}

func (s *PostgresStoreSuite) TestDemoteUnknownContact() {
	err := s.store.Demote(s.ctx, 4242, 1)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestSoftDeletedContactsExcluded() {
	p, err := s.store.InsertPrimary(s.ctx, "a@x.com", "111")
	s.Require().NoError(err)

	_, err = s.pg.DB.ExecContext(s.ctx, `UPDATE contacts SET deleted_at = now() WHERE id = $1`, p.ID)
	s.Require().NoError(err)

	matched, err := s.store.QueryByAttributes(s.ctx, "a@x.com", "111")
	s.Require().NoError(err)
	s.Empty(matched)

	cluster, err := s.store.QueryByCluster(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Empty(cluster)

	// The live-pair index only covers live rows, so the pair is reusable.
	_, err = s.store.InsertPrimary(s.ctx, "a@x.com", "111")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestRunInTxRollsBackOnError() {
	boom := errors.New("boom")

	err := s.store.RunInTx(s.ctx, func(ctx context.Context) error {
		if _, err := s.store.InsertPrimary(ctx, "a@x.com", ""); err != nil {
			return err
		}
		return boom
	})
	s.Require().ErrorIs(err, boom)

	matched, err := s.store.QueryByAttributes(s.ctx, "a@x.com", "")
	s.Require().NoError(err)
	s.Empty(matched)
}

func (s *PostgresStoreSuite) TestRunInTxWritesAreVisibleInsideAndAfter() {
	err := s.store.RunInTx(s.ctx, func(ctx context.Context) error {
		p, err := s.store.InsertPrimary(ctx, "a@x.com", "")
		if err != nil {
			return err
		}
		// Reads inside the transaction see the uncommitted insert.
		matched, err := s.store.QueryByAttributes(ctx, "a@x.com", "")
		if err != nil {
			return err
		}
		s.Require().Len(matched, 1)
		s.Equal(p.ID, matched[0].ID)
		return nil
	})
	s.Require().NoError(err)

	matched, err := s.store.QueryByAttributes(s.ctx, "a@x.com", "")
	s.Require().NoError(err)
	s.Len(matched, 1)
}

func (s *PostgresStoreSuite) TestPing() {
	s.Require().NoError(s.store.Ping(s.ctx))
}
