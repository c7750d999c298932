//go:build integration

package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"kycflow/internal/domain"
	"kycflow/internal/storage"
	"kycflow/pkg/testutil/containers"
)

type RedisEntrySuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *storage.RedisEntryStore
}

func TestRedisEntrySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisEntrySuite))
}

func (s *RedisEntrySuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = storage.NewRedisEntryStore(s.redis.Client)
}

func (s *RedisEntrySuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisEntrySuite) TestRoundTrip() {
	ctx := context.Background()
	entry := domain.Entry{
		ID:     "entry-1",
		ListID: "list-1",
		Kind:   domain.KindNationalID,
		IdentityNo: domain.EncryptedField{
			Ciphertext: "b2s=",
			IV:         "aXYtYnl0ZXM=",
		},
		Status: domain.EntryPending,
	}

	s.Require().NoError(s.store.Save(ctx, entry))

	found, err := s.store.FindByID(ctx, "entry-1")
	s.Require().NoError(err)
	s.Equal(entry, found)
}

func (s *RedisEntrySuite) TestFindMissing() {
	_, err := s.store.FindByID(context.Background(), "nope")
	s.Require().ErrorIs(err, storage.ErrNotFound)
}

func (s *RedisEntrySuite) TestListByList() {
	ctx := context.Background()
	for _, id := range []string{"e1", "e2", "e3"} {
		s.Require().NoError(s.store.Save(ctx, domain.Entry{ID: id, ListID: "list-1", Status: domain.EntryPending}))
	}
	s.Require().NoError(s.store.Save(ctx, domain.Entry{ID: "other", ListID: "list-2", Status: domain.EntryPending}))

	entries, err := s.store.ListByList(ctx, "list-1")
	s.Require().NoError(err)
	s.Len(entries, 3)
}

func (s *RedisEntrySuite) TestListByListKeepsInsertionOrder() {
	ctx := context.Background()
	ids := []string{"e9", "e2", "e7", "e1", "e5"}
	for _, id := range ids {
		s.Require().NoError(s.store.Save(ctx, domain.Entry{ID: id, ListID: "list-1", Status: domain.EntryPending}))
	}

	// Updating an entry must not move it; bulk resume trusts the order.
	s.Require().NoError(s.store.Save(ctx, domain.Entry{ID: "e2", ListID: "list-1", Status: domain.EntryVerified}))

	entries, err := s.store.ListByList(ctx, "list-1")
	s.Require().NoError(err)
	s.Require().Len(entries, len(ids))
	for i, id := range ids {
		s.Equal(id, entries[i].ID)
	}
}

func (s *RedisEntrySuite) TestSaveOverwrites() {
	ctx := context.Background()
	entry := domain.Entry{ID: "e1", ListID: "list-1", Status: domain.EntryPending}
	s.Require().NoError(s.store.Save(ctx, entry))

	entry.Status = domain.EntryVerified
	s.Require().NoError(s.store.Save(ctx, entry))

	found, err := s.store.FindByID(ctx, "e1")
	s.Require().NoError(err)
	s.Equal(domain.EntryVerified, found.Status)

	entries, err := s.store.ListByList(ctx, "list-1")
	s.Require().NoError(err)
	s.Len(entries, 1)
}
