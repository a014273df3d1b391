//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"greengate/internal/patient/models"
	id "greengate/pkg/domain"
	"greengate/pkg/platform/sentinel"
	"greengate/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	container *containers.PostgresContainer
	store     *Postgres
	ctx       context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.container = containers.NewPostgresContainer(s.T())
	s.store = NewPostgres(s.container.Pool)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.container.TruncateTables(s.ctx, "patient_records"))
}

func (s *PostgresStoreSuite) newRecord(partnerClientID string) *models.Record {
	record, err := models.NewRecord(id.NewRecordID(), id.NewUserID(), partnerClientID, "ZA",
		"patient@example.com", time.Now().UTC().Truncate(time.Microsecond))
	s.Require().NoError(err)
	return record
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	record := s.newRecord("dg-100")
	s.Require().NoError(s.store.Create(s.ctx, record))

	byUser, err := s.store.FindByUserID(s.ctx, record.UserID)
	s.Require().NoError(err)
	s.Equal(record.PartnerClientID, byUser.PartnerClientID)
	s.Equal(record.Email, byUser.Email)

	byClient, err := s.store.FindByPartnerClientID(s.ctx, "dg-100")
	s.Require().NoError(err)
	s.Equal(record.UserID, byClient.UserID)
}

func (s *PostgresStoreSuite) TestUniqueConstraints() {
	record := s.newRecord("dg-200")
	s.Require().NoError(s.store.Create(s.ctx, record))

	dupUser := s.newRecord("dg-201")
	dupUser.UserID = record.UserID
	s.ErrorIs(s.store.Create(s.ctx, dupUser), sentinel.ErrConflict)

	dupClient := s.newRecord("dg-200")
	s.ErrorIs(s.store.Create(s.ctx, dupClient), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestUpsertReplacesByUser() {
	record := s.newRecord("local-abc")
	s.Require().NoError(s.store.Create(s.ctx, record))

	record.PartnerClientID = "dg-300"
	record.KYCLink = "https://kyc.example/300"
	s.Require().NoError(s.store.Upsert(s.ctx, record))

	stored, err := s.store.FindByUserID(s.ctx, record.UserID)
	s.Require().NoError(err)
	s.Equal("dg-300", stored.PartnerClientID)
	s.Equal("https://kyc.example/300", stored.KYCLink)
}

func (s *PostgresStoreSuite) TestUpdateVerificationState() {
	record := s.newRecord("dg-400")
	s.Require().NoError(s.store.Create(s.ctx, record))

	record.ApplyVerification(true, "https://kyc.example/400", time.Now().UTC())
	record.ApplyApproval(models.ApprovalVerified, time.Now().UTC())
	s.Require().NoError(s.store.Update(s.ctx, record))

	stored, err := s.store.FindByUserID(s.ctx, record.UserID)
	s.Require().NoError(err)
	s.True(stored.IsKYCVerified)
	s.Equal(models.ApprovalVerified, stored.AdminApproval)
	s.Empty(stored.KYCLink)
}

func (s *PostgresStoreSuite) TestListPending() {
	pending := s.newRecord("dg-500")
	s.Require().NoError(s.store.Create(s.ctx, pending))

	fallback := s.newRecord("local-501")
	s.Require().NoError(s.store.Create(s.ctx, fallback))

	rejected := s.newRecord("dg-502")
	rejected.ApplyApproval(models.ApprovalRejected, time.Now().UTC())
	s.Require().NoError(s.store.Create(s.ctx, rejected))

	verified := s.newRecord("dg-503")
	verified.ApplyVerification(true, "", time.Now().UTC())
	verified.ApplyApproval(models.ApprovalVerified, time.Now().UTC())
	s.Require().NoError(s.store.Create(s.ctx, verified))

	records, err := s.store.ListPending(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal("dg-500", records[0].PartnerClientID)
}

func (s *PostgresStoreSuite) TestDeleteByUserID() {
	record := s.newRecord("dg-600")
	s.Require().NoError(s.store.Create(s.ctx, record))

	s.Require().NoError(s.store.DeleteByUserID(s.ctx, record.UserID))

	_, err := s.store.FindByUserID(s.ctx, record.UserID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
