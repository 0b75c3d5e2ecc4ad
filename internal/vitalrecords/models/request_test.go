package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	dErrors "ddrc/pkg/domain-errors"
)

type RequestSuite struct {
	suite.Suite
	now time.Time
	req *Request
}

func TestRequestSuite(t *testing.T) {
	suite.Run(t, new(RequestSuite))
}

func (s *RequestSuite) SetupTest() {
	s.now = time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC)
	req, err := NewRequest(uuid.New(), "palisades", s.now)
	s.Require().NoError(err)
	s.req = req
}

func (s *RequestSuite) TestNewRequest() {
	s.Run("defaults", func() {
		s.Equal(StatusInitialized, s.req.Status)
		s.Equal(1, s.req.NumberOfRecords)
		s.Equal(s.now, s.req.CreatedAt)
	})

	s.Run("unknown fire rejected", func() {
		_, err := NewRequest(uuid.New(), "camp", s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *RequestSuite) TestFullLifecycle() {
	steps := []struct {
		apply  func() error
		status Status
		stamp  func() *time.Time
	}{
		{func() error { return s.req.CompleteStart(s.now) }, StatusStarted, func() *time.Time { return s.req.StartedAt }},
		{func() error { return s.req.CompleteSubmit(s.now) }, StatusSubmitted, func() *time.Time { return s.req.SubmittedAt }},
		{func() error { return s.req.CompleteEnqueue(s.now) }, StatusEnqueued, func() *time.Time { return s.req.EnqueuedAt }},
		{func() error { return s.req.CompletePackage(s.now) }, StatusPackaged, func() *time.Time { return s.req.PackagedAt }},
		{func() error { return s.req.CompleteSend(s.now) }, StatusSent, func() *time.Time { return s.req.SentAt }},
	}
	for _, step := range steps {
		s.Require().NoError(step.apply())
		s.Equal(step.status, s.req.Status)
		s.Require().NotNil(step.stamp())
		s.Equal(s.now, *step.stamp())
	}
	s.Require().NoError(s.req.Finish())
	s.Equal(StatusFinished, s.req.Status)
}

func (s *RequestSuite) TestTransitionFromWrongStatus() {
	s.Run("submit before start", func() {
		err := s.req.CompleteSubmit(s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		s.Equal(StatusInitialized, s.req.Status)
		s.Nil(s.req.SubmittedAt)
	})

	s.Run("start twice", func() {
		s.Require().NoError(s.req.CompleteStart(s.now))
		err := s.req.CompleteStart(s.now.Add(time.Hour))
		s.Require().Error(err)
		s.Equal(s.now, *s.req.StartedAt)
	})

	s.Run("finish from started", func() {
		s.Require().Error(s.req.Finish())
		s.Equal(StatusStarted, s.req.Status)
	})
}

func (s *RequestSuite) TestAlreadySubmitted() {
	cases := map[Status]bool{
		StatusInitialized: false,
		StatusStarted:     false,
		StatusSubmitted:   true,
		StatusEnqueued:    true,
		StatusPackaged:    true,
		StatusSent:        true,
		StatusFinished:    true,
	}
	for status, want := range cases {
		s.req.Status = status
		s.Equal(want, s.req.AlreadySubmitted(), string(status))
	}
}

func (s *RequestSuite) TestNewMetadata() {
	s.Require().NoError(s.req.CompleteStart(s.now))
	s.Require().NoError(s.req.CompleteSubmit(s.now))
	s.req.NumberOfRecords = 4
	cleaned := s.now.Add(24 * time.Hour)

	md := NewMetadata(s.req, cleaned)
	s.Equal(s.req.ID, md.RequestID)
	s.Equal("palisades", md.Fire)
	s.Equal(4, md.NumberOfRecords)
	s.Equal(s.req.SubmittedAt, md.SubmittedAt)
	s.Equal(cleaned, md.CleanedAt)
}
