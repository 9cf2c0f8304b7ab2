package simulator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/BearBump/DeliveryTrack/internal/models"
)

type randMock struct{ mock.Mock }

func (m *randMock) Intn(n int) int {
	return m.Called(n).Int(0)
}

type PlannerSuite struct {
	suite.Suite
}

func (s *PlannerSuite) TestBackoffDelay() {
	p := NewPlanner(DefaultPlannerConfig(), nil)
	s.Equal(150*time.Millisecond, p.BackoffDelay(0))
	s.Equal(150*time.Millisecond, p.BackoffDelay(1))
	s.Equal(300*time.Millisecond, p.BackoffDelay(2))
	s.Equal(600*time.Millisecond, p.BackoffDelay(3))
	s.Equal(time.Second, p.BackoffDelay(100))
}

func (s *PlannerSuite) TestSpeedKmh_ByStatus_NoJitter() {
	m := &randMock{}
	p := NewPlanner(PlannerConfig{}, m)
	s.Equal(20.0, p.SpeedKmh(models.StatusPickingUp))
	s.Equal(30.0, p.SpeedKmh(models.StatusEnRoute))
	s.Equal(12.0, p.SpeedKmh(models.StatusNearby))
	m.AssertNotCalled(s.T(), "Intn", mock.Anything)
}

func (s *PlannerSuite) TestSpeedKmh_Jitter_UsesRand() {
	m := &randMock{}
	// Intn(21) -> 0 => -10%
	m.On("Intn", 21).Return(0).Once()
	p := NewPlanner(PlannerConfig{JitterPercent: 10}, m)

	s.InDelta(27.0, p.SpeedKmh(models.StatusEnRoute), 1e-9)
	m.AssertExpectations(s.T())
}

func (s *PlannerSuite) TestNewPlanner_ClampsJitter() {
	p := NewPlanner(PlannerConfig{JitterPercent: 500}, nil)
	s.Equal(90, p.cfg.JitterPercent)
}

func TestPlannerSuite(t *testing.T) {
	suite.Run(t, new(PlannerSuite))
}
