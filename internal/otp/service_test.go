package otp_test

//go:generate mockgen -source=sender.go -destination=mocks/sender_mock.go -package=mocks Sender

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"regdesk/internal/otp"
	"regdesk/internal/otp/mocks"
	dErrors "regdesk/pkg/domain-errors"
)

var codePattern = regexp.MustCompile(`\b(\d{6})\b`)

type ServiceSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	sender  *mocks.MockSender
	service *otp.Service
	now     time.Time
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.sender = mocks.NewMockSender(s.ctrl)
	s.now = time.Now()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := otp.NewService(otp.NewInMemoryStore(), s.sender, otp.Config{
		CodeTTL:     10 * time.Minute,
		MaxAttempts: 5,
	}, otp.WithLogger(logger), otp.WithClock(func() time.Time { return s.now }))
	require.NoError(s.T(), err)
	s.service = svc
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

// expectSend captures the numeric code from the outgoing message body.
func (s *ServiceSuite) expectSend(email string, code *string) {
	s.sender.EXPECT().
		Send(gomock.Any(), email, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _, body string) error {
			match := codePattern.FindStringSubmatch(body)
			require.NotNil(s.T(), match, "message body must contain a 6-digit code")
			*code = match[1]
			return nil
		})
}

func (s *ServiceSuite) TestCreateAndSendDeliversSixDigitCode() {
	var code string
	s.expectSend("alice@example.com", &code)

	ok, err := s.service.CreateAndSend(context.Background(), "alice@example.com", otp.PurposeLogin)
	require.NoError(s.T(), err)
	assert.True(s.T(), ok)
	assert.Len(s.T(), code, 6)
}

func (s *ServiceSuite) TestCreateAndSendDeliveryFailureIsBoolean() {
	s.sender.EXPECT().
		Send(gomock.Any(), "alice@example.com", gomock.Any(), gomock.Any()).
		Return(errors.New("smtp unreachable"))

	ok, err := s.service.CreateAndSend(context.Background(), "alice@example.com", otp.PurposeLogin)
	require.NoError(s.T(), err)
	assert.False(s.T(), ok)
}

func (s *ServiceSuite) TestCreateAndSendValidatesInput() {
	_, err := s.service.CreateAndSend(context.Background(), "", otp.PurposeLogin)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = s.service.CreateAndSend(context.Background(), "a@example.com", otp.Purpose("sms"))
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestVerifySuccessConsumesExactlyOnce() {
	var code string
	s.expectSend("alice@example.com", &code)
	_, err := s.service.CreateAndSend(context.Background(), "alice@example.com", otp.PurposeLogin)
	require.NoError(s.T(), err)

	require.NoError(s.T(), s.service.Verify(context.Background(), "alice@example.com", otp.PurposeLogin, code))

	// Replaying the same correct code must not verify twice.
	err = s.service.Verify(context.Background(), "alice@example.com", otp.PurposeLogin, code)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestVerifyNoChallenge() {
	err := s.service.Verify(context.Background(), "nobody@example.com", otp.PurposeLogin, "123456")
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestVerifyExpiredChallenge() {
	var code string
	s.expectSend("alice@example.com", &code)
	_, err := s.service.CreateAndSend(context.Background(), "alice@example.com", otp.PurposeLogin)
	require.NoError(s.T(), err)

	s.now = s.now.Add(11 * time.Minute)
	err = s.service.Verify(context.Background(), "alice@example.com", otp.PurposeLogin, code)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeExpired))
}

func (s *ServiceSuite) TestVerifyMismatchIncrementsAttempts() {
	var code string
	s.expectSend("alice@example.com", &code)
	_, err := s.service.CreateAndSend(context.Background(), "alice@example.com", otp.PurposeLogin)
	require.NoError(s.T(), err)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	for range 4 {
		err := s.service.Verify(context.Background(), "alice@example.com", otp.PurposeLogin, wrong)
		assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvalidToken))
	}

	// Correct code still works while attempts remain.
	require.NoError(s.T(), s.service.Verify(context.Background(), "alice@example.com", otp.PurposeLogin, code))
}

func (s *ServiceSuite) TestBruteForceGuard() {
	var code string
	s.expectSend("alice@example.com", &code)
	_, err := s.service.CreateAndSend(context.Background(), "alice@example.com", otp.PurposeLogin)
	require.NoError(s.T(), err)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	for range 5 {
		err := s.service.Verify(context.Background(), "alice@example.com", otp.PurposeLogin, wrong)
		assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvalidToken))
	}

	// Attempt counter, not time, gates the sixth try - even the correct
	// code is rejected now.
	err = s.service.Verify(context.Background(), "alice@example.com", otp.PurposeLogin, code)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeTooManyAttempts))
}

func (s *ServiceSuite) TestSupersessionInvalidatesPriorChallenge() {
	var first, second string
	s.expectSend("alice@example.com", &first)
	_, err := s.service.CreateAndSend(context.Background(), "alice@example.com", otp.PurposeLogin)
	require.NoError(s.T(), err)

	s.expectSend("alice@example.com", &second)
	_, err = s.service.CreateAndSend(context.Background(), "alice@example.com", otp.PurposeLogin)
	require.NoError(s.T(), err)

	if first == second {
		s.T().Skip("codes collided; supersession indistinguishable this run")
	}

	// The first challenge's code no longer verifies.
	err = s.service.Verify(context.Background(), "alice@example.com", otp.PurposeLogin, first)
	assert.Error(s.T(), err)

	require.NoError(s.T(), s.service.Verify(context.Background(), "alice@example.com", otp.PurposeLogin, second))
}

func (s *ServiceSuite) TestChallengesAreScopedByPurpose() {
	var loginCode string
	s.expectSend("alice@example.com", &loginCode)
	_, err := s.service.CreateAndSend(context.Background(), "alice@example.com", otp.PurposeLogin)
	require.NoError(s.T(), err)

	err = s.service.Verify(context.Background(), "alice@example.com", otp.PurposeRegistration, loginCode)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestDeleteExpiredSweep() {
	var code string
	s.expectSend("alice@example.com", &code)
	_, err := s.service.CreateAndSend(context.Background(), "alice@example.com", otp.PurposeLogin)
	require.NoError(s.T(), err)

	s.now = s.now.Add(11 * time.Minute)
	count, err := s.service.DeleteExpired(context.Background())
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 1, count)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
