package handler

//go:generate mockgen -source=handler.go -destination=mocks/will-mocks.go -package=mocks Service

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"mywill/internal/will/handler/mocks"
	"mywill/internal/will/models"
	willservice "mywill/internal/will/service"
	dErrors "mywill/pkg/domain-errors"
	"mywill/pkg/testutil"
)

const (
	ownerEmail = "owner@example.com"
	friend     = "friend@example.com"
)

type WillHandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	router  http.Handler
}

func TestWillHandlerSuite(t *testing.T) {
	suite.Run(t, new(WillHandlerSuite))
}

func (s *WillHandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	r := chi.NewRouter()
	New(s.service, logger).Register(r)
	s.router = r
}

func (s *WillHandlerSuite) sampleWill() *models.Will {
	return &models.Will{
		ID:            uuid.New(),
		OwnerEmail:    ownerEmail,
		Title:         "My will",
		Content:       "Everything to the cat",
		AllowedEmails: []string{friend},
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
}

func (s *WillHandlerSuite) TestGetWill() {
	will := s.sampleWill()

	s.Run("disclosed", func() {
		s.service.EXPECT().GetWill(gomock.Any(), will.ID, friend).Return(will, nil)
		req := testutil.WithCaller(testutil.NewRequest(s.T(), http.MethodGet, "/wills/"+will.ID.String()), friend)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "content", "Everything to the cat")
	})

	s.Run("not yet opened and access denied stay distinct", func() {
		s.service.EXPECT().GetWill(gomock.Any(), will.ID, friend).
			Return(nil, dErrors.New(dErrors.CodeForbidden, willservice.MsgNotYetOpened))
		req := testutil.WithCaller(testutil.NewRequest(s.T(), http.MethodGet, "/wills/"+will.ID.String()), friend)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusForbidden)
		notOpened := testutil.UnmarshalErrorResponse(s.T(), rr)

		s.service.EXPECT().GetWill(gomock.Any(), will.ID, "stranger@example.com").
			Return(nil, dErrors.New(dErrors.CodeForbidden, willservice.MsgAccessDenied))
		req = testutil.WithCaller(testutil.NewRequest(s.T(), http.MethodGet, "/wills/"+will.ID.String()), "stranger@example.com")
		rr = testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusForbidden)
		denied := testutil.UnmarshalErrorResponse(s.T(), rr)

		s.Equal(willservice.MsgNotYetOpened, notOpened.ErrorDescription)
		s.Equal(willservice.MsgAccessDenied, denied.ErrorDescription)
	})

	s.Run("invalid id", func() {
		req := testutil.WithCaller(testutil.NewRequest(s.T(), http.MethodGet, "/wills/abc"), friend)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("internal error hides details", func() {
		s.service.EXPECT().GetWill(gomock.Any(), will.ID, friend).Return(nil, errors.New("connection reset"))
		req := testutil.WithCaller(testutil.NewRequest(s.T(), http.MethodGet, "/wills/"+will.ID.String()), friend)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusInternalServerError)
		s.NotContains(rr.Body.String(), "connection reset")
	})
}

func (s *WillHandlerSuite) TestCreateWill() {
	will := s.sampleWill()
	s.service.EXPECT().
		CreateWill(gomock.Any(), ownerEmail, "My will", "Everything to the cat", []string{friend}).
		Return(will, nil)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/wills", createWillRequest{
		Title:         "My will",
		Content:       "Everything to the cat",
		AllowedEmails: []string{friend},
	})
	rr := testutil.DoRequest(s.router, testutil.WithCaller(req, ownerEmail))
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	resp := testutil.UnmarshalResponse[willResponse](s.T(), rr)
	s.Equal(will.ID, resp.ID)
}

func (s *WillHandlerSuite) TestUpdateAndShare() {
	will := s.sampleWill()

	s.Run("update forbidden", func() {
		s.service.EXPECT().UpdateWill(gomock.Any(), will.ID, friend, "t", "c").
			Return(nil, dErrors.New(dErrors.CodeForbidden, "only owner can update will"))
		req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/wills/"+will.ID.String(), updateWillRequest{Title: "t", Content: "c"})
		rr := testutil.DoRequest(s.router, testutil.WithCaller(req, friend))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
	})

	s.Run("share", func() {
		s.service.EXPECT().AddAllowedEmail(gomock.Any(), will.ID, ownerEmail, "new@example.com").Return(will, nil)
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/wills/"+will.ID.String()+"/access", addAccessRequest{Email: "new@example.com"})
		rr := testutil.DoRequest(s.router, testutil.WithCaller(req, ownerEmail))
		testutil.AssertStatusOK(s.T(), rr)
	})
}

func (s *WillHandlerSuite) TestLists() {
	s.service.EXPECT().ListMyWills(gomock.Any(), ownerEmail).Return(nil, nil)
	rr := testutil.DoRequest(s.router, testutil.WithCaller(testutil.NewRequest(s.T(), http.MethodGet, "/wills"), ownerEmail))
	testutil.AssertStatusOK(s.T(), rr)
	s.JSONEq(`[]`, rr.Body.String())

	s.service.EXPECT().ListSharedWills(gomock.Any(), friend).Return([]*models.Will{s.sampleWill()}, nil)
	rr = testutil.DoRequest(s.router, testutil.WithCaller(testutil.NewRequest(s.T(), http.MethodGet, "/wills/shared"), friend))
	testutil.AssertStatusOK(s.T(), rr)
	list := testutil.UnmarshalResponse[[]willResponse](s.T(), rr)
	s.Len(*list, 1)
}
