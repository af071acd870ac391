package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bubasket/marketplace-backend/internal/model"
	"github.com/bubasket/marketplace-backend/internal/service"
	"github.com/labstack/echo/v4"
)

type stubMessageService struct {
	sendErr     error
	markReadN   int64
	markReadErr error
	listMsgs    []model.Message
	listErr     error

	gotLimit  int
	gotOffset int
}

func (s *stubMessageService) Send(ctx context.Context, convID uint64, senderUID, body string) (*model.Message, error) {
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	return &model.Message{ID: 1, ConversationID: convID, SenderUID: senderUID, Body: body}, nil
}

func (s *stubMessageService) List(ctx context.Context, convID uint64, uid string, limit, offset int) ([]model.Message, error) {
	s.gotLimit, s.gotOffset = limit, offset
	return s.listMsgs, s.listErr
}

func (s *stubMessageService) MarkRead(ctx context.Context, convID uint64, readerUID string) (int64, error) {
	return s.markReadN, s.markReadErr
}

func newMessageContext(method, target, body, uid, convID string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(convID)
	if uid != "" {
		c.Set("uid", uid)
	}
	return c, rec
}

func TestCreateMessageStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		uid        string
		convID     string
		sendErr    error
		wantStatus int
	}{
		{"created", "buyer", "1", nil, http.StatusCreated},
		{"missing uid", "", "1", nil, http.StatusUnauthorized},
		{"bad conversation id", "buyer", "abc", nil, http.StatusBadRequest},
		{"not a participant", "stranger", "1", service.ErrForbidden, http.StatusForbidden},
		{"conversation missing", "buyer", "9", service.ErrNotFound, http.StatusNotFound},
		{"empty body", "buyer", "1", service.ErrEmptyContent, http.StatusBadRequest},
		{"too long", "buyer", "1", service.ErrContentTooLong, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewMessageHandler(&stubMessageService{sendErr: tt.sendErr})
			c, rec := newMessageContext(http.MethodPost, "/api/conversations/1/messages", `{"body":"hello"}`, tt.uid, tt.convID)
			if err := h.Create(c); err != nil {
				t.Fatalf("handler err: %v", err)
			}
			if rec.Code != tt.wantStatus {
				t.Fatalf("status=%d want=%d body=%s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestListMessagesForwardsPaging(t *testing.T) {
	stub := &stubMessageService{listMsgs: []model.Message{}}
	h := NewMessageHandler(stub)
	c, rec := newMessageContext(http.MethodGet, "/api/conversations/1/messages?limit=25&offset=50", "", "buyer", "1")
	if err := h.List(c); err != nil {
		t.Fatalf("handler err: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if stub.gotLimit != 25 || stub.gotOffset != 50 {
		t.Fatalf("paging not forwarded: limit=%d offset=%d", stub.gotLimit, stub.gotOffset)
	}
}

func TestMarkReadReturnsCount(t *testing.T) {
	h := NewMessageHandler(&stubMessageService{markReadN: 2})
	c, rec := newMessageContext(http.MethodPost, "/api/conversations/1/read", "", "seller", "1")
	if err := h.MarkRead(c); err != nil {
		t.Fatalf("handler err: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"updated":2}` {
		t.Fatalf("body=%s", got)
	}
}

func TestAccessDeniedBodyIsGeneric(t *testing.T) {
	h := NewMessageHandler(&stubMessageService{listErr: service.ErrForbidden, listMsgs: nil})
	c, rec := newMessageContext(http.MethodGet, "/api/conversations/1/messages", "", "stranger", "1")
	if err := h.List(c); err != nil {
		t.Fatalf("handler err: %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status=%d", rec.Code)
	}
	// The body must not reveal anything about the conversation.
	if body := rec.Body.String(); strings.Contains(body, "participant") || strings.Contains(body, "exists") {
		t.Fatalf("leaky error body: %s", body)
	}
}
