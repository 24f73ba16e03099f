package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"group-chat-service/internal/auth"
	"group-chat-service/internal/middleware"
	"group-chat-service/internal/mocks"
	"group-chat-service/internal/models"
	"group-chat-service/internal/repositories"
)

type fakeFileStore struct {
	meta models.FileMeta
	err  error
}

func (f *fakeFileStore) Save(ctx context.Context, groupID int, name string, r io.Reader) (models.FileMeta, error) {
	return f.meta, f.err
}

func setupMessageRouter(handler *MessageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		middleware.SetIdentity(c, auth.Identity{UserID: 1, Username: "alice"})
		c.Next()
	})
	r.GET("/groups/:group_id/messages", handler.ListMessages)
	r.POST("/groups/:group_id/messages", handler.PostMessage)
	r.POST("/groups/:group_id/upload", handler.UploadMessage)
	r.POST("/groups/messages/:message_id/like", handler.ToggleLike)
	return r
}

func TestListMessagesPublicGroup(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	messageRepo := new(mocks.GroupMessageRepositoryMock)
	handler := NewMessageHandler(groupRepo, messageRepo, nil, nil, nil, 1<<20)
	router := setupMessageRouter(handler)

	groupRepo.On("GetGroup", mock.Anything, 9).
		Return(models.Group{ID: 9, Privacy: models.PrivacyPublic}, nil).Once()
	messageRepo.On("Page", mock.Anything, 9, 1, 0, 50).
		Return([]models.GroupMessage{{ID: 4, GroupID: 9}, {ID: 5, GroupID: 9}}, nil).Once()
	messageRepo.On("Count", mock.Anything, 9).Return(12, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/groups/9/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Messages   []models.GroupMessage `json:"messages"`
		Pagination struct {
			Total      int `json:"total"`
			NextCursor int `json:"next_cursor"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Messages, 2)
	require.Equal(t, 12, body.Pagination.Total)
	require.Equal(t, 4, body.Pagination.NextCursor)
	messageRepo.AssertExpectations(t)
}

func TestListMessagesPrivateNonMember(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	messageRepo := new(mocks.GroupMessageRepositoryMock)
	handler := NewMessageHandler(groupRepo, messageRepo, nil, nil, nil, 1<<20)
	router := setupMessageRouter(handler)

	groupRepo.On("GetGroup", mock.Anything, 9).
		Return(models.Group{ID: 9, Privacy: models.PrivacyPrivate}, nil).Once()
	groupRepo.On("IsMember", mock.Anything, 9, 1).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/groups/9/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messageRepo.AssertNotCalled(t, "Page", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestListMessagesCursorParams(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	messageRepo := new(mocks.GroupMessageRepositoryMock)
	handler := NewMessageHandler(groupRepo, messageRepo, nil, nil, nil, 1<<20)
	router := setupMessageRouter(handler)

	groupRepo.On("GetGroup", mock.Anything, 9).
		Return(models.Group{ID: 9, Privacy: models.PrivacyPublic}, nil).Once()
	messageRepo.On("Page", mock.Anything, 9, 1, 40, 10).
		Return([]models.GroupMessage{}, nil).Once()
	messageRepo.On("Count", mock.Anything, 9).Return(39, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/groups/9/messages?before_id=40&limit=10", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestPostMessageSuccess(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	messageRepo := new(mocks.GroupMessageRepositoryMock)
	hub := new(mocks.BroadcasterMock)
	eng := newTestEngine(groupRepo, messageRepo, hub)
	handler := NewMessageHandler(groupRepo, messageRepo, eng, nil, nil, 1<<20)
	router := setupMessageRouter(handler)

	stored := models.GroupMessage{ID: 3, GroupID: 9, AuthorID: 1, Content: "hey", Kind: models.KindText}
	messageRepo.On("Append", mock.Anything, 9, 1, "alice", "hey", models.KindText, (*models.FileMeta)(nil)).
		Return(stored, nil).Once()
	hub.On("BroadcastMessage", stored, mock.Anything).Once()

	req := httptest.NewRequest(http.MethodPost, "/groups/9/messages", bytes.NewBufferString(`{"content":"hey"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	messageRepo.AssertExpectations(t)
	hub.AssertExpectations(t)
}

func TestPostMessageNonMember(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	messageRepo := new(mocks.GroupMessageRepositoryMock)
	eng := newTestEngine(groupRepo, messageRepo, new(mocks.BroadcasterMock))
	handler := NewMessageHandler(groupRepo, messageRepo, eng, nil, nil, 1<<20)
	router := setupMessageRouter(handler)

	messageRepo.On("Append", mock.Anything, 9, 1, "alice", "hey", models.KindText, (*models.FileMeta)(nil)).
		Return(nil, repositories.ErrNotMember).Once()

	req := httptest.NewRequest(http.MethodPost, "/groups/9/messages", bytes.NewBufferString(`{"content":"hey"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPostMessageGroupGone(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	messageRepo := new(mocks.GroupMessageRepositoryMock)
	eng := newTestEngine(groupRepo, messageRepo, new(mocks.BroadcasterMock))
	handler := NewMessageHandler(groupRepo, messageRepo, eng, nil, nil, 1<<20)
	router := setupMessageRouter(handler)

	messageRepo.On("Append", mock.Anything, 9, 1, "alice", "hey", models.KindText, (*models.FileMeta)(nil)).
		Return(nil, repositories.ErrGroupNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/groups/9/messages", bytes.NewBufferString(`{"content":"hey"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostMessageMissingContent(t *testing.T) {
	handler := NewMessageHandler(new(mocks.GroupRepositoryMock), new(mocks.GroupMessageRepositoryMock), nil, nil, nil, 1<<20)
	router := setupMessageRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/groups/9/messages", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func multipartBody(t *testing.T, field, filename, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}

func TestUploadMessageSuccess(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	messageRepo := new(mocks.GroupMessageRepositoryMock)
	hub := new(mocks.BroadcasterMock)
	eng := newTestEngine(groupRepo, messageRepo, hub)
	files := &fakeFileStore{meta: models.FileMeta{URL: "/uploads/groups/x.png", Name: "x.png", Size: 3}}
	handler := NewMessageHandler(groupRepo, messageRepo, eng, files, nil, 1<<20)
	router := setupMessageRouter(handler)

	groupRepo.On("IsMember", mock.Anything, 9, 1).Return(true, nil).Once()
	stored := models.GroupMessage{ID: 3, GroupID: 9, Kind: models.KindImage, FileURL: files.meta.URL}
	messageRepo.On("Append", mock.Anything, 9, 1, "alice", "x.png", models.KindImage, &files.meta).
		Return(stored, nil).Once()
	hub.On("BroadcastMessage", stored, mock.Anything).Once()

	body, contentType := multipartBody(t, "file", "x.png", "image/png", []byte("png"))
	req := httptest.NewRequest(http.MethodPost, "/groups/9/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	messageRepo.AssertExpectations(t)
	hub.AssertExpectations(t)
}

func TestUploadMessageRejectsContentType(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewMessageHandler(groupRepo, new(mocks.GroupMessageRepositoryMock), nil, &fakeFileStore{}, nil, 1<<20)
	router := setupMessageRouter(handler)

	groupRepo.On("IsMember", mock.Anything, 9, 1).Return(true, nil).Once()

	body, contentType := multipartBody(t, "file", "x.sh", "application/x-sh", []byte("#!/bin/sh"))
	req := httptest.NewRequest(http.MethodPost, "/groups/9/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadMessageNonMember(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewMessageHandler(groupRepo, new(mocks.GroupMessageRepositoryMock), nil, &fakeFileStore{}, nil, 1<<20)
	router := setupMessageRouter(handler)

	groupRepo.On("IsMember", mock.Anything, 9, 1).Return(false, nil).Once()

	body, contentType := multipartBody(t, "file", "x.png", "image/png", []byte("png"))
	req := httptest.NewRequest(http.MethodPost, "/groups/9/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestToggleLikeSuccess(t *testing.T) {
	messageRepo := new(mocks.GroupMessageRepositoryMock)
	hub := new(mocks.BroadcasterMock)
	eng := newTestEngine(new(mocks.GroupRepositoryMock), messageRepo, hub)
	handler := NewMessageHandler(new(mocks.GroupRepositoryMock), messageRepo, eng, nil, nil, 1<<20)
	router := setupMessageRouter(handler)

	state := models.LikeState{MessageID: 7, GroupID: 9, Count: 2, LikerIDs: []int{1, 4}}
	messageRepo.On("ToggleLike", mock.Anything, 7, 1).Return(state, nil).Once()
	hub.On("BroadcastLike", state).Once()

	req := httptest.NewRequest(http.MethodPost, "/groups/messages/7/like", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Likes   int  `json:"likes"`
		IsLiked bool `json:"is_liked"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 2, body.Likes)
	require.True(t, body.IsLiked)
	hub.AssertExpectations(t)
}

func TestToggleLikeUnknownMessage(t *testing.T) {
	messageRepo := new(mocks.GroupMessageRepositoryMock)
	eng := newTestEngine(new(mocks.GroupRepositoryMock), messageRepo, new(mocks.BroadcasterMock))
	handler := NewMessageHandler(new(mocks.GroupRepositoryMock), messageRepo, eng, nil, nil, 1<<20)
	router := setupMessageRouter(handler)

	messageRepo.On("ToggleLike", mock.Anything, 7, 1).Return(nil, repositories.ErrMessageNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/groups/messages/7/like", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
