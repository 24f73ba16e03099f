package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"group-chat-service/internal/directory"
	"group-chat-service/internal/engine"
	"group-chat-service/internal/models"
	"group-chat-service/internal/repositories"
)

type GroupRepositoryMock struct {
	mock.Mock
}

func (m *GroupRepositoryMock) CreateGroup(ctx context.Context, adminID int, name, description, category, privacy string) (models.Group, error) {
	args := m.Called(ctx, adminID, name, description, category, privacy)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) GetGroup(ctx context.Context, groupID int) (models.Group, error) {
	args := m.Called(ctx, groupID)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) ListVisibleGroups(ctx context.Context, userID int) ([]models.Group, error) {
	args := m.Called(ctx, userID)
	var groups []models.Group
	if val := args.Get(0); val != nil {
		groups = val.([]models.Group)
	}
	return groups, args.Error(1)
}

func (m *GroupRepositoryMock) ListMemberGroups(ctx context.Context, userID int) ([]models.Group, error) {
	args := m.Called(ctx, userID)
	var groups []models.Group
	if val := args.Get(0); val != nil {
		groups = val.([]models.Group)
	}
	return groups, args.Error(1)
}

func (m *GroupRepositoryMock) AddMember(ctx context.Context, groupID, userID int) error {
	args := m.Called(ctx, groupID, userID)
	return args.Error(0)
}

func (m *GroupRepositoryMock) RemoveMember(ctx context.Context, groupID, userID int) error {
	args := m.Called(ctx, groupID, userID)
	return args.Error(0)
}

func (m *GroupRepositoryMock) IsMember(ctx context.Context, groupID, userID int) (bool, error) {
	args := m.Called(ctx, groupID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *GroupRepositoryMock) ListMemberIDs(ctx context.Context, groupID int) ([]int, error) {
	args := m.Called(ctx, groupID)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

func (m *GroupRepositoryMock) UpdateGroup(ctx context.Context, groupID int, update models.GroupUpdate) (models.Group, error) {
	args := m.Called(ctx, groupID, update)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) DeleteGroup(ctx context.Context, groupID int) error {
	args := m.Called(ctx, groupID)
	return args.Error(0)
}

type GroupMessageRepositoryMock struct {
	mock.Mock
}

func (m *GroupMessageRepositoryMock) Append(ctx context.Context, groupID, authorID int, authorName, content, kind string, file *models.FileMeta) (models.GroupMessage, error) {
	args := m.Called(ctx, groupID, authorID, authorName, content, kind, file)
	var msg models.GroupMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.GroupMessage)
	}
	return msg, args.Error(1)
}

func (m *GroupMessageRepositoryMock) ToggleLike(ctx context.Context, messageID, userID int) (models.LikeState, error) {
	args := m.Called(ctx, messageID, userID)
	var state models.LikeState
	if val := args.Get(0); val != nil {
		state = val.(models.LikeState)
	}
	return state, args.Error(1)
}

func (m *GroupMessageRepositoryMock) Page(ctx context.Context, groupID, viewerID, beforeID, limit int) ([]models.GroupMessage, error) {
	args := m.Called(ctx, groupID, viewerID, beforeID, limit)
	var msgs []models.GroupMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.GroupMessage)
	}
	return msgs, args.Error(1)
}

func (m *GroupMessageRepositoryMock) Count(ctx context.Context, groupID int) (int, error) {
	args := m.Called(ctx, groupID)
	return args.Int(0), args.Error(1)
}

func (m *GroupMessageRepositoryMock) GetMessage(ctx context.Context, messageID int) (models.GroupMessage, error) {
	args := m.Called(ctx, messageID)
	var msg models.GroupMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.GroupMessage)
	}
	return msg, args.Error(1)
}

type DirectoryMock struct {
	mock.Mock
}

func (m *DirectoryMock) GetUser(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

type BroadcasterMock struct {
	mock.Mock
}

func (m *BroadcasterMock) BroadcastMessage(msg models.GroupMessage, author models.User) {
	m.Called(msg, author)
}

func (m *BroadcasterMock) BroadcastLike(state models.LikeState) {
	m.Called(state)
}

func (m *BroadcasterMock) BroadcastGroupDeleted(groupID int) {
	m.Called(groupID)
}

func (m *BroadcasterMock) EvictFromGroup(groupID, userID int) {
	m.Called(groupID, userID)
}

type DedupStoreMock struct {
	mock.Mock
}

func (m *DedupStoreMock) Reserve(ctx context.Context, token string) (int, bool, error) {
	args := m.Called(ctx, token)
	return args.Int(0), args.Bool(1), args.Error(2)
}

func (m *DedupStoreMock) Bind(ctx context.Context, token string, messageID int) error {
	args := m.Called(ctx, token, messageID)
	return args.Error(0)
}

func (m *DedupStoreMock) Release(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

var _ repositories.GroupRepository = (*GroupRepositoryMock)(nil)
var _ repositories.GroupMessageRepository = (*GroupMessageRepositoryMock)(nil)
var _ directory.Directory = (*DirectoryMock)(nil)
var _ engine.Broadcaster = (*BroadcasterMock)(nil)
var _ engine.DedupStore = (*DedupStoreMock)(nil)
