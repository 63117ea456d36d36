package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/internal/api"
	"github.com/mmynk/settleup/internal/middleware"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/storage"
)

// GroupService implements the Connect GroupService.
type GroupService struct {
	store  storage.Store
	logger *slog.Logger
}

var _ api.GroupServiceHandler = (*GroupService)(nil)

// NewGroupService creates a new GroupService with the given storage backend.
func NewGroupService(store storage.Store, logger *slog.Logger) *GroupService {
	return &GroupService{store: store, logger: logger}
}

// CreateGroup creates a group. The caller and every listed user become members.
func (s *GroupService) CreateGroup(ctx context.Context, req *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error) {
	callerID := middleware.GetUserID(ctx)
	s.logger.Info("CreateGroup request received",
		"name", req.Msg.Name,
		"members_count", len(req.Msg.MemberIDs),
		"user_id", callerID,
	)

	name := strings.TrimSpace(req.Msg.Name)
	if name == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("group name is required"))
	}

	memberIDs := uniqueIDs(append([]int64{callerID}, req.Msg.MemberIDs...))
	users, err := s.store.GetUsersByIDs(ctx, memberIDs)
	if err != nil {
		return nil, storageError(err)
	}
	for _, id := range memberIDs {
		if users[id] == nil {
			return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("user %d not found", id))
		}
	}

	group := &models.Group{Name: name}
	if err := s.store.CreateGroup(ctx, group); err != nil {
		s.logger.Error("CreateGroup failed", "error", err)
		return nil, storageError(err)
	}
	for _, id := range memberIDs {
		if err := s.store.SetUserGroup(ctx, id, group.ID); err != nil {
			s.logger.Error("Failed to add member", "group_id", group.ID, "user_id", id, "error", err)
			return nil, storageError(err)
		}
	}

	resp, err := s.loadGroup(ctx, group.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Group created", "group_id", group.ID)
	return connect.NewResponse(&api.CreateGroupResponse{Group: resp}), nil
}

// GetGroup retrieves a group with its members.
func (s *GroupService) GetGroup(ctx context.Context, req *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error) {
	s.logger.Info("GetGroup request received", "group_id", req.Msg.GroupID)

	group, err := s.loadGroup(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&api.GetGroupResponse{Group: group}), nil
}

// ListGroups retrieves all groups, without members.
func (s *GroupService) ListGroups(ctx context.Context, req *connect.Request[api.ListGroupsRequest]) (*connect.Response[api.ListGroupsResponse], error) {
	groups, err := s.store.ListGroups(ctx)
	if err != nil {
		s.logger.Error("ListGroups failed", "error", err)
		return nil, storageError(err)
	}

	out := make([]*api.Group, 0, len(groups))
	for _, g := range groups {
		out = append(out, groupToAPI(g, nil))
	}

	s.logger.Info("ListGroups successful", "count", len(out))
	return connect.NewResponse(&api.ListGroupsResponse{Groups: out}), nil
}

// AddMember moves a user into a group. Only members of the group and admins may add.
func (s *GroupService) AddMember(ctx context.Context, req *connect.Request[api.AddMemberRequest]) (*connect.Response[api.AddMemberResponse], error) {
	callerID := middleware.GetUserID(ctx)
	s.logger.Info("AddMember request received",
		"group_id", req.Msg.GroupID,
		"member_id", req.Msg.UserID,
		"user_id", callerID,
	)

	group, err := s.store.GetGroup(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, storageError(err)
	}
	if group == nil {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("group %d not found", req.Msg.GroupID))
	}

	if !middleware.IsAdmin(ctx) {
		caller, err := s.store.GetUserByID(ctx, callerID)
		if err != nil {
			return nil, storageError(err)
		}
		if caller == nil || caller.GroupID == nil || *caller.GroupID != group.ID {
			return nil, connect.NewError(connect.CodePermissionDenied, errors.New("only group members can add members"))
		}
	}

	if err := s.store.SetUserGroup(ctx, req.Msg.UserID, group.ID); err != nil {
		s.logger.Error("AddMember failed", "group_id", group.ID, "member_id", req.Msg.UserID, "error", err)
		return nil, storageError(err)
	}

	resp, err := s.loadGroup(ctx, group.ID)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&api.AddMemberResponse{Group: resp}), nil
}

func (s *GroupService) loadGroup(ctx context.Context, id int64) (*api.Group, error) {
	group, err := s.store.GetGroup(ctx, id)
	if err != nil {
		s.logger.Error("GetGroup failed", "group_id", id, "error", err)
		return nil, storageError(err)
	}
	if group == nil {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("group %d not found", id))
	}

	members, err := s.store.ListUsersByGroup(ctx, id)
	if err != nil {
		return nil, storageError(err)
	}
	return groupToAPI(group, members), nil
}

// uniqueIDs drops zero and repeated IDs, keeping first-seen order.
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
