package service

import (
	"context"
	"testing"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/internal/api"
)

func TestCreateGroup(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	alice := env.register(t, "alice@example.com", "Alice", "")
	bob := env.register(t, "bob@example.com", "Bob", "")

	resp, err := env.groups.CreateGroup(ctx, as(alice, &api.CreateGroupRequest{
		Name:      "Roommates",
		MemberIDs: []int64{bob.user.ID, bob.user.ID},
	}))
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	group := resp.Msg.Group
	if group.ID == 0 {
		t.Error("expected non-zero group ID")
	}
	if group.Name != "Roommates" {
		t.Errorf("name: expected 'Roommates', got '%s'", group.Name)
	}
	if len(group.Members) != 2 {
		t.Errorf("members: expected 2 (caller + bob), got %d", len(group.Members))
	}

	got, err := env.groups.GetGroup(ctx, as(bob, &api.GetGroupRequest{GroupID: group.ID}))
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if got.Msg.Group.Name != "Roommates" || len(got.Msg.Group.Members) != 2 {
		t.Errorf("unexpected group: %+v", got.Msg.Group)
	}

	list, err := env.groups.ListGroups(ctx, as(bob, &api.ListGroupsRequest{}))
	if err != nil {
		t.Fatalf("ListGroups failed: %v", err)
	}
	if len(list.Msg.Groups) != 1 {
		t.Errorf("expected 1 group, got %d", len(list.Msg.Groups))
	}
}

func TestAddMember(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	alice := env.register(t, "alice@example.com", "Alice", "")
	bob := env.register(t, "bob@example.com", "Bob", "")
	mallory := env.register(t, "mallory@example.com", "Mallory", "")

	created, err := env.groups.CreateGroup(ctx, as(alice, &api.CreateGroupRequest{Name: "Flat"}))
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	groupID := created.Msg.Group.ID

	t.Run("non-member is denied", func(t *testing.T) {
		_, err := env.groups.AddMember(ctx, as(mallory, &api.AddMemberRequest{GroupID: groupID, UserID: mallory.user.ID}))
		assertCode(t, err, connect.CodePermissionDenied)
	})

	t.Run("member adds member", func(t *testing.T) {
		resp, err := env.groups.AddMember(ctx, as(alice, &api.AddMemberRequest{GroupID: groupID, UserID: bob.user.ID}))
		if err != nil {
			t.Fatalf("AddMember failed: %v", err)
		}
		if len(resp.Msg.Group.Members) != 2 {
			t.Errorf("expected 2 members, got %d", len(resp.Msg.Group.Members))
		}
	})

	t.Run("admin adds anyone", func(t *testing.T) {
		admin := env.admin(t)
		_, err := env.groups.AddMember(ctx, as(admin, &api.AddMemberRequest{GroupID: groupID, UserID: mallory.user.ID}))
		if err != nil {
			t.Fatalf("AddMember failed: %v", err)
		}
	})

	t.Run("unknown group", func(t *testing.T) {
		_, err := env.groups.AddMember(ctx, as(alice, &api.AddMemberRequest{GroupID: 999, UserID: bob.user.ID}))
		assertCode(t, err, connect.CodeNotFound)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := env.groups.AddMember(ctx, as(alice, &api.AddMemberRequest{GroupID: groupID, UserID: 999}))
		assertCode(t, err, connect.CodeNotFound)
	})
}

func TestGroupErrors(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	alice := env.register(t, "alice@example.com", "Alice", "")

	t.Run("requires auth", func(t *testing.T) {
		_, err := env.groups.ListGroups(ctx, connect.NewRequest(&api.ListGroupsRequest{}))
		assertCode(t, err, connect.CodeUnauthenticated)
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := env.groups.CreateGroup(ctx, as(alice, &api.CreateGroupRequest{Name: "  "}))
		assertCode(t, err, connect.CodeInvalidArgument)
	})

	t.Run("unknown member", func(t *testing.T) {
		_, err := env.groups.CreateGroup(ctx, as(alice, &api.CreateGroupRequest{Name: "G", MemberIDs: []int64{999}}))
		assertCode(t, err, connect.CodeNotFound)
	})

	t.Run("missing group", func(t *testing.T) {
		_, err := env.groups.GetGroup(ctx, as(alice, &api.GetGroupRequest{GroupID: 999}))
		assertCode(t, err, connect.CodeNotFound)
	})
}
