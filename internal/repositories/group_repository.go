package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"group-chat-service/internal/models"
)

var (
	ErrGroupNotFound = errors.New("group not found")
	ErrAlreadyMember = errors.New("already a member")
	ErrNotMember     = errors.New("not a member")
	ErrMemberIsAdmin = errors.New("member is the group admin")
)

// GroupRepository is the durable record of groups and their membership sets.
// Membership mutations are single atomic statements at the storage layer,
// never read-modify-write in application code.
type GroupRepository interface {
	CreateGroup(ctx context.Context, adminID int, name, description, category, privacy string) (models.Group, error)
	GetGroup(ctx context.Context, groupID int) (models.Group, error)
	ListVisibleGroups(ctx context.Context, userID int) ([]models.Group, error)
	ListMemberGroups(ctx context.Context, userID int) ([]models.Group, error)
	AddMember(ctx context.Context, groupID, userID int) error
	RemoveMember(ctx context.Context, groupID, userID int) error
	IsMember(ctx context.Context, groupID, userID int) (bool, error)
	ListMemberIDs(ctx context.Context, groupID int) ([]int, error)
	UpdateGroup(ctx context.Context, groupID int, update models.GroupUpdate) (models.Group, error)
	DeleteGroup(ctx context.Context, groupID int) error
}

// GroupRepo is a sqlx implementation of GroupRepository.
type GroupRepo struct {
	db *sqlx.DB
}

// NewGroupRepo constructs a GroupRepo.
func NewGroupRepo(db *sqlx.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

const groupColumns = `id, name, description, category, privacy, admin_id, created_at, updated_at`

// CreateGroup creates a group with the creator as admin and sole member.
func (r *GroupRepo) CreateGroup(ctx context.Context, adminID int, name, description, category, privacy string) (models.Group, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Group{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var group models.Group
	if err = tx.GetContext(ctx, &group,
		`INSERT INTO groups (name, description, category, privacy, admin_id) VALUES ($1, $2, $3, $4, $5) RETURNING `+groupColumns,
		name, description, category, privacy, adminID); err != nil {
		return models.Group{}, err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO group_members (group_id, user_id) VALUES ($1, $2)`, group.ID, adminID); err != nil {
		return models.Group{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Group{}, err
	}
	return group, nil
}

// GetGroup fetches a single group.
func (r *GroupRepo) GetGroup(ctx context.Context, groupID int) (models.Group, error) {
	var group models.Group
	err := r.db.GetContext(ctx, &group, `SELECT `+groupColumns+` FROM groups WHERE id=$1`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Group{}, ErrGroupNotFound
	}
	return group, err
}

// ListVisibleGroups returns public groups plus private groups the user belongs to.
func (r *GroupRepo) ListVisibleGroups(ctx context.Context, userID int) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.SelectContext(ctx, &groups,
		`SELECT `+groupColumns+` FROM groups g
         WHERE g.privacy = 'public'
            OR EXISTS(SELECT 1 FROM group_members gm WHERE gm.group_id = g.id AND gm.user_id = $1)
         ORDER BY g.created_at DESC`, userID)
	return groups, err
}

// ListMemberGroups returns the groups the user belongs to.
func (r *GroupRepo) ListMemberGroups(ctx context.Context, userID int) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.SelectContext(ctx, &groups,
		`SELECT g.id, g.name, g.description, g.category, g.privacy, g.admin_id, g.created_at, g.updated_at
         FROM groups g
         JOIN group_members gm ON gm.group_id = g.id
         WHERE gm.user_id = $1
         ORDER BY g.created_at DESC`, userID)
	return groups, err
}

// AddMember adds the user to the membership set. The insert itself is a
// single conditional statement so concurrent joins cannot lose updates.
func (r *GroupRepo) AddMember(ctx context.Context, groupID, userID int) error {
	if _, err := r.GetGroup(ctx, groupID); err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO group_members (group_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, groupID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrAlreadyMember
	}
	return nil
}

// RemoveMember removes the user from the membership set. The admin can never
// be removed, which keeps admin ∈ members invariant.
func (r *GroupRepo) RemoveMember(ctx context.Context, groupID, userID int) error {
	group, err := r.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if group.AdminID == userID {
		return ErrMemberIsAdmin
	}

	res, err := r.db.ExecContext(ctx,
		`DELETE FROM group_members WHERE group_id=$1 AND user_id=$2`, groupID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotMember
	}
	return nil
}

// IsMember checks membership.
func (r *GroupRepo) IsMember(ctx context.Context, groupID, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM group_members WHERE group_id=$1 AND user_id=$2)`, groupID, userID)
	return exists, err
}

// ListMemberIDs returns the user ids in the membership set.
func (r *GroupRepo) ListMemberIDs(ctx context.Context, groupID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids,
		`SELECT user_id FROM group_members WHERE group_id=$1 ORDER BY joined_at`, groupID)
	return ids, err
}

// UpdateGroup applies the admin-editable fields and bumps updated_at.
func (r *GroupRepo) UpdateGroup(ctx context.Context, groupID int, update models.GroupUpdate) (models.Group, error) {
	var group models.Group
	err := r.db.GetContext(ctx, &group,
		`UPDATE groups SET
            name = COALESCE($2, name),
            description = COALESCE($3, description),
            category = COALESCE($4, category),
            privacy = COALESCE($5, privacy),
            updated_at = NOW()
         WHERE id=$1 RETURNING `+groupColumns,
		groupID, update.Name, update.Description, update.Category, update.Privacy)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Group{}, ErrGroupNotFound
	}
	return group, err
}

// DeleteGroup removes the group; members, messages and likes cascade.
func (r *GroupRepo) DeleteGroup(ctx context.Context, groupID int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE id=$1`, groupID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrGroupNotFound
	}
	return nil
}
