package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"group-chat-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// GroupMessageRepository is the append-mostly message log. Appends are gated
// on membership inside the statement itself, and like toggles are conditional
// set operations, so two concurrent toggles can never overwrite each other.
type GroupMessageRepository interface {
	Append(ctx context.Context, groupID, authorID int, authorName, content, kind string, file *models.FileMeta) (models.GroupMessage, error)
	ToggleLike(ctx context.Context, messageID, userID int) (models.LikeState, error)
	Page(ctx context.Context, groupID, viewerID, beforeID, limit int) ([]models.GroupMessage, error)
	Count(ctx context.Context, groupID int) (int, error)
	GetMessage(ctx context.Context, messageID int) (models.GroupMessage, error)
}

// GroupMessageRepo is a sqlx-backed implementation.
type GroupMessageRepo struct {
	db *sqlx.DB
}

// NewGroupMessageRepo constructs a GroupMessageRepo.
func NewGroupMessageRepo(db *sqlx.DB) *GroupMessageRepo {
	return &GroupMessageRepo{db: db}
}

const messageColumns = `id, group_id, author_id, author_name, content, kind, file_url, file_name, file_size, created_at`

// Append persists a message. The id and created_at are assigned by the
// database, so ordering follows insertion order regardless of clock skew. The
// insert only fires if the author is currently a member.
func (r *GroupMessageRepo) Append(ctx context.Context, groupID, authorID int, authorName, content, kind string, file *models.FileMeta) (models.GroupMessage, error) {
	meta := models.FileMeta{}
	if file != nil {
		meta = *file
	}

	var msg models.GroupMessage
	err := r.db.GetContext(ctx, &msg,
		`INSERT INTO group_messages (group_id, author_id, author_name, content, kind, file_url, file_name, file_size)
         SELECT $1, $2, $3, $4, $5, $6, $7, $8
         WHERE EXISTS(SELECT 1 FROM group_members WHERE group_id=$1 AND user_id=$2)
         RETURNING `+messageColumns,
		groupID, authorID, authorName, content, kind, meta.URL, meta.Name, meta.Size)
	if errors.Is(err, sql.ErrNoRows) {
		// no membership row: either the author left or the group is gone
		var exists bool
		if checkErr := r.db.GetContext(ctx, &exists,
			`SELECT EXISTS(SELECT 1 FROM groups WHERE id=$1)`, groupID); checkErr != nil {
			return models.GroupMessage{}, checkErr
		}
		if !exists {
			return models.GroupMessage{}, ErrGroupNotFound
		}
		return models.GroupMessage{}, ErrNotMember
	}
	return msg, err
}

// ToggleLike flips the user's membership in the like set: add-if-absent,
// otherwise remove. Both arms are single conditional statements.
func (r *GroupMessageRepo) ToggleLike(ctx context.Context, messageID, userID int) (models.LikeState, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.LikeState{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var groupID int
	err = tx.GetContext(ctx, &groupID, `SELECT group_id FROM group_messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrMessageNotFound
		return models.LikeState{}, err
	}
	if err != nil {
		return models.LikeState{}, err
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO group_message_likes (message_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		messageID, userID)
	if err != nil {
		return models.LikeState{}, err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return models.LikeState{}, err
	}
	if inserted == 0 {
		if _, err = tx.ExecContext(ctx,
			`DELETE FROM group_message_likes WHERE message_id=$1 AND user_id=$2`, messageID, userID); err != nil {
			return models.LikeState{}, err
		}
	}

	var likerIDs []int
	if err = tx.SelectContext(ctx, &likerIDs,
		`SELECT user_id FROM group_message_likes WHERE message_id=$1 ORDER BY user_id`, messageID); err != nil {
		return models.LikeState{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.LikeState{}, err
	}

	return models.LikeState{
		MessageID: messageID,
		GroupID:   groupID,
		Count:     len(likerIDs),
		LikerIDs:  likerIDs,
	}, nil
}

// Page returns up to limit messages older than beforeID (0 means newest),
// oldest-first within the page. The cursor is the message id, so pages stay
// stable under clock skew.
func (r *GroupMessageRepo) Page(ctx context.Context, groupID, viewerID, beforeID, limit int) ([]models.GroupMessage, error) {
	var msgs []models.GroupMessage
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT m.id, m.group_id, m.author_id, m.author_name, m.content, m.kind,
                m.file_url, m.file_name, m.file_size, m.created_at,
                (SELECT COUNT(*) FROM group_message_likes l WHERE l.message_id = m.id) AS like_count,
                EXISTS(SELECT 1 FROM group_message_likes l WHERE l.message_id = m.id AND l.user_id = $2) AS is_liked
         FROM group_messages m
         WHERE m.group_id = $1 AND ($3 = 0 OR m.id < $3)
         ORDER BY m.id DESC
         LIMIT $4`,
		groupID, viewerID, beforeID, limit)
	if err != nil {
		return nil, err
	}

	// fetched newest-first, delivered oldest-first
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Count returns the total number of messages in the group.
func (r *GroupMessageRepo) Count(ctx context.Context, groupID int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM group_messages WHERE group_id=$1`, groupID)
	return count, err
}

// GetMessage fetches a single message with its like count.
func (r *GroupMessageRepo) GetMessage(ctx context.Context, messageID int) (models.GroupMessage, error) {
	var msg models.GroupMessage
	err := r.db.GetContext(ctx, &msg,
		`SELECT m.id, m.group_id, m.author_id, m.author_name, m.content, m.kind,
                m.file_url, m.file_name, m.file_size, m.created_at,
                (SELECT COUNT(*) FROM group_message_likes l WHERE l.message_id = m.id) AS like_count
         FROM group_messages m WHERE m.id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GroupMessage{}, ErrMessageNotFound
	}
	return msg, err
}
