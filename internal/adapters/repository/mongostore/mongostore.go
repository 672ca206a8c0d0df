// Package mongostore keeps boards, notifications and activities in MongoDB.
// Collections are expected to be opened on a client using database.Registry so
// uuid.UUID values round-trip as strings.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/taskflow/core/internal/domain/entities"
	"github.com/taskflow/core/internal/ports"
)

const (
	boardsCollection        = "boards"
	notificationsCollection = "notifications"
	activitiesCollection    = "activities"
)

// boardDoc adds the derived index fields to the stored board.
type boardDoc struct {
	entities.Board `bson:",inline"`
	PendingEmails  []string   `bson:"pending_emails"`
	NextDueAt      *time.Time `bson:"next_due_at,omitempty"`
}

func newBoardDoc(b *entities.Board) boardDoc {
	return boardDoc{Board: *b, PendingEmails: b.PendingEmails(), NextDueAt: b.NextDueAt()}
}

// EnsureIndexes creates the indexes the queries below rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		boardsCollection: {
			{Keys: bson.D{{Key: "member_ids", Value: 1}}},
			{Keys: bson.D{{Key: "pending_emails", Value: 1}}},
			{Keys: bson.D{{Key: "next_due_at", Value: 1}}},
		},
		notificationsCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "type", Value: 1}, {Key: "target_id", Value: 1}}},
		},
		activitiesCollection: {
			{Keys: bson.D{{Key: "board_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}

	for coll, models := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", coll, err)
		}
	}
	return nil
}

// BoardRepository stores boards as single documents with a version guard.
type BoardRepository struct {
	coll *mongo.Collection
}

func NewBoardRepository(db *mongo.Database) ports.BoardRepository {
	return &BoardRepository{coll: db.Collection(boardsCollection)}
}

func (r *BoardRepository) Create(ctx context.Context, board *entities.Board) error {
	if _, err := r.coll.InsertOne(ctx, newBoardDoc(board)); err != nil {
		return fmt.Errorf("create board: %w", err)
	}
	return nil
}

func (r *BoardRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Board, error) {
	var board entities.Board
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&board)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, entities.ErrBoardNotFound
		}
		return nil, fmt.Errorf("get board: %w", err)
	}
	return &board, nil
}

func (r *BoardRepository) Update(ctx context.Context, board *entities.Board) error {
	next := *board
	next.Version = board.Version + 1

	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": board.ID, "version": board.Version}, newBoardDoc(&next))
	if err != nil {
		return fmt.Errorf("update board: %w", err)
	}

	if res.MatchedCount == 0 {
		count, err := r.coll.CountDocuments(ctx, bson.M{"_id": board.ID})
		if err != nil {
			return fmt.Errorf("check board: %w", err)
		}
		if count == 0 {
			return entities.ErrBoardNotFound
		}
		return entities.ErrVersionConflict
	}

	board.Version = next.Version
	return nil
}

func (r *BoardRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete board: %w", err)
	}
	if res.DeletedCount == 0 {
		return entities.ErrBoardNotFound
	}
	return nil
}

func (r *BoardRepository) ListByMember(ctx context.Context, userID uuid.UUID) ([]*entities.Board, error) {
	return r.find(ctx, bson.M{"member_ids": userID}, bson.D{{Key: "updated_at", Value: -1}})
}

func (r *BoardRepository) ListWithPendingInvite(ctx context.Context, email string) ([]*entities.Board, error) {
	filter := bson.M{"pending_emails": strings.ToLower(strings.TrimSpace(email))}
	return r.find(ctx, filter, bson.D{{Key: "updated_at", Value: -1}})
}

func (r *BoardRepository) ListWithDueCards(ctx context.Context, before time.Time) ([]*entities.Board, error) {
	return r.find(ctx, bson.M{"next_due_at": bson.M{"$lte": before}}, bson.D{{Key: "next_due_at", Value: 1}})
}

func (r *BoardRepository) find(ctx context.Context, filter bson.M, sort bson.D) ([]*entities.Board, error) {
	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}

	boards := []*entities.Board{}
	if err := cur.All(ctx, &boards); err != nil {
		return nil, fmt.Errorf("decode boards: %w", err)
	}
	return boards, nil
}

// NotificationRepository implements ports.NotificationRepository on MongoDB.
type NotificationRepository struct {
	coll *mongo.Collection
}

func NewNotificationRepository(db *mongo.Database) ports.NotificationRepository {
	return &NotificationRepository{coll: db.Collection(notificationsCollection)}
}

func (r *NotificationRepository) Create(ctx context.Context, n *entities.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, filter ports.NotificationFilter) ([]*entities.Notification, error) {
	q := bson.M{"user_id": userID}
	if filter.UnreadOnly {
		q["read"] = false
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cur, err := r.coll.Find(ctx, q, opts)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	notifications := []*entities.Notification{}
	if err := cur.All(ctx, &notifications); err != nil {
		return nil, fmt.Errorf("decode notifications: %w", err)
	}
	return notifications, nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	count, err := r.coll.CountDocuments(ctx, bson.M{"user_id": userID, "read": false})
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID uuid.UUID) (*entities.Notification, error) {
	update := bson.M{"$set": bson.M{"read": true, "updated_at": time.Now().UTC()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var n entities.Notification
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id, "user_id": userID}, update, opts).Decode(&n)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, entities.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	return &n, nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	update := bson.M{"$set": bson.M{"read": true, "updated_at": time.Now().UTC()}}

	res, err := r.coll.UpdateMany(ctx, bson.M{"user_id": userID, "read": false}, update)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *NotificationRepository) Exists(ctx context.Context, userID uuid.UUID, typ entities.NotificationType, targetID string) (bool, error) {
	filter := bson.M{"user_id": userID, "type": typ, "target_id": targetID}
	count, err := r.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("check notification: %w", err)
	}
	return count > 0, nil
}

// ActivityRepository is an append-only MongoDB collection.
type ActivityRepository struct {
	coll *mongo.Collection
}

func NewActivityRepository(db *mongo.Database) ports.ActivityRepository {
	return &ActivityRepository{coll: db.Collection(activitiesCollection)}
}

func (r *ActivityRepository) Append(ctx context.Context, a *entities.Activity) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now().UTC()

	if _, err := r.coll.InsertOne(ctx, a); err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

func (r *ActivityRepository) ListByBoards(ctx context.Context, boardIDs []uuid.UUID, limit int) ([]*entities.Activity, error) {
	activities := []*entities.Activity{}
	if len(boardIDs) == 0 {
		return activities, nil
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := r.coll.Find(ctx, bson.M{"board_id": bson.M{"$in": boardIDs}}, opts)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	if err := cur.All(ctx, &activities); err != nil {
		return nil, fmt.Errorf("decode activities: %w", err)
	}
	return activities, nil
}
