package service

import (
	"context"
	"time"

	"VChat/module/chat/model"
	"VChat/tools/ids"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is the message persistence contract consumed by the HTTP handlers.
type Store interface {
	Insert(ctx context.Context, msg *model.Message) error
	// Conversation returns the full history between a and b ordered by
	// creation time.
	Conversation(ctx context.Context, a, b string) ([]*model.Message, error)
	// MarkSeenFrom flags every message from->to as seen (history fetch path).
	MarkSeenFrom(ctx context.Context, from, to string) error
	// MarkSeen flags a single message (explicit reset path).
	MarkSeen(ctx context.Context, id string) error
	// UnseenCounts maps counterpart id -> number of unseen messages sent
	// to user.
	UnseenCounts(ctx context.Context, user string) (map[string]int64, error)
}

type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore { return &MongoStore{db: db} }

func (s *MongoStore) coll() *mongo.Collection {
	return s.db.Collection(model.MsgTableName)
}

// NewMessage fills server-owned fields of an outbound message.
func NewMessage(sender, receiver, text, image string) *model.Message {
	return &model.Message{
		ID:         ids.GenerateString(),
		SenderID:   sender,
		ReceiverID: receiver,
		Text:       text,
		Image:      image,
		CreatedAt:  time.Now().UTC(),
	}
}

func (s *MongoStore) Insert(ctx context.Context, msg *model.Message) error {
	if _, err := s.coll().InsertOne(ctx, msg); err != nil {
		return errors.Wrap(err, "insert message")
	}
	return nil
}

func (s *MongoStore) Conversation(ctx context.Context, a, b string) ([]*model.Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"sender_id": a, "receiver_id": b},
		bson.M{"sender_id": b, "receiver_id": a},
	}}
	cur, err := s.coll().Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "find conversation")
	}
	defer cur.Close(ctx)

	msgs := make([]*model.Message, 0)
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, errors.Wrap(err, "decode conversation")
	}
	return msgs, nil
}

func (s *MongoStore) MarkSeenFrom(ctx context.Context, from, to string) error {
	_, err := s.coll().UpdateMany(ctx,
		bson.M{"sender_id": from, "receiver_id": to, "seen": false},
		bson.M{"$set": bson.M{"seen": true}})
	return errors.Wrap(err, "mark seen from")
}

func (s *MongoStore) MarkSeen(ctx context.Context, id string) error {
	_, err := s.coll().UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"seen": true}})
	return errors.Wrap(err, "mark seen")
}

func (s *MongoStore) UnseenCounts(ctx context.Context, user string) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"receiver_id": user, "seen": false}}},
		{{Key: "$group", Value: bson.M{"_id": "$sender_id", "count": bson.M{"$sum": 1}}}},
	}
	cur, err := s.coll().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.Wrap(err, "aggregate unseen")
	}
	defer cur.Close(ctx)

	out := make(map[string]int64)
	for cur.Next(ctx) {
		var row struct {
			Sender string `bson:"_id"`
			Count  int64  `bson:"count"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, errors.Wrap(err, "decode unseen row")
		}
		out[row.Sender] = row.Count
	}
	return out, errors.Wrap(cur.Err(), "unseen cursor")
}

// EnsureIndexes creates the lookup indexes the store queries rely on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "receiver_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "seen", Value: 1}}},
	})
	return errors.Wrap(err, "ensure message indexes")
}
