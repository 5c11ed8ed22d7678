package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/demetori/deme/members"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoMembers keeps one document per member with the wishlist embedded.
type MongoMembers struct {
	coll *mongo.Collection
}

// Members shares the connection with the event store.
func (m *Mongo) Members() *MongoMembers {
	return &MongoMembers{coll: m.members}
}

func (m *MongoMembers) Create(ctx context.Context, mem *members.Member) error {
	doc := *mem
	if len(doc.Wishlist) == 0 {
		doc.Wishlist = members.EmptyWishlist()
	}
	_, err := m.coll.InsertOne(ctx, doc)
	if isDuplicateKey(err) {
		return fmt.Errorf("%w: %s", members.ErrExists, mem.ID)
	}
	return err
}

func (m *MongoMembers) Get(ctx context.Context, id string) (*members.Member, error) {
	var mem members.Member
	err := m.coll.FindOne(ctx, bson.M{"memberId": id}).Decode(&mem)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, members.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &mem, nil
}

func (m *MongoMembers) List(ctx context.Context) ([]*members.Member, error) {
	opts := options.Find().SetSort(bson.D{{Key: "weapons", Value: 1}, {Key: "inGameName", Value: 1}})
	cur, err := m.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*members.Member
	for cur.Next(ctx) {
		var mem members.Member
		if err := cur.Decode(&mem); err != nil {
			return nil, err
		}
		out = append(out, &mem)
	}
	return out, cur.Err()
}

func (m *MongoMembers) Delete(ctx context.Context, id string) error {
	res, err := m.coll.DeleteOne(ctx, bson.M{"memberId": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return members.ErrNotFound
	}
	return nil
}

// SetPlanner creates a bare roster entry when the member was never added.
func (m *MongoMembers) SetPlanner(ctx context.Context, id, link string, now time.Time) error {
	update := bson.M{
		"$set": bson.M{"gear.plannerLink": link, "gear.lastUpdated": now},
		"$setOnInsert": bson.M{
			"wishlist": members.EmptyWishlist(),
			"group":    members.DefaultGroup,
		},
	}
	_, err := m.coll.UpdateOne(ctx, bson.M{"memberId": id}, update, options.UpdateOne().SetUpsert(true))
	return err
}

func (m *MongoMembers) SetWishlistSlot(ctx context.Context, id string, slot int, item string, now time.Time) error {
	if !members.ValidSlot(slot) {
		return members.ErrInvalidSlot
	}
	filter := bson.M{
		"memberId": id,
		"wishlist": bson.M{"$elemMatch": bson.M{
			"slot":            slot,
			"slotLastUpdated": bson.M{"$lte": now.Add(-members.WishlistCooldown)},
		}},
	}
	update := bson.M{"$set": bson.M{"wishlist.$.item": item, "wishlist.$.slotLastUpdated": now}}

	res, err := m.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}
	n, err := m.coll.CountDocuments(ctx, bson.M{"memberId": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return members.ErrNotFound
	}
	return members.ErrCooldown
}
