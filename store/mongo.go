package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/demetori/deme/attendance"
	"github.com/demetori/deme/sys"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const (
	eventsCollection  = "events"
	membersCollection = "members"
)

// Mongo keeps one document per event with the responses embedded, so every
// response mutation is a single-document update.
type Mongo struct {
	client  *mongo.Client
	events  *mongo.Collection
	members *mongo.Collection
}

// ConnectMongo dials uri, pings the primary and makes sure the indexes exist.
func ConnectMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI)

	c, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf(sys.MsgMongoConnectFail, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = c.Disconnect(context.Background())
		return nil, fmt.Errorf(sys.MsgMongoPingFail, err)
	}

	db := c.Database(database)
	m := &Mongo{client: c, events: db.Collection(eventsCollection), members: db.Collection(membersCollection)}
	if err := m.ensureIndexes(pingCtx); err != nil {
		_ = c.Disconnect(context.Background())
		return nil, fmt.Errorf(sys.MsgStoreIndexFail, err)
	}
	sys.LogDatabase(sys.MsgMongoConnected, database)
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	_, err := m.events.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "eventId", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_event_id")},
		{Keys: bson.D{{Key: "eventName", Value: 1}, {Key: "eventDetails.date", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_name_date")},
		{Keys: bson.D{{Key: "eventDetails.dateTime", Value: 1}}, Options: options.Index().SetName("event_deadline")},
	})
	if err != nil {
		return err
	}
	_, err = m.members.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "memberId", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_member_id"),
	})
	return err
}

func (m *Mongo) Close(ctx context.Context) error {
	if err := m.client.Disconnect(ctx); err != nil {
		return fmt.Errorf(sys.MsgMongoDisconnectFail, err)
	}
	return nil
}

func (m *Mongo) Insert(ctx context.Context, ev *attendance.Event) error {
	doc := *ev
	if doc.Responses == nil {
		doc.Responses = []attendance.Response{}
	}
	_, err := m.events.InsertOne(ctx, doc)
	if isDuplicateKey(err) {
		return fmt.Errorf("%w: %s on %s already exists", attendance.ErrConflict, ev.Name, ev.Details.Date)
	}
	return err
}

func (m *Mongo) FindByID(ctx context.Context, eventID string) (*attendance.Event, error) {
	return m.findOne(ctx, bson.M{"eventId": eventID})
}

func (m *Mongo) FindOne(ctx context.Context, name, date string) (*attendance.Event, error) {
	return m.findOne(ctx, bson.M{"eventName": name, "eventDetails.date": date})
}

func (m *Mongo) findOne(ctx context.Context, filter bson.M) (*attendance.Event, error) {
	var ev attendance.Event
	err := m.events.FindOne(ctx, filter).Decode(&ev)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, attendance.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (m *Mongo) FindActive(ctx context.Context, now time.Time) ([]*attendance.Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "eventDetails.dateTime", Value: 1}})
	cur, err := m.events.Find(ctx, bson.M{"eventDetails.dateTime": bson.M{"$gt": now}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*attendance.Event
	for cur.Next(ctx) {
		var ev attendance.Event
		if err := cur.Decode(&ev); err != nil {
			return nil, err
		}
		out = append(out, &ev)
	}
	return out, cur.Err()
}

func (m *Mongo) AppendResponse(ctx context.Context, eventID string, r attendance.Response) error {
	filter := bson.M{"eventId": eventID, "responses.userId": bson.M{"$ne": r.UserID}}
	update := bson.M{
		"$push": bson.M{"responses": r},
		"$inc":  bson.M{counterField(r.Status): 1},
	}
	return m.updateOne(ctx, eventID, filter, update)
}

func (m *Mongo) SwitchStatus(ctx context.Context, eventID, userID string, from, to attendance.Status, name string) error {
	filter := bson.M{
		"eventId":   eventID,
		"responses": bson.M{"$elemMatch": bson.M{"userId": userID, "status": from}},
	}
	update := bson.M{
		"$set": bson.M{"responses.$.status": to, "responses.$.name": name},
		"$inc": bson.M{counterField(from): -1, counterField(to): 1},
	}
	if to == attendance.StatusAttending {
		update["$unset"] = bson.M{"responses.$.reason": ""}
	}
	return m.updateOne(ctx, eventID, filter, update)
}

func (m *Mongo) SetReason(ctx context.Context, eventID, userID, reason string) error {
	filter := bson.M{
		"eventId":   eventID,
		"responses": bson.M{"$elemMatch": bson.M{"userId": userID, "status": attendance.StatusNotAttending}},
	}
	return m.updateOne(ctx, eventID, filter, bson.M{"$set": bson.M{"responses.$.reason": reason}})
}

func (m *Mongo) SyncResponses(ctx context.Context, eventID string, responses []attendance.Response, attending, absent int) error {
	if responses == nil {
		responses = []attendance.Response{}
	}
	update := bson.M{"$set": bson.M{
		"responses":      responses,
		"attendingCount": attending,
		"absentCount":    absent,
	}}
	return m.updateOne(ctx, eventID, bson.M{"eventId": eventID}, update)
}

func (m *Mongo) Delete(ctx context.Context, eventID string) error {
	res, err := m.events.DeleteOne(ctx, bson.M{"eventId": eventID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return attendance.ErrNotFound
	}
	return nil
}

// updateOne tells a missing event apart from an unmet precondition when nothing matched.
func (m *Mongo) updateOne(ctx context.Context, eventID string, filter, update bson.M) error {
	res, err := m.events.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}
	n, err := m.events.CountDocuments(ctx, bson.M{"eventId": eventID})
	if err != nil {
		return err
	}
	if n == 0 {
		return attendance.ErrNotFound
	}
	return attendance.ErrConflict
}

func counterField(s attendance.Status) string {
	if s == attendance.StatusAttending {
		return "attendingCount"
	}
	return "absentCount"
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) && len(we.WriteErrors) > 0 && we.WriteErrors[0].Code == 11000 {
		return true
	}
	return mongo.IsDuplicateKeyError(err)
}
