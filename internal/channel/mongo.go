package channel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shibarkan/cafe/internal/domain"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoOrderCollection = "current_orders"

// ConnectMongoDB needs a replica set deployment for change streams to work.
func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

// MongoChannel keeps the order as the document with _id 1 and pushes changes through a change stream.
type MongoChannel struct {
	collection *mongo.Collection
	log        *logrus.Entry
}

func NewMongoChannel(db *mongo.Database, log *logrus.Entry) *MongoChannel {
	return &MongoChannel{
		collection: db.Collection(mongoOrderCollection),
		log:        log,
	}
}

type mongoChangeEvent struct {
	OperationType string                   `bson:"operationType"`
	FullDocument  *domain.SharedOrderState `bson:"fullDocument"`
}

func (m *MongoChannel) Upsert(ctx context.Context, state *domain.SharedOrderState) error {
	doc := domain.NewSharedOrder(state.Lines, state.UpdatedAt.UTC())

	opts := options.Replace().SetUpsert(true)
	if _, err := m.collection.ReplaceOne(ctx, bson.M{"_id": domain.SharedOrderID}, doc, opts); err != nil {
		return fmt.Errorf("failed to upsert order: %w", err)
	}
	return nil
}

func (m *MongoChannel) Fetch(ctx context.Context) (*domain.SharedOrderState, error) {
	var doc domain.SharedOrderState
	err := m.collection.FindOne(ctx, bson.M{"_id": domain.SharedOrderID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch order: %w", err)
	}
	return domain.NormalizeOrder(&doc)
}

func (m *MongoChannel) Delete(ctx context.Context) error {
	if _, err := m.collection.DeleteOne(ctx, bson.M{"_id": domain.SharedOrderID}); err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	return nil
}

func (m *MongoChannel) Subscribe(ctx context.Context, onChange func(Change)) (*Subscription, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"documentKey._id": domain.SharedOrderID}}},
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	subCtx, cancel := context.WithCancel(ctx)
	cs, err := m.collection.Watch(subCtx, pipeline, opts)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to watch orders: %w", err)
	}

	sub := newSubscription(cancel)

	go func() {
		defer cs.Close(context.Background())

		for cs.Next(subCtx) {
			var ev mongoChangeEvent
			if err := cs.Decode(&ev); err != nil {
				m.log.WithError(err).Warn("failed to decode change event")
				continue
			}
			m.deliver(ev, onChange)
		}

		if subCtx.Err() != nil {
			sub.finish(nil)
			return
		}
		err := cs.Err()
		if err == nil {
			err = errors.New("change stream closed")
		}
		sub.finish(fmt.Errorf("%w: %w", domain.ErrSubscriptionDropped, err))
	}()

	return sub, nil
}

func (m *MongoChannel) deliver(ev mongoChangeEvent, onChange func(Change)) {
	switch ev.OperationType {
	case "delete":
		onChange(Change{Deleted: true})
	case "insert", "update", "replace":
		if ev.FullDocument == nil {
			// updated and deleted before the lookup ran
			return
		}
		state, err := domain.NormalizeOrder(ev.FullDocument)
		if err != nil {
			m.log.WithError(err).Warn("discarding change event")
			return
		}
		onChange(Change{State: state})
	}
}
