package probe

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/TheBearodactyl/apiodactyl-v2/pkg/config"
)

// Database used for the smoke test when the URI names none. Kept out of
// admin so a leaked marker never lands next to system collections.
const defaultSmokeDB = "readygate"

// MongoProber checks a MongoDB deployment. The client is constructed once
// and dials lazily, so a prober can exist before the server does.
type MongoProber struct {
	client    *mongo.Client
	smokeDB   string
	smokeColl string
	target    string
}

// NewMongo creates a prober for a mongodb:// or mongodb+srv:// URI
func NewMongo(uri, smokeCollection string) (*MongoProber, error) {
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("invalid mongodb target: %w", err)
	}

	smokeDB := defaultSmokeDB
	if u, err := url.Parse(uri); err == nil {
		if db := strings.Trim(u.Path, "/"); db != "" {
			smokeDB = db
		}
	}

	return &MongoProber{
		client:    client,
		smokeDB:   smokeDB,
		smokeColl: smokeCollection,
		target:    config.Redact(uri),
	}, nil
}

// Ping issues the ping admin command, authenticating first when the URI
// carries credentials
func (p *MongoProber) Ping(ctx context.Context) error {
	err := p.client.Database("admin").RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err()
	if err != nil {
		return fmt.Errorf("mongodb ping: %w", err)
	}
	return nil
}

// Smoke inserts a marker document and deletes it again
func (p *MongoProber) Smoke(ctx context.Context) error {
	coll := p.client.Database(p.smokeDB).Collection(p.smokeColl)

	res, err := coll.InsertOne(ctx, bson.M{
		"ts":  time.Now().UTC(),
		"msg": "readiness smoke test",
	})
	if err != nil {
		return fmt.Errorf("smoke insert: %w", err)
	}

	if _, err := coll.DeleteOne(ctx, bson.M{"_id": res.InsertedID}); err != nil {
		// The marker stays behind; whoever re-runs the check tolerates it.
		return fmt.Errorf("smoke cleanup: %w", err)
	}
	return nil
}

// Target returns the endpoint with credentials redacted
func (p *MongoProber) Target() string {
	return p.target
}

// Close disconnects the underlying client
func (p *MongoProber) Close(ctx context.Context) error {
	return p.client.Disconnect(ctx)
}
