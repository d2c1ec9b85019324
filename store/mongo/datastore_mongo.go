// Copyright 2024 Northern.tech AS
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package mongo

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/mendersoftware/go-lib-micro/config"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mopts "go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	dconfig "github.com/netboot-orchestrator/netboot/config"
	"github.com/netboot-orchestrator/netboot/model"
	"github.com/netboot-orchestrator/netboot/store"
)

const (
	// BootLogsCollectionName refers to the capped collection of boot events
	BootLogsCollectionName = "boot_logs"

	// DbVersion is the current schema version
	DbVersion = "1.0.0"
)

var _ store.BootLogStore = (*BootLogMongo)(nil)

// SetupBootLog connects to mongo, optionally runs migrations and returns
// the boot log store
func SetupBootLog(ctx context.Context, c config.Reader, automigrate bool) (*BootLogMongo, error) {
	client, err := NewClient(ctx, c)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to db")
	}
	dbName := c.GetString(dconfig.SettingDbName)
	capacity := c.GetInt(dconfig.SettingBootLogCapacity)
	err = Migrate(ctx, dbName, DbVersion, client, automigrate, capacity)
	if err != nil {
		disconnectClient(ctx, client)
		return nil, errors.Wrap(err, "failed to run migrations")
	}
	return NewBootLogWithClient(client, dbName), nil
}

func disconnectClient(parentCtx context.Context, client *mongo.Client) {
	ctx, cancel := context.WithTimeout(parentCtx, 1*time.Second)
	defer cancel()
	_ = client.Disconnect(ctx)
}

// NewClient returns a mongo client
func NewClient(ctx context.Context, c config.Reader) (*mongo.Client, error) {
	clientOptions := mopts.Client()
	mongoURL := c.GetString(dconfig.SettingMongo)
	if !strings.Contains(mongoURL, "://") {
		return nil, errors.Errorf("Invalid mongoURL %q: missing schema.",
			mongoURL)
	}
	clientOptions.ApplyURI(mongoURL)

	username := c.GetString(dconfig.SettingDbUsername)
	if username != "" {
		credentials := mopts.Credential{
			Username: username,
		}
		password := c.GetString(dconfig.SettingDbPassword)
		if password != "" {
			credentials.Password = password
			credentials.PasswordSet = true
		}
		clientOptions.SetAuth(credentials)
	}

	if c.GetBool(dconfig.SettingDbSSL) {
		tlsConfig := &tls.Config{}
		tlsConfig.InsecureSkipVerify = c.GetBool(dconfig.SettingDbSSLSkipVerify)
		clientOptions.SetTLSConfig(tlsConfig)
	}

	// Boot events are cheap to lose; acknowledge on the primary only.
	clientOptions.SetWriteConcern(writeconcern.New(writeconcern.W(1)))

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to connect to mongo server")
	}

	if err = client.Ping(ctx, nil); err != nil {
		return nil, errors.Wrap(err, "Error reaching mongo server")
	}

	return client, nil
}

// BootLogMongo keeps the boot log in a capped mongo collection
type BootLogMongo struct {
	client *mongo.Client
	dbName string
}

// NewBootLogWithClient initializes a BootLogMongo object
func NewBootLogWithClient(client *mongo.Client, dbName string) *BootLogMongo {
	return &BootLogMongo{
		client: client,
		dbName: dbName,
	}
}

func (db *BootLogMongo) collection() *mongo.Collection {
	return db.client.Database(db.dbName).Collection(BootLogsCollectionName)
}

// Ping verifies the connection to the database
func (db *BootLogMongo) Ping(ctx context.Context) error {
	res := db.client.Database(db.dbName).RunCommand(ctx, bson.M{"ping": 1})
	return res.Err()
}

// AppendBootLog inserts a boot log entry
func (db *BootLogMongo) AppendBootLog(ctx context.Context, entry model.BootLogEntry) error {
	_, err := db.collection().InsertOne(ctx, entry)
	return errors.Wrap(err, "failed to insert boot log entry")
}

// ListBootLogs returns the newest entries, in reverse insertion order
func (db *BootLogMongo) ListBootLogs(
	ctx context.Context,
	filter model.BootLogFilter,
) ([]model.BootLogEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = model.DefaultBootLogLimit
	}
	query := bson.M{}
	if filter.MAC != "" {
		query["mac"] = filter.MAC
	}
	findOpts := mopts.Find().
		SetSort(bson.D{{Key: "$natural", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := db.collection().Find(ctx, query, findOpts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query boot logs")
	}
	entries := []model.BootLogEntry{}
	if err := cur.All(ctx, &entries); err != nil {
		return nil, errors.Wrap(err, "failed to decode boot logs")
	}
	return entries, nil
}

// Close disconnects the client
func (db *BootLogMongo) Close(ctx context.Context) error {
	disconnectClient(ctx, db.client)
	return nil
}

func (db *BootLogMongo) dropDatabase(ctx context.Context) error {
	return db.client.Database(db.dbName).Drop(ctx)
}
