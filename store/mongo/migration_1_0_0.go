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

	"github.com/mendersoftware/go-lib-micro/mongo/migrate"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mopts "go.mongodb.org/mongo-driver/mongo/options"
)

const (
	errCodeNamespaceExists = 48
	bootLogEntrySizeBytes  = 1024
	defaultBootLogCapacity = 500
)

type migration1_0_0 struct {
	client   *mongo.Client
	db       string
	capacity int
}

// Up creates the boot_logs capped collection and its mac index
func (m *migration1_0_0) Up(from migrate.Version) error {
	ctx := context.Background()
	database := m.client.Database(m.db)

	capacity := m.capacity
	if capacity <= 0 {
		capacity = defaultBootLogCapacity
	}
	createOpts := mopts.CreateCollection().
		SetCapped(true).
		SetSizeInBytes(int64(capacity * bootLogEntrySizeBytes)).
		SetMaxDocuments(int64(capacity))
	err := database.CreateCollection(ctx, BootLogsCollectionName, createOpts)
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.HasErrorCode(errCodeNamespaceExists) {
		err = nil
	}
	if err != nil {
		return errors.Wrap(err, "failed to create boot_logs collection")
	}

	indexOptions := mopts.Index()
	indexOptions.SetName("mac")
	macIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "mac", Value: 1}},
		Options: indexOptions,
	}
	_, err = database.Collection(BootLogsCollectionName).
		Indexes().CreateOne(ctx, macIndex)
	return err
}

func (m *migration1_0_0) Version() migrate.Version {
	return migrate.MakeVersion(1, 0, 0)
}
