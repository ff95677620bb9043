//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 The TabPort Authors
//
// This file is part of TabPort.
//
// TabPort is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// TabPort is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with TabPort. If not, see https://www.gnu.org/licenses/.

package sources

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tabport/tabport/core"
)

// MongoSourceOptions configures the MongoDB source.
type MongoSourceOptions struct {
	URI        string
	Database   string
	Collection string
	Filter     bson.M
	Projection bson.M
	Sort       bson.M
	BatchSize  int32
	Limit      int64
	Timeout    time.Duration
}

// MongoOption is a functional option for MongoSource.
type MongoOption func(*MongoSourceOptions)

func WithMongoFilter(filter bson.M) MongoOption {
	return func(o *MongoSourceOptions) { o.Filter = filter }
}

func WithMongoProjection(projection bson.M) MongoOption {
	return func(o *MongoSourceOptions) { o.Projection = projection }
}

func WithMongoSort(sortSpec bson.M) MongoOption {
	return func(o *MongoSourceOptions) { o.Sort = sortSpec }
}

func WithMongoBatchSize(size int32) MongoOption {
	return func(o *MongoSourceOptions) { o.BatchSize = size }
}

func WithMongoLimit(limit int64) MongoOption {
	return func(o *MongoSourceOptions) { o.Limit = limit }
}

func WithMongoTimeout(timeout time.Duration) MongoOption {
	return func(o *MongoSourceOptions) { o.Timeout = timeout }
}

// MongoSource implements core.RowSource over one MongoDB collection. Each
// document becomes a row; values convert to the scalar set the column mapper
// understands, with ObjectIDs rendered as hex strings.
type MongoSource struct {
	opts MongoSourceOptions

	client     *mongo.Client
	collection *mongo.Collection
	cursor     *mongo.Cursor
}

// NewMongoSource creates a source over a collection.
func NewMongoSource(uri, database, collection string, mongoOptions ...MongoOption) (*MongoSource, error) {
	if uri == "" {
		return nil, &SourceError{Op: "validate_options", Err: fmt.Errorf("connection URI is required")}
	}
	if database == "" || collection == "" {
		return nil, &SourceError{Op: "validate_options", Err: fmt.Errorf("database and collection are required")}
	}

	opts := MongoSourceOptions{
		URI:        uri,
		Database:   database,
		Collection: collection,
		BatchSize:  100,
		Timeout:    10 * time.Second,
	}
	for _, opt := range mongoOptions {
		opt(&opts)
	}
	return &MongoSource{opts: opts}, nil
}

// connect establishes and verifies the client connection.
func (m *MongoSource) connect(ctx context.Context) error {
	if m.client != nil {
		return nil
	}

	clientOpts := options.Client().ApplyURI(m.opts.URI)
	if m.opts.Timeout > 0 {
		clientOpts.SetConnectTimeout(m.opts.Timeout)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return &SourceError{Op: "connect", Err: err}
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return &SourceError{Op: "ping", Err: err}
	}

	m.client = client
	m.collection = client.Database(m.opts.Database).Collection(m.opts.Collection)
	return nil
}

// find opens a cursor with the configured query shape, with limit overriding
// the configured one when positive.
func (m *MongoSource) find(ctx context.Context, limit int64) (*mongo.Cursor, error) {
	findOpts := options.Find()
	if m.opts.BatchSize > 0 {
		findOpts.SetBatchSize(m.opts.BatchSize)
	}
	if limit <= 0 {
		limit = m.opts.Limit
	}
	if limit > 0 {
		findOpts.SetLimit(limit)
	}
	if m.opts.Projection != nil {
		findOpts.SetProjection(m.opts.Projection)
	}
	if m.opts.Sort != nil {
		findOpts.SetSort(m.opts.Sort)
	}

	filter := m.opts.Filter
	if filter == nil {
		filter = bson.M{}
	}

	cursor, err := m.collection.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, &SourceError{Op: "query", Err: err}
	}
	return cursor, nil
}

// Headers implements core.RowSource: the sorted key set of a sample document.
func (m *MongoSource) Headers() ([]string, error) {
	ctx := context.Background()
	if err := m.connect(ctx); err != nil {
		return nil, err
	}

	cursor, err := m.find(ctx, 1)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if !cursor.Next(ctx) {
		if err := cursor.Err(); err != nil {
			return nil, &SourceError{Op: "query", Err: err}
		}
		return nil, core.ErrNoHeaders
	}

	var doc bson.M
	if err := cursor.Decode(&doc); err != nil {
		return nil, &SourceError{Op: "decode", Err: err}
	}

	headers := make([]string, 0, len(doc))
	for k := range doc {
		headers = append(headers, k)
	}
	sort.Strings(headers)
	return headers, nil
}

// Preview implements core.RowSource with a limited query, leaving the main
// cursor untouched.
func (m *MongoSource) Preview(ctx context.Context, n int) ([]core.Record, error) {
	if err := m.connect(ctx); err != nil {
		return nil, err
	}

	cursor, err := m.find(ctx, int64(n))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	rows := make([]core.Record, 0, n)
	for len(rows) < n && cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, &SourceError{Op: "decode", Err: err}
		}
		rows = append(rows, mongoRecord(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, &SourceError{Op: "query", Err: err}
	}
	return rows, nil
}

// Read implements core.RowSource.
func (m *MongoSource) Read(ctx context.Context) (core.Record, error) {
	select {
	case <-ctx.Done():
		return nil, &SourceError{Op: "read", Err: ctx.Err()}
	default:
	}

	if m.cursor == nil {
		if err := m.connect(ctx); err != nil {
			return nil, err
		}
		cursor, err := m.find(ctx, 0)
		if err != nil {
			return nil, err
		}
		m.cursor = cursor
	}

	if !m.cursor.Next(ctx) {
		if err := m.cursor.Err(); err != nil {
			return nil, &SourceError{Op: "read_row", Err: err}
		}
		return nil, io.EOF
	}

	var doc bson.M
	if err := m.cursor.Decode(&doc); err != nil {
		return nil, &SourceError{Op: "decode", Err: err}
	}
	return mongoRecord(doc), nil
}

// Close implements core.RowSource, releasing the cursor and the client.
func (m *MongoSource) Close() error {
	ctx := context.Background()
	var firstErr error
	if m.cursor != nil {
		if err := m.cursor.Close(ctx); err != nil {
			firstErr = err
		}
		m.cursor = nil
	}
	if m.client != nil {
		if err := m.client.Disconnect(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		m.client = nil
		m.collection = nil
	}
	return firstErr
}

// mongoRecord converts a decoded document into a row.
func mongoRecord(doc bson.M) core.Record {
	rec := make(core.Record, len(doc))
	for k, v := range doc {
		rec[k] = convertBSONValue(v)
	}
	return rec
}

// convertBSONValue maps BSON types onto the scalar set the pipeline handles.
// Composite values render through %v so they still fit in a TEXT column.
func convertBSONValue(value interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return nil
	case primitive.ObjectID:
		return v.Hex()
	case primitive.DateTime:
		return v.Time()
	case primitive.Decimal128:
		return v.String()
	case primitive.Binary:
		return fmt.Sprintf("%x", v.Data)
	case primitive.Null, primitive.Undefined:
		return nil
	case int32:
		return int(v)
	case int64:
		return int(v)
	case bson.M, bson.A:
		return fmt.Sprintf("%v", v)
	default:
		return v
	}
}
