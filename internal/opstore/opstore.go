// Package opstore queries the operational "task" collection for domains that
// were judged malicious.
package opstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/gustycube/quad9-domains/internal/logging"
	"github.com/gustycube/quad9-domains/internal/types"
)

const (
	TaskCollection   = "task"
	DomainField      = "task_kwargs.domain_name"
	VerdictField     = "result.verdict"
	TimeStartField   = "time_start"
	MaliciousVerdict = "malicious"

	source = "q"
)

// TaskFilter matches malicious tasks with start < time_start < end. The
// clause order matches an index on the remote collection; keep it.
func TaskFilter(w types.TimeWindow) bson.D {
	return bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: DomainField, Value: bson.D{{Key: "$exists", Value: true}}}},
		bson.D{{Key: VerdictField, Value: MaliciousVerdict}},
		bson.D{{Key: TimeStartField, Value: bson.D{{Key: "$gt", Value: w.Start}}}},
		bson.D{{Key: TimeStartField, Value: bson.D{{Key: "$lt", Value: w.End}}}},
	}}}
}

// TaskProjection keeps only the domain name.
func TaskProjection() bson.D {
	return bson.D{{Key: DomainField, Value: 1}}
}

type task struct {
	TaskKwargs struct {
		DomainName bson.RawValue `bson:"domain_name"`
	} `bson:"task_kwargs"`
}

// domainName returns the stored domain when it is a BSON string.
func domainName(v bson.RawValue) (string, bool) {
	return v.StringValueOK()
}

// Client reads from one connected MongoDB deployment.
type Client struct {
	mc  *mongo.Client
	log *logging.Logger
}

// Connect opens a direct connection to the MongoDB listening on addr.
func Connect(ctx context.Context, addr string, log *logging.Logger) (*Client, error) {
	opts := options.Client().
		ApplyURI("mongodb://" + addr).
		SetDirect(true)
	mc, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, &types.QueryError{Source: source, Err: fmt.Errorf("connect %s: %w", addr, err)}
	}
	return &Client{mc: mc, log: log}, nil
}

func (c *Client) Disconnect(ctx context.Context) error {
	return c.mc.Disconnect(ctx)
}

// Domains returns the distinct domain names of malicious tasks in w, in the
// order the cursor yields them.
func (c *Client) Domains(ctx context.Context, dbName string, w types.TimeWindow) ([]string, error) {
	coll := c.mc.Database(dbName).Collection(TaskCollection)

	cur, err := coll.Find(ctx, TaskFilter(w), options.Find().SetProjection(TaskProjection()))
	if err != nil {
		return nil, &types.QueryError{Source: source, Err: fmt.Errorf("find: %w", err)}
	}
	defer cur.Close(ctx)

	start := time.Now()
	seen := make(map[string]struct{})
	var domains []string
	skipped := 0
	for cur.Next(ctx) {
		var t task
		if err := cur.Decode(&t); err != nil {
			return nil, &types.QueryError{Source: source, Err: fmt.Errorf("decode: %w", err)}
		}
		d, ok := domainName(t.TaskKwargs.DomainName)
		if !ok {
			skipped++
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		domains = append(domains, d)
	}
	if err := cur.Err(); err != nil {
		return nil, &types.QueryError{Source: source, Err: fmt.Errorf("cursor: %w", err)}
	}

	if skipped > 0 {
		c.log.Warnw("skipped tasks with a non-string domain name", "count", skipped, "db", dbName)
	}
	c.log.Infow("fetching domains from cursor finished", "took", time.Since(start), "db", dbName)
	c.log.Infow("fetched domains", "count", len(domains), "db", dbName)
	return domains, nil
}
