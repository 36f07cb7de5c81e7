// Package cti reads first-seen domain records from the threat-intel database.
package cti

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gustycube/quad9-domains/internal/config"
	"github.com/gustycube/quad9-domains/internal/logging"
	"github.com/gustycube/quad9-domains/internal/types"
)

const source = "cti"

// DNS is a domain observed by the honeypot pipeline.
type DNS struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	DNSRecord string    `gorm:"column:dns_record;size:255;index;not null"`
	FirstSeen time.Time `gorm:"column:first_seen;index;not null"`
}

func (DNS) TableName() string { return "dns" }

// Client queries the threat-intel store.
type Client struct {
	db  *gorm.DB
	log *logging.Logger
}

func dialector(c *config.CTI) (gorm.Dialector, error) {
	switch c.Driver {
	case config.DriverPostgres:
		return postgres.Open(c.ConnString()), nil
	case config.DriverSQLite:
		return sqlite.Open(c.ConnString()), nil
	default:
		return nil, &types.ConfigurationError{Path: "cti", Err: fmt.Errorf("unsupported driver %q", c.Driver)}
	}
}

// Open connects to the store described by c and pings it, retrying with
// exponential backoff up to c.Retries() times.
func Open(ctx context.Context, c *config.CTI, log *logging.Logger) (*Client, error) {
	dial, err := dialector(c)
	if err != nil {
		return nil, err
	}

	var db *gorm.DB
	op := func() error {
		conn, err := gorm.Open(dial, &gorm.Config{Logger: logger.Discard, DisableAutomaticPing: true})
		if err != nil {
			closePool(conn)
			return err
		}
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			_ = sqlDB.Close()
			return err
		}
		db = conn
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.Retries())),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		log.Warnw("CTI connect failed, retrying", "err", err, "in", wait)
	}
	if err := backoff.RetryNotify(op, bo, notify); err != nil {
		return nil, &types.QueryError{Source: source, Err: fmt.Errorf("connect: %w", err)}
	}

	log.Infow("connected to CTI", "driver", c.Driver)
	return &Client{db: db, log: log}, nil
}

// closePool releases the pool of a handle whose setup failed half way.
func closePool(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// NewWithDB wraps an already opened gorm handle.
func NewWithDB(db *gorm.DB, log *logging.Logger) *Client {
	return &Client{db: db, log: log}
}

// Domains returns the distinct domains first seen in [w.Start, w.End).
func (c *Client) Domains(ctx context.Context, w types.TimeWindow) ([]string, error) {
	start := time.Now()
	var domains []string
	err := c.db.WithContext(ctx).
		Model(&DNS{}).
		Distinct().
		Where("first_seen >= ? AND first_seen < ?", w.Start, w.End).
		Pluck("dns_record", &domains).Error
	if err != nil {
		return nil, &types.QueryError{Source: source, Err: err}
	}
	c.log.Infow("fetched CTI domains", "count", len(domains), "took", time.Since(start))
	return domains, nil
}

func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
