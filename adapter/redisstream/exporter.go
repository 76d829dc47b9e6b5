package redisstream

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trickstertwo/xtap"
)

// Adapter: Redis Streams Exporter (Strategy + Adapter patterns)

const ExporterName = "redis-streams"

func init() {
	if err := xtap.RegisterExporter(ExporterName, func(cfg map[string]any) (xtap.Exporter, error) {
		return NewExporter(ConfigFromMap(cfg))
	}); err != nil {
		panic(fmt.Errorf("xtap: failed to register exporter %q: %w", ExporterName, err))
	}
}

var _ xtap.Exporter = (*Exporter)(nil)

// Exporter appends records to a Redis stream.
type Exporter struct {
	cfg    Config
	client *redis.Client
	codec  xtap.Codec

	closeOnce sync.Once
	closed    atomic.Bool

	exported     atomic.Uint64
	exportErrors atomic.Uint64
}

// Stats returns exporter telemetry.
type Stats struct {
	Exported     uint64
	ExportErrors uint64
}

// NewExporter connects to Redis and verifies the connection with PING.
func NewExporter(cfg Config) (*Exporter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := &redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		PoolSize:     cfg.Workers * 2,
		MinIdleConns: 1,
	}

	if cfg.TLS {
		opts.TLSConfig = &tls.Config{
			MinVersion:    tls.VersionTLS12,
			ServerName:    cfg.TLSServerName,
			Renegotiation: tls.RenegotiateNever,
		}
	}

	client := redis.NewClient(opts)
	if err := ping(client); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewExporterFromClient(client, cfg)
}

// NewExporterFromClient uses an existing client. Close closes the client.
func NewExporterFromClient(client *redis.Client, cfg Config) (*Exporter, error) {
	if client == nil {
		return nil, errors.New("redisstream: nil client")
	}
	if cfg.Codec == "" {
		cfg.Codec = "json"
	}
	codec, err := xtap.NewCodec(cfg.Codec)
	if err != nil {
		return nil, err
	}
	return &Exporter{cfg: cfg, client: client, codec: codec}, nil
}

// Export appends recs to the stream (pipelined XADD).
func (e *Exporter) Export(ctx context.Context, recs ...xtap.Record) error {
	if e.closed.Load() {
		return errors.New("redisstream exporter is closed")
	}
	if len(recs) == 0 {
		return nil
	}

	pipe := e.client.Pipeline()
	for i := range recs {
		payload, err := e.codec.Marshal(recs[i])
		if err != nil {
			e.exportErrors.Add(1)
			return err
		}

		vals := make(map[string]any, 6+len(recs[i].Metadata))
		if recs[i].ID != "" {
			vals[fieldID] = recs[i].ID
		}
		vals[fieldRunID] = recs[i].RunID
		vals[fieldKind] = string(recs[i].Kind)
		vals[fieldPayload] = payload
		vals[fieldStartedAt] = recs[i].StartedAt.UnixNano()
		vals[fieldCodec] = e.codec.Name()
		for k, v := range recs[i].Metadata {
			vals[fieldMetaPrefix+k] = v
		}

		args := &redis.XAddArgs{
			Stream: e.cfg.Stream,
			ID:     "*",
			Values: vals,
		}
		// Approximate trimming to keep stream bounded
		if e.cfg.MaxLenApprox > 0 {
			args.MaxLen = e.cfg.MaxLenApprox
			args.Approx = true
		}
		pipe.XAdd(ctx, args)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		e.exportErrors.Add(uint64(len(recs)))
		return err
	}
	e.exported.Add(uint64(len(recs)))
	return nil
}

// Close releases the Redis client.
func (e *Exporter) Close(_ context.Context) error {
	var err error
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		err = e.client.Close()
	})
	return err
}

func (e *Exporter) Stats() Stats {
	return Stats{
		Exported:     e.exported.Load(),
		ExportErrors: e.exportErrors.Load(),
	}
}

// Read decodes the records currently held in the stream, oldest first.
func (e *Exporter) Read(ctx context.Context, count int64) ([]xtap.Record, error) {
	msgs, err := e.client.XRangeN(ctx, e.cfg.Stream, "-", "+", count).Result()
	if err != nil {
		return nil, err
	}
	out := make([]xtap.Record, 0, len(msgs))
	for _, m := range msgs {
		raw, ok := m.Values[fieldPayload].(string)
		if !ok {
			continue
		}
		rec, err := xtap.DecodeRecord(e.codec, []byte(raw))
		if err != nil {
			return out, err
		}
		if rec.ID == "" {
			rec.ID = m.ID
		}
		out = append(out, rec)
	}
	return out, nil
}

func ping(c *redis.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res, err := c.Ping(ctx).Result()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("redis ping timeout: %w", err)
		}
		return err
	}

	if strings.ToUpper(res) != "PONG" {
		return fmt.Errorf("unexpected redis ping result: %s", res)
	}
	return nil
}
