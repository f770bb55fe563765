package clickhouse

import (
	"Go2DAQSpectra/internal/config"
	"Go2DAQSpectra/internal/model"
	"Go2DAQSpectra/internal/store"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

const createRecordsTableStatement = `
CREATE TABLE IF NOT EXISTS measurement_records (
    ID                 String,
    CreatedAt          DateTime64(3),
    SampleRate         UInt32,
    Voltage            String,
    ElementsPerRequest UInt32,
    Averaging          UInt8,
    Channels           Array(UInt8),
    DurationMs         UInt64,
    Finished           UInt8,
    Points             UInt64,
    UpdatedAt          DateTime64(3)
) ENGINE = ReplacingMergeTree(UpdatedAt)
ORDER BY ID;
`

const createPointsTableStatement = `
CREATE TABLE IF NOT EXISTS measurement_points (
    RecordID  String,
    Channel   UInt8,
    Seq       UInt64,
    ElapsedNs Int64,
    Value     Float64,
    Values    Array(Float64)
) ENGINE = MergeTree()
ORDER BY (RecordID, Channel, Seq);
`

func init() {
	store.Register("clickhouse", func(cfg config.StoreConfig, logger *zap.Logger) (store.Store, error) {
		return New(cfg.ClickHouse, logger)
	})
}

// pointRow is one row of measurement_points.
type pointRow struct {
	Channel   uint8
	Seq       uint64
	ElapsedNs int64
	Value     float64
	Values    []float64
}

// Store writes record headers to measurement_records and points to
// measurement_points. Each save only inserts points not written before.
type Store struct {
	conn   driver.Conn
	logger *zap.Logger

	mu        sync.Mutex
	persisted map[string]map[int]int
}

// New connects to ClickHouse and ensures both tables exist.
func New(cfg config.ClickHouseConfig, logger *zap.Logger) (*Store, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	ctx := context.Background()
	if err := conn.Exec(ctx, createRecordsTableStatement); err != nil {
		return nil, fmt.Errorf("failed to create measurement_records table: %w", err)
	}
	if err := conn.Exec(ctx, createPointsTableStatement); err != nil {
		return nil, fmt.Errorf("failed to create measurement_points table: %w", err)
	}
	logger.Info("connected to ClickHouse and ensured measurement tables exist",
		zap.String("host", cfg.Host), zap.Int("port", cfg.Port))

	return &Store{
		conn:      conn,
		logger:    logger.With(zap.String("store", "clickhouse")),
		persisted: make(map[string]map[int]int),
	}, nil
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

func (s *Store) Create(ctx context.Context, h model.Header) (*model.Record, error) {
	rec := model.NewRecord(h)
	if err := s.writeHeader(ctx, rec, false); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.persisted[h.ID] = make(map[int]int)
	s.mu.Unlock()
	return rec, nil
}

func (s *Store) Save(ctx context.Context, rec *model.Record, finished bool) error {
	s.mu.Lock()
	done, ok := s.persisted[rec.ID()]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("record %s was not created by this store", rec.ID())
	}
	rows, next := pendingRows(rec, done)
	s.mu.Unlock()

	if len(rows) > 0 {
		if err := s.writePoints(ctx, rec.ID(), rows); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.persisted[rec.ID()] = next
	if finished {
		delete(s.persisted, rec.ID())
	}
	s.mu.Unlock()

	if err := s.writeHeader(ctx, rec, finished); err != nil {
		return err
	}
	s.logger.Info("record saved", zap.String("record", rec.ID()), zap.Int("new_points", len(rows)), zap.Bool("finished", finished))
	return nil
}

// pendingRows returns the rows after the per-channel counts in done, and the updated counts.
func pendingRows(rec *model.Record, done map[int]int) ([]pointRow, map[int]int) {
	next := make(map[int]int, len(done))
	var rows []pointRow
	for _, ch := range rec.Channels() {
		series, _ := rec.Series(ch)
		from := done[ch]
		for i := from; i < series.Len(); i++ {
			row := pointRow{
				Channel:   uint8(ch),
				Seq:       uint64(i),
				ElapsedNs: series.Elapsed[i].Nanoseconds(),
			}
			switch series.Kind {
			case model.KindScalar:
				row.Value = series.Scalars[i]
				row.Values = []float64{}
			case model.KindSequence:
				row.Values = series.Sequences[i]
			}
			rows = append(rows, row)
		}
		next[ch] = series.Len()
	}
	return rows, next
}

func (s *Store) writePoints(ctx context.Context, id string, rows []pointRow) error {
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO measurement_points")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, r := range rows {
		if err := batch.Append(id, r.Channel, r.Seq, r.ElapsedNs, r.Value, r.Values); err != nil {
			return fmt.Errorf("failed to append point to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

func (s *Store) writeHeader(ctx context.Context, rec *model.Record, finished bool) error {
	h := rec.Header()
	channels := make([]uint8, len(h.Channels))
	for i, ch := range h.Channels {
		channels[i] = uint8(ch)
	}

	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO measurement_records")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	err = batch.Append(
		h.ID,
		h.CreatedAt,
		uint32(h.SampleRate),
		string(h.Voltage),
		uint32(h.ElementsPerRequest),
		boolToUInt8(h.Averaging),
		channels,
		uint64(h.Duration.Milliseconds()),
		boolToUInt8(finished),
		uint64(rec.Total()),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append record to batch: %w", err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
