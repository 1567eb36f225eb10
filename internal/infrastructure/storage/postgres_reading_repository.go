package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"plate-reader/internal/domain/entity"
	"plate-reader/internal/domain/port"
)

const defaultListLimit = 100

// PostgresReadingRepository хранилище прочитанных номеров в PostgreSQL
type PostgresReadingRepository struct {
	q   *sqlx.DB
	log *logrus.Logger
}

// ReadingDB строка таблицы plate_readings
type ReadingDB struct {
	ID             string         `db:"id"`
	Plate          string         `db:"plate"`
	Format         string         `db:"format"`
	Confidence     float64        `db:"confidence"`
	SourceImage    sql.NullString `db:"source_image"`
	CropImage      sql.NullString `db:"crop_image"`
	AnnotatedImage sql.NullString `db:"annotated_image"`
	CapturedAt     time.Time      `db:"captured_at"`
	CreatedAt      time.Time      `db:"created_at"`
}

// NewPostgresReadingRepository подключается к базе и создаёт таблицу при необходимости
func NewPostgresReadingRepository(ctx context.Context, dsn string, log *logrus.Logger) (*PostgresReadingRepository, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, queryCreateReadingsTable); err != nil {
		db.Close()
		return nil, err
	}
	return &PostgresReadingRepository{q: db, log: log}, nil
}

// Save сохраняет запись
func (r *PostgresReadingRepository) Save(ctx context.Context, record entity.ReadingRecord) error {
	argsKV := map[string]interface{}{
		"id":              record.ID,
		"plate":           record.Plate,
		"format":          string(record.Format),
		"confidence":      record.Confidence,
		"source_image":    nullString(record.SourceImage),
		"crop_image":      nullString(record.CropImage),
		"annotated_image": nullString(record.AnnotatedImage),
		"captured_at":     record.CapturedAt,
		"created_at":      record.CreatedAt,
	}

	query, args, err := sqlx.Named(queryCreateReading, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"error": err.Error(),
		}).Error("Failed to build SQL query for Save")
		return err
	}
	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"plate": record.Plate,
			"error": err.Error(),
		}).Error("Database error when saving reading")
		return err
	}

	return nil
}

// List возвращает записи по фильтру, новые первыми
func (r *PostgresReadingRepository) List(ctx context.Context, filter entity.ReadingFilter) ([]entity.ReadingRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	argsKV := map[string]interface{}{
		"plate":         filter.Plate,
		"plate_pattern": "%" + filter.Plate + "%",
		"from_set":      !filter.From.IsZero(),
		"from":          filter.From,
		"to_set":        !filter.To.IsZero(),
		"to":            filter.To,
		"limit":         limit,
	}

	query, args, err := sqlx.Named(queryListReadings, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"error": err.Error(),
		}).Error("List named query preparation err")
		return nil, err
	}
	query = r.q.Rebind(query)

	var rows []ReadingDB
	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"error": err.Error(),
		}).Error("Database error when listing readings")
		return nil, err
	}

	out := make([]entity.ReadingRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

// Close закрывает соединение с базой
func (r *PostgresReadingRepository) Close() error {
	return r.q.Close()
}

func (row ReadingDB) toEntity() entity.ReadingRecord {
	return entity.ReadingRecord{
		ID:             row.ID,
		Plate:          row.Plate,
		Format:         entity.PlateFormat(row.Format),
		Confidence:     row.Confidence,
		SourceImage:    row.SourceImage.String,
		CropImage:      row.CropImage.String,
		AnnotatedImage: row.AnnotatedImage.String,
		CapturedAt:     row.CapturedAt,
		CreatedAt:      row.CreatedAt,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Проверка реализации интерфейса
var _ port.ReadingRepository = (*PostgresReadingRepository)(nil)
