package storage

const (
	queryCreateReadingsTable = `
		CREATE TABLE IF NOT EXISTS plate_readings (
			id              TEXT PRIMARY KEY,
			plate           TEXT NOT NULL,
			format          TEXT NOT NULL,
			confidence      DOUBLE PRECISION NOT NULL,
			source_image    TEXT,
			crop_image      TEXT,
			annotated_image TEXT,
			captured_at     TIMESTAMPTZ NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS plate_readings_plate_idx ON plate_readings (plate);
		CREATE INDEX IF NOT EXISTS plate_readings_captured_at_idx ON plate_readings (captured_at);`

	queryCreateReading = `
		INSERT INTO plate_readings (
			id, plate, format, confidence, source_image, crop_image, annotated_image, captured_at, created_at
		) VALUES (
			:id, :plate, :format, :confidence, :source_image, :crop_image, :annotated_image, :captured_at, :created_at
		)`

	queryListReadings = `
		SELECT id, plate, format, confidence, source_image, crop_image, annotated_image, captured_at, created_at
		FROM plate_readings
		WHERE (:plate = '' OR plate ILIKE :plate_pattern)
			AND (:from_set = FALSE OR captured_at >= :from)
			AND (:to_set = FALSE OR captured_at <= :to)
		ORDER BY captured_at DESC
		LIMIT :limit`
)
