package store

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'customer',
		referral_code TEXT NOT NULL UNIQUE,
		referred_by   TEXT REFERENCES users(id),
		user_points   INTEGER NOT NULL DEFAULT 0 CHECK (user_points >= 0),
		created_at    DATETIME NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS events (
		id              TEXT PRIMARY KEY,
		organizer_id    TEXT NOT NULL REFERENCES users(id),
		title           TEXT NOT NULL,
		price           INTEGER NOT NULL CHECK (price >= 0),
		available_seats INTEGER NOT NULL CHECK (available_seats >= 0),
		created_at      DATETIME NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS ticket_types (
		id       TEXT PRIMARY KEY,
		event_id TEXT NOT NULL REFERENCES events(id),
		name     TEXT NOT NULL,
		price    INTEGER NOT NULL CHECK (price >= 0),
		quantity INTEGER NOT NULL CHECK (quantity >= 0)
	)`,

	`CREATE TABLE IF NOT EXISTS transactions (
		id             TEXT PRIMARY KEY,
		user_id        TEXT NOT NULL REFERENCES users(id),
		event_id       TEXT NOT NULL REFERENCES events(id),
		ticket_type_id TEXT REFERENCES ticket_types(id),
		quantity       INTEGER NOT NULL CHECK (quantity > 0),
		total_price    INTEGER NOT NULL CHECK (total_price >= 0),
		status         TEXT NOT NULL,
		expires_at     DATETIME,
		voucher_code   TEXT,
		points_used    INTEGER NOT NULL DEFAULT 0 CHECK (points_used >= 0),
		payment_proof  TEXT,
		created_at     DATETIME NOT NULL,
		updated_at     DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_status_expires
		ON transactions (status, expires_at)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_user
		ON transactions (user_id)`,

	`CREATE TABLE IF NOT EXISTS points (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES users(id),
		amount     INTEGER NOT NULL CHECK (amount >= 0),
		expires_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_points_user_expires
		ON points (user_id, expires_at)`,

	`CREATE TABLE IF NOT EXISTS coupons (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES users(id),
		code       TEXT NOT NULL UNIQUE,
		discount   INTEGER NOT NULL CHECK (discount > 0),
		expires_at DATETIME NOT NULL,
		is_used    INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS promotions (
		id         TEXT PRIMARY KEY,
		event_id   TEXT NOT NULL REFERENCES events(id),
		code       TEXT NOT NULL UNIQUE,
		discount   INTEGER NOT NULL CHECK (discount > 0),
		start_date DATETIME NOT NULL,
		end_date   DATETIME NOT NULL,
		max_uses   INTEGER,
		uses       INTEGER NOT NULL DEFAULT 0
	)`,
}
