package storage

var schemaPostgres = []string{
	`CREATE TABLE IF NOT EXISTS sources (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		url TEXT NOT NULL UNIQUE,
		lang TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL DEFAULT 'rss',
		options TEXT NOT NULL DEFAULT '{}',
		trust_score DOUBLE PRECISION NOT NULL DEFAULT 0.5,
		fetch_interval_minutes INTEGER NOT NULL DEFAULT 15,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		last_fetched_at TIMESTAMPTZ,
		last_error TEXT NOT NULL DEFAULT '',
		error_count INTEGER NOT NULL DEFAULT 0,
		quarantine_until TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS source_trust_history (
		id BIGSERIAL PRIMARY KEY,
		source_id BIGINT NOT NULL,
		old_score DOUBLE PRECISION NOT NULL,
		new_score DOUBLE PRECISION NOT NULL,
		reason TEXT NOT NULL,
		changed_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS raw_items (
		id BIGSERIAL PRIMARY KEY,
		source_id BIGINT NOT NULL,
		url TEXT NOT NULL,
		canonical_url TEXT NOT NULL,
		url_hash TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		title_key TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		author TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		published_at TIMESTAMPTZ NOT NULL,
		fetched_at TIMESTAMPTZ NOT NULL,
		lang TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'new',
		fact_check_score DOUBLE PRECISION
	)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_items_fetched ON raw_items (fetched_at)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_items_published ON raw_items (published_at)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_items_title_key ON raw_items (title_key)`,
	`CREATE TABLE IF NOT EXISTS fact_checks (
		id BIGSERIAL PRIMARY KEY,
		raw_item_id BIGINT NOT NULL,
		score DOUBLE PRECISION NOT NULL,
		sources_confirmed INTEGER NOT NULL,
		source_component DOUBLE PRECISION NOT NULL,
		cross_ref_component DOUBLE PRECISION NOT NULL,
		content_component DOUBLE PRECISION NOT NULL,
		computed_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS drafts (
		id BIGSERIAL PRIMARY KEY,
		raw_item_id BIGINT,
		lang TEXT NOT NULL,
		title TEXT NOT NULL,
		lead TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',
		risk_flags TEXT NOT NULL DEFAULT '[]',
		seo_title TEXT NOT NULL DEFAULT '',
		seo_description TEXT NOT NULL DEFAULT '',
		seo_keywords TEXT NOT NULL DEFAULT '[]',
		slug TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		gate_reason TEXT NOT NULL DEFAULT '',
		scheduled_at TIMESTAMPTZ,
		published_at TIMESTAMPTZ,
		primary_url TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL DEFAULT '',
		edited_by TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (raw_item_id, lang)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_drafts_status ON drafts (status, created_at)`,
	`CREATE TABLE IF NOT EXISTS publish_records (
		id BIGSERIAL PRIMARY KEY,
		draft_id BIGINT NOT NULL,
		channel TEXT NOT NULL,
		success BOOLEAN NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		published_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS queue_jobs (
		id BIGSERIAL PRIMARY KEY,
		job_type TEXT NOT NULL,
		payload TEXT NOT NULL DEFAULT '{}',
		priority INTEGER NOT NULL DEFAULT 10,
		status TEXT NOT NULL DEFAULT 'pending',
		attempts INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL DEFAULT 3,
		last_error TEXT NOT NULL DEFAULT '',
		scheduled_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_queue_jobs_claim ON queue_jobs (status, priority, scheduled_at)`,
	`CREATE TABLE IF NOT EXISTS logs (
		id BIGSERIAL PRIMARY KEY,
		level INTEGER NOT NULL,
		message TEXT NOT NULL,
		attrs TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL
	)`,
}

var schemaSQLite = []string{
	`CREATE TABLE IF NOT EXISTS sources (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		url TEXT NOT NULL UNIQUE,
		lang TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL DEFAULT 'rss',
		options TEXT NOT NULL DEFAULT '{}',
		trust_score REAL NOT NULL DEFAULT 0.5,
		fetch_interval_minutes INTEGER NOT NULL DEFAULT 15,
		enabled BOOLEAN NOT NULL DEFAULT 1,
		last_fetched_at TIMESTAMP,
		last_error TEXT NOT NULL DEFAULT '',
		error_count INTEGER NOT NULL DEFAULT 0,
		quarantine_until TIMESTAMP,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS source_trust_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_id INTEGER NOT NULL,
		old_score REAL NOT NULL,
		new_score REAL NOT NULL,
		reason TEXT NOT NULL,
		changed_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS raw_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_id INTEGER NOT NULL,
		url TEXT NOT NULL,
		canonical_url TEXT NOT NULL,
		url_hash TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		title_key TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		author TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		published_at TIMESTAMP NOT NULL,
		fetched_at TIMESTAMP NOT NULL,
		lang TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'new',
		fact_check_score REAL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_items_fetched ON raw_items (fetched_at)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_items_published ON raw_items (published_at)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_items_title_key ON raw_items (title_key)`,
	`CREATE TABLE IF NOT EXISTS fact_checks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		raw_item_id INTEGER NOT NULL,
		score REAL NOT NULL,
		sources_confirmed INTEGER NOT NULL,
		source_component REAL NOT NULL,
		cross_ref_component REAL NOT NULL,
		content_component REAL NOT NULL,
		computed_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS drafts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		raw_item_id INTEGER,
		lang TEXT NOT NULL,
		title TEXT NOT NULL,
		lead TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',
		risk_flags TEXT NOT NULL DEFAULT '[]',
		seo_title TEXT NOT NULL DEFAULT '',
		seo_description TEXT NOT NULL DEFAULT '',
		seo_keywords TEXT NOT NULL DEFAULT '[]',
		slug TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		gate_reason TEXT NOT NULL DEFAULT '',
		scheduled_at TIMESTAMP,
		published_at TIMESTAMP,
		primary_url TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL DEFAULT '',
		edited_by TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (raw_item_id, lang)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_drafts_status ON drafts (status, created_at)`,
	`CREATE TABLE IF NOT EXISTS publish_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		draft_id INTEGER NOT NULL,
		channel TEXT NOT NULL,
		success BOOLEAN NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		published_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS queue_jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_type TEXT NOT NULL,
		payload TEXT NOT NULL DEFAULT '{}',
		priority INTEGER NOT NULL DEFAULT 10,
		status TEXT NOT NULL DEFAULT 'pending',
		attempts INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL DEFAULT 3,
		last_error TEXT NOT NULL DEFAULT '',
		scheduled_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_queue_jobs_claim ON queue_jobs (status, priority, scheduled_at)`,
	`CREATE TABLE IF NOT EXISTS logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		level INTEGER NOT NULL,
		message TEXT NOT NULL,
		attrs TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL
	)`,
}
