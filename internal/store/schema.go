package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS user_items (
    id                   TEXT PRIMARY KEY,
    user_id              TEXT NOT NULL,
    tmdb_id              INTEGER NOT NULL,
    media_type           TEXT NOT NULL,
    status               TEXT NOT NULL,
    added_at             TEXT NOT NULL,
    updated_at           TEXT NOT NULL,
    UNIQUE (user_id, tmdb_id, media_type)
);

CREATE TABLE IF NOT EXISTS user_episodes (
    id                   TEXT PRIMARY KEY,
    user_id              TEXT NOT NULL,
    tmdb_id              INTEGER NOT NULL,
    season_number        INTEGER NOT NULL,
    episode_number       INTEGER NOT NULL,
    runtime              INTEGER NOT NULL DEFAULT 0,
    watched_at           TEXT NOT NULL,
    UNIQUE (user_id, tmdb_id, season_number, episode_number)
);

CREATE TABLE IF NOT EXISTS reviews (
    id                   TEXT PRIMARY KEY,
    user_id              TEXT NOT NULL,
    tmdb_id              INTEGER NOT NULL,
    media_type           TEXT NOT NULL,
    rating               INTEGER NOT NULL,
    content              TEXT NOT NULL DEFAULT '',
    season_number        INTEGER,
    episode_number       INTEGER,
    created_at           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cache_entries (
    key                  TEXT PRIMARY KEY,
    value                BLOB NOT NULL,
    expires_at           INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_items_user_status ON user_items(user_id, status, updated_at);
CREATE INDEX IF NOT EXISTS idx_episodes_user_watched ON user_episodes(user_id, watched_at);
CREATE INDEX IF NOT EXISTS idx_reviews_user_created ON reviews(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_cache_expires ON cache_entries(expires_at);
`
