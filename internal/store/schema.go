package store

const schema = `
CREATE TABLE IF NOT EXISTS packages (
    name TEXT PRIMARY KEY,
    repo TEXT NOT NULL,
    provider TEXT NOT NULL,
    kind TEXT NOT NULL,
    channel TEXT NOT NULL,
    pinned BOOLEAN NOT NULL DEFAULT 0,
    version TEXT NOT NULL DEFAULT '',
    install_path TEXT NOT NULL DEFAULT '',
    exec_path TEXT NOT NULL DEFAULT '',
    checksum TEXT NOT NULL DEFAULT '',
    symlink_path TEXT NOT NULL DEFAULT '',
    desktop_entry_path TEXT NOT NULL DEFAULT '',
    match_pattern TEXT NOT NULL DEFAULT '',
    exclude_pattern TEXT NOT NULL DEFAULT '',
    etag TEXT NOT NULL DEFAULT '',
    last_checked_at TIMESTAMP,
    last_updated_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_packages_provider ON packages(provider);
CREATE INDEX IF NOT EXISTS idx_packages_pinned ON packages(pinned);
`
