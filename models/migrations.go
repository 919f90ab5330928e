package models

import (
	"database/sql"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// DDL for note metadata. The id is client generated and globally unique,
// so it is the primary key on its own; owner_guid scopes writes.
const DDLCreateNotesTable = `
CREATE TABLE IF NOT EXISTS notes (
    guid              VARCHAR PRIMARY KEY,
    owner_guid        VARCHAR NOT NULL,
    title             VARCHAR NOT NULL DEFAULT '',
    note_type         VARCHAR NOT NULL,
    is_deleted        BOOLEAN NOT NULL DEFAULT false,
    updated_at        TIMESTAMP NOT NULL,
    server_updated_at TIMESTAMP NOT NULL,
    created_at        TIMESTAMP NOT NULL
);
`

const DDLCreateNotesIndexOwner = `
CREATE INDEX IF NOT EXISTS idx_notes_owner_guid ON notes(owner_guid);
`

// Content lives apart from metadata so the two can sync at different cadences.
// payload is the msgpack encoding of the typed content.
const DDLCreateNoteContentsTable = `
CREATE TABLE IF NOT EXISTS note_contents (
    note_guid         VARCHAR PRIMARY KEY,
    owner_guid        VARCHAR NOT NULL,
    note_type         VARCHAR NOT NULL,
    payload           BLOB,
    updated_at        TIMESTAMP NOT NULL,
    server_updated_at TIMESTAMP NOT NULL,
    updated_by        VARCHAR
);
`

const DDLCreateNoteSharesTable = `
CREATE TABLE IF NOT EXISTS note_shares (
    note_guid    VARCHAR NOT NULL,
    grantee_guid VARCHAR NOT NULL,
    permission   VARCHAR NOT NULL,
    granted_by   VARCHAR,
    granted_at   TIMESTAMP NOT NULL,
    PRIMARY KEY (note_guid, grantee_guid)
);
`

const DDLCreateNoteSharesIndexGrantee = `
CREATE INDEX IF NOT EXISTS idx_note_shares_grantee_guid ON note_shares(grantee_guid);
`

const DDLCreatePagesTable = `
CREATE TABLE IF NOT EXISTS pages (
    notebook_guid     VARCHAR NOT NULL,
    page_index        INTEGER NOT NULL,
    owner_guid        VARCHAR NOT NULL,
    layers            BLOB,
    updated_at        TIMESTAMP NOT NULL,
    server_updated_at TIMESTAMP NOT NULL,
    updated_by        VARCHAR,
    PRIMARY KEY (notebook_guid, page_index)
);
`

// migrateDB creates every table the hub needs. Statements are idempotent.
func migrateDB(handle *sql.DB) error {
	statements := []struct {
		name string
		sql  string
	}{
		{"users", CreateUsersTableSQL},
		{"notes", DDLCreateNotesTable},
		{"notes owner index", DDLCreateNotesIndexOwner},
		{"note_contents", DDLCreateNoteContentsTable},
		{"note_shares", DDLCreateNoteSharesTable},
		{"note_shares grantee index", DDLCreateNoteSharesIndexGrantee},
		{"pages", DDLCreatePagesTable},
		{"sync_conflicts sequence", DDLCreateSyncConflictsSequence},
		{"sync_conflicts", DDLCreateSyncConflictsTable},
	}

	for _, stmt := range statements {
		if _, err := handle.Exec(stmt.sql); err != nil {
			logger.LogErr(err, "migration statement failed", "name", stmt.name)
			return serr.Wrap(err, "failed to migrate "+stmt.name)
		}
	}

	logger.Debug("Migrations complete", "statements", len(statements))
	return nil
}
