// internal/activity/postgres.go
package activity

import (
	"database/sql"

	"github.com/rs/zerolog"
)

// PostgresSink appends audit records to a single activity_log table.
type PostgresSink struct {
	DB  *sql.DB
	Log zerolog.Logger
}

func NewPostgresSink(db *sql.DB, log zerolog.Logger) (*PostgresSink, error) {
	s := &PostgresSink{DB: db, Log: log}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresSink) ensureSchema() error {
	_, err := s.DB.Exec(`
        CREATE TABLE IF NOT EXISTS activity_log (
            id          BIGSERIAL PRIMARY KEY,
            actor       TEXT NOT NULL,
            action      TEXT NOT NULL,
            subject     TEXT NOT NULL,
            subject_id  TEXT NOT NULL,
            detail      TEXT NOT NULL DEFAULT '',
            created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )
    `)
	return err
}

// Record inserts the event; failures are logged and swallowed so the
// send loop never stalls on the audit trail.
func (s *PostgresSink) Record(e Event) {
	query := `
        INSERT INTO activity_log (actor, action, subject, subject_id, detail)
        VALUES ($1, $2, $3, $4, $5)
    `
	if _, err := s.DB.Exec(query, e.Actor, e.Action, e.Subject, e.SubjectID, e.Detail); err != nil {
		s.Log.Warn().Err(err).Str("action", e.Action).Msg("activity record failed")
	}
}

var _ Sink = (*PostgresSink)(nil)
