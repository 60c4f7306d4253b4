package store

import (
	"context"
	"encoding/json"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nordforge/scim-ad-bridge/directory"
)

// AuditStore persists directory.AuditEntry rows. It implements
// directory.AuditRecorder.
type AuditStore struct {
	pool   *pgxpool.Pool
	Logger kitlog.Logger
}

var _ directory.AuditRecorder = (*AuditStore)(nil)

// Record writes entry as an audit_log row. Per spec.md's fire-and-forget
// contract, a failure here is logged and swallowed, never returned to the
// caller — the directory.Executor that invokes Record has no error path to
// propagate one through.
func (a *AuditStore) Record(ctx context.Context, entry directory.AuditEntry) {
	paramsJSON, err := json.Marshal(entry.Parameters)
	if err != nil {
		a.logError("marshal audit parameters", err)
		return
	}

	_, err = a.pool.Exec(ctx, `
		INSERT INTO audit_log (cmdlet, parameters, stdout, stderr, exit_code, duration_ms, scim_user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		entry.Cmdlet,
		Truncate(string(paramsJSON), MaxParamsLen),
		Truncate(entry.Stdout, MaxOutputLen),
		Truncate(entry.Stderr, MaxOutputLen),
		entry.ExitCode,
		entry.DurationMs,
		entry.ScimUserID,
	)
	if err != nil {
		a.logError("insert audit row", err)
	}
}

func (a *AuditStore) logError(msg string, err error) {
	if a.Logger == nil {
		return
	}
	level.Error(a.Logger).Log("msg", msg, "err", err)
}
