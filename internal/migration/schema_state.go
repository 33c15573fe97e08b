package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// recordSchemaState stores the applied schema version and the checksum of the embedded
// migrations it was built from.
func recordSchemaState(ctx context.Context, conn *sql.Conn, version uint, checksum string) error {
	_, err := conn.ExecContext(ctx, `
		INSERT INTO schema_state (id, schema_version, checksum, applied_at)
		VALUES (TRUE, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET schema_version = EXCLUDED.schema_version,
		    checksum = EXCLUDED.checksum,
		    applied_at = EXCLUDED.applied_at
	`, fmt.Sprintf("%d", version), checksum, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record schema state: %w", err)
	}
	return nil
}
