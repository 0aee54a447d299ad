package app

import (
	"context"

	"github.com/tallyhq/tally/internal/common"
	"github.com/tallyhq/tally/internal/interfaces"
)

const schemaVersionKey = "tally_schema_version"

// checkSchemaVersion compares the stored schema version against the code's
// SchemaVersion constant. On mismatch (or missing version), it purges all
// cube rows and stores the new version. The cube is derived data; anchors
// and transactions are untouched and the cube repopulates on demand.
// Returns true if a purge occurred.
func checkSchemaVersion(ctx context.Context, sm interfaces.StorageManager, logger *common.Logger) bool {
	kv := sm.InternalStore()

	stored, err := kv.GetSystemKV(ctx, schemaVersionKey)
	if err == nil && stored == common.SchemaVersion {
		logger.Info().
			Str("version", common.SchemaVersion).
			Msg("Schema version matches, no cube purge needed")
		return false
	}

	if err != nil {
		logger.Info().
			Str("current", common.SchemaVersion).
			Msg("Schema version not found, initializing (first run or pre-versioning)")
	} else {
		logger.Warn().
			Str("stored", stored).
			Str("current", common.SchemaVersion).
			Msg("Schema version mismatch, purging cube rows")
	}

	purged, purgeErr := sm.CubeStore().ClearAll(ctx)
	if purgeErr != nil {
		logger.Error().Err(purgeErr).Msg("Failed to purge cube rows during schema migration")
		return false
	}

	logger.Info().
		Int("rows_purged", purged).
		Str("new_version", common.SchemaVersion).
		Msg("Schema migration complete")

	if err := kv.SetSystemKV(ctx, schemaVersionKey, common.SchemaVersion); err != nil {
		logger.Error().Err(err).Msg("Failed to store new schema version")
	}

	return true
}
