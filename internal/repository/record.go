package repository

import "github.com/steveyegge/convanalytics/internal/dbutil"

// toRecords adapts the map literals concrete repositories build for batch
// calls into dbutil.Record, which is itself just a defined map type.
func toRecords(maps []map[string]any) []dbutil.Record {
	out := make([]dbutil.Record, len(maps))
	for i, m := range maps {
		out[i] = dbutil.Record(m)
	}
	return out
}
