package audit

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"
)

var csvHeader = []string{"id", "occurred_at", "actor_id", "actor_email", "action", "entity", "entity_id", "meta"}

// WriteCSV renders rows as CSV with a header line.
func WriteCSV(rows []TimelineRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, row := range rows {
		actor := ""
		if row.ActorID != nil {
			actor = strconv.FormatInt(*row.ActorID, 10)
		}
		record := []string{
			strconv.FormatInt(row.ID, 10),
			row.At.UTC().Format(time.RFC3339),
			actor,
			row.ActorEmail,
			row.Action,
			row.Entity,
			row.EntityID,
			string(row.Meta),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
