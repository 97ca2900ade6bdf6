package plan

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Decoder reads saved plans out of a history table where each row carries
// one plan serialized as a JSON object in a single cell.
type Decoder struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewDecoder creates a Decoder.
func NewDecoder(logger *zap.Logger) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{logger: logger, now: time.Now}
}

// Decode returns the plans found in rows, all tagged cloud. Row 0 is
// skipped as a header unless it already holds a JSON object. Rows without
// a parsable object are skipped.
func (d *Decoder) Decode(rows [][]string) []Plan {
	if len(rows) == 0 {
		return nil
	}

	data := rows
	if findObject(rows[0]) == "" {
		data = rows[1:]
	}

	stamp := d.now().UnixMilli()
	var plans []Plan
	for i, row := range data {
		raw := findObject(row)
		if raw == "" {
			continue
		}

		p, err := parseRecord(raw)
		if err != nil {
			d.logger.Warn("Skipping malformed plan row", zap.Int("row", i), zap.Error(err))
			continue
		}

		if p.ID == "" {
			p.ID = fmt.Sprintf("cloud-%d-%d", stamp, i)
		}
		p.Origin = OriginCloud
		plans = append(plans, p)
	}

	return plans
}

// Decode is a convenience over a default Decoder.
func Decode(rows [][]string) []Plan {
	return NewDecoder(nil).Decode(rows)
}

// findObject returns the first cell that looks like a serialized object.
func findObject(row []string) string {
	for _, cell := range row {
		c := strings.TrimSpace(cell)
		if strings.HasPrefix(c, "{") && strings.HasSuffix(c, "}") {
			return c
		}
	}
	return ""
}
