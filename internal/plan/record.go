package plan

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"nutriplan/internal/catalogue"
)

// Records in the shared sheet are written by hand and by other clients,
// so scalar fields are read loosely: ids may be numbers, counts may be
// strings and createdAt may be unix millis.

type planRecord struct {
	ID        json.RawMessage `json:"id"`
	Name      json.RawMessage `json:"name"`
	CreatedAt json.RawMessage `json:"createdAt"`
	StartDate json.RawMessage `json:"startDate"`
	Days      json.RawMessage `json:"days"`
	Plan      json.RawMessage `json:"plan"`
}

type dayRecord struct {
	Date   json.RawMessage `json:"date"`
	Lunch  json.RawMessage `json:"lunch"`
	Dinner json.RawMessage `json:"dinner"`
}

type dishRecord struct {
	ID             json.RawMessage `json:"id"`
	Name           json.RawMessage `json:"name"`
	CanBeLunch     json.RawMessage `json:"canBeLunch"`
	CanBeDinner    json.RawMessage `json:"canBeDinner"`
	Category       json.RawMessage `json:"category"`
	IsSaturdayOnly json.RawMessage `json:"isSaturdayOnly"`
	IsSundayOnly   json.RawMessage `json:"isSundayOnly"`
}

// parseRecord fails only when raw is not a JSON object.
func parseRecord(raw string) (Plan, error) {
	var rec planRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Plan{}, err
	}

	p := Plan{
		ID:        text(rec.ID),
		Name:      text(rec.Name),
		CreatedAt: timestamp(rec.CreatedAt),
		StartDate: text(rec.StartDate),
		Plan:      parseDays(rec.Plan),
	}
	days, ok := integer(rec.Days)
	if !ok {
		days = len(p.Plan)
	}
	p.Days = days
	return p, nil
}

func parseDays(raw json.RawMessage) []DayAssignment {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}

	out := make([]DayAssignment, 0, len(items))
	for _, item := range items {
		var rec dayRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			continue
		}
		out = append(out, DayAssignment{
			Date:   text(rec.Date),
			Lunch:  parseDish(rec.Lunch),
			Dinner: parseDish(rec.Dinner),
		})
	}
	return out
}

func parseDish(raw json.RawMessage) catalogue.Dish {
	var rec dishRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		// A bare name is accepted in place of a dish object.
		return catalogue.Dish{Name: text(raw)}
	}
	return catalogue.Dish{
		ID:             text(rec.ID),
		Name:           text(rec.Name),
		CanBeLunch:     flag(rec.CanBeLunch),
		CanBeDinner:    flag(rec.CanBeDinner),
		Category:       text(rec.Category),
		IsSaturdayOnly: flag(rec.IsSaturdayOnly),
		IsSundayOnly:   flag(rec.IsSundayOnly),
	}
}

func scalar(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}

func text(raw json.RawMessage) string {
	switch v := scalar(raw).(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

func integer(raw json.RawMessage) (int, bool) {
	s := strings.TrimSpace(text(raw))
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

func flag(raw json.RawMessage) bool {
	switch v := scalar(raw).(type) {
	case bool:
		return v
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		return s == "true" || s == "1"
	case json.Number:
		f, err := v.Float64()
		return err == nil && f != 0
	}
	return false
}

// timestamp keeps string dates as written and turns unix millis into RFC 3339.
func timestamp(raw json.RawMessage) string {
	if n, ok := scalar(raw).(json.Number); ok {
		if ms, err := n.Int64(); err == nil {
			return time.UnixMilli(ms).UTC().Format(time.RFC3339Nano)
		}
	}
	return text(raw)
}
