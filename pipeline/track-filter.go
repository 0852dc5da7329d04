package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/diegoholiveira/jsonlogic"
	"github.com/relloyd/trackpipe/spotify"
)

// TrackFilter keeps the track rows for which a JSON Logic rule evaluates to true.
// Rules see the row's JSON field names, e.g. {">=": [{"var": "popularity"}, 50]}.
type TrackFilter struct {
	rule string
}

// NewTrackFilter returns nil for an empty rule, meaning every row is kept.
func NewTrackFilter(rule string) (*TrackFilter, error) {
	if strings.TrimSpace(rule) == "" {
		return nil, nil
	}
	if !jsonlogic.IsValid(strings.NewReader(rule)) {
		return nil, fmt.Errorf("invalid track filter rule: %v", rule)
	}
	return &TrackFilter{rule: rule}, nil
}

// Apply returns the rows that pass the rule in their original order.
func (f *TrackFilter) Apply(rows []spotify.TrackRow) ([]spotify.TrackRow, error) {
	if f == nil {
		return rows, nil
	}
	var result bytes.Buffer
	retval := make([]spotify.TrackRow, 0, len(rows))
	for _, row := range rows {
		result.Reset()
		if err := applyJsonLogic(row, f.rule, &result); err != nil {
			return nil, err
		}
		if strings.TrimSpace(result.String()) == "true" {
			retval = append(retval, row)
		}
	}
	return retval, nil
}

// applyJsonLogic will apply json logic supplied in rule to data.
// It assumes the caller has validated the logic already!
func applyJsonLogic(data interface{}, rule string, result *bytes.Buffer) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("error marshalling data before applying JSON logic: %v", err)
	}
	err = jsonlogic.Apply(strings.NewReader(rule), bytes.NewReader(jsonData), result)
	if err != nil {
		return fmt.Errorf("error applying JSON logic: %v", err)
	}
	return nil
}
