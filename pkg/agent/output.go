package agent

import (
	"encoding/json"
	"fmt"
)

// Output is the final result of a run. A failed run carries only Status and
// Error; a completed run carries ValidatedItems and FailedItemsCount.
type Output struct {
	Status           string
	ValidatedItems   []Record
	FailedItemsCount int
	Error            string
}

type completedWire struct {
	Status           string   `json:"status" yaml:"status"`
	ValidatedItems   []Record `json:"validated_items" yaml:"validated_items"`
	FailedItemsCount int      `json:"failed_items_count" yaml:"failed_items_count"`
}

type failedWire struct {
	Status string `json:"status" yaml:"status"`
	Error  string `json:"error" yaml:"error"`
}

func (o Output) wire() any {
	if o.Status == StatusFailed {
		return failedWire{Status: o.Status, Error: o.Error}
	}
	items := o.ValidatedItems
	if items == nil {
		items = []Record{}
	}
	return completedWire{Status: o.Status, ValidatedItems: items, FailedItemsCount: o.FailedItemsCount}
}

// MarshalJSON renders the success or failure shape.
func (o Output) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.wire())
}

// MarshalYAML renders the same shapes as MarshalJSON.
func (o Output) MarshalYAML() (any, error) {
	return o.wire(), nil
}

// UnmarshalJSON accepts either shape.
func (o *Output) UnmarshalJSON(data []byte) error {
	var raw struct {
		Status           string   `json:"status"`
		ValidatedItems   []Record `json:"validated_items"`
		FailedItemsCount int      `json:"failed_items_count"`
		Error            string   `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode output: %w", err)
	}
	*o = Output{
		Status:           raw.Status,
		ValidatedItems:   raw.ValidatedItems,
		FailedItemsCount: raw.FailedItemsCount,
		Error:            raw.Error,
	}
	return nil
}

// Succeeded reports whether the run completed.
func (o Output) Succeeded() bool {
	return o.Status == StatusCompleted
}

// BillingStatus maps the output onto the billing status vocabulary.
func (o Output) BillingStatus() string {
	switch {
	case o.Status != StatusCompleted:
		return StatusFailed
	case o.FailedItemsCount > 0:
		return StatusCompletedWithFailures
	default:
		return StatusCompleted
	}
}
