package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ConditionKind tags each entry of an escrow's conditions document.
type ConditionKind string

const (
	ConditionKindTerms      ConditionKind = "escrow_conditions"
	ConditionKindDispute    ConditionKind = "dispute"
	ConditionKindResolution ConditionKind = "resolution"
)

// Terms are the release conditions agreed when the escrow is opened or when an
// external delivery signal arrives.
type Terms struct {
	Description      string     `json:"description,omitempty"`
	DeliveryRequired bool       `json:"delivery_required,omitempty"`
	DeliveredAt      *time.Time `json:"delivered_at,omitempty"`
	Source           string     `json:"source,omitempty"`
}

type DisputeRecord struct {
	Initiator uuid.UUID `json:"initiator"`
	Reason    string    `json:"reason"`
	Evidence  []string  `json:"evidence,omitempty"`
	At        time.Time `json:"at"`
}

// Resolution outcomes fed back by the external arbiter.
const (
	ResolutionBuyer  = "buyer"
	ResolutionSeller = "seller"
)

type ResolutionRecord struct {
	InFavorOf string    `json:"in_favor_of"`
	Note      string    `json:"note,omitempty"`
	At        time.Time `json:"at"`
}

// ConditionEntry is one variant of the conditions document. Exactly one payload
// field is set and it must match Kind.
type ConditionEntry struct {
	Kind       ConditionKind     `json:"kind"`
	Terms      *Terms            `json:"terms,omitempty"`
	Dispute    *DisputeRecord    `json:"dispute,omitempty"`
	Resolution *ResolutionRecord `json:"resolution,omitempty"`
}

func (c ConditionEntry) Validate() error {
	set := 0
	if c.Terms != nil {
		set++
	}
	if c.Dispute != nil {
		set++
	}
	if c.Resolution != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("condition entry %q must carry exactly one payload", c.Kind)
	}
	switch c.Kind {
	case ConditionKindTerms:
		if c.Terms == nil {
			return fmt.Errorf("condition entry %q missing terms", c.Kind)
		}
	case ConditionKindDispute:
		if c.Dispute == nil {
			return fmt.Errorf("condition entry %q missing dispute", c.Kind)
		}
		if c.Dispute.Initiator == uuid.Nil || c.Dispute.Reason == "" {
			return fmt.Errorf("dispute requires initiator and reason")
		}
	case ConditionKindResolution:
		if c.Resolution == nil {
			return fmt.Errorf("condition entry %q missing resolution", c.Kind)
		}
		if c.Resolution.InFavorOf != ResolutionBuyer && c.Resolution.InFavorOf != ResolutionSeller {
			return fmt.Errorf("resolution must favour buyer or seller")
		}
	default:
		return fmt.Errorf("unknown condition kind %q", c.Kind)
	}
	return nil
}

// Conditions is the append-only conditions document of an escrow. Extensions
// holds forward-compatible fields the core does not interpret.
type Conditions struct {
	Entries    []ConditionEntry           `json:"entries"`
	Extensions map[string]json.RawMessage `json:"extensions,omitempty"`
}

func (c Conditions) Validate() error {
	for i, e := range c.Entries {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("entries[%d]: %w", i, err)
		}
	}
	return nil
}

// Append adds an entry without touching prior content.
func (c *Conditions) Append(e ConditionEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	c.Entries = append(c.Entries, e)
	return nil
}

// Disputes returns every dispute record, oldest first.
func (c Conditions) Disputes() []DisputeRecord {
	var out []DisputeRecord
	for _, e := range c.Entries {
		if e.Kind == ConditionKindDispute && e.Dispute != nil {
			out = append(out, *e.Dispute)
		}
	}
	return out
}

// Clone returns a deep copy so callers can mutate without aliasing stored rows.
func (c Conditions) Clone() Conditions {
	out := Conditions{Entries: make([]ConditionEntry, len(c.Entries))}
	copy(out.Entries, c.Entries)
	if c.Extensions != nil {
		out.Extensions = make(map[string]json.RawMessage, len(c.Extensions))
		for k, v := range c.Extensions {
			out.Extensions[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

func (c Conditions) MarshalJSON() ([]byte, error) {
	type alias Conditions
	if c.Entries == nil {
		c.Entries = []ConditionEntry{}
	}
	return json.Marshal(alias(c))
}

func (c *Conditions) UnmarshalJSON(data []byte) error {
	type alias Conditions
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	out := Conditions(a)
	if err := out.Validate(); err != nil {
		return err
	}
	*c = out
	return nil
}
