package dune

import (
	"bytes"
	"encoding/json"
)

// FlexID decodes a JSON string or number into a string identity key.
// Upstream rows carry fid sometimes as a number and sometimes as a string.
type FlexID string

func (f *FlexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

// PeanutRow is one analytics record, validated at the boundary instead of
// being carried through the core as an untyped blob.
type PeanutRow struct {
	Fid                FlexID `json:"fid,omitempty"`
	ParentFid          FlexID `json:"parent_fid,omitempty"`
	SentPeanutCount    int    `json:"sent_peanut_count"`
	DailyPeanutCount   int    `json:"daily_peanut_count"`
	AllTimePeanutCount int    `json:"all_time_peanut_count"`
	Rank               int    `json:"rank"`
}

// IdentityKey normalizes a row to its string fid, falling back to the
// parent identity and finally the empty string.
func (r PeanutRow) IdentityKey() string {
	if r.Fid != "" {
		return string(r.Fid)
	}
	return string(r.ParentFid)
}
