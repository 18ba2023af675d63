package schemas

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RankRequest is a decoded ranking request body.
type RankRequest struct {
	Analyses []json.RawMessage `json:"analyses"`
	// Optional overrides, honoured only by offline callers
	Profession *string `json:"profession,omitempty"`
	ResumeText *string `json:"resumeText,omitempty"`
}

// DecodeRankRequest validates and decodes a ranking request. The body may be a bare array
// of analyses or an object with an analyses field. An empty body, a missing field and null
// all decode to an empty batch.
func DecodeRankRequest(body []byte) (*RankRequest, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return &RankRequest{Analyses: []json.RawMessage{}}, nil
	}
	if err := ValidateRankRequest(body); err != nil {
		return nil, err
	}

	var req RankRequest
	if body[0] == '[' {
		if err := json.Unmarshal(body, &req.Analyses); err != nil {
			return nil, fmt.Errorf("failed to decode analyses: %w", err)
		}
	} else if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("failed to decode rank request: %w", err)
	}
	if req.Analyses == nil {
		req.Analyses = []json.RawMessage{}
	}
	return &req, nil
}
