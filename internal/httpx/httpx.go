package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxBodyBytes caps every JSON request body. Wizard payloads are the largest.
const MaxBodyBytes = 1 << 20

var (
	ErrTrailingData  = errors.New("body must contain a single JSON object")
	ErrInvalidLimit  = errors.New("invalid limit")
	ErrInvalidOffset = errors.New("invalid offset")
)

// DecodeJSON decodes exactly one object and rejects unknown fields.
func DecodeJSON(body io.Reader, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return ErrTrailingData
	}
	return nil
}

// ValidationDetails maps each failing struct field to the rule it broke.
func ValidationDetails(errs validator.ValidationErrors) map[string]string {
	if len(errs) == 0 {
		return nil
	}
	details := make(map[string]string, len(errs))
	for _, err := range errs {
		details[err.Field()] = err.Tag()
	}
	return details
}

// ParseLimitOffset reads ?limit= and ?offset=. A limit above maxLimit is clamped.
func ParseLimitOffset(values url.Values, defaultLimit, maxLimit int64) (limit, offset int64, err error) {
	limit = defaultLimit

	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		parsed, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil || parsed <= 0 {
			return 0, 0, ErrInvalidLimit
		}
		limit = parsed
	}

	if raw := strings.TrimSpace(values.Get("offset")); raw != "" {
		parsed, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil || parsed < 0 {
			return 0, 0, ErrInvalidOffset
		}
		offset = parsed
	}

	if limit > maxLimit {
		limit = maxLimit
	}
	return limit, offset, nil
}
