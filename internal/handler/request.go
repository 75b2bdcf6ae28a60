package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/prn-tf/pantry/internal/auth"
	"github.com/prn-tf/pantry/internal/domain"
	"github.com/prn-tf/pantry/internal/repository"
)

// multipartMemory is the part of a multipart body kept in memory; the rest
// spills to temporary files.
const multipartMemory = 8 << 20

// listFields are request fields that carry a list of IDs.
var listFields = map[string]bool{
	"tags":        true,
	"ingredients": true,
}

// parseError reports a request body that could not be parsed.
type parseError struct {
	format string
	err    error
}

func (e *parseError) Error() string {
	return e.format + " parse error - " + e.err.Error()
}

func (e *parseError) Unwrap() error {
	return e.err
}

// unsupportedMediaError reports a request body in an unknown format.
type unsupportedMediaError struct {
	mediaType string
}

func (e *unsupportedMediaError) Error() string {
	return "unsupported media type " + e.mediaType
}

// payload holds the raw fields of a request body. A field that is not in
// the map was omitted by the client.
type payload map[string]json.RawMessage

// decodePayload reads a JSON, urlencoded or multipart body into a payload.
// An empty body yields an empty payload.
func decodePayload(r *http.Request) (payload, error) {
	contentType := r.Header.Get("Content-Type")
	mediaType := "application/json"
	if contentType != "" {
		mt, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return nil, &unsupportedMediaError{mediaType: contentType}
		}
		mediaType = mt
	}

	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		return decodeJSON(r.Body)

	case mediaType == "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, formError("Form", err)
		}
		return formPayload(r.PostForm), nil

	case mediaType == "multipart/form-data":
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return nil, formError("Multipart form", err)
		}
		return formPayload(r.MultipartForm.Value), nil

	default:
		return nil, &unsupportedMediaError{mediaType: mediaType}
	}
}

func formError(format string, err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return err
	}
	return &parseError{format: format, err: err}
}

func decodeJSON(body io.Reader) (payload, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return payload{}, nil
	}

	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, &parseError{format: "JSON", err: err}
	}
	if _, ok := value.(map[string]any); !ok {
		return nil, domain.NewValidationError(domain.NonFieldErrors, fmt.Sprintf(msgInvalidDict, jsonTypeName(value)))
	}

	p := payload{}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &parseError{format: "JSON", err: err}
	}
	return p, nil
}

// formPayload converts form values to payload fields. List fields keep
// every value; other fields keep the first.
func formPayload(values url.Values) payload {
	p := payload{}
	for field, vals := range values {
		var raw []byte
		if listFields[field] {
			raw, _ = json.Marshal(vals)
		} else if len(vals) > 0 {
			raw, _ = json.Marshal(vals[0])
		}
		if raw != nil {
			p[field] = raw
		}
	}
	return p
}

// value decodes a field, keeping numbers as json.Number.
func (p payload) value(field string) (any, bool) {
	raw, ok := p[field]
	if !ok {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, true
	}
	return v, true
}

// String returns a text field. Numbers are accepted and kept verbatim.
func (p payload) String(field string, verr *domain.ValidationError) *string {
	v, ok := p.value(field)
	if !ok {
		return nil
	}

	switch t := v.(type) {
	case nil:
		verr.Add(field, domain.MsgNull)
	case string:
		return &t
	case json.Number:
		s := t.String()
		return &s
	default:
		verr.Add(field, domain.MsgInvalidString)
	}
	return nil
}

// Int returns an integer field. Numeric strings are accepted.
func (p payload) Int(field string, verr *domain.ValidationError) *int {
	v, ok := p.value(field)
	if !ok {
		return nil
	}
	if v == nil {
		verr.Add(field, domain.MsgNull)
		return nil
	}

	n, ok := toInt64(v)
	if !ok {
		verr.Add(field, domain.MsgInvalidInteger)
		return nil
	}
	if n > math.MaxInt32 {
		verr.Add(field, fmt.Sprintf(msgMaxValue, math.MaxInt32))
		return nil
	}
	if n < math.MinInt32 {
		verr.Add(field, domain.MsgInvalidInteger)
		return nil
	}

	i := int(n)
	return &i
}

// Decimal returns a decimal field given as a number or a numeric string.
func (p payload) Decimal(field string, verr *domain.ValidationError) *decimal.Decimal {
	v, ok := p.value(field)
	if !ok {
		return nil
	}

	var text string
	switch t := v.(type) {
	case nil:
		verr.Add(field, domain.MsgNull)
		return nil
	case json.Number:
		text = t.String()
	case string:
		text = strings.TrimSpace(t)
	default:
		verr.Add(field, domain.MsgInvalidNumber)
		return nil
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		verr.Add(field, domain.MsgInvalidNumber)
		return nil
	}
	return &d
}

// IDs returns a list of primary keys.
func (p payload) IDs(field string, verr *domain.ValidationError) *[]int64 {
	v, ok := p.value(field)
	if !ok {
		return nil
	}

	items, isList := v.([]any)
	switch {
	case v == nil:
		verr.Add(field, domain.MsgNull)
		return nil
	case !isList:
		verr.Add(field, fmt.Sprintf(domain.MsgInvalidList, jsonTypeName(v)))
		return nil
	}

	ids := make([]int64, 0, len(items))
	valid := true
	for _, item := range items {
		if item == nil {
			verr.Add(field, domain.MsgNull)
			valid = false
			continue
		}
		if _, isBool := item.(bool); !isBool {
			if id, ok := toInt64(item); ok {
				ids = append(ids, id)
				continue
			}
		}
		verr.Add(field, fmt.Sprintf(domain.MsgIncorrectPK, jsonTypeName(item)))
		valid = false
	}
	if !valid {
		return nil
	}
	return &ids
}

func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
		f, err := t.Float64()
		if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64 {
			return 0, false
		}
		return int64(f), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// jsonTypeName names the JSON type of a decoded value.
func jsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case json.Number, float64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// mergeMissing adds the messages of err for fields verr does not mention yet.
func mergeMissing(verr *domain.ValidationError, err error) {
	other, ok := domain.AsValidationError(err)
	if !ok {
		return
	}
	for field, msgs := range other.Fields {
		if verr.Has(field) {
			continue
		}
		for _, msg := range msgs {
			verr.Add(field, msg)
		}
	}
}

// parseIDList parses a comma-separated query parameter of IDs.
func parseIDList(field, raw string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, domain.NewValidationError(field, domain.MsgInvalidInteger)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseFlag reads a boolean query parameter. Any non-empty value other
// than an explicit false is true.
func parseFlag(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	b, err := strconv.ParseBool(raw)
	return err != nil || b
}

// scopeFromRequest returns the owner scope of the authenticated caller and
// answers 401 when there is none.
func scopeFromRequest(w http.ResponseWriter, r *http.Request) (repository.Scope, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, auth.NewAuthError(auth.ErrMissingCredentials))
		return repository.Scope{}, false
	}
	return repository.ForUser(user), true
}
