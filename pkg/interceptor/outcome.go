package interceptor

import (
	"net/http"

	"github.com/buger/jsonparser"
)

// Kind tells a settled request's success from its failure.
type Kind int

const (
	KindSuccess Kind = iota
	KindFailure
)

func (k Kind) String() string {
	if k == KindSuccess {
		return "success"
	}
	return "failure"
}

// Outcome is the settled result of one HTTP round trip.
//
// Successes carry the method and response. Failures carry the status code
// and the captured response body, or Err with StatusCode 0 when no
// response arrived at all.
type Outcome struct {
	Kind       Kind
	Method     string
	StatusCode int
	Body       []byte
	Response   *http.Response
	Err        error
}

// Failed reports whether the outcome is a failure.
func (o Outcome) Failed() bool {
	return o.Kind == KindFailure
}

// ErrorBody returns the message and validation errors of a failure.
func (o Outcome) ErrorBody() ErrorBody {
	if o.Err != nil && len(o.Body) == 0 {
		return ErrorBody{Message: o.Err.Error()}
	}
	return ParseErrorBody(o.Body)
}

// ErrorBody is the conventional JSON error payload:
//
//	{"message": "Bad input", "errors": ["name required", "age invalid"]}
type ErrorBody struct {
	Message string
	Errors  []string
}

// ParseErrorBody extracts an ErrorBody from raw response bytes. It never
// fails: anything missing or unreadable comes back empty. Non-string
// values keep their JSON text, and an "errors" object is flattened to
// "key: value" entries.
func ParseErrorBody(body []byte) ErrorBody {
	var eb ErrorBody
	if len(body) == 0 {
		return eb
	}

	if value, dataType, _, err := jsonparser.Get(body, "message"); err == nil {
		eb.Message = valueText(value, dataType)
	}

	value, dataType, _, err := jsonparser.Get(body, "errors")
	if err != nil {
		return eb
	}

	switch dataType {
	case jsonparser.Array:
		_, _ = jsonparser.ArrayEach(value, func(entry []byte, entryType jsonparser.ValueType, _ int, err error) {
			if err != nil {
				return
			}
			eb.Errors = append(eb.Errors, valueText(entry, entryType))
		})
	case jsonparser.Object:
		_ = jsonparser.ObjectEach(value, func(key, entry []byte, entryType jsonparser.ValueType, _ int) error {
			eb.Errors = append(eb.Errors, string(key)+": "+valueText(entry, entryType))
			return nil
		})
	case jsonparser.String:
		eb.Errors = append(eb.Errors, valueText(value, dataType))
	}

	return eb
}

func valueText(value []byte, dataType jsonparser.ValueType) string {
	switch dataType {
	case jsonparser.String:
		if s, err := jsonparser.ParseString(value); err == nil {
			return s
		}
		return string(value)
	case jsonparser.Null, jsonparser.NotExist:
		return ""
	default:
		return string(value)
	}
}
