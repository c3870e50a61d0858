package replicate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/photo-pipeline/constants"
)

// ErrPredictionNotFound marks a prediction the API no longer knows about.
var ErrPredictionNotFound = errors.New("prediction not found")

// Prediction is a snapshot of an upstream inference job.
type Prediction struct {
	ID     string                     `json:"id"`
	Model  string                     `json:"model,omitempty"`
	Status constants.PredictionStatus `json:"status"`
	Output Output                     `json:"output"`
	Error  any                        `json:"error,omitempty"`
	URLs   URLs                       `json:"urls"`
}

// URLs holds the links the API returns with a prediction.
type URLs struct {
	Get    string `json:"get,omitempty"`
	Cancel string `json:"cancel,omitempty"`
}

// ErrorMessage renders the upstream error, which may be a string or an object.
func (p Prediction) ErrorMessage() string {
	switch e := p.Error.(type) {
	case nil:
		return ""
	case string:
		return e
	default:
		b, err := json.Marshal(e)
		if err != nil {
			return fmt.Sprint(e)
		}
		return string(b)
	}
}

// Output is the prediction output normalized to a list of URLs. The API
// returns a single string for image models, a list for some others and
// null until the job succeeds.
type Output []string

// First returns the first non-empty output URL.
func (o Output) First() (string, bool) {
	for _, u := range o {
		if strings.TrimSpace(u) != "" {
			return u, true
		}
	}
	return "", false
}

func (o *Output) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*o = nil
	case string:
		*o = Output{v}
	case []any:
		out := make(Output, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		*o = out
	default:
		// objects and scalars carry no downloadable URL
		*o = nil
	}
	return nil
}

// CreateRequest is the body of a prediction submission.
type CreateRequest struct {
	Model string         `json:"model"`
	Input map[string]any `json:"input"`
}
