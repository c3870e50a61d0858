package replicate

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/photo-pipeline/constants"
)

const predictionSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "status"],
  "properties": {
    "id":     {"type": "string", "minLength": 1},
    "status": {"type": "string", "minLength": 1},
    "output": {},
    "error":  {},
    "urls":   {"type": "object", "properties": {"get": {"type": "string"}}}
  }
}`

var (
	predictionSchemaOnce sync.Once
	predictionSchema     *jsonschema.Schema
	predictionSchemaErr  error
)

func compiledPredictionSchema() (*jsonschema.Schema, error) {
	predictionSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("prediction.json", strings.NewReader(predictionSchemaJSON)); err != nil {
			predictionSchemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		predictionSchema, predictionSchemaErr = compiler.Compile("prediction.json")
		if predictionSchemaErr != nil {
			predictionSchemaErr = fmt.Errorf("compile schema: %w", predictionSchemaErr)
		}
	})
	return predictionSchema, predictionSchemaErr
}

// decodePrediction validates raw against the prediction schema and decodes it.
func decodePrediction(raw []byte) (Prediction, error) {
	schema, err := compiledPredictionSchema()
	if err != nil {
		return Prediction{}, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Prediction{}, fmt.Errorf("unmarshal prediction: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return Prediction{}, fmt.Errorf("prediction does not match schema: %w", err)
	}

	var p Prediction
	if err := json.Unmarshal(raw, &p); err != nil {
		return Prediction{}, fmt.Errorf("decode prediction: %w", err)
	}
	p.Status = constants.NormalizePredictionStatus(string(p.Status))
	return p, nil
}
