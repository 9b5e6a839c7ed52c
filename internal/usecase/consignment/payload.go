package consignment

import (
	"bytes"
	"encoding/json"
	"io"
	"reflect"

	"github.com/invopop/jsonschema"
	"github.com/shopspring/decimal"

	domain "pharmatrace/internal/domain/consignment"
	"pharmatrace/internal/errs"
)

// DecodePayload reads one JSON consignment message. Malformed JSON is a
// validation failure.
func DecodePayload(r io.Reader) (domain.Payload, error) {
	var p domain.Payload
	dec := json.NewDecoder(r)
	if err := dec.Decode(&p); err != nil {
		return domain.Payload{}, errs.Kind(errs.ErrValidation, errs.Wrap(err, "decode consignment payload"))
	}
	return p, nil
}

// DecodePayloadBytes is DecodePayload over an in-memory message body.
func DecodePayloadBytes(raw []byte) (domain.Payload, error) {
	return DecodePayload(bytes.NewReader(raw))
}

// PayloadSchema renders the JSON schema of the import message.
func PayloadSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == reflect.TypeOf(decimal.Decimal{}) {
				return &jsonschema.Schema{Type: "number"}
			}
			return nil
		},
	}
	schema := r.Reflect(&domain.Payload{})
	schema.Title = "Consignment import"
	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, errs.Wrap(err, "marshal consignment schema")
	}
	return out, nil
}
