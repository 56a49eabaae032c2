package models

import "encoding/json"

// Envelope codes shared by the API and the client
const (
	CodeSuccess       = 1
	CodeLoginRequired = 2
	CodeValidation    = 3
	CodeNotFound      = 4
	CodeConflict      = 5
	CodeStorage       = 6
	CodeUpload        = 7
	CodeInternal      = 9
)

// Envelope is the {code, data, msg} wrapper returned by every API call
type Envelope struct {
	Code int    `json:"code"`
	Data any    `json:"data"`
	Msg  string `json:"msg"`
}

// RawEnvelope is an Envelope whose payload has not been decoded yet
type RawEnvelope struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
	Msg  string          `json:"msg"`
}

// DecodeData unmarshals the payload into v. A null or missing payload leaves v untouched.
func (e *RawEnvelope) DecodeData(v any) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}
