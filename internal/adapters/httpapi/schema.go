package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	_ "embed"

	santhosh "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/person.json
var personSchemaJSON string

//go:embed schemas/person_patch.json
var personPatchSchemaJSON string

var (
	personSchema      = mustCompileSchema("person.json", personSchemaJSON)
	personPatchSchema = mustCompileSchema("person_patch.json", personPatchSchemaJSON)
)

func mustCompileSchema(name, schemaJSON string) *santhosh.Schema {
	compiler := santhosh.NewCompiler()
	compiler.Draft = santhosh.Draft7
	if err := compiler.AddResource(name, bytes.NewReader([]byte(schemaJSON))); err != nil {
		panic(fmt.Sprintf("add schema resource %s: %v", name, err))
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", name, err))
	}
	return schema
}

// decodeValidatedBody reads the request body once, runs it through the
// compiled schema, then decodes it into dst. Schema failures surface as 400
// with the leaf validation messages so callers see which field is wrong.
func decodeValidatedBody(w http.ResponseWriter, r *http.Request, schema *santhosh.Schema, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := schema.Validate(doc); err != nil {
		writeError(w, http.StatusBadRequest, schemaFailureMessage(err))
		return false
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := ensureEOF(decoder); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func schemaFailureMessage(err error) string {
	var validationErr *santhosh.ValidationError
	if !errors.As(err, &validationErr) {
		return "request body failed validation"
	}
	msgs := collectSchemaErrors(validationErr)
	return "request body failed validation: " + strings.Join(msgs, "; ")
}

func collectSchemaErrors(ve *santhosh.ValidationError) []string {
	var msgs []string
	for _, cause := range ve.Causes {
		msgs = append(msgs, collectSchemaErrors(cause)...)
	}
	if len(ve.Causes) == 0 {
		msgs = append(msgs, ve.Error())
	}
	return msgs
}
