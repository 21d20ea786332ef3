package service

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/zenGate-Global/palmyra-tenancy/platform/go/apperr"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const (
	createSchema = "tenant-create.json"
	updateSchema = "tenant-update.json"
)

// payloadValidator compiles the embedded payload schemas on first use and caches them.
type payloadValidator struct {
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

var validator = &payloadValidator{cache: make(map[string]*jsonschema.Schema)}

// validate checks v, rendered as JSON, against the named schema. Schema
// violations come back as *apperr.ValidationError keyed by payload field.
func (p *payloadValidator) validate(name string, v any, omit ...string) error {
	compiled, err := p.getOrCompile(name)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	var document any
	if err := json.Unmarshal(raw, &document); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if obj, ok := document.(map[string]any); ok {
		for _, key := range omit {
			delete(obj, key)
		}
	}

	if err := compiled.Validate(document); err != nil {
		var verr *jsonschema.ValidationError
		if !errors.As(err, &verr) {
			return fmt.Errorf("schema validation: %w", err)
		}
		fields := apperr.FieldErrors{}
		collectFieldErrors(verr, fields)
		return fields.Err()
	}
	return nil
}

func (p *payloadValidator) getOrCompile(name string) (*jsonschema.Schema, error) {
	p.mu.RLock()
	compiled, ok := p.cache[name]
	p.mu.RUnlock()
	if ok {
		return compiled, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if compiled, ok = p.cache[name]; ok {
		return compiled, nil
	}

	definition, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", name, err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(definition)); err != nil {
		return nil, fmt.Errorf("register schema %s: %w", name, err)
	}
	compiled, err = compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}

	p.cache[name] = compiled
	return compiled, nil
}

// collectFieldErrors flattens the leaf causes of a schema failure.
func collectFieldErrors(verr *jsonschema.ValidationError, fields apperr.FieldErrors) {
	if len(verr.Causes) > 0 {
		for _, cause := range verr.Causes {
			collectFieldErrors(cause, fields)
		}
		return
	}

	field := strings.TrimPrefix(verr.InstanceLocation, "/")
	if field != "" {
		fields.Add(field, verr.Message)
		return
	}

	if missing, ok := strings.CutPrefix(verr.Message, "missing properties: "); ok {
		for _, name := range strings.Split(missing, ",") {
			fields.Add(strings.Trim(strings.TrimSpace(name), "'"), "is required")
		}
		return
	}
	if extra, ok := strings.CutPrefix(verr.Message, "additionalProperties "); ok {
		// "additionalProperties 'foo', 'bar' not allowed"
		extra = strings.TrimSuffix(extra, " not allowed")
		for _, name := range strings.Split(extra, ",") {
			fields.Add(strings.Trim(strings.TrimSpace(name), "'"), "is not allowed")
		}
		return
	}
	fields.Add("body", verr.Message)
}
