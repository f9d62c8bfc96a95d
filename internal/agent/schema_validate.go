package agent

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaCache memoizes compiled tool parameter schemas by their
// marshaled JSON form, matching the teacher's pkg/pluginsdk.compileSchema
// pattern for manifest config schemas.
var schemaCache sync.Map

// validateArgsSchema checks args against a tool's JSON-schema-shaped
// Parameters (spec.md §3/§6). A tool with no declared schema passes
// unconditionally: schema validation only constrains tools that opted
// into it by publishing a non-empty Parameters document.
func validateArgsSchema(toolName string, params map[string]any, args map[string]any) error {
	if len(params) == 0 {
		return nil
	}
	schema, err := compileParamSchema(toolName, params)
	if err != nil {
		// A malformed schema is a registration bug, not a caller error;
		// don't block tool execution on it.
		return nil
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	if err := schema.Validate(decoded); err != nil {
		return err
	}
	return nil
}

func compileParamSchema(toolName string, params map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	key := toolName + ":" + string(raw)
	if cached, ok := schemaCache.Load(key); ok {
		if compiled, ok := cached.(*jsonschema.Schema); ok {
			return compiled, nil
		}
	}
	compiled, err := jsonschema.CompileString(toolName+".schema.json", string(raw))
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}
