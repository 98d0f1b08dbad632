package contracts

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"path"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed schemas/*.json
var schemasFS embed.FS

// Ключи зарегистрированных контрактов (производные от имен файлов схем)
const (
	SchemaTaskEvent = "TaskEvent"
	SchemaTaskPatch = "TaskPatch"
)

var compiledSchemas = make(map[string]*jsonschema.Schema)

func init() {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true

	// Добавляем все схемы как ресурсы, чтобы они могли ссылаться
	// друг на друга через `$ref`
	err := fs.WalkDir(schemasFS, "schemas", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(p, ".json") {
			file, openErr := schemasFS.Open(p)
			if openErr != nil {
				return openErr
			}
			defer file.Close()
			if addErr := compiler.AddResource(p, file); addErr != nil {
				log.Fatalf("failed to add schema resource %s: %v", p, addErr)
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("error walking and adding schema resources: %v", err)
	}

	// Снова обходим для компиляции и регистрации
	err = fs.WalkDir(schemasFS, "schemas", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(p, ".json") {
			schema, compileErr := compiler.Compile(p)
			if compileErr != nil {
				log.Fatalf("could not compile schema %s: %v", p, compileErr)
			}

			key := generateKeyFromPath(p)
			compiledSchemas[key] = schema
		}
		return nil
	})
	if err != nil {
		log.Fatalf("error walking and compiling schemas: %v", err)
	}
}

// generateKeyFromPath: "schemas/task_event.schema.json" -> "TaskEvent"
func generateKeyFromPath(p string) string {
	base := strings.TrimSuffix(path.Base(p), ".schema.json")
	caser := cases.Title(language.English)

	parts := strings.Split(base, "_")
	for i, part := range parts {
		parts[i] = caser.String(part)
	}
	return strings.Join(parts, "")
}

// Validate проверяет payload по зарегистрированной схеме
func Validate(schemaKey string, payload []byte) error {
	schema, ok := compiledSchemas[schemaKey]
	if !ok {
		return fmt.Errorf("no schema registered under key %q", schemaKey)
	}

	var doc interface{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("payload is not valid JSON: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("payload does not match schema %q: %w", schemaKey, err)
	}
	return nil
}
