//go:build ignore

// schemagen reflects the dispatcher's inbound and outbound payload types
// into JSON Schema documents, the way effects/catalog/schema_generate.go
// reflects the effect catalog's entry document.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"
	"reflect"

	"github.com/invopop/jsonschema"

	"realms/server/internal/dispatch"
	"realms/server/internal/validate"
)

func main() {
	var outDir string
	flag.StringVar(&outDir, "out", "", "output directory for the JSON schema documents")
	flag.Parse()

	if outDir == "" {
		log.Fatal("schemagen: missing -out directory")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		log.Fatalf("schemagen: create output dir: %v", err)
	}

	for name, schema := range buildSchemas() {
		data, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			log.Fatalf("schemagen: marshal %s: %v", name, err)
		}
		data = append(data, '\n')
		path := filepath.Join(outDir, name+".schema.json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			log.Fatalf("schemagen: write %s: %v", path, err)
		}
	}
}

// buildSchemas reflects every inbound and outbound payload type into its
// own named schema document.
func buildSchemas() map[string]*jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: false,
		DoNotReference:             true,
	}

	inbound := map[string]any{
		"joinRealm":   validate.JoinRealm{},
		"movePlayer":  validate.MovePlayer{},
		"teleport":    validate.Teleport{},
		"changedSkin": validate.ChangedSkin{},
		"sendMessage": validate.SendMessage{},
		"kickPlayer":  validate.KickPlayer{},
	}
	outbound := map[string]any{
		"joinedRoom":        dispatch.JoinedRoomPayload{},
		"joinFailed":        "",
		"playerJoinedRoom":  dispatch.PlayerInfo{},
		"playerLeftRoom":    dispatch.PlayerLeftRoomPayload{},
		"playerMoved":       dispatch.PlayerMovedPayload{},
		"playerTeleported":  dispatch.PlayerTeleportedPayload{},
		"playerChangedSkin": dispatch.PlayerChangedSkinPayload{},
		"receiveMessage":    dispatch.ReceiveMessagePayload{},
		"proximityUpdate":   dispatch.ProximityUpdatePayload{},
		"sessionTerminated": dispatch.SessionTerminatedPayload{},
		"error":             dispatch.ErrorPayload{},
	}

	schemas := make(map[string]*jsonschema.Schema, len(inbound)+len(outbound))
	for name, value := range inbound {
		schemas["in."+name] = reflectSchema(reflector, name, value)
	}
	for name, value := range outbound {
		schemas["out."+name] = reflectSchema(reflector, name, value)
	}
	return schemas
}

func reflectSchema(reflector *jsonschema.Reflector, title string, value any) *jsonschema.Schema {
	schema := reflector.ReflectFromType(reflect.TypeOf(value))
	if schema == nil {
		log.Fatalf("schemagen: failed to reflect schema for %s", title)
	}
	schema.Version = ""
	schema.Title = title
	return schema
}
