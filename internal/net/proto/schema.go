package proto

import (
	"reflect"

	"github.com/iancoleman/orderedmap"
	"github.com/invopop/jsonschema"
)

// CommandSchema builds the machine-readable schema of every command
// payload the API accepts. Planning layers that translate natural
// language into commands consume this instead of hard-coding shapes.
func CommandSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}

	commands := []struct {
		name        string
		description string
		payload     any
	}{
		{"takeoff", "Raise drones to a hover altitude.", TakeoffRequest{}},
		{"land", "Descend drones to the ground.", LandRequest{}},
		{"hover", "Hold drones at their current pose.", HoverRequest{}},
		{"goto", "Steer one drone to an absolute pose.", GotoRequest{}},
		{"velocity", "Drive one drone by direct velocity.", VelocityRequest{}},
		{"formation", "Arrange the fleet into a geometric pattern.", FormationRequest{}},
		{"spawn", "Replace the fleet with a fresh one.", SpawnRequest{}},
		{"reset", "Re-initialize the current fleet in place.", ResetRequest{}},
	}

	root := &jsonschema.Schema{
		Version:     jsonschema.Version,
		Title:       "Swarm Command API",
		Description: "Command payloads accepted over HTTP and the WebSocket command envelope.",
	}
	properties := orderedmap.New()
	for _, cmd := range commands {
		schema := reflector.ReflectFromType(reflect.TypeOf(cmd.payload))
		schema.Version = ""
		schema.Title = cmd.name
		schema.Description = cmd.description
		properties.Set(cmd.name, schema)
	}
	root.Type = "object"
	root.Properties = properties
	return root
}
