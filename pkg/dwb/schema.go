package dwb

import "github.com/invopop/jsonschema"

// variants lists every WriteOp this package knows how to apply. Schema
// walks this list explicitly rather than relying on reflection over an
// interface, since Go interfaces carry no enumerable implementor set.
var variants = []any{
	UpsertObject{},
	RecordHistory{},
	SaveNetworkSegment{},
	DeleteNetworkSegment{},
	DeleteInstanceAddressesBySegment{},
	ReleaseResourcePoolEntry{},
	SaveVpcPrefix{},
}

// Schema generates a JSON Schema describing the closed set of WriteOp
// variants, so the deferred-write vocabulary stays inspectable and
// serializable for documentation/tooling without hand-maintained docs.
func Schema() *jsonschema.Schema {
	reflector := &jsonschema.Reflector{}
	root := &jsonschema.Schema{
		Definitions: make(jsonschema.Definitions),
	}
	for _, v := range variants {
		s := reflector.Reflect(v)
		for name, def := range s.Definitions {
			root.Definitions[name] = def
		}
	}
	return root
}
