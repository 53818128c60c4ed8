package ir

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// FromYAML decodes a YAML document into an IRValue.
//
// Decoding goes through yaml.Node rather than map[string]any so that mapping
// order survives: filter keys are compiled in the order they are written.
func FromYAML(data []byte) (IRValue, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	return FromYAMLNode(&doc)
}

// FromYAMLNode converts an already-parsed YAML node.
// An empty document converts to IRNull.
func FromYAMLNode(n *yaml.Node) (IRValue, error) {
	if n == nil || n.Kind == 0 {
		return IRNull{}, nil
	}

	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return IRNull{}, nil
		}
		return FromYAMLNode(n.Content[0])

	case yaml.AliasNode:
		return FromYAMLNode(n.Alias)

	case yaml.SequenceNode:
		arr := make(IRArray, 0, len(n.Content))
		for i, child := range n.Content {
			v, err := FromYAMLNode(child)
			if err != nil {
				return nil, fmt.Errorf("line %d: [%d]: %w", child.Line, i, err)
			}
			arr = append(arr, v)
		}
		return arr, nil

	case yaml.MappingNode:
		return yamlMapping(n)

	case yaml.ScalarNode:
		return yamlScalar(n)

	default:
		return nil, fmt.Errorf("line %d: unsupported YAML node kind %d", n.Line, n.Kind)
	}
}

// yamlMapping converts a mapping node, expanding `<<` merge keys in place.
// Explicit keys always win over merged ones regardless of position.
func yamlMapping(n *yaml.Node) (IRValue, error) {
	obj := make(IRObject, 0, len(n.Content)/2)
	explicit := make(map[string]bool, len(n.Content)/2)

	for i := 0; i+1 < len(n.Content); i += 2 {
		keyNode, valNode := n.Content[i], n.Content[i+1]

		if keyNode.ShortTag() == "!!merge" {
			merged, err := yamlMergeSources(valNode)
			if err != nil {
				return nil, fmt.Errorf("line %d: merge: %w", keyNode.Line, err)
			}
			for _, p := range merged {
				if !explicit[p.Key] {
					obj = obj.Set(p.Key, p.Value)
				}
			}
			continue
		}

		if keyNode.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: mapping keys must be scalars", keyNode.Line)
		}
		v, err := FromYAMLNode(valNode)
		if err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", keyNode.Line, keyNode.Value, err)
		}
		obj = obj.Set(keyNode.Value, v)
		explicit[keyNode.Value] = true
	}
	return obj, nil
}

// yamlMergeSources resolves the value of a merge key: a mapping, an alias to
// one, or a sequence of those.
func yamlMergeSources(n *yaml.Node) (IRObject, error) {
	if n.Kind == yaml.SequenceNode {
		var out IRObject
		for _, child := range n.Content {
			part, err := yamlMergeSources(child)
			if err != nil {
				return nil, err
			}
			for _, p := range part {
				if !out.Has(p.Key) {
					out = append(out, p)
				}
			}
		}
		return out, nil
	}

	v, err := FromYAMLNode(n)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(IRObject)
	if !ok {
		return nil, fmt.Errorf("merge value must be a mapping, got %s", KindOf(v))
	}
	return obj, nil
}

// yamlScalar converts a scalar node using its resolved tag.
func yamlScalar(n *yaml.Node) (IRValue, error) {
	switch n.ShortTag() {
	case "!!null":
		return IRNull{}, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return IRBool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return IRInt(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return IRFloat(f), nil
	default:
		return IRString(n.Value), nil
	}
}
