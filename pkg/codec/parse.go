package codec

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/heysubinoy/pyazkv/pkg/kv"
)

var (
	errDuplicateKey = errors.New("duplicate key")
	errBadMerge     = errors.New("merge value must be a mapping or a sequence of mappings")
)

func parse(format kv.Format, data []byte) (map[string]any, error) {
	switch format {
	case kv.FormatYAML:
		return parseYAML(data)
	default:
		return parseJSON(data)
	}
}

func parseJSON(data []byte) (map[string]any, error) {
	var tree any
	if err := JSON.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	m, ok := tree.(map[string]any)
	if !ok {
		return nil, errNotMapping
	}
	return m, nil
}

// parseYAML walks the node tree instead of decoding into a map so that
// keys keep their source text ("true" stays a string key) and floats keep
// their written form.
func parseYAML(data []byte) (map[string]any, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, errNotMapping
	}

	root := resolveAlias(doc.Content[0])
	if root.Kind != yaml.MappingNode {
		return nil, errNotMapping
	}

	tree := make(map[string]any, len(root.Content)/2)
	if err := walkMapping(root, tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// walkMapping fills tree from a mapping node. A key may appear once. Keys
// pulled in through "<<" merges never replace keys the mapping sets itself,
// and earlier merge sources win over later ones.
func walkMapping(n *yaml.Node, tree map[string]any) error {
	own := make(map[string]struct{}, len(n.Content)/2)
	var merges []*yaml.Node
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := resolveAlias(n.Content[i])
		val := resolveAlias(n.Content[i+1])
		if isMergeKey(key) {
			merges = append(merges, val)
			continue
		}
		if _, dup := own[key.Value]; dup {
			return fmt.Errorf("line %d: %w %q", key.Line, errDuplicateKey, key.Value)
		}
		own[key.Value] = struct{}{}

		leaf, err := yamlLeaf(val)
		if err != nil {
			return fmt.Errorf("key %q: %w", key.Value, err)
		}
		tree[key.Value] = leaf
	}

	for _, m := range merges {
		sources := []*yaml.Node{m}
		if m.Kind == yaml.SequenceNode {
			sources = m.Content
		}
		for _, src := range sources {
			src = resolveAlias(src)
			if src.Kind != yaml.MappingNode {
				return fmt.Errorf("line %d: %w", src.Line, errBadMerge)
			}
			merged := make(map[string]any, len(src.Content)/2)
			if err := walkMapping(src, merged); err != nil {
				return err
			}
			for k, v := range merged {
				if _, ok := tree[k]; !ok {
					tree[k] = v
				}
			}
		}
	}
	return nil
}

func isMergeKey(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Value == "<<" && n.ShortTag() == "!!merge"
}

func yamlLeaf(n *yaml.Node) (any, error) {
	if n.Kind != yaml.ScalarNode {
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}

	switch n.ShortTag() {
	case "!!null":
		return nil, nil
	case "!!bool", "!!int":
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return n.Value, nil
	}
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}
