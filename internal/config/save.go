package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SaveExpressionFilter appends an expression filter definition to the
// filters.expressions list in the config file. Comments and formatting in
// other sections are preserved by editing the yaml document in place.
func SaveExpressionFilter(configPath, name, expression string) error {
	if name == "" {
		return fmt.Errorf("filter name cannot be empty")
	}

	entry := &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Value: "name"},
			{Kind: yaml.ScalarNode, Value: name},
			{Kind: yaml.ScalarNode, Value: "expr"},
			{Kind: yaml.ScalarNode, Value: expression},
		},
	}

	return appendFilterEntry(configPath, "expressions", entry)
}

// SaveScriptFilter appends a script filter definition to the
// filters.scripts list in the config file. A zero timeout is omitted so
// the loader default applies.
func SaveScriptFilter(configPath, name, source string, timeout time.Duration) error {
	if name == "" {
		return fmt.Errorf("filter name cannot be empty")
	}

	entry := &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Value: "name"},
			{Kind: yaml.ScalarNode, Value: name},
		},
	}

	if timeout > 0 {
		entry.Content = append(entry.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: "timeout"},
			&yaml.Node{Kind: yaml.ScalarNode, Value: timeout.String()},
		)
	}

	sourceNode := &yaml.Node{Kind: yaml.ScalarNode, Value: source}
	if strings.Contains(source, "\n") {
		sourceNode.Style = yaml.LiteralStyle
	}
	entry.Content = append(entry.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: "source"},
		sourceNode,
	)

	return appendFilterEntry(configPath, "scripts", entry)
}

// appendFilterEntry loads the config file, appends entry to the named list
// under the filters section, and writes the file back atomically.
func appendFilterEntry(configPath, listKey string, entry *yaml.Node) error {
	// Read existing file content
	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}

	// Parse into yaml.Node to preserve comments
	var doc yaml.Node
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	if doc.Kind == 0 {
		// Empty or new file - create document structure
		doc = yaml.Node{
			Kind: yaml.DocumentNode,
			Content: []*yaml.Node{
				{Kind: yaml.MappingNode},
			},
		}
	}

	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return fmt.Errorf("config root is not a mapping")
	}

	root := doc.Content[0]
	filters := findOrCreateMapping(root, "filters")
	list := findOrCreateSequence(filters, listKey)
	list.Content = append(list.Content, entry)

	// Marshal back to YAML
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_ = encoder.Close()

	// Write atomically (write to temp, then rename)
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".tamis.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(buf.Bytes()); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, configPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	return nil
}

// findOrCreateMapping returns the mapping stored under key in parent,
// appending an empty one when the key is absent. A bare key parses as a
// null scalar; it is reshaped in place so comments attached to it survive.
func findOrCreateMapping(parent *yaml.Node, key string) *yaml.Node {
	if node := findValue(parent, key); node != nil {
		if node.Kind != yaml.MappingNode {
			node.Kind = yaml.MappingNode
			node.Tag = ""
			node.Value = ""
			node.Content = nil
		}
		return node
	}

	node := &yaml.Node{Kind: yaml.MappingNode}
	parent.Content = append(parent.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: key},
		node,
	)
	return node
}

// findOrCreateSequence returns the sequence stored under key in parent,
// appending an empty one when the key is absent.
func findOrCreateSequence(parent *yaml.Node, key string) *yaml.Node {
	if node := findValue(parent, key); node != nil {
		if node.Kind != yaml.SequenceNode {
			node.Kind = yaml.SequenceNode
			node.Tag = ""
			node.Value = ""
			node.Content = nil
		}
		return node
	}

	node := &yaml.Node{Kind: yaml.SequenceNode}
	parent.Content = append(parent.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: key},
		node,
	)
	return node
}

// findValue returns the value node for key in a mapping, or nil.
func findValue(parent *yaml.Node, key string) *yaml.Node {
	for i := 0; i < len(parent.Content)-1; i += 2 {
		if parent.Content[i].Value == key {
			return parent.Content[i+1]
		}
	}
	return nil
}
