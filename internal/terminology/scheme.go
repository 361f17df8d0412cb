package terminology

import (
	"encoding/json"
	"fmt"
	"os"
)

// Category names whose types make up a model's own property-type set.
// Rows whose type code falls outside this set resolve against the DICOM
// master list instead of the model context.
var propertyTypeCategories = []string{
	"Anatomical Structure",
	"Morphologically Altered Structure",
}

// TypeNode is a terminology type or type modifier.
type TypeNode struct {
	Code        CodeTriple
	SlicerLabel string
	Color       RGB
	HasColor    bool
	Modifiers   []TypeNode
}

// DisplayLabel returns the node's preferred human-facing name: its
// application label when present, else the code meaning.
func (n TypeNode) DisplayLabel() string {
	if n.SlicerLabel != "" {
		return n.SlicerLabel
	}
	return n.Code.Meaning
}

// FindModifier returns the modifier matching the given code.
func (n TypeNode) FindModifier(code CodeTriple) (TypeNode, bool) {
	for _, modifier := range n.Modifiers {
		if modifier.Code.Matches(code) {
			return modifier, true
		}
	}
	return TypeNode{}, false
}

// CategoryNode groups terminology types under one segmentation category.
type CategoryNode struct {
	Code  CodeTriple
	Types []TypeNode
}

// FindType returns the type matching the given code.
func (c CategoryNode) FindType(code CodeTriple) (TypeNode, bool) {
	for _, node := range c.Types {
		if node.Code.Matches(code) {
			return node, true
		}
	}
	return TypeNode{}, false
}

// Context is one loaded terminology: a named tree of categories, types,
// and modifiers.
type Context struct {
	Name       string
	Categories []CategoryNode
}

// FindCategory returns the category matching the given code.
func (c *Context) FindCategory(code CodeTriple) (CategoryNode, bool) {
	for _, category := range c.Categories {
		if category.Code.Matches(code) {
			return category, true
		}
	}
	return CategoryNode{}, false
}

// PropertyTypeKeys enumerates the scheme^value keys of every type
// registered under the anatomical property-type categories. Membership in
// this set decides whether a mapping row uses this context or the DICOM
// master list.
func (c *Context) PropertyTypeKeys() map[string]struct{} {
	keys := make(map[string]struct{})
	for _, category := range c.Categories {
		if !isPropertyTypeCategory(category.Code.Meaning) {
			continue
		}
		for _, node := range category.Types {
			keys[node.Code.Key()] = struct{}{}
		}
	}
	return keys
}

func isPropertyTypeCategory(meaning string) bool {
	for _, name := range propertyTypeCategories {
		if meaning == name {
			return true
		}
	}
	return false
}

// Service registers terminology contexts by name and resolves entry
// strings against them.
type Service struct {
	contexts map[string]*Context
}

// NewService returns an empty terminology service.
func NewService() *Service {
	return &Service{contexts: make(map[string]*Context)}
}

// Register adds a context, replacing any previous context of the same name.
func (s *Service) Register(ctx *Context) {
	s.contexts[ctx.Name] = ctx
}

// Context returns the context registered under the given name.
func (s *Service) Context(name string) (*Context, bool) {
	ctx, ok := s.contexts[name]
	return ctx, ok
}

// LoadContextFile reads a terminology definition file and registers the
// resulting context.
func (s *Service) LoadContextFile(path string) (*Context, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read terminology file: %w", err)
	}
	ctx, err := ParseContext(data)
	if err != nil {
		return nil, fmt.Errorf("terminology file %s: %w", path, err)
	}
	s.Register(ctx)
	return ctx, nil
}

// Terminology definition file shape. Matches the segmentation category and
// type JSON emitted for the host application, including its legacy key
// names.
type contextDocument struct {
	ContextName string `json:"SegmentationCategoryTypeContextName"`
	Codes       struct {
		Category []codeDocument `json:"Category"`
	} `json:"SegmentationCodes"`
}

type codeDocument struct {
	Scheme      string         `json:"CodingSchemeDesignator"`
	Value       string         `json:"CodeValue"`
	Meaning     string         `json:"CodeMeaning"`
	SlicerLabel string         `json:"3dSlicerLabel"`
	RGB         []int          `json:"recommendedDisplayRGBValue"`
	Type        []codeDocument `json:"Type"`
	Modifier    []codeDocument `json:"Modifier"`
}

// ParseContext decodes a terminology definition document.
func ParseContext(data []byte) (*Context, error) {
	var doc contextDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse terminology definition: %w", err)
	}
	if doc.ContextName == "" {
		return nil, fmt.Errorf("terminology definition has no context name")
	}

	ctx := &Context{Name: doc.ContextName}
	for _, category := range doc.Codes.Category {
		node := CategoryNode{Code: category.code()}
		for _, typ := range category.Type {
			node.Types = append(node.Types, typ.typeNode())
		}
		ctx.Categories = append(ctx.Categories, node)
	}
	return ctx, nil
}

func (d codeDocument) code() CodeTriple {
	return CodeTriple{Scheme: d.Scheme, Value: d.Value, Meaning: d.Meaning}
}

func (d codeDocument) typeNode() TypeNode {
	node := TypeNode{Code: d.code(), SlicerLabel: d.SlicerLabel}
	if len(d.RGB) == 3 {
		node.Color = rgbFrom255(d.RGB[0], d.RGB[1], d.RGB[2])
		node.HasColor = true
	}
	for _, modifier := range d.Modifier {
		node.Modifiers = append(node.Modifiers, modifier.typeNode())
	}
	return node
}
