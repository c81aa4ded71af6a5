package document

import (
	"fmt"

	apperrors "github.com/mantavyam/pitch-note-pilot/internal/errors"
)

// SubNodeType is the closed set of content block kinds.
type SubNodeType string

const (
	TypeHeadline    SubNodeType = "headline"
	TypeImage       SubNodeType = "image"
	TypeDescription SubNodeType = "description"
	TypeTable       SubNodeType = "table"
)

var subNodeTypes = []SubNodeType{TypeHeadline, TypeImage, TypeDescription, TypeTable}

func (t SubNodeType) Valid() bool {
	switch t {
	case TypeHeadline, TypeImage, TypeDescription, TypeTable:
		return true
	}
	return false
}

func ParseSubNodeType(s string) (SubNodeType, error) {
	t := SubNodeType(s)
	if !t.Valid() {
		return "", apperrors.InvalidArgument(fmt.Sprintf("unknown subnode type %q", s), nil)
	}
	return t, nil
}

// Content is the payload of a subnode. Exactly one concrete type exists per
// SubNodeType, so a table subnode can never carry a headline.
type Content interface {
	Type() SubNodeType
	cloneContent() Content
}

type Headline struct {
	Text string
}

func (Headline) Type() SubNodeType        { return TypeHeadline }
func (h Headline) cloneContent() Content { return h }

type Description struct {
	Text string
}

func (Description) Type() SubNodeType        { return TypeDescription }
func (d Description) cloneContent() Content { return d }

type Image struct {
	URL     string `json:"url" yaml:"url"`
	Alt     string `json:"alt" yaml:"alt"`
	Caption string `json:"caption,omitempty" yaml:"caption,omitempty"`
}

func (Image) Type() SubNodeType        { return TypeImage }
func (i Image) cloneContent() Content { return i }

// Table rows must all be as wide as Headers.
type Table struct {
	Headers []string   `json:"headers" yaml:"headers"`
	Rows    [][]string `json:"rows" yaml:"rows"`
}

func (Table) Type() SubNodeType        { return TypeTable }
func (t Table) cloneContent() Content { return t.Clone() }

func (t Table) Clone() Table {
	out := Table{Headers: append([]string(nil), t.Headers...)}
	if t.Rows != nil {
		out.Rows = make([][]string, len(t.Rows))
		for i, row := range t.Rows {
			out.Rows[i] = append([]string(nil), row...)
		}
	}
	return out
}

// Validate reports a shape mismatch when any row differs in width from the
// header row.
func (t Table) Validate() error {
	for i, row := range t.Rows {
		if len(row) != len(t.Headers) {
			return apperrors.ShapeMismatch(
				fmt.Sprintf("table row %d has %d cells, expected %d", i, len(row), len(t.Headers)),
				nil,
			)
		}
	}
	return nil
}

func cloneContent(c Content) Content {
	if c == nil {
		return nil
	}
	return c.cloneContent()
}

// checkContent verifies that c agrees with t and is well formed. A nil
// content is the empty record and always agrees.
func checkContent(t SubNodeType, c Content) error {
	if !t.Valid() {
		return apperrors.InvalidArgument(fmt.Sprintf("unknown subnode type %q", t), nil)
	}
	if c == nil {
		return nil
	}
	if c.Type() != t {
		return apperrors.InvalidArgument(
			fmt.Sprintf("%s content cannot be stored on a %s subnode", c.Type(), t),
			nil,
		)
	}
	if table, ok := c.(Table); ok {
		return table.Validate()
	}
	return nil
}

// ContentRecord is the wire and fixture form of a content payload: at most
// one field is set, matching the subnode type.
type ContentRecord struct {
	Headline    *string `json:"headline,omitempty" yaml:"headline,omitempty"`
	Image       *Image  `json:"image,omitempty" yaml:"image,omitempty"`
	Description *string `json:"description,omitempty" yaml:"description,omitempty"`
	Table       *Table  `json:"table,omitempty" yaml:"table,omitempty"`
}

func (r ContentRecord) IsEmpty() bool {
	return r.Headline == nil && r.Image == nil && r.Description == nil && r.Table == nil
}

// RecordOf converts a content value into its record form.
func RecordOf(c Content) ContentRecord {
	switch v := c.(type) {
	case Headline:
		text := v.Text
		return ContentRecord{Headline: &text}
	case Description:
		text := v.Text
		return ContentRecord{Description: &text}
	case Image:
		img := v
		return ContentRecord{Image: &img}
	case Table:
		table := v.Clone()
		return ContentRecord{Table: &table}
	}
	return ContentRecord{}
}

// Merge overlays the non-empty fields of patch onto r.
func (r ContentRecord) Merge(patch ContentRecord) ContentRecord {
	if patch.Headline != nil {
		r.Headline = patch.Headline
	}
	if patch.Image != nil {
		r.Image = patch.Image
	}
	if patch.Description != nil {
		r.Description = patch.Description
	}
	if patch.Table != nil {
		r.Table = patch.Table
	}
	return r
}

// Decode turns a record into the content variant for t. Fields that belong
// to another variant are rejected.
func (r ContentRecord) Decode(t SubNodeType) (Content, error) {
	if !t.Valid() {
		return nil, apperrors.InvalidArgument(fmt.Sprintf("unknown subnode type %q", t), nil)
	}

	for _, other := range subNodeTypes {
		if other != t && r.has(other) {
			return nil, apperrors.InvalidArgument(
				fmt.Sprintf("%s content cannot be stored on a %s subnode", other, t),
				nil,
			)
		}
	}

	var c Content
	switch t {
	case TypeHeadline:
		if r.Headline != nil {
			c = Headline{Text: *r.Headline}
		}
	case TypeDescription:
		if r.Description != nil {
			c = Description{Text: *r.Description}
		}
	case TypeImage:
		if r.Image != nil {
			c = *r.Image
		}
	case TypeTable:
		if r.Table != nil {
			c = r.Table.Clone()
		}
	}

	if err := checkContent(t, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r ContentRecord) has(t SubNodeType) bool {
	switch t {
	case TypeHeadline:
		return r.Headline != nil
	case TypeDescription:
		return r.Description != nil
	case TypeImage:
		return r.Image != nil
	case TypeTable:
		return r.Table != nil
	}
	return false
}
