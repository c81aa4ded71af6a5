package document

import (
	"encoding/json"
	"maps"
	"slices"
)

type ViewMode string

const (
	ViewWriteup ViewMode = "writeup"
	ViewMindmap ViewMode = "mindmap"
)

func (v ViewMode) Valid() bool {
	return v == ViewWriteup || v == ViewMindmap
}

type DragKind string

const (
	DragNode    DragKind = "node"
	DragSubNode DragKind = "subnode"
)

// DraggedItem is the entity currently held by a drag gesture. ParentID is the
// owning node for subnodes.
type DraggedItem struct {
	Kind     DragKind `json:"type" binding:"required,oneof=node subnode"`
	ID       string   `json:"id" binding:"required"`
	ParentID string   `json:"parent_id,omitempty"`
}

// EditorState is the session-wide view state shared by every document.
type EditorState struct {
	ViewMode          ViewMode     `json:"view_mode"`
	SelectedNodeID    string       `json:"selected_node_id,omitempty"`
	SelectedSubnodeID string       `json:"selected_subnode_id,omitempty"`
	OutlineCollapsed  bool         `json:"is_outline_collapsed"`
	HasUnsavedChanges bool         `json:"has_unsaved_changes"`
	DraggedItem       *DraggedItem `json:"dragged_item,omitempty"`

	// Documents (and parent node) the selections and drag were made in, so
	// deletes only clear references into the entity actually removed. Empty
	// matches any document.
	nodeDocID     string
	subnodeDocID  string
	subnodeNodeID string
	dragDocID     string
}

func DefaultEditorState() EditorState {
	return EditorState{ViewMode: ViewWriteup}
}

// State is the whole editor state. Values are never modified in place: every
// transition produces a new State that shares untouched documents with its
// predecessor.
type State struct {
	documents map[string]Document
	order     []string
	currentID string
	// preview holds a current document that was never registered.
	preview *Document

	Editor  EditorState
	Loading bool
	Error   string
}

func NewState() State {
	return State{
		documents: map[string]Document{},
		order:     []string{},
		Editor:    DefaultEditorState(),
	}
}

// Documents returns the registered documents in registration order.
func (s State) Documents() []Document {
	out := make([]Document, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.documents[id].clone())
	}
	return out
}

// Len is the number of registered documents.
func (s State) Len() int {
	return len(s.order)
}

// Document looks a document up by id, including an unregistered preview.
func (s State) Document(id string) (Document, bool) {
	doc, ok := s.lookup(id)
	if !ok {
		return Document{}, false
	}
	return doc.clone(), true
}

// Current resolves the current document, if any.
func (s State) Current() (Document, bool) {
	if s.currentID == "" {
		return Document{}, false
	}
	return s.Document(s.currentID)
}

func (s State) CurrentID() string {
	return s.currentID
}

// IsPreview reports whether the current document is not registered.
func (s State) IsPreview() bool {
	return s.preview != nil && s.currentID == s.preview.ID
}

func (s State) lookup(id string) (Document, bool) {
	if doc, ok := s.documents[id]; ok {
		return doc, true
	}
	if s.preview != nil && s.preview.ID == id {
		return *s.preview, true
	}
	return Document{}, false
}

func (s State) registered(id string) bool {
	_, ok := s.documents[id]
	return ok
}

// clone copies the containers so the result can be changed without touching
// s. Documents themselves are values and are replaced, not edited.
func (s State) clone() State {
	docs := make(map[string]Document, len(s.documents))
	maps.Copy(docs, s.documents)
	s.documents = docs
	s.order = slices.Clone(s.order)
	if s.order == nil {
		s.order = []string{}
	}
	if s.preview != nil {
		p := *s.preview
		s.preview = &p
	}
	if s.Editor.DraggedItem != nil {
		d := *s.Editor.DraggedItem
		s.Editor.DraggedItem = &d
	}
	return s
}

// put stores doc wherever its id currently lives.
func (s *State) put(doc Document) {
	if s.registered(doc.ID) {
		s.documents[doc.ID] = doc
		return
	}
	if s.preview != nil && s.preview.ID == doc.ID {
		s.preview = &doc
	}
}

type stateJSON struct {
	Documents []Document  `json:"documents"`
	Current   *Document   `json:"current_document"`
	Preview   bool        `json:"current_is_preview"`
	Editor    EditorState `json:"editor"`
	Loading   bool        `json:"is_loading"`
	Error     string      `json:"error,omitempty"`
}

func (s State) MarshalJSON() ([]byte, error) {
	out := stateJSON{
		Documents: s.Documents(),
		Preview:   s.IsPreview(),
		Editor:    s.Editor,
		Loading:   s.Loading,
		Error:     s.Error,
	}
	if cur, ok := s.Current(); ok {
		out.Current = &cur
	}
	return json.Marshal(out)
}
