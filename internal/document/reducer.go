package document

import (
	"errors"
	"fmt"
	"slices"
	"time"

	apperrors "github.com/mantavyam/pitch-note-pilot/internal/errors"
)

// Status is the outcome of a single transition.
type Status int

const (
	Applied Status = iota
	// Ignored means the addressed document, node or subnode does not exist.
	Ignored
	// Rejected means the action was well addressed but invalid.
	Rejected
)

func (s Status) String() string {
	switch s {
	case Applied:
		return "applied"
	case Ignored:
		return "ignored"
	case Rejected:
		return "rejected"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Transition is the result of Reduce. State is the input state unchanged
// unless Status is Applied; Err is set only for Rejected.
type Transition struct {
	State  State
	Status Status
	Err    error
}

var errTargetMissing = errors.New("target not found")

// Reduce applies action to s. It never modifies s and never panics on bad
// input; now is stamped as the update time of any document it changes.
func Reduce(s State, action Action, now time.Time) Transition {
	if s.documents == nil {
		s = NewState()
	}
	next, err := apply(s, action, now)
	switch {
	case err == nil:
		return Transition{State: next, Status: Applied}
	case errors.Is(err, errTargetMissing):
		return Transition{State: s, Status: Ignored}
	default:
		return Transition{State: s, Status: Rejected, Err: err}
	}
}

func apply(s State, action Action, now time.Time) (State, error) {
	switch a := action.(type) {
	case CreateDocument:
		return createDocument(s, a)
	case UpdateDocument:
		return mutateDocument(s, a.ID, now, func(doc *Document) error {
			if a.Patch.Title != nil {
				doc.Title = *a.Patch.Title
			}
			if a.Patch.YoutubeURL != nil {
				doc.YoutubeURL = *a.Patch.YoutubeURL
			}
			return nil
		})
	case DeleteDocument:
		return deleteDocument(s, a)
	case SetCurrentDocument:
		return setCurrent(s, a)
	case OpenDocument:
		if !s.registered(a.ID) {
			return s, errTargetMissing
		}
		next := s.clone()
		next.currentID = a.ID
		next.preview = nil
		return next, nil

	case AddNode:
		return addNode(s, a, now)
	case UpdateNode:
		return mutateNode(s, a.DocID, a.NodeID, now, func(n *Node) error {
			if a.Patch.Title != nil {
				n.Title = *a.Patch.Title
			}
			if a.Patch.Collapsed != nil {
				n.Collapsed = *a.Patch.Collapsed
			}
			return nil
		})
	case DeleteNode:
		return deleteNode(s, a, now)
	case ReorderNodes:
		return mutateDocument(s, a.DocID, now, func(doc *Document) error {
			nodes, err := reorderTo(doc.Nodes, a.NodeIDs)
			if err != nil {
				return err
			}
			doc.Nodes = nodes
			return nil
		})

	case AddSubNode:
		return addSubNode(s, a, now)
	case UpdateSubNode:
		return updateSubNode(s, a, now)
	case DeleteSubNode:
		return deleteSubNode(s, a, now)
	case ReorderSubNodes:
		return mutateNode(s, a.DocID, a.NodeID, now, func(n *Node) error {
			subnodes, err := reorderTo(n.SubNodes, a.SubNodeIDs)
			if err != nil {
				return err
			}
			n.SubNodes = subnodes
			return nil
		})

	case SetViewMode:
		if !a.Mode.Valid() {
			return s, apperrors.InvalidArgument(fmt.Sprintf("unknown view mode %q", a.Mode), nil)
		}
		next := s.clone()
		next.Editor.ViewMode = a.Mode
		return next, nil
	case SetSelectedNode:
		next := s.clone()
		next.Editor.SelectedNodeID = a.NodeID
		next.Editor.nodeDocID = s.currentID
		next.Editor.SelectedSubnodeID = ""
		next.Editor.subnodeDocID, next.Editor.subnodeNodeID = "", ""
		return next, nil
	case SetSelectedSubnode:
		next := s.clone()
		parent := a.NodeID
		if parent == "" {
			parent = s.Editor.SelectedNodeID
		}
		next.Editor.SelectedSubnodeID = a.SubNodeID
		next.Editor.subnodeDocID = s.currentID
		next.Editor.subnodeNodeID = parent
		return next, nil
	case ToggleOutline:
		next := s.clone()
		next.Editor.OutlineCollapsed = !next.Editor.OutlineCollapsed
		return next, nil
	case SetUnsavedChanges:
		next := s.clone()
		next.Editor.HasUnsavedChanges = a.Value
		return next, nil
	case SetDraggedItem:
		if a.Item != nil && a.Item.Kind != DragNode && a.Item.Kind != DragSubNode {
			return s, apperrors.InvalidArgument(fmt.Sprintf("unknown drag kind %q", a.Item.Kind), nil)
		}
		next := s.clone()
		next.Editor.DraggedItem = nil
		next.Editor.dragDocID = ""
		if a.Item != nil {
			item := *a.Item
			next.Editor.DraggedItem = &item
			next.Editor.dragDocID = s.currentID
		}
		return next, nil
	case SetLoading:
		next := s.clone()
		next.Loading = a.Value
		return next, nil
	case SetError:
		next := s.clone()
		next.Error = a.Message
		return next, nil
	case ResetEditor:
		next := s.clone()
		next.Editor = DefaultEditorState()
		return next, nil
	}

	if action == nil {
		return s, apperrors.InvalidArgument("nil action", nil)
	}
	return s, apperrors.InvalidArgument(fmt.Sprintf("unsupported action %s", action.Name()), nil)
}

// mutateDocument runs fn on a private copy of the addressed document, then
// recounts metadata, stamps the update time and marks unsaved changes.
func mutateDocument(s State, id string, now time.Time, fn func(doc *Document) error) (State, error) {
	doc, ok := s.lookup(id)
	if !ok {
		return s, errTargetMissing
	}
	doc = doc.clone()
	if err := fn(&doc); err != nil {
		return s, err
	}
	doc = doc.recount()
	doc.UpdatedAt = now

	next := s.clone()
	next.put(doc)
	next.Editor.HasUnsavedChanges = true
	return next, nil
}

// mutateNode is mutateDocument narrowed to one node, which also becomes the
// last edited node.
func mutateNode(s State, docID, nodeID string, now time.Time, fn func(n *Node) error) (State, error) {
	return mutateDocument(s, docID, now, func(doc *Document) error {
		i := indexOf(doc.Nodes, nodeID)
		if i < 0 {
			return errTargetMissing
		}
		if err := fn(&doc.Nodes[i]); err != nil {
			return err
		}
		doc.Metadata.LastEditedNode = nodeID
		return nil
	})
}

func createDocument(s State, a CreateDocument) (State, error) {
	doc := a.Document
	if doc.ID == "" {
		return s, apperrors.InvalidArgument("document id is required", nil)
	}
	if s.registered(doc.ID) {
		return s, apperrors.Conflict(fmt.Sprintf("document %s already exists", doc.ID), nil)
	}
	doc, err := normalize(doc)
	if err != nil {
		return s, err
	}

	next := s.clone()
	next.documents[doc.ID] = doc
	next.order = append(next.order, doc.ID)
	next.currentID = doc.ID
	next.preview = nil
	return next, nil
}

func deleteDocument(s State, a DeleteDocument) (State, error) {
	doc, ok := s.lookup(a.ID)
	if !ok {
		return s, errTargetMissing
	}

	next := s.clone()
	if next.registered(a.ID) {
		delete(next.documents, a.ID)
		next.order = slices.DeleteFunc(next.order, func(id string) bool { return id == a.ID })
	}
	if next.preview != nil && next.preview.ID == a.ID {
		next.preview = nil
	}
	if next.currentID == a.ID {
		next.currentID = ""
	}
	for _, n := range doc.Nodes {
		next.Editor.forgetNode(a.ID, n)
	}
	return next, nil
}

func setCurrent(s State, a SetCurrentDocument) (State, error) {
	next := s.clone()
	if a.Document == nil {
		next.currentID = ""
		next.preview = nil
		return next, nil
	}

	doc := a.Document.clone()
	if doc.ID == "" {
		return s, apperrors.InvalidArgument("document id is required", nil)
	}
	next.currentID = doc.ID
	if s.registered(doc.ID) {
		next.preview = nil
		return next, nil
	}
	doc, err := normalize(doc)
	if err != nil {
		return s, err
	}
	next.preview = &doc
	return next, nil
}

// normalize renumbers siblings, recounts metadata and validates a document
// arriving from outside the store.
func normalize(doc Document) (Document, error) {
	doc = doc.clone()
	doc.Nodes = renumber(doc.Nodes)
	for i := range doc.Nodes {
		doc.Nodes[i].SubNodes = renumber(doc.Nodes[i].SubNodes)
	}
	doc = doc.recount()
	if err := doc.Validate(); err != nil {
		return Document{}, invalidDocument(err)
	}
	return doc, nil
}

func addNode(s State, a AddNode, now time.Time) (State, error) {
	node := a.Node
	if node.ID == "" {
		return s, apperrors.InvalidArgument("node id is required", nil)
	}
	node.SubNodes = renumber(cloneSubNodes(node.SubNodes))
	if err := checkSiblings(node.SubNodes); err != nil {
		return s, apperrors.InvalidArgument(fmt.Sprintf("node %s", node.ID), err)
	}
	for _, sub := range node.SubNodes {
		if err := checkContent(sub.Type, sub.Content); err != nil {
			return s, err
		}
	}

	return mutateDocument(s, a.DocID, now, func(doc *Document) error {
		if indexOf(doc.Nodes, node.ID) >= 0 {
			return apperrors.Conflict(fmt.Sprintf("node %s already exists", node.ID), nil)
		}
		doc.Nodes = insertAfter(doc.Nodes, node, a.AfterNodeID)
		doc.Metadata.LastEditedNode = node.ID
		return nil
	})
}

func deleteNode(s State, a DeleteNode, now time.Time) (State, error) {
	var removed Node
	next, err := mutateDocument(s, a.DocID, now, func(doc *Document) error {
		i := indexOf(doc.Nodes, a.NodeID)
		if i < 0 {
			return errTargetMissing
		}
		removed = doc.Nodes[i]
		doc.Nodes, _ = removeSibling(doc.Nodes, a.NodeID)
		if doc.Metadata.LastEditedNode == a.NodeID {
			doc.Metadata.LastEditedNode = ""
		}
		return nil
	})
	if err != nil {
		return s, err
	}
	next.Editor.forgetNode(a.DocID, removed)
	return next, nil
}

func addSubNode(s State, a AddSubNode, now time.Time) (State, error) {
	sub := a.SubNode
	if sub.ID == "" {
		return s, apperrors.InvalidArgument("subnode id is required", nil)
	}
	if err := checkContent(sub.Type, sub.Content); err != nil {
		return s, err
	}
	sub.Content = cloneContent(sub.Content)

	return mutateNode(s, a.DocID, a.NodeID, now, func(n *Node) error {
		if indexOf(n.SubNodes, sub.ID) >= 0 {
			return apperrors.Conflict(fmt.Sprintf("subnode %s already exists", sub.ID), nil)
		}
		n.SubNodes = insertAfter(n.SubNodes, sub, a.AfterSubNodeID)
		return nil
	})
}

func updateSubNode(s State, a UpdateSubNode, now time.Time) (State, error) {
	return mutateNode(s, a.DocID, a.NodeID, now, func(n *Node) error {
		i := indexOf(n.SubNodes, a.SubNodeID)
		if i < 0 {
			return errTargetMissing
		}
		sub := n.SubNodes[i]
		if a.Patch.Type != nil && *a.Patch.Type != sub.Type {
			sub.Type = *a.Patch.Type
			sub.Content = nil
		}
		if a.Patch.Content != nil {
			sub.Content = cloneContent(a.Patch.Content)
		}
		if err := checkContent(sub.Type, sub.Content); err != nil {
			return err
		}
		n.SubNodes[i] = sub
		return nil
	})
}

func deleteSubNode(s State, a DeleteSubNode, now time.Time) (State, error) {
	next, err := mutateNode(s, a.DocID, a.NodeID, now, func(n *Node) error {
		subnodes, ok := removeSibling(n.SubNodes, a.SubNodeID)
		if !ok {
			return errTargetMissing
		}
		n.SubNodes = subnodes
		return nil
	})
	if err != nil {
		return s, err
	}
	next.Editor.forgetSubNode(a.DocID, a.NodeID, a.SubNodeID)
	return next, nil
}

// invalidDocument keeps the kind of a structural error that already carries
// one, such as a table shape mismatch.
func invalidDocument(err error) error {
	var apiErr *apperrors.APIError
	if errors.As(err, &apiErr) {
		return err
	}
	return apperrors.InvalidArgument("invalid document", err)
}

// forgetNode drops selection and drag references to node n of document
// docID and to its subnodes.
func (e *EditorState) forgetNode(docID string, n Node) {
	if e.SelectedNodeID == n.ID && scoped(e.nodeDocID, docID) {
		e.SelectedNodeID, e.nodeDocID = "", ""
	}
	if d := e.DraggedItem; d != nil && d.Kind == DragNode && d.ID == n.ID && scoped(e.dragDocID, docID) {
		e.DraggedItem, e.dragDocID = nil, ""
	}
	for _, sub := range n.SubNodes {
		e.forgetSubNode(docID, n.ID, sub.ID)
	}
}

func (e *EditorState) forgetSubNode(docID, nodeID, id string) {
	if e.SelectedSubnodeID == id && scoped(e.subnodeDocID, docID) && scoped(e.subnodeNodeID, nodeID) {
		e.SelectedSubnodeID, e.subnodeDocID, e.subnodeNodeID = "", "", ""
	}
	if d := e.DraggedItem; d != nil && d.Kind == DragSubNode && d.ID == id &&
		scoped(e.dragDocID, docID) && scoped(d.ParentID, nodeID) {
		e.DraggedItem, e.dragDocID = nil, ""
	}
}

// scoped reports whether a recorded owner matches; an unknown owner matches
// everything.
func scoped(recorded, owner string) bool {
	return recorded == "" || recorded == owner
}
