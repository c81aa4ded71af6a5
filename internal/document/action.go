package document

// Action is a single state transition request handed to Reduce.
type Action interface {
	// Name identifies the action in logs and broadcast events.
	Name() string
	// DocumentID is the document the action addresses, empty for editor actions.
	DocumentID() string
}

type noDocument struct{}

func (noDocument) DocumentID() string { return "" }

// Documents

type CreateDocument struct {
	Document Document
}

func (CreateDocument) Name() string         { return "create_document" }
func (a CreateDocument) DocumentID() string { return a.Document.ID }

type DocumentPatch struct {
	Title      *string
	YoutubeURL *string
}

type UpdateDocument struct {
	ID    string
	Patch DocumentPatch
}

func (UpdateDocument) Name() string         { return "update_document" }
func (a UpdateDocument) DocumentID() string { return a.ID }

type DeleteDocument struct {
	ID string
}

func (DeleteDocument) Name() string         { return "delete_document" }
func (a DeleteDocument) DocumentID() string { return a.ID }

// SetCurrentDocument makes Document current. A nil Document clears the
// current document; an unregistered one is staged as a preview.
type SetCurrentDocument struct {
	Document *Document
}

func (SetCurrentDocument) Name() string { return "set_current_document" }
func (a SetCurrentDocument) DocumentID() string {
	if a.Document == nil {
		return ""
	}
	return a.Document.ID
}

// OpenDocument makes a registered document current by id.
type OpenDocument struct {
	ID string
}

func (OpenDocument) Name() string         { return "open_document" }
func (a OpenDocument) DocumentID() string { return a.ID }

// Nodes

type AddNode struct {
	DocID       string
	Node        Node
	AfterNodeID string
}

func (AddNode) Name() string         { return "add_node" }
func (a AddNode) DocumentID() string { return a.DocID }

type NodePatch struct {
	Title     *string
	Collapsed *bool
}

type UpdateNode struct {
	DocID  string
	NodeID string
	Patch  NodePatch
}

func (UpdateNode) Name() string         { return "update_node" }
func (a UpdateNode) DocumentID() string { return a.DocID }

type DeleteNode struct {
	DocID  string
	NodeID string
}

func (DeleteNode) Name() string         { return "delete_node" }
func (a DeleteNode) DocumentID() string { return a.DocID }

type ReorderNodes struct {
	DocID   string
	NodeIDs []string
}

func (ReorderNodes) Name() string         { return "reorder_nodes" }
func (a ReorderNodes) DocumentID() string { return a.DocID }

// SubNodes

type AddSubNode struct {
	DocID          string
	NodeID         string
	SubNode        SubNode
	AfterSubNodeID string
}

func (AddSubNode) Name() string         { return "add_subnode" }
func (a AddSubNode) DocumentID() string { return a.DocID }

// SubNodePatch replaces the type and/or the whole content of a subnode.
// Changing the type without new content clears the content.
type SubNodePatch struct {
	Type    *SubNodeType
	Content Content
}

type UpdateSubNode struct {
	DocID     string
	NodeID    string
	SubNodeID string
	Patch     SubNodePatch
}

func (UpdateSubNode) Name() string         { return "update_subnode" }
func (a UpdateSubNode) DocumentID() string { return a.DocID }

type DeleteSubNode struct {
	DocID     string
	NodeID    string
	SubNodeID string
}

func (DeleteSubNode) Name() string         { return "delete_subnode" }
func (a DeleteSubNode) DocumentID() string { return a.DocID }

type ReorderSubNodes struct {
	DocID      string
	NodeID     string
	SubNodeIDs []string
}

func (ReorderSubNodes) Name() string         { return "reorder_subnodes" }
func (a ReorderSubNodes) DocumentID() string { return a.DocID }

// Editor

type SetViewMode struct {
	noDocument
	Mode ViewMode
}

func (SetViewMode) Name() string { return "set_view_mode" }

type SetSelectedNode struct {
	noDocument
	NodeID string
}

func (SetSelectedNode) Name() string { return "set_selected_node" }

// SetSelectedSubnode selects a subnode. NodeID names its parent; when empty
// the selected node is assumed.
type SetSelectedSubnode struct {
	noDocument
	SubNodeID string
	NodeID    string
}

func (SetSelectedSubnode) Name() string { return "set_selected_subnode" }

type ToggleOutline struct {
	noDocument
}

func (ToggleOutline) Name() string { return "toggle_outline" }

type SetUnsavedChanges struct {
	noDocument
	Value bool
}

func (SetUnsavedChanges) Name() string { return "set_unsaved_changes" }

// SetDraggedItem starts (non-nil Item) or ends (nil) a drag gesture.
type SetDraggedItem struct {
	noDocument
	Item *DraggedItem
}

func (SetDraggedItem) Name() string { return "set_dragged_item" }

type SetLoading struct {
	noDocument
	Value bool
}

func (SetLoading) Name() string { return "set_loading" }

type SetError struct {
	noDocument
	Message string
}

func (SetError) Name() string { return "set_error" }

type ResetEditor struct {
	noDocument
}

func (ResetEditor) Name() string { return "reset_editor" }
