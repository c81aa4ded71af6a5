package document

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	apperrors "github.com/mantavyam/pitch-note-pilot/internal/errors"
	"github.com/mantavyam/pitch-note-pilot/internal/identity"
	"github.com/rs/zerolog"
)

type Service interface {
	CreateDocument(ctx context.Context, data CreateDocumentData) (*Document, error)
	UpdateDocument(ctx context.Context, docID string, patch DocumentPatch) (*Document, error)
	DeleteDocument(ctx context.Context, docID string) error
	GetDocument(ctx context.Context, docID string) (*Document, error)
	ListDocuments(ctx context.Context, page, pageSize int) (*PaginatedDocuments, error)

	SetCurrentDocument(ctx context.Context, doc *Document) error
	OpenDocument(ctx context.Context, docID string) (*Document, error)
	CurrentDocument(ctx context.Context) (*Document, error)

	AddNode(ctx context.Context, docID string, data AddNodeData) (*Node, error)
	UpdateNode(ctx context.Context, docID, nodeID string, patch NodePatch) (*Node, error)
	ToggleNodeCollapsed(ctx context.Context, docID, nodeID string) (*Node, error)
	DeleteNode(ctx context.Context, docID, nodeID string) error
	ReorderNodes(ctx context.Context, docID string, nodeIDs []string) (*Document, error)
	MoveNode(ctx context.Context, docID, activeID, overID string) (*Document, error)
	AddNewsItem(ctx context.Context, docID, nodeID string) (*Node, error)

	AddSubNode(ctx context.Context, docID, nodeID string, data AddSubNodeData) (*SubNode, error)
	InsertTable(ctx context.Context, docID, nodeID, afterSubNodeID string) (*SubNode, error)
	UpdateSubNode(ctx context.Context, docID, nodeID, subNodeID string, data UpdateSubNodeData) (*SubNode, error)
	EditTable(ctx context.Context, docID, nodeID, subNodeID string, edit TableEdit) (*SubNode, error)
	DeleteSubNode(ctx context.Context, docID, nodeID, subNodeID string) error
	ReorderSubNodes(ctx context.Context, docID, nodeID string, subNodeIDs []string) (*Node, error)
	MoveSubNode(ctx context.Context, docID, nodeID, activeID, overID string) (*Node, error)

	Editor(ctx context.Context) EditorState
	UpdateEditor(ctx context.Context, patch EditorPatch) (EditorState, error)
	SetLoading(ctx context.Context, loading bool) error
	SetError(ctx context.Context, message string) error

	Stats(ctx context.Context) Stats
	State() State
	Subscribe(l Listener) func()
}

type DefaultService struct {
	// mu keeps read-then-dispatch sequences, such as content merges and drag
	// moves, from interleaving.
	mu    sync.Mutex
	store *Store
	ids   identity.Generator
	now   func() time.Time
	log   zerolog.Logger
}

func NewService(store *Store, ids identity.Generator, log zerolog.Logger) *DefaultService {
	return &DefaultService{
		store: store,
		ids:   ids,
		now:   store.now,
		log:   log,
	}
}

type CreateDocumentData struct {
	Date       string
	YoutubeURL string
}

type AddNodeData struct {
	Title       string
	AfterNodeID string
	// WithStarterTemplate seeds the node with a news item; nil means true.
	WithStarterTemplate *bool
}

type AddSubNodeData struct {
	Type           SubNodeType
	Content        ContentRecord
	AfterSubNodeID string
}

// UpdateSubNodeData is a partial update. Content is merged over the current
// record unless Type changes, in which case it replaces it.
type UpdateSubNodeData struct {
	Type    *SubNodeType
	Content *ContentRecord
}

// EditorPatch groups editor changes; each set field becomes one action.
type EditorPatch struct {
	ViewMode          *ViewMode
	SelectedNodeID    *string
	SelectedSubnodeID *string
	ToggleOutline     bool
	HasUnsavedChanges *bool
	DraggedItem       *DraggedItem
	ClearDraggedItem  bool
	Reset             bool
}

type DocumentSummary struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	YoutubeURL string    `json:"youtube_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Metadata   Metadata  `json:"metadata"`
}

type DocumentsMeta struct {
	Total       int64 `json:"total"`
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	TotalPage   int   `json:"total_page"`
}

type PaginatedDocuments struct {
	Data []DocumentSummary `json:"data"`
	Meta DocumentsMeta     `json:"meta"`
}

type Stats struct {
	Documents int `json:"documents"`
	Nodes     int `json:"nodes"`
	SubNodes  int `json:"subnodes"`
}

func (s *DefaultService) dispatch(ctx context.Context, action Action) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	t := s.store.Dispatch(action)
	switch t.Status {
	case Ignored:
		return t.State, apperrors.NotFound(fmt.Sprintf("%s: target not found", action.Name()), nil)
	case Rejected:
		return t.State, t.Err
	}
	return t.State, nil
}

func (s *DefaultService) CreateDocument(ctx context.Context, data CreateDocumentData) (*Document, error) {
	date := strings.TrimSpace(data.Date)
	if date == "" {
		return nil, fieldError("date", "is required")
	}
	youtubeURL := strings.TrimSpace(data.YoutubeURL)
	if youtubeURL != "" && !isAbsoluteURL(youtubeURL) {
		return nil, fieldError("youtube_url", "must be a valid URL")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := NewDocument(s.ids.NewID(), date, youtubeURL, s.now(), StarterNode(s.ids))
	state, err := s.dispatch(ctx, CreateDocument{Document: doc})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("document_id", doc.ID).Msg("document created")
	return s.document(state, doc.ID)
}

func (s *DefaultService) UpdateDocument(ctx context.Context, docID string, patch DocumentPatch) (*Document, error) {
	if patch.YoutubeURL != nil && *patch.YoutubeURL != "" && !isAbsoluteURL(*patch.YoutubeURL) {
		return nil, fieldError("youtube_url", "must be a valid URL")
	}
	state, err := s.dispatch(ctx, UpdateDocument{ID: docID, Patch: patch})
	if err != nil {
		return nil, err
	}
	return s.document(state, docID)
}

func (s *DefaultService) DeleteDocument(ctx context.Context, docID string) error {
	if _, err := s.dispatch(ctx, DeleteDocument{ID: docID}); err != nil {
		return err
	}
	s.log.Info().Str("document_id", docID).Msg("document deleted")
	return nil
}

func (s *DefaultService) GetDocument(ctx context.Context, docID string) (*Document, error) {
	return s.document(s.store.State(), docID)
}

func (s *DefaultService) ListDocuments(ctx context.Context, page, pageSize int) (*PaginatedDocuments, error) {
	if page < 1 || pageSize < 1 {
		return nil, apperrors.BadRequest("page and per_page must be positive", nil)
	}

	docs := s.store.State().Documents()
	total := len(docs)

	start := min((page-1)*pageSize, total)
	end := min(start+pageSize, total)

	data := make([]DocumentSummary, 0, end-start)
	for _, d := range docs[start:end] {
		data = append(data, summarize(d))
	}

	return &PaginatedDocuments{
		Data: data,
		Meta: DocumentsMeta{
			Total:       int64(total),
			CurrentPage: page,
			PerPage:     pageSize,
			TotalPage:   (total + pageSize - 1) / pageSize,
		},
	}, nil
}

func (s *DefaultService) SetCurrentDocument(ctx context.Context, doc *Document) error {
	_, err := s.dispatch(ctx, SetCurrentDocument{Document: doc})
	return err
}

func (s *DefaultService) OpenDocument(ctx context.Context, docID string) (*Document, error) {
	state, err := s.dispatch(ctx, OpenDocument{ID: docID})
	if err != nil {
		return nil, err
	}
	return s.document(state, docID)
}

func (s *DefaultService) CurrentDocument(ctx context.Context) (*Document, error) {
	doc, ok := s.store.State().Current()
	if !ok {
		return nil, apperrors.NotFound("No current document", nil)
	}
	return &doc, nil
}

func (s *DefaultService) AddNode(ctx context.Context, docID string, data AddNodeData) (*Node, error) {
	title := strings.TrimSpace(data.Title)
	if title == "" {
		return nil, fieldError("title", "is required")
	}

	var subnodes []SubNode
	if data.WithStarterTemplate == nil || *data.WithStarterTemplate {
		subnodes = NewsItem(s.ids, 0)
	}
	node := NewNode(s.ids.NewID(), title, 0, subnodes...)

	state, err := s.dispatch(ctx, AddNode{DocID: docID, Node: node, AfterNodeID: data.AfterNodeID})
	if err != nil {
		return nil, err
	}
	return s.node(state, docID, node.ID)
}

func (s *DefaultService) UpdateNode(ctx context.Context, docID, nodeID string, patch NodePatch) (*Node, error) {
	state, err := s.dispatch(ctx, UpdateNode{DocID: docID, NodeID: nodeID, Patch: patch})
	if err != nil {
		return nil, err
	}
	return s.node(state, docID, nodeID)
}

func (s *DefaultService) ToggleNodeCollapsed(ctx context.Context, docID, nodeID string) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.node(s.store.State(), docID, nodeID)
	if err != nil {
		return nil, err
	}
	collapsed := !current.Collapsed
	return s.UpdateNode(ctx, docID, nodeID, NodePatch{Collapsed: &collapsed})
}

func (s *DefaultService) DeleteNode(ctx context.Context, docID, nodeID string) error {
	_, err := s.dispatch(ctx, DeleteNode{DocID: docID, NodeID: nodeID})
	return err
}

func (s *DefaultService) ReorderNodes(ctx context.Context, docID string, nodeIDs []string) (*Document, error) {
	state, err := s.dispatch(ctx, ReorderNodes{DocID: docID, NodeIDs: nodeIDs})
	if err != nil {
		return nil, err
	}
	return s.document(state, docID)
}

// MoveNode drops activeID where overID currently sits.
func (s *DefaultService) MoveNode(ctx context.Context, docID, activeID, overID string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.document(s.store.State(), docID)
	if err != nil {
		return nil, err
	}
	ids, err := moveIDs(doc.Nodes, activeID, overID)
	if err != nil {
		return nil, err
	}
	return s.ReorderNodes(ctx, docID, ids)
}

// AddNewsItem appends a headline, image and description to an existing node.
func (s *DefaultService) AddNewsItem(ctx context.Context, docID, nodeID string) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.node(s.store.State(), docID, nodeID); err != nil {
		return nil, err
	}
	var state State
	for _, sub := range NewsItem(s.ids, 0) {
		var err error
		state, err = s.dispatch(ctx, AddSubNode{DocID: docID, NodeID: nodeID, SubNode: sub})
		if err != nil {
			return nil, err
		}
	}
	return s.node(state, docID, nodeID)
}

func (s *DefaultService) AddSubNode(ctx context.Context, docID, nodeID string, data AddSubNodeData) (*SubNode, error) {
	content, err := data.Content.Decode(data.Type)
	if err != nil {
		return nil, err
	}
	sub := SubNode{ID: s.ids.NewID(), Type: data.Type, Content: content}

	state, err := s.dispatch(ctx, AddSubNode{
		DocID:          docID,
		NodeID:         nodeID,
		SubNode:        sub,
		AfterSubNodeID: data.AfterSubNodeID,
	})
	if err != nil {
		return nil, err
	}
	return s.subNode(state, docID, nodeID, sub.ID)
}

func (s *DefaultService) InsertTable(ctx context.Context, docID, nodeID, afterSubNodeID string) (*SubNode, error) {
	table := DefaultTable()
	return s.AddSubNode(ctx, docID, nodeID, AddSubNodeData{
		Type:           TypeTable,
		Content:        ContentRecord{Table: &table},
		AfterSubNodeID: afterSubNodeID,
	})
}

func (s *DefaultService) UpdateSubNode(ctx context.Context, docID, nodeID, subNodeID string, data UpdateSubNodeData) (*SubNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.subNode(s.store.State(), docID, nodeID, subNodeID)
	if err != nil {
		return nil, err
	}

	typ := current.Type
	base := RecordOf(current.Content)
	if data.Type != nil && *data.Type != current.Type {
		typ = *data.Type
		base = ContentRecord{}
	}

	patch := SubNodePatch{Type: data.Type}
	if data.Content != nil {
		content, err := base.Merge(*data.Content).Decode(typ)
		if err != nil {
			return nil, err
		}
		patch.Content = content
	}

	state, err := s.dispatch(ctx, UpdateSubNode{DocID: docID, NodeID: nodeID, SubNodeID: subNodeID, Patch: patch})
	if err != nil {
		return nil, err
	}
	return s.subNode(state, docID, nodeID, subNodeID)
}

// EditTable applies one table editing step to a table subnode. A table
// subnode without content starts from an empty table.
func (s *DefaultService) EditTable(ctx context.Context, docID, nodeID, subNodeID string, edit TableEdit) (*SubNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.subNode(s.store.State(), docID, nodeID, subNodeID)
	if err != nil {
		return nil, err
	}
	if current.Type != TypeTable {
		return nil, apperrors.InvalidArgument(fmt.Sprintf("subnode %s is a %s, not a table", subNodeID, current.Type), nil)
	}

	table, _ := current.Content.(Table)
	edited, err := edit.Apply(table)
	if err != nil {
		return nil, err
	}

	state, err := s.dispatch(ctx, UpdateSubNode{
		DocID:     docID,
		NodeID:    nodeID,
		SubNodeID: subNodeID,
		Patch:     SubNodePatch{Content: edited},
	})
	if err != nil {
		return nil, err
	}
	return s.subNode(state, docID, nodeID, subNodeID)
}

func (s *DefaultService) DeleteSubNode(ctx context.Context, docID, nodeID, subNodeID string) error {
	_, err := s.dispatch(ctx, DeleteSubNode{DocID: docID, NodeID: nodeID, SubNodeID: subNodeID})
	return err
}

func (s *DefaultService) ReorderSubNodes(ctx context.Context, docID, nodeID string, subNodeIDs []string) (*Node, error) {
	state, err := s.dispatch(ctx, ReorderSubNodes{DocID: docID, NodeID: nodeID, SubNodeIDs: subNodeIDs})
	if err != nil {
		return nil, err
	}
	return s.node(state, docID, nodeID)
}

func (s *DefaultService) MoveSubNode(ctx context.Context, docID, nodeID, activeID, overID string) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, err := s.node(s.store.State(), docID, nodeID)
	if err != nil {
		return nil, err
	}
	ids, err := moveIDs(node.SubNodes, activeID, overID)
	if err != nil {
		return nil, err
	}
	return s.ReorderSubNodes(ctx, docID, nodeID, ids)
}

func (s *DefaultService) Editor(ctx context.Context) EditorState {
	return s.store.State().Editor
}

// UpdateEditor applies every field of patch or, when any field is invalid,
// none of them.
func (s *DefaultService) UpdateEditor(ctx context.Context, patch EditorPatch) (EditorState, error) {
	if err := patch.validate(); err != nil {
		return s.store.State().Editor, err
	}
	if err := ctx.Err(); err != nil {
		return s.store.State().Editor, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var actions []Action
	if patch.Reset {
		actions = append(actions, ResetEditor{})
	}
	if patch.ViewMode != nil {
		actions = append(actions, SetViewMode{Mode: *patch.ViewMode})
	}
	if patch.SelectedNodeID != nil {
		actions = append(actions, SetSelectedNode{NodeID: *patch.SelectedNodeID})
	}
	if patch.SelectedSubnodeID != nil {
		actions = append(actions, SetSelectedSubnode{SubNodeID: *patch.SelectedSubnodeID})
	}
	if patch.ToggleOutline {
		actions = append(actions, ToggleOutline{})
	}
	if patch.HasUnsavedChanges != nil {
		actions = append(actions, SetUnsavedChanges{Value: *patch.HasUnsavedChanges})
	}
	if patch.ClearDraggedItem {
		actions = append(actions, SetDraggedItem{})
	} else if patch.DraggedItem != nil {
		actions = append(actions, SetDraggedItem{Item: patch.DraggedItem})
	}

	state := s.store.State()
	for _, action := range actions {
		var err error
		if state, err = s.dispatch(ctx, action); err != nil {
			return s.store.State().Editor, err
		}
	}
	return state.Editor, nil
}

func (p EditorPatch) validate() error {
	if p.ViewMode != nil && !p.ViewMode.Valid() {
		return apperrors.InvalidArgument(fmt.Sprintf("unknown view mode %q", *p.ViewMode), nil)
	}
	if d := p.DraggedItem; d != nil && !p.ClearDraggedItem && d.Kind != DragNode && d.Kind != DragSubNode {
		return apperrors.InvalidArgument(fmt.Sprintf("unknown drag kind %q", d.Kind), nil)
	}
	return nil
}

func (s *DefaultService) SetLoading(ctx context.Context, loading bool) error {
	_, err := s.dispatch(ctx, SetLoading{Value: loading})
	return err
}

func (s *DefaultService) SetError(ctx context.Context, message string) error {
	_, err := s.dispatch(ctx, SetError{Message: message})
	return err
}

func (s *DefaultService) Stats(ctx context.Context) Stats {
	var stats Stats
	for _, doc := range s.store.State().Documents() {
		stats.Documents++
		stats.Nodes += doc.Metadata.TotalNodes
		stats.SubNodes += doc.Metadata.TotalSubnodes
	}
	return stats
}

func (s *DefaultService) State() State {
	return s.store.State()
}

func (s *DefaultService) Subscribe(l Listener) func() {
	return s.store.Subscribe(l)
}

func (s *DefaultService) document(state State, docID string) (*Document, error) {
	doc, ok := state.Document(docID)
	if !ok {
		return nil, apperrors.NotFound(fmt.Sprintf("Document %s not found", docID), nil)
	}
	return &doc, nil
}

func (s *DefaultService) node(state State, docID, nodeID string) (*Node, error) {
	doc, err := s.document(state, docID)
	if err != nil {
		return nil, err
	}
	node, ok := doc.FindNode(nodeID)
	if !ok {
		return nil, apperrors.NotFound(fmt.Sprintf("Node %s not found", nodeID), nil)
	}
	return &node, nil
}

func (s *DefaultService) subNode(state State, docID, nodeID, subNodeID string) (*SubNode, error) {
	node, err := s.node(state, docID, nodeID)
	if err != nil {
		return nil, err
	}
	sub, ok := node.FindSubNode(subNodeID)
	if !ok {
		return nil, apperrors.NotFound(fmt.Sprintf("Subnode %s not found", subNodeID), nil)
	}
	return &sub, nil
}

// moveIDs computes the sibling id sequence after dropping activeID on overID.
func moveIDs[T sibling[T]](items []T, activeID, overID string) ([]string, error) {
	to := indexOf(sorted(items), overID)
	if to < 0 {
		return nil, apperrors.NotFound(fmt.Sprintf("%s not found", overID), nil)
	}
	ids, ok := moveSequence(items, activeID, to)
	if !ok {
		return nil, apperrors.NotFound(fmt.Sprintf("%s not found", activeID), nil)
	}
	return ids, nil
}

func summarize(d Document) DocumentSummary {
	return DocumentSummary{
		ID:         d.ID,
		Title:      d.Title,
		YoutubeURL: d.YoutubeURL,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
		Metadata:   d.Metadata,
	}
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func fieldError(field, msg string) error {
	apiErr := apperrors.UnprocessableEntity("Validation failed", nil)
	apiErr.Fields = map[string]string{field: msg}
	return apiErr
}
