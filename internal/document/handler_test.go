package document

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/mantavyam/pitch-note-pilot/internal/errors"
	"github.com/mantavyam/pitch-note-pilot/internal/identity"
	"github.com/mantavyam/pitch-note-pilot/internal/logger"
	"github.com/mantavyam/pitch-note-pilot/internal/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mock implementation of the Service interface
type MockService struct {
	mock.Mock
}

func (m *MockService) CreateDocument(ctx context.Context, data CreateDocumentData) (*Document, error) {
	args := m.Called(ctx, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Document), args.Error(1)
}

func (m *MockService) UpdateDocument(ctx context.Context, docID string, patch DocumentPatch) (*Document, error) {
	args := m.Called(ctx, docID, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Document), args.Error(1)
}

func (m *MockService) DeleteDocument(ctx context.Context, docID string) error {
	args := m.Called(ctx, docID)
	return args.Error(0)
}

func (m *MockService) GetDocument(ctx context.Context, docID string) (*Document, error) {
	args := m.Called(ctx, docID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Document), args.Error(1)
}

func (m *MockService) ListDocuments(ctx context.Context, page, pageSize int) (*PaginatedDocuments, error) {
	args := m.Called(ctx, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PaginatedDocuments), args.Error(1)
}

func (m *MockService) SetCurrentDocument(ctx context.Context, doc *Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockService) OpenDocument(ctx context.Context, docID string) (*Document, error) {
	args := m.Called(ctx, docID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Document), args.Error(1)
}

func (m *MockService) CurrentDocument(ctx context.Context) (*Document, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Document), args.Error(1)
}

func (m *MockService) AddNode(ctx context.Context, docID string, data AddNodeData) (*Node, error) {
	args := m.Called(ctx, docID, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Node), args.Error(1)
}

func (m *MockService) UpdateNode(ctx context.Context, docID, nodeID string, patch NodePatch) (*Node, error) {
	args := m.Called(ctx, docID, nodeID, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Node), args.Error(1)
}

func (m *MockService) ToggleNodeCollapsed(ctx context.Context, docID, nodeID string) (*Node, error) {
	args := m.Called(ctx, docID, nodeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Node), args.Error(1)
}

func (m *MockService) DeleteNode(ctx context.Context, docID, nodeID string) error {
	args := m.Called(ctx, docID, nodeID)
	return args.Error(0)
}

func (m *MockService) ReorderNodes(ctx context.Context, docID string, nodeIDs []string) (*Document, error) {
	args := m.Called(ctx, docID, nodeIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Document), args.Error(1)
}

func (m *MockService) MoveNode(ctx context.Context, docID, activeID, overID string) (*Document, error) {
	args := m.Called(ctx, docID, activeID, overID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Document), args.Error(1)
}

func (m *MockService) AddNewsItem(ctx context.Context, docID, nodeID string) (*Node, error) {
	args := m.Called(ctx, docID, nodeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Node), args.Error(1)
}

func (m *MockService) AddSubNode(ctx context.Context, docID, nodeID string, data AddSubNodeData) (*SubNode, error) {
	args := m.Called(ctx, docID, nodeID, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SubNode), args.Error(1)
}

func (m *MockService) InsertTable(ctx context.Context, docID, nodeID, afterSubNodeID string) (*SubNode, error) {
	args := m.Called(ctx, docID, nodeID, afterSubNodeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SubNode), args.Error(1)
}

func (m *MockService) UpdateSubNode(ctx context.Context, docID, nodeID, subNodeID string, data UpdateSubNodeData) (*SubNode, error) {
	args := m.Called(ctx, docID, nodeID, subNodeID, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SubNode), args.Error(1)
}

func (m *MockService) EditTable(ctx context.Context, docID, nodeID, subNodeID string, edit TableEdit) (*SubNode, error) {
	args := m.Called(ctx, docID, nodeID, subNodeID, edit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SubNode), args.Error(1)
}

func (m *MockService) DeleteSubNode(ctx context.Context, docID, nodeID, subNodeID string) error {
	args := m.Called(ctx, docID, nodeID, subNodeID)
	return args.Error(0)
}

func (m *MockService) ReorderSubNodes(ctx context.Context, docID, nodeID string, subNodeIDs []string) (*Node, error) {
	args := m.Called(ctx, docID, nodeID, subNodeIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Node), args.Error(1)
}

func (m *MockService) MoveSubNode(ctx context.Context, docID, nodeID, activeID, overID string) (*Node, error) {
	args := m.Called(ctx, docID, nodeID, activeID, overID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Node), args.Error(1)
}

func (m *MockService) Editor(ctx context.Context) EditorState {
	args := m.Called(ctx)
	return args.Get(0).(EditorState)
}

func (m *MockService) UpdateEditor(ctx context.Context, patch EditorPatch) (EditorState, error) {
	args := m.Called(ctx, patch)
	return args.Get(0).(EditorState), args.Error(1)
}

func (m *MockService) SetLoading(ctx context.Context, loading bool) error {
	args := m.Called(ctx, loading)
	return args.Error(0)
}

func (m *MockService) SetError(ctx context.Context, message string) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockService) Stats(ctx context.Context) Stats {
	args := m.Called(ctx)
	return args.Get(0).(Stats)
}

func (m *MockService) State() State {
	args := m.Called()
	return args.Get(0).(State)
}

func (m *MockService) Subscribe(l Listener) func() {
	args := m.Called(l)
	return args.Get(0).(func())
}

func setupRouter(handler *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.ErrorHandler(logger.Nop()))
	handler.RegisterRoutes(router)
	return router
}

func jsonRequest(method, target string, payload any) *http.Request {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(method, target, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestCreateDocument_Success(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	doc := &Document{ID: "doc-1", Title: "2024-05-01"}
	mockService.On("CreateDocument", mock.Anything, CreateDocumentData{
		Date:       "2024-05-01",
		YoutubeURL: "https://youtube.com/watch?v=abc",
	}).Return(doc, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/documents", CreateDocumentRequest{
		Date:       "2024-05-01",
		YoutubeURL: "https://youtube.com/watch?v=abc",
	}))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"doc-1"`)
	mockService.AssertExpectations(t)
}

func TestCreateDocument_InvalidInput(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/documents", struct{}{}))

	// 422 for validation errors (missing date)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "validation", body["kind"])
	assert.Contains(t, body["fields"], "date")
	mockService.AssertNotCalled(t, "CreateDocument", mock.Anything, mock.Anything)
}

func TestCreateDocument_InvalidYoutubeURL(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/documents", CreateDocumentRequest{
		Date:       "2024-05-01",
		YoutubeURL: "not a url",
	}))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "youtube_url")
}

func TestListDocuments_WithPagination(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	result := &PaginatedDocuments{
		Data: []DocumentSummary{{ID: "doc-1", Title: "Doc 1"}},
		Meta: DocumentsMeta{CurrentPage: 2, TotalPage: 3, Total: 25, PerPage: 15},
	}
	mockService.On("ListDocuments", mock.Anything, 2, 15).Return(result, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/documents?page=2&per_page=15", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var got PaginatedDocuments
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, result.Meta, got.Meta)
	assert.Equal(t, "doc-1", got.Data[0].ID)
	mockService.AssertExpectations(t)
}

func TestShowDocument_NotFound(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	mockService.On("GetDocument", mock.Anything, "missing").
		Return(nil, apperrors.NotFound("Document missing not found", nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/documents/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Document missing not found")
}

func TestUpdateDocument_Success(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	title := "Renamed"
	mockService.On("UpdateDocument", mock.Anything, "doc-1", mock.MatchedBy(func(p DocumentPatch) bool {
		return p.Title != nil && *p.Title == title && p.YoutubeURL == nil
	})).Return(&Document{ID: "doc-1", Title: title}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("PATCH", "/documents/doc-1", map[string]string{"title": title}))

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestDeleteDocument_Success(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	mockService.On("DeleteDocument", mock.Anything, "doc-1").Return(nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("DELETE", "/documents/doc-1", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	mockService.AssertExpectations(t)
}

func TestClearCurrent(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	mockService.On("SetCurrentDocument", mock.Anything, (*Document)(nil)).Return(nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("DELETE", "/current", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	mockService.AssertExpectations(t)
}

func TestAddNode_DefaultsStarterTemplate(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	mockService.On("AddNode", mock.Anything, "doc-1", AddNodeData{
		Title:       "SPORTS",
		AfterNodeID: "node-1",
	}).Return(&Node{ID: "node-2", Title: "SPORTS", Order: 1}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/documents/doc-1/nodes", map[string]string{
		"title":         "SPORTS",
		"after_node_id": "node-1",
	}))

	assert.Equal(t, http.StatusCreated, w.Code)
	mockService.AssertExpectations(t)
}

func TestReorderNodes_RejectedSequence(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	mockService.On("ReorderNodes", mock.Anything, "doc-1", []string{"a", "a"}).
		Return(nil, apperrors.InvalidArgument(`reorder lists "a" twice`, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("PUT", "/documents/doc-1/nodes/order", ReorderRequest{IDs: []string{"a", "a"}}))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"kind":"invalid_argument"`)
}

func TestMoveNode_RequiresOverID(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/documents/doc-1/nodes/node-1/move", struct{}{}))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	mockService.AssertNotCalled(t, "MoveNode", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAddSubNode_UnknownType(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/documents/doc-1/nodes/node-1/subnodes", map[string]string{"type": "video"}))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "must be one of [headline image description table]")
}

func TestAddSubNode_Success(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	headline := "Breaking"
	mockService.On("AddSubNode", mock.Anything, "doc-1", "node-1", AddSubNodeData{
		Type:           TypeHeadline,
		Content:        ContentRecord{Headline: &headline},
		AfterSubNodeID: "sub-1",
	}).Return(&SubNode{ID: "sub-9", Type: TypeHeadline, Content: Headline{Text: headline}, Order: 1}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/documents/doc-1/nodes/node-1/subnodes", map[string]any{
		"type":             "headline",
		"content":          map[string]string{"headline": headline},
		"after_subnode_id": "sub-1",
	}))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id":"sub-9","type":"headline","content":{"headline":"Breaking"},"order":1}`, w.Body.String())
	mockService.AssertExpectations(t)
}

func TestInsertTable_WithoutBody(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	table := DefaultTable()
	mockService.On("InsertTable", mock.Anything, "doc-1", "node-1", "").
		Return(&SubNode{ID: "sub-9", Type: TypeTable, Content: table, Order: 3}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/documents/doc-1/nodes/node-1/tables", nil))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "Row 1 Col 1")
	mockService.AssertExpectations(t)
}

func TestUpdateSubNode_ShapeMismatch(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	mockService.On("UpdateSubNode", mock.Anything, "doc-1", "node-1", "sub-1", mock.Anything).
		Return(nil, apperrors.ShapeMismatch("table row 0 has 1 cells, expected 2", nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("PATCH", "/documents/doc-1/nodes/node-1/subnodes/sub-1", map[string]any{
		"content": map[string]any{"table": map[string]any{
			"headers": []string{"A", "B"},
			"rows":    [][]string{{"only"}},
		}},
	}))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"kind":"shape_mismatch"`)
}

func TestEditTable_Success(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	edited := DefaultTable().SetCell(0, 1, "42")
	mockService.On("EditTable", mock.Anything, "doc-1", "node-1", "sub-1",
		TableEdit{Op: TableSetCell, Row: 0, Col: 1, Value: "42"}).
		Return(&SubNode{ID: "sub-1", Type: TypeTable, Content: edited}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/documents/doc-1/nodes/node-1/subnodes/sub-1/table", map[string]any{
		"op": "set_cell", "row": 0, "col": 1, "value": "42",
	}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"rows":[["Row 1 Col 1","42"]]`)
	mockService.AssertExpectations(t)
}

func TestEditTable_InvalidOp(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/documents/doc-1/nodes/node-1/subnodes/sub-1/table", map[string]any{
		"op": "merge_cells",
	}))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"op"`)
	mockService.AssertNotCalled(t, "EditTable")
}

func TestUpdateEditor_InvalidViewMode(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("PUT", "/editor", map[string]string{"view_mode": "grid"}))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "must be one of [writeup mindmap]")
}

func TestUpdateEditor_Success(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	mockService.On("UpdateEditor", mock.Anything, mock.MatchedBy(func(p EditorPatch) bool {
		return p.ViewMode != nil && *p.ViewMode == ViewMindmap && p.ToggleOutline
	})).Return(EditorState{ViewMode: ViewMindmap, OutlineCollapsed: true}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("PUT", "/editor", map[string]any{
		"view_mode":      "mindmap",
		"toggle_outline": true,
	}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"view_mode":"mindmap"`)
	assert.Contains(t, w.Body.String(), `"is_outline_collapsed":true`)
	mockService.AssertExpectations(t)
}

func TestShowStats(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	mockService.On("Stats", mock.Anything).Return(Stats{Documents: 2, Nodes: 3, SubNodes: 9})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/stats", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"documents":2,"nodes":3,"subnodes":9}`, w.Body.String())
}

func TestEditorAPI_EndToEnd(t *testing.T) {
	clock := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	store := NewStore(WithClock(func() time.Time { return clock }))
	service := NewService(store, identity.NewSequenceGenerator("id"), logger.Nop())
	router := setupRouter(NewHandler(service))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/documents", CreateDocumentRequest{Date: "2024-05-01"}))
	require.Equal(t, http.StatusCreated, w.Code)

	var doc Document
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "2024-05-01", doc.Title)
	require.Len(t, doc.Nodes, 1)
	assert.Equal(t, StarterNodeTitle, doc.Nodes[0].Title)
	assert.Equal(t, 3, doc.Metadata.TotalSubnodes)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("DELETE", "/documents/"+doc.ID+"/nodes/unknown", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/current", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), doc.ID)
}

func TestEvents_StreamsSnapshots(t *testing.T) {
	store := NewStore()
	service := NewService(store, identity.NewSequenceGenerator("id"), logger.Nop())
	router := setupRouter(NewHandler(service))

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		router.ServeHTTP(w, req)
	}()

	// Wait for the stream to subscribe before dispatching.
	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.listeners) == 1
	}, time.Second, 5*time.Millisecond)

	_, err := service.UpdateEditor(context.Background(), EditorPatch{ToggleOutline: true})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.seq == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, "event:state\n"))
	assert.Contains(t, body, "event:snapshot\n")
	assert.Contains(t, body, `"action":"toggle_outline"`)
	assert.Contains(t, body, `"status":"applied"`)
}
