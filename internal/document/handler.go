package document

import (
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/mantavyam/pitch-note-pilot/internal/errors"
	"github.com/mantavyam/pitch-note-pilot/internal/utils"
)

type Handler struct {
	service Service
}

var registerValidators sync.Once

func NewHandler(service Service) *Handler {
	registerValidators.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(func(f reflect.StructField) string {
				name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
				if name == "" || name == "-" {
					return f.Name
				}
				return name
			})
			_ = v.RegisterValidation("subnode_type", func(fl validator.FieldLevel) bool {
				return SubNodeType(fl.Field().String()).Valid()
			})
			_ = v.RegisterValidation("view_mode", func(fl validator.FieldLevel) bool {
				return ViewMode(fl.Field().String()).Valid()
			})
		}
	})
	return &Handler{service: service}
}

// RegisterRoutes mounts the editor API on r.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/documents", h.ListDocuments)
	r.POST("/documents", h.Create)
	r.GET("/documents/:id", h.ShowDocument)
	r.PATCH("/documents/:id", h.UpdateDocument)
	r.DELETE("/documents/:id", h.DeleteDocument)
	r.PUT("/documents/:id/current", h.OpenDocument)

	r.GET("/current", h.ShowCurrent)
	r.PUT("/current", h.SetCurrent)
	r.DELETE("/current", h.ClearCurrent)

	r.POST("/documents/:id/nodes", h.AddNode)
	r.PUT("/documents/:id/nodes/order", h.ReorderNodes)
	r.PATCH("/documents/:id/nodes/:nodeId", h.UpdateNode)
	r.DELETE("/documents/:id/nodes/:nodeId", h.DeleteNode)
	r.POST("/documents/:id/nodes/:nodeId/collapse", h.ToggleNodeCollapsed)
	r.POST("/documents/:id/nodes/:nodeId/move", h.MoveNode)
	r.POST("/documents/:id/nodes/:nodeId/news-item", h.AddNewsItem)
	r.POST("/documents/:id/nodes/:nodeId/tables", h.InsertTable)

	r.POST("/documents/:id/nodes/:nodeId/subnodes", h.AddSubNode)
	r.PUT("/documents/:id/nodes/:nodeId/subnodes/order", h.ReorderSubNodes)
	r.PATCH("/documents/:id/nodes/:nodeId/subnodes/:subnodeId", h.UpdateSubNode)
	r.DELETE("/documents/:id/nodes/:nodeId/subnodes/:subnodeId", h.DeleteSubNode)
	r.POST("/documents/:id/nodes/:nodeId/subnodes/:subnodeId/move", h.MoveSubNode)
	r.POST("/documents/:id/nodes/:nodeId/subnodes/:subnodeId/table", h.EditTable)

	r.GET("/editor", h.ShowEditor)
	r.PUT("/editor", h.UpdateEditor)
	r.GET("/stats", h.ShowStats)
	r.GET("/events", h.Events)
}

type CreateDocumentRequest struct {
	Date       string `json:"date" binding:"required,max=255"`
	YoutubeURL string `json:"youtube_url" binding:"omitempty,url"`
}

func (h *Handler) Create(c *gin.Context) {
	var form CreateDocumentRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	doc, err := h.service.CreateDocument(c.Request.Context(), CreateDocumentData{
		Date:       form.Date,
		YoutubeURL: form.YoutubeURL,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, doc)
}

func (h *Handler) ListDocuments(c *gin.Context) {
	page, pageSize := utils.GetPaginationParams(c)
	result, err := h.service.ListDocuments(c.Request.Context(), page, pageSize)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) ShowDocument(c *gin.Context) {
	doc, err := h.service.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

type UpdateDocumentRequest struct {
	Title      *string `json:"title" binding:"omitempty,min=1,max=255"`
	YoutubeURL *string `json:"youtube_url"`
}

func (h *Handler) UpdateDocument(c *gin.Context) {
	var input UpdateDocumentRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	doc, err := h.service.UpdateDocument(c.Request.Context(), c.Param("id"), DocumentPatch{
		Title:      input.Title,
		YoutubeURL: input.YoutubeURL,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

func (h *Handler) DeleteDocument(c *gin.Context) {
	if err := h.service.DeleteDocument(c.Request.Context(), c.Param("id")); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) OpenDocument(c *gin.Context) {
	doc, err := h.service.OpenDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

func (h *Handler) ShowCurrent(c *gin.Context) {
	doc, err := h.service.CurrentDocument(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"document": doc, "preview": h.service.State().IsPreview()})
}

// SetCurrent makes the posted document current. Registered ids are opened,
// anything else is held as an unsaved preview.
func (h *Handler) SetCurrent(c *gin.Context) {
	var doc Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.Error(errors.BadRequest("Invalid document", err))
		return
	}

	if err := h.service.SetCurrentDocument(c.Request.Context(), &doc); err != nil {
		c.Error(err)
		return
	}

	h.ShowCurrent(c)
}

func (h *Handler) ClearCurrent(c *gin.Context) {
	if err := h.service.SetCurrentDocument(c.Request.Context(), nil); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

type AddNodeRequest struct {
	Title               string `json:"title" binding:"required,max=255"`
	AfterNodeID         string `json:"after_node_id"`
	WithStarterTemplate *bool  `json:"with_starter_template"`
}

func (h *Handler) AddNode(c *gin.Context) {
	var input AddNodeRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	node, err := h.service.AddNode(c.Request.Context(), c.Param("id"), AddNodeData{
		Title:               input.Title,
		AfterNodeID:         input.AfterNodeID,
		WithStarterTemplate: input.WithStarterTemplate,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, node)
}

type UpdateNodeRequest struct {
	Title     *string `json:"title" binding:"omitempty,max=255"`
	Collapsed *bool   `json:"collapsed"`
}

func (h *Handler) UpdateNode(c *gin.Context) {
	var input UpdateNodeRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	node, err := h.service.UpdateNode(c.Request.Context(), c.Param("id"), c.Param("nodeId"), NodePatch{
		Title:     input.Title,
		Collapsed: input.Collapsed,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, node)
}

func (h *Handler) ToggleNodeCollapsed(c *gin.Context) {
	node, err := h.service.ToggleNodeCollapsed(c.Request.Context(), c.Param("id"), c.Param("nodeId"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, node)
}

func (h *Handler) DeleteNode(c *gin.Context) {
	if err := h.service.DeleteNode(c.Request.Context(), c.Param("id"), c.Param("nodeId")); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

type ReorderRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

func (h *Handler) ReorderNodes(c *gin.Context) {
	var input ReorderRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	doc, err := h.service.ReorderNodes(c.Request.Context(), c.Param("id"), input.IDs)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

type MoveRequest struct {
	OverID string `json:"over_id" binding:"required"`
}

func (h *Handler) MoveNode(c *gin.Context) {
	var input MoveRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	doc, err := h.service.MoveNode(c.Request.Context(), c.Param("id"), c.Param("nodeId"), input.OverID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

func (h *Handler) AddNewsItem(c *gin.Context) {
	node, err := h.service.AddNewsItem(c.Request.Context(), c.Param("id"), c.Param("nodeId"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, node)
}

type InsertTableRequest struct {
	AfterSubNodeID string `json:"after_subnode_id"`
}

func (h *Handler) InsertTable(c *gin.Context) {
	var input InsertTableRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			c.Error(errors.NewValidationError(err))
			return
		}
	}

	sub, err := h.service.InsertTable(c.Request.Context(), c.Param("id"), c.Param("nodeId"), input.AfterSubNodeID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, sub)
}

type AddSubNodeRequest struct {
	Type           string        `json:"type" binding:"required,subnode_type"`
	Content        ContentRecord `json:"content"`
	AfterSubNodeID string        `json:"after_subnode_id"`
}

func (h *Handler) AddSubNode(c *gin.Context) {
	var input AddSubNodeRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	sub, err := h.service.AddSubNode(c.Request.Context(), c.Param("id"), c.Param("nodeId"), AddSubNodeData{
		Type:           SubNodeType(input.Type),
		Content:        input.Content,
		AfterSubNodeID: input.AfterSubNodeID,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, sub)
}

type UpdateSubNodeRequest struct {
	Type    *string        `json:"type" binding:"omitempty,subnode_type"`
	Content *ContentRecord `json:"content"`
}

func (h *Handler) UpdateSubNode(c *gin.Context) {
	var input UpdateSubNodeRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	data := UpdateSubNodeData{Content: input.Content}
	if input.Type != nil {
		typ := SubNodeType(*input.Type)
		data.Type = &typ
	}

	sub, err := h.service.UpdateSubNode(c.Request.Context(), c.Param("id"), c.Param("nodeId"), c.Param("subnodeId"), data)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, sub)
}

type EditTableRequest struct {
	Op    string `json:"op" binding:"required,oneof=set_header set_cell add_column remove_column add_row remove_row move_column move_row"`
	Row   int    `json:"row" binding:"min=0"`
	Col   int    `json:"col" binding:"min=0"`
	From  int    `json:"from" binding:"min=0"`
	To    int    `json:"to" binding:"min=0"`
	Value string `json:"value"`
}

func (h *Handler) EditTable(c *gin.Context) {
	var input EditTableRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	edit := TableEdit{
		Op:    TableOp(input.Op),
		Row:   input.Row,
		Col:   input.Col,
		From:  input.From,
		To:    input.To,
		Value: input.Value,
	}
	sub, err := h.service.EditTable(c.Request.Context(), c.Param("id"), c.Param("nodeId"), c.Param("subnodeId"), edit)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, sub)
}

func (h *Handler) DeleteSubNode(c *gin.Context) {
	err := h.service.DeleteSubNode(c.Request.Context(), c.Param("id"), c.Param("nodeId"), c.Param("subnodeId"))
	if err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) ReorderSubNodes(c *gin.Context) {
	var input ReorderRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	node, err := h.service.ReorderSubNodes(c.Request.Context(), c.Param("id"), c.Param("nodeId"), input.IDs)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, node)
}

func (h *Handler) MoveSubNode(c *gin.Context) {
	var input MoveRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	node, err := h.service.MoveSubNode(
		c.Request.Context(),
		c.Param("id"),
		c.Param("nodeId"),
		c.Param("subnodeId"),
		input.OverID,
	)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, node)
}

func (h *Handler) ShowEditor(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Editor(c.Request.Context()))
}

type UpdateEditorRequest struct {
	ViewMode          *string      `json:"view_mode" binding:"omitempty,view_mode"`
	SelectedNodeID    *string      `json:"selected_node_id"`
	SelectedSubnodeID *string      `json:"selected_subnode_id"`
	ToggleOutline     bool         `json:"toggle_outline"`
	HasUnsavedChanges *bool        `json:"has_unsaved_changes"`
	DraggedItem       *DraggedItem `json:"dragged_item"`
	ClearDraggedItem  bool         `json:"clear_dragged_item"`
	Reset             bool         `json:"reset"`
}

func (h *Handler) UpdateEditor(c *gin.Context) {
	var input UpdateEditorRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	patch := EditorPatch{
		SelectedNodeID:    input.SelectedNodeID,
		SelectedSubnodeID: input.SelectedSubnodeID,
		ToggleOutline:     input.ToggleOutline,
		HasUnsavedChanges: input.HasUnsavedChanges,
		DraggedItem:       input.DraggedItem,
		ClearDraggedItem:  input.ClearDraggedItem,
		Reset:             input.Reset,
	}
	if input.ViewMode != nil {
		mode := ViewMode(*input.ViewMode)
		patch.ViewMode = &mode
	}

	editor, err := h.service.UpdateEditor(c.Request.Context(), patch)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, editor)
}

func (h *Handler) ShowStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Stats(c.Request.Context()))
}

type snapshotMessage struct {
	Seq        uint64 `json:"seq"`
	Action     string `json:"action"`
	Status     Status `json:"status"`
	DocumentID string `json:"document_id,omitempty"`
	Error      string `json:"error,omitempty"`
	State      State  `json:"state"`
}

// Events streams a "state" event with the current state followed by one
// "snapshot" event per dispatched action until the client goes away.
// Snapshots are dropped for clients that fall behind.
func (h *Handler) Events(c *gin.Context) {
	snapshots := make(chan Snapshot, 32)
	unsubscribe := h.service.Subscribe(func(s Snapshot) {
		select {
		case snapshots <- s:
		default:
		}
	})
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.SSEvent("state", h.service.State())
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-snapshots:
			msg := snapshotMessage{
				Seq:        s.Seq,
				Action:     s.Action,
				Status:     s.Status,
				DocumentID: s.DocumentID,
				State:      s.State,
			}
			if s.Err != nil {
				msg.Error = s.Err.Error()
			}
			c.SSEvent("snapshot", msg)
			c.Writer.Flush()
		}
	}
}
