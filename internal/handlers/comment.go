package handlers

import (
	"fmt"
	"html/template"
	"log"
	"net/http"
	"time"

	"threadline/internal/middleware"
	"threadline/internal/models"
	"threadline/internal/store"
	"threadline/internal/utils"

	"github.com/gin-gonic/gin"
)

const CommentsPageSize = 10

// treeCacheTTL bounds the lifetime of a cached tree; mutations evict the
// affected entries well before it expires.
const treeCacheTTL = 5 * time.Minute

type CommentHandler struct {
	store *store.CommentStore
	cache *utils.Cache
	guard *treeGuard
}

func NewCommentHandler(st *store.CommentStore, cache *utils.Cache) *CommentHandler {
	return &CommentHandler{store: st, cache: cache, guard: newTreeGuard()}
}

// List serves one page of an object's top-level comments, oldest first,
// optionally filtered to one author via user_id.
func (h *CommentHandler) List(c *gin.Context) {
	objType := c.Query("obj_type")
	objID := c.Query("obj_id")
	if objType == "" || objID == "" {
		ErrorResult(c, CodeMissingParameter, "Required obj_type and obj_id parameters.")
		return
	}

	limit := Limit(c, CommentsPageSize)
	page := Page(c)

	// Ask for one extra row to learn whether a next page exists.
	comments, err := h.store.ListTopLevel(objType, objID, c.Query("user_id"), limit+1, page*limit)
	if err != nil {
		handleStoreError(c, err)
		return
	}

	more := false
	if len(comments) > limit {
		more = true
		comments = comments[:limit]
	}

	c.JSON(http.StatusOK, gin.H{
		"comments": comments,
		"page":     page,
		"more":     more,
	})
}

// Get serves a single comment row.
func (h *CommentHandler) Get(c *gin.Context) {
	comment, err := h.store.Get(utils.StringToUint(c.Query("comment_id")))
	if err != nil {
		handleStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

// Ancestors serves the root-first ancestor id chain.
func (h *CommentHandler) Ancestors(c *gin.Context) {
	ids, err := h.store.Ancestors(utils.StringToUint(c.Query("comment_id")))
	if err != nil {
		handleStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ancestors": ids})
}

// TreeNode is one rendered node of a nested comment tree.
type TreeNode struct {
	Comment  models.Comment `json:"comment"`
	HTML     template.HTML  `json:"html"`
	Children []*TreeNode    `json:"children"`
}

// Tree serves the full descendant tree under one comment, with rendered
// bodies. Assembled trees are cached per root comment and invalidated on
// every mutation that touches the subtree.
func (h *CommentHandler) Tree(c *gin.Context) {
	id := utils.StringToUint(c.Query("comment_id"))

	cacheKey := treeCacheKey(id)
	if cached := h.cache.Get(cacheKey); cached != nil {
		c.JSON(http.StatusOK, gin.H{"tree": cached})
		return
	}

	// Take the generation before reading: a mutation that lands while the
	// tree is being assembled must keep this read out of the cache.
	gen := h.guard.begin(id)

	root, err := h.store.Get(id)
	if err != nil {
		handleStoreError(c, err)
		return
	}

	rows, err := h.store.Descendants(id)
	if err != nil {
		handleStoreError(c, err)
		return
	}

	nodes := map[uint]*TreeNode{
		root.ID: {Comment: *root},
	}
	for _, row := range rows {
		nodes[row.ID] = &TreeNode{Comment: row, HTML: utils.RenderMarkdown(row.Text)}
	}
	// rows are id-ordered, so children append deterministically.
	for _, row := range rows {
		if row.ParentID == nil {
			continue
		}
		if parent, ok := nodes[*row.ParentID]; ok {
			parent.Children = append(parent.Children, nodes[row.ID])
		}
	}

	tree := nodes[root.ID].Children
	h.guard.commit(id, gen, func() {
		h.cache.Set(cacheKey, tree, treeCacheTTL)
	})
	c.JSON(http.StatusOK, gin.H{"tree": tree})
}

// Create creates a comment (optionally a reply) on behalf of the viewer.
func (h *CommentHandler) Create(c *gin.Context) {
	viewer := middleware.Viewer(c)
	if viewer == "" {
		ErrorResult(c, CodeMissingParameter, "Required viewer_id parameter.")
		return
	}

	params := store.CreateParams{
		ObjType: c.PostForm("obj_type"),
		ObjID:   c.PostForm("obj_id"),
		UserID:  viewer,
		Text:    c.PostForm("text"),
	}
	if raw := c.PostForm("parent_id"); raw != "" {
		pid := utils.StringToUint(raw)
		params.ParentID = &pid
	}
	if raw := c.PostForm("created_at"); raw != "" {
		t, err := time.Parse("2006-01-02 15:04:05", raw)
		if err != nil {
			ErrorResult(c, CodeInvalidParameter, "Invalid created_at parameter.")
			return
		}
		params.CreatedAt = t.UTC()
	}

	id, err := h.store.Create(params)
	if err != nil {
		handleStoreError(c, err)
		return
	}
	h.invalidateTrees(id)

	comment, err := h.store.Get(id)
	if err != nil {
		handleStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": true, "comment": comment})
}

// Update overwrites a comment body on behalf of the viewer.
func (h *CommentHandler) Update(c *gin.Context) {
	viewer := middleware.Viewer(c)
	if viewer == "" {
		ErrorResult(c, CodeMissingParameter, "Required viewer_id parameter.")
		return
	}
	id := utils.StringToUint(c.PostForm("comment_id"))
	if id == 0 {
		ErrorResult(c, CodeMissingParameter, "Required comment_id parameter.")
		return
	}

	if err := h.store.Update(id, viewer, c.PostForm("text")); err != nil {
		handleStoreError(c, err)
		return
	}
	h.invalidateTrees(id)

	comment, err := h.store.Get(id)
	if err != nil {
		handleStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": true, "comment": comment})
}

// Delete removes a childless comment on behalf of the viewer.
func (h *CommentHandler) Delete(c *gin.Context) {
	viewer := middleware.Viewer(c)
	if viewer == "" {
		ErrorResult(c, CodeMissingParameter, "Required viewer_id parameter.")
		return
	}
	id := utils.StringToUint(c.PostForm("comment_id"))
	if id == 0 {
		ErrorResult(c, CodeMissingParameter, "Required comment_id parameter.")
		return
	}

	// Grab the chain before the edges disappear with the row.
	ancestors, err := h.store.Ancestors(id)
	if err != nil {
		// The ancestors' cached trees survive this failure; log it rather
		// than serve the deleted comment until the TTL drains them.
		log.Printf("read ancestors of comment %d before delete: %v", id, err)
	}

	if err := h.store.Delete(id, viewer); err != nil {
		handleStoreError(c, err)
		return
	}

	h.dropTree(id)
	for _, aid := range ancestors {
		h.dropTree(aid)
	}
	c.JSON(http.StatusOK, gin.H{"result": true})
}

// invalidateTrees drops the cached tree of the comment and of every
// ancestor whose cached tree now contains stale data.
func (h *CommentHandler) invalidateTrees(id uint) {
	h.dropTree(id)
	if ancestors, err := h.store.Ancestors(id); err == nil {
		for _, aid := range ancestors {
			h.dropTree(aid)
		}
	}
}

// dropTree evicts one cached tree and bumps its generation so a concurrent
// assembly cannot re-cache the pre-mutation state.
func (h *CommentHandler) dropTree(id uint) {
	h.guard.invalidate(id)
	h.cache.Delete(treeCacheKey(id))
}

func treeCacheKey(id uint) string {
	return fmt.Sprintf("comment:tree:%d", id)
}
