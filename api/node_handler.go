package api

import (
	"net/http"
	"strings"

	"github.com/GoCodeAlone/wfgen/catalog"
)

// NodeHandler serves read-only catalog queries.
type NodeHandler struct {
	generator GeneratorFunc
}

// NewNodeHandler creates a new NodeHandler.
func NewNodeHandler(generator GeneratorFunc) *NodeHandler {
	return &NodeHandler{generator: generator}
}

func (h *NodeHandler) registry() *catalog.Registry { return h.generator().Registry() }

// List handles GET /api/nodes[?category=].
func (h *NodeHandler) List(w http.ResponseWriter, r *http.Request) {
	var defs []catalog.NodeDefinition
	if c := strings.TrimSpace(r.URL.Query().Get("category")); c != "" {
		defs = h.registry().ByCategory(c)
	} else {
		defs = h.registry().All()
	}
	if defs == nil {
		defs = []catalog.NodeDefinition{}
	}
	WriteList(w, defs, len(defs))
}

// Search handles GET /api/nodes/search?q=.
func (h *NodeHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		WriteError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	defs := h.registry().SearchByUseCase(q)
	if defs == nil {
		defs = []catalog.NodeDefinition{}
	}
	WriteList(w, defs, len(defs))
}

// Lookup handles GET /api/nodes/lookup?type=.
func (h *NodeHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	typeID := strings.TrimSpace(r.URL.Query().Get("type"))
	if typeID == "" {
		WriteError(w, http.StatusBadRequest, "query parameter type is required")
		return
	}
	def, ok := h.registry().Lookup(typeID)
	if !ok {
		WriteError(w, http.StatusNotFound, catalog.ErrNotFound.Error()+": "+typeID)
		return
	}
	WriteJSON(w, http.StatusOK, def)
}

// Categories handles GET /api/nodes/categories.
func (h *NodeHandler) Categories(w http.ResponseWriter, r *http.Request) {
	cats := h.registry().Categories()
	WriteList(w, cats, len(cats))
}
