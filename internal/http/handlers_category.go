package http

import (
	"net/http"
)

// categoryName reads "categoryName", falling back to "name".
func categoryName(p *RequestBodyParser) string {
	return p.First("categoryName", "name")
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.categories.List(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(cats).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.writeError(w, r, err)
		return
	}
	cat, err := s.categories.Add(r.Context(), userIDFrom(r.Context()), categoryName(p))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(cat).Write(w)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := ParseRowID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.writeError(w, r, err)
		return
	}
	cat, err := s.categories.Update(r.Context(), userIDFrom(r.Context()), id, categoryName(p))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(cat).Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := ParseRowID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.categories.Delete(r.Context(), userIDFrom(r.Context()), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	MessageResponse(http.StatusOK, "Category deleted successfully").Write(w)
}
