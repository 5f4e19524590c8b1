package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/contractiq/server/internal/apperr"
	"github.com/contractiq/server/internal/repository"
)

type documentResponse struct {
	ID               string    `json:"id"`
	WorkspaceID      string    `json:"workspace_id"`
	Name             string    `json:"name"`
	OriginalFilename string    `json:"original_filename"`
	FileType         string    `json:"file_type"`
	Status           string    `json:"status"`
	PageCount        *int      `json:"page_count"`
	FileSize         int64     `json:"file_size"`
	ContractType     string    `json:"contract_type,omitempty"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toDocumentResponse(doc *repository.Document) documentResponse {
	return documentResponse{
		ID:               doc.ID.String(),
		WorkspaceID:      doc.WorkspaceID.String(),
		Name:             doc.Name,
		OriginalFilename: doc.OriginalFilename,
		FileType:         doc.FileType,
		Status:           doc.Status,
		PageCount:        doc.PageCount,
		FileSize:         doc.FileSize,
		ContractType:     doc.ContractType,
		ErrorMessage:     doc.ErrorMessage,
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
	}
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.renderError(w, r, apperr.Validation("Upload must be multipart/form-data with a file field", "file"))
		return
	}

	// The workspace comes from the path on the nested route and from the
	// form on the flat /documents upload route.
	raw := chi.URLParam(r, "workspaceID")
	if raw == "" {
		raw = r.FormValue("workspace_id")
	}
	workspaceID, err := uuid.Parse(raw)
	if err != nil {
		s.renderError(w, r, apperr.Validation("A valid workspace_id is required", "workspace_id"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.renderError(w, r, apperr.Validation("A file is required", "file"))
		return
	}
	defer file.Close()

	doc, err := s.documentSvc.Upload(r.Context(), userFromContext(r.Context()), workspaceID, header.Filename, header.Size, file)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusCreated, toDocumentResponse(doc))
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "workspaceID")
	if raw == "" {
		raw = r.URL.Query().Get("workspace_id")
	}
	workspaceID, err := uuid.Parse(raw)
	if err != nil {
		s.renderError(w, r, apperr.Validation("A valid workspace_id is required", "workspace_id"))
		return
	}

	docs, err := s.documentSvc.List(r.Context(), userFromContext(r.Context()), workspaceID)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	out := make([]documentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toDocumentResponse(doc))
	}
	renderJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	documentID, err := pathID(r, "documentID")
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	doc, err := s.documentSvc.Get(r.Context(), userFromContext(r.Context()), documentID)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, toDocumentResponse(doc))
}

func (s *Server) handleDownloadDocument(w http.ResponseWriter, r *http.Request) {
	documentID, err := pathID(r, "documentID")
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	path, doc, err := s.documentSvc.FilePath(r.Context(), userFromContext(r.Context()), documentID)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	contentType := "application/pdf"
	if doc.FileType == repository.FileTypeDOCX {
		contentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `inline; filename="`+doc.OriginalFilename+`"`)
	http.ServeFile(w, r, path)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	documentID, err := pathID(r, "documentID")
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	if err := s.documentSvc.Delete(r.Context(), userFromContext(r.Context()), documentID); err != nil {
		s.renderError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type clauseResponse struct {
	ID              string         `json:"id"`
	DocumentID      string         `json:"document_id"`
	ClauseType      string         `json:"clause_type"`
	ExtractedText   string         `json:"extracted_text"`
	PageNumber      int            `json:"page_number"`
	Section         string         `json:"section"`
	ConfidenceScore float64        `json:"confidence_score"`
	RiskScore       float64        `json:"risk_score"`
	RiskFlags       []string       `json:"risk_flags"`
	RiskReasoning   string         `json:"risk_reasoning"`
	ClauseSubtype   string         `json:"clause_subtype,omitempty"`
	Coordinates     map[string]any `json:"coordinates,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

func toClauseResponse(c *repository.Clause) clauseResponse {
	flags := c.RiskFlags
	if flags == nil {
		flags = []string{}
	}
	return clauseResponse{
		ID:              c.ID.String(),
		DocumentID:      c.DocumentID.String(),
		ClauseType:      c.ClauseType,
		ExtractedText:   c.ExtractedText,
		PageNumber:      c.PageNumber,
		Section:         c.Section,
		ConfidenceScore: c.ConfidenceScore,
		RiskScore:       c.RiskScore,
		RiskFlags:       flags,
		RiskReasoning:   c.RiskReasoning,
		ClauseSubtype:   c.ClauseSubtype,
		Coordinates:     c.Coordinates,
		CreatedAt:       c.CreatedAt,
	}
}

type extractClausesRequest struct {
	ForceReExtract bool `json:"force_re_extract"`
}

type extractClausesResponse struct {
	DocumentID       string           `json:"document_id"`
	ClausesExtracted int              `json:"clauses_extracted"`
	Clauses          []clauseResponse `json:"clauses"`
	Message          string           `json:"message"`
}

func (s *Server) handleExtractClauses(w http.ResponseWriter, r *http.Request) {
	documentID, err := pathID(r, "documentID")
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	var req extractClausesRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			s.renderError(w, r, err)
			return
		}
	}

	result, err := s.documentSvc.ExtractClauses(r.Context(), userFromContext(r.Context()), documentID, req.ForceReExtract)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	out := make([]clauseResponse, 0, len(result.Clauses))
	for _, c := range result.Clauses {
		out = append(out, toClauseResponse(c))
	}
	renderJSON(w, http.StatusOK, extractClausesResponse{
		DocumentID:       result.DocumentID.String(),
		ClausesExtracted: result.ClausesExtracted,
		Clauses:          out,
		Message:          result.Message,
	})
}

type clauseListResponse struct {
	Total   int              `json:"total"`
	Clauses []clauseResponse `json:"clauses"`
}

func (s *Server) handleListClauses(w http.ResponseWriter, r *http.Request) {
	documentID, err := pathID(r, "documentID")
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	filter, err := clauseFilterFromQuery(r)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	clauses, err := s.documentSvc.ListClauses(r.Context(), userFromContext(r.Context()), documentID, filter)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	out := make([]clauseResponse, 0, len(clauses))
	for _, c := range clauses {
		out = append(out, toClauseResponse(c))
	}
	renderJSON(w, http.StatusOK, clauseListResponse{Total: len(out), Clauses: out})
}

func clauseFilterFromQuery(r *http.Request) (repository.ClauseFilter, error) {
	q := r.URL.Query()
	filter := repository.ClauseFilter{ClauseType: q.Get("clause_type")}

	if v := q.Get("min_risk_score"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return filter, apperr.Validation("min_risk_score must be a number", "min_risk_score")
		}
		filter.MinRiskScore = &f
	}
	if v := q.Get("max_risk_score"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return filter, apperr.Validation("max_risk_score must be a number", "max_risk_score")
		}
		filter.MaxRiskScore = &f
	}
	if v := q.Get("has_risk_flags"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, apperr.Validation("has_risk_flags must be a boolean", "has_risk_flags")
		}
		filter.HasRiskFlags = &b
	}
	if v := q.Get("page_number"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, apperr.Validation("page_number must be an integer", "page_number")
		}
		filter.PageNumber = &n
	}
	return filter, nil
}

func (s *Server) handleGetClause(w http.ResponseWriter, r *http.Request) {
	clauseID, err := pathID(r, "clauseID")
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	clause, err := s.documentSvc.GetClause(r.Context(), userFromContext(r.Context()), clauseID)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, toClauseResponse(clause))
}

func (s *Server) handleDeleteClause(w http.ResponseWriter, r *http.Request) {
	clauseID, err := pathID(r, "clauseID")
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	if err := s.documentSvc.DeleteClause(r.Context(), userFromContext(r.Context()), clauseID); err != nil {
		s.renderError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
