package ticket

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// jsonError writes a JSON error body with CORS headers set
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleLedger returns the full ledger state
func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Snapshot())
}

// handleUploadDocument accepts a receipt upload, runs extraction and
// parsing, and returns the fresh ledger state
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	// 50MB covers high-resolution phone photos
	maxFormSize := int64(50 << 20)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		if err.Error() == "http: request body too large" {
			errorMsg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		errorMsg := "No file provided"
		if err.Error() == "http: no such file" {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return
	}
	defer f.Close()

	if header.Size > maxFormSize {
		jsonError(w, "File is too large. Maximum size is 50MB. Please compress or resize your image.", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		ext := strings.ToLower(filepath.Ext(header.Filename))
		switch ext {
		case ".jpg", ".jpeg":
			contentType = "image/jpeg"
		case ".png":
			contentType = "image/png"
		case ".pdf":
			contentType = "application/pdf"
		case ".heic":
			contentType = "image/heic"
		case ".heif":
			contentType = "image/heif"
		default:
			contentType = "application/octet-stream"
		}
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))

	snapshot, err := s.service.ProcessDocument(header.Filename, data, contentType)
	if err != nil {
		slog.Error("Error processing document", "filename", header.Filename, "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, snapshot)
}

type keyRequest struct {
	Key Key `json:"key"`
}

func decodeKeyRequest(w http.ResponseWriter, r *http.Request) (Key, bool) {
	var req keyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return Key{}, false
	}
	return req.Key, true
}

// handleToggle cycles the active category on an item
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	key, ok := decodeKeyRequest(w, r)
	if !ok {
		return
	}
	if err := s.service.Toggle(key); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.service.Snapshot())
}

// handleSplit replaces an item's percentage split
func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key     Key               `json:"key"`
		Entries []AllocationEntry `json:"entries"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.service.SetSplit(req.Key, req.Entries); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.service.Snapshot())
}

// handleClearAllocation removes an item's allocation
func (s *Server) handleClearAllocation(w http.ResponseWriter, r *http.Request) {
	key, ok := decodeKeyRequest(w, r)
	if !ok {
		return
	}
	s.service.ClearAllocation(key)
	writeJSON(w, http.StatusOK, s.service.Snapshot())
}

// handleHide hides an item
func (s *Server) handleHide(w http.ResponseWriter, r *http.Request) {
	key, ok := decodeKeyRequest(w, r)
	if !ok {
		return
	}
	if err := s.service.Hide(key); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.service.Snapshot())
}

// handleUnhide restores a hidden item
func (s *Server) handleUnhide(w http.ResponseWriter, r *http.Request) {
	key, ok := decodeKeyRequest(w, r)
	if !ok {
		return
	}
	if err := s.service.Unhide(key); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.service.Snapshot())
}

// handleEditItem updates an item's description and amount
func (s *Server) handleEditItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key         Key     `json:"key"`
		Description string  `json:"description"`
		Amount      float64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if _, err := s.service.EditItem(req.Key, req.Description, req.Amount); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.service.Snapshot())
}

// handleAddManualItem appends a correction line
func (s *Server) handleAddManualItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string  `json:"description"`
		Amount      float64 `json:"amount"`
		CategoryID  string  `json:"category_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if _, err := s.service.AddManualItem(req.Description, req.Amount, req.CategoryID); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, s.service.Snapshot())
}

// handleRemoveManualItem deletes a manual correction line
func (s *Server) handleRemoveManualItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Manual item ID required", http.StatusBadRequest)
		return
	}
	if err := s.service.RemoveManualItem(id); err != nil {
		corsError(w, "Manual item not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.service.Snapshot())
}

// handleAddCategory creates a category
func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string `json:"name"`
		Color   string `json:"color"`
		NoSplit bool   `json:"no_split"`
		Masked  bool   `json:"masked"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if _, err := s.service.AddCategory(req.Name, req.Color, req.NoSplit, req.Masked); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, s.service.Snapshot())
}

// handleUpdateCategory renames or restyles a category
func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Category ID required", http.StatusBadRequest)
		return
	}
	var req struct {
		Name    string `json:"name"`
		Color   string `json:"color"`
		NoSplit bool   `json:"no_split"`
		Masked  bool   `json:"masked"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if _, err := s.service.UpdateCategory(id, req.Name, req.Color, req.NoSplit, req.Masked); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.service.Snapshot())
}

// handleDeleteCategory removes a category
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Category ID required", http.StatusBadRequest)
		return
	}
	if err := s.service.DeleteCategory(id); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.service.Snapshot())
}

// handleSetActiveCategory changes which category Toggle assigns
func (s *Server) handleSetActiveCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.service.SetActiveCategory(req.ID); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.service.Snapshot())
}

// handleSetManualTotal sets the user-entered expected total
func (s *Server) handleSetManualTotal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Total float64 `json:"total"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.service.SetManualTotal(req.Total); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.service.Snapshot())
}

// handleSortBy switches the item sort mode
func (s *Server) handleSortBy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode SortMode `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.service.SortBy(req.Mode); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.service.Snapshot())
}

// handleExport builds the per-category share cards
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	confirm := r.URL.Query().Get("confirm") == "true"
	cards, err := s.service.Export(confirm)
	if err != nil {
		jsonError(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}
