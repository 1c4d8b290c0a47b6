package expense

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/zombor/expense-scanner/internal/extract"
)

const (
	maxUploadSize   = 50 << 20 // high-resolution phone photos
	maxJSONBodySize = 5 << 20
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// getValidator returns the shared validator, reporting fields by their JSON names
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// decodeJSON decodes and validates a request body
func decodeJSON[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	var v T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, fmt.Errorf("%w: decoding body: %w", ErrInvalidInput, err)
	}
	if dec.More() {
		return v, fmt.Errorf("%w: trailing data after JSON body", ErrInvalidInput)
	}
	if err := getValidator().Struct(v); err != nil {
		return v, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return v, nil
}

// writeJSON writes v with the given status
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a JSON error body
func writeError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}

// respondError maps service errors onto status codes
func respondError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, "Not found", http.StatusNotFound)
	case errors.Is(err, ErrInvalidInput):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrConflict):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrNoScanner):
		writeError(w, "Receipt scanning is not configured", http.StatusServiceUnavailable)
	default:
		slog.Error("Error "+action, "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// expenseResponse pairs a recorded expense with the extraction behind it
type expenseResponse struct {
	Expense *Expense            `json:"expense"`
	Result  extract.ParseResult `json:"result"`
}

type parseRequest struct {
	Lines      []extract.OCRLine `json:"lines" validate:"required"`
	Categories []string          `json:"categories" validate:"omitempty,dive,required,max=60"`
}

// handleParse previews an extraction without recording it
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[parseRequest](w, r)
	if err != nil {
		respondError(w, err, "decoding parse request")
		return
	}

	res, err := s.service.Parse(req.Lines, req.Categories)
	if err != nil {
		respondError(w, err, "parsing receipt")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type createRequest struct {
	Lines       []extract.OCRLine `json:"lines" validate:"required,min=1"`
	Description string            `json:"description" validate:"max=500"`
}

// handleCreateExpense records an expense from recognized lines
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[createRequest](w, r)
	if err != nil {
		respondError(w, err, "decoding expense")
		return
	}

	expense, res, err := s.service.CreateFromLines(req.Lines, req.Description)
	if err != nil {
		respondError(w, err, "creating expense")
		return
	}
	writeJSON(w, http.StatusCreated, expenseResponse{Expense: expense, Result: res})
}

// contentTypeFor falls back to the file extension when the part has no type
func contentTypeFor(header string, filename string) string {
	contentType := strings.ToLower(strings.TrimSpace(header))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}
	return "application/octet-stream"
}

// handleScanExpense handles a receipt upload
func (s *Server) handleScanExpense(w http.ResponseWriter, r *http.Request) {
	if !s.service.CanScan() {
		respondError(w, ErrNoScanner, "scanning receipt")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, "File is too large. Maximum size is 50MB. Please compress or resize your image.", http.StatusRequestEntityTooLarge)
			return
		}
		writeError(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		writeError(w, "No file was selected. Please choose a file to upload.", http.StatusBadRequest)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	contentType := contentTypeFor(header.Header.Get("Content-Type"), header.Filename)

	expense, res, err := s.service.ScanReceipt(header.Filename, data, contentType)
	if err != nil {
		slog.Error("Error scanning receipt", "filename", header.Filename, "error", err)
		if errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrNoScanner) {
			respondError(w, err, "scanning receipt")
			return
		}
		// OCR failures are reported to the user; the upload itself was fine
		writeError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusCreated, expenseResponse{Expense: expense, Result: res})
}

// handleListExpenses returns all expenses, newest first
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.service.ListExpenses()
	if err != nil {
		respondError(w, err, "listing expenses")
		return
	}
	writeJSON(w, http.StatusOK, expenses)
}

// handleGetExpense returns a single expense
func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	expense, err := s.service.GetExpense(r.PathValue("id"))
	if err != nil {
		respondError(w, err, "getting expense")
		return
	}
	writeJSON(w, http.StatusOK, expense)
}

// handleUpdateExpense applies a manual correction
func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	patch, err := decodeJSON[Patch](w, r)
	if err != nil {
		respondError(w, err, "decoding patch")
		return
	}

	expense, err := s.service.UpdateExpense(r.PathValue("id"), patch)
	if err != nil {
		respondError(w, err, "updating expense")
		return
	}
	writeJSON(w, http.StatusOK, expense)
}

// handleDeleteExpense deletes an expense
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteExpense(r.PathValue("id")); err != nil {
		respondError(w, err, "deleting expense")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetExpenseFile returns the receipt file of an expense
func (s *Server) handleGetExpenseFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetExpenseFile(r.PathValue("id"))
	if err != nil {
		respondError(w, err, "getting expense file")
		return
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleListCategories returns the category vocabulary
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.service.Categories()
	if err != nil {
		respondError(w, err, "listing categories")
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

type categoryRequest struct {
	Name string `json:"name" validate:"required,max=60"`
}

// handleAddCategory adds a custom category
func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[categoryRequest](w, r)
	if err != nil {
		respondError(w, err, "decoding category")
		return
	}

	category, err := s.service.AddCategory(req.Name)
	if err != nil {
		respondError(w, err, "adding category")
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

// handleSummary returns the dashboard summary for ?month=YYYY-MM, default this month
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	month := s.service.timeSource.Now().In(s.service.location)
	if v := r.URL.Query().Get("month"); v != "" {
		parsed, err := time.ParseInLocation("2006-01", v, s.service.location)
		if err != nil {
			writeError(w, "month must be formatted as YYYY-MM", http.StatusBadRequest)
			return
		}
		month = parsed
	}

	summary, err := s.service.Summary(month)
	if err != nil {
		respondError(w, err, "summarizing expenses")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleTrend returns monthly totals for ?months=N (default 6) ending with
// ?month=YYYY-MM (default this month)
func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	end := s.service.timeSource.Now().In(s.service.location)
	if v := query.Get("month"); v != "" {
		parsed, err := time.ParseInLocation("2006-01", v, s.service.location)
		if err != nil {
			writeError(w, "month must be formatted as YYYY-MM", http.StatusBadRequest)
			return
		}
		end = parsed
	}

	months := DefaultTrendMonths
	if v := query.Get("months"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > MaxTrendMonths {
			writeError(w, fmt.Sprintf("months must be between 1 and %d", MaxTrendMonths), http.StatusBadRequest)
			return
		}
		months = n
	}

	trend, err := s.service.Trend(end, months)
	if err != nil {
		respondError(w, err, "computing trend")
		return
	}
	writeJSON(w, http.StatusOK, trend)
}

type budgetRequest struct {
	Budget *int64 `json:"budget" validate:"required,min=0"`
}

type budgetResponse struct {
	Budget int64 `json:"budget"`
}

// handleGetBudget returns the monthly budget in minor units
func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	budget, err := s.service.Budget()
	if err != nil {
		respondError(w, err, "getting budget")
		return
	}
	writeJSON(w, http.StatusOK, budgetResponse{Budget: budget})
}

// handleSetBudget replaces the monthly budget
func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[budgetRequest](w, r)
	if err != nil {
		respondError(w, err, "decoding budget")
		return
	}

	if err := s.service.SetBudget(*req.Budget); err != nil {
		respondError(w, err, "setting budget")
		return
	}
	writeJSON(w, http.StatusOK, budgetResponse{Budget: *req.Budget})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "scanner": s.service.CanScan()})
}
