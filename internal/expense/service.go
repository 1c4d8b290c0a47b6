package expense

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/zombor/expense-scanner/internal/extract"
	"github.com/zombor/expense-scanner/internal/scanning"
)

// dateLayout is the local timestamp layout the extractor reports
const dateLayout = "2006-01-02T15:04:05"

// IDGenerator generates unique IDs for expenses
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles expense operations
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	extractor   *extract.Extractor
	categories  []string
	location    *time.Location
	idGenerator IDGenerator
	timeSource  TimeSource
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithExtractor replaces the default-profile extractor
func WithExtractor(e *extract.Extractor) ServiceOption {
	return func(s *Service) {
		if e != nil {
			s.extractor = e
		}
	}
}

// WithDefaultCategories replaces the built-in category vocabulary
func WithDefaultCategories(categories []string) ServiceOption {
	return func(s *Service) {
		if len(categories) > 0 {
			s.categories = categories
		}
	}
}

// WithLocation sets the zone receipt timestamps are interpreted in
func WithLocation(loc *time.Location) ServiceOption {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithIDGenerator replaces the UUID generator, for tests
func WithIDGenerator(g IDGenerator) ServiceOption {
	return func(s *Service) { s.idGenerator = g }
}

// WithTimeSource replaces the wall clock, for tests
func WithTimeSource(t TimeSource) ServiceOption {
	return func(s *Service) { s.timeSource = t }
}

// NewService creates a new Service. scanner may be nil, in which case
// ScanReceipt fails with ErrNoScanner and line-based entry still works.
func NewService(db DB, scanner scanning.Scanner, storage Storage, opts ...ServiceOption) *Service {
	s := &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		extractor:   extract.New(),
		categories:  DefaultCategories,
		location:    time.Local,
		idGenerator: uuidGenerator{},
		timeSource:  defaultTimeSource{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CanScan reports whether an OCR backend is configured
func (s *Service) CanScan() bool {
	return s.scanner != nil
}

var (
	reFilenameJunk  = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	reFilenameSpace = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = reFilenameJunk.ReplaceAllString(base, "")
	base = strings.TrimSpace(reFilenameSpace.ReplaceAllString(base, " "))

	// phone cameras produce very long names
	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}
	if ext = reFilenameJunk.ReplaceAllString(ext, ""); ext != "" {
		ext = "." + ext
	}
	return base + ext
}

// Parse runs the extractor without recording anything. Nil categories use
// the current vocabulary.
func (s *Service) Parse(lines []extract.OCRLine, categories []string) (extract.ParseResult, error) {
	if categories == nil {
		var err error
		if categories, err = s.Categories(); err != nil {
			return extract.ParseResult{}, err
		}
	}
	return s.extractor.ParseReceipt(lines, categories), nil
}

// ScanReceipt stores the uploaded receipt, recognizes its lines and records
// the extracted expense
func (s *Service) ScanReceipt(filename string, data []byte, contentType string) (*Expense, extract.ParseResult, error) {
	if s.scanner == nil {
		return nil, extract.ParseResult{}, ErrNoScanner
	}
	if len(data) == 0 {
		return nil, extract.ParseResult{}, fmt.Errorf("empty file: %w", ErrInvalidInput)
	}

	id := s.idGenerator.Generate()

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, extract.ParseResult{}, fmt.Errorf("saving file: %w", err)
	}

	lines, err := s.scanner.RecognizeLines(data, contentType)
	if err != nil {
		slog.Error("Failed to scan receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		s.removeFile(savedPath)
		return nil, extract.ParseResult{}, fmt.Errorf("scanning receipt: %w", err)
	}

	expense, res, err := s.record(id, lines, "", savedPath, contentType)
	if err != nil {
		s.removeFile(savedPath)
		return nil, extract.ParseResult{}, err
	}
	return expense, res, nil
}

// CreateFromLines records an expense from already recognized text, e.g. lines
// typed in or produced by an on-device OCR engine
func (s *Service) CreateFromLines(lines []extract.OCRLine, description string) (*Expense, extract.ParseResult, error) {
	if !slices.ContainsFunc(lines, func(l extract.OCRLine) bool { return extract.NormalizeLine(l.Text) != "" }) {
		return nil, extract.ParseResult{}, fmt.Errorf("no text lines: %w", ErrInvalidInput)
	}
	return s.record(s.idGenerator.Generate(), lines, strings.TrimSpace(description), "", "")
}

func (s *Service) record(id string, lines []extract.OCRLine, description, filename, contentType string) (*Expense, extract.ParseResult, error) {
	res, err := s.Parse(lines, nil)
	if err != nil {
		return nil, extract.ParseResult{}, err
	}

	now := s.timeSource.Now()
	expense := &Expense{
		ID:          id,
		Description: description,
		Category:    DefaultCategory,
		Date:        now,
		Confidence: Confidence{
			Amount:   res.AmountConfidence,
			Date:     res.DateConfidence,
			Merchant: res.MerchantConfidence,
			Payment:  res.PaymentConfidence,
			Category: res.CategoryConfidence,
		},
		Lines:       res.Debug.Lines,
		Filename:    filename,
		ContentType: contentType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if res.Merchant != nil {
		expense.Merchant = *res.Merchant
	}
	if res.AmountRaw != nil {
		expense.AmountRaw = *res.AmountRaw
		if expense.Amount, err = extract.AmountMinorUnits(*res.AmountRaw); err != nil {
			slog.Warn("Unusable amount", "id", id, "amount_raw", *res.AmountRaw, "error", err)
			expense.Confidence.Amount = 0
		}
	}
	if len(res.CategoryKeywords) > 0 {
		expense.Category = res.CategoryKeywords[0]
	}
	if res.PaymentMethod != nil {
		expense.PaymentMethod = *res.PaymentMethod
	}
	if res.Date != nil {
		expense.DateText = *res.Date
		if date, err := time.ParseInLocation(dateLayout, *res.Date, s.location); err == nil {
			expense.Date = date
		}
	}

	slog.Debug("Parsed receipt",
		"id", id,
		"lines", len(res.Debug.Lines),
		"amount_confidence", res.AmountConfidence,
		"date_confidence", res.DateConfidence,
		"merchant_confidence", res.MerchantConfidence,
		"payment_confidence", res.PaymentConfidence,
		"category_confidence", res.CategoryConfidence,
	)

	if err := s.db.SaveExpense(expense); err != nil {
		return nil, extract.ParseResult{}, fmt.Errorf("saving expense to database: %w", err)
	}
	return expense, res, nil
}

func (s *Service) removeFile(name string) {
	if err := s.storage.Delete(name); err != nil {
		slog.Warn("Failed to delete file", "filename", name, "error", err)
	}
}

// GetExpense retrieves an expense by ID
func (s *Service) GetExpense(id string) (*Expense, error) {
	expense, err := s.db.GetExpense(id)
	if err != nil {
		return nil, fmt.Errorf("getting expense: %w", err)
	}
	return expense, nil
}

// ListExpenses returns all expenses, newest receipt date first
func (s *Service) ListExpenses() ([]*Expense, error) {
	expenses, err := s.db.ListExpenses()
	if err != nil {
		return nil, fmt.Errorf("listing expenses: %w", err)
	}
	slices.SortStableFunc(expenses, func(a, b *Expense) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return expenses, nil
}

// UpdateExpense applies a manual correction. Edited fields get confidence 1.
func (s *Service) UpdateExpense(id string, patch Patch) (*Expense, error) {
	expense, err := s.db.GetExpense(id)
	if err != nil {
		return nil, fmt.Errorf("getting expense: %w", err)
	}

	if patch.Merchant != nil {
		expense.Merchant = strings.TrimSpace(*patch.Merchant)
		expense.Confidence.Merchant = 1
	}
	if patch.Description != nil {
		expense.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Amount != nil {
		if *patch.Amount < 0 {
			return nil, fmt.Errorf("negative amount: %w", ErrInvalidInput)
		}
		expense.Amount = *patch.Amount
		// the printed token no longer describes the amount
		expense.AmountRaw = ""
		expense.Confidence.Amount = 1
	}
	if patch.Category != nil {
		category, err := s.lookupCategory(*patch.Category)
		if err != nil {
			return nil, err
		}
		expense.Category = category
		expense.Confidence.Category = 1
	}
	if patch.PaymentMethod != nil {
		expense.PaymentMethod = strings.TrimSpace(*patch.PaymentMethod)
		expense.Confidence.Payment = 1
	}
	if patch.Date != nil {
		date, err := time.ParseInLocation("2006-01-02", *patch.Date, s.location)
		if err != nil {
			return nil, fmt.Errorf("date %q: %w", *patch.Date, ErrInvalidInput)
		}
		expense.Date = date
		expense.Confidence.Date = 1
	}

	expense.UpdatedAt = s.timeSource.Now()
	if err := s.db.SaveExpense(expense); err != nil {
		return nil, fmt.Errorf("saving expense: %w", err)
	}
	return expense, nil
}

// lookupCategory resolves a name to its vocabulary spelling
func (s *Service) lookupCategory(name string) (string, error) {
	categories, err := s.Categories()
	if err != nil {
		return "", err
	}
	fold := cases.Fold()
	want := fold.String(strings.TrimSpace(name))
	for _, c := range categories {
		if fold.String(c) == want {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q: %w", name, ErrInvalidInput)
}

// DeleteExpense removes an expense and its receipt file
func (s *Service) DeleteExpense(id string) error {
	expense, err := s.db.GetExpense(id)
	if err != nil {
		return fmt.Errorf("getting expense for deletion: %w", err)
	}

	if expense.Filename != "" {
		s.removeFile(expense.Filename)
	}

	if err := s.db.DeleteExpense(id); err != nil {
		return fmt.Errorf("deleting expense from database: %w", err)
	}
	return nil
}

// GetExpenseFile retrieves the receipt file of an expense
func (s *Service) GetExpenseFile(id string) ([]byte, string, error) {
	expense, err := s.db.GetExpense(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting expense: %w", err)
	}
	if expense.Filename == "" {
		return nil, "", fmt.Errorf("expense %s has no file: %w", id, ErrNotFound)
	}

	data, err := s.storage.Get(expense.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting expense file: %w", err)
	}
	return data, expense.ContentType, nil
}

// Categories returns the vocabulary: the defaults, then custom categories in
// the order they were added. Names differing only in case appear once.
func (s *Service) Categories() ([]string, error) {
	custom, err := s.db.ListCategories()
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}

	fold := cases.Fold()
	seen := make(map[string]bool, len(s.categories)+len(custom))
	out := make([]string, 0, len(s.categories)+len(custom))
	add := func(name string) {
		key := fold.String(name)
		if name == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, name)
	}
	for _, c := range s.categories {
		add(c)
	}
	for _, c := range custom {
		add(c.Name)
	}
	return out, nil
}

// AddCategory adds a custom category to the vocabulary
func (s *Service) AddCategory(name string) (*Category, error) {
	name = extract.NormalizeLine(name)
	if name == "" {
		return nil, fmt.Errorf("empty category name: %w", ErrInvalidInput)
	}
	switch _, err := s.lookupCategory(name); {
	case err == nil:
		return nil, fmt.Errorf("category %q: %w", name, ErrConflict)
	case !errors.Is(err, ErrInvalidInput):
		return nil, err
	}

	category := &Category{Name: name, CreatedAt: s.timeSource.Now()}
	if err := s.db.SaveCategory(category); err != nil {
		return nil, fmt.Errorf("saving category: %w", err)
	}
	return category, nil
}
