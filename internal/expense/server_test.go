package expense

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/expense-scanner/internal/extract"
)

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		storage     *mockStorage
		scanner     *mockScanner
		service     *Service
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		server := NewServerWithMux(service, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions} {
			ghttpServer.RouteToHandler(method, regexp.MustCompile(`.*`), server.ServeHTTP)
		}
	}

	do := func(method, path, contentType string, body io.Reader) *http.Response {
		req, err := http.NewRequest(method, ghttpServer.URL()+path, body)
		Expect(err).NotTo(HaveOccurred())
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(resp.Body.Close)
		return resp
	}

	doJSON := func(method, path, body string) *http.Response {
		return do(method, path, "application/json", strings.NewReader(body))
	}

	upload := func(filename string, data []byte) *http.Response {
		var b bytes.Buffer
		writer := multipart.NewWriter(&b)
		part, err := writer.CreateFormFile("file", filename)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())
		return do(http.MethodPost, "/api/expenses/scan", writer.FormDataContentType(), &b)
	}

	decode := func(resp *http.Response, v any) {
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(body, v)).To(Succeed(), string(body))
	}

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		scanner = newMockScanner()
		auth = BasicAuth{}
	})

	JustBeforeEach(func() {
		service = NewService(db, scanner, storage,
			WithIDGenerator(&mockIDGenerator{ids: []string{"test-id"}}),
			WithTimeSource(&mockTimeSource{now: time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC)}),
			WithLocation(time.UTC),
		)
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
			ghttpServer = nil
		}
	})

	Describe("POST /api/parse", func() {
		It("should return the extraction", func() {
			resp := doJSON(http.MethodPost, "/api/parse", `{"lines": ["Cafe Rio", {"text": "Total 118"}]}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))

			var res extract.ParseResult
			decode(resp, &res)
			Expect(*res.Amount).To(Equal(118.0))
			Expect(*res.Merchant).To(Equal("Cafe Rio"))
			Expect(db.expenses).To(BeEmpty())
		})

		It("should reject a body without lines", func() {
			resp := doJSON(http.MethodPost, "/api/parse", `{"categories": ["Food"]}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("should reject malformed JSON", func() {
			resp := doJSON(http.MethodPost, "/api/parse", `{"lines": [`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("POST /api/expenses", func() {
		It("should record the expense", func() {
			resp := doJSON(http.MethodPost, "/api/expenses", `{"lines": ["Metro Station", "Total 40", "Cash"], "description": "ride"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var got expenseResponse
			decode(resp, &got)
			Expect(got.Expense.ID).To(Equal("test-id"))
			Expect(got.Expense.Amount).To(Equal(int64(4000)))
			Expect(*got.Result.PaymentMethod).To(Equal("CASH"))
			Expect(db.expenses).To(HaveKey("test-id"))
		})

		It("should reject an empty line list", func() {
			resp := doJSON(http.MethodPost, "/api/expenses", `{"lines": []}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			var body map[string]string
			decode(resp, &body)
			Expect(body["error"]).To(ContainSubstring("lines"))
		})

		It("should reject unknown fields", func() {
			resp := doJSON(http.MethodPost, "/api/expenses", `{"lines": ["x"], "amount": 5}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("POST /api/expenses/scan", func() {
		When("upload succeeds", func() {
			It("should return the scanned expense", func() {
				resp := upload("receipt.jpg", []byte("fake image data"))
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))

				var got expenseResponse
				decode(resp, &got)
				Expect(got.Expense.Merchant).To(Equal("Cafe Rio"))
				Expect(got.Expense.Amount).To(Equal(int64(11800)))
				Expect(got.Expense.ContentType).To(Equal("image/jpeg"))
				Expect(storage.files).To(HaveKey("test-id_receipt.jpg"))
			})

			It("should detect PDFs by extension", func() {
				resp := upload("statement.pdf", []byte("fake pdf data"))
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))

				var got expenseResponse
				decode(resp, &got)
				Expect(got.Expense.ContentType).To(Equal("application/pdf"))
			})
		})

		When("no scanner is configured", func() {
			JustBeforeEach(func() {
				service = NewService(db, nil, storage)
				setupServer()
			})

			It("should return status Service Unavailable", func() {
				resp := upload("receipt.jpg", []byte("fake image data"))
				Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
			})
		})

		When("no file is provided", func() {
			It("should return status Bad Request", func() {
				var b bytes.Buffer
				writer := multipart.NewWriter(&b)
				Expect(writer.Close()).To(Succeed())

				resp := do(http.MethodPost, "/api/expenses/scan", writer.FormDataContentType(), &b)
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

				var body map[string]string
				decode(resp, &body)
				Expect(body["error"]).To(ContainSubstring("file"))
			})
		})

		When("invalid multipart form", func() {
			It("should return status Bad Request", func() {
				resp := do(http.MethodPost, "/api/expenses/scan", "multipart/form-data", strings.NewReader("invalid"))
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

				var body map[string]string
				decode(resp, &body)
				Expect(body["error"]).To(Equal("Error parsing form"))
			})
		})

		When("the scanner fails", func() {
			BeforeEach(func() {
				scanner.scanErr = errors.New("scan error")
			})

			It("should report the failure", func() {
				resp := upload("receipt.jpg", []byte("fake image data"))
				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))

				var body map[string]string
				decode(resp, &body)
				Expect(body["error"]).To(ContainSubstring("scan error"))
			})
		})
	})

	Describe("GET /api/expenses", func() {
		When("expenses exist", func() {
			BeforeEach(func() {
				db.expenses["id1"] = &Expense{ID: "id1", Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
				db.expenses["id2"] = &Expense{ID: "id2", Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)}
			})

			It("should return them newest first", func() {
				resp := do(http.MethodGet, "/api/expenses", "", nil)
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var expenses []*Expense
				decode(resp, &expenses)
				Expect(expenses).To(HaveLen(2))
				Expect(expenses[0].ID).To(Equal("id2"))
			})
		})

		When("no expenses exist", func() {
			It("should return an empty array", func() {
				resp := do(http.MethodGet, "/api/expenses", "", nil)
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(body)).To(MatchJSON(`[]`))
			})
		})

		When("the database fails", func() {
			BeforeEach(func() {
				db.listErr = errors.New("database error")
			})

			It("should hide the cause", func() {
				resp := do(http.MethodGet, "/api/expenses", "", nil)
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))

				var body map[string]string
				decode(resp, &body)
				Expect(body["error"]).To(Equal("Internal server error"))
			})
		})
	})

	Describe("/api/expenses/{id}", func() {
		BeforeEach(func() {
			storage.files["test-id_receipt.png"] = []byte("png data")
			db.expenses["test-id"] = &Expense{
				ID:          "test-id",
				Merchant:    "Cafe Rio",
				Category:    DefaultCategory,
				Filename:    "test-id_receipt.png",
				ContentType: "image/png",
			}
		})

		It("should return the expense", func() {
			resp := do(http.MethodGet, "/api/expenses/test-id", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var got Expense
			decode(resp, &got)
			Expect(got.Merchant).To(Equal("Cafe Rio"))
		})

		It("should return status Not Found for an unknown ID", func() {
			resp := do(http.MethodGet, "/api/expenses/nonexistent", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("should apply a patch", func() {
			resp := doJSON(http.MethodPatch, "/api/expenses/test-id", `{"category": "Health", "amount": 2500}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var got Expense
			decode(resp, &got)
			Expect(got.Category).To(Equal("Health"))
			Expect(got.Amount).To(Equal(int64(2500)))
		})

		It("should reject a malformed date in a patch", func() {
			resp := doJSON(http.MethodPatch, "/api/expenses/test-id", `{"date": "12/03/2023"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("should serve the receipt file", func() {
			resp := do(http.MethodGet, "/api/expenses/test-id/file", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("image/png"))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(body).To(Equal([]byte("png data")))
		})

		It("should delete the expense", func() {
			resp := do(http.MethodDelete, "/api/expenses/test-id", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(db.expenses).To(BeEmpty())
			Expect(storage.files).To(BeEmpty())
		})

		It("should return status Not Found when deleting an unknown ID", func() {
			resp := do(http.MethodDelete, "/api/expenses/nonexistent", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("/api/categories", func() {
		It("should list the vocabulary", func() {
			resp := do(http.MethodGet, "/api/categories", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var categories []string
			decode(resp, &categories)
			Expect(categories).To(Equal(DefaultCategories))
		})

		It("should add a category", func() {
			resp := doJSON(http.MethodPost, "/api/categories", `{"name": "Pets"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			Expect(db.categories).To(HaveLen(1))
		})

		It("should return status Conflict for a duplicate", func() {
			resp := doJSON(http.MethodPost, "/api/categories", `{"name": "transport"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))
		})

		It("should reject a missing name", func() {
			resp := doJSON(http.MethodPost, "/api/categories", `{}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /api/summary", func() {
		BeforeEach(func() {
			db.expenses["a"] = &Expense{ID: "a", Amount: 5000, Category: "Health", Date: time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)}
			db.expenses["b"] = &Expense{ID: "b", Amount: 7000, Category: "Transport", Date: time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)}
		})

		It("should default to the current month", func() {
			resp := do(http.MethodGet, "/api/summary", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var got Summary
			decode(resp, &got)
			Expect(got.Month).To(Equal("2024-03"))
			Expect(got.Total).To(Equal(int64(7000)))
			Expect(got.LastMonthTotal).To(Equal(int64(5000)))
		})

		It("should summarize the requested month", func() {
			resp := do(http.MethodGet, "/api/summary?month=2024-02", "", nil)
			var got Summary
			decode(resp, &got)
			Expect(got.TopCategory).To(Equal("Health"))
			Expect(got.ChangePercent).To(BeNil())
		})

		It("should reject a malformed month", func() {
			resp := do(http.MethodGet, "/api/summary?month=March", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /api/trend", func() {
		BeforeEach(func() {
			db.expenses["a"] = &Expense{ID: "a", Amount: 5000, Date: time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)}
			db.expenses["b"] = &Expense{ID: "b", Amount: 7000, Date: time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)}
		})

		It("should default to six months ending this month", func() {
			resp := do(http.MethodGet, "/api/trend", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var got []MonthTotal
			decode(resp, &got)
			Expect(got).To(HaveLen(6))
			Expect(got[0].Month).To(Equal("2023-10"))
			Expect(got[4]).To(Equal(MonthTotal{Month: "2024-02", Total: 5000, Count: 1}))
			Expect(got[5]).To(Equal(MonthTotal{Month: "2024-03", Total: 7000, Count: 1}))
		})

		It("should honor the window and end month", func() {
			resp := do(http.MethodGet, "/api/trend?months=2&month=2024-02", "", nil)
			var got []MonthTotal
			decode(resp, &got)
			Expect(got).To(Equal([]MonthTotal{
				{Month: "2024-01"},
				{Month: "2024-02", Total: 5000, Count: 1},
			}))
		})

		It("should reject an out-of-range window", func() {
			resp := do(http.MethodGet, "/api/trend?months=0", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("/api/budget", func() {
		It("should return zero before a budget is set", func() {
			resp := do(http.MethodGet, "/api/budget", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var got map[string]int64
			decode(resp, &got)
			Expect(got).To(Equal(map[string]int64{"budget": 0}))
		})

		It("should store a new budget", func() {
			resp := doJSON(http.MethodPut, "/api/budget", `{"budget": 2000000}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(db.budget).To(Equal(int64(2000000)))

			resp = do(http.MethodGet, "/api/summary", "", nil)
			var got Summary
			decode(resp, &got)
			Expect(got.Budget).To(Equal(int64(2000000)))
		})

		It("should reject a negative budget", func() {
			resp := doJSON(http.MethodPut, "/api/budget", `{"budget": -1}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(db.budget).To(BeZero())
		})

		It("should reject a missing budget", func() {
			resp := doJSON(http.MethodPut, "/api/budget", `{}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("CORS", func() {
		It("should answer preflight requests", func() {
			resp := do(http.MethodOptions, "/api/expenses", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(ContainSubstring("PATCH"))
			Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(ContainSubstring("PUT"))
		})

		It("should set headers on error responses", func() {
			resp := do(http.MethodGet, "/api/expenses/nonexistent", "", nil)
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "admin", Password: "secret"}
		})

		It("should reject requests without credentials", func() {
			resp := do(http.MethodGet, "/api/expenses", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
		})

		It("should reject wrong credentials", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/expenses", nil)
			Expect(err).NotTo(HaveOccurred())
			req.SetBasicAuth("admin", "wrong")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("should accept the configured credentials", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/expenses", nil)
			Expect(err).NotTo(HaveOccurred())
			req.SetBasicAuth("admin", "secret")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("should leave the health check open", func() {
			resp := do(http.MethodGet, "/healthz", "", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})
})
