package ticket

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Server", func() {
	var (
		extractor  *mockExtractor
		service    *Service
		server     *Server
		auth       BasicAuth
		testServer *httptest.Server
	)

	setupServer := func() {
		if testServer != nil {
			testServer.Close()
		}
		testServer = httptest.NewServer(server)
	}

	uploadDocument := func(filename string) *http.Response {
		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		part, err := writer.CreateFormFile("file", filename)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write([]byte("%PDF-fake"))
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		resp, err := http.Post(testServer.URL+"/api/document", writer.FormDataContentType(), &body)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	postJSON := func(path string, payload any) *http.Response {
		data, err := json.Marshal(payload)
		Expect(err).NotTo(HaveOccurred())
		resp, err := http.Post(testServer.URL+path, "application/json", bytes.NewReader(data))
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	decodeSnapshot := func(resp *http.Response) *Snapshot {
		defer resp.Body.Close()
		var snap Snapshot
		Expect(json.NewDecoder(resp.Body).Decode(&snap)).To(Succeed())
		return &snap
	}

	BeforeEach(func() {
		extractor = &mockExtractor{lines: []string{
			"MERCADONA S.A.",
			"1 LECHE ENTERA 0,99",
			"2 PAN RUSTICO 2,40",
			"TOTAL 3,39",
		}}
		var err error
		service, err = NewServiceWithDeps(extractor, newMockCategoryStore(),
			&fixedIDGenerator{}, &fixedTimeSource{t: time.Now()})
		Expect(err).NotTo(HaveOccurred())
		auth = BasicAuth{}
		server = NewServerWithMux(service, auth, http.NewServeMux())
		setupServer()
	})

	AfterEach(func() {
		if testServer != nil {
			testServer.Close()
		}
	})

	Describe("handleIndex", func() {
		It("should serve the HTML interface", func() {
			resp, err := http.Get(testServer.URL + "/")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(ContainSubstring("text/html"))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("Ticket Split"))
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "user", Password: "secret"}
			server = NewServerWithMux(service, auth, http.NewServeMux())
			setupServer()
		})

		It("should reject requests without credentials", func() {
			resp, err := http.Get(testServer.URL + "/api/ledger")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("should accept valid credentials", func() {
			req, err := http.NewRequest("GET", testServer.URL+"/api/ledger", nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Authorization",
				"Basic "+base64.StdEncoding.EncodeToString([]byte("user:secret")))

			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("POST /api/document", func() {
		It("should process an upload and return the ledger", func() {
			resp := uploadDocument("mercadona 3,39.pdf")
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			snap := decodeSnapshot(resp)
			Expect(snap.Items).To(HaveLen(2))
			Expect(snap.Store).To(Equal("Mercadona"))
			Expect(*snap.Reconciliation.Matches).To(BeTrue())
		})

		It("should report extraction failures as bad requests", func() {
			extractor.err = io.ErrUnexpectedEOF
			resp := uploadDocument("x.pdf")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("should require a file field", func() {
			resp, err := http.Post(testServer.URL+"/api/document", "multipart/form-data; boundary=x", bytes.NewReader(nil))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("item endpoints", func() {
		var key Key

		BeforeEach(func() {
			resp := uploadDocument("mercadona 3,39.pdf")
			snap := decodeSnapshot(resp)
			key = snap.Items[0].Key
		})

		It("should toggle an allocation", func() {
			resp := postJSON("/api/items/toggle", map[string]any{"key": key})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			snap := decodeSnapshot(resp)

			for _, it := range snap.Items {
				if it.Key == key {
					Expect(it.Complete).To(BeTrue())
					Expect(it.Allocation[0].CategoryID).To(Equal("alberto"))
				}
			}
		})

		It("should store a split", func() {
			resp := postJSON("/api/items/split", map[string]any{
				"key": key,
				"entries": []AllocationEntry{
					{CategoryID: "alberto", Percent: 50},
					{CategoryID: "kike", Percent: 50},
				},
			})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			decodeSnapshot(resp)
		})

		It("should reject a bad split", func() {
			resp := postJSON("/api/items/split", map[string]any{
				"key": key,
				"entries": []AllocationEntry{
					{CategoryID: "alberto", Percent: 10},
				},
			})
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("should hide and unhide an item", func() {
			resp := postJSON("/api/items/hide", map[string]any{"key": key})
			snap := decodeSnapshot(resp)
			Expect(snap.Reconciliation.HiddenTotal).To(BeNumerically(">", 0))

			resp = postJSON("/api/items/unhide", map[string]any{"key": key})
			snap = decodeSnapshot(resp)
			Expect(snap.Reconciliation.HiddenTotal).To(BeZero())
		})

		It("should edit an item", func() {
			resp := postJSON("/api/items/edit", map[string]any{
				"key":         key,
				"description": "LECHE SEMI",
				"amount":      1.05,
			})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			snap := decodeSnapshot(resp)

			var descs []string
			for _, it := range snap.Items {
				descs = append(descs, it.Description)
			}
			Expect(descs).To(ContainElement("LECHE SEMI"))
		})
	})

	Describe("manual items", func() {
		BeforeEach(func() {
			resp := uploadDocument("mercadona 5,00.pdf")
			resp.Body.Close()
		})

		It("should add and delete a manual row", func() {
			resp := postJSON("/api/items/manual", map[string]any{
				"description": "AJUSTE",
				"amount":      1.61,
				"category_id": "kike",
			})
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			snap := decodeSnapshot(resp)
			Expect(snap.Items).To(HaveLen(3))

			req, err := http.NewRequest("DELETE", testServer.URL+"/api/items/manual/id-1", nil)
			Expect(err).NotTo(HaveOccurred())
			del, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			snap = decodeSnapshot(del)
			Expect(snap.Items).To(HaveLen(2))
		})

		It("should reject an amount beyond the outstanding difference", func() {
			resp := postJSON("/api/items/manual", map[string]any{
				"description": "AJUSTE",
				"amount":      4.00,
			})
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("category endpoints", func() {
		It("should create a category", func() {
			resp := postJSON("/api/categories", map[string]any{
				"name":  "Casa",
				"color": "#aabb00",
			})
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			snap := decodeSnapshot(resp)
			Expect(snap.Categories).To(HaveLen(4))
			Expect(snap.ActiveCategory).To(Equal("casa"))
		})

		It("should update a category", func() {
			resp := postJSON("/api/categories/alberto", map[string]any{
				"name":  "Berto",
				"color": "#dc3545",
			})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			snap := decodeSnapshot(resp)
			Expect(snap.Categories[0].ID).To(Equal("berto"))
		})

		It("should delete a category", func() {
			req, err := http.NewRequest("DELETE", testServer.URL+"/api/categories/comun", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			snap := decodeSnapshot(resp)
			Expect(snap.Categories).To(HaveLen(2))
		})

		It("should switch the active category", func() {
			resp := postJSON("/api/categories/active", map[string]any{"id": "kike"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			snap := decodeSnapshot(resp)
			Expect(snap.ActiveCategory).To(Equal("kike"))
		})
	})

	Describe("GET /api/export", func() {
		BeforeEach(func() {
			resp := uploadDocument("mercadona 3,39.pdf")
			snap := decodeSnapshot(resp)
			for _, it := range snap.Items {
				postJSON("/api/items/toggle", map[string]any{"key": it.Key}).Body.Close()
			}
		})

		It("should return the cards", func() {
			resp, err := http.Get(testServer.URL + "/api/export")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var cards []ExportCard
			Expect(json.NewDecoder(resp.Body).Decode(&cards)).To(Succeed())
			Expect(cards).To(HaveLen(1))
			Expect(cards[0].Total).To(Equal(3.39))
		})
	})

	Describe("POST /api/total and /api/sort", func() {
		BeforeEach(func() {
			extractor.lines = []string{
				"MERCADONA S.A.",
				"1 LECHE ENTERA 0,99",
				"TOTAL 0,99",
			}
			resp := uploadDocument("ticket.pdf")
			resp.Body.Close()
		})

		It("should set a manual expected total", func() {
			resp := postJSON("/api/total", map[string]any{"total": 0.99})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			snap := decodeSnapshot(resp)
			Expect(snap.Reconciliation.HasExpected).To(BeTrue())
			Expect(*snap.Reconciliation.Matches).To(BeTrue())
		})

		It("should reject a non-positive total", func() {
			resp := postJSON("/api/total", map[string]any{"total": -1})
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("should switch the sort mode", func() {
			resp := postJSON("/api/sort", map[string]any{"mode": "ticket"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			snap := decodeSnapshot(resp)
			Expect(snap.SortMode).To(Equal(SortTicket))
		})
	})
})
