package promotionapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/mdcpepper/lattice/internal/promotion/backend"
	"github.com/mdcpepper/lattice/pkg/testutil"
)

func newTestServer() (*httptest.Server, *Handler) {
	back := backend.NewBranchAndBound(100000, 1e-6)
	h := NewHandler(back)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return httptest.NewServer(r), h
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	testutil.AssertNoError(t, err, "GET /healthz")
	defer resp.Body.Close()

	testutil.AssertEqual(t, resp.StatusCode, http.StatusOK, "status code")
}

func TestSolveBasket_FlatDirectDiscount(t *testing.T) {
	srv, _ := newTestServer()
	defer srv.Close()

	body, _ := json.Marshal(SolveRequest{
		Currency: "GBP",
		Items: []ItemDTO{
			{ProductID: "sku-1", PriceMinor: 1000, Tags: []string{"sale"}},
			{ProductID: "sku-2", PriceMinor: 500},
		},
		Promotions: []PromotionDTO{
			{ID: "ten-percent-off", Type: "direct_discount", Kind: "percentage_off", Percent: 0.1,
				Qualification: &QualificationDTO{Rules: []RuleDTO{{Kind: "has_any", Tags: []string{"sale"}}}}},
		},
	})

	resp, err := http.Post(srv.URL+"/v1/baskets/solve", "application/json", bytes.NewReader(body))
	testutil.AssertNoError(t, err, "POST /v1/baskets/solve")
	defer resp.Body.Close()

	testutil.AssertEqual(t, resp.StatusCode, http.StatusOK, "status code")

	var receipt ReceiptDTO
	testutil.AssertNoError(t, json.NewDecoder(resp.Body).Decode(&receipt), "decode receipt")
	testutil.AssertEqual(t, receipt.SubtotalMinor, int64(1500), "subtotal")
	testutil.AssertEqual(t, receipt.TotalMinor, int64(1400), "total after 10% off the 1000 item")
	testutil.AssertEqual(t, len(receipt.Promotions), 1, "one promotion contributed savings")
	testutil.AssertEqual(t, receipt.Promotions[0].PromotionID, "ten-percent-off", "promotion id attribution")
}

func TestSolveBasket_RejectsMissingItems(t *testing.T) {
	srv, _ := newTestServer()
	defer srv.Close()

	body, _ := json.Marshal(SolveRequest{Currency: "GBP"})

	resp, err := http.Post(srv.URL+"/v1/baskets/solve", "application/json", bytes.NewReader(body))
	testutil.AssertNoError(t, err, "POST /v1/baskets/solve")
	defer resp.Body.Close()

	testutil.AssertEqual(t, resp.StatusCode, http.StatusUnprocessableEntity, "empty basket is a validation error")
}

func TestSolveBasket_RejectsMalformedBody(t *testing.T) {
	srv, _ := newTestServer()
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/baskets/solve", "application/json", bytes.NewReader([]byte("{not json")))
	testutil.AssertNoError(t, err, "POST /v1/baskets/solve")
	defer resp.Body.Close()

	testutil.AssertEqual(t, resp.StatusCode, http.StatusBadRequest, "malformed JSON is a bad request")
}

func TestSolveBasket_GraphRouted(t *testing.T) {
	srv, _ := newTestServer()
	defer srv.Close()

	body, _ := json.Marshal(SolveRequest{
		Currency: "GBP",
		Items: []ItemDTO{
			{ProductID: "sku-1", PriceMinor: 1000, Tags: []string{"sale"}},
		},
		Promotions: []PromotionDTO{
			{ID: "ten-percent-off", Type: "direct_discount", Kind: "percentage_off", Percent: 0.1},
		},
		Graph: []GraphNodeDTO{
			{LayerKey: "layer-1", PromotionIDs: []string{"ten-percent-off"}},
		},
	})

	resp, err := http.Post(srv.URL+"/v1/baskets/solve", "application/json", bytes.NewReader(body))
	testutil.AssertNoError(t, err, "POST /v1/baskets/solve with graph")
	defer resp.Body.Close()

	testutil.AssertEqual(t, resp.StatusCode, http.StatusOK, "status code")

	var receipt ReceiptDTO
	testutil.AssertNoError(t, json.NewDecoder(resp.Body).Decode(&receipt), "decode receipt")
	testutil.AssertEqual(t, receipt.TotalMinor, int64(900), "total after 10% off via graph routing")
}
