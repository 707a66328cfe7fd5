package handler

import (
	"encoding/json"
	"net/http"

	httputil "atenda/pkg/http"
	"atenda/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// InvoiceResponse bundles an invoice with its ledger entries for the read
// surface.
type InvoiceResponse struct {
	Invoice *model.Invoice      `json:"invoice"`
	Ledger  []model.LedgerEntry `json:"ledger"`
}

func (h *BookingHandler) GetInvoice(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	tenantID, err := httputil.ExtractTenant(r)
	if err != nil {
		h.writeError(w, "GetInvoice", err)
		return
	}

	invoice, entries, err := h.service.GetInvoice(r.Context(), tenantID, ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetInvoice", err)
		return
	}

	if err := httputil.WriteSuccess(w, InvoiceResponse{Invoice: invoice, Ledger: entries}); err != nil {
		h.log.Error("failed to write success response", "handler", "GetInvoice", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) ListInvoices(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	tenantID, err := httputil.ExtractTenant(r)
	if err != nil {
		h.writeError(w, "ListInvoices", err)
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListInvoices", err)
		return
	}

	status := model.InvoiceStatus(r.URL.Query().Get("status"))

	invoices, total, err := h.service.ListInvoices(r.Context(), tenantID, status, limit, offset)
	if err != nil {
		h.writeError(w, "ListInvoices", err)
		return
	}

	if err := httputil.WritePaginated(w, invoices, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListInvoices", "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) PayInvoice(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	tenantID, err := httputil.ExtractTenant(r)
	if err != nil {
		h.writeError(w, "PayInvoice", err)
		return
	}

	var req struct {
		Method string `json:"method"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
				Error: "Invalid request body",
			}); writeErr != nil {
				h.log.Error("failed to write JSON response", "handler", "PayInvoice", "operation", "WriteJSON", "error", writeErr)
			}
			return
		}
	}

	invoice, err := h.service.MarkInvoicePaid(r.Context(), tenantID, ps.ByName("id"), req.Method)
	if err != nil {
		h.writeError(w, "PayInvoice", err)
		return
	}

	if err := httputil.WriteSuccess(w, invoice); err != nil {
		h.log.Error("failed to write success response", "handler", "PayInvoice", "operation", "WriteSuccess", "error", err)
	}
}
