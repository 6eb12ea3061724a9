// internal/handler/list_handler.go
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/unclebandit/wabroadcast-backend/internal/errors"
	"github.com/unclebandit/wabroadcast-backend/internal/model"
	"github.com/unclebandit/wabroadcast-backend/internal/repository"
	"github.com/unclebandit/wabroadcast-backend/internal/service"
)

// sampleTemplateCSV is the fixed download operators use as an import
// starting point.
const sampleTemplateCSV = "Number,Name,Job Title,Company Name\n" +
	"254712345678,Jane Wanjiru,Operations Lead,Acme Distribution\n" +
	"254723456789,Brian Otieno,Sales Manager,Savanna Traders\n" +
	"14155552671,Maria Lopez,Founder,Lopez & Co\n"

// ListHandler holds dependencies for recipient-list HTTP handlers.
type ListHandler struct {
	Repo repository.ListRepositoryInterface
}

func (h *ListHandler) CreateList(w http.ResponseWriter, r *http.Request) {
	var list model.RecipientList
	if err := json.NewDecoder(r.Body).Decode(&list); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	list.CreatedBy = r.Header.Get("X-Actor")

	if err := h.Repo.Create(&list); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, list)
}

func (h *ListHandler) ListLists(w http.ResponseWriter, r *http.Request) {
	lists, err := h.Repo.List(r.URL.Query().Get("owner"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": lists})
}

func (h *ListHandler) GetList(w http.ResponseWriter, r *http.Request) {
	list, err := h.Repo.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, list)
}

func (h *ListHandler) UpdateList(w http.ResponseWriter, r *http.Request) {
	var list model.RecipientList
	if err := json.NewDecoder(r.Body).Decode(&list); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	list.ID = chi.URLParam(r, "id")

	if err := h.Repo.Update(&list); err != nil {
		h.writeError(w, err)
		return
	}

	updated, err := h.Repo.GetByID(list.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

func (h *ListHandler) DeleteList(w http.ResponseWriter, r *http.Request) {
	if err := h.Repo.Delete(chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ListHandler) CloneList(w http.ResponseWriter, r *http.Request) {
	clone, err := h.Repo.Clone(chi.URLParam(r, "id"), r.Header.Get("X-Actor"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, clone)
}

func (h *ListHandler) AddRecipient(w http.ResponseWriter, r *http.Request) {
	var rec model.Recipient
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Repo.AddRecipient(chi.URLParam(r, "id"), rec); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ListHandler) UpdateRecipient(w http.ResponseWriter, r *http.Request) {
	var rec model.Recipient
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	rec.Number = chi.URLParam(r, "number")

	if err := h.Repo.UpdateRecipient(chi.URLParam(r, "id"), rec); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ListHandler) RemoveRecipient(w http.ResponseWriter, r *http.Request) {
	if err := h.Repo.RemoveRecipient(chi.URLParam(r, "id"), chi.URLParam(r, "number")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ListHandler) SearchRecipients(w http.ResponseWriter, r *http.Request) {
	hits, err := h.Repo.SearchRecipients(r.URL.Query().Get("owner"), r.URL.Query().Get("q"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": hits})
}

// ImportCSV parses a raw CSV body into recipients. Per-row failures
// come back in the result; only an unreadable request is an HTTP error.
func (h *ListHandler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "could not read body", http.StatusBadRequest)
		return
	}

	mapping := map[string]string{}
	for _, field := range []string{"number", "name", "jobTitle", "companyName"} {
		if v := r.URL.Query().Get("map_" + field); v != "" {
			mapping[field] = v
		}
	}

	result := service.ImportRecipients(string(body), mapping)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *ListHandler) DownloadTemplate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="recipients-template.csv"`)
	w.Write([]byte(sampleTemplateCSV))
}

func (h *ListHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *ListHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var v *appErrors.ValidationError
	switch {
	case appErrors.IsNotFound(err):
		status = http.StatusNotFound
	case errors.As(err, &v):
		status = http.StatusBadRequest
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}
