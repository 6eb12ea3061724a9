// internal/controller/campaign_controller.go
package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/unclebandit/wabroadcast-backend/internal/errors"
	"github.com/unclebandit/wabroadcast-backend/internal/repository"
	"github.com/unclebandit/wabroadcast-backend/internal/service"
)

type CampaignController struct {
	CampaignRepo    repository.CampaignRepositoryInterface
	CampaignService *service.CampaignService
	Sender          *service.Sender
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var in service.CreateCampaignInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	in.CreatedBy = actorFrom(r)

	campaign, err := c.CampaignService.CreateCampaign(in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	campaigns, err := c.CampaignRepo.List(owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": campaigns})
}

func (c *CampaignController) GetCampaign(w http.ResponseWriter, r *http.Request) {
	campaign, err := c.CampaignRepo.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	var in service.UpdateCampaignInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	campaign, err := c.CampaignService.UpdateCampaign(chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	if err := c.CampaignService.DeleteCampaign(chi.URLParam(r, "id"), actorFrom(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *CampaignController) CloneCampaign(w http.ResponseWriter, r *http.Request) {
	clone, err := c.CampaignRepo.Clone(chi.URLParam(r, "id"), actorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, clone)
}

func (c *CampaignController) StartCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := c.Sender.Start(id, actorFrom(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"campaign_id": id, "status": "sending"})
}

func (c *CampaignController) PauseCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	id := chi.URLParam(r, "id")
	if err := c.Sender.Pause(id, body.Reason); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"campaign_id": id, "status": "paused"})
}

func (c *CampaignController) ResumeCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := c.Sender.Resume(id, actorFrom(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"campaign_id": id, "status": "sending"})
}

func (c *CampaignController) StopCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := c.Sender.Stop(id, actorFrom(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"campaign_id": id, "status": "cancelled"})
}

func (c *CampaignController) RetryFailed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	count, state, err := c.Sender.RetryFailed(id, actorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"campaign_id": id,
		"retry_count": count,
		"state":       state,
	})
}

func (c *CampaignController) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := c.Sender.GetStatus(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (c *CampaignController) ExportResults(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	data, err := c.CampaignRepo.ExportResultsCSV(id)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="campaign-`+id+`-results.csv"`)
	w.Write(data)
}

func (c *CampaignController) PersonalizedPreview(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Number           string  `json:"number"`
		OverrideTemplate *string `json:"override_template"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	rendered, err := c.CampaignService.RenderPreview(chi.URLParam(r, "id"), body.Number, body.OverrideTemplate)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"rendered_message": rendered})
}

// actorFrom reads the operator identity forwarded by the (external)
// auth layer. Blank when running without one.
func actorFrom(r *http.Request) string {
	return r.Header.Get("X-Actor")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case appErrors.IsNotFound(err):
		status = http.StatusNotFound
	case isValidation(err):
		status = http.StatusBadRequest
	case isAlreadyRunning(err):
		status = http.StatusConflict
	case isChannelUnavailable(err):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func isValidation(err error) bool {
	var v *appErrors.ValidationError
	return errors.As(err, &v)
}

func isAlreadyRunning(err error) bool {
	var v *appErrors.ErrAlreadyRunning
	return errors.As(err, &v)
}

func isChannelUnavailable(err error) bool {
	var v *appErrors.ErrChannelUnavailable
	return errors.As(err, &v)
}
