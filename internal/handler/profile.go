package handler

import (
	"log/slog"
	"net/http"

	"marketbrief/internal/domain/models"
	"marketbrief/internal/httputil"
	"marketbrief/internal/service"
)

// ProfileHandler serves the briefing-preferences REST endpoints.
type ProfileHandler struct {
	profiles *service.ProfileService
	logger   *slog.Logger
}

// NewProfileHandler creates a profile handler.
func NewProfileHandler(profiles *service.ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger}
}

// Get handles GET /profile, creating the default row on first read.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	profile, err := h.profiles.GetOrCreate(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{"profile": profile})
}

// UpdateProfileRequest is the POST /profile body. Enum fields outside
// their sets are sanitized to defaults, not rejected; a voice UI cannot
// retype a form.
type UpdateProfileRequest struct {
	RiskTolerance models.Risk       `json:"riskTolerance"`
	Horizon       models.Horizon    `json:"horizon"`
	BriefStyle    models.BriefStyle `json:"briefStyle"`
	Experience    models.Experience `json:"experience"`
	Sectors       *string           `json:"sectors"`
	Constraints   *string           `json:"constraints"`
}

// Update handles POST /profile.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	profile, err := h.profiles.Update(r.Context(), userID, &models.Profile{
		RiskTolerance: req.RiskTolerance,
		Horizon:       req.Horizon,
		BriefStyle:    req.BriefStyle,
		Experience:    req.Experience,
		Sectors:       req.Sectors,
		Constraints:   req.Constraints,
	})
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{"profile": profile})
}
