package endpoint

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dexavision/admin-console/middleware"
	"github.com/dexavision/admin-console/model"
	"github.com/dexavision/admin-console/pagination"
	"github.com/dexavision/admin-console/upstream"
	"github.com/dexavision/admin-console/util"
)

// statusLabels are the status chip captions. Unknown statuses fall back to
// the raw value.
var statusLabels = map[string]string{
	model.StatusInReview:   "Pendiente",
	model.StatusIncomplete: "Corrección necesaria",
	model.StatusApproved:   "Aprobado",
	model.StatusRejected:   "Rechazado",
}

// StatusLabel returns the display caption for a profile status.
func StatusLabel(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return status
}

var docTypeLabels = map[string]string{
	model.DocTypeProfessional:      "Certificado profesional",
	model.DocTypeSuperintendencia:  "Certificado Superintendencia de Salud",
	model.DocTypeRegistroSanitario: "Registro sanitario",
}

// DocTypeLabel returns the display caption for a credential document type.
func DocTypeLabel(docType string) string {
	if label, ok := docTypeLabels[docType]; ok {
		return label
	}
	return docType
}

// weekdayOrder fixes the availability table ordering; the upstream sends a
// map keyed by English day names.
var weekdayOrder = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

var weekdayLabels = map[string]string{
	"monday":    "Lunes",
	"tuesday":   "Martes",
	"wednesday": "Miércoles",
	"thursday":  "Jueves",
	"friday":    "Viernes",
	"saturday":  "Sábado",
	"sunday":    "Domingo",
}

// Review actions accepted by the decision endpoint. Anything else is
// rejected before the upstream is called.
const (
	ReviewActionApprove = "approve"
	ReviewActionReject  = "reject"
)

var reviewActions = []string{ReviewActionApprove, ReviewActionReject}

type listedDoctor struct {
	model.Doctor
	StatusLabel string `json:"statusLabel"`
}

type listView struct {
	Page        int            `json:"page"`
	PageSize    int            `json:"pageSize"`
	RowCount    int            `json:"rowCount"`
	HasNextPage bool           `json:"hasNextPage"`
	Status      string         `json:"status"`
	Keyword     string         `json:"keyword"`
	Rows        []listedDoctor `json:"rows"`
	Counts      *model.Counts  `json:"counts,omitempty"`
}

// ListVerifications godoc
// @Summary One page of the verification grid
// @Description Applies a (page, pageSize, status, keyword) grid event to the session's pagination state and fetches the resulting slice from the backend
// @Tags verifications
// @Produce json
// @Param page query int false "Requested page index"
// @Param pageSize query int false "Rows per page"
// @Param status query string false "Status filter, default all"
// @Param keyword query string false "Search text"
// @Success 200 {object} util.APIResponse
// @Failure 500 {object} util.APIResponse
// @Router /dashboard/verificaciones [get]
func (h *Handler) ListVerifications(c *gin.Context) {
	sess, _ := middleware.GetSession(c)
	ctrl := h.Grids.For(sess.ID)
	current := ctrl.Snapshot()

	page := intQuery(c, "page", current.Page)
	pageSize := intQuery(c, "pageSize", current.PageSize)
	status := c.DefaultQuery("status", current.Status)
	keyword := c.DefaultQuery("keyword", current.Keyword)

	query, gen := ctrl.Prepare(status, keyword, page, pageSize)

	token := h.Sessions.Token(c.Request.Context(), sess)
	if token == "" {
		ctrl.Fail(gen)
		util.CallServerError(c, util.APIErrorParams{
			Msg: "No se pudieron cargar los doctores.",
			Err: fmt.Errorf("no session token"),
		})
		return
	}

	result, err := h.Upstream.ListDoctors(c.Request.Context(), token, upstream.ListQuery{
		Status: query.Status,
		Limit:  query.Limit,
		After:  query.After,
		Before: query.Before,
	})
	if err != nil {
		ctrl.Fail(gen)
		util.CallServerError(c, util.APIErrorParams{
			Msg: "No se pudieron cargar los doctores.",
			Err: err,
		})
		return
	}

	// A superseded generation still answers with whatever the newer fetch
	// installed; the stale rows are simply not committed.
	ctrl.Commit(gen, result)
	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Doctors retrieved",
		Data: listViewFrom(ctrl.Snapshot()),
	})
}

func listViewFrom(snap pagination.Snapshot) listView {
	rows := make([]listedDoctor, 0, len(snap.Rows))
	for _, d := range snap.Rows {
		rows = append(rows, listedDoctor{Doctor: d, StatusLabel: StatusLabel(d.ProfileStatus)})
	}
	return listView{
		Page:        snap.Page,
		PageSize:    snap.PageSize,
		RowCount:    snap.RowCount,
		HasNextPage: snap.HasNextPage,
		Status:      snap.Status,
		Keyword:     snap.Keyword,
		Rows:        rows,
		Counts:      snap.Counts,
	}
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

type documentView struct {
	Key   string `json:"key"`
	URL   string `json:"url"`
	Type  string `json:"type"`
	Label string `json:"label"`
}

type availabilityView struct {
	Day       string `json:"day"`
	Label     string `json:"label"`
	Available bool   `json:"available"`
	Start     string `json:"start"`
	End       string `json:"end"`
}

type detailView struct {
	model.DoctorDetail
	StatusLabel  string             `json:"statusLabel"`
	Documents    []documentView     `json:"documents"`
	Availability []availabilityView `json:"availabilityTable"`
}

func detailViewFrom(d *model.DoctorDetail) detailView {
	view := detailView{
		DoctorDetail: *d,
		StatusLabel:  StatusLabel(d.ProfileStatus),
		Documents:    orderedDocuments(d.DocumentURLs),
		Availability: availabilityTable(d.Availability),
	}
	return view
}

// orderedDocuments presents the declared types first, in their fixed order,
// then any unknown types in arrival order.
func orderedDocuments(docs []model.DocumentURL) []documentView {
	byType := make(map[string]model.DocumentURL, len(docs))
	for _, d := range docs {
		byType[d.Type] = d
	}

	out := make([]documentView, 0, len(docs))
	for _, t := range model.DocTypeOrder {
		if d, ok := byType[t]; ok {
			out = append(out, documentView{Key: d.Key, URL: d.URL, Type: d.Type, Label: DocTypeLabel(d.Type)})
			delete(byType, t)
		}
	}
	for _, d := range docs {
		if _, ok := byType[d.Type]; ok {
			out = append(out, documentView{Key: d.Key, URL: d.URL, Type: d.Type, Label: DocTypeLabel(d.Type)})
			delete(byType, d.Type)
		}
	}
	return out
}

func availabilityTable(days map[string]model.DayAvailability) []availabilityView {
	if len(days) == 0 {
		return []availabilityView{}
	}
	out := make([]availabilityView, 0, len(days))
	for _, day := range weekdayOrder {
		if entry, ok := days[day]; ok {
			out = append(out, availabilityView{
				Day:       day,
				Label:     weekdayLabels[day],
				Available: entry.Available,
				Start:     entry.Start,
				End:       entry.End,
			})
		}
	}
	return out
}

// GetVerificationDetail godoc
// @Summary Full detail for one doctor
// @Tags verifications
// @Produce json
// @Param userId path string true "Doctor user ID"
// @Success 200 {object} util.APIResponse
// @Failure 404 {object} util.APIResponse
// @Router /dashboard/verificaciones/{userId} [get]
func (h *Handler) GetVerificationDetail(c *gin.Context) {
	sess, _ := middleware.GetSession(c)
	userID := c.Param("userId")

	token := h.Sessions.Token(c.Request.Context(), sess)
	detail, err := h.Upstream.GetDoctor(c.Request.Context(), token, userID)
	if err != nil {
		var serr *upstream.StatusError
		if errors.As(err, &serr) && serr.StatusCode == 404 {
			util.CallErrorNotFound(c, util.APIErrorParams{
				Msg: "Doctor no encontrado.",
				Err: err,
			})
			return
		}
		util.CallServerError(c, util.APIErrorParams{
			Msg: "No se pudo cargar el detalle del doctor.",
			Err: err,
		})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Doctor retrieved",
		Data: detailViewFrom(detail),
	})
}

type reviewRequest struct {
	Action  string `json:"action" binding:"required"`
	Message string `json:"message"`
}

// SubmitReview godoc
// @Summary Approve or reject a doctor's verification
// @Description Relays the decision to the backend and, on success, refetches the full detail so the caller renders fresh review metadata
// @Tags verifications
// @Accept json
// @Produce json
// @Param userId path string true "Doctor user ID"
// @Param request body reviewRequest true "Decision"
// @Success 200 {object} util.APIResponse
// @Failure 400 {object} util.APIResponse
// @Router /dashboard/verificaciones/{userId}/review [put]
func (h *Handler) SubmitReview(c *gin.Context) {
	sess, _ := middleware.GetSession(c)
	userID := c.Param("userId")

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Acción de revisión inválida.",
			Err: err,
		})
		return
	}
	if !util.Contains(req.Action, reviewActions) {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Acción de revisión inválida.",
			Err: fmt.Errorf("invalid action %q", req.Action),
		})
		return
	}
	message := strings.TrimSpace(req.Message)

	token := h.Sessions.Token(c.Request.Context(), sess)
	if err := h.Upstream.SubmitReview(c.Request.Context(), token, userID, req.Action, message); err != nil {
		util.CallServerError(c, util.APIErrorParams{
			Msg: "No se pudo enviar la decisión.",
			Err: err,
		})
		return
	}

	util.LogReviewSubmitted(sess.UserID, c.ClientIP(), userID, req.Action)

	// Refetch so the response carries the post-decision review metadata.
	detail, err := h.Upstream.GetDoctor(c.Request.Context(), token, userID)
	if err != nil {
		util.CallSuccessOK(c, util.APISuccessParams{
			Msg:  "Decisión enviada correctamente.",
			Data: map[string]interface{}{},
		})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Decisión enviada correctamente.",
		Data: detailViewFrom(detail),
	})
}
