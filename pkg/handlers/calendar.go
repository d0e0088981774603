package handlers

import (
	"net/http"
	"time"

	"neuracall-backend/pkg/config"
	"neuracall-backend/pkg/database"
	"neuracall-backend/pkg/models"
	"neuracall-backend/pkg/utils"

	chiRoute "github.com/go-chi/chi/v5"
)

type CalendarHandler struct {
	config *config.Config
	db     database.DatabaseInterface
}

func NewCalendarHandler(cfg *config.Config, db database.DatabaseInterface) *CalendarHandler {
	return &CalendarHandler{config: cfg, db: db}
}

// POST /api/calendar/events
func (h *CalendarHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireTenantSession(w, r)
	if !ok {
		return
	}

	var req struct {
		Title    string `json:"title"`
		Location string `json:"location"`
		Notes    string `json:"notes"`
		AllDay   bool   `json:"all_day"`
		StartsAt string `json:"starts_at"` // RFC3339
		EndsAt   string `json:"ends_at"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil || req.Title == "" {
		utils.WriteBadRequestResponse(w, "Event title is required")
		return
	}

	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		utils.WriteBadRequestResponse(w, "starts_at must be RFC3339")
		return
	}
	endsAt, err := time.Parse(time.RFC3339, req.EndsAt)
	if err != nil {
		utils.WriteBadRequestResponse(w, "ends_at must be RFC3339")
		return
	}
	if !endsAt.After(startsAt) {
		utils.WriteBadRequestResponse(w, "Event must end after it starts")
		return
	}

	event := &models.CalendarEvent{
		TenantID:  sess.TenantID,
		Title:     req.Title,
		Location:  req.Location,
		Notes:     req.Notes,
		AllDay:    req.AllDay,
		StartsAt:  startsAt,
		EndsAt:    endsAt,
		CreatedBy: sess.UserID,
	}
	if err := h.db.CreateEvent(event); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to create event")
		return
	}
	utils.WriteCreatedResponse(w, event)
}

// GET /api/calendar/events?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *CalendarHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireTenantSession(w, r)
	if !ok {
		return
	}

	// 默认窗口：当前月
	now := time.Now()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	if fromStr := utils.GetQueryParam(r, "from", ""); fromStr != "" {
		parsed, err := time.Parse("2006-01-02", fromStr)
		if err != nil {
			utils.WriteBadRequestResponse(w, "from must be YYYY-MM-DD")
			return
		}
		from = parsed
	}
	if toStr := utils.GetQueryParam(r, "to", ""); toStr != "" {
		parsed, err := time.Parse("2006-01-02", toStr)
		if err != nil {
			utils.WriteBadRequestResponse(w, "to must be YYYY-MM-DD")
			return
		}
		to = parsed
	}
	if !to.After(from) {
		utils.WriteBadRequestResponse(w, "to must be after from")
		return
	}

	events, err := h.db.ListEventsByTenant(sess.TenantID, from, to)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to list events")
		return
	}
	utils.WriteSuccessResponse(w, events)
}

// DELETE /api/calendar/events/{eventID}
func (h *CalendarHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireTenantSession(w, r)
	if !ok {
		return
	}

	// 列表接口按租户过滤；删除前单独校验归属
	eventID := chiRoute.URLParam(r, "eventID")
	events, err := h.db.ListEventsByTenant(sess.TenantID, time.Time{}, time.Now().AddDate(10, 0, 0))
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to verify event")
		return
	}
	owned := false
	for _, ev := range events {
		if ev.ID == eventID {
			owned = true
			break
		}
	}
	if !owned {
		utils.WriteNotFoundResponse(w, "Event not found")
		return
	}

	if err := h.db.DeleteEvent(eventID); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to delete event")
		return
	}
	utils.WriteSuccessResponse(w, map[string]string{"status": "deleted"})
}
