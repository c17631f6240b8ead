package httpapi

import (
	"net/http"
	"time"

	"lamisys/internal/domain"
)

type alarmRuleRequest struct {
	Name       string               `json:"name"`
	Type       string               `json:"type"`
	Condition  string               `json:"condition"`
	Value      domain.FlexInt       `json:"value"`
	Recipients domain.RecipientList `json:"recipients"`
	Active     *bool                `json:"active"`
}

func (req alarmRuleRequest) toRule() domain.AlarmRule {
	r := domain.AlarmRule{
		Name:       req.Name,
		Type:       domain.AlarmRuleType(req.Type),
		Condition:  req.Condition,
		Value:      req.Value,
		Recipients: req.Recipients,
		Active:     true,
	}
	if req.Active != nil {
		r.Active = *req.Active
	}
	return r
}

func (a *api) handleAlarmRulesCreate(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())

	var req alarmRuleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	created, err := a.alarmSvc.CreateRule(r.Context(), req.toRule(), u.ID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, created)
}

func (a *api) handleAlarmRulesList(w http.ResponseWriter, r *http.Request) {
	rules, err := a.alarmSvc.ListRules(r.Context())
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if rules == nil {
		rules = []domain.AlarmRule{}
	}
	WriteJSON(w, http.StatusOK, rules)
}

func (a *api) handleAlarmRulesGet(w http.ResponseWriter, r *http.Request) {
	rule, err := a.alarmSvc.GetRule(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rule)
}

func (a *api) handleAlarmRulesUpdate(w http.ResponseWriter, r *http.Request) {
	var req alarmRuleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	updated, err := a.alarmSvc.UpdateRule(r.Context(), r.PathValue("id"), req.toRule())
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, updated)
}

func (a *api) handleAlarmRulesDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.alarmSvc.DeleteRule(r.Context(), r.PathValue("id")); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type schedulerStartRequest struct {
	IntervalMinutes int `json:"interval_minutes"`
}

type schedulerStatusResponse struct {
	Running bool `json:"running"`
}

func (a *api) handleSchedulerStart(w http.ResponseWriter, r *http.Request) {
	var req schedulerStartRequest
	if _, err := decodeJSONAllowEmpty(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}
	if req.IntervalMinutes < 0 {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"interval_minutes": "must not be negative"}))
		return
	}

	if !a.alarmSvc.StartScheduler(time.Duration(req.IntervalMinutes) * time.Minute) {
		WriteError(w, http.StatusConflict, "scheduler_start_failed", "scheduler could not be started")
		return
	}
	WriteJSON(w, http.StatusOK, schedulerStatusResponse{Running: true})
}

func (a *api) handleSchedulerStop(w http.ResponseWriter, r *http.Request) {
	stopped := a.alarmSvc.StopScheduler()
	WriteJSON(w, http.StatusOK, map[string]bool{"running": false, "was_running": stopped})
}

func (a *api) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, schedulerStatusResponse{Running: a.alarmSvc.SchedulerRunning()})
}

func (a *api) handleSchedulerRunNow(w http.ResponseWriter, r *http.Request) {
	stats := a.alarmSvc.RunPassNow(r.Context())
	WriteJSON(w, http.StatusOK, map[string]int{
		"processed": stats.Processed,
		"triggered": stats.Triggered,
		"errors":    stats.Errors,
	})
}
