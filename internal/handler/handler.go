package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"sportclub/internal/apperr"
	"sportclub/internal/service"
	"sportclub/pkg/response"
)

// Handler HTTP 接口层，参数校验 + 错误码映射，不含业务逻辑
type Handler struct {
	activity *service.ActivityService
	match    *service.MatchService
	callback *CallbackHandler
}

func NewHandler(activity *service.ActivityService, match *service.MatchService, callback *CallbackHandler) *Handler {
	return &Handler{
		activity: activity,
		match:    match,
		callback: callback,
	}
}

// writeError 业务错误分类映射到响应码
func writeError(c *gin.Context, err error) {
	message := err.Error()
	var e *apperr.Error
	if errors.As(err, &e) {
		message = e.Message
	}

	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		response.ParamError(c, message)
	case apperr.KindState:
		response.BusinessError(c, response.CodeStateError, message)
	case apperr.KindConflict:
		response.BusinessError(c, response.CodeConflict, message)
	default:
		response.ServerError(c, message)
	}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, "无效的ID")
		return 0, false
	}
	return id, true
}

// ---- 活动 ----

func (h *Handler) JoinActivity(c *gin.Context) {
	var req service.JoinActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}
	result, err := h.activity.Join(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *Handler) LeaveActivity(c *gin.Context) {
	activityID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}
	if err := h.activity.Leave(c.Request.Context(), activityID, req.UserID); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *Handler) CancelActivity(c *gin.Context) {
	activityID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		OperatorID int64  `json:"operator_id" binding:"required"`
		Reason     string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}
	refunds, err := h.activity.Cancel(c.Request.Context(), activityID, req.OperatorID, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"refund_tasks": refunds})
}

func (h *Handler) FinishActivity(c *gin.Context) {
	activityID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.activity.Finish(c.Request.Context(), activityID); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, nil)
}

// ---- 赛事 ----

func (h *Handler) JoinMatch(c *gin.Context) {
	var req service.JoinMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}
	result, err := h.match.Join(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *Handler) LeaveMatch(c *gin.Context) {
	matchID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		UserID  int64 `json:"user_id" binding:"required"`
		Insists bool  `json:"insists"` // 放弃退款强制退赛
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}
	if err := h.match.Leave(c.Request.Context(), matchID, req.UserID, req.Insists); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *Handler) CancelMatch(c *gin.Context) {
	matchID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		OperatorID int64  `json:"operator_id" binding:"required"`
		Reason     string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}
	refunds, err := h.match.Cancel(c.Request.Context(), matchID, req.OperatorID, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"refund_tasks": refunds})
}

func (h *Handler) ApplySettlement(c *gin.Context) {
	matchID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}
	app, err := h.match.ApplySettlement(c.Request.Context(), matchID, req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, app)
}

func (h *Handler) ApproveSettlement(c *gin.Context) {
	applicationID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		AdminID int64 `json:"admin_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}
	if err := h.match.ApproveSettlement(c.Request.Context(), applicationID, req.AdminID); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *Handler) DisapproveSettlement(c *gin.Context) {
	applicationID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		AdminID int64 `json:"admin_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}
	if err := h.match.DisapproveSettlement(c.Request.Context(), applicationID, req.AdminID); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *Handler) CreateGroup(c *gin.Context) {
	var req service.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}
	group, err := h.match.CreateGroup(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, group)
}

func (h *Handler) MatchSchedule(c *gin.Context) {
	matchID, ok := pathID(c, "id")
	if !ok {
		return
	}
	schedule, err := h.match.Schedule(c.Request.Context(), matchID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, schedule)
}

// TeamAccountLogs 俱乐部账户流水
func (h *Handler) TeamAccountLogs(c *gin.Context) {
	teamID, ok := pathID(c, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	logs, err := h.activity.AccountLogs(c.Request.Context(), teamID, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, logs)
}

func (h *Handler) RecordAgainst(c *gin.Context) {
	var req service.RecordAgainstRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}
	against, err := h.match.RecordAgainst(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, against)
}
