package handler

import (
	"github.com/gin-gonic/gin"
)

// SetupRouter 注册路由
func SetupRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(Recovery(), Logger(), CORS())

	v1 := r.Group("/api/v1")
	{
		activities := v1.Group("/activities")
		{
			activities.POST("/join", h.JoinActivity)
			activities.POST("/:id/leave", h.LeaveActivity)
			activities.POST("/:id/cancel", h.CancelActivity)
			activities.POST("/:id/finish", h.FinishActivity)
		}

		matches := v1.Group("/matches")
		{
			matches.POST("/join", h.JoinMatch)
			matches.POST("/:id/leave", h.LeaveMatch)
			matches.POST("/:id/cancel", h.CancelMatch)
			matches.POST("/:id/settlement", h.ApplySettlement)
			matches.POST("/against", h.RecordAgainst)
			matches.POST("/groups", h.CreateGroup)
			matches.GET("/:id/schedule", h.MatchSchedule)
		}

		teams := v1.Group("/teams")
		{
			teams.GET("/:id/logs", h.TeamAccountLogs)
		}

		settlements := v1.Group("/settlements")
		{
			settlements.POST("/:id/approve", h.ApproveSettlement)
			settlements.POST("/:id/disapprove", h.DisapproveSettlement)
		}

		callback := v1.Group("/callback")
		{
			callback.POST("/activity/pay", h.callback.ActivityPayNotify)
			callback.POST("/match/pay", h.callback.MatchPayNotify)
		}
	}

	return r
}
