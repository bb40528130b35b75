package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"docchaser/internal/dispatch"
	"docchaser/internal/shared/server/respond"
)

// registerSchedulerRoutes attaches the dispatch loop controls.
func registerSchedulerRoutes(rg *gin.RouterGroup, sched *dispatch.Scheduler, base context.Context) {
	rg.POST("/scheduler/start", func(c *gin.Context) {
		started := sched.Start(base)
		message := "Scheduler started"
		if !started {
			message = "Scheduler already running"
		}
		respond.OK(c, gin.H{"success": true, "started": started, "message": message})
	})

	rg.POST("/scheduler/trigger", func(c *gin.Context) {
		sum, ran := sched.RunNow(c.Request.Context())
		if !ran {
			respond.Error(c, http.StatusConflict, "conflict", "a dispatch pass is already running", nil)
			return
		}
		respond.OK(c, gin.H{"success": true, "summary": sum})
	})

	rg.GET("/scheduler/status", func(c *gin.Context) {
		payload := gin.H{
			"started":    sched.Started(),
			"isRunning":  sched.IsRunning(),
			"intervalMs": sched.Interval().Milliseconds(),
		}
		if last, ok := sched.LastSummary(); ok {
			payload["lastPass"] = last
		}
		respond.OK(c, payload)
	})
}
